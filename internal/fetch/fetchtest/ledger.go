// Package fetchtest provides an in-memory Ledger for tests.
package fetchtest

import (
	"context"
	"math/big"
	"sort"
	"strconv"
	"sync"

	"github.com/yourorg/sui-wrapped/internal/fetch"
	"github.com/yourorg/sui-wrapped/internal/model"
)

// Ledger serves a fixed history and object set with cursor pagination.
// Page errors are keyed by the zero-based index of the call.
type Ledger struct {
	Transactions []model.TransactionRecord
	Objects      []fetch.OwnedObject
	BalanceMist  *big.Int

	TxErrs      map[int]error
	ObjectErrs  map[int]error
	LifetimeErr error
	BalanceErr  error
	OnQuery     func()

	mu             sync.Mutex
	txCalls        int
	objectCalls    int
	ascendingCalls int
}

var _ fetch.Ledger = (*Ledger)(nil)

// QueryTransactions implements fetch.Ledger.
func (l *Ledger) QueryTransactions(ctx context.Context, q fetch.TransactionQuery) (fetch.TransactionPage, error) {
	if err := ctx.Err(); err != nil {
		return fetch.TransactionPage{}, err
	}
	if l.OnQuery != nil {
		l.OnQuery()
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	sorted := make([]model.TransactionRecord, len(l.Transactions))
	copy(sorted, l.Transactions)
	if q.Order == fetch.OrderAscending {
		l.ascendingCalls++
		if l.LifetimeErr != nil {
			return fetch.TransactionPage{}, l.LifetimeErr
		}
		sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].TimestampMs < sorted[j].TimestampMs })
	} else {
		call := l.txCalls
		l.txCalls++
		if err, ok := l.TxErrs[call]; ok {
			return fetch.TransactionPage{}, err
		}
		sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].TimestampMs > sorted[j].TimestampMs })
	}

	data, next, more := paginate(len(sorted), q.Cursor, q.Limit)
	return fetch.TransactionPage{
		Data:        append([]model.TransactionRecord(nil), sorted[data[0]:data[1]]...),
		NextCursor:  next,
		HasNextPage: more,
	}, nil
}

// OwnedObjects implements fetch.Ledger.
func (l *Ledger) OwnedObjects(ctx context.Context, address, cursor string, limit int) (fetch.ObjectPage, error) {
	if err := ctx.Err(); err != nil {
		return fetch.ObjectPage{}, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	call := l.objectCalls
	l.objectCalls++
	if err, ok := l.ObjectErrs[call]; ok {
		return fetch.ObjectPage{}, err
	}

	data, next, more := paginate(len(l.Objects), cursor, limit)
	return fetch.ObjectPage{
		Data:        append([]fetch.OwnedObject(nil), l.Objects[data[0]:data[1]]...),
		NextCursor:  next,
		HasNextPage: more,
	}, nil
}

// Balance implements fetch.Ledger.
func (l *Ledger) Balance(ctx context.Context, address, coinType string) (*big.Int, error) {
	if l.BalanceErr != nil {
		return nil, l.BalanceErr
	}
	if l.BalanceMist == nil {
		return new(big.Int), nil
	}
	return new(big.Int).Set(l.BalanceMist), nil
}

// TxPages returns how many descending history pages were requested.
func (l *Ledger) TxPages() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.txCalls
}

// ObjectPages returns how many owned-object pages were requested.
func (l *Ledger) ObjectPages() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.objectCalls
}

// AscendingCalls returns how many lifetime-first lookups were made.
func (l *Ledger) AscendingCalls() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.ascendingCalls
}

// paginate turns an offset cursor into a [from, to) range.
func paginate(total int, cursor string, limit int) ([2]int, string, bool) {
	from := 0
	if cursor != "" {
		from, _ = strconv.Atoi(cursor)
	}
	if from > total {
		from = total
	}
	if limit <= 0 {
		limit = total
	}
	to := from + limit
	if to > total {
		to = total
	}
	if to < total {
		return [2]int{from, to}, strconv.Itoa(to), true
	}
	return [2]int{from, to}, "", false
}
