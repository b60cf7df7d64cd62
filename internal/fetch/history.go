package fetch

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/yourorg/sui-wrapped/internal/model"
)

// HistoryOptions bounds a history fetch.
type HistoryOptions struct {
	PageSize  int
	PageDelay time.Duration

	// Budget is a wall-clock limit; when exceeded the fetch stops with what it has.
	// A page still in flight at the limit is abandoned.
	Budget time.Duration

	// MaxPages caps the number of pages; zero means no cap.
	MaxPages int

	// Now is used to measure the budget; defaults to time.Now.
	Now func() time.Time
}

// History is the result of a window fetch.
type History struct {
	// Transactions inside the window, ascending by timestamp.
	Transactions []model.TransactionRecord
	Pages        int

	// Partial is set when the fetch stopped before exhausting the window.
	Partial bool
}

// newPageLimiter spaces successive page requests by delay.
func newPageLimiter(delay time.Duration) *rate.Limiter {
	if delay <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(delay), 1)
}

// queryPage runs one page request, cut off once the remaining budget runs out.
func queryPage(ctx context.Context, ledger Ledger, q TransactionQuery, remaining time.Duration, bounded bool) (TransactionPage, error) {
	if !bounded {
		return ledger.QueryTransactions(ctx, q)
	}
	pageCtx, cancel := context.WithTimeout(ctx, remaining)
	defer cancel()
	return ledger.QueryTransactions(pageCtx, q)
}

// FetchHistory pages backwards through the address's sent transactions and keeps those inside window.
// A failure on the first page is returned as an error; later failures end the fetch with a partial result.
func FetchHistory(ctx context.Context, ledger Ledger, address string, window model.Window, opts HistoryOptions) (History, error) {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	limiter := newPageLimiter(opts.PageDelay)
	startMs := window.Start.UnixMilli()
	endMs := window.End.UnixMilli()
	started := now()

	var (
		out    History
		cursor string
		seen   = make(map[string]struct{})
	)

	log := logrus.WithFields(logrus.Fields{
		"address": address,
		"start":   window.Start.Format(time.RFC3339),
		"end":     window.End.Format(time.RFC3339),
	})

	for {
		if opts.Budget > 0 && now().Sub(started) > opts.Budget {
			log.Warnf("Fetch budget of %s exhausted, keeping %d transactions", opts.Budget, len(out.Transactions))
			out.Partial = true
			break
		}
		if opts.MaxPages > 0 && out.Pages >= opts.MaxPages {
			log.Warnf("Page limit of %d reached, keeping %d transactions", opts.MaxPages, len(out.Transactions))
			out.Partial = true
			break
		}
		if err := limiter.Wait(ctx); err != nil {
			return History{}, fmt.Errorf("history fetch interrupted: %w", err)
		}

		page, err := queryPage(ctx, ledger, TransactionQuery{
			Address:     address,
			Cursor:      cursor,
			Limit:       opts.PageSize,
			Order:       OrderDescending,
			WithDetails: true,
		}, opts.Budget-now().Sub(started), opts.Budget > 0)
		if err != nil {
			if out.Pages == 0 {
				return History{}, fmt.Errorf("first history page failed: %w", err)
			}
			if ctx.Err() != nil {
				return History{}, fmt.Errorf("history fetch interrupted: %w", ctx.Err())
			}
			log.WithError(err).Warnf("History page %d failed, keeping %d transactions", out.Pages+1, len(out.Transactions))
			out.Partial = true
			break
		}
		out.Pages++

		reachedStart := false
		for _, tx := range page.Data {
			if tx.TimestampMs < startMs {
				reachedStart = true
				break
			}
			if tx.TimestampMs > endMs {
				continue
			}
			if _, dup := seen[tx.Digest]; dup {
				continue
			}
			seen[tx.Digest] = struct{}{}
			out.Transactions = append(out.Transactions, tx)
		}
		log.Debugf("History page %d: %d records, %d kept so far", out.Pages, len(page.Data), len(out.Transactions))

		if reachedStart || !page.HasNextPage || page.NextCursor == "" {
			break
		}
		cursor = page.NextCursor
	}

	sortAscending(out.Transactions)
	return out, nil
}

// sortAscending orders transactions by timestamp, then checkpoint, then digest.
func sortAscending(txs []model.TransactionRecord) {
	sort.SliceStable(txs, func(i, j int) bool {
		a, b := txs[i], txs[j]
		if a.TimestampMs != b.TimestampMs {
			return a.TimestampMs < b.TimestampMs
		}
		if a.Checkpoint != b.Checkpoint {
			return a.Checkpoint < b.Checkpoint
		}
		return a.Digest < b.Digest
	})
}

// LifetimeFirst returns the oldest transaction ever sent by address, or nil if there is none.
func LifetimeFirst(ctx context.Context, ledger Ledger, address string) (*model.TransactionRecord, error) {
	page, err := ledger.QueryTransactions(ctx, TransactionQuery{
		Address: address,
		Limit:   1,
		Order:   OrderAscending,
	})
	if err != nil {
		return nil, fmt.Errorf("lifetime first transaction: %w", err)
	}
	if len(page.Data) == 0 {
		return nil, nil
	}
	first := page.Data[0]
	return &first, nil
}
