package fetch

import (
	"context"
	"math/big"

	"github.com/yourorg/sui-wrapped/internal/circuitbreaker"
)

// GuardedLedger fails fast while the breaker is open. Errors caused by the
// caller's context ending are not counted against the upstream.
type GuardedLedger struct {
	inner   Ledger
	breaker *circuitbreaker.CircuitBreaker
}

// NewGuardedLedger wraps inner with breaker.
func NewGuardedLedger(inner Ledger, breaker *circuitbreaker.CircuitBreaker) *GuardedLedger {
	return &GuardedLedger{inner: inner, breaker: breaker}
}

func (g *GuardedLedger) guard(ctx context.Context, fn func() error) error {
	if err := g.breaker.Allow(); err != nil {
		return err
	}
	err := fn()
	switch {
	case err == nil:
		g.breaker.RecordSuccess()
	case ctx.Err() == nil:
		g.breaker.RecordFailure(err)
	}
	return err
}

// QueryTransactions implements Ledger.
func (g *GuardedLedger) QueryTransactions(ctx context.Context, q TransactionQuery) (TransactionPage, error) {
	var page TransactionPage
	err := g.guard(ctx, func() (err error) {
		page, err = g.inner.QueryTransactions(ctx, q)
		return err
	})
	return page, err
}

// OwnedObjects implements Ledger.
func (g *GuardedLedger) OwnedObjects(ctx context.Context, address, cursor string, limit int) (ObjectPage, error) {
	var page ObjectPage
	err := g.guard(ctx, func() (err error) {
		page, err = g.inner.OwnedObjects(ctx, address, cursor, limit)
		return err
	})
	return page, err
}

// Balance implements Ledger.
func (g *GuardedLedger) Balance(ctx context.Context, address, coinType string) (*big.Int, error) {
	var balance *big.Int
	err := g.guard(ctx, func() (err error) {
		balance, err = g.inner.Balance(ctx, address, coinType)
		return err
	})
	return balance, err
}

// BreakerState reports the state of the guarding breaker.
func (g *GuardedLedger) BreakerState() circuitbreaker.State {
	return g.breaker.GetState()
}
