// Package fetch provides the ledger client used to pull an address's on-chain history.
package fetch

import (
	"context"
	"math/big"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/yourorg/sui-wrapped/internal/model"
)

// Order is the pagination direction of a transaction query.
type Order int

// Query orders
const (
	OrderDescending Order = iota
	OrderAscending
)

// SuiCoinType is the native coin type used for balance lookups.
const SuiCoinType = "0x2::sui::SUI"

// TransactionQuery selects one page of transactions sent by an address.
type TransactionQuery struct {
	Address string
	Cursor  string
	Limit   int
	Order   Order

	// WithDetails requests input and effects; without it only digest and timestamp are reliable.
	WithDetails bool
}

// TransactionPage is one page of a transaction query.
type TransactionPage struct {
	Data        []model.TransactionRecord
	NextCursor  string
	HasNextPage bool
}

// OwnedObject is one object owned by an address with its display metadata.
type OwnedObject struct {
	ObjectID string
	Type     string
	Display  map[string]string
}

// ObjectPage is one page of owned objects.
type ObjectPage struct {
	Data        []OwnedObject
	NextCursor  string
	HasNextPage bool
}

// Ledger defines the remote calls the pipeline makes against a fullnode.
type Ledger interface {
	// QueryTransactions returns one page of transactions sent by the queried address.
	QueryTransactions(ctx context.Context, q TransactionQuery) (TransactionPage, error)

	// OwnedObjects returns one page of objects owned by address.
	OwnedObjects(ctx context.Context, address, cursor string, limit int) (ObjectPage, error)

	// Balance returns the total balance of coinType held by address.
	Balance(ctx context.Context, address, coinType string) (*big.Int, error)
}

// newRetryClient creates an HTTP client; retries stay off unless configured.
func newRetryClient(retryMax int, timeout time.Duration) *retryablehttp.Client {
	c := retryablehttp.NewClient()
	c.RetryMax = retryMax
	c.RetryWaitMin = 250 * time.Millisecond
	c.RetryWaitMax = 2 * time.Second
	c.HTTPClient.Timeout = timeout
	c.Logger = nil
	// hand non-2xx responses back so callers can report the status
	c.ErrorHandler = retryablehttp.PassthroughErrorHandler
	return c
}
