package pipeline

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourorg/sui-wrapped/internal/cache"
	"github.com/yourorg/sui-wrapped/internal/classify"
	"github.com/yourorg/sui-wrapped/internal/export"
	"github.com/yourorg/sui-wrapped/internal/fetch"
	"github.com/yourorg/sui-wrapped/internal/fetch/fetchtest"
	"github.com/yourorg/sui-wrapped/internal/model"
	"github.com/yourorg/sui-wrapped/internal/nft"
)

const (
	address = "0x00000000000000000000000000000000000000000000000000000000000000a1"
	cetus   = "0x1eabed72c53feb3805120a081dc15963c204dc8d091542592abaf7a35689b2fb"
)

var now = time.Date(2025, time.December, 20, 9, 0, 0, 0, time.UTC)

type recordingPublisher struct {
	mu        sync.Mutex
	summaries []export.Summary
}

func (p *recordingPublisher) Enqueue(s export.Summary) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.summaries = append(p.summaries, s)
}

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.summaries)
}

func swap(digest string, ts time.Time) model.TransactionRecord {
	return model.TransactionRecord{
		Digest:      digest,
		TimestampMs: ts.UnixMilli(),
		Checkpoint:  uint64(ts.Unix()),
		Success:     true,
		Kind:        "ProgrammableTransaction",
		GasUsed: model.GasUsed{
			ComputationCost: big.NewInt(1_000_000),
			StorageCost:     big.NewInt(2_000_000),
			StorageRebate:   big.NewInt(500_000),
		},
		MoveCalls: []model.MoveCall{{Package: cetus, Module: "pool_script", Function: "swap_a2b"}},
	}
}

func fixture() *fetchtest.Ledger {
	return &fetchtest.Ledger{
		Transactions: []model.TransactionRecord{
			swap("genesis", time.Date(2024, time.March, 1, 10, 0, 0, 0, time.UTC)),
			swap("d1", time.Date(2025, time.February, 1, 10, 0, 0, 0, time.UTC)),
			swap("d2", time.Date(2025, time.February, 1, 18, 0, 0, 0, time.UTC)),
			swap("d3", time.Date(2025, time.July, 4, 8, 0, 0, 0, time.UTC)),
		},
		Objects: []fetch.OwnedObject{
			{ObjectID: "0x1", Type: "0xaaa::cats::Cat", Display: map[string]string{"name": "Cat"}},
			{ObjectID: "0x2", Type: "0x2::coin::Coin<0x2::sui::SUI>"},
		},
		BalanceMist: big.NewInt(42_000_000_000),
	}
}

type harness struct {
	ledger    *fetchtest.Ledger
	orch      *Orchestrator
	metrics   *Metrics
	publisher *recordingPublisher
}

func newHarness(ledger *fetchtest.Ledger, withCache bool) harness {
	metrics := NewMetrics(prometheus.NewRegistry())
	publisher := &recordingPublisher{}
	orch := New(ledger, classify.New(nil)).
		WithScanner(nft.NewScanner(ledger).WithPaging(50, 0, 10)).
		WithHistoryOptions(fetch.HistoryOptions{PageSize: 2}).
		WithMetrics(metrics).
		WithPublisher(publisher).
		WithClock(func() time.Time { return now })
	if withCache {
		orch.WithCache(cache.New(cache.NewMemoryStore(), time.Hour).WithClock(func() time.Time { return now }))
	}
	return harness{ledger: ledger, orch: orch, metrics: metrics, publisher: publisher}
}

func TestGenerate_BuildsReport(t *testing.T) {
	h := newHarness(fixture(), false)

	agg, err := h.orch.Generate(context.Background(), address, 2025)
	require.NoError(t, err)

	assert.Equal(t, address, agg.Address)
	assert.Equal(t, 2025, agg.Year)
	assert.Equal(t, 3, agg.TotalTransactions)
	assert.Equal(t, 2, agg.ActiveDays)
	assert.Equal(t, []string{"cetus"}, agg.UniqueProtocols)
	assert.Equal(t, "7500000", agg.GasSavings.TotalSuiGasSpent)
	assert.Equal(t, "42000000000", agg.CurrentBalanceMist)

	// arrival comes from the lifetime first transaction, outside the window
	assert.Equal(t, "genesis", agg.FirstTransactionDigest)
	assert.Equal(t, "swap_a2b", agg.FirstTransactionAction)
	assert.Equal(t, "cetus", agg.FirstTransactionProtocol)

	assert.Equal(t, 1, agg.NFTHoldings.TotalNFTs)
	assert.Equal(t, 1, agg.NFTMetrics.CollectionsInteracted)

	assert.Equal(t, model.PersonaMoveMaximalist, agg.Persona)
	assert.InDelta(t, 0.95, agg.PersonaConfidence, 1e-9)
	assert.Equal(t, "100% DEX trading activity", agg.PersonaReasoning)
	assert.Equal(t, now.UnixMilli(), agg.GeneratedAt)

	assert.Equal(t, 1, h.publisher.count())
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.generations.WithLabelValues("success")))
	assert.Equal(t, 2.0, testutil.ToFloat64(h.metrics.fetchPages.WithLabelValues("transactions")))
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.fetchPages.WithLabelValues("objects")))
}

func TestGenerate_NormalizesAddress(t *testing.T) {
	h := newHarness(fixture(), false)

	agg, err := h.orch.Generate(context.Background(), "0x00000000000000000000000000000000000000000000000000000000000000A1", 2025)
	require.NoError(t, err)
	assert.Equal(t, address, agg.Address)
}

func TestGenerate_RejectsBeforeFetching(t *testing.T) {
	tests := []struct {
		name    string
		address string
		year    int
		code    model.ErrorCode
	}{
		{"short address", "0x1234", 2025, model.CodeInvalidAddress},
		{"missing prefix", "00000000000000000000000000000000000000000000000000000000000000a1", 2025, model.CodeInvalidAddress},
		{"year before mainnet", address, 2022, model.CodeInvalidWindow},
		{"future year", address, 2026, model.CodeInvalidWindow},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(fixture(), true)

			_, err := h.orch.Generate(context.Background(), tt.address, tt.year)
			require.Error(t, err)
			assert.Equal(t, tt.code, model.CodeOf(err))
			assert.Equal(t, 0, h.ledger.TxPages())
		})
	}
}

func TestGenerate_EmptyWindow(t *testing.T) {
	h := newHarness(fixture(), true)

	_, err := h.orch.Generate(context.Background(), address, 2023)
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrNoTransactions)
	assert.Equal(t, 0, h.publisher.count())
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.generations.WithLabelValues("no_transactions")))
}

func TestGenerate_FirstPageFailure(t *testing.T) {
	ledger := fixture()
	ledger.TxErrs = map[int]error{0: errors.New("connection refused")}
	h := newHarness(ledger, false)

	_, err := h.orch.Generate(context.Background(), address, 2025)
	require.Error(t, err)
	assert.Equal(t, model.CodeGenerationFailed, model.CodeOf(err))
	assert.Contains(t, err.Error(), "connection refused")
}

func TestGenerate_LaterPageFailureKeepsPartialHistory(t *testing.T) {
	ledger := fixture()
	ledger.TxErrs = map[int]error{1: errors.New("rate limited")}
	h := newHarness(ledger, false)

	agg, err := h.orch.Generate(context.Background(), address, 2025)
	require.NoError(t, err)
	assert.Equal(t, 2, agg.TotalTransactions)
}

func TestGenerate_DegradesOptionalLookups(t *testing.T) {
	ledger := fixture()
	ledger.LifetimeErr = errors.New("timeout")
	ledger.BalanceErr = errors.New("timeout")
	ledger.ObjectErrs = map[int]error{0: errors.New("timeout")}
	h := newHarness(ledger, false)

	agg, err := h.orch.Generate(context.Background(), address, 2025)
	require.NoError(t, err)

	assert.Equal(t, "d1", agg.FirstTransactionDigest)
	assert.Empty(t, agg.CurrentBalanceMist)
	assert.NotNil(t, agg.NFTHoldings.Holdings)
	assert.Empty(t, agg.NFTHoldings.Holdings)
}

func TestGenerate_ServesFromCache(t *testing.T) {
	h := newHarness(fixture(), true)
	ctx := context.Background()

	first, err := h.orch.Generate(ctx, address, 2025)
	require.NoError(t, err)
	pages := h.ledger.TxPages()

	second, err := h.orch.Generate(ctx, address, 2025)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, pages, h.ledger.TxPages())
	assert.Equal(t, 1, h.publisher.count())
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.cacheLookups.WithLabelValues("hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.cacheLookups.WithLabelValues("miss")))
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.generations.WithLabelValues("success")))
}

func TestGenerate_ErrorsAreNotCached(t *testing.T) {
	ledger := fixture()
	ledger.TxErrs = map[int]error{0: errors.New("down")}
	h := newHarness(ledger, true)
	ctx := context.Background()

	_, err := h.orch.Generate(ctx, address, 2025)
	require.Error(t, err)

	agg, err := h.orch.Generate(ctx, address, 2025)
	require.NoError(t, err)
	assert.Equal(t, 3, agg.TotalTransactions)
}

func TestGenerateRange_BypassesCache(t *testing.T) {
	h := newHarness(fixture(), true)
	ctx := context.Background()
	start := time.Date(2025, time.February, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, time.February, 28, 0, 0, 0, 0, time.UTC)

	agg, err := h.orch.GenerateRange(ctx, address, start, end)
	require.NoError(t, err)
	assert.Equal(t, 2, agg.TotalTransactions)

	_, err = h.orch.GenerateRange(ctx, address, start, end)
	require.NoError(t, err)
	assert.Equal(t, 2, h.publisher.count())
	assert.Equal(t, 0.0, testutil.ToFloat64(h.metrics.cacheLookups.WithLabelValues("hit")))
}

func TestGenerateRange_RejectsLongRange(t *testing.T) {
	h := newHarness(fixture(), false)

	_, err := h.orch.GenerateRange(context.Background(), address,
		time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, model.CodeInvalidWindow, model.CodeOf(err))
}

func TestOutcome(t *testing.T) {
	assert.Equal(t, "success", outcome(nil))
	assert.Equal(t, "no_transactions", outcome(model.ErrNoTransactions))
	assert.Equal(t, "generation_failed", outcome(errors.New("x")))
}
