package aggregate

import (
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourorg/sui-wrapped/internal/classify"
	"github.com/yourorg/sui-wrapped/internal/model"
)

const (
	cetusPkg   = "0x1eabed72c53feb3805120a081dc15963c204dc8d091542592abaf7a35689b2fb"
	scallopPkg = "0xefe8b36d5b2e43728cc323298626b83177803521d195cfb11e15b910e892fdd0"
	naviPkg    = "0xd899cf7d2b5db716bd2cf55599fb0d5ee38a3061e7b6bb6eebf73fa5bc4c81ca"
	addr       = "0x00000000000000000000000000000000000000000000000000000000000000a1"
)

var base = time.Date(2025, time.March, 10, 9, 0, 0, 0, time.UTC)

func gas(computation, storage, rebate int64) model.GasUsed {
	return model.GasUsed{
		ComputationCost: big.NewInt(computation),
		StorageCost:     big.NewInt(storage),
		StorageRebate:   big.NewInt(rebate),
	}
}

func txAt(digest string, at time.Time, calls ...model.MoveCall) model.TransactionRecord {
	return model.TransactionRecord{
		Digest:      digest,
		TimestampMs: at.UnixMilli(),
		Checkpoint:  uint64(at.Unix()),
		GasUsed:     gas(1000, 0, 0),
		Success:     true,
		MoveCalls:   calls,
	}
}

func call(pkg, module, function string) model.MoveCall {
	return model.MoveCall{Package: pkg, Module: module, Function: function}
}

func newAggregator() *Aggregator {
	return New(classify.New(nil))
}

func TestAggregate_EmptyWindow(t *testing.T) {
	_, err := newAggregator().Aggregate(addr, 2025, nil, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrNoTransactions))
	assert.Equal(t, model.CodeNoTransactions, model.CodeOf(err))
}

func TestAggregate_RejectsUnsortedInput(t *testing.T) {
	txs := []model.TransactionRecord{txAt("b", base.Add(time.Hour)), txAt("a", base)}
	_, err := newAggregator().Aggregate(addr, 2025, txs, nil)
	require.Error(t, err)
	assert.Equal(t, model.CodeGenerationFailed, model.CodeOf(err))
}

func TestAggregate_SingleUnclassifiedTransfer(t *testing.T) {
	agg, err := newAggregator().Aggregate(addr, 2025, []model.TransactionRecord{txAt("t1", base)}, nil)
	require.NoError(t, err)

	assert.Equal(t, 1, agg.TotalTransactions)
	assert.Equal(t, 1, agg.TotalCommands, "a transaction without calls still counts as one command")
	assert.Empty(t, agg.ProtocolBreakdown)
	assert.Empty(t, agg.UniqueProtocols)
	assert.Equal(t, 1, agg.CategoryBreakdown[model.CategoryOther].TransactionCount)
	assert.InDelta(t, 100, agg.CategoryBreakdown[model.CategoryOther].Percentage, 1e-9)
	for _, cat := range model.Categories {
		if cat != model.CategoryOther {
			assert.Zero(t, agg.CategoryBreakdown[cat].TransactionCount, "category %s", cat)
		}
	}
	assert.Equal(t, "Transaction", agg.FirstTransactionAction)
	assert.Equal(t, model.UnknownProtocol, agg.FirstTransactionProtocol)
}

func TestAggregate_SameProtocolDifferentFunctions(t *testing.T) {
	txs := []model.TransactionRecord{
		txAt("s1", base, call(cetusPkg, "pool_script", "swap_a_b")),
		txAt("s2", base.Add(time.Minute), call(cetusPkg, "pool_script", "add_liquidity")),
	}

	agg, err := newAggregator().Aggregate(addr, 2025, txs, nil)
	require.NoError(t, err)

	require.Len(t, agg.ProtocolBreakdown, 1)
	p := agg.ProtocolBreakdown[0]
	assert.Equal(t, "cetus", p.Protocol)
	assert.Equal(t, "Cetus", p.DisplayName)
	assert.Equal(t, 2, p.TransactionCount)
	assert.Equal(t, map[model.ActionKind]int{model.ActionSwap: 1, model.ActionAddLiquidity: 1}, p.Actions)
	assert.Equal(t, []string{"cetus"}, agg.UniqueProtocols)
	assert.Equal(t, 1, agg.TradingMetrics.SwapCount)
	assert.Equal(t, "swap_a_b", agg.FirstTransactionAction)
}

func TestAggregate_GasRebateExceedingCost(t *testing.T) {
	tx := txAt("r1", base)
	tx.GasUsed = gas(100, 50, 200)

	agg, err := newAggregator().Aggregate(addr, 2025, []model.TransactionRecord{tx}, nil)
	require.NoError(t, err)

	assert.Equal(t, "-50", agg.GasSavings.TotalSuiGasSpent, "negative totals are kept exactly")
	assert.Zero(t, agg.GasSavings.TotalSuiGasUSD, "negative totals are valued at zero")
	assert.Equal(t, TransferGasUnits, agg.GasSavings.HypotheticalEthGas)
}

func TestAggregate_GasSumIsExact(t *testing.T) {
	huge, ok := new(big.Int).SetString("9223372036854775807000", 10)
	require.True(t, ok)

	a := txAt("a", base)
	a.GasUsed = model.GasUsed{ComputationCost: huge, StorageCost: big.NewInt(7), StorageRebate: big.NewInt(0)}
	b := txAt("b", base.Add(time.Second))
	b.GasUsed = gas(0, 10, 30)
	c := txAt("c", base.Add(2*time.Second))
	c.GasUsed = model.GasUsed{}

	agg, err := newAggregator().Aggregate(addr, 2025, []model.TransactionRecord{a, b, c}, nil)
	require.NoError(t, err)

	want := new(big.Int).Add(huge, big.NewInt(7-20))
	assert.Equal(t, want.String(), agg.GasSavings.TotalSuiGasSpent)
}

func TestAggregate_CategoryAndPercentageInvariants(t *testing.T) {
	txs := []model.TransactionRecord{
		txAt("1", base, call(cetusPkg, "pool_script", "swap")),
		txAt("2", base.Add(1*time.Hour), call(scallopPkg, "mint", "deposit")),
		txAt("3", base.Add(2*time.Hour), call(naviPkg, "incentive_v2", "borrow")),
		txAt("4", base.Add(3*time.Hour), call("0xfeed", "hasui", "request_stake")),
		txAt("5", base.Add(4*time.Hour), call("0xbeef", "kiosk", "purchase")),
		txAt("6", base.Add(5*time.Hour)),
		txAt("7", base.Add(6*time.Hour), call("0xcafe", "random", "do_thing")),
	}

	agg, err := newAggregator().Aggregate(addr, 2025, txs, nil)
	require.NoError(t, err)

	sumCount := 0
	sumPct := 0.0
	for _, cat := range model.Categories {
		entry, ok := agg.CategoryBreakdown[cat]
		require.True(t, ok, "category %s must be present", cat)
		sumCount += entry.TransactionCount
		sumPct += entry.Percentage
	}
	assert.Equal(t, agg.TotalTransactions, sumCount)
	assert.InDelta(t, 100, sumPct, 1e-9)

	protocolPct := 0.0
	for _, p := range agg.ProtocolBreakdown {
		protocolPct += p.Percentage
	}
	unknownPct := 2.0 / 7.0 * 100
	assert.InDelta(t, 100, protocolPct+unknownPct, 1e-9, "protocol shares plus the unknown share cover everything")

	assert.Equal(t, 2, agg.CategoryBreakdown[model.CategoryLending].TransactionCount)
	assert.Equal(t, 2, agg.CategoryBreakdown[model.CategoryOther].TransactionCount)
	assert.Len(t, agg.UniqueProtocols, 5)
	assert.ElementsMatch(t, []string{"Scallop", "NAVI"}, agg.LendingMetrics.ProtocolsUsed)
	assert.Equal(t, float64(healthFactorUnknown), agg.LendingMetrics.MinHealthFactor)
	require.Len(t, agg.StakingMetrics.LSTPortfolio, 1)
	assert.Equal(t, "haedal", agg.StakingMetrics.LSTPortfolio[0].Token)
	assert.Equal(t, 1, agg.NFTMetrics.TotalBought)
}

func TestAggregate_SavingsPositiveWhenEthCostsMore(t *testing.T) {
	var txs []model.TransactionRecord
	for i := 0; i < 5; i++ {
		tx := txAt("s", base.Add(time.Duration(i)*time.Minute), call(cetusPkg, "pool_script", "swap"))
		tx.Digest = tx.Digest + string(rune('a'+i))
		tx.GasUsed = gas(750_000, 500_000, 250_000)
		txs = append(txs, tx)
	}

	agg, err := newAggregator().Aggregate(addr, 2025, txs, nil)
	require.NoError(t, err)

	g := agg.GasSavings
	assert.Equal(t, "5000000", g.TotalSuiGasSpent)
	assert.InDelta(t, 0.0175, g.TotalSuiGasUSD, 1e-12)
	assert.Equal(t, uint64(5*184523), g.HypotheticalEthGas)
	assert.InDelta(t, 69.196125, g.HypotheticalEthGasUSD, 1e-9)
	assert.Greater(t, g.SavingsUSD, 0.0)
	assert.Greater(t, g.SavingsMultiple, 1.0)
	assert.InDelta(t, g.HypotheticalEthGasUSD-g.TotalSuiGasUSD, g.SavingsUSD, 1e-9)
}

func TestAggregate_SwapCountFallsBackToDexTransactions(t *testing.T) {
	txs := []model.TransactionRecord{
		txAt("1", base, call(cetusPkg, "pool_script", "collect_fee")),
		txAt("2", base.Add(time.Minute), call(cetusPkg, "pool_script", "open_position")),
	}

	agg, err := newAggregator().Aggregate(addr, 2025, txs, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, agg.TradingMetrics.SwapCount)
}

func TestAggregate_ActiveDaysUseUTC(t *testing.T) {
	day := time.Date(2025, time.August, 1, 0, 0, 0, 0, time.UTC)
	txs := []model.TransactionRecord{
		txAt("1", day.Add(30*time.Minute)),
		txAt("2", day.Add(23*time.Hour+30*time.Minute)),
		txAt("3", day.Add(24*time.Hour+time.Minute)),
	}

	agg, err := newAggregator().Aggregate(addr, 2025, txs, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, agg.ActiveDays)
}

func TestAggregate_CommandCount(t *testing.T) {
	txs := []model.TransactionRecord{
		txAt("1", base),
		txAt("2", base.Add(time.Minute), call("0x1", "a", "b"), call("0x1", "a", "c"), call("0x1", "a", "d")),
	}

	agg, err := newAggregator().Aggregate(addr, 2025, txs, nil)
	require.NoError(t, err)
	assert.Equal(t, 4, agg.TotalCommands)
}

func TestAggregate_Arrival(t *testing.T) {
	windowFirst := txAt("window-first", base, call(cetusPkg, "pool_script", "swap"))

	t.Run("lifetime first wins", func(t *testing.T) {
		lifetime := txAt("genesis", MainnetLaunch.Add(45*24*time.Hour+3*time.Hour))
		agg, err := newAggregator().Aggregate(addr, 2025, []model.TransactionRecord{windowFirst}, &lifetime)
		require.NoError(t, err)

		assert.Equal(t, "genesis", agg.FirstTransactionDigest)
		assert.Equal(t, lifetime.TimestampMs, agg.FirstTransactionTimestamp)
		assert.Equal(t, 45, agg.DaysAfterMainnetLaunch)
		assert.InDelta(t, 92.5, agg.EarlierThanPercentage, 1e-9)
		assert.Equal(t, "swap", agg.FirstTransactionAction, "action comes from the window's first transaction")
		assert.Equal(t, "cetus", agg.FirstTransactionProtocol)
	})

	t.Run("falls back to window first", func(t *testing.T) {
		agg, err := newAggregator().Aggregate(addr, 2025, []model.TransactionRecord{windowFirst}, nil)
		require.NoError(t, err)

		assert.Equal(t, "window-first", agg.FirstTransactionDigest)
		assert.Equal(t, DaysAfterLaunch(windowFirst.TimestampMs), agg.DaysAfterMainnetLaunch)
		assert.Zero(t, agg.EarlierThanPercentage, "more than 600 days after launch")
	})
}

func TestDaysAfterLaunch(t *testing.T) {
	tests := []struct {
		name string
		at   time.Time
		want int
	}{
		{"launch instant", MainnetLaunch, 0},
		{"same day", MainnetLaunch.Add(23 * time.Hour), 0},
		{"next day", MainnetLaunch.Add(24 * time.Hour), 1},
		{"before launch", MainnetLaunch.Add(-time.Hour), -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DaysAfterLaunch(tt.at.UnixMilli()))
		})
	}
}

func TestEthGasUnits(t *testing.T) {
	tests := []struct {
		name string
		c    model.Classification
		want uint64
	}{
		{"composite key", model.Classification{Protocol: "cetus", Category: model.CategoryDex, Action: model.ActionSwap}, 184523},
		{"category default", model.Classification{Protocol: "cetus", Category: model.CategoryDex, Action: model.ActionOther}, 150000},
		{"lending borrow", model.Classification{Protocol: "navi", Category: model.CategoryLending, Action: model.ActionBorrow}, 350000},
		{"bridge has no default", model.Classification{Protocol: "wormhole", Category: model.CategoryBridge, Action: model.ActionBridge}, TransferGasUnits},
		{"unknown", classify.Unknown, TransferGasUnits},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, EthGasUnits(tt.c))
		})
	}
}

func TestPricing_ZeroActualCost(t *testing.T) {
	g := DefaultPricing.Compare(big.NewInt(0), TransferGasUnits)
	assert.Equal(t, "0", g.TotalSuiGasSpent)
	assert.InDelta(t, 1.575, g.HypotheticalEthGasUSD, 1e-12)
	assert.InDelta(t, 157.5, g.SavingsMultiple, 1e-9, "divides by the epsilon floor")
}

func TestPercentiles(t *testing.T) {
	assert.Equal(t, model.Percentiles{Transactions: 5, Protocols: 24, Volume: 50, ActiveDays: 10}, Percentiles(50, 3, 30))
	assert.Equal(t, model.Percentiles{Transactions: 99, Protocols: 99, Volume: 50, ActiveDays: 99}, Percentiles(5000, 20, 365))
}

func TestWithHoldings(t *testing.T) {
	agg := model.WrappedAggregate{}
	WithHoldings(&agg, model.NFTHoldings{
		Holdings:  []model.NFTHolding{{Collection: "0xa::capy", Count: 2}, {Collection: "0xb::frens", Count: 1}},
		TotalNFTs: 3,
	})
	assert.Equal(t, 2, agg.NFTMetrics.CollectionsInteracted)
	assert.Equal(t, 3, agg.NFTHoldings.TotalNFTs)

	WithHoldings(&agg, model.NFTHoldings{})
	assert.NotNil(t, agg.NFTHoldings.Holdings)
	assert.Zero(t, agg.NFTMetrics.CollectionsInteracted)
}
