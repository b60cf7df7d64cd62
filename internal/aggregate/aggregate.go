// Package aggregate reduces a window of classified transactions into the report aggregate.
package aggregate

import (
	"fmt"
	"math"
	"math/big"
	"sort"
	"time"

	"github.com/yourorg/sui-wrapped/internal/classify"
	"github.com/yourorg/sui-wrapped/internal/model"
	"github.com/yourorg/sui-wrapped/internal/validation"
)

// MainnetLaunch is the reference date for arrival metrics.
var MainnetLaunch = validation.MainnetLaunch

const (
	earlyWindowDays        = 600
	healthFactorUnknown    = 999
	resilienceScoreDefault = 100
	dayMs                  = int64(24 * time.Hour / time.Millisecond)
)

// Aggregator builds a WrappedAggregate from an ascending transaction window.
type Aggregator struct {
	classifier *classify.Classifier
	pricing    Pricing
}

// New creates an Aggregator using classifier and DefaultPricing.
func New(classifier *classify.Classifier) *Aggregator {
	return &Aggregator{classifier: classifier, pricing: DefaultPricing}
}

// WithPricing overrides the USD pricing constants.
func (a *Aggregator) WithPricing(p Pricing) *Aggregator {
	a.pricing = p
	return a
}

type protocolStats struct {
	name     string
	category model.Category
	count    int
	commands int
	actions  map[model.ActionKind]int
}

// Aggregate reduces txs, which must be ascending by timestamp, into a report.
// lifetimeFirst is the address's first ever transaction; nil falls back to txs[0].
// Persona, holdings and generation time are left for the caller to fill.
func (a *Aggregator) Aggregate(address string, year int, txs []model.TransactionRecord, lifetimeFirst *model.TransactionRecord) (model.WrappedAggregate, error) {
	if len(txs) == 0 {
		return model.WrappedAggregate{}, model.NewError(model.CodeNoTransactions, nil, "no transactions found for %s in %d", address, year)
	}
	for i := 1; i < len(txs); i++ {
		if txs[i].TimestampMs < txs[i-1].TimestampMs {
			return model.WrappedAggregate{}, fmt.Errorf("transactions not ascending at index %d", i)
		}
	}

	total := len(txs)
	totalGas := new(big.Int)
	totalCommands := 0
	var ethUnits uint64
	var checkpoint uint64
	days := make(map[string]struct{})
	byProtocol := make(map[string]*protocolStats)
	classifications := make([]model.Classification, total)

	for i, tx := range txs {
		c := a.classifier.Classify(tx)
		classifications[i] = c

		totalGas.Add(totalGas, tx.GasUsed.Net())
		totalCommands += tx.Commands()
		ethUnits += EthGasUnits(c)
		days[time.UnixMilli(tx.TimestampMs).UTC().Format("2006-01-02")] = struct{}{}
		if tx.Checkpoint > checkpoint {
			checkpoint = tx.Checkpoint
		}

		stats, ok := byProtocol[c.Protocol]
		if !ok {
			stats = &protocolStats{name: c.Protocol, category: c.Category, actions: make(map[model.ActionKind]int)}
			byProtocol[c.Protocol] = stats
		}
		stats.count++
		stats.commands += tx.Commands()
		stats.actions[c.Action]++
	}

	agg := model.WrappedAggregate{
		Address:           address,
		Year:              year,
		TotalTransactions: total,
		TotalCommands:     totalCommands,
		ActiveDays:        len(days),
		GasSavings:        a.pricing.Compare(totalGas, ethUnits),
		IndexerCheckpoint: checkpoint,
	}

	a.arrival(&agg, txs[0], classifications[0], lifetimeFirst)
	agg.ProtocolBreakdown = a.protocolBreakdown(byProtocol, total)
	agg.CategoryBreakdown = categoryBreakdown(byProtocol, total)

	agg.UniqueProtocols = make([]string, 0, len(agg.ProtocolBreakdown))
	for _, p := range agg.ProtocolBreakdown {
		agg.UniqueProtocols = append(agg.UniqueProtocols, p.Protocol)
	}

	agg.TradingMetrics = tradingMetrics(byProtocol, agg.CategoryBreakdown)
	agg.LendingMetrics = lendingMetrics(agg.ProtocolBreakdown)
	agg.StakingMetrics = stakingMetrics(agg.ProtocolBreakdown)
	agg.NFTMetrics = nftMetrics(byProtocol)
	agg.NFTHoldings = model.NFTHoldings{Holdings: []model.NFTHolding{}}
	agg.Percentiles = Percentiles(total, len(agg.UniqueProtocols), agg.ActiveDays)

	return agg, nil
}

// arrival fills the first-transaction block.
func (a *Aggregator) arrival(agg *model.WrappedAggregate, first model.TransactionRecord, firstClass model.Classification, lifetimeFirst *model.TransactionRecord) {
	joined := first
	if lifetimeFirst != nil && lifetimeFirst.TimestampMs > 0 {
		joined = *lifetimeFirst
	}

	daysAfter := DaysAfterLaunch(joined.TimestampMs)
	agg.FirstTransactionTimestamp = joined.TimestampMs
	agg.FirstTransactionDigest = joined.Digest
	agg.DaysAfterMainnetLaunch = max(daysAfter, 0)
	agg.EarlierThanPercentage = clamp(100-float64(daysAfter)/earlyWindowDays*100, 0, 100)

	agg.FirstTransactionAction = "Transaction"
	if len(first.MoveCalls) > 0 && first.MoveCalls[0].Function != "" {
		agg.FirstTransactionAction = first.MoveCalls[0].Function
	}
	agg.FirstTransactionProtocol = firstClass.Protocol
}

// DaysAfterLaunch returns whole days between mainnet launch and timestampMs, negative if earlier.
func DaysAfterLaunch(timestampMs int64) int {
	diff := timestampMs - MainnetLaunch.UnixMilli()
	days := diff / dayMs
	if diff < 0 && diff%dayMs != 0 {
		days--
	}
	return int(days)
}

func (a *Aggregator) protocolBreakdown(byProtocol map[string]*protocolStats, total int) []model.ProtocolBreakdown {
	out := make([]model.ProtocolBreakdown, 0, len(byProtocol))
	for name, stats := range byProtocol {
		if name == model.UnknownProtocol {
			continue
		}
		actions := make(map[model.ActionKind]int, len(stats.actions))
		for k, v := range stats.actions {
			actions[k] = v
		}
		out = append(out, model.ProtocolBreakdown{
			Protocol:         name,
			DisplayName:      a.classifier.DisplayName(name),
			Category:         stats.category,
			TransactionCount: stats.count,
			CommandCount:     stats.commands,
			Percentage:       percent(stats.count, total),
			Actions:          actions,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TransactionCount != out[j].TransactionCount {
			return out[i].TransactionCount > out[j].TransactionCount
		}
		return out[i].Protocol < out[j].Protocol
	})
	return out
}

// categoryBreakdown always carries every category; unknown transactions land in other.
func categoryBreakdown(byProtocol map[string]*protocolStats, total int) map[model.Category]model.CategoryBreakdown {
	out := make(map[model.Category]model.CategoryBreakdown, len(model.Categories))
	for _, cat := range model.Categories {
		out[cat] = model.CategoryBreakdown{Category: cat}
	}
	for _, stats := range byProtocol {
		cat := stats.category
		if !cat.Valid() {
			cat = model.CategoryOther
		}
		entry := out[cat]
		entry.TransactionCount += stats.count
		entry.CommandCount += stats.commands
		out[cat] = entry
	}
	for cat, entry := range out {
		entry.Percentage = percent(entry.TransactionCount, total)
		out[cat] = entry
	}
	return out
}

func tradingMetrics(byProtocol map[string]*protocolStats, categories map[model.Category]model.CategoryBreakdown) model.TradingMetrics {
	swaps := 0
	for _, stats := range byProtocol {
		if stats.category == model.CategoryDex {
			swaps += stats.actions[model.ActionSwap]
		}
	}
	if swaps == 0 {
		swaps = categories[model.CategoryDex].TransactionCount
	}
	return model.TradingMetrics{SwapCount: swaps}
}

func lendingMetrics(breakdown []model.ProtocolBreakdown) model.LendingMetrics {
	used := []string{}
	for _, p := range breakdown {
		if p.Category == model.CategoryLending {
			used = append(used, p.DisplayName)
		}
	}
	return model.LendingMetrics{
		ProtocolsUsed:               used,
		MinHealthFactor:             healthFactorUnknown,
		HealthFactorResilienceScore: resilienceScoreDefault,
	}
}

func stakingMetrics(breakdown []model.ProtocolBreakdown) model.StakingMetrics {
	portfolio := []model.LSTPosition{}
	for _, p := range breakdown {
		if p.Category == model.CategoryLST {
			portfolio = append(portfolio, model.LSTPosition{
				Token:       p.Protocol,
				DisplayName: p.DisplayName,
				Percentage:  p.Percentage,
			})
		}
	}
	return model.StakingMetrics{LSTPortfolio: portfolio}
}

func nftMetrics(byProtocol map[string]*protocolStats) model.NFTMetrics {
	var m model.NFTMetrics
	for _, stats := range byProtocol {
		if stats.category != model.CategoryNFT {
			continue
		}
		m.TotalBought += stats.actions[model.ActionNFTBuy]
		m.TotalSold += stats.actions[model.ActionNFTSell]
	}
	return m
}

// WithHoldings merges an NFT scan result into agg.
func WithHoldings(agg *model.WrappedAggregate, holdings model.NFTHoldings) {
	if holdings.Holdings == nil {
		holdings.Holdings = []model.NFTHolding{}
	}
	agg.NFTHoldings = holdings
	agg.NFTMetrics.CollectionsInteracted = len(holdings.Holdings)
}

// Percentiles estimates rank among all users from simple scaled counts.
func Percentiles(transactions, protocols, activeDays int) model.Percentiles {
	return model.Percentiles{
		Transactions: math.Min(99, float64(transactions)/10),
		Protocols:    math.Min(99, float64(protocols)*8),
		Volume:       50,
		ActiveDays:   math.Min(99, float64(activeDays)/3),
	}
}

func percent(count, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(count) / float64(total) * 100
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
