// Package persona derives a single behavioural label from aggregate statistics.
package persona

import (
	"fmt"
	"math"

	"github.com/yourorg/sui-wrapped/internal/model"
)

// MaxConfidence caps the reported confidence.
const MaxConfidence = 0.95

// Default is returned when no rule is eligible.
var Default = model.PersonaResult{
	Persona:    model.PersonaBalancedBuilder,
	Confidence: 0.5,
	Reasoning:  "Well-rounded Sui ecosystem participant",
}

// Stats are the inputs the rules look at.
type Stats struct {
	TotalTransactions int
	UniqueProtocols   int
	DaysAfterMainnet  int
	ActiveDays        int

	// CategoryShare holds each category's percentage of all transactions.
	CategoryShare map[model.Category]float64
}

// StatsFrom extracts scorer input from an aggregate.
func StatsFrom(agg model.WrappedAggregate) Stats {
	shares := make(map[model.Category]float64, len(agg.CategoryBreakdown))
	for cat, entry := range agg.CategoryBreakdown {
		shares[cat] = entry.Percentage
	}
	return Stats{
		TotalTransactions: agg.TotalTransactions,
		UniqueProtocols:   len(agg.UniqueProtocols),
		DaysAfterMainnet:  agg.DaysAfterMainnetLaunch,
		ActiveDays:        agg.ActiveDays,
		CategoryShare:     shares,
	}
}

// Candidate is an eligible rule's proposal.
type Candidate struct {
	Persona   model.Persona
	Score     float64
	Reasoning string
}

// Rule either abstains or proposes a candidate.
type Rule struct {
	Name     string
	Evaluate func(Stats) (Candidate, bool)
}

// Thresholds configures the built-in rules.
type Thresholds struct {
	EarlyBirdMaxDays        int
	MaximalistMinTxs        int
	MaximalistMinProtocols  int
	YieldMinSharePct        float64
	CollectorMinSharePct    float64
	LongTenureMinActiveDays int
	TraderMinSharePct       float64
}

// DefaultThresholds are the production thresholds.
var DefaultThresholds = Thresholds{
	EarlyBirdMaxDays:        90,
	MaximalistMinTxs:        100,
	MaximalistMinProtocols:  3,
	YieldMinSharePct:        40,
	CollectorMinSharePct:    30,
	LongTenureMinActiveDays: 180,
	TraderMinSharePct:       60,
}

// Rules builds the ordered rule set. Declaration order breaks score ties.
func Rules(t Thresholds) []Rule {
	return []Rule{
		{
			Name: "early_bird",
			Evaluate: func(s Stats) (Candidate, bool) {
				if s.DaysAfterMainnet > t.EarlyBirdMaxDays {
					return Candidate{}, false
				}
				return Candidate{
					Persona:   model.PersonaEarlyBird,
					Score:     float64(100 - s.DaysAfterMainnet),
					Reasoning: fmt.Sprintf("Joined %d days after mainnet launch", s.DaysAfterMainnet),
				}, true
			},
		},
		{
			Name: "move_maximalist",
			Evaluate: func(s Stats) (Candidate, bool) {
				if s.TotalTransactions <= t.MaximalistMinTxs || s.UniqueProtocols <= t.MaximalistMinProtocols {
					return Candidate{}, false
				}
				return Candidate{
					Persona:   model.PersonaMoveMaximalist,
					Score:     float64(s.TotalTransactions)/10 + float64(s.UniqueProtocols)*5,
					Reasoning: fmt.Sprintf("%d transactions across %d protocols", s.TotalTransactions, s.UniqueProtocols),
				}, true
			},
		},
		{
			Name: "yield_architect",
			Evaluate: func(s Stats) (Candidate, bool) {
				share := s.CategoryShare[model.CategoryLending] + s.CategoryShare[model.CategoryLST]
				if share <= t.YieldMinSharePct {
					return Candidate{}, false
				}
				return Candidate{
					Persona:   model.PersonaYieldArchitect,
					Score:     share * 1.5,
					Reasoning: fmt.Sprintf("%.0f%% of activity in yield protocols", share),
				}, true
			},
		},
		{
			Name: "jpeg_mogul",
			Evaluate: func(s Stats) (Candidate, bool) {
				share := s.CategoryShare[model.CategoryNFT]
				if share <= t.CollectorMinSharePct {
					return Candidate{}, false
				}
				return Candidate{
					Persona:   model.PersonaJPEGMogul,
					Score:     share * 2,
					Reasoning: fmt.Sprintf("%.0f%% NFT activity", share),
				}, true
			},
		},
		{
			Name: "diamond_hand",
			Evaluate: func(s Stats) (Candidate, bool) {
				if s.ActiveDays <= t.LongTenureMinActiveDays {
					return Candidate{}, false
				}
				return Candidate{
					Persona:   model.PersonaDiamondHand,
					Score:     float64(s.ActiveDays) / 3,
					Reasoning: fmt.Sprintf("Active for %d days", s.ActiveDays),
				}, true
			},
		},
		{
			// heavy DEX use is reported under the maximalist label
			Name: "dex_trader",
			Evaluate: func(s Stats) (Candidate, bool) {
				share := s.CategoryShare[model.CategoryDex]
				if share <= t.TraderMinSharePct {
					return Candidate{}, false
				}
				return Candidate{
					Persona:   model.PersonaMoveMaximalist,
					Score:     share,
					Reasoning: fmt.Sprintf("%.0f%% DEX trading activity", share),
				}, true
			},
		},
	}
}

// Scorer picks the highest scoring eligible rule.
type Scorer struct {
	rules []Rule
}

// New creates a Scorer with the given rules; nil selects the default rule set.
func New(rules []Rule) *Scorer {
	if rules == nil {
		rules = Rules(DefaultThresholds)
	}
	return &Scorer{rules: rules}
}

// Score returns the winning persona, or Default when no rule is eligible.
func (s *Scorer) Score(stats Stats) model.PersonaResult {
	var (
		best  Candidate
		found bool
	)
	for _, rule := range s.rules {
		c, ok := rule.Evaluate(stats)
		if !ok {
			continue
		}
		if !found || c.Score > best.Score {
			best = c
			found = true
		}
	}
	if !found {
		return Default
	}
	return model.PersonaResult{
		Persona:    best.Persona,
		Confidence: math.Max(0, math.Min(best.Score/100, MaxConfidence)),
		Reasoning:  best.Reasoning,
	}
}
