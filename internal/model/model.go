// Package model defines the core data structures for sui-wrapped.
package model

import (
	"math/big"
	"time"
)

// Category is the protocol taxonomy bucket a transaction is counted under.
type Category string

// Protocol categories
const (
	CategoryDex     Category = "dex"
	CategoryLending Category = "lending"
	CategoryLST     Category = "lst"
	CategoryNFT     Category = "nft"
	CategoryBridge  Category = "bridge"
	CategoryOther   Category = "other"
)

// Categories lists every category in display order.
var Categories = []Category{
	CategoryDex,
	CategoryLending,
	CategoryLST,
	CategoryNFT,
	CategoryBridge,
	CategoryOther,
}

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// ActionKind describes what a transaction did, derived from the called function name.
type ActionKind string

// Well-known actions. Registry files may introduce additional values.
const (
	ActionSwap            ActionKind = "swap"
	ActionAddLiquidity    ActionKind = "add_liquidity"
	ActionRemoveLiquidity ActionKind = "remove_liquidity"
	ActionLend            ActionKind = "lend"
	ActionBorrow          ActionKind = "borrow"
	ActionRepay           ActionKind = "repay"
	ActionWithdraw        ActionKind = "withdraw"
	ActionStake           ActionKind = "stake"
	ActionUnstake         ActionKind = "unstake"
	ActionNFTBuy          ActionKind = "nft_buy"
	ActionNFTSell         ActionKind = "nft_sell"
	ActionBridge          ActionKind = "bridge"
	ActionTransfer        ActionKind = "transfer"
	ActionOther           ActionKind = "other"
	ActionUnknown         ActionKind = "unknown"
)

// UnknownProtocol is the sentinel protocol name for unclassified transactions.
const UnknownProtocol = "unknown"

// MoveCall identifies one invoked on-chain entry point within a transaction.
type MoveCall struct {
	Package  string `json:"package"`
	Module   string `json:"module"`
	Function string `json:"function"`
}

// GasUsed is the gas cost breakdown of a transaction, in MIST.
type GasUsed struct {
	ComputationCost *big.Int `json:"computationCost"`
	StorageCost     *big.Int `json:"storageCost"`
	StorageRebate   *big.Int `json:"storageRebate"`
}

// Net returns computation + storage - rebate. The result may be negative.
func (g GasUsed) Net() *big.Int {
	net := new(big.Int)
	if g.ComputationCost != nil {
		net.Add(net, g.ComputationCost)
	}
	if g.StorageCost != nil {
		net.Add(net, g.StorageCost)
	}
	if g.StorageRebate != nil {
		net.Sub(net, g.StorageRebate)
	}
	return net
}

// TransactionRecord is one finalized transaction sent by the queried address.
// Records are never mutated after the fetch that produced them.
type TransactionRecord struct {
	Digest      string     `json:"digest"`
	TimestampMs int64      `json:"timestampMs"`
	Checkpoint  uint64     `json:"checkpoint"`
	GasUsed     GasUsed    `json:"gasUsed"`
	Success     bool       `json:"success"`
	Kind        string     `json:"kind"`
	MoveCalls   []MoveCall `json:"moveCalls,omitempty"`
}

// Commands returns the number of embedded calls, with a floor of one.
func (t TransactionRecord) Commands() int {
	if len(t.MoveCalls) == 0 {
		return 1
	}
	return len(t.MoveCalls)
}

// Classification is the output of the protocol classifier for one transaction.
type Classification struct {
	Protocol string     `json:"protocol"`
	Category Category   `json:"category"`
	Action   ActionKind `json:"action"`
}

// IsUnknown reports whether the classification is the unknown sentinel.
func (c Classification) IsUnknown() bool {
	return c.Protocol == UnknownProtocol
}

// ProtocolBreakdown is the per-protocol rollup.
type ProtocolBreakdown struct {
	Protocol         string             `json:"protocol"`
	DisplayName      string             `json:"displayName"`
	Category         Category           `json:"category"`
	TransactionCount int                `json:"transactionCount"`
	CommandCount     int                `json:"commandCount"`
	VolumeUSD        float64            `json:"volumeUsd"`
	GasSpent         float64            `json:"gasSpent"`
	Percentage       float64            `json:"percentage"`
	Actions          map[ActionKind]int `json:"actions,omitempty"`
}

// CategoryBreakdown is the per-category rollup, summed across protocols.
type CategoryBreakdown struct {
	Category         Category `json:"category"`
	TransactionCount int      `json:"transactionCount"`
	CommandCount     int      `json:"commandCount"`
	VolumeUSD        float64  `json:"volumeUsd"`
	GasSpent         float64  `json:"gasSpent"`
	Percentage       float64  `json:"percentage"`
}

// GasSavings compares the gas actually paid with a hypothetical cost on Ethereum.
type GasSavings struct {
	// TotalSuiGasSpent is the exact signed MIST total as a decimal string.
	TotalSuiGasSpent      string  `json:"totalSuiGasSpent"`
	TotalSuiGasUSD        float64 `json:"totalSuiGasUsd"`
	HypotheticalEthGas    uint64  `json:"hypotheticalEthGasUnits"`
	HypotheticalEthGasUSD float64 `json:"hypotheticalEthGasUsd"`
	SavingsUSD            float64 `json:"savingsUsd"`
	SavingsMultiple       float64 `json:"savingsMultiple"`
}

// TradingMetrics summarises DEX activity.
type TradingMetrics struct {
	TotalVolumeUSD       float64 `json:"totalVolumeUsd"`
	MakerVolumeUSD       float64 `json:"makerVolumeUsd"`
	TakerVolumeUSD       float64 `json:"takerVolumeUsd"`
	SwapCount            int     `json:"swapCount"`
	BestTradePercentGain float64 `json:"bestTradePercentGain"`
}

// LendingMetrics summarises lending activity.
type LendingMetrics struct {
	TotalSuppliedUSD            float64  `json:"totalSuppliedUsd"`
	TotalBorrowedUSD            float64  `json:"totalBorrowedUsd"`
	ProtocolsUsed               []string `json:"protocolsUsed"`
	MinHealthFactor             float64  `json:"minHealthFactor"`
	Liquidations                int      `json:"liquidations"`
	CloseCalls                  int      `json:"closeCalls"`
	HealthFactorResilienceScore float64  `json:"healthFactorResilienceScore"`
}

// LSTPosition is one liquid staking token the address interacted with.
type LSTPosition struct {
	Token       string  `json:"token"`
	DisplayName string  `json:"displayName"`
	Amount      float64 `json:"amount"`
	Percentage  float64 `json:"percentage"`
}

// StakingMetrics summarises staking activity.
type StakingMetrics struct {
	TotalStakedSui     float64       `json:"totalStakedSui"`
	TotalRewardsEarned float64       `json:"totalRewardsEarned"`
	LSTPortfolio       []LSTPosition `json:"lstPortfolio"`
	LongestStakeDays   int           `json:"longestStakeDays"`
	IsStillHolding     bool          `json:"isStillHolding"`
}

// NFTMetrics summarises NFT trading activity.
type NFTMetrics struct {
	TotalBought           int     `json:"totalBought"`
	TotalSold             int     `json:"totalSold"`
	VolumeUSD             float64 `json:"volumeUsd"`
	RoyaltiesPaidUSD      float64 `json:"royaltiesPaidUsd"`
	CollectionsInteracted int     `json:"collectionsInteracted"`
	CreatorSupportScore   float64 `json:"creatorSupportScore"`
}

// NFTHolding is one collection held by the address.
type NFTHolding struct {
	Collection  string `json:"collection"`
	DisplayName string `json:"displayName"`
	Count       int    `json:"count"`
	IsBluechip  bool   `json:"isBluechip"`
	ImageURL    string `json:"imageUrl,omitempty"`
}

// NFTHoldings is the output of the holdings scan.
type NFTHoldings struct {
	Holdings      []NFTHolding `json:"holdings"`
	TotalNFTs     int          `json:"totalNFTs"`
	BluechipCount int          `json:"bluechipCount"`
}

// Percentiles are rough estimates of where the address sits among all users.
type Percentiles struct {
	Transactions float64 `json:"transactions"`
	Protocols    float64 `json:"protocols"`
	Volume       float64 `json:"volume"`
	ActiveDays   float64 `json:"activeDays"`
}

// WrappedAggregate is the pipeline output, cached and serialised at the boundary.
type WrappedAggregate struct {
	Address            string `json:"address"`
	Year               int    `json:"year"`
	CurrentBalanceMist string `json:"currentBalanceMist,omitempty"`

	FirstTransactionTimestamp int64   `json:"firstTransactionTimestamp"`
	FirstTransactionDigest    string  `json:"firstTransactionDigest"`
	FirstTransactionAction    string  `json:"firstTransactionAction"`
	FirstTransactionProtocol  string  `json:"firstTransactionProtocol,omitempty"`
	DaysAfterMainnetLaunch    int     `json:"daysAfterMainnetLaunch"`
	EarlierThanPercentage     float64 `json:"earlierThanPercentage"`

	TotalTransactions int      `json:"totalTransactions"`
	TotalCommands     int      `json:"totalCommands"`
	ActiveDays        int      `json:"activeDays"`
	UniqueProtocols   []string `json:"uniqueProtocols"`

	GasSavings GasSavings `json:"gasSavings"`

	ProtocolBreakdown []ProtocolBreakdown            `json:"protocolBreakdown"`
	CategoryBreakdown map[Category]CategoryBreakdown `json:"categoryBreakdown"`

	TradingMetrics TradingMetrics `json:"tradingMetrics"`
	LendingMetrics LendingMetrics `json:"lendingMetrics"`
	StakingMetrics StakingMetrics `json:"stakingMetrics"`
	NFTMetrics     NFTMetrics     `json:"nftMetrics"`
	NFTHoldings    NFTHoldings    `json:"nftHoldings"`

	Persona           Persona `json:"persona"`
	PersonaConfidence float64 `json:"personaConfidence"`
	PersonaReasoning  string  `json:"personaReasoning"`

	Percentiles Percentiles `json:"percentiles"`

	GeneratedAt       int64  `json:"generatedAt"`
	IndexerCheckpoint uint64 `json:"indexerCheckpoint"`
}

// Window is the inclusive time range a report covers.
type Window struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Contains reports whether the millisecond timestamp falls inside the window.
func (w Window) Contains(timestampMs int64) bool {
	return timestampMs >= w.Start.UnixMilli() && timestampMs <= w.End.UnixMilli()
}

// YearWindow returns the UTC calendar year as a window.
func YearWindow(year int) Window {
	start := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	return Window{
		Start: start,
		End:   start.AddDate(1, 0, 0).Add(-time.Millisecond),
	}
}
