package aggregate

import (
	"math/big"

	"github.com/shopspring/decimal"

	"github.com/yourorg/sui-wrapped/internal/model"
)

// Pricing holds the illustrative constants used to express gas in USD.
type Pricing struct {
	SuiUSD       decimal.Decimal
	EthUSD       decimal.Decimal
	EthGasGwei   decimal.Decimal
	MinActualUSD decimal.Decimal
}

// DefaultPricing is SUI at $3.50, ETH at $2500 and 30 gwei.
var DefaultPricing = Pricing{
	SuiUSD:       decimal.RequireFromString("3.5"),
	EthUSD:       decimal.NewFromInt(2500),
	EthGasGwei:   decimal.NewFromInt(30),
	MinActualUSD: decimal.RequireFromString("0.01"),
}

// TransferGasUnits is the cost of a plain ETH transfer, the global fallback.
const TransferGasUnits uint64 = 21000

type gasKey struct {
	action   model.ActionKind
	category model.Category
}

// ethGasUnits estimates what each action would cost on Ethereum mainnet.
var ethGasUnits = map[gasKey]uint64{
	{model.ActionSwap, model.CategoryDex}:            184523,
	{model.ActionAddLiquidity, model.CategoryDex}:    350000,
	{model.ActionRemoveLiquidity, model.CategoryDex}: 250000,
	{model.ActionLend, model.CategoryLending}:        250000,
	{model.ActionBorrow, model.CategoryLending}:      350000,
	{model.ActionRepay, model.CategoryLending}:       200000,
	{model.ActionWithdraw, model.CategoryLending}:    200000,
	{model.ActionStake, model.CategoryLST}:           150000,
	{model.ActionUnstake, model.CategoryLST}:         150000,
	{model.ActionNFTBuy, model.CategoryNFT}:          200000,
	{model.ActionNFTSell, model.CategoryNFT}:         150000,
	{model.ActionTransfer, model.CategoryOther}:      TransferGasUnits,
}

var categoryGasUnits = map[model.Category]uint64{
	model.CategoryDex:     150000,
	model.CategoryLending: 250000,
	model.CategoryLST:     150000,
	model.CategoryNFT:     150000,
}

// EthGasUnits looks up the (action, category) cost, then the category default, then a plain transfer.
func EthGasUnits(c model.Classification) uint64 {
	if units, ok := ethGasUnits[gasKey{c.Action, c.Category}]; ok {
		return units
	}
	if units, ok := categoryGasUnits[c.Category]; ok {
		return units
	}
	return TransferGasUnits
}

// Compare converts the exact MIST total and the hypothetical Ethereum gas units into USD.
// A negative MIST total is reported verbatim but valued at zero.
func (p Pricing) Compare(totalMist *big.Int, ethUnits uint64) model.GasSavings {
	mist := new(big.Int).Set(totalMist)
	valued := mist
	if mist.Sign() < 0 {
		valued = new(big.Int)
	}

	suiUSD := decimal.NewFromBigInt(valued, -9).Mul(p.SuiUSD)
	ethUSD := decimal.NewFromInt(int64(ethUnits)).
		Mul(p.EthGasGwei).
		Shift(-9).
		Mul(p.EthUSD)

	return model.GasSavings{
		TotalSuiGasSpent:      mist.String(),
		TotalSuiGasUSD:        suiUSD.InexactFloat64(),
		HypotheticalEthGas:    ethUnits,
		HypotheticalEthGasUSD: ethUSD.InexactFloat64(),
		SavingsUSD:            ethUSD.Sub(suiUSD).InexactFloat64(),
		SavingsMultiple:       ethUSD.Div(decimal.Max(suiUSD, p.MinActualUSD)).InexactFloat64(),
	}
}
