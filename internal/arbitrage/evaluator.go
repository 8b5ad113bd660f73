package arbitrage

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/cm777-dev/crypto-arbitrage-bot/internal/fees"
	"github.com/cm777-dev/crypto-arbitrage-bot/internal/model"
)

var (
	hundred        = decimal.NewFromInt(100)
	maxSlippagePct = decimal.NewFromInt(5)
)

// EvalInput describes a single buy/sell quote pair to score.
// Liquidity is the available market depth in quote-currency terms.
type EvalInput struct {
	BuyExchange  string
	SellExchange string
	Pair         string
	BuyPrice     decimal.Decimal
	SellPrice    decimal.Decimal
	Amount       decimal.Decimal
	Liquidity    decimal.Decimal
}

// Evaluator scores buy/sell quote pairs into opportunity verdicts.
// Evaluate is a pure function of its input and the fee schedule.
type Evaluator struct {
	fees *fees.Schedule
}

// NewEvaluator creates an Evaluator backed by the given fee schedule.
func NewEvaluator(schedule *fees.Schedule) *Evaluator {
	return &Evaluator{fees: schedule}
}

// Evaluate computes the full profit/risk verdict for a quote pair.
// All money math is decimal; netProfit = grossProfit - buyFee - sellFee - withdrawalFee
// holds exactly. Returns InvalidInputError for non-positive amount or liquidity,
// or a pair without a separator.
func (e *Evaluator) Evaluate(in EvalInput) (model.Opportunity, error) {
	if !in.Amount.IsPositive() {
		return model.Opportunity{}, &model.InvalidInputError{Field: "amount", Reason: "must be positive"}
	}
	if !in.Liquidity.IsPositive() {
		return model.Opportunity{}, &model.InvalidInputError{Field: "liquidity", Reason: "must be positive"}
	}
	base, _, err := model.SplitPair(in.Pair)
	if err != nil {
		return model.Opportunity{}, err
	}

	gross, net, breakdown := e.profit(in.BuyExchange, in.SellExchange, in.BuyPrice, in.SellPrice, in.Amount, base)

	// Slippage grows linearly with the traded share of available
	// liquidity and is capped at 5%.
	slippage := decimal.Min(in.Amount.Div(in.Liquidity).Mul(hundred), maxSlippagePct)

	slipFactor := slippage.Div(hundred)
	effectiveBuy := in.BuyPrice.Mul(decimal.NewFromInt(1).Add(slipFactor))
	effectiveSell := in.SellPrice.Mul(decimal.NewFromInt(1).Sub(slipFactor))
	_, adjusted, _ := e.profit(in.BuyExchange, in.SellExchange, effectiveBuy, effectiveSell, in.Amount, base)

	transfer := fees.TransferMinutes(base)
	withinLimits := e.withinLimits(in.BuyExchange, in.SellExchange, base, in.Amount)

	return model.Opportunity{
		Pair:                in.Pair,
		BuyExchange:         in.BuyExchange,
		SellExchange:        in.SellExchange,
		BuyPrice:            in.BuyPrice,
		SellPrice:           in.SellPrice,
		Amount:              in.Amount,
		GrossProfit:         gross,
		NetProfit:           net,
		AdjustedProfit:      adjusted,
		Fees:                breakdown,
		SlippagePct:         slippage,
		TransferTimeMinutes: transfer,
		WithinLimits:        withinLimits,
		IsViable:            adjusted.IsPositive() && withinLimits,
		RiskLevel:           riskLevel(slippage, transfer, adjusted),
		Timestamp:           time.Now(),
	}, nil
}

// profit computes gross and net profit with the full fee breakdown.
func (e *Evaluator) profit(buyExchange, sellExchange string, buyPrice, sellPrice, amount decimal.Decimal, baseAsset string) (gross, net decimal.Decimal, breakdown model.FeesBreakdown) {
	gross = sellPrice.Sub(buyPrice).Mul(amount)

	buyFee := amount.Mul(buyPrice).Mul(e.fees.Taker(buyExchange))
	sellFee := amount.Mul(sellPrice).Mul(e.fees.Taker(sellExchange))
	withdrawalFee := e.fees.Withdrawal(buyExchange, baseAsset)

	net = gross.Sub(buyFee).Sub(sellFee).Sub(withdrawalFee)
	breakdown = model.FeesBreakdown{
		Buy:        buyFee,
		Sell:       sellFee,
		Withdrawal: withdrawalFee,
		Total:      buyFee.Add(sellFee).Add(withdrawalFee),
	}
	return gross, net, breakdown
}

// withinLimits reports whether amount fits both exchanges' configured
// trading limits for the asset. Missing limits on either side fail the check.
func (e *Evaluator) withinLimits(buyExchange, sellExchange, asset string, amount decimal.Decimal) bool {
	buyLimit, ok := e.fees.Limit(buyExchange, asset)
	if !ok {
		return false
	}
	sellLimit, ok := e.fees.Limit(sellExchange, asset)
	if !ok {
		return false
	}
	return amount.GreaterThanOrEqual(buyLimit.Min) &&
		amount.LessThanOrEqual(buyLimit.Max) &&
		amount.GreaterThanOrEqual(sellLimit.Min) &&
		amount.LessThanOrEqual(sellLimit.Max)
}

// riskLevel scores slippage (0-40), transfer time (0-30) and profit margin
// (0-30) into a risk tier: <30 low, <60 medium, else high.
func riskLevel(slippagePct decimal.Decimal, transferMinutes int, adjustedProfit decimal.Decimal) model.RiskLevel {
	score := slippagePct.Div(maxSlippagePct).Mul(decimal.NewFromInt(40))

	transferScore := decimal.NewFromInt(int64(transferMinutes)).
		Div(decimal.NewFromInt(30)).
		Mul(decimal.NewFromInt(30))
	score = score.Add(transferScore)

	marginScore := decimal.Max(decimal.Zero, decimal.NewFromInt(1).Sub(adjustedProfit.Div(hundred))).
		Mul(decimal.NewFromInt(30))
	score = score.Add(marginScore)

	switch {
	case score.LessThan(decimal.NewFromInt(30)):
		return model.RiskLow
	case score.LessThan(decimal.NewFromInt(60)):
		return model.RiskMedium
	default:
		return model.RiskHigh
	}
}
