// Package backtest replays historical price series through the fee model
// and simulates a portfolio to produce aggregate performance metrics.
// Replay is strictly single-threaded: portfolio mutation order is
// significant for determinism and must never be parallelized.
package backtest

import (
	"log/slog"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cm777-dev/crypto-arbitrage-bot/internal/fees"
	"github.com/cm777-dev/crypto-arbitrage-bot/internal/model"
)

var one = decimal.NewFromInt(1)

// PricePoint is one historical snapshot: per-exchange prices for the
// simulated pair plus the available base-asset volume.
type PricePoint struct {
	Timestamp time.Time                  `json:"timestamp"`
	Prices    map[string]decimal.Decimal `json:"prices"`
	Volume    decimal.Decimal            `json:"volume"`
}

// Config enumerates every recognized backtest option.
type Config struct {
	// Pair is the simulated trading pair, e.g. "BTC/USDT".
	Pair string `json:"pair"`
	// InitialBalanceUSD seeds the portfolio.
	InitialBalanceUSD decimal.Decimal `json:"initialBalanceUSD"`
	// StartDate and EndDate bound the replayed series; zero values disable
	// the bound.
	StartDate time.Time `json:"startDate"`
	EndDate   time.Time `json:"endDate"`
	// MinProfitThresholdUSD is the candidate filter floor.
	MinProfitThresholdUSD decimal.Decimal `json:"minProfitThresholdUSD"`
	// MaxTradeAmountUSD caps the principal per trade.
	MaxTradeAmountUSD decimal.Decimal `json:"maxTradeAmountUSD"`
	// ReferenceExchange prices the portfolio for drawdown tracking.
	ReferenceExchange string `json:"referenceExchange"`
}

// Validate rejects out-of-range configuration eagerly.
func (c Config) Validate() error {
	if _, _, err := model.SplitPair(c.Pair); err != nil {
		return err
	}
	if !c.InitialBalanceUSD.IsPositive() {
		return &model.InvalidInputError{Field: "initialBalanceUSD", Reason: "must be positive"}
	}
	if c.MinProfitThresholdUSD.IsNegative() {
		return &model.InvalidInputError{Field: "minProfitThresholdUSD", Reason: "must not be negative"}
	}
	if !c.MaxTradeAmountUSD.IsPositive() {
		return &model.InvalidInputError{Field: "maxTradeAmountUSD", Reason: "must be positive"}
	}
	if c.ReferenceExchange == "" {
		return &model.InvalidInputError{Field: "referenceExchange", Reason: "must be set"}
	}
	return nil
}

// Metrics aggregates trading performance across a run.
type Metrics struct {
	TotalTrades      int                 `json:"totalTrades"`
	SuccessfulTrades int                 `json:"successfulTrades"`
	FailedTrades     int                 `json:"failedTrades"`
	TotalProfit      decimal.Decimal     `json:"totalProfit"`
	MaxDrawdownPct   decimal.Decimal     `json:"maxDrawdownPct"`
	ProfitFactor     decimal.Decimal     `json:"profitFactor"`
	WinRatePct       decimal.Decimal     `json:"winRatePct"`
	Trades           []model.TradeRecord `json:"trades"`
}

// Summary condenses a finished run.
type Summary struct {
	InitialBalance   decimal.Decimal `json:"initialBalance"`
	FinalBalance     decimal.Decimal `json:"finalBalance"`
	TotalTrades      int             `json:"totalTrades"`
	SuccessfulTrades int             `json:"successfulTrades"`
	FailedTrades     int             `json:"failedTrades"`
	TotalProfit      decimal.Decimal `json:"totalProfit"`
	ProfitFactor     decimal.Decimal `json:"profitFactor"`
	WinRatePct       decimal.Decimal `json:"winRatePct"`
	MaxDrawdownPct   decimal.Decimal `json:"maxDrawdownPct"`
}

// Report is the final output of a run: summary, trade ledger and the
// configuration that produced them.
type Report struct {
	Summary Summary             `json:"summary"`
	Trades  []model.TradeRecord `json:"trades"`
	Config  Config              `json:"config"`
}

// candidate is a discovered price spread worth validating.
type candidate struct {
	buyExchange     string
	sellExchange    string
	buyPrice        decimal.Decimal
	sellPrice       decimal.Decimal
	potentialProfit decimal.Decimal
	timestamp       time.Time
}

// Engine replays a historical series and mutates a simulated portfolio.
// Exactly one portfolio lives per run; Run must be called once.
type Engine struct {
	logger    *slog.Logger
	fees      *fees.Schedule
	cfg       Config
	baseAsset string

	portfolio map[string]decimal.Decimal
	metrics   Metrics

	maxPortfolioValue decimal.Decimal
	lastRefPrice      decimal.Decimal
	totalWins         decimal.Decimal
	totalLosses       decimal.Decimal
}

// NewEngine creates a backtest engine. Invalid configuration is fatal.
func NewEngine(logger *slog.Logger, schedule *fees.Schedule, cfg Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	base, _, err := model.SplitPair(cfg.Pair)
	if err != nil {
		return nil, err
	}
	return &Engine{
		logger:    logger,
		fees:      schedule,
		cfg:       cfg,
		baseAsset: base,
		portfolio: map[string]decimal.Decimal{
			"USD": cfg.InitialBalanceUSD,
			base:  decimal.Zero,
		},
		maxPortfolioValue: cfg.InitialBalanceUSD,
		totalWins:         decimal.Zero,
		totalLosses:       decimal.Zero,
	}, nil
}

// Balance returns the current balance of an asset.
func (e *Engine) Balance(asset string) decimal.Decimal {
	return e.portfolio[asset]
}

// Run replays the series in ascending timestamp order and returns the
// final report.
func (e *Engine) Run(series []PricePoint) Report {
	e.logger.Info("starting backtest", "initialBalance", e.cfg.InitialBalanceUSD.String(), "points", len(series))

	for _, point := range series {
		if !e.cfg.StartDate.IsZero() && point.Timestamp.Before(e.cfg.StartDate) {
			continue
		}
		if !e.cfg.EndDate.IsZero() && point.Timestamp.After(e.cfg.EndDate) {
			continue
		}
		e.processSnapshot(point)
	}

	e.finalizeMetrics()
	return e.report()
}

// processSnapshot discovers, validates and executes candidates for one
// snapshot, then updates the drawdown track.
func (e *Engine) processSnapshot(point PricePoint) {
	for _, cand := range e.findCandidates(point) {
		if !e.validateTrade(cand) {
			continue
		}
		record := e.executeTrade(cand)

		e.metrics.TotalTrades++
		if record.Profit.IsPositive() {
			e.metrics.SuccessfulTrades++
			e.totalWins = e.totalWins.Add(record.Profit)
		} else {
			e.metrics.FailedTrades++
			e.totalLosses = e.totalLosses.Add(record.Profit.Abs())
		}
		e.metrics.Trades = append(e.metrics.Trades, record)

		e.updateDrawdown(point)
	}
}

// findCandidates scans every unordered pair of exchanges in the snapshot and
// scores the cheap-buy/dear-sell direction with the volume-only heuristic.
// Exchange names are iterated sorted so replay stays deterministic.
func (e *Engine) findCandidates(point PricePoint) []candidate {
	names := make([]string, 0, len(point.Prices))
	for name := range point.Prices {
		names = append(names, name)
	}
	sort.Strings(names)

	var out []candidate
	for i := 0; i < len(names); i++ {
		for j := i + 1; j < len(names); j++ {
			buy, sell := names[i], names[j]
			if point.Prices[sell].LessThan(point.Prices[buy]) {
				buy, sell = sell, buy
			}
			buyPrice, sellPrice := point.Prices[buy], point.Prices[sell]
			if !buyPrice.LessThan(sellPrice) {
				continue
			}

			profit := e.potentialProfit(buy, sell, buyPrice, sellPrice, point.Volume)
			if profit.GreaterThan(e.cfg.MinProfitThresholdUSD) {
				out = append(out, candidate{
					buyExchange:     buy,
					sellExchange:    sell,
					buyPrice:        buyPrice,
					sellPrice:       sellPrice,
					potentialProfit: profit,
					timestamp:       point.Timestamp,
				})
			}
		}
	}
	return out
}

// potentialProfit estimates round-trip profit with the budget capped by the
// trade limit, the USD balance and the snapshot's available volume.
func (e *Engine) potentialProfit(buyExchange, sellExchange string, buyPrice, sellPrice, volume decimal.Decimal) decimal.Decimal {
	tradeAmount := decimal.Min(
		e.cfg.MaxTradeAmountUSD,
		e.portfolio["USD"],
		volume.Mul(buyPrice),
	)

	buyFee := tradeAmount.Mul(e.fees.Taker(buyExchange))
	sellFee := tradeAmount.Mul(e.fees.Taker(sellExchange))

	cryptoAmount := tradeAmount.Div(buyPrice)
	sellAmount := cryptoAmount.Mul(sellPrice)

	return sellAmount.Sub(tradeAmount).Sub(buyFee).Sub(sellFee)
}

func (e *Engine) validateTrade(cand candidate) bool {
	return cand.potentialProfit.GreaterThan(e.cfg.MinProfitThresholdUSD) &&
		e.portfolio["USD"].IsPositive()
}

// executeTrade commits the round trip: buy the base asset with the USD
// principal, immediately sell the same amount on the dearer venue. The
// principal is capped and rounded down to 8 decimal places so principal
// plus buy fee never exceeds the USD balance; no balance can go negative.
func (e *Engine) executeTrade(cand candidate) model.TradeRecord {
	buyTaker := e.fees.Taker(cand.buyExchange)
	sellTaker := e.fees.Taker(cand.sellExchange)

	tradeAmount := decimal.Min(
		e.cfg.MaxTradeAmountUSD,
		e.portfolio["USD"].Div(one.Add(buyTaker)).RoundDown(8),
	)

	buyFee := tradeAmount.Mul(buyTaker)
	sellFee := tradeAmount.Mul(sellTaker)

	// Buy leg.
	e.portfolio["USD"] = e.portfolio["USD"].Sub(tradeAmount).Sub(buyFee)
	cryptoAmount := tradeAmount.Div(cand.buyPrice)
	e.portfolio[e.baseAsset] = e.portfolio[e.baseAsset].Add(cryptoAmount)

	// Sell leg.
	e.portfolio[e.baseAsset] = e.portfolio[e.baseAsset].Sub(cryptoAmount)
	sellAmount := cryptoAmount.Mul(cand.sellPrice)
	e.portfolio["USD"] = e.portfolio["USD"].Add(sellAmount).Sub(sellFee)

	profit := sellAmount.Sub(tradeAmount).Sub(buyFee).Sub(sellFee)

	return model.TradeRecord{
		Timestamp:    cand.timestamp,
		BuyExchange:  cand.buyExchange,
		SellExchange: cand.sellExchange,
		BuyPrice:     cand.buyPrice,
		SellPrice:    cand.sellPrice,
		Amount:       tradeAmount,
		Profit:       profit,
		Fees:         buyFee.Add(sellFee),
	}
}

// updateDrawdown revalues the portfolio at the reference exchange price and
// raises MaxDrawdownPct only when the decline from peak deepens; the metric
// is monotonically non-decreasing.
func (e *Engine) updateDrawdown(point PricePoint) {
	refPrice, ok := point.Prices[e.cfg.ReferenceExchange]
	if !ok {
		return
	}
	e.lastRefPrice = refPrice

	value := e.portfolio["USD"].Add(e.portfolio[e.baseAsset].Mul(refPrice))
	if value.GreaterThan(e.maxPortfolioValue) {
		e.maxPortfolioValue = value
		return
	}

	drawdown := e.maxPortfolioValue.Sub(value).
		Div(e.maxPortfolioValue).
		Mul(decimal.NewFromInt(100))
	if drawdown.GreaterThan(e.metrics.MaxDrawdownPct) {
		e.metrics.MaxDrawdownPct = drawdown
	}
}

// finalizeMetrics computes the end-of-run aggregates. Denominators are
// guarded so profit factor and win rate are always defined.
func (e *Engine) finalizeMetrics() {
	e.metrics.TotalProfit = e.totalWins.Sub(e.totalLosses)
	e.metrics.ProfitFactor = e.totalWins.Div(decimal.Max(e.totalLosses, one))

	trades := decimal.NewFromInt(int64(max(e.metrics.TotalTrades, 1)))
	e.metrics.WinRatePct = decimal.NewFromInt(int64(e.metrics.SuccessfulTrades)).
		Div(trades).
		Mul(decimal.NewFromInt(100))
}

func (e *Engine) report() Report {
	final := e.portfolio["USD"].Add(e.portfolio[e.baseAsset].Mul(e.lastRefPrice))

	e.logger.Info("backtest complete",
		"totalTrades", e.metrics.TotalTrades,
		"totalProfit", e.metrics.TotalProfit.String(),
		"maxDrawdownPct", e.metrics.MaxDrawdownPct.String())

	return Report{
		Summary: Summary{
			InitialBalance:   e.cfg.InitialBalanceUSD,
			FinalBalance:     final,
			TotalTrades:      e.metrics.TotalTrades,
			SuccessfulTrades: e.metrics.SuccessfulTrades,
			FailedTrades:     e.metrics.FailedTrades,
			TotalProfit:      e.metrics.TotalProfit,
			ProfitFactor:     e.metrics.ProfitFactor,
			WinRatePct:       e.metrics.WinRatePct,
			MaxDrawdownPct:   e.metrics.MaxDrawdownPct,
		},
		Trades: e.metrics.Trades,
		Config: e.cfg,
	}
}
