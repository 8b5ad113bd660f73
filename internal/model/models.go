package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// RiskLevel classifies an opportunity by execution risk.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// Quote represents a single price observation from an exchange.
type Quote struct {
	Exchange  string
	Pair      string
	Price     decimal.Decimal
	Timestamp time.Time
}

// OrderBookLevel is a single price level of an order book side.
type OrderBookLevel struct {
	Price    decimal.Decimal
	Quantity decimal.Decimal
}

// OrderBook holds both sides of an exchange order book.
// Bids and asks are expected best price first; the sizer enforces this
// before matching.
type OrderBook struct {
	Bids []OrderBookLevel
	Asks []OrderBookLevel
}

// FeesBreakdown itemizes the costs of an arbitrage round trip.
type FeesBreakdown struct {
	Buy        decimal.Decimal
	Sell       decimal.Decimal
	Withdrawal decimal.Decimal
	Total      decimal.Decimal
}

// Opportunity is a fully scored cross-exchange arbitrage candidate.
// Instances are immutable once built; each scan cycle produces a fresh set.
type Opportunity struct {
	ID                  string
	Pair                string
	BuyExchange         string
	SellExchange        string
	BuyPrice            decimal.Decimal
	SellPrice           decimal.Decimal
	Amount              decimal.Decimal
	GrossProfit         decimal.Decimal
	NetProfit           decimal.Decimal
	AdjustedProfit      decimal.Decimal
	Fees                FeesBreakdown
	SlippagePct         decimal.Decimal
	TransferTimeMinutes int
	WithinLimits        bool
	IsViable            bool
	RiskLevel           RiskLevel
	Timestamp           time.Time
}

// TradeRecord is an immutable entry of the backtest ledger.
type TradeRecord struct {
	Timestamp    time.Time
	BuyExchange  string
	SellExchange string
	BuyPrice     decimal.Decimal
	SellPrice    decimal.Decimal
	Amount       decimal.Decimal
	Profit       decimal.Decimal
	Fees         decimal.Decimal
}

// Order is the result of a filled market order.
type Order struct {
	Exchange string
	Pair     string
	Side     string
	Filled   decimal.Decimal
	AvgPrice decimal.Decimal
	Fee      decimal.Decimal
}

// TradeResult reports the outcome of a two-leg arbitrage execution.
// On failure both orders are zero-valued and no state has been touched.
type TradeResult struct {
	Success      bool
	BuyOrder     Order
	SellOrder    Order
	ActualProfit decimal.Decimal
	Err          error
}

// InvalidInputError signals invalid input at a component boundary.
// It is never silently coerced; at construction time it is fatal.
type InvalidInputError struct {
	Field  string
	Reason string
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("invalid input: %s: %s", e.Field, e.Reason)
}

// SplitPair breaks a trading pair like "BTC/USDT" into base and quote assets.
func SplitPair(pair string) (base, quote string, err error) {
	base, quote, ok := strings.Cut(pair, "/")
	if !ok || base == "" || quote == "" {
		return "", "", &InvalidInputError{Field: "pair", Reason: fmt.Sprintf("malformed pair %q", pair)}
	}
	return base, quote, nil
}
