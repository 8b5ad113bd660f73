// Package fees holds the static per-exchange fee schedule used by the
// evaluator and the backtest engine. The schedule is built once at startup
// and is read-only afterwards.
package fees

import (
	"sort"

	"github.com/shopspring/decimal"
)

// TradingLimit is the allowed [Min, Max] order size for an asset on an exchange.
type TradingLimit struct {
	Min decimal.Decimal
	Max decimal.Decimal
}

// ExchangeFees holds the fee configuration of a single exchange.
type ExchangeFees struct {
	Maker      decimal.Decimal
	Taker      decimal.Decimal
	Withdrawal map[string]decimal.Decimal
	Limits     map[string]TradingLimit
}

// Schedule is the process-wide fee lookup, keyed by lower-case exchange name.
type Schedule struct {
	exchanges map[string]ExchangeFees
}

// Transfer times in minutes per asset network. Unknown assets fall back to 15.
var transferMinutes = map[string]int{
	"BTC":  30,
	"ETH":  15,
	"TRX":  3,
	"BSC":  5,
	"USDT": 1,
	"USDC": 1,
	"USD":  1,
}

const defaultTransferMinutes = 15

// NewSchedule builds a schedule from per-exchange fee configuration.
func NewSchedule(exchanges map[string]ExchangeFees) *Schedule {
	return &Schedule{exchanges: exchanges}
}

// DefaultSchedule returns the built-in fee table for the supported venues.
func DefaultSchedule() *Schedule {
	d := decimal.RequireFromString
	return NewSchedule(map[string]ExchangeFees{
		"binance": {
			Maker: d("0.001"),
			Taker: d("0.001"),
			Withdrawal: map[string]decimal.Decimal{
				"BTC":  d("0.0005"),
				"ETH":  d("0.005"),
				"USDT": d("1"),
			},
			Limits: map[string]TradingLimit{
				"BTC": {Min: d("0.0001"), Max: d("100")},
				"ETH": {Min: d("0.001"), Max: d("1000")},
			},
		},
		"coinbase": {
			Maker: d("0.005"),
			Taker: d("0.005"),
			Withdrawal: map[string]decimal.Decimal{
				"BTC":  d("0.0001"),
				"ETH":  d("0.002"),
				"USDT": d("2"),
			},
			Limits: map[string]TradingLimit{
				"BTC": {Min: d("0.0001"), Max: d("50")},
				"ETH": {Min: d("0.001"), Max: d("500")},
			},
		},
		"kraken": {
			Maker: d("0.0016"),
			Taker: d("0.0026"),
			Withdrawal: map[string]decimal.Decimal{
				"BTC":  d("0.0002"),
				"ETH":  d("0.003"),
				"USDT": d("2.5"),
			},
			Limits: map[string]TradingLimit{
				"BTC": {Min: d("0.0001"), Max: d("75")},
				"ETH": {Min: d("0.001"), Max: d("750")},
			},
		},
	})
}

// Taker returns the taker fee rate for an exchange, zero if unknown.
func (s *Schedule) Taker(exchange string) decimal.Decimal {
	return s.exchanges[exchange].Taker
}

// Maker returns the maker fee rate for an exchange, zero if unknown.
func (s *Schedule) Maker(exchange string) decimal.Decimal {
	return s.exchanges[exchange].Maker
}

// Withdrawal returns the fixed withdrawal fee for an asset on an exchange,
// zero if the asset is unknown.
func (s *Schedule) Withdrawal(exchange, asset string) decimal.Decimal {
	return s.exchanges[exchange].Withdrawal[asset]
}

// Limit returns the configured trading limit for an asset on an exchange.
// ok is false when the exchange has no limit configured for the asset.
func (s *Schedule) Limit(exchange, asset string) (TradingLimit, bool) {
	lim, ok := s.exchanges[exchange].Limits[asset]
	return lim, ok
}

// TransferMinutes returns the estimated network transfer time for an asset.
func TransferMinutes(asset string) int {
	if m, ok := transferMinutes[asset]; ok {
		return m
	}
	return defaultTransferMinutes
}

// Exchanges lists all configured exchange names in stable order.
func (s *Schedule) Exchanges() []string {
	names := make([]string, 0, len(s.exchanges))
	for name := range s.exchanges {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
