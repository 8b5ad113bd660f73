package exchange

import (
	"fmt"
	"log/slog"
)

// NewClient creates a market data client for the named exchange.
func NewClient(name string, logger *slog.Logger) (Client, error) {
	switch name {
	case "binance":
		return NewBinanceClient(logger), nil
	case "coinbase":
		return NewCoinbaseClient(logger), nil
	case "kraken":
		return NewKrakenClient(logger), nil
	default:
		return nil, fmt.Errorf("unknown exchange: %s", name)
	}
}
