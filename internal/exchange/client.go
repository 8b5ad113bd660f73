package exchange

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/cm777-dev/crypto-arbitrage-bot/internal/model"
)

// Client is the per-venue market data contract.
type Client interface {
	Name() string
	Price(ctx context.Context, pair string) (decimal.Decimal, error)
	OrderBook(ctx context.Context, pair string, depth int) (model.OrderBook, error)
}

// PriceFeed provides cached cross-venue market data to the scanner and trader.
type PriceFeed interface {
	GetPrice(ctx context.Context, exchange, pair string) (decimal.Decimal, error)
	GetOrderBook(ctx context.Context, exchange, pair string, depth int) (model.OrderBook, error)
}

// OrderExecutor places market orders on a venue.
type OrderExecutor interface {
	PlaceMarketOrder(ctx context.Context, exchange, pair, side string, amount decimal.Decimal) (model.Order, error)
}

// FetchError wraps a failed price or order-book fetch. The affected
// exchange/pair combination is skipped for the current cycle.
type FetchError struct {
	Exchange string
	Pair     string
	Err      error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s %s: %v", e.Exchange, e.Pair, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// ExecutionError wraps a failed order placement.
type ExecutionError struct {
	Exchange string
	Side     string
	Err      error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("execute %s %s: %v", e.Side, e.Exchange, e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }
