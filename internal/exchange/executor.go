package exchange

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/cm777-dev/crypto-arbitrage-bot/internal/fees"
	"github.com/cm777-dev/crypto-arbitrage-bot/internal/model"
)

// simulatedBookDepth is how many levels a simulated fill may consume.
const simulatedBookDepth = 20

// SimulatedExecutor fills market orders against live order book depth
// instead of routing real orders. Fees follow the taker schedule of the
// venue.
type SimulatedExecutor struct {
	logger *slog.Logger
	feed   PriceFeed
	fees   *fees.Schedule
}

// NewSimulatedExecutor creates an executor that fills by walking book depth.
func NewSimulatedExecutor(logger *slog.Logger, feed PriceFeed, schedule *fees.Schedule) *SimulatedExecutor {
	return &SimulatedExecutor{logger: logger, feed: feed, fees: schedule}
}

// PlaceMarketOrder fills the full amount at the volume-weighted price of the
// venue's current book. An order larger than the available depth fails.
func (e *SimulatedExecutor) PlaceMarketOrder(ctx context.Context, exchange, pair, side string, amount decimal.Decimal) (model.Order, error) {
	if side != "buy" && side != "sell" {
		return model.Order{}, &ExecutionError{Exchange: exchange, Side: side, Err: fmt.Errorf("unknown side")}
	}
	if !amount.IsPositive() {
		return model.Order{}, &ExecutionError{Exchange: exchange, Side: side, Err: fmt.Errorf("non-positive amount %s", amount)}
	}

	book, err := e.feed.GetOrderBook(ctx, exchange, pair, simulatedBookDepth)
	if err != nil {
		return model.Order{}, &ExecutionError{Exchange: exchange, Side: side, Err: err}
	}
	price, err := EffectivePrice(book, amount, side)
	if err != nil {
		return model.Order{}, &ExecutionError{Exchange: exchange, Side: side, Err: err}
	}

	fee := amount.Mul(price).Mul(e.fees.Taker(exchange))
	order := model.Order{
		Exchange: exchange,
		Pair:     pair,
		Side:     side,
		Filled:   amount,
		AvgPrice: price,
		Fee:      fee,
	}
	e.logger.Debug("simulated market order filled",
		"exchange", exchange, "pair", pair, "side", side,
		"amount", amount.String(), "price", price.String())
	return order, nil
}
