// Package trader executes an arbitrage opportunity as a single atomic unit:
// the buy and sell legs are issued concurrently and joined, and only joint
// success produces a committed result. Any leg failure leaves ledger state
// untouched.
package trader

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/cm777-dev/crypto-arbitrage-bot/internal/exchange"
	"github.com/cm777-dev/crypto-arbitrage-bot/internal/model"
)

// TradeLedger records committed trades. Implementations must only be called
// after both legs have resolved successfully.
type TradeLedger interface {
	LogTrade(ctx context.Context, trade model.TradeRecord) error
}

// Trader turns scored opportunities into paired market orders.
type Trader struct {
	logger   *slog.Logger
	executor exchange.OrderExecutor
	ledger   TradeLedger
}

// New creates a Trader. ledger may be nil when no persistence is wired.
func New(logger *slog.Logger, executor exchange.OrderExecutor, ledger TradeLedger) *Trader {
	return &Trader{logger: logger, executor: executor, ledger: ledger}
}

// Execute places both legs of the opportunity concurrently and joins them.
// Actual profit is computed only once both legs resolve; if either leg
// fails, the result reports failure and nothing is recorded.
func (t *Trader) Execute(ctx context.Context, opp model.Opportunity) model.TradeResult {
	t.logger.Info("executing arbitrage trade",
		"pair", opp.Pair,
		"buyExchange", opp.BuyExchange,
		"sellExchange", opp.SellExchange,
		"amount", opp.Amount.String())

	var buyOrder, sellOrder model.Order

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		order, err := t.executor.PlaceMarketOrder(gctx, opp.BuyExchange, opp.Pair, "buy", opp.Amount)
		if err != nil {
			return err
		}
		buyOrder = order
		return nil
	})
	g.Go(func() error {
		order, err := t.executor.PlaceMarketOrder(gctx, opp.SellExchange, opp.Pair, "sell", opp.Amount)
		if err != nil {
			return err
		}
		sellOrder = order
		return nil
	})

	if err := g.Wait(); err != nil {
		t.logger.Error("trade execution failed", "error", err)
		return model.TradeResult{Success: false, Err: err}
	}

	actualProfit := sellOrder.Filled.Mul(sellOrder.AvgPrice).
		Sub(buyOrder.Filled.Mul(buyOrder.AvgPrice)).
		Sub(buyOrder.Fee.Add(sellOrder.Fee))

	result := model.TradeResult{
		Success:      true,
		BuyOrder:     buyOrder,
		SellOrder:    sellOrder,
		ActualProfit: actualProfit,
	}

	if t.ledger != nil {
		record := model.TradeRecord{
			Timestamp:    time.Now(),
			BuyExchange:  opp.BuyExchange,
			SellExchange: opp.SellExchange,
			BuyPrice:     buyOrder.AvgPrice,
			SellPrice:    sellOrder.AvgPrice,
			Amount:       opp.Amount,
			Profit:       actualProfit,
			Fees:         buyOrder.Fee.Add(sellOrder.Fee),
		}
		if err := t.ledger.LogTrade(ctx, record); err != nil {
			t.logger.Error("failed to log trade", "error", err)
		}
	}

	t.logger.Info("trade executed", "actualProfit", actualProfit.String())
	return result
}
