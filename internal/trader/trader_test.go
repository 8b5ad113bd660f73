package trader

import (
	"context"
	"log/slog"
	"os"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/cm777-dev/crypto-arbitrage-bot/internal/exchange"
	"github.com/cm777-dev/crypto-arbitrage-bot/internal/model"
)

type mockExecutor struct {
	mock.Mock
}

func (m *mockExecutor) PlaceMarketOrder(ctx context.Context, exchangeName, pair, side string, amount decimal.Decimal) (model.Order, error) {
	args := m.Called(ctx, exchangeName, pair, side, amount)
	return args.Get(0).(model.Order), args.Error(1)
}

type mockLedger struct {
	mock.Mock
}

func (m *mockLedger) LogTrade(ctx context.Context, trade model.TradeRecord) error {
	args := m.Called(ctx, trade)
	return args.Error(0)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func testOpportunity() model.Opportunity {
	return model.Opportunity{
		ID:           "binance-coinbase-BTC/USDT-1",
		Pair:         "BTC/USDT",
		BuyExchange:  "binance",
		SellExchange: "coinbase",
		Amount:       d("1.5"),
	}
}

func TestTrader_Execute(t *testing.T) {
	t.Run("joint success computes actual profit", func(t *testing.T) {
		executor := new(mockExecutor)
		executor.On("PlaceMarketOrder", mock.Anything, "binance", "BTC/USDT", "buy", d("1.5")).
			Return(model.Order{Exchange: "binance", Side: "buy", Filled: d("1.5"), AvgPrice: d("34000"), Fee: d("51")}, nil).Once()
		executor.On("PlaceMarketOrder", mock.Anything, "coinbase", "BTC/USDT", "sell", d("1.5")).
			Return(model.Order{Exchange: "coinbase", Side: "sell", Filled: d("1.5"), AvgPrice: d("35000"), Fee: d("262.5")}, nil).Once()

		ledger := new(mockLedger)
		ledger.On("LogTrade", mock.Anything, mock.Anything).Return(nil).Once()

		trd := New(testLogger(), executor, ledger)
		result := trd.Execute(context.Background(), testOpportunity())

		require.True(t, result.Success)
		// 1.5*35000 - 1.5*34000 - (51 + 262.5) = 1186.5
		assert.True(t, result.ActualProfit.Equal(d("1186.5")), "profit = %s", result.ActualProfit)
		executor.AssertExpectations(t)
		ledger.AssertExpectations(t)
	})

	t.Run("failed leg reports failure and records nothing", func(t *testing.T) {
		executor := new(mockExecutor)
		executor.On("PlaceMarketOrder", mock.Anything, "binance", "BTC/USDT", "buy", d("1.5")).
			Return(model.Order{Filled: d("1.5"), AvgPrice: d("34000")}, nil).Maybe()
		executor.On("PlaceMarketOrder", mock.Anything, "coinbase", "BTC/USDT", "sell", d("1.5")).
			Return(model.Order{}, &exchange.ExecutionError{Exchange: "coinbase", Side: "sell"}).Once()

		ledger := new(mockLedger)

		trd := New(testLogger(), executor, ledger)
		result := trd.Execute(context.Background(), testOpportunity())

		assert.False(t, result.Success)
		assert.Error(t, result.Err)
		ledger.AssertNotCalled(t, "LogTrade")
	})

	t.Run("nil ledger is tolerated", func(t *testing.T) {
		executor := new(mockExecutor)
		executor.On("PlaceMarketOrder", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return(model.Order{Filled: d("1"), AvgPrice: d("100")}, nil).Twice()

		trd := New(testLogger(), executor, nil)
		result := trd.Execute(context.Background(), testOpportunity())
		assert.True(t, result.Success)
	})
}
