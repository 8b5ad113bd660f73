package arbitrage

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/cm777-dev/crypto-arbitrage-bot/internal/fees"
	"github.com/cm777-dev/crypto-arbitrage-bot/internal/model"
)

// stubFeed serves canned prices and books keyed by exchange.
type stubFeed struct {
	prices     map[string]decimal.Decimal
	books      map[string]model.OrderBook
	failPrices map[string]bool
}

func (f *stubFeed) GetPrice(_ context.Context, exchange, pair string) (decimal.Decimal, error) {
	if f.failPrices[exchange] {
		return decimal.Zero, fmt.Errorf("stub: %s unavailable", exchange)
	}
	price, ok := f.prices[exchange]
	if !ok {
		return decimal.Zero, fmt.Errorf("stub: no price for %s", exchange)
	}
	return price, nil
}

func (f *stubFeed) GetOrderBook(_ context.Context, exchange, pair string, depth int) (model.OrderBook, error) {
	book, ok := f.books[exchange]
	if !ok {
		return model.OrderBook{}, fmt.Errorf("stub: no book for %s", exchange)
	}
	return book, nil
}

type mockExecutor struct {
	mock.Mock
}

func (m *mockExecutor) Execute(ctx context.Context, opp model.Opportunity) model.TradeResult {
	args := m.Called(ctx, opp)
	return args.Get(0).(model.TradeResult)
}

func testScanConfig() ScanConfig {
	return ScanConfig{
		Interval:              time.Minute,
		MinProfitThresholdUSD: d("50"),
		MaxTradeAmountUSD:     d("10000"),
		Exchanges:             []string{"binance", "coinbase"},
		Pairs:                 []string{"BTC/USDT"},
		BookDepth:             20,
	}
}

func spreadFeed() *stubFeed {
	return &stubFeed{
		prices: map[string]decimal.Decimal{
			"binance":  d("34000"),
			"coinbase": d("35000"),
		},
		books: map[string]model.OrderBook{
			"binance": {
				Asks: []model.OrderBookLevel{level("34000", "1")},
				Bids: []model.OrderBookLevel{level("33990", "1")},
			},
			"coinbase": {
				Asks: []model.OrderBookLevel{level("35010", "1")},
				Bids: []model.OrderBookLevel{level("35000", "1")},
			},
		},
		failPrices: map[string]bool{},
	}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestScanner_ScanCycle(t *testing.T) {
	evaluator := NewEvaluator(fees.DefaultSchedule())

	t.Run("retains viable opportunity above threshold", func(t *testing.T) {
		scanner, err := NewScanner(testLogger(), spreadFeed(), evaluator, testScanConfig(), nil, nil)
		require.NoError(t, err)

		scanner.scanCycle(context.Background())

		opps := scanner.GetOpportunities()
		require.Len(t, opps, 1)
		opp := opps[0]
		assert.Equal(t, "binance", opp.BuyExchange)
		assert.Equal(t, "coinbase", opp.SellExchange)
		assert.Equal(t, "BTC/USDT", opp.Pair)
		assert.True(t, opp.IsViable)
		assert.True(t, opp.AdjustedProfit.GreaterThanOrEqual(d("50")))
		assert.NotEmpty(t, opp.ID)
	})

	t.Run("no spread means no opportunities", func(t *testing.T) {
		feed := spreadFeed()
		feed.prices["coinbase"] = d("34000")

		scanner, err := NewScanner(testLogger(), feed, evaluator, testScanConfig(), nil, nil)
		require.NoError(t, err)

		scanner.scanCycle(context.Background())
		assert.Empty(t, scanner.GetOpportunities())
	})

	t.Run("failed fetch skips the exchange", func(t *testing.T) {
		feed := spreadFeed()
		feed.failPrices["coinbase"] = true

		scanner, err := NewScanner(testLogger(), feed, evaluator, testScanConfig(), nil, nil)
		require.NoError(t, err)

		scanner.scanCycle(context.Background())
		assert.Empty(t, scanner.GetOpportunities())
	})

	t.Run("below threshold is filtered", func(t *testing.T) {
		cfg := testScanConfig()
		cfg.MinProfitThresholdUSD = d("100000")

		scanner, err := NewScanner(testLogger(), spreadFeed(), evaluator, cfg, nil, nil)
		require.NoError(t, err)

		scanner.scanCycle(context.Background())
		assert.Empty(t, scanner.GetOpportunities())
	})

	t.Run("cancelled cycle is not published", func(t *testing.T) {
		scanner, err := NewScanner(testLogger(), spreadFeed(), evaluator, testScanConfig(), nil, nil)
		require.NoError(t, err)

		scanner.scanCycle(context.Background())
		require.Len(t, scanner.GetOpportunities(), 1)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		scanner.scanCycle(ctx)
		assert.Len(t, scanner.GetOpportunities(), 1, "cancelled cycle must not replace the set")
	})

	t.Run("auto trade executes retained opportunities", func(t *testing.T) {
		executor := new(mockExecutor)
		executor.On("Execute", mock.Anything, mock.Anything).Return(model.TradeResult{Success: true}).Once()

		cfg := testScanConfig()
		cfg.AutoTrade = true

		scanner, err := NewScanner(testLogger(), spreadFeed(), evaluator, cfg, executor, nil)
		require.NoError(t, err)

		scanner.scanCycle(context.Background())
		executor.AssertExpectations(t)
	})
}

func TestScanner_StartStop(t *testing.T) {
	evaluator := NewEvaluator(fees.DefaultSchedule())
	cfg := testScanConfig()
	cfg.Interval = 10 * time.Millisecond

	scanner, err := NewScanner(testLogger(), spreadFeed(), evaluator, cfg, nil, nil)
	require.NoError(t, err)

	scanner.StartMonitoring(context.Background())
	require.Eventually(t, func() bool {
		return len(scanner.GetOpportunities()) == 1
	}, time.Second, 5*time.Millisecond)

	// Starting twice is a no-op.
	scanner.StartMonitoring(context.Background())

	scanner.StopMonitoring()
	assert.Empty(t, scanner.GetOpportunities())

	// Stopping twice is safe.
	scanner.StopMonitoring()
}

func TestScanConfig_Validate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*ScanConfig)
	}{
		{"non-positive interval", func(c *ScanConfig) { c.Interval = 0 }},
		{"negative threshold", func(c *ScanConfig) { c.MinProfitThresholdUSD = d("-1") }},
		{"zero budget", func(c *ScanConfig) { c.MaxTradeAmountUSD = decimal.Zero }},
		{"single exchange", func(c *ScanConfig) { c.Exchanges = []string{"binance"} }},
		{"no pairs", func(c *ScanConfig) { c.Pairs = nil }},
		{"zero depth", func(c *ScanConfig) { c.BookDepth = 0 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := testScanConfig()
			tc.mutate(&cfg)
			var invalid *model.InvalidInputError
			require.ErrorAs(t, cfg.Validate(), &invalid)
		})
	}

	assert.NoError(t, testScanConfig().Validate())
}
