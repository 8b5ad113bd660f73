package backtest

import (
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cm777-dev/crypto-arbitrage-bot/internal/fees"
	"github.com/cm777-dev/crypto-arbitrage-bot/internal/model"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func testConfig() Config {
	return Config{
		Pair:                  "BTC/USDT",
		InitialBalanceUSD:     d("10000"),
		MinProfitThresholdUSD: d("50"),
		MaxTradeAmountUSD:     d("10000"),
		ReferenceExchange:     "binance",
	}
}

func point(ts time.Time, binance, coinbase, volume string) PricePoint {
	return PricePoint{
		Timestamp: ts,
		Prices: map[string]decimal.Decimal{
			"binance":  d(binance),
			"coinbase": d(coinbase),
		},
		Volume: d(volume),
	}
}

func TestEngine_Run(t *testing.T) {
	base := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)

	t.Run("profitable spread produces a trade", func(t *testing.T) {
		engine, err := NewEngine(testLogger(), fees.DefaultSchedule(), testConfig())
		require.NoError(t, err)

		report := engine.Run([]PricePoint{
			point(base, "30000", "31000", "10"),
		})

		require.Equal(t, 1, report.Summary.TotalTrades)
		assert.Equal(t, 1, report.Summary.SuccessfulTrades)
		assert.Equal(t, 0, report.Summary.FailedTrades)
		assert.True(t, report.Summary.TotalProfit.IsPositive())
		require.Len(t, report.Trades, 1)

		trade := report.Trades[0]
		assert.Equal(t, "binance", trade.BuyExchange)
		assert.Equal(t, "coinbase", trade.SellExchange)
		assert.True(t, trade.Profit.IsPositive())
		assert.True(t, trade.Profit.Equal(report.Summary.TotalProfit))

		// Config is echoed back untouched.
		assert.Equal(t, "BTC/USDT", report.Config.Pair)
		assert.True(t, report.Config.MaxTradeAmountUSD.Equal(d("10000")))
	})

	t.Run("spread below threshold yields no trades", func(t *testing.T) {
		engine, err := NewEngine(testLogger(), fees.DefaultSchedule(), testConfig())
		require.NoError(t, err)

		report := engine.Run([]PricePoint{
			point(base, "30000", "30010", "10"),
		})

		assert.Equal(t, 0, report.Summary.TotalTrades)
		assert.Empty(t, report.Trades)
		assert.True(t, report.Summary.FinalBalance.Equal(d("10000")))
	})

	t.Run("usd balance never goes negative", func(t *testing.T) {
		cfg := testConfig()
		cfg.InitialBalanceUSD = d("100")
		cfg.MinProfitThresholdUSD = d("0.5")
		engine, err := NewEngine(testLogger(), fees.DefaultSchedule(), cfg)
		require.NoError(t, err)

		series := make([]PricePoint, 0, 20)
		for i := 0; i < 20; i++ {
			series = append(series, point(base.Add(time.Duration(i)*time.Hour), "30000", "31000", "10"))
		}
		engine.Run(series)

		assert.True(t, engine.Balance("USD").GreaterThanOrEqual(decimal.Zero),
			"USD balance = %s", engine.Balance("USD"))
		assert.True(t, engine.Balance("BTC").GreaterThanOrEqual(decimal.Zero))
	})

	t.Run("base asset returns to zero after each round trip", func(t *testing.T) {
		engine, err := NewEngine(testLogger(), fees.DefaultSchedule(), testConfig())
		require.NoError(t, err)

		engine.Run([]PricePoint{
			point(base, "30000", "31000", "10"),
			point(base.Add(time.Hour), "30000", "31000", "10"),
		})
		assert.True(t, engine.Balance("BTC").IsZero())
	})

	t.Run("profit factor defined with zero losses", func(t *testing.T) {
		engine, err := NewEngine(testLogger(), fees.DefaultSchedule(), testConfig())
		require.NoError(t, err)

		report := engine.Run([]PricePoint{
			point(base, "30000", "31000", "10"),
		})

		// With no losing trades the divisor is clamped to one.
		assert.True(t, report.Summary.ProfitFactor.Equal(report.Summary.TotalProfit))
		assert.True(t, report.Summary.WinRatePct.Equal(d("100")))
	})

	t.Run("win rate defined with zero trades", func(t *testing.T) {
		engine, err := NewEngine(testLogger(), fees.DefaultSchedule(), testConfig())
		require.NoError(t, err)

		report := engine.Run(nil)
		assert.True(t, report.Summary.WinRatePct.IsZero())
		assert.True(t, report.Summary.ProfitFactor.IsZero())
	})

	t.Run("max drawdown never decreases", func(t *testing.T) {
		cfg := testConfig()
		cfg.MinProfitThresholdUSD = d("1")
		engine, err := NewEngine(testLogger(), fees.DefaultSchedule(), cfg)
		require.NoError(t, err)

		prev := decimal.Zero
		series := []PricePoint{
			point(base, "30000", "31000", "10"),
			point(base.Add(time.Hour), "29000", "29900", "10"),
			point(base.Add(2*time.Hour), "28000", "28800", "10"),
			point(base.Add(3*time.Hour), "32000", "33000", "10"),
		}
		for _, p := range series {
			engine.processSnapshot(p)
			assert.True(t, engine.metrics.MaxDrawdownPct.GreaterThanOrEqual(prev),
				"drawdown regressed: %s < %s", engine.metrics.MaxDrawdownPct, prev)
			prev = engine.metrics.MaxDrawdownPct
		}
	})

	t.Run("date bounds filter the series", func(t *testing.T) {
		cfg := testConfig()
		cfg.StartDate = base.Add(time.Hour)
		cfg.EndDate = base.Add(2 * time.Hour)
		engine, err := NewEngine(testLogger(), fees.DefaultSchedule(), cfg)
		require.NoError(t, err)

		report := engine.Run([]PricePoint{
			point(base, "30000", "31000", "10"),                   // before window
			point(base.Add(time.Hour), "30000", "31000", "10"),    // inside
			point(base.Add(3*time.Hour), "30000", "31000", "10"),  // after window
		})
		assert.Equal(t, 1, report.Summary.TotalTrades)
	})

	t.Run("deterministic replay", func(t *testing.T) {
		series := []PricePoint{
			point(base, "30000", "31000", "10"),
			point(base.Add(time.Hour), "29500", "30400", "5"),
		}

		run := func() Report {
			engine, err := NewEngine(testLogger(), fees.DefaultSchedule(), testConfig())
			require.NoError(t, err)
			return engine.Run(series)
		}
		first, second := run(), run()

		assert.Equal(t, first.Summary.TotalTrades, second.Summary.TotalTrades)
		assert.True(t, first.Summary.TotalProfit.Equal(second.Summary.TotalProfit))
		assert.True(t, first.Summary.FinalBalance.Equal(second.Summary.FinalBalance))
		assert.True(t, first.Summary.MaxDrawdownPct.Equal(second.Summary.MaxDrawdownPct))
	})
}

func TestConfig_Validate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"malformed pair", func(c *Config) { c.Pair = "BTCUSDT" }},
		{"zero balance", func(c *Config) { c.InitialBalanceUSD = decimal.Zero }},
		{"negative threshold", func(c *Config) { c.MinProfitThresholdUSD = d("-1") }},
		{"zero budget", func(c *Config) { c.MaxTradeAmountUSD = decimal.Zero }},
		{"missing reference exchange", func(c *Config) { c.ReferenceExchange = "" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := testConfig()
			tc.mutate(&cfg)
			var invalid *model.InvalidInputError
			require.ErrorAs(t, cfg.Validate(), &invalid)
		})
	}

	assert.NoError(t, testConfig().Validate())
}
