package config

import (
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"github.com/cm777-dev/crypto-arbitrage-bot/internal/arbitrage"
	"github.com/cm777-dev/crypto-arbitrage-bot/internal/backtest"
	"github.com/cm777-dev/crypto-arbitrage-bot/internal/fees"
	"github.com/cm777-dev/crypto-arbitrage-bot/internal/model"
)

// Config stores all configuration for the application.
// The values are read by viper from a config file or environment variables.
type Config struct {
	Scanner   ScannerConfig             `mapstructure:"scanner"`
	Backtest  BacktestConfig            `mapstructure:"backtest"`
	Database  DatabaseConfig            `mapstructure:"database"`
	Exchanges map[string]ExchangeConfig `mapstructure:"exchanges"`
	Pairs     []string                  `mapstructure:"pairs"`
}

// ScannerConfig defines the live monitoring settings.
type ScannerConfig struct {
	IntervalMS            int     `mapstructure:"interval_ms"`
	MinProfitThresholdUSD float64 `mapstructure:"min_profit_threshold_usd"`
	MaxTradeAmountUSD     float64 `mapstructure:"max_trade_amount_usd"`
	AutoTrade             bool    `mapstructure:"auto_trade"`
	BookDepth             int     `mapstructure:"book_depth"`
}

// BacktestConfig defines the historical simulation settings.
type BacktestConfig struct {
	Pair                  string  `mapstructure:"pair"`
	InitialBalanceUSD     float64 `mapstructure:"initial_balance_usd"`
	StartDate             string  `mapstructure:"start_date"`
	EndDate               string  `mapstructure:"end_date"`
	MinProfitThresholdUSD float64 `mapstructure:"min_profit_threshold_usd"`
	MaxTradeAmountUSD     float64 `mapstructure:"max_trade_amount_usd"`
	ReferenceExchange     string  `mapstructure:"reference_exchange"`
}

// DatabaseConfig defines the database connection settings.
type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
}

// ExchangeConfig defines fees and limits for a specific exchange.
type ExchangeConfig struct {
	MakerFee   float64                `mapstructure:"maker_fee"`
	TakerFee   float64                `mapstructure:"taker_fee"`
	Withdrawal map[string]float64     `mapstructure:"withdrawal"`
	Limits     map[string]LimitConfig `mapstructure:"limits"`
}

// LimitConfig is the allowed order size range for one asset.
type LimitConfig struct {
	Min float64 `mapstructure:"min"`
	Max float64 `mapstructure:"max"`
}

// Load reads configuration from file or environment variables.
func Load(path string) (config Config, err error) {
	viper.AddConfigPath(path)
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()

	err = viper.ReadInConfig()
	if err != nil {
		return
	}

	err = viper.Unmarshal(&config)
	if err != nil {
		return
	}
	err = config.Validate()
	return
}

func setDefaults() {
	viper.SetDefault("scanner.interval_ms", 10000)
	viper.SetDefault("scanner.min_profit_threshold_usd", 50)
	viper.SetDefault("scanner.max_trade_amount_usd", 10000)
	viper.SetDefault("scanner.auto_trade", false)
	viper.SetDefault("scanner.book_depth", 20)
	viper.SetDefault("backtest.pair", "BTC/USDT")
	viper.SetDefault("backtest.initial_balance_usd", 10000)
	viper.SetDefault("backtest.min_profit_threshold_usd", 50)
	viper.SetDefault("backtest.max_trade_amount_usd", 10000)
	viper.SetDefault("backtest.reference_exchange", "binance")
	viper.SetDefault("pairs", []string{"BTC/USDT", "ETH/USDT"})
}

// Validate rejects out-of-range values eagerly; a failure here is a fatal
// configuration error.
func (c Config) Validate() error {
	if c.Scanner.IntervalMS <= 0 {
		return &model.InvalidInputError{Field: "scanner.interval_ms", Reason: "must be positive"}
	}
	if c.Scanner.MinProfitThresholdUSD < 0 {
		return &model.InvalidInputError{Field: "scanner.min_profit_threshold_usd", Reason: "must not be negative"}
	}
	if c.Scanner.MaxTradeAmountUSD <= 0 {
		return &model.InvalidInputError{Field: "scanner.max_trade_amount_usd", Reason: "must be positive"}
	}
	if c.Backtest.MinProfitThresholdUSD < 0 {
		return &model.InvalidInputError{Field: "backtest.min_profit_threshold_usd", Reason: "must not be negative"}
	}
	if c.Backtest.MaxTradeAmountUSD <= 0 {
		return &model.InvalidInputError{Field: "backtest.max_trade_amount_usd", Reason: "must be positive"}
	}
	if c.Backtest.InitialBalanceUSD <= 0 {
		return &model.InvalidInputError{Field: "backtest.initial_balance_usd", Reason: "must be positive"}
	}
	for _, pair := range c.Pairs {
		if _, _, err := model.SplitPair(pair); err != nil {
			return err
		}
	}
	return nil
}

// ExchangeNames lists the configured exchanges in stable order.
func (c Config) ExchangeNames() []string {
	names := make([]string, 0, len(c.Exchanges))
	for name := range c.Exchanges {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// FeeSchedule builds the runtime fee schedule. Without configured exchanges
// the built-in default table is used.
func (c Config) FeeSchedule() *fees.Schedule {
	if len(c.Exchanges) == 0 {
		return fees.DefaultSchedule()
	}
	exchanges := make(map[string]fees.ExchangeFees, len(c.Exchanges))
	for name, ex := range c.Exchanges {
		withdrawal := make(map[string]decimal.Decimal, len(ex.Withdrawal))
		for asset, fee := range ex.Withdrawal {
			withdrawal[asset] = decimal.NewFromFloat(fee)
		}
		limits := make(map[string]fees.TradingLimit, len(ex.Limits))
		for asset, lim := range ex.Limits {
			limits[asset] = fees.TradingLimit{
				Min: decimal.NewFromFloat(lim.Min),
				Max: decimal.NewFromFloat(lim.Max),
			}
		}
		exchanges[name] = fees.ExchangeFees{
			Maker:      decimal.NewFromFloat(ex.MakerFee),
			Taker:      decimal.NewFromFloat(ex.TakerFee),
			Withdrawal: withdrawal,
			Limits:     limits,
		}
	}
	return fees.NewSchedule(exchanges)
}

// ScanConfig maps the scanner section onto the runtime scan configuration.
func (c Config) ScanConfig() arbitrage.ScanConfig {
	exchanges := c.ExchangeNames()
	if len(exchanges) == 0 {
		exchanges = fees.DefaultSchedule().Exchanges()
	}
	return arbitrage.ScanConfig{
		Interval:              time.Duration(c.Scanner.IntervalMS) * time.Millisecond,
		MinProfitThresholdUSD: decimal.NewFromFloat(c.Scanner.MinProfitThresholdUSD),
		MaxTradeAmountUSD:     decimal.NewFromFloat(c.Scanner.MaxTradeAmountUSD),
		AutoTrade:             c.Scanner.AutoTrade,
		Exchanges:             exchanges,
		Pairs:                 c.Pairs,
		BookDepth:             c.Scanner.BookDepth,
	}
}

// BacktestSettings maps the backtest section onto the engine configuration.
func (c Config) BacktestSettings() (backtest.Config, error) {
	cfg := backtest.Config{
		Pair:                  c.Backtest.Pair,
		InitialBalanceUSD:     decimal.NewFromFloat(c.Backtest.InitialBalanceUSD),
		MinProfitThresholdUSD: decimal.NewFromFloat(c.Backtest.MinProfitThresholdUSD),
		MaxTradeAmountUSD:     decimal.NewFromFloat(c.Backtest.MaxTradeAmountUSD),
		ReferenceExchange:     c.Backtest.ReferenceExchange,
	}
	if c.Backtest.StartDate != "" {
		start, err := time.Parse(time.DateOnly, c.Backtest.StartDate)
		if err != nil {
			return backtest.Config{}, &model.InvalidInputError{Field: "backtest.start_date", Reason: err.Error()}
		}
		cfg.StartDate = start
	}
	if c.Backtest.EndDate != "" {
		end, err := time.Parse(time.DateOnly, c.Backtest.EndDate)
		if err != nil {
			return backtest.Config{}, &model.InvalidInputError{Field: "backtest.end_date", Reason: err.Error()}
		}
		cfg.EndDate = end
	}
	return cfg, nil
}
