package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/cm777-dev/crypto-arbitrage-bot/internal/arbitrage"
	"github.com/cm777-dev/crypto-arbitrage-bot/internal/backtest"
	"github.com/cm777-dev/crypto-arbitrage-bot/internal/config"
	"github.com/cm777-dev/crypto-arbitrage-bot/internal/database"
	"github.com/cm777-dev/crypto-arbitrage-bot/internal/exchange"
	"github.com/cm777-dev/crypto-arbitrage-bot/internal/model"
	"github.com/cm777-dev/crypto-arbitrage-bot/internal/trader"
)

func main() {
	mode := flag.String("mode", "live", "run mode: live or backtest")
	dataPath := flag.String("data", "", "historical price series JSON file (backtest mode)")
	configPath := flag.String("config", ".", "directory containing config.yaml")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("cannot load config: %v", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	switch *mode {
	case "backtest":
		if err := runBacktest(logger, cfg, *dataPath); err != nil {
			log.Fatalf("backtest failed: %v", err)
		}
	case "live":
		if err := runLive(logger, cfg); err != nil {
			log.Fatalf("monitoring failed: %v", err)
		}
	default:
		log.Fatalf("unknown mode: %s", *mode)
	}
}

func runBacktest(logger *slog.Logger, cfg config.Config, dataPath string) error {
	if dataPath == "" {
		return fmt.Errorf("backtest mode requires -data")
	}

	raw, err := os.ReadFile(dataPath)
	if err != nil {
		return fmt.Errorf("read historical data: %w", err)
	}
	var series []backtest.PricePoint
	if err := json.Unmarshal(raw, &series); err != nil {
		return fmt.Errorf("parse historical data: %w", err)
	}

	btCfg, err := cfg.BacktestSettings()
	if err != nil {
		return err
	}
	engine, err := backtest.NewEngine(logger, cfg.FeeSchedule(), btCfg)
	if err != nil {
		return err
	}

	report := engine.Run(series)
	out, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func runLive(logger *slog.Logger, cfg config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	scanCfg := cfg.ScanConfig()

	clients := make([]exchange.Client, 0, len(scanCfg.Exchanges))
	for _, name := range scanCfg.Exchanges {
		client, err := exchange.NewClient(name, logger)
		if err != nil {
			return err
		}
		clients = append(clients, client)
	}

	cache := exchange.NewPriceCache(exchange.DefaultCacheTTL)
	feed := exchange.NewFeed(logger, cache, clients...)

	var ledger arbitrage.OpportunityLedger
	var tradeLedger trader.TradeLedger
	if cfg.Database.Host != "" {
		dsn := fmt.Sprintf("postgres://%s:%s@%s:%d/%s",
			cfg.Database.User, cfg.Database.Password, cfg.Database.Host, cfg.Database.Port, cfg.Database.DBName)
		repo, err := database.NewPostgresRepository(ctx, dsn)
		if err != nil {
			return err
		}
		defer repo.Close()
		if err := repo.Migrate(ctx); err != nil {
			return err
		}
		ledger = repo
		tradeLedger = repo
	}

	schedule := cfg.FeeSchedule()
	executor := exchange.NewSimulatedExecutor(logger, feed, schedule)
	trd := trader.New(logger, executor, tradeLedger)
	evaluator := arbitrage.NewEvaluator(schedule)

	scanner, err := arbitrage.NewScanner(logger, feed, evaluator, scanCfg, trd, ledger)
	if err != nil {
		return err
	}

	// Keep the cache warm with live Binance ticker updates.
	quotes := make(chan model.Quote, 64)
	go func() {
		for quote := range quotes {
			cache.Put(quote.Exchange, quote.Pair, quote.Price)
		}
	}()
	var streams sync.WaitGroup
	for _, name := range scanCfg.Exchanges {
		if name != "binance" {
			continue
		}
		stream := exchange.NewBinanceStream(logger)
		for _, pair := range scanCfg.Pairs {
			streams.Add(1)
			go func(pair string) {
				defer streams.Done()
				if err := stream.StartStream(ctx, quotes, pair); err != nil {
					logger.Error("price stream stopped", "pair", pair, "error", err)
				}
			}(pair)
		}
	}

	scanner.StartMonitoring(ctx)
	<-ctx.Done()
	scanner.StopMonitoring()
	// All stream goroutines must have exited before the channel closes;
	// a late send on a closed channel would panic.
	streams.Wait()
	close(quotes)
	return nil
}
