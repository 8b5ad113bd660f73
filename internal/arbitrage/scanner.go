package arbitrage

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cm777-dev/crypto-arbitrage-bot/internal/exchange"
	"github.com/cm777-dev/crypto-arbitrage-bot/internal/model"
)

// ScanConfig holds every recognized scanner option.
type ScanConfig struct {
	// Interval is the scan cadence.
	Interval time.Duration
	// MinProfitThresholdUSD is the filter floor on adjusted profit.
	MinProfitThresholdUSD decimal.Decimal
	// MaxTradeAmountUSD caps the sizing budget per opportunity.
	MaxTradeAmountUSD decimal.Decimal
	// AutoTrade executes every retained opportunity immediately.
	AutoTrade bool
	// Exchanges and Pairs define the combinations scanned each cycle.
	Exchanges []string
	Pairs     []string
	// BookDepth is the number of order book levels fetched per side.
	BookDepth int
}

// Validate rejects out-of-range configuration eagerly.
func (c ScanConfig) Validate() error {
	if c.Interval <= 0 {
		return &model.InvalidInputError{Field: "interval", Reason: "must be positive"}
	}
	if c.MinProfitThresholdUSD.IsNegative() {
		return &model.InvalidInputError{Field: "minProfitThresholdUSD", Reason: "must not be negative"}
	}
	if !c.MaxTradeAmountUSD.IsPositive() {
		return &model.InvalidInputError{Field: "maxTradeAmountUSD", Reason: "must be positive"}
	}
	if len(c.Exchanges) < 2 {
		return &model.InvalidInputError{Field: "exchanges", Reason: "need at least two exchanges"}
	}
	if len(c.Pairs) == 0 {
		return &model.InvalidInputError{Field: "pairs", Reason: "need at least one pair"}
	}
	if c.BookDepth <= 0 {
		return &model.InvalidInputError{Field: "bookDepth", Reason: "must be positive"}
	}
	return nil
}

// TradeExecutor executes a retained opportunity. Wired when AutoTrade is on.
type TradeExecutor interface {
	Execute(ctx context.Context, opp model.Opportunity) model.TradeResult
}

// OpportunityLedger persists retained opportunities.
type OpportunityLedger interface {
	LogOpportunity(ctx context.Context, opp model.Opportunity) error
}

// Scanner orchestrates evaluator and sizer across all exchange/pair
// combinations and maintains the current opportunity set. The set is
// replaced wholesale at the end of each cycle; readers never observe a
// half-updated set.
type Scanner struct {
	logger    *slog.Logger
	feed      exchange.PriceFeed
	evaluator *Evaluator
	cfg       ScanConfig
	executor  TradeExecutor
	ledger    OpportunityLedger

	mu            sync.RWMutex
	opportunities []model.Opportunity
	running       bool
	cancel        context.CancelFunc
	done          chan struct{}
}

// NewScanner creates a Scanner. executor and ledger may be nil.
// Invalid configuration is a fatal construction error.
func NewScanner(logger *slog.Logger, feed exchange.PriceFeed, evaluator *Evaluator, cfg ScanConfig, executor TradeExecutor, ledger OpportunityLedger) (*Scanner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Scanner{
		logger:    logger,
		feed:      feed,
		evaluator: evaluator,
		cfg:       cfg,
		executor:  executor,
		ledger:    ledger,
	}, nil
}

// StartMonitoring begins periodic scanning until StopMonitoring or context
// cancellation. Starting an already running scanner is a no-op.
func (s *Scanner) StartMonitoring(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	s.running = true
	s.cancel = cancel
	s.done = make(chan struct{})
	s.mu.Unlock()

	s.logger.Info("started monitoring for arbitrage opportunities", "interval", s.cfg.Interval)

	go func() {
		defer close(s.done)
		ticker := time.NewTicker(s.cfg.Interval)
		defer ticker.Stop()

		s.scanCycle(ctx)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.scanCycle(ctx)
			}
		}
	}()
}

// StopMonitoring stops the scan loop and clears the opportunity set. An
// in-flight cycle either completes or its result is simply not published.
func (s *Scanner) StopMonitoring() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	cancel, done := s.cancel, s.done
	s.mu.Unlock()

	cancel()
	<-done

	s.mu.Lock()
	s.running = false
	s.opportunities = nil
	s.mu.Unlock()

	s.logger.Info("stopped monitoring for arbitrage opportunities")
}

// GetOpportunities returns a copy of the current opportunity set.
func (s *Scanner) GetOpportunities() []model.Opportunity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Opportunity, len(s.opportunities))
	copy(out, s.opportunities)
	return out
}

// scanCycle builds a fresh opportunity set and swaps it in atomically.
func (s *Scanner) scanCycle(ctx context.Context) {
	var found []model.Opportunity

	for _, pair := range s.cfg.Pairs {
		prices := s.fetchQuotes(ctx, pair)

		for _, buyExchange := range s.cfg.Exchanges {
			for _, sellExchange := range s.cfg.Exchanges {
				if buyExchange == sellExchange {
					continue
				}
				buyPrice, ok := prices[buyExchange]
				if !ok {
					continue
				}
				sellPrice, ok := prices[sellExchange]
				if !ok {
					continue
				}
				if sellPrice.LessThanOrEqual(buyPrice) {
					continue
				}

				opp, ok := s.analyzeCombination(ctx, pair, buyExchange, sellExchange, buyPrice, sellPrice)
				if !ok {
					continue
				}
				found = append(found, opp)

				if s.ledger != nil {
					if err := s.ledger.LogOpportunity(ctx, opp); err != nil {
						s.logger.Error("failed to log opportunity", "error", err)
					}
				}
				if s.cfg.AutoTrade && s.executor != nil {
					result := s.executor.Execute(ctx, opp)
					if !result.Success {
						s.logger.Error("auto-trade failed", "id", opp.ID, "error", result.Err)
					}
				}
			}
		}
	}

	// A cancelled cycle is discarded, never published.
	if ctx.Err() != nil {
		return
	}

	s.mu.Lock()
	s.opportunities = found
	s.mu.Unlock()

	s.logger.Info("scan cycle complete", "opportunities", len(found))
}

// fetchQuotes fans out price fetches for one pair across all exchanges.
// Failed fetches are logged and the exchange is skipped for this cycle.
func (s *Scanner) fetchQuotes(ctx context.Context, pair string) map[string]decimal.Decimal {
	var (
		mu     sync.Mutex
		wg     sync.WaitGroup
		prices = make(map[string]decimal.Decimal, len(s.cfg.Exchanges))
	)
	for _, name := range s.cfg.Exchanges {
		wg.Add(1)
		go func(name string) {
			defer wg.Done()
			price, err := s.feed.GetPrice(ctx, name, pair)
			if err != nil {
				s.logger.Warn("price fetch failed", "exchange", name, "pair", pair, "error", err)
				return
			}
			mu.Lock()
			prices[name] = price
			mu.Unlock()
		}(name)
	}
	wg.Wait()
	return prices
}

// analyzeCombination sizes and scores one buy/sell combination. ok is false
// when the combination is skipped for this cycle.
func (s *Scanner) analyzeCombination(ctx context.Context, pair, buyExchange, sellExchange string, buyPrice, sellPrice decimal.Decimal) (model.Opportunity, bool) {
	buyBook, err := s.feed.GetOrderBook(ctx, buyExchange, pair, s.cfg.BookDepth)
	if err != nil {
		s.logger.Warn("order book fetch failed", "exchange", buyExchange, "pair", pair, "error", err)
		return model.Opportunity{}, false
	}
	sellBook, err := s.feed.GetOrderBook(ctx, sellExchange, pair, s.cfg.BookDepth)
	if err != nil {
		s.logger.Warn("order book fetch failed", "exchange", sellExchange, "pair", pair, "error", err)
		return model.Opportunity{}, false
	}

	amount, err := SizeTrade(buyBook, sellBook, s.cfg.MaxTradeAmountUSD)
	if err != nil {
		// No profitably crossing depth; not a hard failure.
		return model.Opportunity{}, false
	}

	liquidity := decimal.Min(QuoteDepth(buyBook.Asks), QuoteDepth(sellBook.Bids))
	if !liquidity.IsPositive() {
		return model.Opportunity{}, false
	}

	opp, err := s.evaluator.Evaluate(EvalInput{
		BuyExchange:  buyExchange,
		SellExchange: sellExchange,
		Pair:         pair,
		BuyPrice:     buyPrice,
		SellPrice:    sellPrice,
		Amount:       amount,
		Liquidity:    liquidity,
	})
	if err != nil {
		s.logger.Warn("evaluation failed", "pair", pair, "buyExchange", buyExchange, "sellExchange", sellExchange, "error", err)
		return model.Opportunity{}, false
	}

	if !opp.IsViable || opp.AdjustedProfit.LessThan(s.cfg.MinProfitThresholdUSD) {
		return model.Opportunity{}, false
	}

	opp.ID = fmt.Sprintf("%s-%s-%s-%d", buyExchange, sellExchange, pair, opp.Timestamp.UnixMilli())
	return opp, true
}
