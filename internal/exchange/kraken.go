package exchange

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/cm777-dev/crypto-arbitrage-bot/internal/model"
)

const krakenBaseURL = "https://api.kraken.com/0/public"

// KrakenClient fetches market data from the Kraken REST API.
type KrakenClient struct {
	logger  *slog.Logger
	http    *http.Client
	baseURL string
}

// NewKrakenClient creates a new KrakenClient.
func NewKrakenClient(logger *slog.Logger) *KrakenClient {
	return &KrakenClient{logger: logger, http: newHTTPClient(), baseURL: krakenBaseURL}
}

func (k *KrakenClient) Name() string { return "kraken" }

func krakenPair(pair string) string {
	return strings.ReplaceAll(pair, "/", "")
}

// Price returns the last traded price for a pair. Kraken keys its result by
// its own pair aliases, so the first (only) result entry is used.
func (k *KrakenClient) Price(ctx context.Context, pair string) (decimal.Decimal, error) {
	var payload struct {
		Error  []string `json:"error"`
		Result map[string]struct {
			Close []string `json:"c"`
		} `json:"result"`
	}
	url := fmt.Sprintf("%s/Ticker?pair=%s", k.baseURL, krakenPair(pair))
	if err := getJSON(ctx, k.http, url, &payload); err != nil {
		return decimal.Zero, err
	}
	if len(payload.Error) > 0 {
		return decimal.Zero, fmt.Errorf("kraken ticker: %s", strings.Join(payload.Error, "; "))
	}
	for _, ticker := range payload.Result {
		if len(ticker.Close) == 0 {
			break
		}
		return decimal.NewFromString(ticker.Close[0])
	}
	return decimal.Zero, fmt.Errorf("kraken ticker: empty result for %s", pair)
}

// OrderBook returns up to depth levels of bids and asks, best first.
// Kraken depth levels are [price, volume, timestamp] tuples.
func (k *KrakenClient) OrderBook(ctx context.Context, pair string, depth int) (model.OrderBook, error) {
	var payload struct {
		Error  []string `json:"error"`
		Result map[string]struct {
			Bids [][]any `json:"bids"`
			Asks [][]any `json:"asks"`
		} `json:"result"`
	}
	url := fmt.Sprintf("%s/Depth?pair=%s&count=%d", k.baseURL, krakenPair(pair), depth)
	if err := getJSON(ctx, k.http, url, &payload); err != nil {
		return model.OrderBook{}, err
	}
	if len(payload.Error) > 0 {
		return model.OrderBook{}, fmt.Errorf("kraken depth: %s", strings.Join(payload.Error, "; "))
	}
	for _, book := range payload.Result {
		bids, err := parseAnyLevels(book.Bids, depth)
		if err != nil {
			return model.OrderBook{}, err
		}
		asks, err := parseAnyLevels(book.Asks, depth)
		if err != nil {
			return model.OrderBook{}, err
		}
		return model.OrderBook{Bids: bids, Asks: asks}, nil
	}
	return model.OrderBook{}, fmt.Errorf("kraken depth: empty result for %s", pair)
}
