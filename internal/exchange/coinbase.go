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

const coinbaseBaseURL = "https://api.exchange.coinbase.com"

// CoinbaseClient fetches market data from the Coinbase Exchange REST API.
type CoinbaseClient struct {
	logger  *slog.Logger
	http    *http.Client
	baseURL string
}

// NewCoinbaseClient creates a new CoinbaseClient.
func NewCoinbaseClient(logger *slog.Logger) *CoinbaseClient {
	return &CoinbaseClient{logger: logger, http: newHTTPClient(), baseURL: coinbaseBaseURL}
}

func (c *CoinbaseClient) Name() string { return "coinbase" }

func coinbaseProduct(pair string) string {
	return strings.ReplaceAll(pair, "/", "-")
}

// Price returns the latest traded price for a pair.
func (c *CoinbaseClient) Price(ctx context.Context, pair string) (decimal.Decimal, error) {
	var payload struct {
		Price string `json:"price"`
	}
	url := fmt.Sprintf("%s/products/%s/ticker", c.baseURL, coinbaseProduct(pair))
	if err := getJSON(ctx, c.http, url, &payload); err != nil {
		return decimal.Zero, err
	}
	return decimal.NewFromString(payload.Price)
}

// OrderBook returns up to depth levels of bids and asks, best first.
// Coinbase level-2 books return [price, size, num-orders] tuples.
func (c *CoinbaseClient) OrderBook(ctx context.Context, pair string, depth int) (model.OrderBook, error) {
	var payload struct {
		Bids [][]any `json:"bids"`
		Asks [][]any `json:"asks"`
	}
	url := fmt.Sprintf("%s/products/%s/book?level=2", c.baseURL, coinbaseProduct(pair))
	if err := getJSON(ctx, c.http, url, &payload); err != nil {
		return model.OrderBook{}, err
	}

	bids, err := parseAnyLevels(payload.Bids, depth)
	if err != nil {
		return model.OrderBook{}, err
	}
	asks, err := parseAnyLevels(payload.Asks, depth)
	if err != nil {
		return model.OrderBook{}, err
	}
	return model.OrderBook{Bids: bids, Asks: asks}, nil
}

// parseAnyLevels handles mixed-type [price, quantity, ...] tuples, keeping at
// most limit levels.
func parseAnyLevels(raw [][]any, limit int) ([]model.OrderBookLevel, error) {
	if len(raw) > limit {
		raw = raw[:limit]
	}
	levels := make([]model.OrderBookLevel, 0, len(raw))
	for _, entry := range raw {
		if len(entry) < 2 {
			return nil, fmt.Errorf("malformed order book level %v", entry)
		}
		price, err := decimalFromAny(entry[0])
		if err != nil {
			return nil, err
		}
		qty, err := decimalFromAny(entry[1])
		if err != nil {
			return nil, err
		}
		levels = append(levels, model.OrderBookLevel{Price: price, Quantity: qty})
	}
	return levels, nil
}

func decimalFromAny(v any) (decimal.Decimal, error) {
	switch value := v.(type) {
	case string:
		return decimal.NewFromString(value)
	case float64:
		return decimal.NewFromFloat(value), nil
	default:
		return decimal.Zero, fmt.Errorf("unsupported level value %T", v)
	}
}
