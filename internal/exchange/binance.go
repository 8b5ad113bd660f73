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

const binanceBaseURL = "https://api.binance.com/api/v3"

// BinanceClient fetches market data from the Binance REST API.
type BinanceClient struct {
	logger  *slog.Logger
	http    *http.Client
	baseURL string
}

// NewBinanceClient creates a new BinanceClient.
func NewBinanceClient(logger *slog.Logger) *BinanceClient {
	return &BinanceClient{logger: logger, http: newHTTPClient(), baseURL: binanceBaseURL}
}

func (b *BinanceClient) Name() string { return "binance" }

func binanceSymbol(pair string) string {
	return strings.ReplaceAll(pair, "/", "")
}

// Price returns the latest traded price for a pair.
func (b *BinanceClient) Price(ctx context.Context, pair string) (decimal.Decimal, error) {
	var payload struct {
		Price string `json:"price"`
	}
	url := fmt.Sprintf("%s/ticker/price?symbol=%s", b.baseURL, binanceSymbol(pair))
	if err := getJSON(ctx, b.http, url, &payload); err != nil {
		return decimal.Zero, err
	}
	return decimal.NewFromString(payload.Price)
}

// OrderBook returns up to depth levels of bids and asks, best first.
func (b *BinanceClient) OrderBook(ctx context.Context, pair string, depth int) (model.OrderBook, error) {
	var payload struct {
		Bids [][]string `json:"bids"`
		Asks [][]string `json:"asks"`
	}
	url := fmt.Sprintf("%s/depth?symbol=%s&limit=%d", b.baseURL, binanceSymbol(pair), depth)
	if err := getJSON(ctx, b.http, url, &payload); err != nil {
		return model.OrderBook{}, err
	}
	return parseStringLevels(payload.Bids, payload.Asks)
}

// parseStringLevels converts [price, quantity, ...] string tuples into book levels.
func parseStringLevels(bids, asks [][]string) (model.OrderBook, error) {
	parse := func(raw [][]string) ([]model.OrderBookLevel, error) {
		levels := make([]model.OrderBookLevel, 0, len(raw))
		for _, entry := range raw {
			if len(entry) < 2 {
				return nil, fmt.Errorf("malformed order book level %v", entry)
			}
			price, err := decimal.NewFromString(entry[0])
			if err != nil {
				return nil, err
			}
			qty, err := decimal.NewFromString(entry[1])
			if err != nil {
				return nil, err
			}
			levels = append(levels, model.OrderBookLevel{Price: price, Quantity: qty})
		}
		return levels, nil
	}

	parsedBids, err := parse(bids)
	if err != nil {
		return model.OrderBook{}, err
	}
	parsedAsks, err := parse(asks)
	if err != nil {
		return model.OrderBook{}, err
	}
	return model.OrderBook{Bids: parsedBids, Asks: parsedAsks}, nil
}
