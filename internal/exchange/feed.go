package exchange

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/cm777-dev/crypto-arbitrage-bot/internal/model"
)

// Feed serves prices and order books across all configured venues,
// deduplicating price requests through a shared TTL cache.
type Feed struct {
	logger  *slog.Logger
	cache   *PriceCache
	clients map[string]Client
}

// NewFeed builds a Feed over the given clients.
func NewFeed(logger *slog.Logger, cache *PriceCache, clients ...Client) *Feed {
	byName := make(map[string]Client, len(clients))
	for _, c := range clients {
		byName[c.Name()] = c
	}
	return &Feed{logger: logger, cache: cache, clients: byName}
}

// Cache exposes the underlying price cache so streaming sources can prime it.
func (f *Feed) Cache() *PriceCache { return f.cache }

// GetPrice returns the current price, serving from cache when fresh.
func (f *Feed) GetPrice(ctx context.Context, exchange, pair string) (decimal.Decimal, error) {
	if price, ok := f.cache.Get(exchange, pair); ok {
		return price, nil
	}

	client, ok := f.clients[exchange]
	if !ok {
		return decimal.Zero, &FetchError{Exchange: exchange, Pair: pair, Err: fmt.Errorf("unknown exchange")}
	}
	price, err := client.Price(ctx, pair)
	if err != nil {
		return decimal.Zero, &FetchError{Exchange: exchange, Pair: pair, Err: err}
	}

	f.cache.Put(exchange, pair, price)
	return price, nil
}

// GetOrderBook fetches up to depth levels of the live order book.
func (f *Feed) GetOrderBook(ctx context.Context, exchange, pair string, depth int) (model.OrderBook, error) {
	client, ok := f.clients[exchange]
	if !ok {
		return model.OrderBook{}, &FetchError{Exchange: exchange, Pair: pair, Err: fmt.Errorf("unknown exchange")}
	}
	book, err := client.OrderBook(ctx, pair, depth)
	if err != nil {
		return model.OrderBook{}, &FetchError{Exchange: exchange, Pair: pair, Err: err}
	}
	return book, nil
}

// ErrInsufficientDepth is returned by EffectivePrice when the book cannot
// absorb the requested volume.
var ErrInsufficientDepth = errors.New("insufficient order book depth for requested volume")

// EffectivePrice walks book depth for the requested volume and returns the
// volume-weighted average fill price. side is "buy" (walk asks) or "sell"
// (walk bids).
func EffectivePrice(book model.OrderBook, volume decimal.Decimal, side string) (decimal.Decimal, error) {
	if !volume.IsPositive() {
		return decimal.Zero, &model.InvalidInputError{Field: "volume", Reason: "must be positive"}
	}
	levels := book.Asks
	if side == "sell" {
		levels = book.Bids
	}

	remaining := volume
	totalCost := decimal.Zero
	for _, lvl := range levels {
		fill := decimal.Min(remaining, lvl.Quantity)
		totalCost = totalCost.Add(fill.Mul(lvl.Price))
		remaining = remaining.Sub(fill)
		if !remaining.IsPositive() {
			break
		}
	}
	if remaining.IsPositive() {
		return decimal.Zero, ErrInsufficientDepth
	}
	return totalCost.Div(volume), nil
}
