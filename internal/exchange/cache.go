package exchange

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// DefaultCacheTTL bounds price staleness and outbound request volume.
const DefaultCacheTTL = 10 * time.Second

type cacheEntry struct {
	price   decimal.Decimal
	fetched time.Time
}

// PriceCache is a TTL cache for fetched prices, keyed by exchange and pair.
// Read-mostly; writes go through a single writer per key (the feed goroutine
// or the websocket stream).
type PriceCache struct {
	mu      sync.RWMutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]cacheEntry
}

// NewPriceCache creates a cache with the given time-to-live.
func NewPriceCache(ttl time.Duration) *PriceCache {
	return &PriceCache{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]cacheEntry),
	}
}

// Get returns the cached price if present and not expired.
func (c *PriceCache) Get(exchange, pair string) (decimal.Decimal, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.entries[exchange+"-"+pair]
	if !ok || c.now().Sub(entry.fetched) >= c.ttl {
		return decimal.Zero, false
	}
	return entry.price, true
}

// Put stores a freshly fetched price.
func (c *PriceCache) Put(exchange, pair string, price decimal.Decimal) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[exchange+"-"+pair] = cacheEntry{price: price, fetched: c.now()}
}
