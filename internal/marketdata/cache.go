package marketdata

import (
	"sync"
	"time"

	"github.com/ternarybob/nuntius/internal/models"
)

type cacheEntry struct {
	value   float64
	quote   *models.PriceQuote
	expires time.Time
}

// ttlCache holds per-field market data under field-prefixed keys. Expired
// entries are never served; purge removes them in bulk.
type ttlCache struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry
}

func newTTLCache() *ttlCache {
	return &ttlCache{entries: make(map[string]cacheEntry)}
}

func cacheKey(field, ticker string) string {
	return field + "|" + ticker
}

func (c *ttlCache) value(key string) (float64, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.entries[key]
	if !ok || time.Now().After(entry.expires) {
		return 0, false
	}
	return entry.value, true
}

func (c *ttlCache) quote(key string) (*models.PriceQuote, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.entries[key]
	if !ok || entry.quote == nil || time.Now().After(entry.expires) {
		return nil, false
	}
	return entry.quote, true
}

func (c *ttlCache) putValue(key string, v float64, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cacheEntry{value: v, expires: time.Now().Add(ttl)}
}

func (c *ttlCache) putQuote(key string, q *models.PriceQuote, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cacheEntry{quote: q, expires: time.Now().Add(ttl)}
}

func (c *ttlCache) purge() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := time.Now()
	removed := 0
	for key, entry := range c.entries {
		if now.After(entry.expires) {
			delete(c.entries, key)
			removed++
		}
	}
	return removed
}
