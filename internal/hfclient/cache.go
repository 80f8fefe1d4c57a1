package hfclient

import (
	"strings"
	"sync"
	"time"
)

// resultCache is an in-memory TTL cache for classification results, keyed by
// (model, normalized text) so repeat titles never trigger repeat calls
// within the expiry window.
type resultCache struct {
	mu      sync.Mutex
	entries map[string]cacheEntry
	ttl     time.Duration
	now     func() time.Time
}

type cacheEntry struct {
	value   any
	savedAt time.Time
}

func newResultCache(ttl time.Duration) *resultCache {
	return &resultCache{
		entries: make(map[string]cacheEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// cacheKey normalizes the text the same way for writes and reads.
func cacheKey(model, text string) string {
	return model + ":" + strings.ToLower(strings.TrimSpace(text))
}

func cacheGet[T any](c *resultCache, model, text string) (T, bool) {
	var zero T

	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[cacheKey(model, text)]
	if !ok {
		return zero, false
	}
	if c.now().Sub(entry.savedAt) >= c.ttl {
		delete(c.entries, cacheKey(model, text))
		return zero, false
	}

	value, ok := entry.value.(T)
	if !ok {
		return zero, false
	}
	return value, true
}

func cachePut[T any](c *resultCache, model, text string, value T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[cacheKey(model, text)] = cacheEntry{value: value, savedAt: c.now()}
}
