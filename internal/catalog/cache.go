package catalog

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// DefaultCacheTTL is how long cached search results stay fresh.
const DefaultCacheTTL = 15 * time.Minute

type cacheEntry struct {
	songs     []Song
	fetchedAt time.Time
}

// Cache wraps a Searcher and memoizes results per (query, limit) for a
// TTL. Entries are invalidated lazily on lookup.
type Cache struct {
	searcher Searcher
	ttl      time.Duration
	now      func() time.Time

	onHit  func()
	onMiss func()

	mu      sync.RWMutex
	entries map[string]cacheEntry
}

// CacheOption configures a Cache.
type CacheOption func(*Cache)

// WithTTL overrides the entry lifetime. Non-positive values keep the
// default.
func WithTTL(ttl time.Duration) CacheOption {
	return func(c *Cache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) CacheOption {
	return func(c *Cache) {
		c.now = now
	}
}

// WithObserver registers callbacks fired on cache hits and misses.
func WithObserver(hit, miss func()) CacheOption {
	return func(c *Cache) {
		c.onHit = hit
		c.onMiss = miss
	}
}

// NewCache wraps searcher with a TTL cache.
func NewCache(searcher Searcher, opts ...CacheOption) *Cache {
	c := &Cache{
		searcher: searcher,
		ttl:      DefaultCacheTTL,
		now:      time.Now,
		entries:  make(map[string]cacheEntry),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Search returns cached results when fresh, otherwise asks the wrapped
// searcher and caches what it returns. Provider errors are never
// cached.
func (c *Cache) Search(ctx context.Context, query string, limit int) ([]Song, error) {
	key := fmt.Sprintf("%s|%d", query, limit)

	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if ok && c.now().Sub(entry.fetchedAt) < c.ttl {
		if c.onHit != nil {
			c.onHit()
		}
		return entry.songs, nil
	}

	if c.onMiss != nil {
		c.onMiss()
	}
	songs, err := c.searcher.Search(ctx, query, limit)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.entries[key] = cacheEntry{songs: songs, fetchedAt: c.now()}
	c.mu.Unlock()
	return songs, nil
}

// Purge drops every expired entry. The cache works without it; it only
// bounds memory on long-running processes.
func (c *Cache) Purge() {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	for key, entry := range c.entries {
		if now.Sub(entry.fetchedAt) >= c.ttl {
			delete(c.entries, key)
		}
	}
}

// Len reports how many entries the cache holds, fresh or not.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

var _ Searcher = (*Cache)(nil)
