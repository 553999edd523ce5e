package cache

import (
	"context"
	"sync"
	"time"

	"property-valuation/models"
)

// MemoryCache is a size- and time-bounded in-process SeriesCache.
// At capacity the entry with the oldest FetchedAt is evicted.
type MemoryCache struct {
	mu         sync.RWMutex
	entries    map[string]*models.CacheEntry
	maxEntries int
	ttl        time.Duration
	now        func() time.Time
}

// NewMemoryCache creates a MemoryCache. maxEntries <= 0 means unbounded;
// ttl <= 0 disables expiry on read.
func NewMemoryCache(maxEntries int, ttl time.Duration) *MemoryCache {
	return &MemoryCache{
		entries:    make(map[string]*models.CacheEntry),
		maxEntries: maxEntries,
		ttl:        ttl,
		now:        time.Now,
	}
}

// WithClock overrides the clock used for expiry checks.
func (c *MemoryCache) WithClock(now func() time.Time) *MemoryCache {
	c.now = now
	return c
}

func (c *MemoryCache) Get(_ context.Context, key string) (*models.CacheEntry, error) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return nil, ErrCacheMiss
	}

	if c.ttl > 0 && !e.Fresh(c.now(), c.ttl) {
		c.mu.Lock()
		if cur, ok := c.entries[key]; ok && cur == e {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		return nil, ErrCacheMiss
	}

	cp := *e
	cp.Series = e.Series.Clone()
	return &cp, nil
}

func (c *MemoryCache) Set(_ context.Context, key string, entry *models.CacheEntry) error {
	cp := *entry
	cp.Series = entry.Series.Clone()

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists && c.maxEntries > 0 && len(c.entries) >= c.maxEntries {
		c.evictOldestLocked()
	}
	c.entries[key] = &cp
	return nil
}

func (c *MemoryCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
	return nil
}

// Len returns the number of stored entries, expired ones included.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *MemoryCache) evictOldestLocked() {
	var oldestKey string
	var oldest time.Time
	first := true
	for k, e := range c.entries {
		if first || e.FetchedAt.Before(oldest) {
			oldestKey, oldest, first = k, e.FetchedAt, false
		}
	}
	if !first {
		delete(c.entries, oldestKey)
	}
}
