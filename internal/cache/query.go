// Package cache holds the in-memory query cache and the in-flight request
// deduplicator that sit in front of the backend.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/mapeo-verde/mapeo-verde-api/internal/metrics"
)

// DefaultTTL applies when Set is called without a positive ttl.
const DefaultTTL = 5 * time.Minute

type entry struct {
	data      any
	timestamp time.Time
	ttl       time.Duration
}

func (e entry) expired(now time.Time) bool {
	return now.Sub(e.timestamp) > e.ttl
}

// QueryCache is a concurrent-safe TTL cache for query results. Expired
// entries are dropped lazily on Get, or in bulk by Cleanup.
type QueryCache struct {
	mu         sync.Mutex
	entries    map[string]entry
	defaultTTL time.Duration
	nowFunc    func() time.Time
	hits       atomic.Int64
	misses     atomic.Int64
}

// Stats contains cache statistics.
type Stats struct {
	Entries int     `json:"entries"`
	Hits    int64   `json:"hits"`
	Misses  int64   `json:"misses"`
	HitRate float64 `json:"hitRate"`
}

// NewQueryCache creates a cache. A non-positive defaultTTL means DefaultTTL.
func NewQueryCache(defaultTTL time.Duration) *QueryCache {
	if defaultTTL <= 0 {
		defaultTTL = DefaultTTL
	}
	return &QueryCache{
		entries:    make(map[string]entry),
		defaultTTL: defaultTTL,
		nowFunc:    time.Now,
	}
}

// Set stores data under key. A non-positive ttl uses the cache default.
func (c *QueryCache) Set(key string, data any, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = entry{data: data, timestamp: c.nowFunc(), ttl: ttl}
}

// Get returns the value under key, or false on a miss. An expired entry is
// removed and reported as a miss.
func (c *QueryCache) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		c.misses.Add(1)
		metrics.CacheRequestsTotal.WithLabelValues("miss").Inc()
		return nil, false
	}
	if e.expired(c.nowFunc()) {
		delete(c.entries, key)
		c.misses.Add(1)
		metrics.CacheRequestsTotal.WithLabelValues("expired").Inc()
		return nil, false
	}
	c.hits.Add(1)
	metrics.CacheRequestsTotal.WithLabelValues("hit").Inc()
	return e.data, true
}

// Lookup is a typed Get. A value of another type counts as a miss.
func Lookup[T any](c *QueryCache, key string) (T, bool) {
	var zero T
	v, ok := c.Get(key)
	if !ok {
		return zero, false
	}
	t, ok := v.(T)
	if !ok {
		return zero, false
	}
	return t, true
}

// Delete removes key.
func (c *QueryCache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// Clear removes every entry.
func (c *QueryCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]entry)
}

// Cleanup removes expired entries and returns how many were removed.
func (c *QueryCache) Cleanup() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.nowFunc()
	removed := 0
	for k, e := range c.entries {
		if e.expired(now) {
			delete(c.entries, k)
			removed++
		}
	}
	return removed
}

// Len returns the number of stored entries, expired or not.
func (c *QueryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Stats returns cache statistics.
func (c *QueryCache) Stats() Stats {
	entries := c.Len()
	hits := c.hits.Load()
	misses := c.misses.Load()

	var hitRate float64
	if total := hits + misses; total > 0 {
		hitRate = float64(hits) / float64(total)
	}
	return Stats{Entries: entries, Hits: hits, Misses: misses, HitRate: hitRate}
}

// Run calls Cleanup every interval until ctx is done.
func (c *QueryCache) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := c.Cleanup(); n > 0 {
				zap.L().Debug("cache: swept expired entries", zap.Int("removed", n))
			}
		}
	}
}

// KeyFor builds a cache key from a table name and its filters. Map keys are
// serialized in sorted order, so the key does not depend on how the caller
// built the map.
func KeyFor(table string, filters map[string]any) string {
	if len(filters) == 0 {
		return table + ":{}"
	}
	b, err := json.Marshal(filters)
	if err != nil {
		return fmt.Sprintf("%s:%v", table, filters)
	}
	return table + ":" + string(b)
}
