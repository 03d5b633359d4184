package market

import (
	"context"
	"sync"
	"time"

	rcache "github.com/yielddelta/backtester/pkg/redis"
)

// Clock returns the current time. Tests inject a fixed one.
type Clock func() time.Time

// Cache holds fetched series between runs. Implementations must be safe for
// concurrent use.
type Cache interface {
	GetPrices(ctx context.Context, key string) ([]PricePoint, bool, error)
	PutPrices(ctx context.Context, key string, series []PricePoint) error
	GetPools(ctx context.Context, key string) ([]PoolSnapshot, bool, error)
	PutPools(ctx context.Context, key string, series []PoolSnapshot) error
}

type memoryEntry struct {
	prices   []PricePoint
	pools    []PoolSnapshot
	storedAt time.Time
}

// MemoryCache is an in-process TTL cache.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	ttl     time.Duration
	now     Clock
}

// NewMemoryCache creates a cache whose entries expire after ttl.
// A nil clock means time.Now.
func NewMemoryCache(ttl time.Duration, clock Clock) *MemoryCache {
	if clock == nil {
		clock = time.Now
	}
	return &MemoryCache{
		entries: make(map[string]memoryEntry),
		ttl:     ttl,
		now:     clock,
	}
}

func (c *MemoryCache) get(key string) (memoryEntry, bool) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return memoryEntry{}, false
	}

	if c.now().Sub(entry.storedAt) > c.ttl {
		c.mu.Lock()
		// re-check: a writer may have refreshed the entry meanwhile
		if cur, still := c.entries[key]; still && cur.storedAt.Equal(entry.storedAt) {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		return memoryEntry{}, false
	}
	return entry, true
}

func (c *MemoryCache) put(key string, entry memoryEntry) {
	entry.storedAt = c.now()
	c.mu.Lock()
	c.entries[key] = entry
	c.mu.Unlock()
}

// GetPrices returns a copy of a cached price series.
func (c *MemoryCache) GetPrices(_ context.Context, key string) ([]PricePoint, bool, error) {
	entry, ok := c.get(key)
	if !ok || entry.prices == nil {
		return nil, false, nil
	}
	return append([]PricePoint(nil), entry.prices...), true, nil
}

// PutPrices stores a copy of series.
func (c *MemoryCache) PutPrices(_ context.Context, key string, series []PricePoint) error {
	c.put(key, memoryEntry{prices: append([]PricePoint(nil), series...)})
	return nil
}

// GetPools returns a copy of a cached pool series.
func (c *MemoryCache) GetPools(_ context.Context, key string) ([]PoolSnapshot, bool, error) {
	entry, ok := c.get(key)
	if !ok || entry.pools == nil {
		return nil, false, nil
	}
	return append([]PoolSnapshot(nil), entry.pools...), true, nil
}

// PutPools stores a copy of series.
func (c *MemoryCache) PutPools(_ context.Context, key string, series []PoolSnapshot) error {
	c.put(key, memoryEntry{pools: append([]PoolSnapshot(nil), series...)})
	return nil
}

// Len returns the number of live entries.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	n := 0
	now := c.now()
	for _, e := range c.entries {
		if now.Sub(e.storedAt) <= c.ttl {
			n++
		}
	}
	return n
}

// RedisCache shares series between processes through Redis.
type RedisCache struct {
	cache *rcache.Cache
	ttl   time.Duration
}

// NewRedisCache creates a Redis-backed series cache.
func NewRedisCache(client *rcache.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{
		cache: rcache.NewCache(client, "backtester"),
		ttl:   ttl,
	}
}

func (c *RedisCache) GetPrices(ctx context.Context, key string) ([]PricePoint, bool, error) {
	var series []PricePoint
	found, err := c.cache.Get(ctx, key, &series)
	return series, found, err
}

func (c *RedisCache) PutPrices(ctx context.Context, key string, series []PricePoint) error {
	return c.cache.Set(ctx, key, series, c.ttl)
}

func (c *RedisCache) GetPools(ctx context.Context, key string) ([]PoolSnapshot, bool, error) {
	var series []PoolSnapshot
	found, err := c.cache.Get(ctx, key, &series)
	return series, found, err
}

func (c *RedisCache) PutPools(ctx context.Context, key string, series []PoolSnapshot) error {
	return c.cache.Set(ctx, key, series, c.ttl)
}
