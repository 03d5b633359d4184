package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache stores JSON values under "<prefix>:cache:<key>" with a TTL.
type Cache struct {
	client *Client
	prefix string
}

// NewCache creates a new cache helper
func NewCache(client *Client, prefix string) *Cache {
	return &Cache{
		client: client,
		prefix: prefix,
	}
}

func (c *Cache) fullKey(key string) string {
	return fmt.Sprintf("%s:cache:%s", c.prefix, key)
}

// Get retrieves a cached value. A missing key is reported as (false, nil).
func (c *Cache) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	if !c.client.Enabled() {
		return false, nil
	}

	data, err := c.client.Redis().Get(ctx, c.fullKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("cache get failed: %w", err)
	}

	if err := json.Unmarshal(data, dest); err != nil {
		return false, fmt.Errorf("cache unmarshal failed: %w", err)
	}

	return true, nil
}

// Set stores a value in cache with TTL
func (c *Cache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if !c.client.Enabled() {
		return nil
	}

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache marshal failed: %w", err)
	}

	return c.client.Redis().Set(ctx, c.fullKey(key), data, ttl).Err()
}

// Delete removes a cached value
func (c *Cache) Delete(ctx context.Context, key string) error {
	if !c.client.Enabled() {
		return nil
	}

	return c.client.Redis().Del(ctx, c.fullKey(key)).Err()
}

// Predefined TTLs
const (
	TTLShort = 10 * time.Minute // recent prices
	TTLLong  = 1 * time.Hour    // daily series
	TTLDaily = 24 * time.Hour   // closed pool days
)

// PriceSeriesKey identifies a daily price series request.
func PriceSeriesKey(assetID string, days int) string {
	return fmt.Sprintf("prices:%s:%d", strings.ToLower(assetID), days)
}

// PoolSeriesKey identifies a pool day-data request. Addresses are case-insensitive.
func PoolSeriesKey(pool string, startUnix, endUnix int64) string {
	return fmt.Sprintf("pool:%s:%d:%d", strings.ToLower(pool), startUnix, endUnix)
}
