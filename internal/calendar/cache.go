package calendar

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

const cacheKey = "calendar:non_working_days"

// Cache keeps the non-working-day list in Redis so scheduling loops do not
// hit the database on every date check.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCache constructs Cache. A nil client disables caching.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Cache{client: client, ttl: ttl}
}

// Get returns the cached day list, or found=false on miss or error.
func (c *Cache) Get(ctx context.Context) ([]string, bool) {
	if c == nil || c.client == nil {
		return nil, false
	}
	raw, err := c.client.Get(ctx, cacheKey).Bytes()
	if err != nil {
		return nil, false
	}
	var days []string
	if err := json.Unmarshal(raw, &days); err != nil {
		return nil, false
	}
	return days, true
}

// Set stores the day list. Errors are swallowed: the cache is best effort.
func (c *Cache) Set(ctx context.Context, days []string) {
	if c == nil || c.client == nil {
		return
	}
	raw, err := json.Marshal(days)
	if err != nil {
		return
	}
	_ = c.client.Set(ctx, cacheKey, raw, c.ttl).Err()
}

// Invalidate drops the cached list after the admin list changes.
func (c *Cache) Invalidate(ctx context.Context) {
	if c == nil || c.client == nil {
		return
	}
	_ = c.client.Del(ctx, cacheKey).Err()
}
