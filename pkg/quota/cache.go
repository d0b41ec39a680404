package quota

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const cacheKeyPrefix = "reunio:quota:"

// Cache is a read-through Redis cache in front of a plan source. The
// quota poll runs every few seconds for the whole session; the cache
// keeps that from hammering the database.
type Cache struct {
	source Source
	client *redis.Client
	ttl    time.Duration
}

func NewCache(source Source, client *redis.Client, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &Cache{source: source, client: client, ttl: ttl}
}

func (c *Cache) Plan(ctx context.Context, userID string) (Plan, error) {
	key := cacheKeyPrefix + userID
	raw, err := c.client.Get(ctx, key).Result()
	if err == nil {
		var p Plan
		if err := json.Unmarshal([]byte(raw), &p); err == nil {
			return p, nil
		}
		// Corrupt entry: fall through to the source and rewrite it.
	} else if !errors.Is(err, redis.Nil) {
		// Redis being down must not block the quota check.
		return c.source.Plan(ctx, userID)
	}

	p, err := c.source.Plan(ctx, userID)
	if err != nil {
		return Plan{}, err
	}
	if buf, err := json.Marshal(p); err == nil {
		_ = c.client.Set(ctx, key, buf, c.ttl).Err()
	}
	return p, nil
}

// Invalidate drops the cached plan, typically after usage is recorded.
func (c *Cache) Invalidate(ctx context.Context, userID string) {
	_ = c.client.Del(ctx, cacheKeyPrefix+userID).Err()
}

var _ Source = (*Cache)(nil)
