package cache

import (
	"context"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCache adapts a go-redis client to the market.Cache contract. Write and
// delete failures are logged rather than returned: the cache is advisory and
// a degraded Redis must not fail market operations.
type RedisCache struct {
	client *redis.Client
}

func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

// Get returns ("", false) on a miss or any Redis error.
func (c *RedisCache) Get(ctx context.Context, key string) (string, bool) {
	value, err := c.client.Get(ctx, key).Result()
	if err != nil {
		return "", false
	}
	return value, true
}

func (c *RedisCache) SetEx(ctx context.Context, key string, ttl time.Duration, value string) {
	if err := c.client.SetEx(ctx, key, value, ttl).Err(); err != nil {
		log.Printf("cache: write error for key %s: %v", key, err)
	}
}

func (c *RedisCache) Del(ctx context.Context, key string) {
	if err := c.client.Del(ctx, key).Err(); err != nil {
		log.Printf("cache: delete error for key %s: %v", key, err)
	}
}
