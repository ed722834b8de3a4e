package cache

import (
	"context"
	"time"

	"github.com/dandihub/archive/common/redis"
)

// RedisCache shares cached values across API instances. Used in multi-node
// deployments so every instance sees the same presigned URLs.
type RedisCache struct {
	client *redis.Client
	prefix string
}

// NewRedisCache creates a Redis-backed cache. All keys are stored under the
// given prefix to keep them apart from queue and rate-limit keys.
func NewRedisCache(client *redis.Client, prefix string) *RedisCache {
	return &RedisCache{client: client, prefix: prefix}
}

func (c *RedisCache) key(key string) string {
	return c.prefix + ":" + key
}

// Get retrieves a value from cache
func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	value, found, err := c.client.Get(ctx, c.key(key))
	if err != nil || !found {
		return nil, false, err
	}
	return []byte(value), true, nil
}

// Set stores a value in cache with TTL
func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return c.client.SetWithExpiry(ctx, c.key(key), string(value), ttl)
}

// Delete removes a value from cache
func (c *RedisCache) Delete(ctx context.Context, key string) error {
	return c.client.Delete(ctx, c.key(key))
}

// Close is a no-op; the underlying connection is owned by the bootstrap
func (c *RedisCache) Close() error {
	return nil
}
