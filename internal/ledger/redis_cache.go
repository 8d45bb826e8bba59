package ledger

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCache stores revoked jtis as keys expiring with the token.
type RedisCache struct {
	client *redis.Client
	prefix string
}

// NewRedisCache returns nil when client is nil so callers can pass the
// result of config.NewRedisClient straight through WithCache.
func NewRedisCache(client *redis.Client, prefix string) RevocationCache {
	if client == nil {
		return nil
	}
	if prefix == "" {
		prefix = "revoked"
	}
	return &RedisCache{client: client, prefix: prefix}
}

func (c *RedisCache) key(jti string) string { return c.prefix + ":" + jti }

func (c *RedisCache) MarkRevoked(ctx context.Context, jti string, ttl time.Duration) error {
	return c.client.Set(ctx, c.key(jti), 1, ttl).Err()
}

func (c *RedisCache) IsRevoked(ctx context.Context, jti string) (bool, error) {
	n, err := c.client.Exists(ctx, c.key(jti)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
