package stats

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"ms-cursos/internal/logger"
)

// RedisCache keeps rendered stats payloads in Redis for a short TTL. Cache
// trouble degrades to a recompute, never to an error.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *logger.Logger
}

func NewRedisCache(client *redis.Client, ttl time.Duration, log *logger.Logger) *RedisCache {
	return &RedisCache{client: client, ttl: ttl, logger: log}
}

func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, bool) {
	raw, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, false
	}
	if err != nil {
		c.logger.Warn("CACHE", fmt.Sprintf("Redis get %s failed: %v", key, err))
		return nil, false
	}
	return raw, true
}

func (c *RedisCache) Set(ctx context.Context, key string, value []byte) {
	if err := c.client.Set(ctx, key, value, c.ttl).Err(); err != nil {
		c.logger.Warn("CACHE", fmt.Sprintf("Redis set %s failed: %v", key, err))
	}
}
