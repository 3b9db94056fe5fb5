package sessioncache

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "redeem:get-session:"

// RedisCache is a Store shared by every API instance. Redis errors are logged
// and treated as misses.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

func NewRedisCache(client *redis.Client, ttl time.Duration, logger *slog.Logger) *RedisCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisCache{client: client, ttl: ttl, logger: logger}
}

func (c *RedisCache) key(userID string) string {
	return redisKeyPrefix + userID
}

func (c *RedisCache) Get(ctx context.Context, userID string) (string, bool) {
	token, err := c.client.Get(ctx, c.key(userID)).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("session cache read failed", slog.String("user_id", userID), slog.Any("error", err))
		}
		return "", false
	}
	return token, true
}

func (c *RedisCache) Set(ctx context.Context, userID, token string) {
	if err := c.client.Set(ctx, c.key(userID), token, c.ttl).Err(); err != nil {
		c.logger.Warn("session cache write failed", slog.String("user_id", userID), slog.Any("error", err))
	}
}

func (c *RedisCache) Clear(ctx context.Context, userID string) {
	if err := c.client.Del(ctx, c.key(userID)).Err(); err != nil {
		c.logger.Warn("session cache clear failed", slog.String("user_id", userID), slog.Any("error", err))
	}
}

// PurgeExpired is a no-op; redis expires keys on its own.
func (c *RedisCache) PurgeExpired(context.Context) (int, error) {
	return 0, nil
}
