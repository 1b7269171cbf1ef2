package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/pawmatch/engine/internal/config"
	"github.com/redis/go-redis/v9"
)

type RedisCache struct {
	Client *redis.Client
}

// NewRedisCache initializes Redis client from config.
// Only Addr is mandatory, Password/DB are optional.
func NewRedisCache(cfg *config.Config) *RedisCache {
	opts := &redis.Options{
		Addr: cfg.Redis.Addr,
	}
	if cfg.Redis.Password != "" {
		opts.Password = cfg.Redis.Password
	}
	if cfg.Redis.DB != 0 {
		opts.DB = cfg.Redis.DB
	}
	return &RedisCache{Client: redis.NewClient(opts)}
}

func (c *RedisCache) Ping(ctx context.Context) error {
	return c.Client.Ping(ctx).Err()
}

func (c *RedisCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	return c.Client.Set(ctx, key, value, ttl).Err()
}

func (c *RedisCache) Get(ctx context.Context, key string) (string, error) {
	return c.Client.Get(ctx, key).Result()
}

func (c *RedisCache) Del(ctx context.Context, key string) error {
	return c.Client.Del(ctx, key).Err()
}

func (c *RedisCache) Incr(ctx context.Context, key string) (int64, error) {
	return c.Client.Incr(ctx, key).Result()
}

func (c *RedisCache) Decr(ctx context.Context, key string) (int64, error) {
	return c.Client.Decr(ctx, key).Result()
}

func (c *RedisCache) Expire(ctx context.Context, key string, ttl time.Duration) error {
	return c.Client.Expire(ctx, key, ttl).Err()
}

// Publish sends a payload to a pub/sub channel (match notifications).
func (c *RedisCache) Publish(ctx context.Context, channel string, payload []byte) error {
	return c.Client.Publish(ctx, channel, payload).Err()
}

// Subscribe opens a pub/sub subscription on a channel. The caller owns
// the returned PubSub and must Close it.
func (c *RedisCache) Subscribe(ctx context.Context, channel string) *redis.PubSub {
	return c.Client.Subscribe(ctx, channel)
}

// KeyForAdmirerCount generates the Redis key for a pet's admirer count.
func (c *RedisCache) KeyForAdmirerCount(petID uint64) string {
	return fmt.Sprintf("admirers:count:%d", petID)
}

// GetAdmirerCount reads the cached admirer count. A cache miss is not
// an error; it returns ok=false so the caller can fall back to the DB.
func (c *RedisCache) GetAdmirerCount(ctx context.Context, petID uint64) (int64, bool, error) {
	val, err := c.Client.Get(ctx, c.KeyForAdmirerCount(petID)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	} else if err != nil {
		return 0, false, err
	}
	// refresh TTL on access
	_ = c.Client.Expire(ctx, c.KeyForAdmirerCount(petID), time.Hour).Err()
	n, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, false, nil
	}
	return n, true, nil
}

// SetAdmirerCount stores the admirer count with a 1h TTL.
func (c *RedisCache) SetAdmirerCount(ctx context.Context, petID uint64, count int64) error {
	return c.Client.Set(ctx, c.KeyForAdmirerCount(petID), count, time.Hour).Err()
}
