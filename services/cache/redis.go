package cachesvc

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/shuleapp/shule/core"
)

type RedisCache struct {
	client *redis.Client
}

var _ core.Cache = (*RedisCache)(nil)

func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

// NewRedisClient connects to the configured redis server. It returns nil when no address is configured.
func NewRedisClient(ctx context.Context, conf *core.Config) (*redis.Client, error) {
	if conf.Redis.Address == "" {
		return nil, nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     conf.Redis.Address,
		Password: conf.Redis.Password,
		DB:       conf.Redis.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrap(err, "pinging redis")
	}
	return client, nil
}

func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, core.ErrCacheMiss
	}
	return val, errors.Wrap(err, "redis get")
}

func (c *RedisCache) Set(ctx context.Context, key string, val []byte, ttl time.Duration) error {
	return errors.Wrap(c.client.Set(ctx, key, val, ttl).Err(), "redis set")
}

func (c *RedisCache) Incr(ctx context.Context, key string) (int64, error) {
	n, err := c.client.Incr(ctx, key).Result()
	return n, errors.Wrap(err, "redis incr")
}
