package source

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"

	"github.com/aiki-no/aiki-cli/internal/config"
)

const redisKeyPrefix = "aiki:"

// RedisCache is a Cache backed by Redis.
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache connects to the server named in cfg.
func NewRedisCache(cfg config.RedisConfig) *RedisCache {
	return &RedisCache{client: redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})}
}

// NewRedisCacheFromClient wraps an existing client.
func NewRedisCacheFromClient(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

// Ping checks connectivity.
func (r *RedisCache) Ping(ctx context.Context) error {
	return eris.Wrap(r.client.Ping(ctx).Err(), "source: redis ping")
}

// Get implements Cache.
func (r *RedisCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := r.client.Get(ctx, redisKeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, eris.Wrap(err, "source: redis get")
	}
	return data, true, nil
}

// Set implements Cache.
func (r *RedisCache) Set(ctx context.Context, key string, val []byte, ttl time.Duration) error {
	return eris.Wrap(r.client.Set(ctx, redisKeyPrefix+key, val, ttl).Err(), "source: redis set")
}

// Close releases the connection pool.
func (r *RedisCache) Close() error {
	return r.client.Close()
}
