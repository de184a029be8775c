package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisPrefix = "promptcoach:cache:"

// Redis is a Store shared between processes. Expiry is left to Redis.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedis wraps client. A non-positive ttl keeps entries until cleared.
func NewRedis(client *redis.Client, ttl time.Duration) *Redis {
	return &Redis{client: client, ttl: ttl}
}

// Get returns ("", false) on a miss or any Redis error.
func (r *Redis) Get(ctx context.Context, key string) (string, bool) {
	val, err := r.client.Get(ctx, redisPrefix+HashKey(key)).Result()
	if err != nil {
		return "", false
	}
	return val, true
}

func (r *Redis) Put(ctx context.Context, key, response string) error {
	ttl := r.ttl
	if ttl < 0 {
		ttl = 0
	}
	if err := r.client.Set(ctx, redisPrefix+HashKey(key), response, ttl).Err(); err != nil {
		return fmt.Errorf("caching response: %w", err)
	}
	return nil
}

// Clear deletes every cache key.
func (r *Redis) Clear(ctx context.Context) error {
	return r.scan(ctx, func(keys []string) error {
		return r.client.Del(ctx, keys...).Err()
	})
}

func (r *Redis) Stats(ctx context.Context) (Stats, error) {
	stats := Stats{Backend: "redis", Location: r.client.Options().Addr}
	err := r.scan(ctx, func(keys []string) error {
		stats.Entries += len(keys)
		for _, k := range keys {
			n, err := r.client.StrLen(ctx, k).Result()
			if err != nil && !errors.Is(err, redis.Nil) {
				return err
			}
			stats.TotalBytes += n
		}
		return nil
	})
	return stats, err
}

func (r *Redis) scan(ctx context.Context, fn func(keys []string) error) error {
	var cursor uint64
	for {
		keys, next, err := r.client.Scan(ctx, cursor, redisPrefix+"*", 200).Result()
		if err != nil {
			return fmt.Errorf("scanning cache keys: %w", err)
		}
		if len(keys) > 0 {
			if err := fn(keys); err != nil {
				return err
			}
		}
		if next == 0 {
			return nil
		}
		cursor = next
	}
}
