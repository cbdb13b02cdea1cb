// File: authtoken.cache.redis.imp.go

package authtoken

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisRevocationCache is a Redis-backed implementation of RevocationCache.
// Key namespacing (the refresh_token: and family: prefixes) is applied by
// the caller; this layer only stores presence markers with TTLs.
type RedisRevocationCache struct {
	client *redis.Client
}

// NewRedisRevocationCache creates a new Redis-backed revocation cache.
func NewRedisRevocationCache(client *redis.Client) (*RedisRevocationCache, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client cannot be nil")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := client.Ping(ctx).Result(); err != nil {
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	return &RedisRevocationCache{client: client}, nil
}

// Set writes a presence marker with the supplied TTL.
func (r *RedisRevocationCache) Set(ctx context.Context, key string, ttl time.Duration) error {
	if key == "" {
		return fmt.Errorf("cache key cannot be empty")
	}
	if ttl <= 0 {
		return fmt.Errorf("ttl must be positive")
	}
	return r.client.Set(ctx, key, "1", ttl).Err()
}

// Exists reports whether a live marker exists for the key.
func (r *RedisRevocationCache) Exists(ctx context.Context, key string) (bool, error) {
	if key == "" {
		return false, fmt.Errorf("cache key cannot be empty")
	}
	count, err := r.client.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("redis error: %w", err)
	}
	return count > 0, nil
}

// Delete removes the marker for the key, reporting whether one was present.
func (r *RedisRevocationCache) Delete(ctx context.Context, key string) (bool, error) {
	if key == "" {
		return false, fmt.Errorf("cache key cannot be empty")
	}
	removed, err := r.client.Del(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("redis error: %w", err)
	}
	return removed > 0, nil
}
