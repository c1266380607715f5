package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/connexus-ai/gweta-core/internal/providers"
)

// RedisBackend implements providers.Cache over github.com/redis/go-redis/v9,
// grounded on the donor's TTL-map cache packages but against a real shared
// backend rather than an in-process map, so cache state survives process
// restarts and is shared across replicas.
type RedisBackend struct {
	client *redis.Client
}

// NewRedisBackend parses redisURL (redis://host:port/db form) and opens a
// client. It does not ping eagerly; a cold/unreachable Redis surfaces as Get
// errors, which every QueryCache method above treats as a miss.
func NewRedisBackend(redisURL string) (*RedisBackend, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("cache.NewRedisBackend: parse url: %w", err)
	}
	return &RedisBackend{client: redis.NewClient(opts)}, nil
}

var _ providers.Cache = (*RedisBackend)(nil)

// Get implements providers.Cache.
func (b *RedisBackend) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := b.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache.RedisBackend.Get: %w", err)
	}
	return val, true, nil
}

// Set implements providers.Cache.
func (b *RedisBackend) Set(ctx context.Context, key string, value []byte, ttlSeconds int) error {
	if err := b.client.Set(ctx, key, value, time.Duration(ttlSeconds)*time.Second).Err(); err != nil {
		return fmt.Errorf("cache.RedisBackend.Set: %w", err)
	}
	return nil
}

// Expire implements providers.Cache.
func (b *RedisBackend) Expire(ctx context.Context, key string, ttlSeconds int) error {
	if err := b.client.Expire(ctx, key, time.Duration(ttlSeconds)*time.Second).Err(); err != nil {
		return fmt.Errorf("cache.RedisBackend.Expire: %w", err)
	}
	return nil
}

// SAdd implements providers.Cache.
func (b *RedisBackend) SAdd(ctx context.Context, set string, members ...string) error {
	args := make([]any, len(members))
	for i, m := range members {
		args[i] = m
	}
	if err := b.client.SAdd(ctx, set, args...).Err(); err != nil {
		return fmt.Errorf("cache.RedisBackend.SAdd: %w", err)
	}
	return nil
}

// SMembers implements providers.Cache.
func (b *RedisBackend) SMembers(ctx context.Context, set string) ([]string, error) {
	members, err := b.client.SMembers(ctx, set).Result()
	if err != nil {
		return nil, fmt.Errorf("cache.RedisBackend.SMembers: %w", err)
	}
	return members, nil
}

// Close releases the underlying connection pool.
func (b *RedisBackend) Close() error {
	return b.client.Close()
}
