// Package cache invalidates downstream caches that hold the addon list or
// hook registrations after a lifecycle change.
package cache

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Invalidator drops cache entries by key.
type Invalidator interface {
	Invalidate(ctx context.Context, keys ...string) error
	Close() error
}

// Nop is the Invalidator used when no cache is configured.
type Nop struct{}

func (Nop) Invalidate(ctx context.Context, keys ...string) error { return nil }
func (Nop) Close() error                                          { return nil }

// RedisInvalidator deletes keys from a redis database.
type RedisInvalidator struct {
	rdb *redis.Client
}

// NewRedisInvalidator creates a RedisInvalidator. Connections are made lazily.
func NewRedisInvalidator(opts *redis.Options) *RedisInvalidator {
	return &RedisInvalidator{rdb: redis.NewClient(opts)}
}

// New returns a RedisInvalidator when addr is set, else Nop.
func New(addr string, db int) Invalidator {
	if addr == "" {
		return Nop{}
	}
	return NewRedisInvalidator(&redis.Options{Addr: addr, DB: db})
}

// Invalidate deletes the given keys. Missing keys are not an error.
func (r *RedisInvalidator) Invalidate(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := r.rdb.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to invalidate cache keys %v: %w", keys, err)
	}
	return nil
}

// Ping verifies redis connectivity.
func (r *RedisInvalidator) Ping(ctx context.Context) error {
	return r.rdb.Ping(ctx).Err()
}

// Close closes the redis connection.
func (r *RedisInvalidator) Close() error {
	return r.rdb.Close()
}
