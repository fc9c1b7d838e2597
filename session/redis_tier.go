package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisPrefix namespaces keys written by [RedisTier].
const DefaultRedisPrefix = "bedrud"

// RedisTier is a [Tier] backed by Redis. It serves as a durable tier shared between
// processes or hosts that run the client for the same user.
type RedisTier struct {
	redis  redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewRedisTier creates a [RedisTier]. An empty prefix falls back to [DefaultRedisPrefix];
// ttl <= 0 stores values without expiry.
func NewRedisTier(rdb redis.UniversalClient, prefix string, ttl time.Duration) *RedisTier {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	if ttl < 0 {
		ttl = 0
	}
	return &RedisTier{
		redis:  rdb,
		prefix: prefix,
		ttl:    ttl,
	}
}

func (r *RedisTier) key(key string) string {
	return r.prefix + ":" + key
}

// Get implements [Tier].
//
//	Performance: 1 Redis GET.
func (r *RedisTier) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := r.redis.Get(ctx, r.key(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return data, true, nil
}

// Set implements [Tier].
func (r *RedisTier) Set(ctx context.Context, key string, value []byte) error {
	if err := r.redis.Set(ctx, r.key(key), value, r.ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return nil
}

// Delete implements [Tier].
func (r *RedisTier) Delete(ctx context.Context, key string) error {
	if err := r.redis.Del(ctx, r.key(key)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return nil
}

// TTL returns the remaining lifetime of key. A missing key or a key without expiry
// yields 0.
func (r *RedisTier) TTL(ctx context.Context, key string) (time.Duration, error) {
	ttl, err := r.redis.PTTL(ctx, r.key(key)).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	if ttl < 0 {
		return 0, nil
	}
	return ttl, nil
}

// Ping returns a point-in-time Redis availability check and latency.
func (r *RedisTier) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	if err := r.redis.Ping(ctx).Err(); err != nil {
		return time.Since(start), fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return time.Since(start), nil
}
