// Package ratelimit implements a fixed-window request limiter on Redis.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// counter is the part of *redis.Client the limiter needs.
type counter interface {
	Incr(ctx context.Context, key string) *redis.IntCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
	TTL(ctx context.Context, key string) *redis.DurationCmd
}

// Limiter allows at most limit hits per key in each window.
type Limiter struct {
	client counter
	limit  int64
	window time.Duration
	prefix string
}

func NewLimiter(client counter, limit int, window time.Duration) *Limiter {
	return &Limiter{client: client, limit: int64(limit), window: window, prefix: "rate:"}
}

// NewRedisClient connects to addr and checks the connection.
func NewRedisClient(ctx context.Context, addr string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return client, nil
}

// Allow counts a hit for key. When Redis fails the hit is allowed and the
// error returned for logging.
func (l *Limiter) Allow(ctx context.Context, key string) (bool, error) {
	redisKey := l.prefix + key

	n, err := l.client.Incr(ctx, redisKey).Result()
	if err != nil {
		return true, fmt.Errorf("rate limit incr: %w", err)
	}

	// the first hit opens the window
	if n == 1 {
		if err := l.client.Expire(ctx, redisKey, l.window).Err(); err != nil {
			return true, fmt.Errorf("rate limit expire: %w", err)
		}
		return n <= l.limit, nil
	}

	if n > l.limit {
		// a counter whose expiry was never set would block the key for good
		if err := l.repairWindow(ctx, redisKey); err != nil {
			return true, err
		}
	}

	return n <= l.limit, nil
}

// noExpiry is what TTL reports for a key that exists without a timeout.
const noExpiry = time.Duration(-1)

func (l *Limiter) repairWindow(ctx context.Context, redisKey string) error {
	ttl, err := l.client.TTL(ctx, redisKey).Result()
	if err != nil {
		return fmt.Errorf("rate limit ttl: %w", err)
	}
	if ttl != noExpiry {
		return nil
	}
	if err := l.client.Expire(ctx, redisKey, l.window).Err(); err != nil {
		return fmt.Errorf("rate limit expire: %w", err)
	}
	return nil
}
