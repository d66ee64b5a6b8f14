package cache

import (
	"context"
	"fmt"
	"time"
)

// RateLimiter is a fixed-window counter shared by every API instance.
type RateLimiter struct {
	redis  *RedisClient
	prefix string
	limit  int
	window time.Duration
}

// NewRateLimiter allows limit hits per window for each key.
func NewRateLimiter(redis *RedisClient, prefix string, limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{redis: redis, prefix: prefix, limit: limit, window: window}
}

// Allow records a hit for key and reports whether it is within the limit.
// The second value is the time left until the window resets.
func (l *RateLimiter) Allow(ctx context.Context, key string) (bool, time.Duration, error) {
	k := fmt.Sprintf("ratelimit:%s:%s", l.prefix, key)
	n, err := l.redis.Incr(ctx, k)
	if err != nil {
		return false, 0, err
	}
	if n == 1 {
		if err := l.redis.Expire(ctx, k, l.window); err != nil {
			return false, 0, err
		}
	}
	ttl, err := l.redis.TTL(ctx, k)
	if err != nil {
		return false, 0, err
	}
	if ttl < 0 {
		// Key lost its TTL (e.g. expire failed after incr); restart the window.
		_ = l.redis.Expire(ctx, k, l.window)
		ttl = l.window
	}
	return n <= int64(l.limit), ttl, nil
}
