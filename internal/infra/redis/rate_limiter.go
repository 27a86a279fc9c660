package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Decision is the outcome of one rate-limit check.
type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

// RateLimiter is a fixed-window counter: INCR key, EXPIRE on first hit, and a
// separate block key once the window is exhausted.
type RateLimiter struct {
	client *redis.Client
	limit  int
	window time.Duration
	block  time.Duration
	prefix string
}

func NewRateLimiter(client *redis.Client, limit int, window, block time.Duration, prefix string) *RateLimiter {
	return &RateLimiter{client: client, limit: limit, window: window, block: block, prefix: prefix}
}

// Allow counts one request for clientID.
func (l *RateLimiter) Allow(ctx context.Context, clientID string) (Decision, error) {
	key := l.prefix + ":" + clientID
	blockKey := key + ":blocked"

	ttl, err := l.client.TTL(ctx, blockKey).Result()
	if err != nil {
		return Decision{}, fmt.Errorf("check block: %w", err)
	}
	if ttl > 0 {
		return Decision{Allowed: false, Limit: l.limit, RetryAfter: ttl}, nil
	}

	count, err := l.client.Incr(ctx, key).Result()
	if err != nil {
		return Decision{}, fmt.Errorf("incr counter: %w", err)
	}
	if count == 1 {
		if err := l.client.Expire(ctx, key, l.window).Err(); err != nil {
			return Decision{}, fmt.Errorf("expire counter: %w", err)
		}
	}

	if count > int64(l.limit) {
		if err := l.client.Set(ctx, blockKey, "1", l.block).Err(); err != nil {
			return Decision{}, fmt.Errorf("set block: %w", err)
		}
		return Decision{Allowed: false, Limit: l.limit, RetryAfter: l.block}, nil
	}
	return Decision{Allowed: true, Limit: l.limit, Remaining: l.limit - int(count)}, nil
}
