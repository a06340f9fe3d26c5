package userdata

import (
	"context"
	"fmt"
	"time"

	backend "github.com/redis/go-redis/v9"
)

// Limiter is a fixed-window rate limiter on Redis. Each key owns a counter
// that expires after the window; the first hit in a window starts the clock.
type Limiter struct {
	client *backend.Client
	prefix string
}

// NewLimiter creates a limiter from an existing client.
func NewLimiter(client *backend.Client) *Limiter {
	return &Limiter{client: client, prefix: "rate_limit:"}
}

// Allow increments the counter for key and reports whether it is still
// within limit for the current window.
func (l *Limiter) Allow(ctx context.Context, key string, limit int, interval time.Duration) (bool, error) {
	fullKey := l.prefix + key

	count, err := l.client.Incr(ctx, fullKey).Result()
	if err != nil {
		return false, fmt.Errorf("error incrementing rate limit counter %s: %w", fullKey, err)
	}
	if count == 1 {
		if err := l.client.Expire(ctx, fullKey, interval).Err(); err != nil {
			return false, fmt.Errorf("error setting rate limit window for %s: %w", fullKey, err)
		}
	}
	return count <= int64(limit), nil
}
