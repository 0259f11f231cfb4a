// Package redis keeps state that several server instances must share:
// consumed password-reset tokens and rate-limit counters.
package redis

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

const (
	consumedTokenPrefix = "reset:consumed:"
	rateLimitPrefix     = "rl:"
)

// Client wraps a Redis connection.
type Client struct {
	rdb *goredis.Client
}

// NewClient creates a Redis client from a URL and verifies the connection.
func NewClient(redisURL string) (*Client, error) {
	opts, err := goredis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis URL: %w", err)
	}
	rdb := goredis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}
	return &Client{rdb: rdb}, nil
}

// Ping checks the Redis connection.
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Consume records a reset token ID until the token expires. It returns
// false if the ID was already recorded.
func (c *Client) Consume(ctx context.Context, tokenID string, expiresAt time.Time) (bool, error) {
	ttl := time.Until(expiresAt)
	if ttl < time.Second {
		ttl = time.Second
	}
	ok, err := c.rdb.SetNX(ctx, consumedTokenPrefix+tokenID, 1, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("consuming reset token: %w", err)
	}
	return ok, nil
}

// IsConsumed reports whether a reset token ID has been recorded.
func (c *Client) IsConsumed(ctx context.Context, tokenID string) (bool, error) {
	n, err := c.rdb.Exists(ctx, consumedTokenPrefix+tokenID).Result()
	if err != nil {
		return false, fmt.Errorf("checking reset token: %w", err)
	}
	return n > 0, nil
}

// rateLimitScript atomically increments a counter and sets its TTL on first use.
var rateLimitScript = goredis.NewScript(`
local count = redis.call("INCR", KEYS[1])
if count == 1 then
    redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return count
`)

// CheckRateLimit returns true if the request is allowed, false if rate limited.
// Uses an atomic INCR + PEXPIRE Lua script for a fixed-window counter.
func (c *Client) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	count, err := rateLimitScript.Run(ctx, c.rdb, []string{rateLimitPrefix + key}, window.Milliseconds()).Int64()
	if err != nil {
		return false, fmt.Errorf("checking rate limit: %w", err)
	}
	return count <= int64(limit), nil
}

// Limiter is a fixed-window rate limiter shared through Redis.
type Limiter struct {
	client *Client
	limit  int
	window time.Duration
}

func NewLimiter(client *Client, limit int, window time.Duration) *Limiter {
	return &Limiter{client: client, limit: limit, window: window}
}

// Allow lets the attempt through when Redis is unavailable rather than
// locking every user out.
func (l *Limiter) Allow(ctx context.Context, key string) bool {
	ok, err := l.client.CheckRateLimit(ctx, key, l.limit, l.window)
	if err != nil {
		slog.Warn("rate limit check failed", "error", err)
		return true
	}
	return ok
}
