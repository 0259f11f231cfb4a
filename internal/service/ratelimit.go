package service

import (
	"context"
	"sync"
	"time"
)

// RateLimiter decides whether another attempt identified by key may
// proceed. Implementations must be safe for concurrent use.
type RateLimiter interface {
	Allow(ctx context.Context, key string) bool
}

// TokenBucket is a simple in-memory per-key rate limiter using the token bucket algorithm.
// It is safe for concurrent use. Stale buckets are automatically cleaned up
// until Close is called.
type TokenBucket struct {
	mu       sync.Mutex
	buckets  map[string]*bucket
	rate     float64 // tokens added per second
	capacity float64 // maximum tokens
	now      func() time.Time

	stop      chan struct{}
	closeOnce sync.Once
}

type bucket struct {
	tokens float64
	last   time.Time
}

// NewTokenBucket creates a rate limiter that allows up to capacity tokens per key,
// refilling at the given rate (tokens per second). It starts a background goroutine
// that periodically removes stale buckets.
func NewTokenBucket(rate, capacity float64) *TokenBucket {
	tb := &TokenBucket{
		buckets:  make(map[string]*bucket),
		rate:     rate,
		capacity: capacity,
		now:      time.Now,
		stop:     make(chan struct{}),
	}
	go tb.cleanup()
	return tb
}

// NewWindowLimiter allows a burst of attempts per key, refilled evenly
// over window.
func NewWindowLimiter(attempts int, window time.Duration) *TokenBucket {
	return NewTokenBucket(float64(attempts)/window.Seconds(), float64(attempts))
}

// Allow reports whether the given key is allowed to proceed under the rate limit.
// Each call consumes one token. Returns false if the bucket is empty.
func (tb *TokenBucket) Allow(_ context.Context, key string) bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	now := tb.now()
	b, ok := tb.buckets[key]
	if !ok {
		b = &bucket{tokens: tb.capacity, last: now}
		tb.buckets[key] = b
	}

	elapsed := now.Sub(b.last).Seconds()
	b.tokens = min(b.tokens+elapsed*tb.rate, tb.capacity)
	b.last = now

	if b.tokens >= 1 {
		b.tokens--
		return true
	}
	return false
}

// Close stops the cleanup goroutine.
func (tb *TokenBucket) Close() {
	tb.closeOnce.Do(func() { close(tb.stop) })
}

// SetClock replaces time.Now, for tests.
func (tb *TokenBucket) SetClock(now func() time.Time) {
	tb.mu.Lock()
	tb.now = now
	tb.mu.Unlock()
}

// cleanup runs periodically and removes buckets that haven't been accessed in 10 minutes.
func (tb *TokenBucket) cleanup() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-tb.stop:
			return
		case <-ticker.C:
			tb.mu.Lock()
			cutoff := tb.now().Add(-10 * time.Minute)
			for key, b := range tb.buckets {
				if b.last.Before(cutoff) {
					delete(tb.buckets, key)
				}
			}
			tb.mu.Unlock()
		}
	}
}
