// Package ratelimit implements the per-site token bucket from spec §4.4:
// a concurrent map from site_id to bucket, each bucket guarded by its own
// short-held lock so one busy site never blocks another's admission check.
package ratelimit

import (
	"sync"
	"time"
)

// bucket holds the fractional-token state for one site_id.
type bucket struct {
	mu         sync.Mutex
	tokens     float64
	lastRefill time.Time
}

// Limiter is a per-site token bucket rate limiter. rate == 0 means
// unlimited: every request is admitted and no bookkeeping happens.
type Limiter struct {
	rate     float64 // tokens per second
	capacity float64

	mu      sync.Mutex
	buckets map[string]*bucket
}

// New creates a Limiter. rate is tokens/sec; capacity is the bucket size.
func New(rate, capacity float64) *Limiter {
	return &Limiter{
		rate:     rate,
		capacity: capacity,
		buckets:  make(map[string]*bucket),
	}
}

// Enabled reports whether this limiter actually restricts admission.
func (l *Limiter) Enabled() bool {
	return l.rate > 0
}

// getBucket finds or lazily creates the bucket for siteID. Creation is
// thread-safe and idempotent per site_id per spec §4.4.
func (l *Limiter) getBucket(siteID string) *bucket {
	l.mu.Lock()
	defer l.mu.Unlock()
	b, ok := l.buckets[siteID]
	if !ok {
		b = &bucket{tokens: l.capacity, lastRefill: time.Now()}
		l.buckets[siteID] = b
	}
	return b
}

// Allow applies the token-bucket admission rule for siteID at the current
// instant. It returns whether the request is admitted and, when it is not,
// how long the caller should wait before retrying (for the Retry-After
// header, spec §7 RateLimited).
func (l *Limiter) Allow(siteID string) (admitted bool, retryAfter time.Duration) {
	if !l.Enabled() {
		return true, 0
	}

	b := l.getBucket(siteID)
	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()
	elapsed := now.Sub(b.lastRefill).Seconds()
	b.tokens += elapsed * l.rate
	if b.tokens > l.capacity {
		b.tokens = l.capacity
	}
	b.lastRefill = now

	if b.tokens >= 1 {
		b.tokens--
		return true, 0
	}

	deficit := 1 - b.tokens
	secondsToRefill := deficit / l.rate
	return false, time.Duration(secondsToRefill * float64(time.Second))
}
