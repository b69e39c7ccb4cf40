// Package ratelimit enforces the dual per-service-host limits described by
// the request executor: a cap on concurrent in-flight requests to a host,
// and a minimum start-to-start interval between requests to that host. Both
// limits are process-wide and shared by every caller that names the same
// service key.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// DefaultMaxConnections is the per-service concurrent-request cap applied
// when a bucket is created without an explicit override.
const DefaultMaxConnections = 5

// DefaultDelay is the minimum start-to-start interval enforced between
// requests to the same service when no override is given.
const DefaultDelay = 300 * time.Millisecond

// bucket pairs a connection-count semaphore with a start-to-start rate
// limiter for one service host.
type bucket struct {
	conn chan struct{}
	rate *rate.Limiter
}

func newBucket(maxConnections int, delay time.Duration) *bucket {
	b := &bucket{conn: make(chan struct{}, maxConnections)}
	if delay > 0 {
		b.rate = rate.NewLimiter(rate.Every(delay), 1)
	}
	return b
}

// Limiter holds one bucket per service key plus an optional default bucket
// used for unrecognized keys. A Limiter with no buckets registered bypasses
// limiting entirely.
type Limiter struct {
	mu      sync.RWMutex
	buckets map[string]*bucket
	def     *bucket
}

// New constructs an empty Limiter. Register buckets with AddService or
// SetDefault before use; a Limiter with no buckets is a no-op pass-through.
func New() *Limiter {
	return &Limiter{buckets: make(map[string]*bucket)}
}

// AddService registers (or replaces) the bucket for service. A zero delay
// disables the start-to-start limiter for this service while still
// enforcing the connection cap.
func (l *Limiter) AddService(service string, maxConnections int, delay time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.buckets[service] = newBucket(maxConnections, delay)
}

// SetDefault registers the fallback bucket used for services with no
// explicit registration.
func (l *Limiter) SetDefault(maxConnections int, delay time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.def = newBucket(maxConnections, delay)
}

// Do runs op under the limits for service: acquires the connection slot
// first (held for the duration of op), then — if a start-to-start limiter
// is configured — blocks until the minimum interval since the bucket's last
// start has elapsed. This ordering (conn_sem before rate_sem) matches the
// only pair of simultaneously-held semaphores the system uses, and is fixed
// to avoid changing deadlock-avoidance/fairness behavior under load. Falls
// back to the default bucket if service is unregistered; if neither exists,
// op runs unthrottled.
func (l *Limiter) Do(ctx context.Context, service string, op func(context.Context) error) error {
	b := l.bucketFor(service)
	if b == nil {
		return op(ctx)
	}

	select {
	case b.conn <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-b.conn }()

	if b.rate != nil {
		if err := b.rate.Wait(ctx); err != nil {
			return err
		}
	}

	return op(ctx)
}

func (l *Limiter) bucketFor(service string) *bucket {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if b, ok := l.buckets[service]; ok {
		return b
	}
	return l.def
}
