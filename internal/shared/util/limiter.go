package util

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Limiter throttles regeneration bursts in watch mode.
type Limiter struct {
	inner *rate.Limiter
}

// NewLimiter creates a token bucket refilled at perSecond with the given burst.
// A non-positive rate disables limiting.
func NewLimiter(perSecond float64, burst int) *Limiter {
	limit := rate.Limit(perSecond)
	if perSecond <= 0 {
		limit = rate.Inf
	}
	if burst < 1 {
		burst = 1
	}
	return &Limiter{inner: rate.NewLimiter(limit, burst)}
}

// Allow reports whether one event may happen now.
func (l *Limiter) Allow() bool {
	return l.inner.Allow()
}

// Wait blocks until an event may happen or ctx is done.
func (l *Limiter) Wait(ctx context.Context) error {
	return l.inner.Wait(ctx)
}

// Delay returns how long the next event would have to wait, without
// consuming a token.
func (l *Limiter) Delay() time.Duration {
	r := l.inner.Reserve()
	d := r.Delay()
	r.Cancel()
	return d
}
