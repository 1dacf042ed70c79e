package ratelimit

import (
	"context"
	"time"
)

// Decision is the outcome of one admission check.
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// RetryAfter is the time left until the window resets, never negative.
func (d Decision) RetryAfter(now time.Time) time.Duration {
	if r := d.ResetAt.Sub(now); r > 0 {
		return r
	}
	return 0
}

// Limiter admits at most max requests per key per window.
type Limiter struct {
	store  Store
	clock  Clock
	window time.Duration
	max    int
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithStore replaces the default MemoryStore.
func WithStore(s Store) Option { return func(l *Limiter) { l.store = s } }

// WithClock replaces the default SystemClock.
func WithClock(c Clock) Option { return func(l *Limiter) { l.clock = c } }

// New builds a Limiter. max values < 1 are coerced to 1; a non-positive
// window falls back to one minute.
func New(window time.Duration, max int, opts ...Option) *Limiter {
	if max < 1 {
		max = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	l := &Limiter{window: window, max: max}
	for _, opt := range opts {
		opt(l)
	}
	if l.store == nil {
		l.store = NewMemoryStore()
	}
	if l.clock == nil {
		l.clock = SystemClock{}
	}
	return l
}

// Clock returns the limiter's time source.
func (l *Limiter) Clock() Clock { return l.clock }

// Max returns the per-window admission limit.
func (l *Limiter) Max() int { return l.max }

// Allow counts one request for key and reports whether it is admitted.
// On store failure the error is returned alongside an allowing Decision so
// callers can choose to fail open.
func (l *Limiter) Allow(ctx context.Context, key string) (Decision, error) {
	now := l.clock.Now()
	w, err := l.store.Increment(ctx, key, l.window, now)
	if err != nil {
		return Decision{Allowed: true, Limit: l.max, Remaining: l.max, ResetAt: now.Add(l.window)}, err
	}
	remaining := l.max - w.Count
	if remaining < 0 {
		remaining = 0
	}
	return Decision{
		Allowed:   w.Count <= l.max,
		Limit:     l.max,
		Remaining: remaining,
		ResetAt:   w.ResetAt,
	}, nil
}
