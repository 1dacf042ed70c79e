// Package ratelimit implements fixed-window admission counting keyed by
// client identity.
//
// A window opens with the first counted request for a key and lasts for the
// configured duration; once it elapses the next request opens a fresh window.
// Counting is delegated to a Store whose Increment must be atomic per key so
// that concurrent requests from one client are never undercounted.
//
// Two stores are provided:
//   - MemoryStore: process-local map guarded by a mutex, with opportunistic
//     eviction of expired windows.
//   - RedisStore: shared across replicas, using a Lua script so the increment
//     and the expiry are applied in one round trip.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Window is the state of one key's current window after an increment.
type Window struct {
	Count   int
	ResetAt time.Time
}

// Store counts requests per key within fixed windows.
type Store interface {
	// Increment atomically counts one request for key at now and returns the
	// resulting window. A new window of length window starts when none is
	// active for key.
	Increment(ctx context.Context, key string, window time.Duration, now time.Time) (Window, error)
}

// MemoryStore is an in-process Store. Safe for concurrent use.
type MemoryStore struct {
	mu      sync.Mutex
	windows map[string]*Window

	gcEvery uint64
	lookups uint64
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		windows: make(map[string]*Window),
		gcEvery: 5000,
	}
}

// Increment implements Store.
func (s *MemoryStore) Increment(_ context.Context, key string, window time.Duration, now time.Time) (Window, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Opportunistic cleanup before touching key, so a stale entry for key is
	// dropped as well.
	s.lookups++
	if s.lookups >= s.gcEvery {
		for k, w := range s.windows {
			if !now.Before(w.ResetAt) {
				delete(s.windows, k)
			}
		}
		s.lookups = 0
	}

	w, ok := s.windows[key]
	if !ok || !now.Before(w.ResetAt) {
		w = &Window{ResetAt: now.Add(window)}
		s.windows[key] = w
	}
	w.Count++
	return *w, nil
}

// Len reports the number of tracked keys.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.windows)
}
