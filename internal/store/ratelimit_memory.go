package store

import (
	"context"
	"sync"
	"time"

	"github.com/serroba/shortlink/internal/ratelimit"
)

// window holds the hit times of one key, oldest first.
type window struct {
	hits    []time.Time
	expires time.Time
}

const sweepInterval = time.Minute

// RateLimitMemoryStore is a single-process ratelimit.Store. Keys whose
// window has fully elapsed are swept at most once per sweepInterval.
type RateLimitMemoryStore struct {
	mu        sync.Mutex
	windows   map[string]*window
	blocked   map[string]time.Time
	lastSweep time.Time
	now       func() time.Time
}

// RateLimitMemoryOption configures a RateLimitMemoryStore.
type RateLimitMemoryOption func(*RateLimitMemoryStore)

// WithRateLimitClock overrides the time source.
func WithRateLimitClock(now func() time.Time) RateLimitMemoryOption {
	return func(s *RateLimitMemoryStore) {
		s.now = now
	}
}

// NewRateLimitMemoryStore creates an empty in-memory store.
func NewRateLimitMemoryStore(opts ...RateLimitMemoryOption) *RateLimitMemoryStore {
	s := &RateLimitMemoryStore{
		windows: make(map[string]*window),
		blocked: make(map[string]time.Time),
		now:     time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

func (s *RateLimitMemoryStore) Record(_ context.Context, key string, size time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.sweep(now)

	w, ok := s.windows[key]
	if !ok {
		w = &window{}
		s.windows[key] = w
	}

	cutoff := now.Add(-size)

	drop := 0
	for drop < len(w.hits) && !w.hits[drop].After(cutoff) {
		drop++
	}

	w.hits = append(w.hits[drop:], now)
	w.expires = now.Add(size)

	return int64(len(w.hits)), nil
}

func (s *RateLimitMemoryStore) Block(_ context.Context, key string, duration time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.blocked[key] = s.now().Add(duration)

	return nil
}

func (s *RateLimitMemoryStore) BlockedFor(_ context.Context, key string) (time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	until, ok := s.blocked[key]
	if !ok {
		return 0, nil
	}

	if remaining := until.Sub(s.now()); remaining > 0 {
		return remaining, nil
	}

	delete(s.blocked, key)

	return 0, nil
}

// Len returns the number of tracked keys, blocks included.
func (s *RateLimitMemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.windows) + len(s.blocked)
}

func (s *RateLimitMemoryStore) sweep(now time.Time) {
	if now.Sub(s.lastSweep) < sweepInterval {
		return
	}

	s.lastSweep = now

	for key, w := range s.windows {
		if !now.Before(w.expires) {
			delete(s.windows, key)
		}
	}

	for key, until := range s.blocked {
		if !now.Before(until) {
			delete(s.blocked, key)
		}
	}
}

var _ ratelimit.Store = (*RateLimitMemoryStore)(nil)
