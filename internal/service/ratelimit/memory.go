package ratelimit

import (
	"context"
	"sync"
	"time"
)

type window struct {
	start time.Time
	count int
}

// MemoryStore keeps per-identifier windows in process. Suitable for a
// single instance; the Redis store is authoritative across replicas.
type MemoryStore struct {
	mu      sync.Mutex
	windows map[string]window
	ticker  *time.Ticker
	done    chan struct{}
}

func NewMemoryStore(cleanupEvery time.Duration) *MemoryStore {
	if cleanupEvery <= 0 {
		cleanupEvery = 5 * time.Minute
	}
	s := &MemoryStore{
		windows: make(map[string]window),
		ticker:  time.NewTicker(cleanupEvery),
		done:    make(chan struct{}),
	}
	go s.cleanup()
	return s
}

func (s *MemoryStore) Check(_ context.Context, identifier string, cfg Config, now time.Time) (Result, error) {
	start := windowStart(now, cfg.Window)

	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.windows[identifier]
	if !ok || w.start.Before(start) {
		w = window{start: start}
	}

	if w.count >= cfg.MaxRequests {
		// Leave the count untouched so the window expires on schedule.
		return Result{
			Allowed:    false,
			Remaining:  0,
			Limit:      cfg.MaxRequests,
			RetryAfter: start.Add(cfg.Window).Sub(now),
		}, nil
	}

	w.count++
	s.windows[identifier] = w
	return Result{
		Allowed:   true,
		Remaining: cfg.MaxRequests - w.count,
		Limit:     cfg.MaxRequests,
	}, nil
}

func (s *MemoryStore) cleanup() {
	for {
		select {
		case <-s.done:
			return
		case <-s.ticker.C:
			cutoff := time.Now().Add(-time.Hour)
			s.mu.Lock()
			for id, w := range s.windows {
				if w.start.Before(cutoff) {
					delete(s.windows, id)
				}
			}
			s.mu.Unlock()
		}
	}
}

func (s *MemoryStore) Close() error {
	s.ticker.Stop()
	close(s.done)
	return nil
}
