package lock

import (
	"context"
	"sync"
	"time"
)

type record struct {
	lockedAt time.Time
	ttl      time.Duration
	holder   string
}

// MemoryStore is a single-instance Store. It backs tests and local runs;
// production uses the Redis store.
type MemoryStore struct {
	mu sync.Mutex
	m  map[string]record
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{m: make(map[string]record)}
}

func (s *MemoryStore) AcquireOrSteal(_ context.Context, name string, now time.Time, ttl time.Duration, holder string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if r, ok := s.m[name]; ok {
		if now.Sub(r.lockedAt) < r.ttl {
			return false, nil
		}
		// stale-lock takeover
	}
	s.m[name] = record{lockedAt: now, ttl: ttl, holder: holder}
	return true, nil
}

func (s *MemoryStore) Release(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, name)
	return nil
}
