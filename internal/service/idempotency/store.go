package idempotency

import (
	"context"
	"sync"
	"time"
)

// DefaultTTL is how long a processed key stays visible.
const DefaultTTL = 24 * time.Hour

// Store persists idempotency keys. Existence of an unexpired key means
// "already handled".
type Store interface {
	Exists(ctx context.Context, key string) (bool, error)
	Set(ctx context.Context, key string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// Service wraps a Store with the processing guard.
type Service struct {
	store Store
	ttl   time.Duration
}

func New(store Store, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Service{store: store, ttl: ttl}
}

// Seen reports whether the key was already processed.
func (s *Service) Seen(ctx context.Context, key string) (bool, error) {
	return s.store.Exists(ctx, key)
}

// Mark records the key after successful processing.
func (s *Service) Mark(ctx context.Context, key string) error {
	return s.store.Set(ctx, key, s.ttl)
}

// Forget drops the key so the event can be reprocessed (used by replay).
func (s *Service) Forget(ctx context.Context, key string) error {
	return s.store.Delete(ctx, key)
}

// Process runs fn at most once per key. When the key was already handled
// it invokes onDuplicate (if given) and reports duplicate=true without
// calling fn; the key is marked only after fn succeeds.
func Process[T any](ctx context.Context, s *Service, key string, onDuplicate func(), fn func(ctx context.Context) (T, error)) (out T, duplicate bool, err error) {
	seen, err := s.Seen(ctx, key)
	if err != nil {
		return out, false, err
	}
	if seen {
		if onDuplicate != nil {
			onDuplicate()
		}
		return out, true, nil
	}

	out, err = fn(ctx)
	if err != nil {
		return out, false, err
	}
	if err := s.Mark(ctx, key); err != nil {
		return out, false, err
	}
	return out, false, nil
}

type memEntry struct {
	expiresAt time.Time
}

// MemoryStore is a best-effort single-instance backend with a periodic
// sweep. The Redis store is authoritative across instances.
type MemoryStore struct {
	mu     sync.Mutex
	m      map[string]memEntry
	ticker *time.Ticker
	done   chan struct{}
	now    func() time.Time
}

func NewMemoryStore(sweepEvery time.Duration) *MemoryStore {
	if sweepEvery <= 0 {
		sweepEvery = 5 * time.Minute
	}
	s := &MemoryStore{
		m:      make(map[string]memEntry),
		ticker: time.NewTicker(sweepEvery),
		done:   make(chan struct{}),
		now:    time.Now,
	}
	go s.sweep()
	return s
}

func (s *MemoryStore) Exists(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.m[key]
	if !ok {
		return false, nil
	}
	if s.now().After(e.expiresAt) {
		delete(s.m, key) // expired means absent
		return false, nil
	}
	return true, nil
}

func (s *MemoryStore) Set(_ context.Context, key string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[key] = memEntry{expiresAt: s.now().Add(ttl)}
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, key)
	return nil
}

func (s *MemoryStore) sweep() {
	for {
		select {
		case <-s.done:
			return
		case <-s.ticker.C:
			s.mu.Lock()
			now := s.now()
			for k, e := range s.m {
				if now.After(e.expiresAt) {
					delete(s.m, k)
				}
			}
			s.mu.Unlock()
		}
	}
}

// Close stops the sweep goroutine.
func (s *MemoryStore) Close() error {
	s.ticker.Stop()
	close(s.done)
	return nil
}
