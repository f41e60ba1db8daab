// Package lock provides distributed mutual exclusion for periodic jobs
// running on concurrently scheduled, stateless instances.
package lock

import (
	"context"
	"time"

	"AlertFuse/pkg/logger"
)

// Store performs the atomic read-modify-write a lock acquisition needs.
type Store interface {
	// AcquireOrSteal creates the lock record for name, or overwrites it
	// when the current holder's age exceeds its stored TTL. Returns false
	// when the lock is validly held by someone else.
	AcquireOrSteal(ctx context.Context, name string, now time.Time, ttl time.Duration, holder string) (bool, error)
	// Release deletes the lock record. Missing records are not an error.
	Release(ctx context.Context, name string) error
}

// Service wraps a Store with fail-closed semantics and the WithLock helper.
type Service struct {
	store  Store
	holder string
	log    *logger.Logger
	now    func() time.Time
}

// New creates a lock service. holder identifies this instance in LockRecords.
func New(store Store, holder string, log *logger.Logger) *Service {
	return &Service{store: store, holder: holder, log: log, now: time.Now}
}

// Acquire attempts to take the named lock. A store failure is treated as
// "not acquired": skipping work is always safer than double execution.
func (s *Service) Acquire(ctx context.Context, name string, ttl time.Duration) bool {
	ok, err := s.store.AcquireOrSteal(ctx, name, s.now(), ttl, s.holder)
	if err != nil {
		if s.log != nil {
			s.log.Warn("lock acquire failed, skipping", logger.String("lock", name), logger.Error(err))
		}
		return false
	}
	return ok
}

// Release frees the named lock. It never fails: an expired or already
// released lock is reclaimed by TTL anyway.
func (s *Service) Release(ctx context.Context, name string) {
	if err := s.store.Release(ctx, name); err != nil && s.log != nil {
		s.log.Warn("lock release failed", logger.String("lock", name), logger.Error(err))
	}
}

// WithLock runs fn only when the lock is acquired. A held lock is not an
// error: the call reports skipped=true and fn is never invoked. This is the
// safety valve for overlapping scheduler invocations.
func (s *Service) WithLock(ctx context.Context, name string, ttl time.Duration, fn func(ctx context.Context) error) (skipped bool, err error) {
	if !s.Acquire(ctx, name, ttl) {
		return true, nil
	}
	defer s.Release(ctx, name)
	return false, fn(ctx)
}
