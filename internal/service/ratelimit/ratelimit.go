package ratelimit

import (
	"context"
	"time"

	"AlertFuse/pkg/logger"
)

// Config describes a fixed window.
type Config struct {
	MaxRequests int
	Window      time.Duration
}

// Named presets for the common call sites.
var (
	Standard = Config{MaxRequests: 100, Window: time.Minute}
	Strict   = Config{MaxRequests: 10, Window: time.Minute}
	Webhook  = Config{MaxRequests: 30, Window: time.Minute}
	AI       = Config{MaxRequests: 20, Window: time.Minute}
)

// Result is the outcome of a single admission check.
type Result struct {
	Allowed    bool
	Remaining  int
	Limit      int
	RetryAfter time.Duration
}

// Store counts requests per identifier inside the current fixed window.
// Check must not increment when the count is already at the limit, so
// rejected traffic cannot extend a client's penalty.
type Store interface {
	Check(ctx context.Context, identifier string, cfg Config, now time.Time) (Result, error)
}

// Limiter admits or rejects requests against a Store. Store failures
// fail open: an unreachable counter should throttle nobody.
type Limiter struct {
	store Store
	cfg   Config
	log   *logger.Logger
	now   func() time.Time
}

func New(store Store, cfg Config, log *logger.Logger) *Limiter {
	if cfg.MaxRequests <= 0 {
		cfg = Standard
	}
	return &Limiter{store: store, cfg: cfg, log: log, now: time.Now}
}

// Allow checks one request for the given identifier.
func (l *Limiter) Allow(ctx context.Context, identifier string) Result {
	res, err := l.store.Check(ctx, identifier, l.cfg, l.now())
	if err != nil {
		if l.log != nil {
			l.log.Warn("rate limit store unavailable, allowing request",
				logger.String("identifier", identifier),
				logger.Error(err))
		}
		return Result{Allowed: true, Remaining: l.cfg.MaxRequests, Limit: l.cfg.MaxRequests}
	}
	return res
}

// Limit returns the configured window size.
func (l *Limiter) Limit() int { return l.cfg.MaxRequests }

// windowStart truncates now to the current fixed window boundary.
func windowStart(now time.Time, window time.Duration) time.Time {
	return now.Truncate(window)
}
