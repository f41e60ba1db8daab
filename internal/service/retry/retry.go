package retry

import (
	"context"
	"math/rand"
	"time"
)

// Options configures the executor.
type Options struct {
	MaxRetries  int           // retries after the initial attempt
	BaseDelay   time.Duration // first backoff step
	MaxDelay    time.Duration // backoff cap
	ShouldRetry func(error) bool

	// sleep is overridable for tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// DefaultOptions matches the pipeline's minute-cadence budget.
func DefaultOptions() Options {
	return Options{
		MaxRetries:  3,
		BaseDelay:   500 * time.Millisecond,
		MaxDelay:    30 * time.Second,
		ShouldRetry: IsRetryable,
	}
}

func (o *Options) fill() {
	if o.MaxRetries < 0 {
		o.MaxRetries = 0
	}
	if o.BaseDelay <= 0 {
		o.BaseDelay = 500 * time.Millisecond
	}
	if o.MaxDelay <= 0 {
		o.MaxDelay = 30 * time.Second
	}
	if o.ShouldRetry == nil {
		o.ShouldRetry = IsRetryable
	}
	if o.sleep == nil {
		o.sleep = func(ctx context.Context, d time.Duration) error {
			t := time.NewTimer(d)
			defer t.Stop()
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-t.C:
				return nil
			}
		}
	}
}

// Do runs fn with exponential backoff and jitter. It stops immediately on
// terminal errors and propagates the last error once retries are exhausted.
func Do(ctx context.Context, opts Options, fn func(ctx context.Context) error) error {
	opts.fill()

	var lastErr error
	for attempt := 0; ; attempt++ {
		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if attempt == opts.MaxRetries || !opts.ShouldRetry(lastErr) {
			return lastErr
		}
		if err := opts.sleep(ctx, Backoff(opts, attempt, lastErr)); err != nil {
			return lastErr
		}
	}
}

// DoValue is Do for functions that return a value.
func DoValue[T any](ctx context.Context, opts Options, fn func(ctx context.Context) (T, error)) (T, error) {
	var out T
	err := Do(ctx, opts, func(ctx context.Context) error {
		var ferr error
		out, ferr = fn(ctx)
		return ferr
	})
	return out, err
}

// Backoff computes the delay before the next attempt:
// base * 2^attempt + jitter(0..1s), raised to an explicit Retry-After
// when the error carries one, capped at MaxDelay.
func Backoff(opts Options, attempt int, err error) time.Duration {
	d := opts.BaseDelay * time.Duration(1<<uint(attempt))
	d += time.Duration(rand.Int63n(int64(time.Second)))

	if ra, ok := RetryAfter(err); ok && d < ra {
		d = ra
	}
	if d > opts.MaxDelay {
		d = opts.MaxDelay
	}
	return d
}
