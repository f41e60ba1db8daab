package retry

import (
	"context"
	"errors"
	"fmt"
	"net"
	"syscall"
	"time"
)

// Classifier lets error types declare their own retry semantics, so the
// executor and the DLQ wrapper never inspect implementation-specific shapes.
type Classifier interface {
	Retryable() bool
}

// HTTPError carries an upstream HTTP-like status code.
type HTTPError struct {
	Status int
	Msg    string
}

func (e *HTTPError) Error() string {
	if e.Msg != "" {
		return fmt.Sprintf("http %d: %s", e.Status, e.Msg)
	}
	return fmt.Sprintf("http %d", e.Status)
}

// Retryable reports true for 429 and any 5xx.
func (e *HTTPError) Retryable() bool {
	return e.Status == 429 || e.Status >= 500
}

// RateLimitedError signals admission rejection with an explicit wait.
type RateLimitedError struct {
	RetryAfterDelay time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limited, retry after %s", e.RetryAfterDelay)
}

func (e *RateLimitedError) Retryable() bool { return true }

// RetryAfter extracts an explicit wait hint from an error chain.
func RetryAfter(err error) (time.Duration, bool) {
	var rl *RateLimitedError
	if errors.As(err, &rl) && rl.RetryAfterDelay > 0 {
		return rl.RetryAfterDelay, true
	}
	return 0, false
}

// IsRetryable classifies an error as transient. Rate limiting (429),
// server-side failures (5xx), and network reset/timeout/DNS errors are
// retryable; everything else (including other 4xx) is terminal.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var c Classifier
	if errors.As(err, &c) {
		return c.Retryable()
	}

	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}
	var dns *net.DNSError
	if errors.As(err, &dns) {
		return true
	}
	if errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.EPIPE) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	return false
}
