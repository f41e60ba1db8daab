package retry

import (
	"context"
	"errors"
	"fmt"
	"syscall"
	"testing"
	"time"
)

func noSleep() func(ctx context.Context, d time.Duration) error {
	return func(ctx context.Context, d time.Duration) error { return nil }
}

func TestExhaustionCallsInitialPlusRetries(t *testing.T) {
	calls := 0
	boom := errors.New("boom")
	opts := Options{MaxRetries: 3, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond,
		ShouldRetry: func(error) bool { return true }, sleep: noSleep()}

	err := Do(context.Background(), opts, func(ctx context.Context) error {
		calls++
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected last error propagated, got %v", err)
	}
	if calls != 4 {
		t.Fatalf("expected 4 calls (initial + 3 retries), got %d", calls)
	}
}

func TestSuccessAfterTwoFailures(t *testing.T) {
	calls := 0
	opts := Options{MaxRetries: 3, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond,
		ShouldRetry: func(error) bool { return true }, sleep: noSleep()}

	v, err := DoValue(context.Background(), opts, func(ctx context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", errors.New("transient")
		}
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	if v != "ok" {
		t.Fatalf("unexpected value %q", v)
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
}

func TestTerminalErrorStopsImmediately(t *testing.T) {
	calls := 0
	opts := Options{MaxRetries: 5, BaseDelay: time.Millisecond, sleep: noSleep()}

	err := Do(context.Background(), opts, func(ctx context.Context) error {
		calls++
		return &HTTPError{Status: 400}
	})
	if err == nil {
		t.Fatalf("expected error")
	}
	if calls != 1 {
		t.Fatalf("terminal error must not retry, got %d calls", calls)
	}
}

func TestClassification(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{&HTTPError{Status: 429}, true},
		{&HTTPError{Status: 500}, true},
		{&HTTPError{Status: 503}, true},
		{&HTTPError{Status: 400}, false},
		{&HTTPError{Status: 404}, false},
		{&RateLimitedError{RetryAfterDelay: time.Second}, true},
		{fmt.Errorf("wrap: %w", syscall.ECONNRESET), true},
		{context.DeadlineExceeded, true},
		{errors.New("validation failed"), false},
		{nil, false},
	}
	for i, c := range cases {
		if got := IsRetryable(c.err); got != c.want {
			t.Fatalf("case %d (%v): got %v want %v", i, c.err, got, c.want)
		}
	}
}

func TestBackoffHonorsRetryAfterFloor(t *testing.T) {
	opts := Options{BaseDelay: time.Millisecond, MaxDelay: time.Minute}
	opts.fill()
	d := Backoff(opts, 0, &RateLimitedError{RetryAfterDelay: 10 * time.Second})
	if d < 10*time.Second {
		t.Fatalf("backoff %s below retry-after floor", d)
	}
}

func TestBackoffCapped(t *testing.T) {
	opts := Options{BaseDelay: time.Second, MaxDelay: 2 * time.Second}
	opts.fill()
	d := Backoff(opts, 10, errors.New("x"))
	if d > 2*time.Second {
		t.Fatalf("backoff %s exceeds cap", d)
	}
}
