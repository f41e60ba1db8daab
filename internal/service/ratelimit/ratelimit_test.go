package ratelimit

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
)

func TestFixedWindowBoundary(t *testing.T) {
	store := NewMemoryStore(time.Minute)
	defer store.Close()

	cfg := Config{MaxRequests: 5, Window: time.Minute}
	now := time.Unix(1_700_000_000, 0).Truncate(time.Minute)

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		res, err := store.Check(ctx, "client-a", cfg, now)
		if err != nil {
			t.Fatalf("check %d: %v", i, err)
		}
		if !res.Allowed {
			t.Fatalf("request %d should be allowed", i+1)
		}
		if res.Remaining != 5-(i+1) {
			t.Fatalf("request %d: remaining = %d, want %d", i+1, res.Remaining, 5-(i+1))
		}
	}

	res, err := store.Check(ctx, "client-a", cfg, now)
	if err != nil {
		t.Fatalf("sixth check: %v", err)
	}
	if res.Allowed {
		t.Fatal("sixth request in the window should be rejected")
	}
	if res.RetryAfter <= 0 || res.RetryAfter > time.Minute {
		t.Fatalf("retry after = %v, want within the window", res.RetryAfter)
	}

	// A new window admits again.
	res, err = store.Check(ctx, "client-a", cfg, now.Add(time.Minute))
	if err != nil || !res.Allowed {
		t.Fatalf("next window: allowed=%v err=%v", res.Allowed, err)
	}
}

func TestRejectedRequestsDoNotExtendWindow(t *testing.T) {
	store := NewMemoryStore(time.Minute)
	defer store.Close()

	cfg := Config{MaxRequests: 1, Window: time.Minute}
	now := time.Unix(1_700_000_000, 0).Truncate(time.Minute)
	ctx := context.Background()

	if res, _ := store.Check(ctx, "c", cfg, now); !res.Allowed {
		t.Fatal("first request should pass")
	}
	for i := 0; i < 10; i++ {
		if res, _ := store.Check(ctx, "c", cfg, now); res.Allowed {
			t.Fatal("over-limit request should be rejected")
		}
	}
	if res, _ := store.Check(ctx, "c", cfg, now.Add(time.Minute)); !res.Allowed {
		t.Fatal("hammering while limited must not postpone the next window")
	}
}

func TestIdentifiersAreIndependent(t *testing.T) {
	store := NewMemoryStore(time.Minute)
	defer store.Close()

	cfg := Config{MaxRequests: 1, Window: time.Minute}
	now := time.Now()
	ctx := context.Background()

	if res, _ := store.Check(ctx, "a", cfg, now); !res.Allowed {
		t.Fatal("a should pass")
	}
	if res, _ := store.Check(ctx, "a", cfg, now); res.Allowed {
		t.Fatal("a should be limited")
	}
	if res, _ := store.Check(ctx, "b", cfg, now); !res.Allowed {
		t.Fatal("b has its own window")
	}
}

type errStore struct{}

func (errStore) Check(context.Context, string, Config, time.Time) (Result, error) {
	return Result{}, errors.New("redis down")
}

func TestLimiterFailsOpen(t *testing.T) {
	l := New(errStore{}, Config{MaxRequests: 1, Window: time.Minute}, nil)
	res := l.Allow(context.Background(), "x")
	if !res.Allowed {
		t.Fatal("store failure must not block traffic")
	}
}

func TestMiddlewareHeadersAndReject(t *testing.T) {
	store := NewMemoryStore(time.Minute)
	defer store.Close()
	l := New(store, Config{MaxRequests: 1, Window: time.Minute}, nil)

	rejected := 0
	e := echo.New()
	e.GET("/", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	}, Middleware(l, func(string) { rejected++ }))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("first request: status = %d", rec.Code)
	}
	if rec.Header().Get("X-RateLimit-Limit") != "1" || rec.Header().Get("X-RateLimit-Remaining") != "0" {
		t.Fatalf("headers = %q / %q", rec.Header().Get("X-RateLimit-Limit"), rec.Header().Get("X-RateLimit-Remaining"))
	}

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second request: status = %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Fatal("429 must carry Retry-After")
	}
	if rejected != 1 {
		t.Fatalf("onReject calls = %d, want 1", rejected)
	}
}

func TestIdentifierPrecedence(t *testing.T) {
	e := echo.New()

	mk := func(auth, fwd string) echo.Context {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if auth != "" {
			req.Header.Set("Authorization", auth)
		}
		if fwd != "" {
			req.Header.Set("X-Forwarded-For", fwd)
		}
		return e.NewContext(req, httptest.NewRecorder())
	}

	if got := identify(mk("Bearer tok123", "1.2.3.4")); got != "token:tok123" {
		t.Fatalf("auth token wins: got %q", got)
	}
	if got := identify(mk("", "1.2.3.4, 5.6.7.8")); got != "ip:1.2.3.4" {
		t.Fatalf("first forwarded hop: got %q", got)
	}
	if got := identify(mk("", "")); got == "" {
		t.Fatal("fallback identifier must not be empty")
	}
}
