package lock

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestMutualExclusion(t *testing.T) {
	store := NewMemoryStore()
	svc := New(store, "holder-a", nil)
	ctx := context.Background()

	if !svc.Acquire(ctx, "job", time.Minute) {
		t.Fatalf("first acquire must succeed")
	}
	if svc.Acquire(ctx, "job", time.Minute) {
		t.Fatalf("second acquire before expiry must fail")
	}
}

func TestConcurrentAcquireYieldsExactlyOneWinner(t *testing.T) {
	store := NewMemoryStore()
	svc := New(store, "holder", nil)
	ctx := context.Background()

	var wg sync.WaitGroup
	wins := make(chan bool, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			wins <- svc.Acquire(ctx, "tick", time.Minute)
		}()
	}
	wg.Wait()
	close(wins)

	got := 0
	for w := range wins {
		if w {
			got++
		}
	}
	if got != 1 {
		t.Fatalf("expected exactly one winner, got %d", got)
	}
}

func TestStaleLockTakeover(t *testing.T) {
	store := NewMemoryStore()
	svc := New(store, "holder-a", nil)
	svc.now = func() time.Time { return time.Unix(1000, 0) }
	ctx := context.Background()

	if !svc.Acquire(ctx, "job", 60*time.Second) {
		t.Fatalf("acquire failed")
	}

	// 61 seconds later: age > ttl, reclaimable without a release.
	svc.now = func() time.Time { return time.Unix(1061, 0) }
	if !svc.Acquire(ctx, "job", 60*time.Second) {
		t.Fatalf("stale lock must be reclaimable after ttl")
	}
}

func TestReleaseFreesLock(t *testing.T) {
	store := NewMemoryStore()
	svc := New(store, "h", nil)
	ctx := context.Background()

	if !svc.Acquire(ctx, "job", time.Minute) {
		t.Fatalf("acquire failed")
	}
	svc.Release(ctx, "job")
	if !svc.Acquire(ctx, "job", time.Minute) {
		t.Fatalf("acquire after release must succeed")
	}
	// releasing a missing lock never raises
	svc.Release(ctx, "never-held")
}

type failingStore struct{}

func (failingStore) AcquireOrSteal(context.Context, string, time.Time, time.Duration, string) (bool, error) {
	return false, errors.New("transaction failed")
}
func (failingStore) Release(context.Context, string) error { return nil }

func TestAcquireFailsClosedOnStoreError(t *testing.T) {
	svc := New(failingStore{}, "h", nil)
	if svc.Acquire(context.Background(), "job", time.Minute) {
		t.Fatalf("store failure must report not-acquired")
	}
}

func TestWithLockSkipsWhenHeld(t *testing.T) {
	store := NewMemoryStore()
	a := New(store, "a", nil)
	b := New(store, "b", nil)
	ctx := context.Background()

	if !a.Acquire(ctx, "job", time.Minute) {
		t.Fatalf("setup acquire failed")
	}

	ran := false
	skipped, err := b.WithLock(ctx, "job", time.Minute, func(ctx context.Context) error {
		ran = true
		return nil
	})
	if err != nil {
		t.Fatalf("skip is not an error, got %v", err)
	}
	if !skipped {
		t.Fatalf("expected skipped result")
	}
	if ran {
		t.Fatalf("wrapped function must not run when lock is held")
	}
}

func TestWithLockRunsAndReleases(t *testing.T) {
	store := NewMemoryStore()
	svc := New(store, "a", nil)
	ctx := context.Background()

	ran := false
	skipped, err := svc.WithLock(ctx, "job", time.Minute, func(ctx context.Context) error {
		ran = true
		return nil
	})
	if err != nil || skipped || !ran {
		t.Fatalf("expected run without skip, got skipped=%v err=%v ran=%v", skipped, err, ran)
	}
	if !svc.Acquire(ctx, "job", time.Minute) {
		t.Fatalf("lock must be released after WithLock returns")
	}
}
