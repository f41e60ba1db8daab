package middleware

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"AlertFuse/internal/domain/models"
)

type countingMetrics struct {
	mu   sync.Mutex
	errs map[string]int
}

func newCountingMetrics() *countingMetrics { return &countingMetrics{errs: make(map[string]int)} }

func (m *countingMetrics) RecordRun(string)   {}
func (m *countingMetrics) RecordError(component string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errs[component]++
}
func (m *countingMetrics) RecordLatency(string, float64)     {}
func (m *countingMetrics) RecordEventEmitted(string, string) {}
func (m *countingMetrics) RecordRateLimitHit(string)         {}

func (m *countingMetrics) count(component string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.errs[component]
}

type sink struct {
	mu     sync.Mutex
	got    []*models.RawEvent
	reject bool
}

func (s *sink) Process(_ context.Context, ev *models.RawEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.reject {
		return errors.New("downstream full")
	}
	s.got = append(s.got, ev)
	return nil
}

func (s *sink) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.got)
}

func tickEvent(id, symbol string) *models.RawEvent {
	return &models.RawEvent{
		ID:        id,
		Domain:    models.DomainMarket,
		Source:    "quote-stream",
		Timestamp: time.Now().UTC(),
		Market:    &models.MarketPayload{Symbol: symbol, Price: 10, Volume: 1},
	}
}

func TestPipelineForwardsValidEvents(t *testing.T) {
	down := &sink{}
	p := NewStreamPipeline(down, newCountingMetrics())

	if err := p.Process(context.Background(), tickEvent("t1", "X")); err != nil {
		t.Fatalf("process: %v", err)
	}
	if down.len() != 1 {
		t.Fatalf("forwarded = %d, want 1", down.len())
	}
}

func TestPipelineRejectsInvalidEvents(t *testing.T) {
	down := &sink{}
	m := newCountingMetrics()
	p := NewStreamPipeline(down, m)

	bad := &models.RawEvent{ID: "x", Domain: models.DomainMarket, Source: "s", Timestamp: time.Now()}
	if err := p.Process(context.Background(), bad); err == nil {
		t.Fatal("invalid event must not pass")
	}
	if down.len() != 0 {
		t.Fatalf("forwarded = %d, want 0", down.len())
	}
	if m.count("pipeline_validate") != 1 {
		t.Fatalf("validate errors = %d", m.count("pipeline_validate"))
	}
}

func TestPipelineThrottlesPerSymbol(t *testing.T) {
	down := &sink{}
	m := newCountingMetrics()
	p := NewStreamPipeline(down, m, WithMaxRPS(1))
	ctx := context.Background()

	// Two back-to-back ticks of the same symbol: the second is inside
	// the per-symbol interval and gets dropped silently.
	if err := p.Process(ctx, tickEvent("t1", "X")); err != nil {
		t.Fatalf("first tick: %v", err)
	}
	if err := p.Process(ctx, tickEvent("t2", "X")); err != nil {
		t.Fatalf("throttled tick must not error, got %v", err)
	}
	// Another symbol is unaffected.
	if err := p.Process(ctx, tickEvent("t3", "Y")); err != nil {
		t.Fatalf("other symbol: %v", err)
	}

	if down.len() != 2 {
		t.Fatalf("forwarded = %d, want 2", down.len())
	}
	if m.count("pipeline_throttle") != 1 {
		t.Fatalf("throttle drops = %d, want 1", m.count("pipeline_throttle"))
	}
}

func TestPipelineBuffersAndFlushesOnRecovery(t *testing.T) {
	down := &sink{reject: true}
	m := newCountingMetrics()
	p := NewStreamPipeline(down, m, WithBufferSize(8))
	ctx := context.Background()

	if err := p.Process(ctx, tickEvent("t1", "X")); err == nil {
		t.Fatal("downstream rejection must surface")
	}
	if m.count("pipeline_process") != 1 {
		t.Fatalf("process errors = %d", m.count("pipeline_process"))
	}

	// Downstream recovers; the background flusher delivers the
	// buffered tick.
	down.mu.Lock()
	down.reject = false
	down.mu.Unlock()

	p.Start(ctx)
	defer p.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for down.len() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if down.len() != 1 {
		t.Fatalf("flushed = %d, want 1", down.len())
	}
}
