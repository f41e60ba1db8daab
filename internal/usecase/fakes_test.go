package usecase

import (
	"context"
	"sort"
	"sync"
	"time"

	"AlertFuse/internal/domain/models"
)

type fakePostStore struct {
	mu    sync.Mutex
	posts []*models.NormalizedPost
}

func (s *fakePostStore) Store(_ context.Context, p *models.NormalizedPost) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.posts = append(s.posts, p)
	return nil
}

func (s *fakePostStore) StoreBatch(ctx context.Context, posts []*models.NormalizedPost) error {
	for _, p := range posts {
		if err := s.Store(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

func (s *fakePostStore) ListSince(_ context.Context, tenantID string, since time.Time, limit int) ([]*models.NormalizedPost, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.NormalizedPost
	for _, p := range s.posts {
		if p.TenantID == tenantID && p.CreatedAt.After(since) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *fakePostStore) Tenants(_ context.Context, since time.Time) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := make(map[string]bool)
	var out []string
	for _, p := range s.posts {
		if p.CreatedAt.After(since) && !seen[p.TenantID] {
			seen[p.TenantID] = true
			out = append(out, p.TenantID)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (s *fakePostStore) Health(context.Context) error { return nil }
func (s *fakePostStore) Close() error                 { return nil }

type fakeFusedStore struct {
	mu     sync.Mutex
	events []*models.FusedEvent
}

func (s *fakeFusedStore) StoreBatch(_ context.Context, events []*models.FusedEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, events...)
	return nil
}

func (s *fakeFusedStore) Query(_ context.Context, tenantID string, from, to time.Time, limit int) ([]*models.FusedEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.FusedEvent
	for _, e := range s.events {
		if e.TenantID == tenantID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *fakeFusedStore) Close() error { return nil }

type fakeWatermarks struct {
	mu sync.Mutex
	m  map[string]time.Time
}

func newFakeWatermarks() *fakeWatermarks {
	return &fakeWatermarks{m: make(map[string]time.Time)}
}

func (w *fakeWatermarks) Get(_ context.Context, tenantID string) (time.Time, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.m[tenantID], nil
}

func (w *fakeWatermarks) Set(_ context.Context, tenantID string, t time.Time) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.m[tenantID] = t
	return nil
}

type fakeMetrics struct {
	mu   sync.Mutex
	runs map[string]int
	errs map[string]int
}

func newFakeMetrics() *fakeMetrics {
	return &fakeMetrics{runs: make(map[string]int), errs: make(map[string]int)}
}

func (m *fakeMetrics) RecordRun(component string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs[component]++
}

func (m *fakeMetrics) RecordError(component string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errs[component]++
}

func (m *fakeMetrics) RecordLatency(string, float64)     {}
func (m *fakeMetrics) RecordEventEmitted(string, string) {}
func (m *fakeMetrics) RecordRateLimitHit(string)         {}

type fakeHourly struct {
	mu sync.Mutex
	m  map[string]int64
}

func newFakeHourly() *fakeHourly { return &fakeHourly{m: make(map[string]int64)} }

func (h *fakeHourly) Incr(_ context.Context, tenantID, name string, delta int64) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.m[tenantID+":"+name] += delta
	return nil
}

func (h *fakeHourly) Summary(_ context.Context, tenantID string, _ int) (map[string]int64, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make(map[string]int64)
	for k, v := range h.m {
		out[k] = v
	}
	return out, nil
}

type fakePublisher struct {
	mu     sync.Mutex
	posts  []*models.NormalizedPost
	failFn func(*models.NormalizedPost) error
}

func (p *fakePublisher) Publish(_ context.Context, post *models.NormalizedPost) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failFn != nil {
		if err := p.failFn(post); err != nil {
			return err
		}
	}
	p.posts = append(p.posts, post)
	return nil
}

func (p *fakePublisher) PublishBatch(ctx context.Context, posts []*models.NormalizedPost) error {
	for _, post := range posts {
		if err := p.Publish(ctx, post); err != nil {
			return err
		}
	}
	return nil
}

func (p *fakePublisher) Close() error { return nil }

type fakeSource struct {
	name   string
	domain models.Domain
	events []*models.RawEvent
	err    error
	calls  int
}

func (s *fakeSource) Name() string          { return s.name }
func (s *fakeSource) Domain() models.Domain { return s.domain }

func (s *fakeSource) Fetch(context.Context, *models.CollectJob) ([]*models.RawEvent, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.events, nil
}

type fakeAlertPublisher struct {
	published []*models.FusedEvent
	err       error
}

func (p *fakeAlertPublisher) PublishAlerts(_ context.Context, events []*models.FusedEvent) error {
	if p.err != nil {
		return p.err
	}
	p.published = append(p.published, events...)
	return nil
}
