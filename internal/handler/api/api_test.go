package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"AlertFuse/internal/domain/models"
	domrepo "AlertFuse/internal/domain/repository"
	"AlertFuse/internal/service/dlq"
	"AlertFuse/internal/service/idempotency"
	"AlertFuse/internal/service/lock"
	"AlertFuse/internal/service/retry"
	"AlertFuse/internal/service/source"
	"AlertFuse/internal/usecase"
	xlogger "AlertFuse/pkg/logger"
)

func testLogger(t *testing.T) *xlogger.Logger {
	t.Helper()
	l, err := xlogger.New(&xlogger.Config{Level: "error", Format: "json", Output: "stderr"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return l
}

type stubSource struct {
	events []*models.RawEvent
}

func (s *stubSource) Name() string          { return "wire" }
func (s *stubSource) Domain() models.Domain { return models.DomainNews }
func (s *stubSource) Fetch(context.Context, *models.CollectJob) ([]*models.RawEvent, error) {
	return s.events, nil
}

type stubPublisher struct {
	posts []*models.NormalizedPost
}

func (p *stubPublisher) Publish(_ context.Context, post *models.NormalizedPost) error {
	p.posts = append(p.posts, post)
	return nil
}

func (p *stubPublisher) PublishBatch(ctx context.Context, posts []*models.NormalizedPost) error {
	for _, post := range posts {
		if err := p.Publish(ctx, post); err != nil {
			return err
		}
	}
	return nil
}

func (p *stubPublisher) Close() error { return nil }

func (p *stubPublisher) Republish(context.Context, string, []byte) error { return nil }

type stubMetrics struct{}

func (stubMetrics) RecordRun(string)                  {}
func (stubMetrics) RecordError(string)                {}
func (stubMetrics) RecordLatency(string, float64)     {}
func (stubMetrics) RecordEventEmitted(string, string) {}
func (stubMetrics) RecordRateLimitHit(string)         {}

type stubHourly struct {
	counts map[string]int64
}

func (h *stubHourly) Incr(_ context.Context, tenantID, name string, delta int64) error {
	if h.counts == nil {
		h.counts = make(map[string]int64)
	}
	h.counts[tenantID+":"+name] += delta
	return nil
}

func (h *stubHourly) Summary(context.Context, string, int) (map[string]int64, error) {
	return h.counts, nil
}

type stubPostStore struct {
	posts     []*models.NormalizedPost
	healthErr error
}

func (s *stubPostStore) Store(_ context.Context, p *models.NormalizedPost) error {
	s.posts = append(s.posts, p)
	return nil
}

func (s *stubPostStore) StoreBatch(_ context.Context, posts []*models.NormalizedPost) error {
	s.posts = append(s.posts, posts...)
	return nil
}

func (s *stubPostStore) ListSince(_ context.Context, tenantID string, since time.Time, limit int) ([]*models.NormalizedPost, error) {
	var out []*models.NormalizedPost
	for _, p := range s.posts {
		if p.TenantID == tenantID && p.CreatedAt.After(since) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *stubPostStore) Tenants(context.Context, time.Time) ([]string, error) {
	seen := map[string]bool{}
	var out []string
	for _, p := range s.posts {
		if !seen[p.TenantID] {
			seen[p.TenantID] = true
			out = append(out, p.TenantID)
		}
	}
	return out, nil
}

func (s *stubPostStore) Health(context.Context) error { return s.healthErr }
func (s *stubPostStore) Close() error                 { return nil }

type stubFusedStore struct {
	events []*models.FusedEvent
}

func (s *stubFusedStore) StoreBatch(_ context.Context, events []*models.FusedEvent) error {
	s.events = append(s.events, events...)
	return nil
}

func (s *stubFusedStore) Query(_ context.Context, tenantID string, from, to time.Time, limit int) ([]*models.FusedEvent, error) {
	var out []*models.FusedEvent
	for _, e := range s.events {
		if e.TenantID == tenantID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *stubFusedStore) Close() error { return nil }

type stubWatermarks struct {
	marks map[string]time.Time
}

func (w *stubWatermarks) Get(_ context.Context, tenantID string) (time.Time, error) {
	return w.marks[tenantID], nil
}

func (w *stubWatermarks) Set(_ context.Context, tenantID string, t time.Time) error {
	if w.marks == nil {
		w.marks = make(map[string]time.Time)
	}
	w.marks[tenantID] = t
	return nil
}

func newTestCollector(t *testing.T, src source.Source) *usecase.Collector {
	t.Helper()

	registry := source.NewRegistry()
	if err := registry.Register("news", src); err != nil {
		t.Fatalf("register: %v", err)
	}

	idemStore := idempotency.NewMemoryStore(time.Minute)
	t.Cleanup(func() { idemStore.Close() })

	pub := &stubPublisher{}
	opts := retry.DefaultOptions()
	opts.MaxRetries = 1
	opts.BaseDelay = time.Millisecond
	opts.MaxDelay = 2 * time.Millisecond

	return usecase.NewCollector(
		registry,
		lock.New(lock.NewMemoryStore(), "test", nil),
		idempotency.New(idemStore, time.Hour),
		pub,
		dlq.NewManager(dlq.NewMemoryStore(), pub, nil),
		stubMetrics{},
		nil,
		usecase.WithCollectorRetry(opts),
	)
}

func newTestFusion(posts *stubPostStore, fused *stubFusedStore) *usecase.Fusion {
	return usecase.NewFusion(posts, fused, &stubWatermarks{}, stubMetrics{}, &stubHourly{}, nil, usecase.DefaultFusionConfig())
}

func do(t *testing.T, h interface{ RegisterRoutes(e *echo.Echo) }, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	h.RegisterRoutes(e)
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestCollectTriggerSuccess(t *testing.T) {
	src := &stubSource{events: []*models.RawEvent{{
		ID:        "n1",
		Domain:    models.DomainNews,
		Source:    "wire",
		Timestamp: time.Now().UTC(),
		News:      &models.NewsPayload{Headline: "merger announced", URL: "http://x/n1"},
	}}}
	h := NewTriggersHandler(newTestCollector(t, src), nil, nil, stubMetrics{}, testLogger(t))

	rec := do(t, h, http.MethodPost, "/api/collect",
		`{"tenantId":"t1","sourceId":"feed","platform":"news"}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body.String())
	}
	var resp triggerResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Success || resp.Published != 1 || resp.Timestamp == "" {
		t.Fatalf("response = %+v", resp)
	}
}

func TestCollectTriggerRejectsUnknownPlatform(t *testing.T) {
	h := NewTriggersHandler(newTestCollector(t, &stubSource{}), nil, nil, stubMetrics{}, testLogger(t))

	rec := do(t, h, http.MethodPost, "/api/collect",
		`{"tenantId":"t1","sourceId":"feed","platform":"market"}`)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp triggerResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Success || resp.Retryable == nil || *resp.Retryable {
		t.Fatalf("response = %+v", resp)
	}
}

func TestFuseTrigger(t *testing.T) {
	posts := &stubPostStore{posts: []*models.NormalizedPost{{
		PostKey:   "news:wire:n1",
		TenantID:  "t1",
		Domain:    models.DomainNews,
		Source:    "wire",
		CreatedAt: time.Now().UTC().Add(-time.Minute),
		Title:     "guidance cut",
		Severity:  80,
	}}}
	fused := &stubFusedStore{}
	h := NewTriggersHandler(nil, newTestFusion(posts, fused), nil, stubMetrics{}, testLogger(t))

	rec := do(t, h, http.MethodPost, "/api/fuse", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body.String())
	}
	var resp triggerResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Success || resp.Processed != 1 || resp.Fused != 1 {
		t.Fatalf("response = %+v", resp)
	}
	if len(fused.events) != 1 {
		t.Fatalf("fused stored = %d", len(fused.events))
	}
}

func TestDLQAdminEndpoints(t *testing.T) {
	store := dlq.NewMemoryStore()
	pub := &stubPublisher{}
	mgr := dlq.NewManager(store, pub, nil)
	mgr.Send(context.Background(), "events.raw", []byte(`{"x":1}`), errors.New("boom"), 3, nil)

	h := NewAdminHandler(mgr, &stubHourly{}, &stubFusedStore{}, &stubPostStore{}, testLogger(t))

	rec := do(t, h, http.MethodGet, "/api/dlq/stats", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("missing topic should be a 200 envelope with 400 status, got %d", rec.Code)
	}

	rec = do(t, h, http.MethodGet, "/api/dlq/stats?topic=events.raw", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"pendingMessages":1`) {
		t.Fatalf("stats = %d %s", rec.Code, rec.Body.String())
	}

	rec = do(t, h, http.MethodPost, "/api/dlq/replay", `{"topic":"events.raw","limit":10}`)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"replayed":1`) {
		t.Fatalf("replay = %d %s", rec.Code, rec.Body.String())
	}

	depth, err := mgr.Stats(context.Background(), "events.raw")
	if err != nil || depth != 0 {
		t.Fatalf("depth after replay = %d err = %v", depth, err)
	}
}

func TestHealthEndpoint(t *testing.T) {
	h := NewAdminHandler(nil, &stubHourly{}, &stubFusedStore{}, &stubPostStore{}, testLogger(t))

	rec := do(t, h, http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	h = NewAdminHandler(nil, &stubHourly{}, &stubFusedStore{}, &stubPostStore{healthErr: errors.New("ch down")}, testLogger(t))
	rec = do(t, h, http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestMetricsSummaryEndpoint(t *testing.T) {
	hourly := &stubHourly{}
	_ = hourly.Incr(context.Background(), "t1", domrepo.MetricCollectorRuns, 3)

	h := NewAdminHandler(nil, hourly, &stubFusedStore{}, &stubPostStore{}, testLogger(t))
	rec := do(t, h, http.MethodGet, "/api/metrics/summary?tenant=t1&hours=6", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"t1:collector_runs":3`) {
		t.Fatalf("summary = %d %s", rec.Code, rec.Body.String())
	}
}
