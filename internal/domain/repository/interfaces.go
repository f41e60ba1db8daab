package repository

import (
	"context"
	"time"

	"AlertFuse/internal/domain/models"
)

// PostStore persists normalized posts and serves the fusion engine's reads.
type PostStore interface {
	Store(ctx context.Context, p *models.NormalizedPost) error
	StoreBatch(ctx context.Context, posts []*models.NormalizedPost) error
	// ListSince returns posts for a tenant created after the watermark,
	// oldest first, bounded by limit.
	ListSince(ctx context.Context, tenantID string, since time.Time, limit int) ([]*models.NormalizedPost, error)
	Tenants(ctx context.Context, since time.Time) ([]string, error)
	Health(ctx context.Context) error
	Close() error
}

// FusedStore persists fused events (append-only).
type FusedStore interface {
	StoreBatch(ctx context.Context, events []*models.FusedEvent) error
	Query(ctx context.Context, tenantID string, from, to time.Time, limit int) ([]*models.FusedEvent, error)
	Close() error
}

// Publisher pushes normalized posts onto the event transport.
type Publisher interface {
	Publish(ctx context.Context, p *models.NormalizedPost) error
	PublishBatch(ctx context.Context, posts []*models.NormalizedPost) error
	Close() error
}

// AlertPublisher delivers fused events to downstream notification
// channels.
type AlertPublisher interface {
	PublishAlerts(ctx context.Context, events []*models.FusedEvent) error
}

// Watermarks tracks the fusion engine's last successful read per tenant.
type Watermarks interface {
	Get(ctx context.Context, tenantID string) (time.Time, error)
	Set(ctx context.Context, tenantID string, t time.Time) error
}

// Metrics records operational signals. Prometheus backs the process view;
// HourlyMetrics backs the per-tenant read model.
type Metrics interface {
	RecordRun(component string)
	RecordError(component string)
	RecordLatency(op string, seconds float64)
	RecordEventEmitted(domain, source string)
	RecordRateLimitHit(identifier string)
}

// HourlyMetrics is the per-tenant, per-hour counter read model.
type HourlyMetrics interface {
	Incr(ctx context.Context, tenantID, name string, delta int64) error
	Summary(ctx context.Context, tenantID string, hours int) (map[string]int64, error)
}

// MarketStream is a live quote feed (websocket) used by the market source.
type MarketStream interface {
	Connect(ctx context.Context) error
	Subscribe(ctx context.Context) error
	Read(ctx context.Context) (<-chan *models.RawEvent, <-chan error)
	Reconnect(ctx context.Context) error
	IsConnected() bool
	Close() error
}

// Hourly counter names exposed by the metrics summary read model.
const (
	MetricCollectorRuns      = "collector_runs"
	MetricCollectorErrors    = "collector_errors"
	MetricRateLimitHits      = "rate_limit_hits"
	MetricPipelineLatencySum = "pipeline_latency_ms_sum"
	MetricPipelineLatencyCnt = "pipeline_latency_count"
	MetricFusedCreated       = "fused_events_created"
	MetricNotificationsSent  = "notifications_sent"
	MetricDLQTotal           = "dlq_total"
)
