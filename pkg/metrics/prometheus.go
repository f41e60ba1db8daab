package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	runsTotal     *prometheus.CounterVec
	errorsTotal   *prometheus.CounterVec
	eventsEmitted *prometheus.CounterVec
	rateLimitHits *prometheus.CounterVec
	latency       *prometheus.HistogramVec
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		runsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "alertfuse_runs_total",
				Help: "Total number of pipeline component runs",
			},
			[]string{"component"},
		),
		errorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "alertfuse_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		eventsEmitted: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "alertfuse_events_emitted_total",
				Help: "Normalized events published, by domain and source",
			},
			[]string{"domain", "source"},
		),
		rateLimitHits: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "alertfuse_rate_limit_hits_total",
				Help: "Requests rejected by the rate limiter",
			},
			[]string{"identifier"},
		),
		latency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "alertfuse_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

// RecordRun records one run of a pipeline component.
func (r *Recorder) RecordRun(component string) {
	r.runsTotal.WithLabelValues(component).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordEventEmitted records one published normalized event.
func (r *Recorder) RecordEventEmitted(domain, source string) {
	r.eventsEmitted.WithLabelValues(domain, source).Inc()
}

// RecordRateLimitHit records one rejected request.
func (r *Recorder) RecordRateLimitHit(identifier string) {
	r.rateLimitHits.WithLabelValues(identifier).Inc()
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}
