package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"

	"AlertFuse/internal/domain/models"
	"AlertFuse/internal/domain/repository"
	"AlertFuse/internal/service/dlq"
	"AlertFuse/internal/service/enrich"
	"AlertFuse/internal/service/idempotency"
	"AlertFuse/internal/service/lock"
	"AlertFuse/internal/service/retry"
	"AlertFuse/internal/service/source"
	"AlertFuse/pkg/logger"
)

// CollectTopic is the transport topic normalized posts are published to.
const CollectTopic = "events.normalized"

// CollectJobsTopic is the dead-letter namespace for collect jobs whose
// fetch exhausted its retries. Replaying it re-enqueues the job on the
// Redis job queue so the fetch actually re-runs; CollectTopic parking
// is reserved for posts that failed at the publish stage.
const CollectJobsTopic = "jobs.collect"

var jobValidator = validator.New()

// ValidateJob applies defaults and checks the job descriptor. A failure
// here is terminal, the scheduler gets a 400 and never a retry.
func ValidateJob(job *models.CollectJob) error {
	if job == nil {
		return fmt.Errorf("job is nil")
	}
	if err := defaults.Set(job); err != nil {
		return fmt.Errorf("apply job defaults: %w", err)
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now().UTC()
	}
	if err := jobValidator.Struct(job); err != nil {
		return fmt.Errorf("invalid job: %w", err)
	}
	return nil
}

// CollectResult is the trigger endpoint's success payload.
type CollectResult struct {
	Skipped    bool `json:"skipped"`
	Processed  int  `json:"processed"`
	Published  int  `json:"published"`
	Duplicates int  `json:"duplicates"`
	Errors     int  `json:"errors"`
}

// Collector runs one collect job end to end: lock, paced fetch with
// retries, per-event idempotent normalize/enrich/publish, DLQ on
// exhausted retries.
type Collector struct {
	registry *source.Registry
	locks    *lock.Service
	idem     *idempotency.Service
	enricher *enrich.Service
	pub      repository.Publisher
	dlq      *dlq.Manager
	metrics  repository.Metrics
	hourly   repository.HourlyMetrics
	log      *logger.Logger

	retryOpts retry.Options
	lockTTL   time.Duration
}

type CollectorOption func(*Collector)

func WithCollectorRetry(opts retry.Options) CollectorOption {
	return func(c *Collector) { c.retryOpts = opts }
}

func WithLockTTL(ttl time.Duration) CollectorOption {
	return func(c *Collector) { c.lockTTL = ttl }
}

func WithEnricher(e *enrich.Service) CollectorOption {
	return func(c *Collector) { c.enricher = e }
}

func WithHourly(h repository.HourlyMetrics) CollectorOption {
	return func(c *Collector) { c.hourly = h }
}

func NewCollector(
	registry *source.Registry,
	locks *lock.Service,
	idem *idempotency.Service,
	pub repository.Publisher,
	dlqMgr *dlq.Manager,
	metrics repository.Metrics,
	log *logger.Logger,
	opts ...CollectorOption,
) *Collector {
	c := &Collector{
		registry:  registry,
		locks:     locks,
		idem:      idem,
		pub:       pub,
		dlq:       dlqMgr,
		metrics:   metrics,
		log:       log,
		retryOpts: retry.DefaultOptions(),
		lockTTL:   5 * time.Minute,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Run executes one collect job. A held lock yields Skipped=true with a
// nil error; only terminal problems (unknown platform, malformed job)
// return an error.
func (c *Collector) Run(ctx context.Context, job *models.CollectJob) (*CollectResult, error) {
	if err := ValidateJob(job); err != nil {
		return nil, err
	}

	src, err := c.registry.Lookup(job.Platform)
	if err != nil {
		return nil, err
	}

	started := time.Now()
	res := &CollectResult{}
	lockName := fmt.Sprintf("collector:%s:%s:%s", job.Platform, job.TenantID, job.SourceID)

	skipped, err := c.locks.WithLock(ctx, lockName, c.lockTTL, func(ctx context.Context) error {
		c.collect(ctx, src, job, res)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if skipped {
		res.Skipped = true
		if c.log != nil {
			c.log.Info("collect skipped, lock held elsewhere",
				logger.String("lock", lockName))
		}
		return res, nil
	}

	c.metrics.RecordRun("collector")
	c.metrics.RecordLatency("collect", time.Since(started).Seconds())
	if c.hourly != nil {
		_ = c.hourly.Incr(ctx, job.TenantID, repository.MetricCollectorRuns, 1)
		_ = c.hourly.Incr(ctx, job.TenantID, repository.MetricPipelineLatencySum, time.Since(started).Milliseconds())
		_ = c.hourly.Incr(ctx, job.TenantID, repository.MetricPipelineLatencyCnt, 1)
		if res.Errors > 0 {
			_ = c.hourly.Incr(ctx, job.TenantID, repository.MetricCollectorErrors, int64(res.Errors))
		}
	}
	return res, nil
}

// collect does the work inside the lock. Fetch failures that exhaust
// retries are absorbed into the DLQ, not surfaced to the scheduler.
func (c *Collector) collect(ctx context.Context, src source.Source, job *models.CollectJob, res *CollectResult) {
	events, err := retry.DoValue(ctx, c.retryOpts, func(ctx context.Context) ([]*models.RawEvent, error) {
		return src.Fetch(ctx, job)
	})
	if err != nil {
		res.Errors++
		c.metrics.RecordError("collector")
		payload, _ := json.Marshal(job)
		c.dlq.Send(ctx, CollectJobsTopic, payload, err, job.RetryCount,
			map[string]string{"tenant_id": job.TenantID, "stage": "fetch", "platform": job.Platform})
		return
	}

	for _, ev := range events {
		if ctx.Err() != nil {
			return
		}
		if err := ev.Validate(); err != nil {
			res.Errors++
			if c.log != nil {
				c.log.Warn("dropping invalid raw event",
					logger.String("source", src.Name()),
					logger.Error(err))
			}
			continue
		}
		res.Processed++

		key := idempotency.Key(idempotency.KeyParts{
			Source:    ev.Source,
			Symbol:    symbolOf(ev),
			Timestamp: ev.Timestamp,
			Type:      string(ev.Domain),
			Extra:     ev.ID,
		})

		_, duplicate, err := idempotency.Process(ctx, c.idem, key, nil, func(ctx context.Context) (struct{}, error) {
			return struct{}{}, c.emit(ctx, ev, job)
		})
		if duplicate {
			res.Duplicates++
			continue
		}
		if err != nil {
			res.Errors++
			continue
		}
		res.Published++
		c.metrics.RecordEventEmitted(string(ev.Domain), ev.Source)
	}
}

// emit normalizes, optionally enriches, and publishes one event. A
// publish failure after retries goes to the DLQ and is absorbed.
func (c *Collector) emit(ctx context.Context, ev *models.RawEvent, job *models.CollectJob) error {
	post := Normalize(ev, job)

	if c.enricher != nil {
		if text := ev.Text(); text != "" {
			if scores, err := c.enricher.Enrich(ctx, text); err == nil {
				post.Severity = models.SeverityFromTen(scores.Score)
				post.Sentiment = scores.Sentiment
				for _, kw := range scores.Keywords {
					post.Keywords = appendUnique(post.Keywords, kw)
				}
				post.Entities = mergeEntities(post.Entities, scores.Entities)
			}
			// Enrichment failure falls back to the heuristic baseline.
		}
	}

	if err := post.Validate(); err != nil {
		return err
	}

	err := retry.Do(ctx, c.retryOpts, func(ctx context.Context) error {
		return c.pub.Publish(ctx, post)
	})
	if err != nil {
		c.metrics.RecordError("publish")
		payload, _ := json.Marshal(post)
		c.dlq.Send(ctx, CollectTopic, payload, err, job.RetryCount,
			map[string]string{"tenant_id": job.TenantID, "stage": "publish"})
		return nil // absorbed
	}
	return nil
}

func symbolOf(ev *models.RawEvent) string {
	if ev.Market != nil {
		return ev.Market.Symbol
	}
	return ""
}

func mergeEntities(base, extra []models.Entity) []models.Entity {
	for _, e := range extra {
		dup := false
		for _, b := range base {
			if b.Type == e.Type && b.Value == e.Value {
				dup = true
				break
			}
		}
		if !dup {
			base = append(base, e)
		}
	}
	return base
}
