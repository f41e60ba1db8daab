package dlq

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"AlertFuse/internal/domain/models"
	"AlertFuse/internal/domain/repository"
	"AlertFuse/pkg/logger"
)

// DeadSuffix is appended to a topic name to form its dead letter topic.
const DeadSuffix = ".dlq"

// DeadTopic returns the dead letter topic for a source topic.
func DeadTopic(topic string) string { return topic + DeadSuffix }

// Store persists dead letters per dead topic, newest first.
type Store interface {
	Append(ctx context.Context, deadTopic string, msg *models.DLQMessage) error
	List(ctx context.Context, deadTopic string, limit int) ([]*models.DLQMessage, error)
	Remove(ctx context.Context, deadTopic string, msg *models.DLQMessage) error
	Len(ctx context.Context, deadTopic string) (int64, error)
}

// Republisher puts a raw payload back onto a topic during replay.
type Republisher interface {
	Republish(ctx context.Context, topic string, data []byte) error
}

// Manager parks messages that exhausted their retries and replays them
// on demand. Parking must not fail the caller's pipeline, so Send
// errors are logged and absorbed.
type Manager struct {
	store   Store
	pub     Republisher
	log     *logger.Logger
	metrics repository.Metrics
	hourly  repository.HourlyMetrics
}

type Option func(*Manager)

func WithMetrics(m repository.Metrics) Option {
	return func(mgr *Manager) { mgr.metrics = m }
}

func WithHourlyMetrics(h repository.HourlyMetrics) Option {
	return func(mgr *Manager) { mgr.hourly = h }
}

func NewManager(store Store, pub Republisher, log *logger.Logger, opts ...Option) *Manager {
	m := &Manager{store: store, pub: pub, log: log}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Send parks a failed message under the dead topic for its origin and
// returns the assigned id.
func (m *Manager) Send(ctx context.Context, topic string, data []byte, cause error, retryCount int, meta map[string]string) string {
	msg := &models.DLQMessage{
		ID:            uuid.NewString(),
		OriginalTopic: topic,
		Data:          json.RawMessage(data),
		Error:         cause.Error(),
		Timestamp:     time.Now().UTC(),
		RetryCount:    retryCount,
		Metadata:      meta,
	}

	if err := m.store.Append(ctx, DeadTopic(topic), msg); err != nil {
		if m.log != nil {
			m.log.Error("failed to park dead letter",
				logger.String("topic", topic),
				logger.String("id", msg.ID),
				logger.Error(err))
		}
		return msg.ID
	}

	if m.log != nil {
		m.log.Warn("message sent to dead letter queue",
			logger.String("topic", topic),
			logger.String("id", msg.ID),
			logger.Int("retry_count", retryCount),
			logger.String("cause", msg.Error))
	}
	if m.metrics != nil {
		m.metrics.RecordError("dlq")
	}
	if m.hourly != nil {
		tenant := meta["tenant_id"]
		if tenant == "" {
			tenant = "default"
		}
		// Fire and forget, counters are advisory.
		_ = m.hourly.Incr(ctx, tenant, repository.MetricDLQTotal, 1)
	}
	return msg.ID
}

// ReplayOptions narrows a replay run. A zero Limit replays everything,
// a nil Filter matches everything.
type ReplayOptions struct {
	Limit    int
	Filter   func(*models.DLQMessage) bool
	OnReplay func(*models.DLQMessage)
}

// ReplayResult summarizes one replay run.
type ReplayResult struct {
	Replayed int `json:"replayed"`
	Skipped  int `json:"skipped"`
	Errors   int `json:"errors"`
}

// Replay republishes parked messages for topic back onto that topic.
// Messages that fail to republish stay parked; one bad message never
// stops the run.
func (m *Manager) Replay(ctx context.Context, topic string, opts ReplayOptions) (ReplayResult, error) {
	dead := DeadTopic(topic)
	msgs, err := m.store.List(ctx, dead, opts.Limit)
	if err != nil {
		return ReplayResult{}, err
	}

	var res ReplayResult
	for _, msg := range msgs {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		if opts.Filter != nil && !opts.Filter(msg) {
			res.Skipped++
			continue
		}

		if err := m.pub.Republish(ctx, msg.OriginalTopic, msg.Data); err != nil {
			res.Errors++
			if m.log != nil {
				m.log.Error("replay republish failed",
					logger.String("topic", msg.OriginalTopic),
					logger.String("id", msg.ID),
					logger.Error(err))
			}
			continue
		}
		if err := m.store.Remove(ctx, dead, msg); err != nil {
			// Already republished; a duplicate on the next replay is
			// handled by idempotency downstream.
			res.Errors++
			if m.log != nil {
				m.log.Warn("replayed message left in queue",
					logger.String("id", msg.ID),
					logger.Error(err))
			}
			continue
		}
		res.Replayed++
		if opts.OnReplay != nil {
			opts.OnReplay(msg)
		}
	}

	if m.log != nil {
		m.log.Info("dead letter replay finished",
			logger.String("topic", topic),
			logger.Int("replayed", res.Replayed),
			logger.Int("skipped", res.Skipped),
			logger.Int("errors", res.Errors))
	}
	return res, nil
}

// Stats reports the pending depth of a dead topic.
func (m *Manager) Stats(ctx context.Context, topic string) (int64, error) {
	return m.store.Len(ctx, DeadTopic(topic))
}
