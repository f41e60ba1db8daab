package usecase

import (
	"context"
	"encoding/json"
	"time"

	"AlertFuse/internal/domain/models"
	domrepo "AlertFuse/internal/domain/repository"
	pkgkafka "AlertFuse/pkg/kafka"
	"AlertFuse/pkg/logger"
)

// EventsHandler consumes normalized posts from Kafka and writes them to
// the post store, where the fusion engine reads them.
type EventsHandler struct {
	topic   string
	posts   domrepo.PostStore
	metrics domrepo.Metrics
	log     *logger.Logger
}

func NewEventsHandler(topic string, posts domrepo.PostStore, metrics domrepo.Metrics, log *logger.Logger) *EventsHandler {
	if topic == "" {
		topic = CollectTopic
	}
	return &EventsHandler{topic: topic, posts: posts, metrics: metrics, log: log}
}

func (h *EventsHandler) Topic() string { return h.topic }

func (h *EventsHandler) Handle(ctx context.Context, b []byte) error {
	var post models.NormalizedPost
	if err := json.Unmarshal(b, &post); err != nil {
		h.metrics.RecordError("consumer_unmarshal")
		// A malformed payload never becomes valid; surface the error
		// so the redelivery guard exhausts it and parks it.
		return err
	}
	if err := post.Validate(); err != nil {
		h.metrics.RecordError("consumer_validate")
		return err
	}

	// E2E latency from source timestamp to storage (approx).
	h.metrics.RecordLatency("ingest_e2e_seconds", time.Since(post.CreatedAt).Seconds())

	start := time.Now()
	err := h.posts.Store(ctx, &post)
	h.metrics.RecordLatency("ch_insert_seconds", time.Since(start).Seconds())
	if err != nil {
		h.metrics.RecordError("consumer_store")
		return err
	}
	if h.log != nil {
		h.log.Debug("post stored",
			logger.String("post_key", post.PostKey),
			logger.String("domain", string(post.Domain)))
	}
	return nil
}

var _ pkgkafka.MessageHandler = (*EventsHandler)(nil)
