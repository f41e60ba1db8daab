package usecase

import (
	"context"

	"AlertFuse/internal/service/dlq"
	pkgkafka "AlertFuse/pkg/kafka"
)

// GuardedHandler wraps a consumer handler with envelope redelivery:
// failures are requeued on the topic with a bumped count and parked in
// the dead letter queue once retries are exhausted. The error is
// absorbed either way, so parked messages surface through the DLQ
// manager's Stats and Replay, never through a second consumer-side
// dead topic.
type GuardedHandler struct {
	inner      pkgkafka.MessageHandler
	mgr        *dlq.Manager
	maxRetries int
}

func NewGuardedHandler(inner pkgkafka.MessageHandler, mgr *dlq.Manager, maxRetries int) *GuardedHandler {
	if maxRetries <= 0 {
		maxRetries = 3
	}
	return &GuardedHandler{inner: inner, mgr: mgr, maxRetries: maxRetries}
}

func (g *GuardedHandler) Topic() string { return g.inner.Topic() }

func (g *GuardedHandler) Handle(ctx context.Context, b []byte) error {
	env := dlq.DecodeEnvelope(b)
	g.mgr.Handle(ctx, g.Topic(), env, g.maxRetries, func(ctx context.Context, data []byte) error {
		return g.inner.Handle(ctx, data)
	})
	return nil
}

var _ pkgkafka.MessageHandler = (*GuardedHandler)(nil)
