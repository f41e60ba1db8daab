package dlq

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Envelope wraps a payload on the transport so the redelivery count
// travels with it.
type Envelope struct {
	ID         string          `json:"id"`
	Data       json.RawMessage `json:"data"`
	RetryCount int             `json:"retry_count"`
	CreatedAt  time.Time       `json:"created_at"`
}

func NewEnvelope(data []byte) *Envelope {
	return &Envelope{
		ID:        uuid.NewString(),
		Data:      json.RawMessage(data),
		CreatedAt: time.Now().UTC(),
	}
}

// DecodeEnvelope tolerates bare payloads from producers that predate
// the envelope format.
func DecodeEnvelope(raw []byte) *Envelope {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err == nil && env.ID != "" {
		return &env
	}
	return NewEnvelope(raw)
}

// Handle runs fn over an envelope. On failure the message is put back
// on its topic with the count bumped until maxRetries, then parked in
// the dead letter queue. The error is absorbed either way so a poison
// message cannot wedge the consumer.
func (m *Manager) Handle(ctx context.Context, topic string, env *Envelope, maxRetries int, fn func(ctx context.Context, data []byte) error) {
	err := fn(ctx, env.Data)
	if err == nil {
		return
	}

	if env.RetryCount < maxRetries {
		redo := &Envelope{
			ID:         env.ID,
			Data:       env.Data,
			RetryCount: env.RetryCount + 1,
			CreatedAt:  env.CreatedAt,
		}
		if redo.ID == "" {
			redo.ID = uuid.NewString()
		}
		data, merr := json.Marshal(redo)
		if merr == nil {
			if perr := m.pub.Republish(ctx, topic, data); perr == nil {
				return
			}
		}
		// Could not requeue, fall through to parking.
	}

	m.Send(ctx, topic, env.Data, err, env.RetryCount, map[string]string{"envelope_id": env.ID})
}
