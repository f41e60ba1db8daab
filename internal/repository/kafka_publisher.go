package repository

import (
	"context"

	"AlertFuse/internal/domain/models"
	drepo "AlertFuse/internal/domain/repository"
	pkgkafka "AlertFuse/pkg/kafka"
)

// KafkaPublisher pushes normalized posts onto the transport. It also
// serves as the DLQ replay republisher since both write raw payloads
// to a named topic.
type KafkaPublisher struct {
	producer   *pkgkafka.Producer
	topic      string
	alertTopic string
}

func NewKafkaPublisher(producer *pkgkafka.Producer, topic, alertTopic string) *KafkaPublisher {
	if alertTopic == "" {
		alertTopic = topic + ".alerts"
	}
	return &KafkaPublisher{producer: producer, topic: topic, alertTopic: alertTopic}
}

func (p *KafkaPublisher) Publish(ctx context.Context, post *models.NormalizedPost) error {
	// Key by post key so redeliveries land on the same partition.
	return p.producer.Publish(ctx, p.topic, []byte(post.PostKey), post)
}

func (p *KafkaPublisher) PublishBatch(ctx context.Context, posts []*models.NormalizedPost) error {
	if len(posts) == 0 {
		return nil
	}
	msgs := make([]pkgkafka.Message, 0, len(posts))
	for _, post := range posts {
		msgs = append(msgs, pkgkafka.Message{Key: []byte(post.PostKey), Value: post})
	}
	return p.producer.PublishBatch(ctx, p.topic, msgs)
}

// PublishAlerts pushes fused events onto the alert topic, keyed by
// tenant so each tenant's alert stream stays ordered.
func (p *KafkaPublisher) PublishAlerts(ctx context.Context, events []*models.FusedEvent) error {
	if len(events) == 0 {
		return nil
	}
	msgs := make([]pkgkafka.Message, 0, len(events))
	for _, ev := range events {
		msgs = append(msgs, pkgkafka.Message{Key: []byte(ev.TenantID), Value: ev})
	}
	return p.producer.PublishBatch(ctx, p.alertTopic, msgs)
}

// Republish writes a raw payload back to a topic during DLQ replay.
func (p *KafkaPublisher) Republish(ctx context.Context, topic string, data []byte) error {
	return p.producer.Publish(ctx, topic, nil, data)
}

func (p *KafkaPublisher) Close() error {
	return p.producer.Close()
}

var (
	_ drepo.Publisher      = (*KafkaPublisher)(nil)
	_ drepo.AlertPublisher = (*KafkaPublisher)(nil)
)
