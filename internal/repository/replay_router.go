package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"AlertFuse/internal/domain/models"
	"AlertFuse/internal/service/dlq"
)

// JobEnqueuer is the producer side of the Redis job queue.
type JobEnqueuer interface {
	Enqueue(ctx context.Context, msgType string, payload interface{}) error
}

// ReplayRouter returns replayed dead letters to the transport they came
// from. Parked collect jobs re-enter the Redis job queue so the fetch
// re-runs; everything else goes back onto its Kafka topic.
type ReplayRouter struct {
	kafka    dlq.Republisher
	jobs     JobEnqueuer
	jobTopic string
	jobType  string
}

func NewReplayRouter(kafka dlq.Republisher, jobs JobEnqueuer, jobTopic, jobType string) *ReplayRouter {
	return &ReplayRouter{kafka: kafka, jobs: jobs, jobTopic: jobTopic, jobType: jobType}
}

func (r *ReplayRouter) Republish(ctx context.Context, topic string, data []byte) error {
	if topic != r.jobTopic {
		return r.kafka.Republish(ctx, topic, data)
	}

	var job models.CollectJob
	if err := json.Unmarshal(data, &job); err != nil {
		return fmt.Errorf("parked collect job unparseable: %w", err)
	}
	return r.jobs.Enqueue(ctx, r.jobType, &job)
}

var _ dlq.Republisher = (*ReplayRouter)(nil)
