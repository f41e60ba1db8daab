package repository

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"AlertFuse/internal/domain/models"
	"AlertFuse/internal/service/dlq"
	"AlertFuse/internal/usecase"
)

type fakeKafkaRepub struct {
	topics []string
	data   [][]byte
}

func (f *fakeKafkaRepub) Republish(_ context.Context, topic string, data []byte) error {
	f.topics = append(f.topics, topic)
	f.data = append(f.data, data)
	return nil
}

type fakeEnqueuer struct {
	types    []string
	payloads []interface{}
}

func (f *fakeEnqueuer) Enqueue(_ context.Context, msgType string, payload interface{}) error {
	f.types = append(f.types, msgType)
	f.payloads = append(f.payloads, payload)
	return nil
}

// A replayed fetch failure must re-enter the job queue as a runnable
// collect job, never land on the normalized-post topic.
func TestReplayRoutesParkedJobToQueue(t *testing.T) {
	ctx := context.Background()
	kafka := &fakeKafkaRepub{}
	queue := &fakeEnqueuer{}
	router := NewReplayRouter(kafka, queue, usecase.CollectJobsTopic, usecase.CollectJobType)

	store := dlq.NewMemoryStore()
	mgr := dlq.NewManager(store, router, nil)

	job := &models.CollectJob{TenantID: "t1", SourceID: "feed", Platform: "news"}
	payload, _ := json.Marshal(job)
	mgr.Send(ctx, usecase.CollectJobsTopic, payload, errors.New("upstream 503"), 0,
		map[string]string{"stage": "fetch"})

	res, err := mgr.Replay(ctx, usecase.CollectJobsTopic, dlq.ReplayOptions{Limit: 10})
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if res.Replayed != 1 {
		t.Fatalf("replayed = %d, want 1", res.Replayed)
	}
	if len(kafka.topics) != 0 {
		t.Fatalf("job replay must not touch kafka, wrote to %v", kafka.topics)
	}
	if len(queue.types) != 1 || queue.types[0] != usecase.CollectJobType {
		t.Fatalf("enqueued types = %v", queue.types)
	}

	got, ok := queue.payloads[0].(*models.CollectJob)
	if !ok {
		t.Fatalf("payload type = %T", queue.payloads[0])
	}
	if got.TenantID != "t1" || got.Platform != "news" {
		t.Fatalf("job round trip lost fields: %+v", got)
	}
}

func TestReplayRoutesPostTopicsToKafka(t *testing.T) {
	ctx := context.Background()
	kafka := &fakeKafkaRepub{}
	queue := &fakeEnqueuer{}
	router := NewReplayRouter(kafka, queue, usecase.CollectJobsTopic, usecase.CollectJobType)

	if err := router.Republish(ctx, usecase.CollectTopic, []byte(`{"postKey":"k"}`)); err != nil {
		t.Fatalf("republish: %v", err)
	}
	if len(kafka.topics) != 1 || kafka.topics[0] != usecase.CollectTopic {
		t.Fatalf("kafka topics = %v", kafka.topics)
	}
	if len(queue.types) != 0 {
		t.Fatalf("post replay must not enqueue jobs, got %v", queue.types)
	}
}

func TestReplayRejectsUnparseableParkedJob(t *testing.T) {
	router := NewReplayRouter(&fakeKafkaRepub{}, &fakeEnqueuer{}, usecase.CollectJobsTopic, usecase.CollectJobType)
	if err := router.Republish(context.Background(), usecase.CollectJobsTopic, []byte("not json")); err == nil {
		t.Fatal("unparseable job must stay parked")
	}
}
