package dlq

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"AlertFuse/internal/domain/models"
)

type fakePub struct {
	mu     sync.Mutex
	sent   map[string][][]byte
	failOn func(topic string, data []byte) error
}

func newFakePub() *fakePub {
	return &fakePub{sent: make(map[string][][]byte)}
}

func (p *fakePub) Republish(_ context.Context, topic string, data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failOn != nil {
		if err := p.failOn(topic, data); err != nil {
			return err
		}
	}
	p.sent[topic] = append(p.sent[topic], data)
	return nil
}

func TestSendAndReplayRoundTrip(t *testing.T) {
	store := NewMemoryStore()
	pub := newFakePub()
	mgr := NewManager(store, pub, nil)
	ctx := context.Background()

	id := mgr.Send(ctx, "events.normalized", []byte(`{"post":"a"}`), errors.New("handler broke"), 3, nil)
	if id == "" {
		t.Fatal("send must return an id")
	}

	depth, err := mgr.Stats(ctx, "events.normalized")
	if err != nil || depth != 1 {
		t.Fatalf("stats = %d, %v", depth, err)
	}

	res, err := mgr.Replay(ctx, "events.normalized", ReplayOptions{})
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if res.Replayed != 1 || res.Skipped != 0 || res.Errors != 0 {
		t.Fatalf("replay result = %+v", res)
	}
	if len(pub.sent["events.normalized"]) != 1 {
		t.Fatal("replayed payload should return to the original topic")
	}

	depth, _ = mgr.Stats(ctx, "events.normalized")
	if depth != 0 {
		t.Fatalf("queue depth after replay = %d, want 0", depth)
	}
}

func TestReplayFilterAndLimit(t *testing.T) {
	store := NewMemoryStore()
	mgr := NewManager(store, newFakePub(), nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		tenant := "acme"
		if i == 1 {
			tenant = "globex"
		}
		mgr.Send(ctx, "jobs", []byte(`{}`), errors.New("x"), 0, map[string]string{"tenant_id": tenant})
	}

	res, err := mgr.Replay(ctx, "jobs", ReplayOptions{
		Filter: func(m *models.DLQMessage) bool { return m.Metadata["tenant_id"] == "acme" },
	})
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if res.Replayed != 2 || res.Skipped != 1 {
		t.Fatalf("filtered replay = %+v", res)
	}

	depth, _ := mgr.Stats(ctx, "jobs")
	if depth != 1 {
		t.Fatalf("non matching message should stay parked, depth = %d", depth)
	}
}

func TestReplayBadMessageDoesNotBlock(t *testing.T) {
	store := NewMemoryStore()
	pub := newFakePub()
	pub.failOn = func(_ string, data []byte) error {
		if string(data) == `{"bad":true}` {
			return errors.New("broker rejects it")
		}
		return nil
	}
	mgr := NewManager(store, pub, nil)
	ctx := context.Background()

	mgr.Send(ctx, "t", []byte(`{"bad":true}`), errors.New("x"), 0, nil)
	mgr.Send(ctx, "t", []byte(`{"ok":true}`), errors.New("x"), 0, nil)

	res, err := mgr.Replay(ctx, "t", ReplayOptions{})
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if res.Replayed != 1 || res.Errors != 1 {
		t.Fatalf("replay result = %+v", res)
	}

	// The failed message stays for the next run.
	depth, _ := mgr.Stats(ctx, "t")
	if depth != 1 {
		t.Fatalf("depth = %d, want 1", depth)
	}
}

func TestHandleRequeuesThenParks(t *testing.T) {
	store := NewMemoryStore()
	pub := newFakePub()
	mgr := NewManager(store, pub, nil)
	ctx := context.Background()

	fail := func(context.Context, []byte) error { return errors.New("nope") }

	env := NewEnvelope([]byte(`{"n":1}`))
	mgr.Handle(ctx, "work", env, 2, fail)
	if len(pub.sent["work"]) != 1 {
		t.Fatal("first failure should requeue")
	}

	var redo Envelope
	if err := json.Unmarshal(pub.sent["work"][0], &redo); err != nil {
		t.Fatalf("requeued envelope: %v", err)
	}
	if redo.RetryCount != 1 {
		t.Fatalf("retry count = %d, want 1", redo.RetryCount)
	}

	exhausted := &Envelope{ID: env.ID, Data: env.Data, RetryCount: 2}
	mgr.Handle(ctx, "work", exhausted, 2, fail)
	depth, _ := mgr.Stats(ctx, "work")
	if depth != 1 {
		t.Fatalf("exhausted envelope should be parked, depth = %d", depth)
	}
}

func TestDecodeEnvelopeBarePayload(t *testing.T) {
	env := DecodeEnvelope([]byte(`{"price":1.23}`))
	if env.ID == "" {
		t.Fatal("bare payload gets a fresh envelope")
	}
	if string(env.Data) != `{"price":1.23}` {
		t.Fatalf("data = %s", env.Data)
	}

	wrapped, _ := json.Marshal(NewEnvelope([]byte(`{"x":1}`)))
	again := DecodeEnvelope(wrapped)
	if string(again.Data) != `{"x":1}` {
		t.Fatalf("wrapped data = %s", again.Data)
	}
}

func TestDeadTopic(t *testing.T) {
	if got := DeadTopic("events.normalized"); got != "events.normalized.dlq" {
		t.Fatalf("dead topic = %q", got)
	}
}
