package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"AlertFuse/internal/service/dlq"
)

type fakeRepub struct {
	sent map[string][][]byte
}

func newFakeRepub() *fakeRepub { return &fakeRepub{sent: make(map[string][][]byte)} }

func (p *fakeRepub) Republish(_ context.Context, topic string, data []byte) error {
	p.sent[topic] = append(p.sent[topic], data)
	return nil
}

type failingHandler struct {
	calls int
}

func (h *failingHandler) Topic() string { return CollectTopic }
func (h *failingHandler) Handle(context.Context, []byte) error {
	h.calls++
	return errors.New("store down")
}

func TestGuardedHandlerRequeuesFailures(t *testing.T) {
	ctx := context.Background()
	pub := newFakeRepub()
	mgr := dlq.NewManager(dlq.NewMemoryStore(), pub, nil)
	inner := &failingHandler{}
	g := NewGuardedHandler(inner, mgr, 2)

	if err := g.Handle(ctx, []byte(`{"post_key":"k"}`)); err != nil {
		t.Fatalf("guard must absorb handler errors, got %v", err)
	}
	if inner.calls != 1 {
		t.Fatalf("inner calls = %d", inner.calls)
	}
	if len(pub.sent[CollectTopic]) != 1 {
		t.Fatal("first failure should requeue on the topic")
	}

	var redo dlq.Envelope
	if err := json.Unmarshal(pub.sent[CollectTopic][0], &redo); err != nil {
		t.Fatalf("requeued envelope: %v", err)
	}
	if redo.RetryCount != 1 {
		t.Fatalf("retry count = %d, want 1", redo.RetryCount)
	}
	if string(redo.Data) != `{"post_key":"k"}` {
		t.Fatalf("payload lost in requeue: %s", redo.Data)
	}
}

func TestGuardedHandlerParksExhaustedMessages(t *testing.T) {
	ctx := context.Background()
	mgr := dlq.NewManager(dlq.NewMemoryStore(), newFakeRepub(), nil)
	g := NewGuardedHandler(&failingHandler{}, mgr, 2)

	exhausted, _ := json.Marshal(dlq.Envelope{ID: "e1", Data: []byte(`{"post_key":"k"}`), RetryCount: 2})
	if err := g.Handle(ctx, exhausted); err != nil {
		t.Fatalf("guard must absorb parking, got %v", err)
	}

	depth, _ := mgr.Stats(ctx, CollectTopic)
	if depth != 1 {
		t.Fatalf("parked depth = %d, want 1", depth)
	}
}

func TestGuardedHandlerPassesCleanMessagesThrough(t *testing.T) {
	ctx := context.Background()
	store := &fakePostStore{}
	mgr := dlq.NewManager(dlq.NewMemoryStore(), newFakeRepub(), nil)
	inner := NewEventsHandler("", store, newFakeMetrics(), nil)
	g := NewGuardedHandler(inner, mgr, 3)

	post := socialPost("t1", "X", "all good on X", time.Now().UTC(), 20)
	payload, _ := json.Marshal(post)
	if err := g.Handle(ctx, payload); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if len(store.posts) != 1 {
		t.Fatalf("stored = %d, want 1", len(store.posts))
	}
	depth, _ := mgr.Stats(ctx, CollectTopic)
	if depth != 0 {
		t.Fatalf("nothing should be parked, depth = %d", depth)
	}
}
