package usecase

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"AlertFuse/internal/domain/models"
)

func TestEventsHandlerStoresValidPost(t *testing.T) {
	store := &fakePostStore{}
	metrics := newFakeMetrics()
	h := NewEventsHandler("", store, metrics, nil)

	if h.Topic() != CollectTopic {
		t.Fatalf("default topic = %q, want %q", h.Topic(), CollectTopic)
	}

	post := &models.NormalizedPost{
		PostKey:   models.PostKeyFor("news", "wire", "n1"),
		TenantID:  "t1",
		Domain:    models.DomainNews,
		Source:    "wire",
		CreatedAt: time.Now().UTC(),
		Title:     "quarterly results",
		Severity:  20,
	}
	b, _ := json.Marshal(post)

	if err := h.Handle(context.Background(), b); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if len(store.posts) != 1 {
		t.Fatalf("stored %d posts, want 1", len(store.posts))
	}
	if store.posts[0].PostKey != post.PostKey {
		t.Fatalf("stored post key = %q", store.posts[0].PostKey)
	}
}

func TestEventsHandlerRejectsMalformed(t *testing.T) {
	store := &fakePostStore{}
	metrics := newFakeMetrics()
	h := NewEventsHandler("events.normalized", store, metrics, nil)

	if err := h.Handle(context.Background(), []byte("{not json")); err == nil {
		t.Fatal("expected error for malformed payload")
	}
	if err := h.Handle(context.Background(), []byte(`{"post_key":""}`)); err == nil {
		t.Fatal("expected error for invalid post")
	}
	if len(store.posts) != 0 {
		t.Fatalf("stored %d posts, want 0", len(store.posts))
	}
	if metrics.errs["consumer_unmarshal"] != 1 || metrics.errs["consumer_validate"] != 1 {
		t.Fatalf("error counts = %v", metrics.errs)
	}
}
