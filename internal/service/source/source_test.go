package source

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"AlertFuse/internal/domain/models"
	apphttp "AlertFuse/pkg/http"
)

func TestRegistryLookup(t *testing.T) {
	r := NewRegistry()
	news := NewNewsSource("news-a", "http://example", "", 100)

	if err := r.Register("news", news); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := r.Register("news", news); err == nil {
		t.Fatal("duplicate registration must fail")
	}

	got, err := r.Lookup("news")
	if err != nil || got.Name() != "news-a" {
		t.Fatalf("lookup: %v, %v", got, err)
	}
	if _, err := r.Lookup("carrier-pigeon"); err == nil {
		t.Fatal("unknown platform must error")
	}
	if ps := r.Platforms(); len(ps) != 1 || ps[0] != "news" {
		t.Fatalf("platforms = %v", ps)
	}
}

func TestNewsSourceFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/headlines" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.URL.Query().Get("source") != "feed-1" {
			t.Errorf("source = %s", r.URL.Query().Get("source"))
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"articles":[
			{"id":"n1","headline":"AAPL beats estimates","url":"http://x/1","published_at":"2026-08-29T10:00:00Z"},
			{"id":"n2","headline":"Fed holds rates","url":"http://x/2","published_at":"2026-08-29T10:05:00Z"}
		]}`))
	}))
	defer srv.Close()

	s := NewNewsSource("news-a", srv.URL, "key", 1000)
	events, err := s.Fetch(context.Background(), &models.CollectJob{TenantID: "t1", SourceID: "feed-1", Platform: "news"})
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("events = %d", len(events))
	}
	for _, ev := range events {
		if err := ev.Validate(); err != nil {
			t.Fatalf("event %s invalid: %v", ev.ID, err)
		}
		if ev.Domain != models.DomainNews || ev.News == nil {
			t.Fatalf("event %s wrong shape", ev.ID)
		}
	}
	if events[0].News.Headline != "AAPL beats estimates" {
		t.Fatalf("headline = %q", events[0].News.Headline)
	}
}

func TestSocialSourceSkipsEmptyPosts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"posts":[
			{"id":"p1","author":"a","text":"$AAPL to the moon","likes":10,"created_at":"2026-08-29T09:00:00Z"},
			{"id":"","author":"b","text":"orphan"},
			{"id":"p3","author":"c","text":"","likes":1}
		]}`))
	}))
	defer srv.Close()

	s := NewSocialSource("social-a", srv.URL, "", 1000)
	events, err := s.Fetch(context.Background(), &models.CollectJob{TenantID: "t1", SourceID: "f", Platform: "social"})
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(events) != 1 || events[0].Social.Text != "$AAPL to the moon" {
		t.Fatalf("events = %+v", events)
	}
}

func TestRSSSourceFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<?xml version="1.0"?>
<rss version="2.0"><channel>
<item><title>Oil spikes on supply cut</title><link>http://x/a</link><guid>g1</guid><pubDate>Fri, 29 Aug 2026 08:00:00 +0000</pubDate></item>
<item><title></title><link>http://x/skip</link></item>
</channel></rss>`))
	}))
	defer srv.Close()

	s := NewRSSSource("rss-a", srv.URL, 1000)
	events, err := s.Fetch(context.Background(), nil)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("events = %d, want 1", len(events))
	}
	ev := events[0]
	if ev.ID != "g1" || ev.News.Headline != "Oil spikes on supply cut" {
		t.Fatalf("event = %+v", ev)
	}
	want := time.Date(2026, 8, 29, 8, 0, 0, 0, time.UTC)
	if !ev.Timestamp.Equal(want) {
		t.Fatalf("timestamp = %v", ev.Timestamp)
	}
}

func TestFetcherUpstreamErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "7")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	f := newFetcher("", 1000, 1, apphttp.NewClient())
	var dest struct{}
	err := f.getJSON(context.Background(), srv.URL, nil, &dest)
	if err == nil {
		t.Fatal("429 must error")
	}
}
