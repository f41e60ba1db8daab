package enrich

import (
	"context"
	"errors"
	"testing"
	"time"

	"AlertFuse/internal/service/retry"
	"AlertFuse/internal/service/sanitize"
	"AlertFuse/pkg/cache"
)

type fakeProvider struct {
	calls  int
	scores *Scores
	err    error
}

func (p *fakeProvider) Analyze(context.Context, string) (*Scores, error) {
	p.calls++
	if p.err != nil {
		return nil, p.err
	}
	cp := *p.scores
	return &cp, nil
}

func fastRetry() retry.Options {
	opts := retry.DefaultOptions()
	opts.MaxRetries = 0
	return opts
}

func TestEnrichReturnsProviderScores(t *testing.T) {
	p := &fakeProvider{scores: &Scores{Score: 7, Sentiment: 0.4, Keywords: []string{"earnings"}}}
	svc := New(p, sanitize.New(nil), nil, WithRetryOptions(fastRetry()))

	got, err := svc.Enrich(context.Background(), "AAPL beats earnings")
	if err != nil {
		t.Fatalf("enrich: %v", err)
	}
	if got.Score != 7 || got.Sentiment != 0.4 {
		t.Fatalf("scores = %+v", got)
	}
}

func TestEnrichPropagatesProviderFailure(t *testing.T) {
	p := &fakeProvider{err: errors.New("provider down")}
	svc := New(p, sanitize.New(nil), nil, WithRetryOptions(fastRetry()))

	if _, err := svc.Enrich(context.Background(), "text"); err == nil {
		t.Fatal("provider failure must surface so callers can fall back")
	}
}

func TestEnrichRejectsOutOfRangeScores(t *testing.T) {
	p := &fakeProvider{scores: &Scores{Score: 0, Sentiment: 0}}
	svc := New(p, sanitize.New(nil), nil, WithRetryOptions(fastRetry()))

	if _, err := svc.Enrich(context.Background(), "text"); err == nil {
		t.Fatal("score outside 1-10 must be rejected")
	}
}

func TestEnrichScrubsProviderOutput(t *testing.T) {
	p := &fakeProvider{scores: &Scores{
		Score:     5,
		Rationale: "matched key sk_live_Abc123Def456Ghi789JkL in text",
	}}
	svc := New(p, sanitize.New(nil), nil, WithRetryOptions(fastRetry()))

	got, err := svc.Enrich(context.Background(), "text")
	if err != nil {
		t.Fatalf("enrich: %v", err)
	}
	if got.Rationale == p.scores.Rationale {
		t.Fatalf("rationale not scrubbed: %q", got.Rationale)
	}
}

func TestEnrichCachesByText(t *testing.T) {
	p := &fakeProvider{scores: &Scores{Score: 6}}
	mc := cache.NewMemoryCache()
	defer mc.Close()

	svc := New(p, sanitize.New(nil), nil, WithCache(mc), WithRetryOptions(fastRetry()))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := svc.Enrich(ctx, "same text"); err != nil {
			t.Fatalf("enrich %d: %v", i, err)
		}
	}
	if p.calls != 1 {
		t.Fatalf("provider calls = %d, want 1", p.calls)
	}
}

func TestParseRetryAfter(t *testing.T) {
	if d := parseRetryAfter("30"); d != 30*time.Second {
		t.Fatalf("parsed = %v", d)
	}
	if d := parseRetryAfter(""); d != 0 {
		t.Fatalf("empty header = %v", d)
	}
	if d := parseRetryAfter("soon"); d != 0 {
		t.Fatalf("non-numeric header = %v", d)
	}
}
