package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"AlertFuse/internal/domain/models"
)

func newFusionEnv() (*Fusion, *fakePostStore, *fakeFusedStore, *fakeWatermarks, *fakeHourly) {
	posts := &fakePostStore{}
	fused := &fakeFusedStore{}
	wm := newFakeWatermarks()
	hourly := newFakeHourly()
	f := NewFusion(posts, fused, wm, newFakeMetrics(), hourly, nil, DefaultFusionConfig())
	return f, posts, fused, wm, hourly
}

func marketPost(tenant, symbol string, ts time.Time, price, volume float64) *models.NormalizedPost {
	return &models.NormalizedPost{
		PostKey:   models.PostKeyFor("market", "quote-stream", symbol+ts.String()),
		TenantID:  tenant,
		Domain:    models.DomainMarket,
		Source:    "quote-stream",
		CreatedAt: ts,
		Title:     symbol + " tick",
		Price:     price,
		Volume:    volume,
		Severity:  5,
		Keywords:  []string{symbol},
		Entities:  []models.Entity{{Type: models.EntityTicker, Value: symbol, Confidence: 1}},
	}
}

func socialPost(tenant, symbol, text string, ts time.Time, severity int) *models.NormalizedPost {
	return &models.NormalizedPost{
		PostKey:   models.PostKeyFor("social", "social-a", text),
		TenantID:  tenant,
		Domain:    models.DomainSocial,
		Source:    "social-a",
		CreatedAt: ts,
		Title:     text,
		Summary:   text,
		Severity:  severity,
		Keywords:  []string{symbol},
		Entities:  []models.Entity{{Type: models.EntityTicker, Value: symbol, Confidence: 0.8}},
	}
}

// A 2% five-minute move on X plus a social mention of X in the same
// window must land in one fused event with domain=fusion and severity
// at least the higher individual score.
func TestCrossDomainCorrelation(t *testing.T) {
	f, posts, fused, _, _ := newFusionEnv()
	ctx := context.Background()
	base := time.Now().UTC().Add(-10 * time.Minute)

	posts.Store(ctx, marketPost("t1", "X", base, 100.0, 1000))
	posts.Store(ctx, marketPost("t1", "X", base.Add(4*time.Minute), 102.0, 1200))
	posts.Store(ctx, socialPost("t1", "X", "huge move coming on X", base.Add(3*time.Minute), 25))

	res, err := f.Run(ctx)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Processed != 3 {
		t.Fatalf("processed = %d", res.Processed)
	}

	events, _ := fused.Query(ctx, "t1", time.Time{}, time.Time{}, 0)
	if len(events) != 1 {
		t.Fatalf("fused events = %d, want 1", len(events))
	}
	ev := events[0]

	if ev.Domain != models.DomainFusion {
		t.Fatalf("domain = %s, want fusion", ev.Domain)
	}
	if len(ev.Evidence) != 3 {
		t.Fatalf("evidence = %d, want 3", len(ev.Evidence))
	}
	// 2% over 5 minutes breaches the 1% threshold, so the market leg
	// alone scores at least 50; the merged event may not score lower.
	if ev.Severity < 50 {
		t.Fatalf("severity = %d, want >= 50", ev.Severity)
	}
	if ev.Severity < 25 {
		t.Fatal("merged severity below a contributor's severity")
	}
	if ev.Confidence <= 0.5 {
		t.Fatalf("cross-domain corroboration should raise confidence, got %f", ev.Confidence)
	}
	if err := ev.Validate(DefaultFusionConfig().CorrelationWindow); err != nil {
		t.Fatalf("fused event invalid: %v", err)
	}
}

func TestLowSeveritySingletonsNotEmitted(t *testing.T) {
	f, posts, fused, _, _ := newFusionEnv()
	ctx := context.Background()

	posts.Store(ctx, socialPost("t1", "Y", "quiet post about Y", time.Now().UTC().Add(-time.Minute), 10))

	res, err := f.Run(ctx)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Fused != 0 {
		t.Fatalf("fused = %d, want 0", res.Fused)
	}
	events, _ := fused.Query(ctx, "t1", time.Time{}, time.Time{}, 0)
	if len(events) != 0 {
		t.Fatalf("events = %d", len(events))
	}
}

func TestHighSeveritySingletonEmitted(t *testing.T) {
	f, posts, fused, _, hourly := newFusionEnv()
	ctx := context.Background()

	posts.Store(ctx, socialPost("t1", "Z", "breaking: Z halted", time.Now().UTC().Add(-time.Minute), 80))

	res, err := f.Run(ctx)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Fused != 1 {
		t.Fatalf("fused = %d, want 1", res.Fused)
	}

	events, _ := fused.Query(ctx, "t1", time.Time{}, time.Time{}, 0)
	if events[0].Domain != models.DomainSocial {
		t.Fatalf("singleton domain = %s", events[0].Domain)
	}
	if events[0].Severity != 80 {
		t.Fatalf("severity = %d", events[0].Severity)
	}

	sum, _ := hourly.Summary(ctx, "t1", 1)
	if sum["t1:fused_events_created"] != 1 {
		t.Fatalf("hourly counters = %v", sum)
	}
}

func TestWatermarkAdvancesAndSuppressesReprocessing(t *testing.T) {
	f, posts, fused, wm, _ := newFusionEnv()
	ctx := context.Background()
	ts := time.Now().UTC().Add(-time.Minute)

	posts.Store(ctx, socialPost("t1", "Z", "breaking: Z halted", ts, 80))

	if _, err := f.Run(ctx); err != nil {
		t.Fatalf("first run: %v", err)
	}
	mark, _ := wm.Get(ctx, "t1")
	if !mark.Equal(ts) {
		t.Fatalf("watermark = %v, want %v", mark, ts)
	}

	res, err := f.Run(ctx)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if res.Processed != 0 || res.Fused != 0 {
		t.Fatalf("second run reprocessed: %+v", res)
	}
	events, _ := fused.Query(ctx, "t1", time.Time{}, time.Time{}, 0)
	if len(events) != 1 {
		t.Fatalf("events = %d, want 1", len(events))
	}
}

func TestWatchTermsRaiseSeverity(t *testing.T) {
	posts := &fakePostStore{}
	fused := &fakeFusedStore{}
	cfg := DefaultFusionConfig()
	cfg.WatchTerms = []string{"halted"}
	f := NewFusion(posts, fused, newFakeWatermarks(), newFakeMetrics(), newFakeHourly(), nil, cfg)
	ctx := context.Background()

	posts.Store(ctx, socialPost("t1", "Q", "trading halted on Q", time.Now().UTC().Add(-time.Minute), 20))

	if _, err := f.Run(ctx); err != nil {
		t.Fatalf("run: %v", err)
	}
	events, _ := fused.Query(ctx, "t1", time.Time{}, time.Time{}, 0)
	if len(events) != 1 {
		t.Fatalf("events = %d, want 1 (watch term bump should clear threshold)", len(events))
	}
	if events[0].Severity != 35 {
		t.Fatalf("severity = %d, want 35", events[0].Severity)
	}
}

func TestSeparateEntitiesDoNotMerge(t *testing.T) {
	f, posts, fused, _, _ := newFusionEnv()
	ctx := context.Background()
	ts := time.Now().UTC().Add(-time.Minute)

	posts.Store(ctx, socialPost("t1", "AAA", "breaking on AAA", ts, 60))
	posts.Store(ctx, socialPost("t1", "BBB", "breaking on BBB", ts.Add(time.Second), 60))

	if _, err := f.Run(ctx); err != nil {
		t.Fatalf("run: %v", err)
	}
	events, _ := fused.Query(ctx, "t1", time.Time{}, time.Time{}, 0)
	if len(events) != 2 {
		t.Fatalf("events = %d, want 2 separate", len(events))
	}
}

func TestFusionAlertDelivery(t *testing.T) {
	posts := &fakePostStore{}
	fused := &fakeFusedStore{}
	hourly := newFakeHourly()
	alerts := &fakeAlertPublisher{}
	f := NewFusion(posts, fused, newFakeWatermarks(), newFakeMetrics(), hourly, nil,
		DefaultFusionConfig(), WithAlertPublisher(alerts))
	ctx := context.Background()

	posts.Store(ctx, socialPost("t1", "Z", "breaking: Z halted", time.Now().UTC().Add(-time.Minute), 80))

	if _, err := f.Run(ctx); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(alerts.published) != 1 {
		t.Fatalf("published alerts = %d, want 1", len(alerts.published))
	}
	sum, _ := hourly.Summary(ctx, "t1", 1)
	if sum["t1:notifications_sent"] != 1 {
		t.Fatalf("notifications_sent = %d", sum["t1:notifications_sent"])
	}
}

func TestFusionAlertFailureDoesNotFailRun(t *testing.T) {
	posts := &fakePostStore{}
	fused := &fakeFusedStore{}
	hourly := newFakeHourly()
	alerts := &fakeAlertPublisher{err: errors.New("broker down")}
	f := NewFusion(posts, fused, newFakeWatermarks(), newFakeMetrics(), hourly, nil,
		DefaultFusionConfig(), WithAlertPublisher(alerts))
	ctx := context.Background()

	posts.Store(ctx, socialPost("t1", "Z", "breaking: Z halted", time.Now().UTC().Add(-time.Minute), 80))

	res, err := f.Run(ctx)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Fused != 1 {
		t.Fatalf("fused = %d, want 1", res.Fused)
	}
	sum, _ := hourly.Summary(ctx, "t1", 1)
	if sum["t1:notifications_sent"] != 0 {
		t.Fatalf("notifications_sent = %d, want 0", sum["t1:notifications_sent"])
	}
}
