package usecase

import (
	"testing"
	"time"

	"AlertFuse/internal/domain/models"
)

func TestNormalizeMarket(t *testing.T) {
	ts := time.Now().UTC()
	ev := &models.RawEvent{
		ID: "m1", Domain: models.DomainMarket, Source: "quote-stream", Timestamp: ts,
		Market: &models.MarketPayload{Symbol: "AAPL", Price: 231.5, Volume: 900},
	}
	job := &models.CollectJob{TenantID: "t1", SourceID: "s", Platform: "market"}

	p := Normalize(ev, job)
	if err := p.Validate(); err != nil {
		t.Fatalf("invalid post: %v", err)
	}
	if p.Price != 231.5 || p.Volume != 900 {
		t.Fatalf("tick numerics lost: %+v", p)
	}
	if len(p.Entities) != 1 || p.Entities[0].Value != "AAPL" {
		t.Fatalf("entities = %+v", p.Entities)
	}
	if p.DedupHash == "" {
		t.Fatal("dedup hash missing")
	}
}

func TestNormalizeSocialEngagementSeverity(t *testing.T) {
	ts := time.Now().UTC()
	mk := func(likes int64) *models.NormalizedPost {
		ev := &models.RawEvent{
			ID: "s1", Domain: models.DomainSocial, Source: "social-a", Timestamp: ts,
			Social: &models.SocialPayload{Author: "a", Text: "watch $TSLA\nsecond line", Likes: likes},
		}
		return Normalize(ev, &models.CollectJob{TenantID: "t1", SourceID: "s", Platform: "social"})
	}

	quiet := mk(5)
	viral := mk(50000)
	if viral.Severity <= quiet.Severity {
		t.Fatalf("viral %d should outrank quiet %d", viral.Severity, quiet.Severity)
	}
	if quiet.Title != "watch $TSLA" {
		t.Fatalf("title = %q, want first line only", quiet.Title)
	}
	if len(quiet.Entities) != 1 || quiet.Entities[0].Value != "TSLA" {
		t.Fatalf("entities = %+v", quiet.Entities)
	}
}

func TestExtractTickersDedupes(t *testing.T) {
	got := extractTickers("$AAPL dips while $MSFT and $AAPL diverge")
	if len(got) != 2 {
		t.Fatalf("entities = %+v", got)
	}
}

func TestWindowTrackerChangePct(t *testing.T) {
	w := NewWindowTracker(time.Hour)
	base := time.Now().UTC()

	w.Add("X", base, 100, 1000)
	w.Add("X", base.Add(4*time.Minute), 102, 1000)

	pct := w.ChangePct("X", 5*time.Minute, base.Add(4*time.Minute))
	if pct < 1.99 || pct > 2.01 {
		t.Fatalf("change = %f, want ~2", pct)
	}
	if pct := w.ChangePct("X", time.Minute, base.Add(4*time.Minute)); pct != 0 {
		t.Fatalf("one-minute window has no base tick, got %f", pct)
	}
	if pct := w.ChangePct("unknown", time.Minute, base); pct != 0 {
		t.Fatalf("unknown symbol = %f", pct)
	}
}

func TestWindowTrackerVolumeRatio(t *testing.T) {
	w := NewWindowTracker(time.Hour)
	base := time.Now().UTC()

	w.Add("X", base, 100, 1000)
	w.Add("X", base.Add(time.Minute), 100, 1000)
	w.Add("X", base.Add(2*time.Minute), 100, 6000)

	ratio := w.VolumeRatio("X", time.Hour, base.Add(2*time.Minute))
	if ratio < 5.9 || ratio > 6.1 {
		t.Fatalf("ratio = %f, want ~6", ratio)
	}
}
