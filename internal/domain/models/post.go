package models

import (
	"fmt"
	"time"
)

// EntityType enumerates the entity kinds a post or fused event may reference.
type EntityType string

const (
	EntityTicker   EntityType = "ticker"
	EntityFund     EntityType = "fund"
	EntityFuture   EntityType = "future"
	EntityTopic    EntityType = "topic"
	EntityLocation EntityType = "location"
	EntityPerson   EntityType = "person"
	EntityOrg      EntityType = "org"
)

// Entity is owned by the post or fused event that lists it.
type Entity struct {
	Type       EntityType `json:"type"`
	Value      string     `json:"value"`
	Confidence float64    `json:"confidence,omitempty"`
}

// Engagement holds social interaction counters.
type Engagement struct {
	Likes    int64 `json:"likes"`
	Comments int64 `json:"comments"`
	Shares   int64 `json:"shares"`
	Views    int64 `json:"views"`
}

// NormalizedPost is the canonical shape after normalization. Produced by
// exactly one collector invocation; consumed by the fusion engine.
type NormalizedPost struct {
	PostKey    string     `json:"post_key"` // platform:source:id
	TenantID   string     `json:"tenant_id"`
	Domain     Domain     `json:"domain"`
	Source     string     `json:"source"`
	CreatedAt  time.Time  `json:"created_at"`
	Title      string     `json:"title"`
	Summary    string     `json:"summary,omitempty"`
	URL        string     `json:"url,omitempty"`
	Engagement Engagement `json:"engagement"`
	Price      float64    `json:"price,omitempty"`  // market domain only
	Volume     float64    `json:"volume,omitempty"` // market domain only
	Keywords   []string   `json:"keywords,omitempty"`
	Sentiment  float64    `json:"sentiment"` // -1..1
	Severity   int        `json:"severity"`  // canonical 0..100
	Entities   []Entity   `json:"entities,omitempty"`
	DedupHash  string     `json:"dedup_hash"`
}

// Validate checks the canonical shape before it enters the pipeline.
func (p *NormalizedPost) Validate() error {
	if p == nil {
		return fmt.Errorf("post is nil")
	}
	if p.PostKey == "" {
		return fmt.Errorf("post key is required")
	}
	if p.TenantID == "" {
		return fmt.Errorf("tenant id is required")
	}
	if p.CreatedAt.IsZero() {
		return fmt.Errorf("created_at is required")
	}
	if p.Severity < SeverityMin || p.Severity > SeverityMax {
		return fmt.Errorf("severity %d out of range [%d,%d]", p.Severity, SeverityMin, SeverityMax)
	}
	return nil
}

// PostKeyFor builds the canonical platform:source:id key.
func PostKeyFor(platform, source, id string) string {
	return platform + ":" + source + ":" + id
}
