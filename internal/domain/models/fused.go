package models

import (
	"fmt"
	"time"
)

// Severity is carried on a canonical 0..100 scale everywhere in the
// pipeline. The enrichment provider scores on 1..10 and is converted
// through SeverityFromTen at the provider boundary.
const (
	SeverityMin = 0
	SeverityMax = 100
)

// ClampSeverity bounds a raw score to the canonical scale.
func ClampSeverity(n int) int {
	if n < SeverityMin {
		return SeverityMin
	}
	if n > SeverityMax {
		return SeverityMax
	}
	return n
}

// SeverityFromTen converts a 1..10 provider score to the canonical scale.
func SeverityFromTen(n int) int {
	return ClampSeverity(n * 10)
}

// Evidence references one contributing source item inside a fused event.
type Evidence struct {
	Source string    `json:"source"`
	Title  string    `json:"title"`
	TS     time.Time `json:"ts"`
	URL    string    `json:"url,omitempty"`
}

// FusedEvent is the externally visible unit of intelligence. It is
// append-only: never mutated after creation.
type FusedEvent struct {
	ID         string    `json:"id"`
	TS         time.Time `json:"ts"`
	TenantID   string    `json:"tenant_id"`
	Domain     Domain    `json:"domain"`
	Severity   int       `json:"severity"`
	Sentiment  float64   `json:"sentiment"`
	Keywords   []string  `json:"keywords,omitempty"`
	Entities   []Entity  `json:"entities,omitempty"`
	Evidence   []Evidence `json:"evidence"`
	Confidence float64   `json:"confidence"` // 0..1
	Rationale  string    `json:"rationale,omitempty"`
	ImpactHint string    `json:"impact_hint,omitempty"`
}

// Validate enforces the fused-event invariants: evidence is non-empty and
// every evidence timestamp lies within window of the event timestamp.
func (f *FusedEvent) Validate(window time.Duration) error {
	if f == nil {
		return fmt.Errorf("fused event is nil")
	}
	if f.ID == "" {
		return fmt.Errorf("fused event id is required")
	}
	if f.TenantID == "" {
		return fmt.Errorf("fused event tenant id is required")
	}
	if len(f.Evidence) == 0 {
		return fmt.Errorf("fused event has no evidence")
	}
	if f.Severity < SeverityMin || f.Severity > SeverityMax {
		return fmt.Errorf("severity %d out of range", f.Severity)
	}
	if f.Confidence < 0 || f.Confidence > 1 {
		return fmt.Errorf("confidence %f out of range", f.Confidence)
	}
	for _, ev := range f.Evidence {
		d := f.TS.Sub(ev.TS)
		if d < 0 {
			d = -d
		}
		if d > window {
			return fmt.Errorf("evidence %q outside correlation window", ev.Title)
		}
	}
	return nil
}
