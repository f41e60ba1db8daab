package models

import (
	"fmt"
	"time"
)

// Domain identifies the source domain of an event.
type Domain string

const (
	DomainMarket Domain = "market"
	DomainNews   Domain = "news"
	DomainSocial Domain = "social"
	DomainFusion Domain = "fusion"
	DomainAlert  Domain = "alert"
)

// SourceDomains are the domains collectors can emit. Fusion and alert are
// produced downstream and never appear on a RawEvent.
var SourceDomains = []Domain{DomainMarket, DomainNews, DomainSocial}

// RawEvent is the immutable unit emitted by a collector. It is a closed
// tagged union: exactly one payload pointer is set and it must match Domain.
type RawEvent struct {
	ID        string         `json:"id"`
	Domain    Domain         `json:"domain"`
	Source    string         `json:"source"`
	Timestamp time.Time      `json:"ts"`
	Market    *MarketPayload `json:"market,omitempty"`
	News      *NewsPayload   `json:"news,omitempty"`
	Social    *SocialPayload `json:"social,omitempty"`
}

// MarketPayload carries a price/quote tick.
type MarketPayload struct {
	Symbol string  `json:"symbol"`
	Price  float64 `json:"price"`
	Volume float64 `json:"volume"`
}

// NewsPayload carries a headline.
type NewsPayload struct {
	Headline string `json:"headline"`
	URL      string `json:"url"`
	Body     string `json:"body,omitempty"`
}

// SocialPayload carries a post with engagement counters.
type SocialPayload struct {
	Author   string `json:"author"`
	Text     string `json:"text"`
	Likes    int64  `json:"likes"`
	Comments int64  `json:"comments"`
	Shares   int64  `json:"shares"`
	Views    int64  `json:"views"`
}

// Validate enforces the closed-union shape at the ingestion boundary.
func (e *RawEvent) Validate() error {
	if e == nil {
		return fmt.Errorf("event is nil")
	}
	if e.ID == "" {
		return fmt.Errorf("event id is required")
	}
	if e.Source == "" {
		return fmt.Errorf("event source is required")
	}
	if e.Timestamp.IsZero() {
		return fmt.Errorf("event timestamp is required")
	}

	set := 0
	if e.Market != nil {
		set++
	}
	if e.News != nil {
		set++
	}
	if e.Social != nil {
		set++
	}
	if set != 1 {
		return fmt.Errorf("event must carry exactly one payload, got %d", set)
	}

	switch e.Domain {
	case DomainMarket:
		if e.Market == nil {
			return fmt.Errorf("market event missing market payload")
		}
		if e.Market.Symbol == "" {
			return fmt.Errorf("market event missing symbol")
		}
		if e.Market.Price < 0 || e.Market.Volume < 0 {
			return fmt.Errorf("market event has negative price/volume")
		}
	case DomainNews:
		if e.News == nil {
			return fmt.Errorf("news event missing news payload")
		}
		if e.News.Headline == "" {
			return fmt.Errorf("news event missing headline")
		}
	case DomainSocial:
		if e.Social == nil {
			return fmt.Errorf("social event missing social payload")
		}
		if e.Social.Text == "" {
			return fmt.Errorf("social event missing text")
		}
	default:
		return fmt.Errorf("unknown source domain: %s", e.Domain)
	}
	return nil
}

// Text returns the human-readable content of the event for enrichment.
func (e *RawEvent) Text() string {
	switch {
	case e.News != nil:
		return e.News.Headline
	case e.Social != nil:
		return e.Social.Text
	case e.Market != nil:
		return e.Market.Symbol
	}
	return ""
}
