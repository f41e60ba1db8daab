package source

import (
	"context"
	"encoding/xml"
	"fmt"
	"time"

	"AlertFuse/internal/domain/models"
	apphttp "AlertFuse/pkg/http"
)

// RSSSource polls an RSS feed and emits news-domain events.
type RSSSource struct {
	name    string
	feedURL string
	f       *fetcher
}

func NewRSSSource(name, feedURL string, rps float64) *RSSSource {
	return &RSSSource{
		name:    name,
		feedURL: feedURL,
		f:       newFetcher("", rps, 1, nil),
	}
}

// WithRSSClient overrides the HTTP client, used in tests.
func (s *RSSSource) WithRSSClient(c *apphttp.Client) *RSSSource {
	s.f.client = c
	return s
}

func (s *RSSSource) Name() string          { return s.name }
func (s *RSSSource) Domain() models.Domain { return models.DomainNews }

type rssFeed struct {
	XMLName xml.Name `xml:"rss"`
	Channel struct {
		Items []rssItem `xml:"item"`
	} `xml:"channel"`
}

type rssItem struct {
	Title       string `xml:"title"`
	Link        string `xml:"link"`
	Description string `xml:"description"`
	GUID        string `xml:"guid"`
	PubDate     string `xml:"pubDate"`
}

func (s *RSSSource) Fetch(ctx context.Context, _ *models.CollectJob) ([]*models.RawEvent, error) {
	body, err := s.f.getRaw(ctx, s.feedURL)
	if err != nil {
		return nil, err
	}

	var feed rssFeed
	if err := xml.Unmarshal(body, &feed); err != nil {
		return nil, fmt.Errorf("parse rss %s: %w", s.feedURL, err)
	}

	events := make([]*models.RawEvent, 0, len(feed.Channel.Items))
	for _, item := range feed.Channel.Items {
		if item.Title == "" {
			continue
		}
		ts := parsePubDate(item.PubDate)
		id := item.GUID
		if id == "" {
			id = item.Link
		}
		if id == "" {
			id = fmt.Sprintf("%s:%d", s.name, ts.UnixNano())
		}
		events = append(events, &models.RawEvent{
			ID:        id,
			Domain:    models.DomainNews,
			Source:    s.name,
			Timestamp: ts,
			News: &models.NewsPayload{
				Headline: item.Title,
				URL:      item.Link,
				Body:     item.Description,
			},
		})
	}
	return events, nil
}

func parsePubDate(v string) time.Time {
	for _, layout := range []string{time.RFC1123Z, time.RFC1123, time.RFC3339} {
		if t, err := time.Parse(layout, v); err == nil {
			return t.UTC()
		}
	}
	return time.Now().UTC()
}
