package source

import (
	"context"
	"fmt"
	"time"

	"AlertFuse/internal/domain/models"
	apphttp "AlertFuse/pkg/http"
)

// NewsSource pulls headlines from a news API.
type NewsSource struct {
	name    string
	baseURL string
	f       *fetcher
	window  time.Duration
}

type NewsOption func(*NewsSource)

func WithNewsWindow(w time.Duration) NewsOption {
	return func(s *NewsSource) { s.window = w }
}

func WithNewsClient(c *apphttp.Client) NewsOption {
	return func(s *NewsSource) { s.f.client = c }
}

func NewNewsSource(name, baseURL, apiKey string, rps float64, opts ...NewsOption) *NewsSource {
	s := &NewsSource{
		name:    name,
		baseURL: baseURL,
		f:       newFetcher(apiKey, rps, 2, nil),
		window:  15 * time.Minute,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *NewsSource) Name() string          { return s.name }
func (s *NewsSource) Domain() models.Domain { return models.DomainNews }

type newsItem struct {
	ID        string `json:"id"`
	Headline  string `json:"headline"`
	URL       string `json:"url"`
	Body      string `json:"body"`
	Published string `json:"published_at"`
}

type newsResponse struct {
	Articles []newsItem `json:"articles"`
}

func (s *NewsSource) Fetch(ctx context.Context, job *models.CollectJob) ([]*models.RawEvent, error) {
	since := time.Now().Add(-s.window).UTC()

	var resp newsResponse
	err := s.f.getJSON(ctx, s.baseURL+"/v1/headlines", map[string][]string{
		"since":  {since.Format(time.RFC3339)},
		"source": {job.SourceID},
	}, &resp)
	if err != nil {
		return nil, err
	}

	events := make([]*models.RawEvent, 0, len(resp.Articles))
	for _, a := range resp.Articles {
		ts, err := time.Parse(time.RFC3339, a.Published)
		if err != nil {
			ts = time.Now().UTC()
		}
		if a.ID == "" {
			a.ID = fmt.Sprintf("%s:%d", s.name, ts.UnixNano())
		}
		events = append(events, &models.RawEvent{
			ID:        a.ID,
			Domain:    models.DomainNews,
			Source:    s.name,
			Timestamp: ts,
			News: &models.NewsPayload{
				Headline: a.Headline,
				URL:      a.URL,
				Body:     a.Body,
			},
		})
	}
	return events, nil
}
