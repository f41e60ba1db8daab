package source

import (
	"context"
	"time"

	"AlertFuse/internal/domain/models"
	apphttp "AlertFuse/pkg/http"
)

// SocialSource pulls posts from a social platform API.
type SocialSource struct {
	name    string
	baseURL string
	f       *fetcher
	window  time.Duration
}

type SocialOption func(*SocialSource)

func WithSocialWindow(w time.Duration) SocialOption {
	return func(s *SocialSource) { s.window = w }
}

func WithSocialClient(c *apphttp.Client) SocialOption {
	return func(s *SocialSource) { s.f.client = c }
}

func NewSocialSource(name, baseURL, apiKey string, rps float64, opts ...SocialOption) *SocialSource {
	s := &SocialSource{
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

func (s *SocialSource) Name() string          { return s.name }
func (s *SocialSource) Domain() models.Domain { return models.DomainSocial }

type socialItem struct {
	ID        string `json:"id"`
	Author    string `json:"author"`
	Text      string `json:"text"`
	Likes     int64  `json:"likes"`
	Comments  int64  `json:"comments"`
	Shares    int64  `json:"shares"`
	Views     int64  `json:"views"`
	CreatedAt string `json:"created_at"`
}

type socialResponse struct {
	Posts []socialItem `json:"posts"`
}

func (s *SocialSource) Fetch(ctx context.Context, job *models.CollectJob) ([]*models.RawEvent, error) {
	since := time.Now().Add(-s.window).UTC()

	var resp socialResponse
	err := s.f.getJSON(ctx, s.baseURL+"/v1/posts", map[string][]string{
		"since": {since.Format(time.RFC3339)},
		"feed":  {job.SourceID},
	}, &resp)
	if err != nil {
		return nil, err
	}

	events := make([]*models.RawEvent, 0, len(resp.Posts))
	for _, p := range resp.Posts {
		if p.ID == "" || p.Text == "" {
			continue
		}
		ts, err := time.Parse(time.RFC3339, p.CreatedAt)
		if err != nil {
			ts = time.Now().UTC()
		}
		events = append(events, &models.RawEvent{
			ID:        p.ID,
			Domain:    models.DomainSocial,
			Source:    s.name,
			Timestamp: ts,
			Social: &models.SocialPayload{
				Author:   p.Author,
				Text:     p.Text,
				Likes:    p.Likes,
				Comments: p.Comments,
				Shares:   p.Shares,
				Views:    p.Views,
			},
		})
	}
	return events, nil
}
