package usecase

import (
	"fmt"
	"regexp"
	"strings"

	"AlertFuse/internal/domain/models"
	"AlertFuse/internal/service/idempotency"
)

var tickerPattern = regexp.MustCompile(`\$([A-Z]{1,6})\b`)

// Normalize maps a validated raw event onto the canonical post shape.
// Severity here is a deterministic baseline; enrichment and fusion
// raise it later.
func Normalize(ev *models.RawEvent, job *models.CollectJob) *models.NormalizedPost {
	post := &models.NormalizedPost{
		PostKey:   models.PostKeyFor(job.Platform, ev.Source, ev.ID),
		TenantID:  job.TenantID,
		Domain:    ev.Domain,
		Source:    ev.Source,
		CreatedAt: ev.Timestamp,
		Severity:  baseSeverity(ev),
	}

	switch ev.Domain {
	case models.DomainMarket:
		m := ev.Market
		post.Title = fmt.Sprintf("%s tick %.4f", m.Symbol, m.Price)
		post.Price = m.Price
		post.Volume = m.Volume
		post.Entities = append(post.Entities, models.Entity{
			Type: models.EntityTicker, Value: m.Symbol, Confidence: 1,
		})
		post.Keywords = append(post.Keywords, m.Symbol)
	case models.DomainNews:
		n := ev.News
		post.Title = n.Headline
		post.Summary = n.Body
		post.URL = n.URL
		post.Entities = extractTickers(n.Headline + " " + n.Body)
	case models.DomainSocial:
		s := ev.Social
		post.Title = firstLine(s.Text)
		post.Summary = s.Text
		post.Engagement = models.Engagement{
			Likes: s.Likes, Comments: s.Comments, Shares: s.Shares, Views: s.Views,
		}
		post.Entities = extractTickers(s.Text)
	}

	for _, e := range post.Entities {
		post.Keywords = appendUnique(post.Keywords, e.Value)
	}

	post.DedupHash, _ = idempotency.KeyFromPayload(struct {
		Source string `json:"source"`
		Title  string `json:"title"`
	}{ev.Source, post.Title})

	return post
}

// baseSeverity is the heuristic floor before enrichment or fusion.
// Market ticks start at the bottom; what makes them interesting is a
// window move, which only fusion can see.
func baseSeverity(ev *models.RawEvent) int {
	switch ev.Domain {
	case models.DomainMarket:
		return 5
	case models.DomainNews:
		return 20
	case models.DomainSocial:
		s := ev.Social
		score := 10
		engagement := s.Likes + s.Comments*2 + s.Shares*3
		switch {
		case engagement > 10000:
			score = 40
		case engagement > 1000:
			score = 25
		case engagement > 100:
			score = 15
		}
		return score
	default:
		return 0
	}
}

func extractTickers(text string) []models.Entity {
	var out []models.Entity
	seen := make(map[string]bool)
	for _, m := range tickerPattern.FindAllStringSubmatch(text, -1) {
		sym := m[1]
		if seen[sym] {
			continue
		}
		seen[sym] = true
		out = append(out, models.Entity{Type: models.EntityTicker, Value: sym, Confidence: 0.8})
	}
	return out
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	if len(s) > 140 {
		s = s[:140]
	}
	return strings.TrimSpace(s)
}

func appendUnique(list []string, v string) []string {
	for _, item := range list {
		if strings.EqualFold(item, v) {
			return list
		}
	}
	return append(list, v)
}
