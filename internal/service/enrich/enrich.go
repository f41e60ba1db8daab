package enrich

import (
	"context"
	"fmt"
	"time"

	"AlertFuse/internal/domain/models"
	"AlertFuse/internal/service/retry"
	"AlertFuse/internal/service/sanitize"
	"AlertFuse/pkg/cache"
	"AlertFuse/pkg/logger"
)

// Scores is what the enrichment provider returns for one text. Score
// uses the provider's 1-10 scale; models.SeverityFromTen converts it.
type Scores struct {
	Score      int             `json:"score"`
	Sentiment  float64         `json:"sentiment"`
	Keywords   []string        `json:"keywords"`
	Entities   []models.Entity `json:"entities"`
	Rationale  string          `json:"rationale,omitempty"`
	ImpactHint string          `json:"impact_hint,omitempty"`
}

// Provider analyzes one piece of text.
type Provider interface {
	Analyze(ctx context.Context, text string) (*Scores, error)
}

const cacheTTL = 6 * time.Hour

// Service wraps a Provider with sanitization, retries and caching.
// Callers treat any error as "provider unavailable" and fall back to
// heuristic scoring; enrichment never blocks the pipeline.
type Service struct {
	provider  Provider
	sanitizer *sanitize.Service
	cache     cache.Service
	log       *logger.Logger
	retryOpts retry.Options
}

type Option func(*Service)

// WithCache memoizes results per text hash so repeated posts do not
// re-bill the provider.
func WithCache(c cache.Service) Option {
	return func(s *Service) { s.cache = c }
}

func WithRetryOptions(opts retry.Options) Option {
	return func(s *Service) { s.retryOpts = opts }
}

func New(provider Provider, sanitizer *sanitize.Service, log *logger.Logger, opts ...Option) *Service {
	s := &Service{
		provider:  provider,
		sanitizer: sanitizer,
		log:       log,
		retryOpts: retry.DefaultOptions(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Enrich scores one post text.
func (s *Service) Enrich(ctx context.Context, text string) (*Scores, error) {
	in := s.sanitizer.SanitizeInput(text)

	load := func(ctx context.Context) (*Scores, error) {
		return retry.DoValue(ctx, s.retryOpts, func(ctx context.Context) (*Scores, error) {
			return s.provider.Analyze(ctx, in.Text)
		})
	}

	var (
		scores *Scores
		err    error
	)
	if s.cache != nil {
		key := "enrich:" + cache.HashKey(in.Text)
		scores, err = cache.GetOrLoad(ctx, s.cache, key, cacheTTL, load)
	} else {
		scores, err = load(ctx)
	}
	if err != nil {
		if s.log != nil {
			s.log.Warn("enrichment unavailable, caller falls back to heuristics",
				logger.Error(err))
		}
		return nil, err
	}

	s.scrub(scores)
	if err := validate(scores); err != nil {
		return nil, err
	}
	return scores, nil
}

// scrub runs every provider-written string through output
// sanitization before it can reach stored rationale or alerts.
func (s *Service) scrub(sc *Scores) {
	sc.Rationale = s.sanitizer.SanitizeOutput(sc.Rationale)
	sc.ImpactHint = s.sanitizer.SanitizeOutput(sc.ImpactHint)
	for i, kw := range sc.Keywords {
		sc.Keywords[i] = s.sanitizer.SanitizeOutput(kw)
	}
	for i := range sc.Entities {
		sc.Entities[i].Value = s.sanitizer.SanitizeOutput(sc.Entities[i].Value)
	}
}

func validate(sc *Scores) error {
	if sc.Score < 1 || sc.Score > 10 {
		return fmt.Errorf("enrichment score %d outside 1-10", sc.Score)
	}
	if sc.Sentiment < -1 || sc.Sentiment > 1 {
		return fmt.Errorf("enrichment sentiment %f outside -1..1", sc.Sentiment)
	}
	return nil
}
