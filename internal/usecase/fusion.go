package usecase

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"AlertFuse/internal/domain/models"
	"AlertFuse/internal/domain/repository"
	"AlertFuse/pkg/logger"
)

// FusionConfig tunes the correlation pass.
type FusionConfig struct {
	CorrelationWindow time.Duration
	Lookback          time.Duration
	MaxPostsPerRun    int
	MinSeverity       int

	// Percentage price change thresholds per window.
	OneMinChangePct  float64
	FiveMinChangePct float64
	HourChangePct    float64
	VolumeSpikeRatio float64

	WatchTerms []string
}

func DefaultFusionConfig() FusionConfig {
	return FusionConfig{
		CorrelationWindow: 5 * time.Minute,
		Lookback:          24 * time.Hour,
		MaxPostsPerRun:    2000,
		MinSeverity:       30,
		OneMinChangePct:   0.5,
		FiveMinChangePct:  1.0,
		HourChangePct:     3.0,
		VolumeSpikeRatio:  5.0,
	}
}

// FusionResult is the trigger endpoint's success payload.
type FusionResult struct {
	Processed int `json:"processed"`
	Fused     int `json:"fused"`
	Errors    int `json:"errors"`
}

// candidate is a post with its fusion-adjusted severity.
type candidate struct {
	post     *models.NormalizedPost
	severity int
}

// Fusion correlates normalized posts from all domains into ranked,
// evidenced fused events. One Run processes each tenant's posts since
// its watermark.
type Fusion struct {
	posts      repository.PostStore
	fused      repository.FusedStore
	watermarks repository.Watermarks
	metrics    repository.Metrics
	hourly     repository.HourlyMetrics
	alerts     repository.AlertPublisher
	windows    *WindowTracker
	log        *logger.Logger
	cfg        FusionConfig
	now        func() time.Time
}

type FusionOption func(*Fusion)

// WithAlertPublisher enables outward delivery of fused events. Delivery
// failures degrade to a warning; the fusion pass itself still succeeds.
func WithAlertPublisher(p repository.AlertPublisher) FusionOption {
	return func(f *Fusion) { f.alerts = p }
}

func NewFusion(
	posts repository.PostStore,
	fusedStore repository.FusedStore,
	watermarks repository.Watermarks,
	metrics repository.Metrics,
	hourly repository.HourlyMetrics,
	log *logger.Logger,
	cfg FusionConfig,
	opts ...FusionOption,
) *Fusion {
	if cfg.CorrelationWindow <= 0 {
		cfg = DefaultFusionConfig()
	}
	f := &Fusion{
		posts:      posts,
		fused:      fusedStore,
		watermarks: watermarks,
		metrics:    metrics,
		hourly:     hourly,
		windows:    NewWindowTracker(time.Hour),
		log:        log,
		cfg:        cfg,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Run executes one fusion tick across all active tenants. Per-tenant
// failures are counted and logged; they never abort the whole run.
func (f *Fusion) Run(ctx context.Context) (*FusionResult, error) {
	started := f.now()
	res := &FusionResult{}

	tenants, err := f.posts.Tenants(ctx, started.Add(-f.cfg.Lookback))
	if err != nil {
		return nil, err
	}

	for _, tenant := range tenants {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		if err := f.runTenant(ctx, tenant, res); err != nil {
			res.Errors++
			f.metrics.RecordError("fusion")
			if f.log != nil {
				f.log.Error("fusion tenant pass failed",
					logger.String("tenant", tenant),
					logger.Error(err))
			}
		}
	}

	f.metrics.RecordRun("fusion")
	f.metrics.RecordLatency("fusion", time.Since(started).Seconds())
	return res, nil
}

func (f *Fusion) runTenant(ctx context.Context, tenant string, res *FusionResult) error {
	wm, err := f.watermarks.Get(ctx, tenant)
	if err != nil {
		return err
	}
	if wm.IsZero() {
		wm = f.now().Add(-f.cfg.Lookback)
	}

	posts, err := f.posts.ListSince(ctx, tenant, wm, f.cfg.MaxPostsPerRun)
	if err != nil {
		return err
	}
	if len(posts) == 0 {
		return nil
	}
	res.Processed += len(posts)

	candidates := f.score(posts)
	events := f.correlate(tenant, candidates)

	if len(events) > 0 {
		if err := f.fused.StoreBatch(ctx, events); err != nil {
			return err
		}
		res.Fused += len(events)
		if f.hourly != nil {
			_ = f.hourly.Incr(ctx, tenant, repository.MetricFusedCreated, int64(len(events)))
		}
		f.notify(ctx, tenant, events)
	}

	// Advance only after a successful persist so a failed run replays.
	maxCreated := wm
	for _, p := range posts {
		if p.CreatedAt.After(maxCreated) {
			maxCreated = p.CreatedAt
		}
	}
	return f.watermarks.Set(ctx, tenant, maxCreated)
}

// notify pushes freshly fused events to the alert channel when one is
// configured. A delivery failure never fails the tenant pass.
func (f *Fusion) notify(ctx context.Context, tenant string, events []*models.FusedEvent) {
	if f.alerts == nil || len(events) == 0 {
		return
	}
	if err := f.alerts.PublishAlerts(ctx, events); err != nil {
		f.metrics.RecordError("alert_publish")
		if f.log != nil {
			f.log.Warn("alert delivery failed",
				logger.String("tenant", tenant),
				logger.Int("events", len(events)),
				logger.Error(err))
		}
		return
	}
	if f.hourly != nil {
		_ = f.hourly.Incr(ctx, tenant, repository.MetricNotificationsSent, int64(len(events)))
	}
}

// score feeds market ticks into the rolling windows and computes each
// candidate's fusion severity: the stored (enriched or baseline) score
// raised by deterministic heuristics.
func (f *Fusion) score(posts []*models.NormalizedPost) []candidate {
	out := make([]candidate, 0, len(posts))
	for _, p := range posts {
		sev := p.Severity

		if p.Domain == models.DomainMarket && p.Price > 0 {
			sym := marketSymbol(p)
			f.windows.Add(sym, p.CreatedAt, p.Price, p.Volume)

			if h := f.marketSeverity(sym, p.CreatedAt); h > sev {
				sev = h
			}
		}

		if f.matchesWatchTerms(p) {
			sev = models.ClampSeverity(sev + 15)
		}

		out = append(out, candidate{post: p, severity: sev})
	}
	return out
}

// marketSeverity maps window moves onto the canonical scale. Stronger
// moves over shorter windows rank higher.
func (f *Fusion) marketSeverity(symbol string, now time.Time) int {
	sev := 0
	if pct := abs(f.windows.ChangePct(symbol, time.Minute, now)); pct >= f.cfg.OneMinChangePct {
		sev = max(sev, scaleBreach(pct, f.cfg.OneMinChangePct, 60))
	}
	if pct := abs(f.windows.ChangePct(symbol, 5*time.Minute, now)); pct >= f.cfg.FiveMinChangePct {
		sev = max(sev, scaleBreach(pct, f.cfg.FiveMinChangePct, 50))
	}
	if pct := abs(f.windows.ChangePct(symbol, time.Hour, now)); pct >= f.cfg.HourChangePct {
		sev = max(sev, scaleBreach(pct, f.cfg.HourChangePct, 40))
	}
	if ratio := f.windows.VolumeRatio(symbol, time.Hour, now); ratio >= f.cfg.VolumeSpikeRatio {
		sev = max(sev, 45)
	}
	return models.ClampSeverity(sev)
}

// scaleBreach grows severity with the multiple of the threshold, from
// floor at 1x to the cap at 3x and beyond.
func scaleBreach(pct, threshold float64, floor int) int {
	multiple := pct / threshold
	bonus := int((multiple - 1) * 20)
	if bonus > 40 {
		bonus = 40
	}
	return floor + bonus
}

func (f *Fusion) matchesWatchTerms(p *models.NormalizedPost) bool {
	if len(f.cfg.WatchTerms) == 0 {
		return false
	}
	text := strings.ToLower(p.Title + " " + p.Summary)
	for _, term := range f.cfg.WatchTerms {
		if strings.Contains(text, strings.ToLower(term)) {
			return true
		}
	}
	for _, e := range p.Entities {
		for _, term := range f.cfg.WatchTerms {
			if strings.EqualFold(e.Value, term) {
				return true
			}
		}
	}
	return false
}

// correlate merges candidates sharing an entity within the correlation
// window into one fused event. Unmerged candidates become singleton
// events when they clear MinSeverity.
func (f *Fusion) correlate(tenant string, candidates []candidate) []*models.FusedEvent {
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].post.CreatedAt.Before(candidates[j].post.CreatedAt)
	})

	grouped := make([]bool, len(candidates))
	var events []*models.FusedEvent

	for i := range candidates {
		if grouped[i] {
			continue
		}
		group := []int{i}
		grouped[i] = true

		for j := i + 1; j < len(candidates); j++ {
			if grouped[j] {
				continue
			}
			dt := candidates[j].post.CreatedAt.Sub(candidates[i].post.CreatedAt)
			if dt > f.cfg.CorrelationWindow {
				break
			}
			if sharesEntity(candidates[i].post, candidates[j].post) {
				group = append(group, j)
				grouped[j] = true
			}
		}

		ev := f.merge(tenant, candidates, group)
		if len(group) > 1 || ev.Severity >= f.cfg.MinSeverity {
			events = append(events, ev)
		}
	}
	return events
}

// merge builds one fused event from a group of candidate indexes.
// Severity is at least the max of the contributors; corroboration
// across domains raises confidence, never lowers severity.
func (f *Fusion) merge(tenant string, candidates []candidate, group []int) *models.FusedEvent {
	ev := &models.FusedEvent{
		ID:       uuid.NewString(),
		TenantID: tenant,
	}

	domains := make(map[models.Domain]bool)
	var sentimentSum float64
	var latest time.Time

	for _, idx := range group {
		c := candidates[idx]
		p := c.post

		if c.severity > ev.Severity {
			ev.Severity = c.severity
		}
		domains[p.Domain] = true
		sentimentSum += p.Sentiment
		if p.CreatedAt.After(latest) {
			latest = p.CreatedAt
		}

		for _, kw := range p.Keywords {
			ev.Keywords = appendUnique(ev.Keywords, kw)
		}
		ev.Entities = mergeEntities(ev.Entities, p.Entities)
		ev.Evidence = append(ev.Evidence, models.Evidence{
			Source: p.Source,
			Title:  p.Title,
			TS:     p.CreatedAt,
			URL:    p.URL,
		})
	}

	ev.TS = latest
	ev.Sentiment = sentimentSum / float64(len(group))

	if len(domains) > 1 {
		ev.Domain = models.DomainFusion
	} else {
		for d := range domains {
			ev.Domain = d
		}
	}

	// One domain starts at 0.5; each corroborating domain adds 0.2.
	ev.Confidence = 0.5 + 0.2*float64(len(domains)-1)
	if ev.Confidence > 0.95 {
		ev.Confidence = 0.95
	}
	return ev
}

func sharesEntity(a, b *models.NormalizedPost) bool {
	for _, ea := range a.Entities {
		for _, eb := range b.Entities {
			if strings.EqualFold(ea.Value, eb.Value) {
				return true
			}
		}
	}
	for _, ka := range a.Keywords {
		for _, kb := range b.Keywords {
			if strings.EqualFold(ka, kb) {
				return true
			}
		}
	}
	return false
}

func marketSymbol(p *models.NormalizedPost) string {
	for _, e := range p.Entities {
		if e.Type == models.EntityTicker {
			return e.Value
		}
	}
	return p.Source
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
