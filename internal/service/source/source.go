package source

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"AlertFuse/internal/domain/models"
)

// Source fetches raw events from one external provider. Implementations
// are selected through the Registry by the job's platform field, one
// implementation per enumerated platform.
type Source interface {
	Name() string
	Domain() models.Domain
	Fetch(ctx context.Context, job *models.CollectJob) ([]*models.RawEvent, error)
}

// Registry maps platform names to sources. Registration is explicit at
// wiring time; an unknown platform is a terminal job error, not a
// fallback.
type Registry struct {
	mu      sync.RWMutex
	sources map[string]Source
}

func NewRegistry() *Registry {
	return &Registry{sources: make(map[string]Source)}
}

func (r *Registry) Register(platform string, s Source) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.sources[platform]; dup {
		return fmt.Errorf("source for platform %q already registered", platform)
	}
	r.sources[platform] = s
	return nil
}

func (r *Registry) Lookup(platform string) (Source, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sources[platform]
	if !ok {
		return nil, fmt.Errorf("no source registered for platform %q", platform)
	}
	return s, nil
}

// Platforms lists registered platforms, sorted for stable output.
func (r *Registry) Platforms() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.sources))
	for p := range r.sources {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}
