package sources

import (
	"context"
	"sync"
	"time"

	"github.com/refhub/citation-service/internal/domain"
)

// SearchOutcome holds the result of a search against one source. Records and
// Err are mutually exclusive.
type SearchOutcome struct {
	Source   domain.SourceType
	Records  []domain.Record
	Err      error
	Duration time.Duration
}

// Registry manages the configured sources and coordinates fan-out searches.
// Registration and retrieval are thread-safe.
type Registry struct {
	mu      sync.RWMutex
	sources map[domain.SourceType]Source
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{sources: make(map[domain.SourceType]Source)}
}

// Register adds a source, replacing any existing source of the same type.
func (r *Registry) Register(source Source) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sources[source.SourceType()] = source
}

// Get returns a source by type, or nil if not registered.
func (r *Registry) Get(sourceType domain.SourceType) Source {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sources[sourceType]
}

// Enabled returns a snapshot of all enabled sources.
func (r *Registry) Enabled() []Source {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Source, 0, len(r.sources))
	for _, s := range r.sources {
		if s.IsEnabled() {
			out = append(out, s)
		}
	}
	return out
}

// Ordered returns the enabled sources matching the given type order,
// skipping types that are not registered or disabled. The verification
// orchestrator uses this to query adapters in identifier-derived priority
// order.
func (r *Registry) Ordered(order []domain.SourceType) []Source {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Source, 0, len(order))
	for _, st := range order {
		if s, ok := r.sources[st]; ok && s.IsEnabled() {
			out = append(out, s)
		}
	}
	return out
}

// SearchAll queries every enabled source concurrently with parallelism
// bounded by maxParallel (values below 1 mean unbounded). Per-source errors
// are reported in the outcome, never propagated: a failing authority must
// not sink the whole fan-out.
func (r *Registry) SearchAll(ctx context.Context, query domain.StructuredQuery, maxParallel int) []SearchOutcome {
	enabled := r.Enabled()
	if len(enabled) == 0 {
		return nil
	}

	var sem chan struct{}
	if maxParallel > 0 {
		sem = make(chan struct{}, maxParallel)
	}

	outcomes := make([]SearchOutcome, len(enabled))
	var wg sync.WaitGroup
	for i, s := range enabled {
		wg.Add(1)
		go func(i int, s Source) {
			defer wg.Done()
			if sem != nil {
				select {
				case sem <- struct{}{}:
					defer func() { <-sem }()
				case <-ctx.Done():
					outcomes[i] = SearchOutcome{Source: s.SourceType(), Err: ctx.Err()}
					return
				}
			}

			start := time.Now()
			records, err := s.Search(ctx, query)
			outcomes[i] = SearchOutcome{
				Source:   s.SourceType(),
				Records:  records,
				Err:      err,
				Duration: time.Since(start),
			}
		}(i, s)
	}
	wg.Wait()

	return outcomes
}
