// Package verify implements the citation verification orchestrator: free
// text in, a verified canonical record or a failed result with suggestions
// out. One verification moves through parsing, a cache check, a
// priority-ordered sequential source lookup, scoring, and resolution.
package verify

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/refhub/citation-service/internal/cache"
	"github.com/refhub/citation-service/internal/citeparse"
	"github.com/refhub/citation-service/internal/domain"
	"github.com/refhub/citation-service/internal/observability"
	"github.com/refhub/citation-service/internal/repository"
	"github.com/refhub/citation-service/internal/scoring"
	"github.com/refhub/citation-service/internal/sources"
)

// Default orchestrator settings.
const (
	// DefaultSourceTimeout bounds each individual source lookup.
	DefaultSourceTimeout = 15 * time.Second

	// DefaultEarlyExitScore is the provisional match score at which the
	// remaining sources are skipped.
	DefaultEarlyExitScore = 0.9
)

// Config holds orchestrator settings.
type Config struct {
	// SourceTimeout is the per-source timeout during the sequential lookup.
	SourceTimeout time.Duration

	// EarlyExitScore is the provisional score that stops the lookup early.
	EarlyExitScore float64

	// CacheTTL is how long verified results stay cached.
	CacheTTL time.Duration
}

func (c *Config) applyDefaults() {
	if c.SourceTimeout == 0 {
		c.SourceTimeout = DefaultSourceTimeout
	}
	if c.EarlyExitScore == 0 {
		c.EarlyExitScore = DefaultEarlyExitScore
	}
	if c.CacheTTL == 0 {
		c.CacheTTL = cache.VerificationTTL
	}
}

// Orchestrator resolves free-text citations against bibliographic sources.
type Orchestrator struct {
	config   Config
	registry *sources.Registry
	cache    cache.Cache
	repo     repository.CitationRepository
	logger   zerolog.Logger
	metrics  *observability.Metrics
}

// NewOrchestrator creates a verification orchestrator.
func NewOrchestrator(
	cfg Config,
	registry *sources.Registry,
	resolutionCache cache.Cache,
	repo repository.CitationRepository,
	logger zerolog.Logger,
	metrics *observability.Metrics,
) *Orchestrator {
	cfg.applyDefaults()
	return &Orchestrator{
		config:   cfg,
		registry: registry,
		cache:    resolutionCache,
		repo:     repo,
		logger:   logger.With().Str("component", "verify").Logger(),
		metrics:  metrics,
	}
}

// Verify resolves one free-text citation. It never returns an error for
// ordinary "could not verify" outcomes; those are failed results. When
// correlationID is non-empty the result is also published under the
// correlation-scoped batch key for later polling.
func (o *Orchestrator) Verify(ctx context.Context, rawText, correlationID string) *domain.VerificationResult {
	start := time.Now()
	query := citeparse.Parse(rawText)

	result := o.resolve(ctx, query)
	result.ElapsedMS = time.Since(start).Milliseconds()

	if correlationID != "" {
		o.publishBatchResult(ctx, correlationID, query, result)
	}

	o.metrics.RecordVerification(string(result.Status), time.Since(start).Seconds())
	o.logger.Info().
		Str("status", string(result.Status)).
		Str("source", result.Source).
		Float64("confidence", result.Confidence).
		Strs("sources_queried", result.SourcesQueried).
		Int64("elapsed_ms", result.ElapsedMS).
		Msg("verification completed")

	return result
}

// GetQueuedResult polls for the batch verification result of rawText under
// the given correlation ID. Returns nil when the result is not ready yet.
func (o *Orchestrator) GetQueuedResult(ctx context.Context, rawText, correlationID string) (*domain.VerificationResult, error) {
	query := citeparse.Parse(rawText)
	key := cache.BatchResultKey(correlationID, query)

	payload, err := o.cache.Get(ctx, key)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			o.metrics.RecordCacheLookup("batch", false)
			return nil, nil
		}
		return nil, err
	}

	var result domain.VerificationResult
	if err := json.Unmarshal(payload, &result); err != nil {
		return nil, err
	}
	o.metrics.RecordCacheLookup("batch", true)
	return &result, nil
}

// resolve runs the core state machine for one parsed query.
func (o *Orchestrator) resolve(ctx context.Context, query domain.StructuredQuery) *domain.VerificationResult {
	if query.IsEmpty() {
		return &domain.VerificationResult{
			Status:        domain.VerificationStatusFailed,
			FailureReason: domain.FailureReasonInsufficientData,
		}
	}

	if cached := o.checkCache(ctx, query); cached != nil {
		return cached
	}

	best, suggestions, queried := o.search(ctx, query)

	threshold := scoring.Threshold(query)
	if best != nil && best.Confidence >= threshold {
		o.persist(ctx, query, best)
		return &domain.VerificationResult{
			Status:         domain.VerificationStatusVerified,
			Record:         &best.Record,
			Confidence:     best.Confidence,
			Source:         best.Source,
			SourcesQueried: queried,
		}
	}

	top := topSuggestions(suggestions)
	o.metrics.VerificationSuggestions.Observe(float64(len(top)))
	return &domain.VerificationResult{
		Status:         domain.VerificationStatusFailed,
		FailureReason:  domain.FailureReasonNoConfidentMatch,
		Suggestions:    top,
		SourcesQueried: queried,
	}
}

// checkCache serves a previously verified citation without touching any
// source. A hit is authoritative: confidence 1.0, source "cache".
func (o *Orchestrator) checkCache(ctx context.Context, query domain.StructuredQuery) *domain.VerificationResult {
	key := cache.VerificationKey(query)
	if key == "verify:" {
		return nil
	}

	payload, err := o.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			o.logger.Warn().Err(err).Msg("cache lookup failed, continuing with source search")
		}
		o.metrics.RecordCacheLookup("verification", false)
		return nil
	}

	var record domain.Record
	if err := json.Unmarshal(payload, &record); err != nil {
		o.logger.Warn().Err(err).Msg("discarding undecodable cache entry")
		o.metrics.RecordCacheLookup("verification", false)
		return nil
	}

	o.metrics.RecordCacheLookup("verification", true)
	return &domain.VerificationResult{
		Status:     domain.VerificationStatusVerified,
		Record:     &record,
		Confidence: 1.0,
		Source:     domain.SourceCache,
	}
}

// search walks the priority-ordered sources sequentially, scoring every
// candidate. Source failures are logged and treated as zero results. The
// walk stops early once a candidate clears the early-exit score.
func (o *Orchestrator) search(ctx context.Context, query domain.StructuredQuery) (best *domain.ScoredCandidate, all []domain.ScoredCandidate, queried []string) {
	for _, src := range o.registry.Ordered(SourceOrder(query)) {
		srcStart := time.Now()
		srcCtx, cancel := context.WithTimeout(ctx, o.config.SourceTimeout)
		records, err := src.Search(srcCtx, query)
		cancel()

		queried = append(queried, src.Name())
		o.metrics.RecordSourceRequest(string(src.SourceType()), time.Since(srcStart).Seconds(), err)

		if err != nil {
			o.logger.Warn().
				Err(err).
				Str("source", src.Name()).
				Msg("source lookup failed, continuing with next source")
			continue
		}

		for i := range records {
			candidate := domain.ScoredCandidate{
				Record:     records[i],
				Confidence: scoring.MatchScore(query, records[i]),
				Source:     string(src.SourceType()),
			}
			all = append(all, candidate)
			if best == nil || candidate.Confidence > best.Confidence {
				c := candidate
				best = &c
			}
		}

		if best != nil && best.Confidence >= o.config.EarlyExitScore {
			o.metrics.VerificationEarlyExits.Inc()
			break
		}
	}
	return best, all, queried
}

// persist upserts the canonical record and caches the verified result.
// Failures here are logged but never downgrade a confident match.
func (o *Orchestrator) persist(ctx context.Context, query domain.StructuredQuery, best *domain.ScoredCandidate) {
	if o.repo != nil {
		if _, err := o.repo.Upsert(ctx, domain.RecordToCitation(best.Record)); err != nil {
			o.metrics.PersistenceFailures.Inc()
			o.logger.Error().
				Err(err).
				Str("canonical_id", best.Record.CanonicalKey()).
				Msg("failed to persist verified record")
		} else {
			o.metrics.RecordsPersisted.Inc()
		}
	}

	key := cache.VerificationKey(query)
	if key == "verify:" {
		return
	}
	payload, err := json.Marshal(best.Record)
	if err != nil {
		o.logger.Error().Err(err).Msg("failed to encode record for caching")
		return
	}
	if err := o.cache.Put(ctx, key, payload, o.config.CacheTTL); err != nil {
		o.logger.Error().Err(err).Msg("failed to cache verified record")
	}
}

// publishBatchResult stores the result under the correlation-scoped key so
// batch callers can poll for it.
func (o *Orchestrator) publishBatchResult(ctx context.Context, correlationID string, query domain.StructuredQuery, result *domain.VerificationResult) {
	payload, err := json.Marshal(result)
	if err != nil {
		o.logger.Error().Err(err).Msg("failed to encode batch result")
		return
	}
	key := cache.BatchResultKey(correlationID, query)
	if err := o.cache.Put(ctx, key, payload, o.config.CacheTTL); err != nil {
		o.logger.Error().
			Err(err).
			Str("correlation_id", correlationID).
			Msg("failed to publish batch result")
	}
}

// topSuggestions sorts candidates by confidence descending and keeps the
// best MaxSuggestions, dropping exact duplicates by canonical key.
func topSuggestions(candidates []domain.ScoredCandidate) []domain.ScoredCandidate {
	if len(candidates) == 0 {
		return nil
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Confidence > candidates[j].Confidence
	})

	seen := make(map[string]bool, len(candidates))
	out := make([]domain.ScoredCandidate, 0, domain.MaxSuggestions)
	for _, c := range candidates {
		key := c.Record.CanonicalKey()
		if key != "" && seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, c)
		if len(out) == domain.MaxSuggestions {
			break
		}
	}
	return out
}
