// Package discover implements topic-based paper discovery: fan out a topic
// query to every enabled source, score each record on intrinsic quality,
// dedup across sources, and return a ranked shortlist.
package discover

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/refhub/citation-service/internal/cache"
	"github.com/refhub/citation-service/internal/domain"
	"github.com/refhub/citation-service/internal/observability"
	"github.com/refhub/citation-service/internal/scoring"
	"github.com/refhub/citation-service/internal/sources"
)

// Default discovery settings.
const (
	// DefaultMaxParallel bounds the source fan-out.
	DefaultMaxParallel = 4

	// DefaultQualityFloor drops records below this quality score.
	DefaultQualityFloor = 0.3

	// DefaultMaxResults caps the ranked list.
	DefaultMaxResults = 20
)

// Config holds discovery orchestrator settings.
type Config struct {
	MaxParallel  int
	QualityFloor float64
	MaxResults   int

	// CacheTTL is how long ranked topic lists stay cached.
	CacheTTL time.Duration
}

func (c *Config) applyDefaults() {
	if c.MaxParallel == 0 {
		c.MaxParallel = DefaultMaxParallel
	}
	if c.QualityFloor == 0 {
		c.QualityFloor = DefaultQualityFloor
	}
	if c.MaxResults == 0 {
		c.MaxResults = DefaultMaxResults
	}
	if c.CacheTTL == 0 {
		c.CacheTTL = cache.TopicTTL
	}
}

// TopicRequest describes one discovery call. Field and AcademicLevel are
// optional refinements; they participate in the cache key so different
// refinements of the same topic get separate lists.
type TopicRequest struct {
	Topic         string
	Field         string
	AcademicLevel string
}

// Orchestrator runs topic discovery across the registered sources.
type Orchestrator struct {
	config   Config
	registry *sources.Registry
	cache    cache.Cache
	logger   zerolog.Logger
	metrics  *observability.Metrics
}

// NewOrchestrator creates a discovery orchestrator.
func NewOrchestrator(
	cfg Config,
	registry *sources.Registry,
	topicCache cache.Cache,
	logger zerolog.Logger,
	metrics *observability.Metrics,
) *Orchestrator {
	cfg.applyDefaults()
	return &Orchestrator{
		config:   cfg,
		registry: registry,
		cache:    topicCache,
		logger:   logger.With().Str("component", "discover").Logger(),
		metrics:  metrics,
	}
}

// Collect returns up to MaxResults quality-ranked papers for the topic.
// Results are cached per topic+field+level; an empty ranked list is a valid,
// cacheable outcome.
func (o *Orchestrator) Collect(ctx context.Context, req TopicRequest) ([]domain.ScoredCandidate, error) {
	topic := strings.TrimSpace(req.Topic)
	if topic == "" {
		return nil, domain.NewValidationError("topic", "must not be empty")
	}

	start := time.Now()
	o.metrics.DiscoveriesTotal.Inc()
	log := o.logger.With().Str("topic", topic).Str("field", req.Field).Logger()

	key := cache.TopicKey(topic, req.Field, req.AcademicLevel)
	if cached, err := o.cache.Get(ctx, key); err == nil {
		var ranked []domain.ScoredCandidate
		if err := json.Unmarshal(cached, &ranked); err == nil {
			o.metrics.RecordCacheLookup("topic", true)
			log.Debug().Int("results", len(ranked)).Msg("topic served from cache")
			return ranked, nil
		}
		log.Warn().Err(err).Msg("discarding undecodable topic cache entry")
	} else if !errors.Is(err, domain.ErrNotFound) {
		log.Warn().Err(err).Msg("topic cache lookup failed, continuing with fan-out")
	}
	o.metrics.RecordCacheLookup("topic", false)

	query := topicQuery(topic, req.Field)
	outcomes := o.registry.SearchAll(ctx, query, o.config.MaxParallel)

	ranked := o.rank(log, outcomes)

	if payload, err := json.Marshal(ranked); err != nil {
		log.Error().Err(err).Msg("failed to encode ranked list for caching")
	} else if err := o.cache.Put(ctx, key, payload, o.config.CacheTTL); err != nil {
		log.Error().Err(err).Msg("failed to cache ranked list")
	}

	o.metrics.DiscoveryDuration.Observe(time.Since(start).Seconds())
	o.metrics.DiscoveryResults.Observe(float64(len(ranked)))
	log.Info().
		Int("results", len(ranked)).
		Dur("elapsed", time.Since(start)).
		Msg("discovery completed")

	return ranked, nil
}

// rank scores, dedups, floors, sorts and truncates the fan-out output.
// Per-source failures are logged and contribute zero records.
func (o *Orchestrator) rank(log zerolog.Logger, outcomes []sources.SearchOutcome) []domain.ScoredCandidate {
	// Dedup by normalized title, keeping the highest-quality duplicate.
	byTitle := make(map[string]domain.ScoredCandidate)
	for _, out := range outcomes {
		o.metrics.RecordSourceRequest(string(out.Source), out.Duration.Seconds(), out.Err)
		if out.Err != nil {
			log.Warn().
				Err(out.Err).
				Str("source", string(out.Source)).
				Msg("source fan-out failed, continuing without it")
			continue
		}

		for i := range out.Records {
			rec := out.Records[i]
			quality := scoring.QualityScore(rec)
			if quality < o.config.QualityFloor {
				continue
			}

			titleKey := scoring.NormalizeTitle(rec.Title)
			if titleKey == "" {
				continue
			}
			if existing, ok := byTitle[titleKey]; ok {
				o.metrics.DiscoveryDuplicates.Inc()
				if quality <= existing.Confidence {
					continue
				}
			}
			byTitle[titleKey] = domain.ScoredCandidate{
				Record:     rec,
				Confidence: quality,
				Source:     string(out.Source),
			}
		}
	}

	ranked := make([]domain.ScoredCandidate, 0, len(byTitle))
	for _, c := range byTitle {
		ranked = append(ranked, c)
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Confidence != ranked[j].Confidence {
			return ranked[i].Confidence > ranked[j].Confidence
		}
		return ranked[i].Record.Title < ranked[j].Record.Title
	})

	if len(ranked) > o.config.MaxResults {
		ranked = ranked[:o.config.MaxResults]
	}
	return ranked
}

// topicQuery shapes a discovery topic into the free-text query the adapters
// understand. The field refinement widens the search text; academic level
// only affects the cache key, not the upstream query.
func topicQuery(topic, field string) domain.StructuredQuery {
	title := topic
	if field = strings.TrimSpace(field); field != "" {
		title = topic + " " + field
	}
	return domain.StructuredQuery{Title: title}
}
