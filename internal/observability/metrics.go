package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the citation service.
// Metrics are organized by subsystem: verifications, sources, cache,
// discovery, and the batch queue. All counters and histograms are
// registered via promauto against the default registry.
type Metrics struct {
	// VerificationsTotal counts verifications by outcome (verified, failed).
	VerificationsTotal *prometheus.CounterVec

	// VerificationDuration observes end-to-end verification duration in seconds.
	VerificationDuration prometheus.Histogram

	// VerificationEarlyExits counts verifications resolved before exhausting
	// the source order.
	VerificationEarlyExits prometheus.Counter

	// VerificationSuggestions observes the number of suggestions attached to
	// failed verifications.
	VerificationSuggestions prometheus.Histogram

	// SourceRequestsTotal counts lookups against bibliographic sources.
	SourceRequestsTotal *prometheus.CounterVec

	// SourceRequestsFailed counts failed lookups, labeled by source.
	SourceRequestsFailed *prometheus.CounterVec

	// SourceRequestDuration observes source lookup duration in seconds.
	SourceRequestDuration *prometheus.HistogramVec

	// CacheHits counts cache hits by kind (verification, batch, topic).
	CacheHits *prometheus.CounterVec

	// CacheMisses counts cache misses by kind.
	CacheMisses *prometheus.CounterVec

	// DiscoveriesTotal counts discovery runs.
	DiscoveriesTotal prometheus.Counter

	// DiscoveryDuration observes discovery fan-out duration in seconds.
	DiscoveryDuration prometheus.Histogram

	// DiscoveryResults observes the size of returned ranked lists.
	DiscoveryResults prometheus.Histogram

	// DiscoveryDuplicates counts records dropped as cross-source duplicates.
	DiscoveryDuplicates prometheus.Counter

	// QueueTasksPublished counts batch verification tasks published.
	QueueTasksPublished prometheus.Counter

	// QueueTasksConsumed counts batch verification tasks consumed, labeled
	// by outcome (verified, failed, error).
	QueueTasksConsumed *prometheus.CounterVec

	// RecordsPersisted counts canonical citation records upserted.
	RecordsPersisted prometheus.Counter

	// PersistenceFailures counts upserts that failed after a confident match.
	PersistenceFailures prometheus.Counter
}

// NewMetrics creates a new Metrics instance with all metrics initialized.
// The namespace is used as a prefix for all metric names.
func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		// Verifications
		VerificationsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "verifications_total",
			Help:      "Total number of citation verifications by outcome",
		}, []string{"status"}),
		VerificationDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "verification_duration_seconds",
			Help:      "Duration of citation verifications in seconds",
			Buckets:   []float64{0.001, 0.01, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
		VerificationEarlyExits: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "verification_early_exits_total",
			Help:      "Total number of verifications resolved before exhausting sources",
		}),
		VerificationSuggestions: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "verification_suggestions",
			Help:      "Number of suggestions attached to failed verifications",
			Buckets:   []float64{0, 1, 2, 3, 4, 5},
		}),

		// Sources
		SourceRequestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_requests_total",
			Help:      "Total number of lookups against bibliographic sources",
		}, []string{"source"}),
		SourceRequestsFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_requests_failed_total",
			Help:      "Total number of failed lookups against bibliographic sources",
		}, []string{"source"}),
		SourceRequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "source_request_duration_seconds",
			Help:      "Duration of source lookups in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"source"}),

		// Cache
		CacheHits: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_hits_total",
			Help:      "Total number of resolution cache hits by kind",
		}, []string{"kind"}),
		CacheMisses: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_misses_total",
			Help:      "Total number of resolution cache misses by kind",
		}, []string{"kind"}),

		// Discovery
		DiscoveriesTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "discoveries_total",
			Help:      "Total number of topic discovery runs",
		}),
		DiscoveryDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "discovery_duration_seconds",
			Help:      "Duration of topic discovery fan-outs in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		}),
		DiscoveryResults: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "discovery_results",
			Help:      "Number of records in returned ranked lists",
			Buckets:   []float64{0, 1, 5, 10, 15, 20},
		}),
		DiscoveryDuplicates: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "discovery_duplicates_total",
			Help:      "Total number of records dropped as cross-source duplicates",
		}),

		// Queue
		QueueTasksPublished: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "queue_tasks_published_total",
			Help:      "Total number of batch verification tasks published",
		}),
		QueueTasksConsumed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "queue_tasks_consumed_total",
			Help:      "Total number of batch verification tasks consumed by outcome",
		}, []string{"outcome"}),

		// Persistence
		RecordsPersisted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_persisted_total",
			Help:      "Total number of canonical citation records upserted",
		}),
		PersistenceFailures: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "persistence_failures_total",
			Help:      "Total number of record upserts that failed after a confident match",
		}),
	}
}

// RecordVerification records a completed verification.
func (m *Metrics) RecordVerification(status string, durationSeconds float64) {
	m.VerificationsTotal.WithLabelValues(status).Inc()
	m.VerificationDuration.Observe(durationSeconds)
}

// RecordSourceRequest records a source lookup.
func (m *Metrics) RecordSourceRequest(source string, durationSeconds float64, err error) {
	m.SourceRequestsTotal.WithLabelValues(source).Inc()
	m.SourceRequestDuration.WithLabelValues(source).Observe(durationSeconds)
	if err != nil {
		m.SourceRequestsFailed.WithLabelValues(source).Inc()
	}
}

// RecordCacheLookup records a cache hit or miss for the given kind.
func (m *Metrics) RecordCacheLookup(kind string, hit bool) {
	if hit {
		m.CacheHits.WithLabelValues(kind).Inc()
	} else {
		m.CacheMisses.WithLabelValues(kind).Inc()
	}
}
