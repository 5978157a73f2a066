// Package main provides the entry point for the batch verification worker.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/refhub/citation-service/internal/cache"
	"github.com/refhub/citation-service/internal/config"
	"github.com/refhub/citation-service/internal/database"
	"github.com/refhub/citation-service/internal/observability"
	"github.com/refhub/citation-service/internal/queue"
	"github.com/refhub/citation-service/internal/repository"
	"github.com/refhub/citation-service/internal/sources"
	"github.com/refhub/citation-service/internal/sources/crossref"
	"github.com/refhub/citation-service/internal/sources/openalex"
	"github.com/refhub/citation-service/internal/sources/pubmed"
	"github.com/refhub/citation-service/internal/sources/semanticscholar"
	"github.com/refhub/citation-service/internal/verify"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if !cfg.Kafka.Enabled {
		return fmt.Errorf("kafka must be enabled for the worker")
	}

	// Set up structured logging.
	logger := observability.NewLogger(observability.LoggingConfig{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Output:     cfg.Logging.Output,
		TimeFormat: cfg.Logging.TimeFormat,
	})
	logger = logger.With().Str("component", "worker").Logger()
	logger.Info().Msg("citation-service worker starting")

	// Set up context with graceful shutdown via OS signals.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect to PostgreSQL.
	db, err := database.New(ctx, &cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()
	logger.Info().Msg("database connection established")

	metrics := observability.NewMetrics("citation_service_worker")

	// Create the source registry and register enabled sources.
	registry := sources.NewRegistry()
	registerSources(registry, cfg, logger)

	// The worker must share the resolution cache with the API server so
	// polled batch results are visible; that requires the postgres backend.
	var resolutionCache cache.Cache
	if cfg.Cache.Backend == "memory" {
		logger.Warn().Msg("memory cache backend makes batch results invisible to the API server; using postgres")
	}
	resolutionCache = cache.NewPostgres(db)

	citationRepo := repository.NewPgCitationRepository(db)

	verifier := verify.NewOrchestrator(
		verify.Config{
			SourceTimeout:  cfg.Verification.SourceTimeout,
			EarlyExitScore: cfg.Verification.EarlyExitScore,
			CacheTTL:       cfg.Verification.CacheTTL,
		},
		registry,
		resolutionCache,
		citationRepo,
		logger,
		metrics,
	)

	consumer := queue.NewConsumer(queue.ConsumerConfig{
		Brokers: cfg.Kafka.Brokers,
		Topic:   cfg.Kafka.Topic,
		GroupID: cfg.Kafka.GroupID,
	}, verifier, logger, metrics)
	defer func() {
		if closeErr := consumer.Close(); closeErr != nil {
			logger.Error().Err(closeErr).Msg("failed to close consumer")
		}
	}()

	logger.Info().
		Strs("brokers", cfg.Kafka.Brokers).
		Str("topic", cfg.Kafka.Topic).
		Str("group_id", cfg.Kafka.GroupID).
		Msg("citation-service worker is ready")

	if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("consumer error: %w", err)
	}

	logger.Info().Msg("citation-service worker shutdown complete")
	return nil
}

// registerSources registers every enabled bibliographic source.
func registerSources(registry *sources.Registry, cfg *config.Config, logger zerolog.Logger) {
	if cfg.Sources.Crossref.Enabled {
		registry.Register(crossref.New(crossref.Config{
			BaseURL:    cfg.Sources.Crossref.BaseURL,
			Email:      cfg.Sources.Crossref.Email,
			Timeout:    cfg.Sources.Crossref.Timeout,
			RateLimit:  cfg.Sources.Crossref.RateLimit,
			MaxResults: cfg.Sources.Crossref.MaxResults,
			Enabled:    true,
		}))
		logger.Info().Msg("crossref source registered")
	}

	if cfg.Sources.PubMed.Enabled {
		registry.Register(pubmed.New(pubmed.Config{
			BaseURL:    cfg.Sources.PubMed.BaseURL,
			APIKey:     cfg.Sources.PubMed.APIKey,
			Timeout:    cfg.Sources.PubMed.Timeout,
			RateLimit:  cfg.Sources.PubMed.RateLimit,
			MaxResults: cfg.Sources.PubMed.MaxResults,
			Enabled:    true,
		}))
		logger.Info().Msg("pubmed source registered")
	}

	if cfg.Sources.SemanticScholar.Enabled {
		registry.Register(semanticscholar.New(semanticscholar.Config{
			BaseURL:    cfg.Sources.SemanticScholar.BaseURL,
			APIKey:     cfg.Sources.SemanticScholar.APIKey,
			Timeout:    cfg.Sources.SemanticScholar.Timeout,
			RateLimit:  cfg.Sources.SemanticScholar.RateLimit,
			MaxResults: cfg.Sources.SemanticScholar.MaxResults,
			Enabled:    true,
		}))
		logger.Info().Msg("semantic scholar source registered")
	}

	if cfg.Sources.OpenAlex.Enabled {
		registry.Register(openalex.New(openalex.Config{
			BaseURL:    cfg.Sources.OpenAlex.BaseURL,
			Email:      cfg.Sources.OpenAlex.Email,
			Timeout:    cfg.Sources.OpenAlex.Timeout,
			RateLimit:  cfg.Sources.OpenAlex.RateLimit,
			MaxResults: cfg.Sources.OpenAlex.MaxResults,
			Enabled:    true,
		}))
		logger.Info().Msg("openalex source registered")
	}
}
