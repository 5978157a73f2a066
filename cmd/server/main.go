// Package main provides the entry point for the citation service HTTP server.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/refhub/citation-service/internal/cache"
	"github.com/refhub/citation-service/internal/config"
	"github.com/refhub/citation-service/internal/database"
	"github.com/refhub/citation-service/internal/discover"
	"github.com/refhub/citation-service/internal/observability"
	"github.com/refhub/citation-service/internal/queue"
	"github.com/refhub/citation-service/internal/repository"
	httpserver "github.com/refhub/citation-service/internal/server/http"
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

	// Set up structured logging.
	logger := observability.NewLogger(observability.LoggingConfig{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Output:     cfg.Logging.Output,
		TimeFormat: cfg.Logging.TimeFormat,
	})
	logger = logger.With().Str("component", "server").Logger()
	logger.Info().Msg("citation-service server starting")

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

	// Run migrations if configured.
	if cfg.Database.MigrationAutoRun {
		migrator, err := database.NewMigrator(db, cfg.Database.MigrationPath, logger)
		if err != nil {
			return fmt.Errorf("create migrator: %w", err)
		}
		defer func() {
			if closeErr := migrator.Close(); closeErr != nil {
				logger.Error().Err(closeErr).Msg("failed to close migrator")
			}
		}()

		if err := migrator.Up(); err != nil {
			return fmt.Errorf("run migrations: %w", err)
		}
	}

	metrics := observability.NewMetrics("citation_service")

	// Create the source registry and register enabled sources.
	registry := sources.NewRegistry()
	registerSources(registry, cfg, logger)

	// Pick the resolution cache backend. The postgres backend is shared with
	// the worker process so batch results are visible across processes.
	resolutionCache := newCache(ctx, cfg, db, logger)

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

	discoverer := discover.NewOrchestrator(
		discover.Config{
			MaxParallel:  cfg.Discovery.MaxParallel,
			QualityFloor: cfg.Discovery.QualityFloor,
			MaxResults:   cfg.Discovery.MaxResults,
			CacheTTL:     cfg.Discovery.CacheTTL,
		},
		registry,
		resolutionCache,
		logger,
		metrics,
	)

	// Create the batch task producer when the queue is enabled.
	var enqueuer httpserver.TaskEnqueuer
	if cfg.Kafka.Enabled {
		producer := queue.NewProducer(queue.ProducerConfig{
			Brokers: cfg.Kafka.Brokers,
			Topic:   cfg.Kafka.Topic,
		}, logger, metrics)
		defer func() {
			if closeErr := producer.Close(); closeErr != nil {
				logger.Error().Err(closeErr).Msg("failed to close task producer")
			}
		}()
		enqueuer = producer
		logger.Info().Strs("brokers", cfg.Kafka.Brokers).Str("topic", cfg.Kafka.Topic).Msg("batch verification queue enabled")
	}

	httpCfg := httpserver.Config{
		Address:         cfg.Server.HTTPAddress(),
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	}

	httpSrv := httpserver.NewServer(httpCfg, verifier, discoverer, enqueuer, citationRepo, db, logger)

	errCh := make(chan error, 1)
	go func() {
		if err := httpSrv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	logger.Info().Str("http_address", httpCfg.Address).Msg("citation-service is ready")

	// Wait for shutdown signal or server error.
	select {
	case <-ctx.Done():
		logger.Info().Msg("received shutdown signal")
	case err := <-errCh:
		logger.Error().Err(err).Msg("server error")
		return err
	}

	// Graceful shutdown.
	logger.Info().Msg("shutting down citation-service")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("HTTP server shutdown error")
	}

	logger.Info().Msg("citation-service shutdown complete")
	return nil
}

// newCache builds the configured resolution cache backend. The memory backend
// starts a background sweeper bound to the process lifetime.
func newCache(ctx context.Context, cfg *config.Config, db *database.DB, logger zerolog.Logger) cache.Cache {
	if cfg.Cache.Backend == "memory" {
		mem := cache.NewMemory()
		go mem.RunSweeper(ctx, cfg.Cache.CleanupInterval)
		logger.Info().Msg("using in-memory resolution cache")
		return mem
	}
	logger.Info().Msg("using postgres resolution cache")
	return cache.NewPostgres(db)
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
