// Package main provides the entry point for the paper discovery service.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/helixir/literature-review-service/internal/authgateway"
	"github.com/helixir/literature-review-service/internal/config"
	"github.com/helixir/literature-review-service/internal/database"
	"github.com/helixir/literature-review-service/internal/feedservice"
	"github.com/helixir/literature-review-service/internal/followfeed"
	"github.com/helixir/literature-review-service/internal/llm"
	"github.com/helixir/literature-review-service/internal/observability"
	"github.com/helixir/literature-review-service/internal/papersources"
	"github.com/helixir/literature-review-service/internal/papersources/openalex"
	"github.com/helixir/literature-review-service/internal/queryparser"
	"github.com/helixir/literature-review-service/internal/queryparser/llmparser"
	"github.com/helixir/literature-review-service/internal/queryparser/rulebased"
	"github.com/helixir/literature-review-service/internal/recommendengine"
	"github.com/helixir/literature-review-service/internal/repository"
	"github.com/helixir/literature-review-service/internal/repository/memstore"
	"github.com/helixir/literature-review-service/internal/searchengine"
	httpserver "github.com/helixir/literature-review-service/internal/server/http"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := observability.NewLogger(observability.LoggingConfig{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Output:     cfg.Logging.Output,
		AddSource:  cfg.Logging.AddSource,
		TimeFormat: cfg.Logging.TimeFormat,
	})
	logger = logger.With().Str("component", "server").Logger()
	logger.Info().Msg("paper discovery service starting")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics := observability.NewMetrics("paperfeed")

	papers, users, sessions, closeStore, err := buildStores(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	source := buildSource(cfg, logger)
	parser := buildQueryParser(cfg, logger)

	feed := feedservice.New(users, papers, logger, metrics)
	search := searchengine.New(source, parser, papers, logger, metrics)
	follow := followfeed.New(users, papers, source, search, logger, metrics)
	recommend := recommendengine.New(users, papers, source, search, logger, metrics)
	auth := authgateway.New(cfg.OAuth, cfg.Session, cfg.Server.BaseURL, cfg.Server.SPARedirectURL, sessions, feed, logger)

	httpCfg := httpserver.Config{
		Address:         cfg.Server.HTTPAddress(),
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		IdleTimeout:     2 * time.Minute,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	}

	httpSrv := httpserver.NewServer(httpCfg, httpserver.Deps{
		Papers:    papers,
		Source:    source,
		Parser:    parser,
		Feed:      feed,
		Search:    search,
		Follow:    follow,
		Recommend: recommend,
		Auth:      auth,
		Logger:    logger,
		Metrics:   metrics,
		Feeds:     cfg.Feeds,
	})

	var metricsServer *http.Server
	if cfg.Metrics.Enabled {
		metricsMux := http.NewServeMux()
		metricsMux.Handle(cfg.Metrics.Path, promhttp.Handler())
		metricsServer = &http.Server{
			Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.MetricsPort),
			Handler:      metricsMux,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
		}
	}

	errCh := make(chan error, 2)

	go func() {
		logger.Info().Str("address", httpCfg.Address).Msg("HTTP server starting")
		if err := httpSrv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	if metricsServer != nil {
		go func() {
			logger.Info().Str("address", metricsServer.Addr).Msg("metrics server starting")
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("metrics server error: %w", err)
			}
		}()
	}

	readyLog := logger.Info().Str("http_address", httpCfg.Address)
	if metricsServer != nil {
		readyLog = readyLog.Str("metrics_address", metricsServer.Addr)
	}
	readyLog.Msg("paper discovery service is ready")

	select {
	case <-ctx.Done():
		logger.Info().Msg("received shutdown signal")
	case err := <-errCh:
		logger.Error().Err(err).Msg("server error")
		return err
	}

	logger.Info().Msg("shutting down paper discovery service")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("HTTP server shutdown error")
	}
	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("metrics server shutdown error")
		}
	}

	logger.Info().Msg("paper discovery service shutdown complete")
	return nil
}

// buildStores wires the paper cache (C2), user aggregate store (C3), and
// session store (C8) against either an in-process backend or PostgreSQL,
// matching cfg.Database.Backend. The in-memory backend needs no external
// service and is the zero-config default for local development and tests.
func buildStores(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (repository.PaperRepository, repository.UserRepository, repository.SessionRepository, func(), error) {
	switch cfg.Database.Backend {
	case "postgres":
		db, err := database.New(ctx, &cfg.Database, logger)
		if err != nil {
			return nil, nil, nil, nil, fmt.Errorf("connect to database: %w", err)
		}
		logger.Info().Msg("database connection established")

		if cfg.Database.MigrationAutoRun {
			migrator, err := database.NewMigrator(db, cfg.Database.MigrationPath, logger)
			if err != nil {
				db.Close()
				return nil, nil, nil, nil, fmt.Errorf("create migrator: %w", err)
			}
			if err := migrator.Up(); err != nil {
				migrator.Close()
				db.Close()
				return nil, nil, nil, nil, fmt.Errorf("run migrations: %w", err)
			}
			if err := migrator.Close(); err != nil {
				logger.Error().Err(err).Msg("failed to close migrator")
			}
		}

		papers := repository.NewPgPaperRepository(db)
		users := repository.NewPgUserRepository(db)
		sessions := repository.NewPgSessionRepository(db)
		return papers, users, sessions, func() { db.Close() }, nil
	default:
		logger.Info().Msg("using in-memory store backend")
		return memstore.NewPaperStore(), memstore.NewUserStore(), memstore.NewSessionStore(), func() {}, nil
	}
}

// buildSource wires the OpenAlex upstream client (C1).
func buildSource(cfg *config.Config, logger zerolog.Logger) papersources.Source {
	httpClient := papersources.NewHTTPClient(papersources.HTTPClientConfig{
		Timeout:    cfg.OpenAlex.Timeout,
		RateLimit:  cfg.OpenAlex.RateLimit,
		BurstSize:  cfg.OpenAlex.BurstSize,
		MaxRetries: cfg.OpenAlex.MaxRetries,
	})
	client := openalex.NewWithHTTPClient(openalex.Config{
		BaseURL:   cfg.OpenAlex.BaseURL,
		Email:     cfg.OpenAlex.Email,
		Timeout:   cfg.OpenAlex.Timeout,
		RateLimit: cfg.OpenAlex.RateLimit,
		BurstSize: cfg.OpenAlex.BurstSize,
	}, httpClient)
	logger.Info().Str("base_url", cfg.OpenAlex.BaseURL).Msg("openalex client configured")
	return client
}

// buildQueryParser wires C4: a rule-based fallback that is always available,
// optionally wrapped by an LLM-backed extractor when a provider is
// configured. The service is never blocked on the external model.
func buildQueryParser(cfg *config.Config, logger zerolog.Logger) queryparser.Parser {
	fallback := rulebased.New()
	if cfg.QueryParser.Provider == "" {
		logger.Info().Msg("query parser: rule-based only, no LLM provider configured")
		return fallback
	}

	extractor, err := llm.NewKeywordExtractor(llm.FactoryConfig{
		Provider:    cfg.QueryParser.Provider,
		Temperature: cfg.QueryParser.Temperature,
		Timeout:     cfg.QueryParser.Timeout,
		MaxRetries:  cfg.QueryParser.MaxRetries,
		OpenAI: llm.OpenAIConfig{
			APIKey:  cfg.QueryParser.APIKey,
			Model:   cfg.QueryParser.Model,
			BaseURL: cfg.QueryParser.BaseURL,
		},
		Anthropic: llm.AnthropicConfig{
			APIKey:  cfg.QueryParser.APIKey,
			Model:   cfg.QueryParser.Model,
			BaseURL: cfg.QueryParser.BaseURL,
		},
	})
	if err != nil {
		logger.Warn().Err(err).Msg("failed to configure LLM query parser, falling back to rule-based only")
		return fallback
	}

	logger.Info().Str("provider", cfg.QueryParser.Provider).Msg("query parser: LLM-backed with rule-based fallback")
	return llmparser.New(fallback, extractor, llmparser.Config{}, logger)
}
