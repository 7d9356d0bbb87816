// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/starford/taxon/internal/api"
	"github.com/starford/taxon/internal/mcpserver"
	"github.com/starford/taxon/internal/seed"
	"github.com/starford/taxon/internal/sse"
	"github.com/starford/taxon/internal/store"
	"github.com/starford/taxon/internal/tagservice"
)

// setup validates options and installs the structured JSON logger.
func setup(opts []Option) (*application, *slog.Logger, error) {
	app := newApplication(opts)
	if app.config == nil {
		return nil, nil, fmt.Errorf("config is required")
	}
	cfg := app.config

	logger := slog.New(slog.NewJSONHandler(app.logOutput, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("seed_path", cfg.Seed.Path),
		slog.Int("vocabulary_fields", len(cfg.Tags.VocabularyFields)),
		slog.String("log_level", cfg.App.LogLevel.String()))

	return app, logger, nil
}

// openService opens the store and builds the tag service on top of it.
func openService(cfg *Config, logger *slog.Logger, events tagservice.EventFunc) (*store.DB, *tagservice.Service, error) {
	db, err := store.Open(cfg.SQLite.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("init store: %w", err)
	}
	svc := tagservice.New(db,
		tagservice.WithLogger(logger),
		tagservice.WithVocabularyFields(cfg.Tags.VocabularyFields),
		tagservice.WithEvents(events),
		tagservice.WithVocabularyCache(cfg.Tags.VocabularyCache),
	)
	return db, svc, nil
}

// applySeed applies the configured seed file once, if any.
func applySeed(ctx context.Context, cfg *Config, svc *tagservice.Service, logger *slog.Logger) *seed.Loader {
	if cfg.Seed.Path == "" {
		return nil
	}
	loader := seed.NewLoader(svc, cfg.Seed.Path, logger)
	if _, err := loader.Apply(ctx); err != nil {
		logger.Warn("initial seed failed", slog.String("error", err.Error()))
	}
	return loader
}

// Run starts the HTTP server with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app, logger, err := setup(opts)
	if err != nil {
		return err
	}
	cfg := app.config

	// SSE broker.
	broker := sse.NewBroker(cfg.Tags.EventsThrottle)
	defer broker.Close()

	db, svc, err := openService(cfg, logger, broker.Publish)
	if err != nil {
		return err
	}
	defer db.Close()

	loader := applySeed(ctx, cfg, svc, logger)

	var metrics *api.Metrics
	registry := prometheus.NewRegistry()
	if cfg.App.Metrics.Enabled {
		registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		metrics = api.NewMetrics(registry)
	}

	apiRouter := api.NewRouter(svc, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker, metrics)

	// Build chi router.
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := svc.Ping(r.Context()); err != nil {
			logger.Warn("readiness check failed", slog.String("error", err.Error()))
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"unavailable"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	if cfg.App.Metrics.Enabled {
		r.Handle(cfg.App.Metrics.Path, promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	}

	// Mount API routes under /api; the SSE feed is /api/events.
	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:    cfg.App.HTTP.Address(),
		Handler: r,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	// Re-apply the seed file on change.
	if loader != nil && cfg.Seed.Watch {
		g.Go(func() error {
			if err := seed.Watch(gCtx, loader); err != nil {
				logger.Warn("seed watcher failed", slog.String("error", err.Error()))
			}
			return nil
		})
	}

	// Start HTTP server.
	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		return errShutdown
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errShutdown) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// errShutdown cancels the group so the seed watcher stops with the server.
var errShutdown = errors.New("shutdown")

// RunMCP serves the MCP tools on stdin/stdout until the client disconnects.
func RunMCP(ctx context.Context, opts ...Option) error {
	app, logger, err := setup(opts)
	if err != nil {
		return err
	}
	db, svc, err := openService(app.config, logger, nil)
	if err != nil {
		return err
	}
	defer db.Close()

	applySeed(ctx, app.config, svc, logger)

	logger.Info("MCP server starting on stdio")
	return mcpserver.New(svc).ServeStdio()
}

// RunSeed applies the configured seed file once and returns.
func RunSeed(ctx context.Context, opts ...Option) error {
	app, logger, err := setup(opts)
	if err != nil {
		return err
	}
	if app.config.Seed.Path == "" {
		return fmt.Errorf("seed: no seed file configured")
	}
	db, svc, err := openService(app.config, logger, nil)
	if err != nil {
		return err
	}
	defer db.Close()

	res, err := seed.NewLoader(svc, app.config.Seed.Path, logger).Apply(ctx)
	if err != nil {
		return err
	}
	logger.Info("Seed finished",
		slog.Int("vocabularies", res.Vocabularies),
		slog.Int("tags_created", res.TagsCreated))
	return nil
}
