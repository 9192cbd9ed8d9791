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
	"golang.org/x/sync/errgroup"

	"github.com/starford/ansuz/internal/annotator"
	"github.com/starford/ansuz/internal/api"
	"github.com/starford/ansuz/internal/assembler"
	"github.com/starford/ansuz/internal/mcpserver"
	"github.com/starford/ansuz/internal/modelclient"
	"github.com/starford/ansuz/internal/quality"
	"github.com/starford/ansuz/internal/registry"
	"github.com/starford/ansuz/internal/sse"
	"github.com/starford/ansuz/internal/store"
	"github.com/starford/ansuz/internal/validate"
)

// Option configures the application before it starts.
type Option func(*application)

type application struct {
	config *Config
}

// WithConfig supplies the loaded configuration.
func WithConfig(cfg *Config) Option {
	return func(a *application) { a.config = cfg }
}

func newApplication(opts ...Option) (*application, error) {
	app := &application{}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	return app, nil
}

// Run starts the application with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts...)
	if err != nil {
		return err
	}
	cfg := app.config

	// Initialize structured JSON logger.
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("registry_path", cfg.Registry.Path),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("note_mode", cfg.Annotate.NoteMode),
		slog.String("validation_mode", cfg.Annotate.ValidationMode),
		slog.String("log_level", cfg.App.LogLevel.String()))

	// Initialize annotation store.
	db, err := store.Open(cfg.SQLite.Path)
	if err != nil {
		return fmt.Errorf("init store: %w", err)
	}
	defer db.Close()

	// SSE broker.
	broker := sse.NewBroker(2 * time.Second)

	// Build the annotation service.
	svc, reg, err := buildService(cfg, db, func(kind string, data map[string]any) {
		broker.Publish(sse.Event{Type: kind, Data: data})
	})
	if err != nil {
		return err
	}

	apiRouter := api.NewRouter(svc, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker)

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
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:    cfg.App.HTTP.Address(),
		Handler: r,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	// Start registry watcher with SSE callback.
	if cfg.Registry.Watch {
		g.Go(func() error {
			return reg.Watch(gCtx, cfg.Registry.Path, logger, func(s *registry.Snapshot) {
				broker.Publish(sse.Event{Type: "registry.reloaded", Data: map[string]any{
					"version":   s.Version(),
					"templates": s.Len(),
				}})
			})
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
		broker.Close()

		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// RunMCP starts the MCP stdio server instead of the HTTP API. It shares
// the same configuration and service wiring as Run.
func RunMCP(_ context.Context, opts ...Option) error {
	app, err := newApplication(opts...)
	if err != nil {
		return err
	}
	cfg := app.config

	// Logs go to stderr; stdout carries the MCP transport.
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	db, err := store.Open(cfg.SQLite.Path)
	if err != nil {
		return fmt.Errorf("init store: %w", err)
	}
	defer db.Close()

	svc, _, err := buildService(cfg, db, nil)
	if err != nil {
		return err
	}

	return mcpserver.New(svc).ServeStdio()
}

// buildService wires the registry, quality filter, model client, and
// assembler into an annotator service.
func buildService(cfg *Config, db store.AnnotationStore, cb annotator.EventCallback) (*annotator.Service, *registry.Handle, error) {
	snap := registry.DefaultSnapshot()
	if cfg.Registry.Path != "" {
		var err error
		snap, err = registry.Load(cfg.Registry.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("load registry: %w", err)
		}
	}
	reg := registry.NewHandle(snap)

	policy := quality.DefaultPolicy()
	if cfg.Filter.Path != "" {
		var err error
		policy, err = quality.LoadPolicy(cfg.Filter.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("load filter policy: %w", err)
		}
	}
	filter, err := quality.New(policy)
	if err != nil {
		return nil, nil, fmt.Errorf("init filter: %w", err)
	}

	var model assembler.ModelClient
	if cfg.Model.Provider == ModelProviderOpenAI {
		model, err = modelclient.NewOpenAI(cfg.Model.APIKey, cfg.Model.Model)
		if err != nil {
			return nil, nil, fmt.Errorf("init model client: %w", err)
		}
	}

	asm := assembler.New(filter, model, cfg.Model.Timeout)
	svc := annotator.NewService(reg, asm, db,
		cfg.Annotate.Concurrency,
		assembler.NoteMode(cfg.Annotate.NoteMode),
		validate.Mode(cfg.Annotate.ValidationMode),
		cb)
	return svc, reg, nil
}
