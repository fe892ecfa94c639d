package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/sagekb/sage/internal/api"
	"github.com/sagekb/sage/internal/cardcache"
	"github.com/sagekb/sage/internal/index"
	"github.com/sagekb/sage/internal/indexer"
	"github.com/sagekb/sage/internal/mcpserver"
	"github.com/sagekb/sage/internal/sse"
	"github.com/sagekb/sage/internal/synth"
	"github.com/sagekb/sage/internal/tools"
	"github.com/sagekb/sage/internal/workspace"
)

// Run starts the application with the given options. It always performs the
// upfront indexing pass, then serves per the selected mode.
func Run(ctx context.Context, opts ...Option) error {
	app := &application{mode: ModeMCP}

	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return fmt.Errorf("config is required")
	}

	cfg := app.config
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	// MCP stdio owns stdout, so logs go to stderr across all modes.
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("mode", string(app.mode)),
		slog.String("workspace_path", cfg.Workspace.Path),
		slog.String("model", cfg.Synth.Model),
		slog.String("log_level", cfg.App.LogLevel.String()))

	ws, err := workspace.New(cfg.Workspace.Path)
	if err != nil {
		return fmt.Errorf("init workspace: %w", err)
	}
	if err := ws.EnsureStateDirs(); err != nil {
		return fmt.Errorf("create state dirs: %w", err)
	}
	cache := cardcache.New(ws)

	db, err := index.Open(ws.IndexPath())
	if err != nil {
		return fmt.Errorf("init index: %w", err)
	}
	defer db.Close()

	apiKey, err := cfg.Synth.ResolveAPIKey()
	if err != nil {
		return err
	}
	gemini, err := synth.NewGemini(ctx, apiKey, cfg.Synth.Model)
	if err != nil {
		return fmt.Errorf("init synthesizer: %w", err)
	}
	syn := synth.New(gemini)

	cards, err := indexer.EnsureIndexed(ctx, ws, cache, db, syn, logger)
	if err != nil {
		return fmt.Errorf("index workspace: %w", err)
	}
	logger.Info("Workspace indexed", slog.Int("documents", len(cards)))

	svc := tools.NewService(ws, db, cards)

	switch app.mode {
	case ModeInit:
		fmt.Printf("Indexed %d documents\n", len(cards))
		return nil
	case ModeServe:
		return runServe(ctx, cfg, ws, cache, db, svc, logger)
	default:
		logger.Info("Serving tools over MCP stdio")
		tutor, learner := ws.Instructions()
		instructions := strings.TrimSpace(tutor + "\n\n" + learner)
		return mcpserver.New(svc, instructions).ServeStdio()
	}
}

func runServe(ctx context.Context, cfg *Config, ws *workspace.Workspace, cache *cardcache.Cache, db *index.DB, svc *tools.Service, logger *slog.Logger) error {
	broker := sse.NewBroker()
	defer broker.Close()

	apiRouter := api.NewRouter(svc, db, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker)

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

	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:    cfg.App.HTTP.Address(),
		Handler: r,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	// Keep the index consistent with on-disk changes and push SSE events.
	g.Go(func() error {
		if err := indexer.Watch(gCtx, ws, cache, db, logger, func(kind, path string) {
			broker.PublishDocEvent(kind, path)
		}); err != nil {
			logger.Warn("watcher stopped", slog.String("error", err.Error()))
		}
		return nil
	})

	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

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

		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}
