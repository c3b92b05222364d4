// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/edrak/internal/api"
	"github.com/starford/edrak/internal/mcpserver"
	"github.com/starford/edrak/internal/models"
	"github.com/starford/edrak/internal/sse"
)

func newApplication(opts []Option) (*application, error) {
	app := &application{stdout: os.Stdout, logOutput: os.Stdout}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	return app, nil
}

// setupLogger installs a JSON slog handler as the process default.
func (a *application) setupLogger() *slog.Logger {
	logger := slog.New(slog.NewJSONHandler(a.logOutput, &slog.HandlerOptions{
		Level: a.config.App.LogLevel,
	}))
	slog.SetDefault(logger)
	return logger
}

func healthOK(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

// Run starts the HTTP server with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config
	logger := app.setupLogger()

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("backend", cfg.Workspace.Backend),
		slog.String("data_dir", cfg.Workspace.DataDir),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.Bool("assist_enabled", cfg.Assist.APIKey != ""),
		slog.String("log_level", cfg.App.LogLevel.String()))

	rt, err := openRuntime(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer rt.close()

	broker := sse.NewBroker(2*time.Second, logger)
	rt.store.Subscribe(broker.Observe)

	apiRouter := api.NewRouter(rt.svc, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker, cfg.Workspace.DataDir)
	attachments := api.NewAttachmentHandler(cfg.Workspace.DataDir)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", healthOK)
	r.Get("/health/ready", healthOK)

	r.Mount("/api", apiRouter)

	// Image blocks reference uploads by URL, so these stay public.
	r.Get("/attachments/{filename}", attachments.ServeFile)

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return rt.watch(gCtx)
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
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")

		// Ends open event streams so Shutdown does not wait on them.
		broker.Close()

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

// errShutdown cancels the group context so the watcher stops with the server.
var errShutdown = errors.New("shutdown")

// RunMCP serves the MCP tools on stdin/stdout until the client disconnects.
// Logs go to stderr unless WithLogOutput says otherwise.
func RunMCP(ctx context.Context, opts ...Option) error {
	app, err := newApplication(append([]Option{WithLogOutput(os.Stderr)}, opts...))
	if err != nil {
		return err
	}
	logger := app.setupLogger()

	rt, err := openRuntime(ctx, app.config, logger)
	if err != nil {
		return err
	}
	defer rt.close()

	srv := mcpserver.New(rt.svc, app.config.Workspace.DataDir, logger)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return rt.watch(gCtx)
	})
	g.Go(func() error {
		defer cancel()
		logger.Info("MCP server listening on stdio")
		return srv.ServeStdio()
	})
	return g.Wait()
}

// Export writes one page as Markdown to the configured output.
func Export(ctx context.Context, pageID string, opts ...Option) error {
	app, err := newApplication(append([]Option{WithLogOutput(os.Stderr)}, opts...))
	if err != nil {
		return err
	}
	logger := app.setupLogger()

	rt, err := openRuntime(ctx, app.config, logger)
	if err != nil {
		return err
	}
	defer rt.close()

	md, err := rt.svc.Markdown(ctx, pageID)
	if err != nil {
		return fmt.Errorf("export %s: %w", pageID, err)
	}
	_, err = app.stdout.Write(md)
	return err
}

// Import creates one page from each Markdown file and prints the new ids.
// category is used for files whose frontmatter names no valid category.
func Import(ctx context.Context, paths []string, category models.Category, opts ...Option) error {
	app, err := newApplication(append([]Option{WithLogOutput(os.Stderr)}, opts...))
	if err != nil {
		return err
	}
	logger := app.setupLogger()

	rt, err := openRuntime(ctx, app.config, logger)
	if err != nil {
		return err
	}
	defer rt.close()

	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("import %s: %w", path, err)
		}
		id, err := rt.svc.Import(ctx, data, category)
		if err != nil {
			return fmt.Errorf("import %s: %w", path, err)
		}
		if _, err := io.WriteString(app.stdout, id+"\t"+filepath.Base(path)+"\n"); err != nil {
			return err
		}
	}
	return nil
}
