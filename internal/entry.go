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

	"github.com/starford/tally/internal/api"
	"github.com/starford/tally/internal/cardservice"
	"github.com/starford/tally/internal/importer"
	"github.com/starford/tally/internal/linktitle"
	"github.com/starford/tally/internal/mcpserver"
	"github.com/starford/tally/internal/models"
	"github.com/starford/tally/internal/pgstore"
	"github.com/starford/tally/internal/sqlstore"
	"github.com/starford/tally/internal/sse"
)

// store is what both database backends provide.
type store interface {
	cardservice.Store
	linktitle.Cache
}

var (
	_ store = (*sqlstore.DB)(nil)
	_ store = (*pgstore.DB)(nil)
)

func newApplication(opts []Option) (*application, error) {
	app := &application{}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if app.out == nil {
		app.out = os.Stdout
	}
	if app.logger == nil {
		app.logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: app.config.App.LogLevel,
		}))
	}
	return app, nil
}

func openStore(ctx context.Context, cfg *Config) (store, error) {
	switch cfg.Database.Driver {
	case DriverPostgres:
		db, err := pgstore.Open(ctx, cfg.Postgres.DSN, cfg.Postgres.MaxConns)
		if err != nil {
			return nil, fmt.Errorf("init postgres: %w", err)
		}
		return db, nil
	default:
		if dir := filepath.Dir(cfg.SQLite.Path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create data dir: %w", err)
			}
		}
		db, err := sqlstore.Open(cfg.SQLite.Path)
		if err != nil {
			return nil, fmt.Errorf("init sqlite: %w", err)
		}
		return db, nil
	}
}

// Run starts the HTTP server and, when configured, the card importer.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config
	logger := app.logger
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("database_driver", cfg.Database.Driver),
		slog.String("import_dir", cfg.Import.Dir),
		slog.String("log_level", cfg.App.LogLevel.String()))

	db, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	broker := sse.NewBroker(cfg.Events.Throttle)
	defer broker.Close()

	svc := cardservice.NewService(db,
		cardservice.WithPublisher(broker),
		cardservice.WithLogger(logger),
	)

	var imp *importer.Importer
	if cfg.Import.Dir != "" {
		imp = importer.New(svc, cfg.Import.Dir, logger)
		if _, err := imp.Sync(ctx); err != nil {
			logger.Warn("initial import failed", slog.String("error", err.Error()))
		}
	}

	titles := linktitle.NewResolver(db,
		linktitle.WithTimeout(cfg.LinkTitle.Timeout),
		linktitle.WithUserAgent(cfg.LinkTitle.UserAgent),
		linktitle.WithLogger(logger),
	)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(api.CORSMiddleware(cfg.App.HTTP.CORSOrigin))

	api.MountHealth(r, db)
	r.Mount("/api", api.NewRouter(svc, titles, broker))

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gCtx := errgroup.WithContext(ctx)

	if imp != nil && cfg.Import.Watch {
		g.Go(func() error {
			if err := imp.Watch(gCtx); err != nil {
				logger.Error("import watcher stopped", slog.String("error", err.Error()))
			}
			return nil
		})
	}

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

// errShutdown cancels the group so the watcher exits with the server.
var errShutdown = errors.New("shutdown")

// RunMCP serves the MCP tools over stdio until the client disconnects.
func RunMCP(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	// stdout carries the protocol.
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: app.config.App.LogLevel}))
	slog.SetDefault(logger)

	db, err := openStore(ctx, app.config)
	if err != nil {
		return err
	}
	defer db.Close()

	svc := cardservice.NewService(db, cardservice.WithLogger(logger))
	return mcpserver.New(svc).ServeStdio()
}

// RunImport imports the card files under dir once and reports the result.
func RunImport(ctx context.Context, dir string, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	slog.SetDefault(app.logger)

	db, err := openStore(ctx, app.config)
	if err != nil {
		return err
	}
	defer db.Close()

	svc := cardservice.NewService(db, cardservice.WithLogger(app.logger))
	rep, err := importer.New(svc, dir, app.logger).Sync(ctx)
	if err != nil {
		return fmt.Errorf("import %s: %w", dir, err)
	}
	fmt.Fprintf(app.out, "files: %d, unchanged: %d, cards: %d, failed: %d\n",
		rep.Files, rep.Unchanged, rep.Cards, rep.Failed)
	printDrift(app.out, rep.Repaired)
	if rep.Failed > 0 {
		return fmt.Errorf("%d card files failed to import", rep.Failed)
	}
	return nil
}

// RunReconcile recomputes every card's counters from the vote ledger and
// prints the cards that had drifted.
func RunReconcile(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	slog.SetDefault(app.logger)

	db, err := openStore(ctx, app.config)
	if err != nil {
		return err
	}
	defer db.Close()

	fixed, err := cardservice.NewService(db, cardservice.WithLogger(app.logger)).RecomputeCounters(ctx)
	if err != nil {
		return err
	}
	printDrift(app.out, fixed)
	return nil
}

func printDrift(w io.Writer, drift []models.Drift) {
	if len(drift) == 0 {
		fmt.Fprintln(w, "counters consistent with ledger")
		return
	}
	for _, d := range drift {
		fmt.Fprintf(w, "card %d: likes %d -> %d, dislikes %d -> %d\n",
			d.CardID, d.Likes, d.LedgerLikes, d.Dislikes, d.LedgerDislikes)
	}
}
