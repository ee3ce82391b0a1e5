package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"churnlens/internal/config"
	"churnlens/internal/infrastructure"
	"churnlens/internal/services"
	handlers "churnlens/internal/transport/http"
)

// Version is the dashboard version reported by the health endpoint.
const Version = "1.2.0"

// Application wires configuration, services, and the HTTP transport into one
// runnable dashboard server.
type Application struct {
	cfg    *config.Config
	logger *slog.Logger
	router *chi.Mux
	server *http.Server
	hub    *handlers.ProgressHub
	store  *services.ReportStore
}

// New builds the application from configuration. A missing report workbook is
// not fatal; the dashboard starts empty and fills on the first analysis run.
func New(cfg *config.Config) (*Application, error) {
	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	logger.Info("dashboard starting",
		slog.String("version", Version),
		slog.Int("port", cfg.Server.Port))

	workbookPath := filepath.Join(cfg.Output.Dir, cfg.Output.WorkbookName)
	store := services.NewReportStore(workbookPath, logger)
	if err := store.Reload(context.Background()); err != nil {
		logger.Warn("no report workbook loaded at startup",
			slog.String("path", workbookPath),
			slog.String("error", err.Error()))
	}

	hub := handlers.NewProgressHub(logger)
	analysis := services.NewAnalysisService(cfg, logger, hub)

	a := &Application{
		cfg:    cfg,
		logger: logger,
		hub:    hub,
		store:  store,
	}
	a.setupRouter(analysis)

	a.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      a.router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	return a, nil
}

// setupRouter configures the HTTP router with all routes.
func (a *Application) setupRouter(analysis *services.AnalysisService) {
	r := chi.NewRouter()

	// Keep the middleware stack minimal; wrapping the ResponseWriter breaks
	// the websocket upgrade, so logging stays out of the /ws path.
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Use(render.SetContentType(render.ContentTypeJSON))

		r.Mount("/health", handlers.NewHealthHandler(a.store, Version).Routes())
		r.Mount("/retention", handlers.NewRetentionHandler(a.store, a.logger).Routes())
		r.Mount("/analysis", handlers.NewAnalysisHandler(analysis, a.store, a.hub, a.logger).Routes())
	})

	r.Handle("/metrics", promhttp.Handler())

	a.router = r
}

// Router exposes the assembled router, mainly for tests.
func (a *Application) Router() *chi.Mux {
	return a.router
}

// Run serves HTTP until ctx is cancelled, then shuts down gracefully within
// the configured timeout.
func (a *Application) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.logger.Info("http server listening", slog.String("addr", a.server.Addr))
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout())
		defer cancel()

		a.logger.Info("shutting down")
		a.hub.Close()
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown: %w", err)
		}
		return nil
	})

	err := g.Wait()
	infrastructure.CloseLogFile()
	return err
}

func (a *Application) shutdownTimeout() time.Duration {
	if a.cfg.Server.ShutdownTimeout > 0 {
		return a.cfg.Server.ShutdownTimeout
	}
	return 30 * time.Second
}
