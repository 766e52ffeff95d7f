package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"pivision/internal/config"
	"pivision/internal/eventlog"
	"pivision/internal/hub"
	"pivision/internal/logger"
	"pivision/internal/routes"
	"pivision/internal/store"
)

// App wires the presentation tier: frame store, activity log, live hub and
// the HTTP server.
type App struct {
	cfg      *config.Config
	logger   *logger.Logger
	frames   *store.Store
	activity *eventlog.Log
	live     *hub.Hub
	server   *http.Server
}

// New builds the application. Storage failures here are startup-fatal: a
// server that cannot persist frames cannot serve a stream.
func New(cfg *config.Config, log *logger.Logger) (*App, error) {
	frames, err := store.New(cfg.LatestFramePath(), cfg.SnapshotDirectory())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize frame store: %w", err)
	}

	activity, err := eventlog.Open(cfg.DatabasePath())
	if err != nil {
		return nil, fmt.Errorf("failed to open activity log: %w", err)
	}

	live := hub.New(log)

	a := &App{
		cfg:      cfg,
		logger:   log,
		frames:   frames,
		activity: activity,
		live:     live,
	}

	a.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: routes.Setup(frames, activity, live, cfg, log),
	}

	return a, nil
}

// Run serves until ctx is cancelled, then shuts down gracefully. In-flight
// slot writes are atomic by construction, so shutdown cannot tear a frame.
func (a *App) Run(ctx context.Context) error {
	go a.live.Run()

	a.logger.Info("Camera dashboard server listening on :%d", a.cfg.Port)
	a.logger.Info("Data directory: %s", a.cfg.DataDirectory)

	errCh := make(chan error, 1)
	go func() {
		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	a.logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.server.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("Server shutdown error: %v", err)
	}

	a.live.Stop()
	if err := a.activity.Close(); err != nil {
		a.logger.Error("Failed to close activity log: %v", err)
	}

	a.logger.Info("Server stopped")
	return nil
}
