package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/yonghanchen/predictbot/internal/config"
)

// App owns the wired dependencies and runs the process in the configured
// mode until the context is cancelled.
type App struct {
	cfg     *config.Config
	logger  *slog.Logger
	deps    *Dependencies
	cleanup func()
}

// New wires the application from the configuration.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	deps, cleanup, err := Wire(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	return &App{
		cfg:     cfg,
		logger:  logger,
		deps:    deps,
		cleanup: cleanup,
	}, nil
}

// Run executes the configured mode and blocks until shutdown.
func (a *App) Run(ctx context.Context) error {
	a.logger.InfoContext(ctx, "starting", slog.String("mode", a.cfg.Mode))

	switch a.cfg.Mode {
	case "serve":
		return a.runServe(ctx)
	case "scrape":
		return a.runScrape(ctx)
	case "monitor":
		return a.runMonitor(ctx)
	case "full":
		return a.runFull(ctx)
	default:
		return fmt.Errorf("app: unknown mode %q", a.cfg.Mode)
	}
}

// Close releases every wired resource in reverse construction order.
func (a *App) Close() {
	if a.cleanup != nil {
		a.cleanup()
	}
}
