package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"
)

// Runner is a long-running job that stops on context cancellation.
type Runner interface {
	Run(ctx context.Context) error
}

// Orchestrator runs the configured background jobs concurrently. A
// non-context error from any job cancels the rest.
type Orchestrator struct {
	jobs   map[string]Runner
	logger *slog.Logger
}

// NewOrchestrator creates an empty Orchestrator.
func NewOrchestrator(logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		jobs:   make(map[string]Runner),
		logger: logger.With(slog.String("component", "orchestrator")),
	}
}

// Add registers a named job. Nil runners are ignored so callers can pass
// optional components straight through.
func (o *Orchestrator) Add(name string, r Runner) {
	if r == nil {
		return
	}
	o.jobs[name] = r
}

// Run starts every registered job in an errgroup and blocks until they
// finish or one of them fails.
func (o *Orchestrator) Run(ctx context.Context) error {
	if len(o.jobs) == 0 {
		o.logger.InfoContext(ctx, "no background jobs configured")
		<-ctx.Done()
		return ctx.Err()
	}

	g, ctx := errgroup.WithContext(ctx)
	for name, job := range o.jobs {
		o.logger.InfoContext(ctx, "starting job", slog.String("job", name))
		g.Go(func() error {
			err := job.Run(ctx)
			if err == nil || ctx.Err() != nil {
				return nil // finished or clean shutdown
			}
			return fmt.Errorf("%s: %w", name, err)
		})
	}

	if err := g.Wait(); err != nil {
		o.logger.ErrorContext(ctx, "orchestrator stopped with error", slog.String("error", err.Error()))
		return err
	}
	o.logger.InfoContext(ctx, "orchestrator stopped")
	return nil
}
