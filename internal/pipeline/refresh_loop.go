// Package pipeline runs the periodic background jobs: the market refresh
// loop and snapshot archival.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/yonghanchen/predictbot/internal/domain"
	"github.com/yonghanchen/predictbot/internal/service"
)

// Upstream budget for scrape runs, shared across processes through the
// distributed limiter.
const (
	scrapeLimiterKey    = "scrape:polymarket"
	scrapeLimiterBudget = 30
	scrapeLimiterWindow = time.Minute
)

// MarketRefresher produces a batch of tradable markets. *service.MarketService
// satisfies it.
type MarketRefresher interface {
	Markets(ctx context.Context, limit int) (service.Result, error)
}

// FallbackNotifier receives an alert when a refresh run lands on the venue
// fallback path.
type FallbackNotifier interface {
	Notify(ctx context.Context, event, title, message string) error
}

// RefreshLoop runs the market refresh cycle on a fixed interval so the
// store stays warm and callers mostly hit the fresh path. Each run gets a
// UUID for log correlation.
type RefreshLoop struct {
	refresher MarketRefresher
	notifier  FallbackNotifier
	limiter   domain.RateLimiter
	limit     int
	interval  time.Duration
	logger    *slog.Logger
}

// NewRefreshLoop creates a RefreshLoop. notifier and limiter may be nil;
// with a limiter, each run first waits for headroom in the shared scrape
// budget.
func NewRefreshLoop(refresher MarketRefresher, notifier FallbackNotifier, limiter domain.RateLimiter, limit int, interval time.Duration, logger *slog.Logger) *RefreshLoop {
	if limit <= 0 {
		limit = 20
	}
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &RefreshLoop{
		refresher: refresher,
		notifier:  notifier,
		limiter:   limiter,
		limit:     limit,
		interval:  interval,
		logger:    logger.With(slog.String("component", "refresh_loop")),
	}
}

// Run executes one refresh immediately, then repeats on the interval until
// ctx is cancelled. Individual run failures are logged, not fatal.
func (l *RefreshLoop) Run(ctx context.Context) error {
	l.runOnce(ctx)

	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			l.logger.InfoContext(ctx, "refresh loop stopped")
			return ctx.Err()
		case <-ticker.C:
			l.runOnce(ctx)
		}
	}
}

func (l *RefreshLoop) runOnce(ctx context.Context) {
	runID := uuid.NewString()
	log := l.logger.With(slog.String("run_id", runID))

	if l.limiter != nil {
		if err := l.limiter.Wait(ctx, scrapeLimiterKey, scrapeLimiterBudget, scrapeLimiterWindow); err != nil {
			log.WarnContext(ctx, "refresh run skipped, rate limiter wait failed",
				slog.String("error", err.Error()),
			)
			return
		}
	}

	start := time.Now()
	res, err := l.refresher.Markets(ctx, l.limit)
	if err != nil {
		log.ErrorContext(ctx, "refresh run failed",
			slog.Int("attempts", res.Attempts),
			slog.String("error", err.Error()),
		)
		return
	}

	log.InfoContext(ctx, "refresh run complete",
		slog.String("outcome", string(res.Outcome)),
		slog.Int("markets", len(res.Markets)),
		slog.Int("attempts", res.Attempts),
		slog.Duration("elapsed", time.Since(start)),
	)

	if res.Outcome == service.OutcomeFallback && l.notifier != nil {
		msg := fmt.Sprintf("metadata API unreachable, %d markets served from venue listing (run %s)",
			len(res.Markets), runID)
		if err := l.notifier.Notify(ctx, "refresh_fallback", "Refresh fallback", msg); err != nil {
			log.WarnContext(ctx, "fallback notification failed", slog.String("error", err.Error()))
		}
	}
}
