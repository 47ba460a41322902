package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/yonghanchen/predictbot/internal/bot"
	"github.com/yonghanchen/predictbot/internal/feed"
	"github.com/yonghanchen/predictbot/internal/pipeline"
	"github.com/yonghanchen/predictbot/internal/server"
	"github.com/yonghanchen/predictbot/internal/server/handler"
)

const shutdownTimeout = 10 * time.Second

// runServe starts the HTTP API and, when configured, the Telegram command
// bot. It blocks until the context is cancelled.
func (a *App) runServe(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return a.serveHTTP(ctx) })

	if a.cfg.Bot.Enabled && a.cfg.Bot.Token != "" {
		tb, err := bot.NewTelegramBot(a.cfg.Bot.Token, a.deps.MarketService, a.cfg.Bot.AllowedChatIDs, a.logger)
		if err != nil {
			return fmt.Errorf("app: telegram bot: %w", err)
		}
		g.Go(func() error { return tb.Run(ctx) })
	}

	return g.Wait()
}

// runScrape runs the background refresh pipeline: the market refresh loop,
// the live price feed, and the snapshot archiver when enabled.
func (a *App) runScrape(ctx context.Context) error {
	orch := pipeline.NewOrchestrator(a.logger)

	orch.Add("refresh", pipeline.NewRefreshLoop(
		a.deps.MarketService, a.deps.Notifier, a.deps.RateLimiter,
		a.cfg.Pipeline.ScrapeLimit, a.cfg.Pipeline.ScrapeInterval.Duration,
		a.logger,
	))

	if a.deps.Archiver != nil {
		orch.Add("archive", pipeline.NewArchiveLoop(
			a.deps.Archiver, a.cfg.Pipeline.ArchiveInterval.Duration, a.logger,
		))
	}

	if f := a.priceFeed(ctx); f != nil {
		orch.Add("price_feed", f)
	}

	return orch.Run(ctx)
}

// runMonitor runs only the on-chain deposit monitor.
func (a *App) runMonitor(ctx context.Context) error {
	if a.deps.DepositMonitor == nil {
		return fmt.Errorf("app: monitor mode requires deposits.enabled")
	}
	return a.deps.DepositMonitor.Run(ctx)
}

// runFull runs every enabled component together.
func (a *App) runFull(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	if a.cfg.Server.Enabled {
		g.Go(func() error { return a.runServe(ctx) })
	}
	if a.cfg.Pipeline.Enabled {
		g.Go(func() error { return a.runScrape(ctx) })
	}
	if a.deps.DepositMonitor != nil {
		g.Go(func() error { return a.deps.DepositMonitor.Run(ctx) })
	}

	return g.Wait()
}

// serveHTTP starts the API server and shuts it down when ctx is cancelled.
func (a *App) serveHTTP(ctx context.Context) error {
	handlers := server.Handlers{
		Health:  handler.NewHealthHandler(a.deps.RedisClient, a.logger),
		Markets: handler.NewMarketHandler(a.deps.MarketService, a.logger),
	}
	if a.cfg.Deposits.Enabled {
		handlers.Deposits = handler.NewDepositHandler(a.deps.DepositStore, a.cfg.Deposits.Wallet, a.logger)
	}

	srv := server.NewServer(server.Config{
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
		APIKey:      a.cfg.Server.APIKey,
	}, handlers, a.logger)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("app: http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("http shutdown failed", slog.String("error", err.Error()))
	}
	return ctx.Err()
}

// priceFeed builds a feed over the websocket host for the tokens of the
// currently active markets. Returns nil when there is nothing to stream.
func (a *App) priceFeed(ctx context.Context) *feed.PriceFeed {
	markets, err := a.deps.MarketStore.ListActive(ctx, a.cfg.Pipeline.ScrapeLimit)
	if err != nil {
		a.logger.Warn("price feed disabled, listing active markets failed",
			slog.String("error", err.Error()))
		return nil
	}

	var tokenIDs []string
	for _, m := range markets {
		if m.YesTokenID != "" {
			tokenIDs = append(tokenIDs, m.YesTokenID)
		}
		if m.NoTokenID != "" {
			tokenIDs = append(tokenIDs, m.NoTokenID)
		}
	}
	if len(tokenIDs) == 0 {
		a.logger.Info("price feed disabled, no active market tokens")
		return nil
	}

	return feed.NewPriceFeed(a.cfg.Polymarket.WsHost, tokenIDs, a.deps.PriceCache, a.logger)
}
