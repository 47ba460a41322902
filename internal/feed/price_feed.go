// Package feed streams live market data from the CLOB WebSocket into the
// price cache.
package feed

import (
	"context"
	"log/slog"
	"time"

	"github.com/yonghanchen/predictbot/internal/domain"
	"github.com/yonghanchen/predictbot/internal/platform/polymarket"
)

const reconnectDelay = 2 * time.Second

// PriceFeed subscribes to book and price_change events for a set of token
// IDs and writes the resulting prices into the price cache. It reconnects
// with a fixed delay when the connection drops.
type PriceFeed struct {
	wsURL    string
	tokenIDs []string
	prices   domain.PriceCache
	logger   *slog.Logger
}

// NewPriceFeed creates a PriceFeed for the given token IDs.
func NewPriceFeed(wsURL string, tokenIDs []string, prices domain.PriceCache, logger *slog.Logger) *PriceFeed {
	return &PriceFeed{
		wsURL:    wsURL,
		tokenIDs: tokenIDs,
		prices:   prices,
		logger:   logger.With(slog.String("component", "price_feed")),
	}
}

// Run connects and streams until ctx is cancelled.
func (f *PriceFeed) Run(ctx context.Context) error {
	if len(f.tokenIDs) == 0 {
		f.logger.InfoContext(ctx, "no token IDs to subscribe, feed idle")
		<-ctx.Done()
		return ctx.Err()
	}

	for {
		err := f.runConnection(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		f.logger.WarnContext(ctx, "ws feed disconnected, reconnecting",
			slog.String("error", errString(err)),
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(reconnectDelay):
		}
	}
}

// runConnection holds one WebSocket session: connect, subscribe, then block
// until the connection ends or ctx is cancelled.
func (f *PriceFeed) runConnection(ctx context.Context) error {
	client := polymarket.NewWSClient(f.wsURL)
	defer client.Close()

	client.OnBookUpdate(func(snap domain.OrderbookSnapshot) {
		if snap.MidPrice <= 0 {
			return
		}
		if err := f.prices.SetPrice(context.Background(), snap.TokenID, snap.MidPrice, snap.Timestamp); err != nil {
			f.logger.WarnContext(ctx, "price cache set failed",
				slog.String("token_id", snap.TokenID),
				slog.String("error", err.Error()),
			)
		}
	})
	client.OnPriceChange(func(change domain.PriceChange) {
		if change.Price <= 0 {
			return
		}
		if err := f.prices.SetPrice(context.Background(), change.TokenID, change.Price, change.Timestamp); err != nil {
			f.logger.WarnContext(ctx, "price cache set failed",
				slog.String("token_id", change.TokenID),
				slog.String("error", err.Error()),
			)
		}
	})

	if err := client.Connect(ctx); err != nil {
		return err
	}
	if err := client.Subscribe(ctx, f.tokenIDs); err != nil {
		return err
	}
	f.logger.InfoContext(ctx, "ws feed subscribed", slog.Int("tokens", len(f.tokenIDs)))

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-client.Done():
		return domain.ErrWSDisconnect
	}
}

func errString(err error) string {
	if err == nil {
		return "connection closed"
	}
	return err.Error()
}
