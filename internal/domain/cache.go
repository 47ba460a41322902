package domain

import (
	"context"
	"time"
)

// MarketCache provides fast single-market lookups. It is a read-through
// convenience layer; the freshness policy that governs list refreshes lives
// in the service package and works against MarketStore directly.
type MarketCache interface {
	Set(ctx context.Context, market Market) error
	Get(ctx context.Context, id string) (Market, error)
	GetByToken(ctx context.Context, tokenID string) (Market, error)
	Invalidate(ctx context.Context, id string) error
}

// PriceCache provides fast access to the latest observed prices per token.
type PriceCache interface {
	SetPrice(ctx context.Context, tokenID string, price float64, ts time.Time) error
	GetPrice(ctx context.Context, tokenID string) (float64, time.Time, error)
}

// RateLimiter provides distributed rate limiting for upstream API calls.
// Allow answers immediately; Wait blocks until the request fits in the
// window or ctx is cancelled.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
	Wait(ctx context.Context, key string, limit int, window time.Duration) error
}
