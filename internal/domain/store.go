package domain

import (
	"context"
	"time"
)

// MarketStore is the persistent market store. The upsert key is the natural
// market ID; upserts are expected to be atomic per key so that concurrent
// refreshes resolve last-write-wins on LastUpdated.
type MarketStore interface {
	Upsert(ctx context.Context, market Market) error
	UpsertBatch(ctx context.Context, markets []Market) error
	GetByID(ctx context.Context, id string) (Market, error)
	GetByTokenID(ctx context.Context, tokenID string) (Market, error)
	// ListActive returns up to limit active, non-archived markets ordered
	// by end time descending (most recently ending first).
	ListActive(ctx context.Context, limit int) ([]Market, error)
	Count(ctx context.Context) (int64, error)
}

// Deposit is a single observed balance increase on a custodial wallet.
type Deposit struct {
	ID         int64
	Wallet     string
	Token      string
	Amount     float64
	ObservedAt time.Time
}

// DepositStore persists observed custodial-wallet deposits.
type DepositStore interface {
	Insert(ctx context.Context, dep Deposit) error
	ListByWallet(ctx context.Context, wallet string, limit int) ([]Deposit, error)
	LastBalance(ctx context.Context, wallet string) (float64, error)
	SetBalance(ctx context.Context, wallet string, balance float64, at time.Time) error
}
