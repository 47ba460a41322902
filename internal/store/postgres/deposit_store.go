package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/yonghanchen/predictbot/internal/domain"
)

// DepositStore implements domain.DepositStore using PostgreSQL.
type DepositStore struct {
	pool *pgxpool.Pool
}

// NewDepositStore creates a DepositStore backed by the given connection pool.
func NewDepositStore(pool *pgxpool.Pool) *DepositStore {
	return &DepositStore{pool: pool}
}

// Insert records one observed deposit.
func (s *DepositStore) Insert(ctx context.Context, dep domain.Deposit) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO deposits (wallet, token, amount, observed_at)
		 VALUES ($1, $2, $3, $4)`,
		dep.Wallet, dep.Token, dep.Amount, dep.ObservedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert deposit for %s: %w", dep.Wallet, err)
	}
	return nil
}

// ListByWallet returns the most recent deposits for a wallet, newest first.
func (s *DepositStore) ListByWallet(ctx context.Context, wallet string, limit int) ([]domain.Deposit, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, wallet, token, amount, observed_at FROM deposits
		 WHERE wallet = $1
		 ORDER BY observed_at DESC
		 LIMIT $2`, wallet, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list deposits for %s: %w", wallet, err)
	}
	defer rows.Close()

	var deposits []domain.Deposit
	for rows.Next() {
		var d domain.Deposit
		if err := rows.Scan(&d.ID, &d.Wallet, &d.Token, &d.Amount, &d.ObservedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan deposit row: %w", err)
		}
		deposits = append(deposits, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterate deposits: %w", err)
	}
	return deposits, nil
}

// LastBalance returns the last recorded balance for a wallet, or
// domain.ErrNotFound when the wallet has never been observed.
func (s *DepositStore) LastBalance(ctx context.Context, wallet string) (float64, error) {
	var balance float64
	err := s.pool.QueryRow(ctx,
		`SELECT balance FROM wallet_balances WHERE wallet = $1`, wallet,
	).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, domain.ErrNotFound
		}
		return 0, fmt.Errorf("postgres: last balance for %s: %w", wallet, err)
	}
	return balance, nil
}

// SetBalance upserts the current observed balance for a wallet.
func (s *DepositStore) SetBalance(ctx context.Context, wallet string, balance float64, at time.Time) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO wallet_balances (wallet, balance, observed_at)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (wallet) DO UPDATE SET
			balance     = EXCLUDED.balance,
			observed_at = EXCLUDED.observed_at`,
		wallet, balance, at,
	)
	if err != nil {
		return fmt.Errorf("postgres: set balance for %s: %w", wallet, err)
	}
	return nil
}
