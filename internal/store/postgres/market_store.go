package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/yonghanchen/predictbot/internal/domain"
)

// MarketStore implements domain.MarketStore using PostgreSQL.
type MarketStore struct {
	pool *pgxpool.Pool
}

// NewMarketStore creates a MarketStore backed by the given connection pool.
func NewMarketStore(pool *pgxpool.Pool) *MarketStore {
	return &MarketStore{pool: pool}
}

const upsertMarketQuery = `
	INSERT INTO markets (
		id, condition_id, question, description, end_time,
		volume_24h, liquidity, yes_price, no_price, price_change_24h,
		yes_token_id, no_token_id, active, archived, last_updated
	) VALUES (
		$1, $2, $3, $4, $5,
		$6, $7, $8, $9, $10,
		$11, $12, $13, $14, NOW()
	)
	ON CONFLICT (id) DO UPDATE SET
		condition_id     = EXCLUDED.condition_id,
		question         = EXCLUDED.question,
		description      = EXCLUDED.description,
		end_time         = EXCLUDED.end_time,
		volume_24h       = EXCLUDED.volume_24h,
		liquidity        = EXCLUDED.liquidity,
		yes_price        = EXCLUDED.yes_price,
		no_price         = EXCLUDED.no_price,
		price_change_24h = EXCLUDED.price_change_24h,
		yes_token_id     = EXCLUDED.yes_token_id,
		no_token_id      = EXCLUDED.no_token_id,
		active           = EXCLUDED.active,
		archived         = EXCLUDED.archived,
		last_updated     = NOW()`

func upsertArgs(m domain.Market) []any {
	return []any{
		m.ID, m.ConditionID, m.Question, m.Description, m.EndTime,
		m.Volume24h, m.Liquidity, m.YesPrice, m.NoPrice, m.PriceChange24h,
		m.YesTokenID, m.NoTokenID, m.Active, m.Archived,
	}
}

// Upsert inserts or updates a single market keyed by natural ID. The
// database clock stamps last_updated so freshness is uniform across
// writers.
func (s *MarketStore) Upsert(ctx context.Context, m domain.Market) error {
	if _, err := s.pool.Exec(ctx, upsertMarketQuery, upsertArgs(m)...); err != nil {
		return fmt.Errorf("postgres: upsert market %s: %w", m.ID, err)
	}
	return nil
}

// UpsertBatch inserts or updates multiple markets in a single pgx batch.
func (s *MarketStore) UpsertBatch(ctx context.Context, markets []domain.Market) error {
	if len(markets) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, m := range markets {
		batch.Queue(upsertMarketQuery, upsertArgs(m)...)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for i := range markets {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("postgres: upsert market batch item %d (%s): %w", i, markets[i].ID, err)
		}
	}
	return nil
}

const marketCols = `id, condition_id, question, description, end_time,
	volume_24h, liquidity, yes_price, no_price, price_change_24h,
	yes_token_id, no_token_id, active, archived, last_updated`

func scanMarket(row pgx.Row) (domain.Market, error) {
	var m domain.Market
	err := row.Scan(
		&m.ID, &m.ConditionID, &m.Question, &m.Description, &m.EndTime,
		&m.Volume24h, &m.Liquidity, &m.YesPrice, &m.NoPrice, &m.PriceChange24h,
		&m.YesTokenID, &m.NoTokenID, &m.Active, &m.Archived, &m.LastUpdated,
	)
	if err != nil {
		return domain.Market{}, err
	}
	return m, nil
}

// GetByID retrieves a market by its natural ID.
func (s *MarketStore) GetByID(ctx context.Context, id string) (domain.Market, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+marketCols+` FROM markets WHERE id = $1`, id)
	m, err := scanMarket(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Market{}, domain.ErrNotFound
		}
		return domain.Market{}, fmt.Errorf("postgres: get market %s: %w", id, err)
	}
	return m, nil
}

// GetByTokenID retrieves a market by either of its outcome token IDs.
func (s *MarketStore) GetByTokenID(ctx context.Context, tokenID string) (domain.Market, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+marketCols+` FROM markets WHERE yes_token_id = $1 OR no_token_id = $1`, tokenID)
	m, err := scanMarket(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Market{}, domain.ErrNotFound
		}
		return domain.Market{}, fmt.Errorf("postgres: get market by token %s: %w", tokenID, err)
	}
	return m, nil
}

// ListActive returns up to limit active, non-archived markets ordered by
// end time descending.
func (s *MarketStore) ListActive(ctx context.Context, limit int) ([]domain.Market, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+marketCols+` FROM markets
		 WHERE active AND NOT archived
		 ORDER BY end_time DESC
		 LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list active markets: %w", err)
	}
	defer rows.Close()

	var markets []domain.Market
	for rows.Next() {
		m, err := scanMarket(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan market row: %w", err)
		}
		markets = append(markets, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterate markets: %w", err)
	}
	return markets, nil
}

// Count returns the total number of persisted markets.
func (s *MarketStore) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM markets`).Scan(&count); err != nil {
		return 0, fmt.Errorf("postgres: count markets: %w", err)
	}
	return count, nil
}
