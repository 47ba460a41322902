package service

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/yonghanchen/predictbot/internal/domain"
	"github.com/yonghanchen/predictbot/internal/platform/polymarket"
)

// OrderBookSource is the venue-side API the enhancer cross-references:
// keyed by settlement-condition ID, it is the only source of tradable token
// IDs and live order-book prices.
type OrderBookSource interface {
	GetMarket(ctx context.Context, conditionID string) (polymarket.ClobMarket, error)
	GetMarketsPage(ctx context.Context, cursor string) (polymarket.ClobMarketsPage, error)
}

const (
	// defaultSubBatchSize bounds how many venue lookups run concurrently.
	defaultSubBatchSize = 5
	// defaultSubBatchDelay is the pause between sub-batches, to stay under
	// the venue's rate limits.
	defaultSubBatchDelay = 250 * time.Millisecond
)

// Enhancer attaches tradable token IDs and live prices to metadata-only
// market records by cross-referencing the order-book venue, and writes the
// successfully enhanced records through to the persistent store.
type Enhancer struct {
	books      OrderBookSource
	store      domain.MarketStore
	batchSize  int
	batchDelay time.Duration
	logger     *slog.Logger
}

// NewEnhancer creates an Enhancer. batchSize and batchDelay fall back to
// the package defaults when zero.
func NewEnhancer(books OrderBookSource, store domain.MarketStore, batchSize int, batchDelay time.Duration, logger *slog.Logger) *Enhancer {
	if batchSize <= 0 {
		batchSize = defaultSubBatchSize
	}
	if batchDelay <= 0 {
		batchDelay = defaultSubBatchDelay
	}
	return &Enhancer{
		books:      books,
		store:      store,
		batchSize:  batchSize,
		batchDelay: batchDelay,
		logger:     logger.With(slog.String("component", "enhancer")),
	}
}

// EnhanceBatch cross-references every candidate against the order-book
// venue and returns one entry per input candidate, in input order. A
// candidate whose venue lookup fails, or whose condition ID cannot be
// resolved, comes back unchanged rather than aborting the batch; callers
// filter separately for tradability.
//
// Candidates are processed in fixed-size sub-batches whose venue lookups
// run concurrently; sub-batch k+1 does not start before every lookup of
// sub-batch k has settled. Each market that ends up fully tradable is
// upserted into the store by its natural ID; individual upsert failures are
// logged and skipped.
func (e *Enhancer) EnhanceBatch(ctx context.Context, batch []domain.Market) []domain.Market {
	if len(batch) == 0 {
		return nil
	}

	// Condition IDs already known anywhere in the metadata batch, so a
	// candidate stripped of its own ID can still be resolved.
	conditionByID := make(map[string]string, len(batch))
	for _, m := range batch {
		if m.ConditionID != "" {
			conditionByID[m.ID] = m.ConditionID
		}
	}

	out := make([]domain.Market, len(batch))
	for start := 0; start < len(batch); start += e.batchSize {
		end := min(start+e.batchSize, len(batch))

		g, gctx := errgroup.WithContext(ctx)
		for i := start; i < end; i++ {
			g.Go(func() error {
				out[i] = e.enhanceOne(gctx, batch[i], conditionByID)
				return nil
			})
		}
		// Workers never return errors; per-candidate failures degrade to
		// the unenhanced candidate instead.
		_ = g.Wait()

		if end < len(batch) {
			select {
			case <-ctx.Done():
				copy(out[end:], batch[end:])
				return out
			case <-time.After(e.batchDelay):
			}
		}
	}

	e.persist(ctx, out)
	return out
}

// enhanceOne resolves a single candidate against the venue. On any failure
// the original candidate is returned untouched.
func (e *Enhancer) enhanceOne(ctx context.Context, cand domain.Market, conditionByID map[string]string) domain.Market {
	conditionID := cand.ConditionID
	if conditionID == "" {
		conditionID = conditionByID[cand.ID]
	}
	if conditionID == "" {
		return cand
	}

	venue, err := e.books.GetMarket(ctx, conditionID)
	if err != nil {
		e.logger.WarnContext(ctx, "venue lookup failed, keeping candidate unenhanced",
			slog.String("market_id", cand.ID),
			slog.String("condition_id", conditionID),
			slog.String("error", err.Error()),
		)
		return cand
	}

	m := cand
	m.ConditionID = conditionID

	yes, no := MatchOutcomeTokens(venue.Tokens)
	if yes != nil {
		m.YesTokenID = yes.TokenID
		if p := float64(yes.Price); p > 0 {
			m.YesPrice = p
		}
	}
	if no != nil {
		m.NoTokenID = no.TokenID
		if p := float64(no.Price); p > 0 {
			m.NoPrice = p
		}
	}

	// Top-of-book midpoint beats the catalog price for the yes side; when
	// the venue sends no book the prices above stand as-is.
	if mid, ok := venue.OrderBook.Midpoint(); ok {
		m.YesPrice = mid
	}

	if v := float64(venue.Volume24h); v > 0 {
		m.Volume24h = v
	}
	if l := float64(venue.Liquidity); l > 0 {
		m.Liquidity = l
	}

	return m
}

// persist upserts every successfully enhanced (tradable) market. Upsert
// failures affect only the record they belong to.
func (e *Enhancer) persist(ctx context.Context, markets []domain.Market) {
	for _, m := range markets {
		if !m.Valid() {
			continue
		}
		if err := e.store.Upsert(ctx, m); err != nil {
			e.logger.WarnContext(ctx, "market upsert failed",
				slog.String("market_id", m.ID),
				slog.String("error", err.Error()),
			)
		}
	}
}
