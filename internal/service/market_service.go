// Package service contains the market reconciliation core: the enhancer
// that merges the two upstream schemas, and the market service that decides
// between serving the persistent store and triggering a live refresh.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/yonghanchen/predictbot/internal/domain"
	"github.com/yonghanchen/predictbot/internal/platform/polymarket"
)

// MetadataSource is the discovery-side API: market questions, dates, and
// 24h metrics, but never tradable token IDs.
type MetadataSource interface {
	ListActiveMarkets(ctx context.Context, limit, offset int) ([]domain.Market, error)
}

// Staleness selects how the freshness check treats a partially stale store
// batch.
type Staleness string

const (
	// StalenessBatch invalidates the whole batch when any single record is
	// stale. Conservative default.
	StalenessBatch Staleness = "batch"
	// StalenessRecord drops only the stale records and keeps serving the
	// fresh remainder.
	StalenessRecord Staleness = "record"
)

// Policy holds the tunables of the refresh cycle. The zero value is usable;
// zero fields fall back to the defaults below.
type Policy struct {
	// TTL is the maximum age of a stored record before it counts as stale.
	TTL time.Duration
	// Staleness selects batch-level or per-record freshness.
	Staleness Staleness
	// MaxRetries is the number of additional live-fetch attempts after the
	// first (2 retries = 3 attempts total).
	MaxRetries int
	// StoreFetchCap bounds the over-fetch read from the store.
	StoreFetchCap int
	// FallbackPageCap bounds how many venue listing pages the fallback
	// path will walk.
	FallbackPageCap int
}

const (
	defaultTTL             = 5 * time.Minute
	defaultMaxRetries      = 2
	defaultStoreFetchCap   = 100
	defaultFallbackPageCap = 5
)

func (p Policy) withDefaults() Policy {
	if p.TTL <= 0 {
		p.TTL = defaultTTL
	}
	if p.Staleness == "" {
		p.Staleness = StalenessBatch
	}
	if p.MaxRetries < 0 {
		p.MaxRetries = 0
	} else if p.MaxRetries == 0 {
		p.MaxRetries = defaultMaxRetries
	}
	if p.StoreFetchCap <= 0 {
		p.StoreFetchCap = defaultStoreFetchCap
	}
	if p.FallbackPageCap <= 0 {
		p.FallbackPageCap = defaultFallbackPageCap
	}
	return p
}

// Outcome tags which path produced a result set.
type Outcome string

const (
	// OutcomeStore: every stored record was fresh and fully enhanced.
	OutcomeStore Outcome = "store"
	// OutcomeEnhanced: store was fresh but some records needed a partial
	// enhancement pass.
	OutcomeEnhanced Outcome = "enhanced"
	// OutcomeLive: a live fetch filled the request.
	OutcomeLive Outcome = "live"
	// OutcomePartial: attempts exhausted; best-effort under-filled set.
	OutcomePartial Outcome = "partial"
	// OutcomeFallback: metadata source down; markets derived from the
	// venue's own listing. Exempt from the positive-price guarantee.
	OutcomeFallback Outcome = "fallback"
)

// Result is the tagged outcome of one market request.
type Result struct {
	Markets  []domain.Market
	Outcome  Outcome
	Attempts int
}

// MarketService serves "give me N tradable markets" requests. Per request
// it decides between the persistent store and a live refresh using the
// freshness policy, delegates schema merging to the Enhancer, and bounds
// retries when a live pass comes back under-filled.
type MarketService struct {
	store    domain.MarketStore
	cache    domain.MarketCache
	meta     MetadataSource
	books    OrderBookSource
	enhancer *Enhancer
	policy   Policy
	logger   *slog.Logger

	// now is swapped out in tests.
	now func() time.Time
}

// NewMarketService creates a MarketService. cache may be nil, in which case
// point lookups go straight to the store.
func NewMarketService(
	store domain.MarketStore,
	cache domain.MarketCache,
	meta MetadataSource,
	books OrderBookSource,
	enhancer *Enhancer,
	policy Policy,
	logger *slog.Logger,
) *MarketService {
	return &MarketService{
		store:    store,
		cache:    cache,
		meta:     meta,
		books:    books,
		enhancer: enhancer,
		policy:   policy.withDefaults(),
		logger:   logger.With(slog.String("component", "market_service")),
		now:      time.Now,
	}
}

// Markets returns up to limit tradable markets. Apart from the fallback
// outcome, every returned market has both token IDs resolved and both
// prices strictly positive.
func (s *MarketService) Markets(ctx context.Context, limit int) (Result, error) {
	if limit <= 0 {
		return Result{}, fmt.Errorf("market_service: limit must be positive, got %d", limit)
	}

	stored := s.checkStore(ctx, limit)
	if len(stored) == 0 {
		return s.fetchLive(ctx, limit)
	}

	incomplete := 0
	for _, m := range stored {
		if !m.Enhanced() {
			incomplete++
		}
	}
	if incomplete == 0 {
		return Result{Markets: cap2(stored, limit), Outcome: OutcomeStore}, nil
	}

	return s.partialEnhance(ctx, stored, limit), nil
}

// checkStore reads the over-fetched active listing and applies the
// freshness policy. It returns nil when the store cannot serve the request
// (empty, unreadable, or stale under the configured granularity), which
// sends the caller down the live-fetch path.
func (s *MarketService) checkStore(ctx context.Context, limit int) []domain.Market {
	fetch := limit * 2
	if fetch > s.policy.StoreFetchCap {
		fetch = s.policy.StoreFetchCap
	}
	if fetch < limit {
		fetch = limit
	}

	stored, err := s.store.ListActive(ctx, fetch)
	if err != nil {
		s.logger.WarnContext(ctx, "store read failed, falling through to live fetch",
			slog.String("error", err.Error()),
		)
		return nil
	}
	if len(stored) == 0 {
		return nil
	}

	now := s.now()
	switch s.policy.Staleness {
	case StalenessRecord:
		fresh := make([]domain.Market, 0, len(stored))
		for _, m := range stored {
			if m.Fresh(now, s.policy.TTL) {
				fresh = append(fresh, m)
			}
		}
		return fresh
	default:
		// One stale record invalidates the whole batch.
		for _, m := range stored {
			if !m.Fresh(now, s.policy.TTL) {
				return nil
			}
		}
		return stored
	}
}

// partialEnhance re-runs the enhancer over exactly the records missing
// token IDs and splices the results back into the fresh batch.
func (s *MarketService) partialEnhance(ctx context.Context, stored []domain.Market, limit int) Result {
	var missing []domain.Market
	for _, m := range stored {
		if !m.Enhanced() {
			missing = append(missing, m)
		}
	}

	enhanced := s.enhancer.EnhanceBatch(ctx, missing)
	byID := make(map[string]domain.Market, len(enhanced))
	for _, m := range enhanced {
		byID[m.ID] = m
	}

	merged := make([]domain.Market, 0, len(stored))
	for _, m := range stored {
		if e, ok := byID[m.ID]; ok {
			merged = append(merged, e)
		} else {
			merged = append(merged, m)
		}
	}

	s.logger.InfoContext(ctx, "partial enhancement pass complete",
		slog.Int("stored", len(stored)),
		slog.Int("enhanced", len(missing)),
	)
	return Result{Markets: cap2(merged, limit), Outcome: OutcomeEnhanced}
}

// fetchLive runs the bounded fetch-and-enhance cycle against the metadata
// source. Retries advance the pagination offset by limit*attempt so each
// pass explores new candidates. An under-filled final pass returns the
// best-effort set; only a hard upstream failure on the final attempt (with
// the venue-listing failover also down) surfaces an error.
func (s *MarketService) fetchLive(ctx context.Context, limit int) (Result, error) {
	maxRetries := s.policy.MaxRetries

	// Valid markets accumulate across attempts: each pass explores a new
	// page, so a market resolved early must survive later passes that come
	// back empty.
	var valid []domain.Market
	seen := make(map[string]bool)
	attempts := 0
	for attempt := 0; attempt <= maxRetries; attempt++ {
		attempts++

		batch, err := s.meta.ListActiveMarkets(ctx, limit, limit*attempt)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return Result{Attempts: attempts}, fmt.Errorf("market_service: metadata fetch: %w", err)
			}
			if attempt < maxRetries {
				s.logger.WarnContext(ctx, "metadata fetch failed, retrying",
					slog.Int("attempt", attempts),
					slog.String("error", err.Error()),
				)
				continue
			}
			// Final attempt: fail over to the venue's own listing. If the
			// venue is down too, the metadata error is the one that
			// propagates.
			fallback, fbErr := s.fallbackFromVenue(ctx, limit)
			if fbErr != nil {
				s.logger.ErrorContext(ctx, "metadata source and venue fallback both failed",
					slog.String("metadata_error", err.Error()),
					slog.String("fallback_error", fbErr.Error()),
				)
				return Result{Attempts: attempts}, fmt.Errorf("market_service: metadata fetch: %w", err)
			}
			return Result{Markets: fallback, Outcome: OutcomeFallback, Attempts: attempts}, nil
		}

		enhanced := s.enhancer.EnhanceBatch(ctx, batch)
		for _, m := range FilterValid(enhanced) {
			if seen[m.ID] {
				continue
			}
			seen[m.ID] = true
			valid = append(valid, m)
		}

		s.logger.InfoContext(ctx, "live fetch pass complete",
			slog.Int("attempt", attempts),
			slog.Int("candidates", len(batch)),
			slog.Int("valid", len(valid)),
		)

		if len(valid) >= limit {
			return Result{Markets: valid[:limit], Outcome: OutcomeLive, Attempts: attempts}, nil
		}
	}

	// Attempts exhausted: not an error, just leaner data.
	return Result{Markets: valid, Outcome: OutcomePartial, Attempts: attempts}, nil
}

// fallbackFromVenue derives tradable markets straight from the venue's
// paginated listing. The listing already carries token IDs, so the
// enhancement pass is skipped; it carries no volume/liquidity/24h metrics,
// which stay zero. Collected markets are persisted best-effort.
func (s *MarketService) fallbackFromVenue(ctx context.Context, limit int) ([]domain.Market, error) {
	var collected []domain.Market

	cursor := polymarket.InitialCursor
	for page := 0; page < s.policy.FallbackPageCap && len(collected) < limit; page++ {
		resp, err := s.books.GetMarketsPage(ctx, cursor)
		if err != nil {
			return nil, fmt.Errorf("venue listing: %w", err)
		}

		for _, vm := range resp.Data {
			if !bool(vm.Active) || bool(vm.Archived) {
				continue
			}
			yes, no := MatchOutcomeTokens(vm.Tokens)
			if yes == nil || no == nil {
				continue
			}
			m := vm.ToDomainMarket()
			m.YesTokenID = yes.TokenID
			m.NoTokenID = no.TokenID
			m.YesPrice = float64(yes.Price)
			m.NoPrice = float64(no.Price)
			collected = append(collected, m)
			if len(collected) >= limit {
				break
			}
		}

		if resp.NextCursor == polymarket.InitialCursor || resp.NextCursor == polymarket.EndCursor {
			break
		}
		cursor = resp.NextCursor
	}

	for _, m := range collected {
		if err := s.store.Upsert(ctx, m); err != nil {
			s.logger.WarnContext(ctx, "fallback market upsert failed",
				slog.String("market_id", m.ID),
				slog.String("error", err.Error()),
			)
		}
	}
	return collected, nil
}

// GetMarket retrieves a single market by natural ID, cache first.
func (s *MarketService) GetMarket(ctx context.Context, id string) (domain.Market, error) {
	if s.cache != nil {
		if m, err := s.cache.Get(ctx, id); err == nil {
			return m, nil
		}
	}

	m, err := s.store.GetByID(ctx, id)
	if err != nil {
		return domain.Market{}, fmt.Errorf("market_service: get by id %q: %w", id, err)
	}
	s.backfill(ctx, m)
	return m, nil
}

// GetMarketByToken retrieves a market by either of its token IDs.
func (s *MarketService) GetMarketByToken(ctx context.Context, tokenID string) (domain.Market, error) {
	if s.cache != nil {
		if m, err := s.cache.GetByToken(ctx, tokenID); err == nil {
			return m, nil
		}
	}

	m, err := s.store.GetByTokenID(ctx, tokenID)
	if err != nil {
		return domain.Market{}, fmt.Errorf("market_service: get by token %q: %w", tokenID, err)
	}
	s.backfill(ctx, m)
	return m, nil
}

// Count returns the number of persisted markets.
func (s *MarketService) Count(ctx context.Context) (int64, error) {
	count, err := s.store.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("market_service: count: %w", err)
	}
	return count, nil
}

// backfill writes a store hit into the cache. Cache errors are logged, not
// surfaced; the cache expires on its own.
func (s *MarketService) backfill(ctx context.Context, m domain.Market) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, m); err != nil {
		s.logger.WarnContext(ctx, "cache set failed",
			slog.String("market_id", m.ID),
			slog.String("error", err.Error()),
		)
	}
}

func cap2(markets []domain.Market, limit int) []domain.Market {
	if len(markets) > limit {
		return markets[:limit]
	}
	return markets
}
