package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/yonghanchen/predictbot/internal/domain"
	"github.com/yonghanchen/predictbot/internal/platform/polymarket"
)

// --------------------------------------------------------------------------
// Fakes shared by the service tests
// --------------------------------------------------------------------------

type fakeStore struct {
	mu      sync.Mutex
	byID    map[string]domain.Market
	active  []domain.Market
	listErr error

	upserts []domain.Market
}

func newFakeStore() *fakeStore {
	return &fakeStore{byID: make(map[string]domain.Market)}
}

func (s *fakeStore) Upsert(_ context.Context, m domain.Market) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID[m.ID] = m
	s.upserts = append(s.upserts, m)
	return nil
}

func (s *fakeStore) UpsertBatch(ctx context.Context, markets []domain.Market) error {
	for _, m := range markets {
		if err := s.Upsert(ctx, m); err != nil {
			return err
		}
	}
	return nil
}

func (s *fakeStore) GetByID(_ context.Context, id string) (domain.Market, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.byID[id]
	if !ok {
		return domain.Market{}, domain.ErrNotFound
	}
	return m, nil
}

func (s *fakeStore) GetByTokenID(_ context.Context, tokenID string) (domain.Market, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.byID {
		if m.YesTokenID == tokenID || m.NoTokenID == tokenID {
			return m, nil
		}
	}
	return domain.Market{}, domain.ErrNotFound
}

func (s *fakeStore) ListActive(_ context.Context, limit int) ([]domain.Market, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	if len(s.active) > limit {
		return s.active[:limit], nil
	}
	return s.active, nil
}

func (s *fakeStore) Count(context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.byID)), nil
}

func (s *fakeStore) upsertCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.upserts)
}

type fakeCache struct {
	mu      sync.Mutex
	byID    map[string]domain.Market
	byToken map[string]domain.Market
}

func newFakeCache() *fakeCache {
	return &fakeCache{
		byID:    make(map[string]domain.Market),
		byToken: make(map[string]domain.Market),
	}
}

func (c *fakeCache) Set(_ context.Context, m domain.Market) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.byID[m.ID] = m
	if m.YesTokenID != "" {
		c.byToken[m.YesTokenID] = m
	}
	if m.NoTokenID != "" {
		c.byToken[m.NoTokenID] = m
	}
	return nil
}

func (c *fakeCache) Get(_ context.Context, id string) (domain.Market, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	m, ok := c.byID[id]
	if !ok {
		return domain.Market{}, domain.ErrNotFound
	}
	return m, nil
}

func (c *fakeCache) GetByToken(_ context.Context, tokenID string) (domain.Market, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	m, ok := c.byToken[tokenID]
	if !ok {
		return domain.Market{}, domain.ErrNotFound
	}
	return m, nil
}

func (c *fakeCache) Invalidate(_ context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.byID, id)
	return nil
}

// fakeMeta serves metadata pages keyed by offset and records the offsets
// it was asked for.
type fakeMeta struct {
	mu      sync.Mutex
	pages   map[int][]domain.Market
	errs    map[int]error
	offsets []int
}

func (f *fakeMeta) ListActiveMarkets(_ context.Context, limit, offset int) ([]domain.Market, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.offsets = append(f.offsets, offset)
	if err := f.errs[offset]; err != nil {
		return nil, err
	}
	page := f.pages[offset]
	if len(page) > limit {
		page = page[:limit]
	}
	return page, nil
}

// fakeBooks resolves venue lookups from a fixed condition-ID map and serves
// a fixed sequence of listing pages.
type fakeBooks struct {
	mu          sync.Mutex
	byCondition map[string]polymarket.ClobMarket
	lookupErrs  map[string]error
	calls       []string

	pages    []polymarket.ClobMarketsPage
	pagesErr error
	pageIdx  int
}

func (f *fakeBooks) GetMarket(_ context.Context, conditionID string) (polymarket.ClobMarket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, conditionID)
	if err := f.lookupErrs[conditionID]; err != nil {
		return polymarket.ClobMarket{}, err
	}
	m, ok := f.byCondition[conditionID]
	if !ok {
		return polymarket.ClobMarket{}, domain.ErrNotFound
	}
	return m, nil
}

func (f *fakeBooks) GetMarketsPage(_ context.Context, cursor string) (polymarket.ClobMarketsPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pagesErr != nil {
		return polymarket.ClobMarketsPage{}, f.pagesErr
	}
	if f.pageIdx >= len(f.pages) {
		return polymarket.ClobMarketsPage{NextCursor: polymarket.EndCursor}, nil
	}
	page := f.pages[f.pageIdx]
	f.pageIdx++
	return page, nil
}

func (f *fakeBooks) lookupCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// --------------------------------------------------------------------------
// Helpers
// --------------------------------------------------------------------------

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

var testNow = time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

// tradable builds a fully enhanced, valid market updated at testNow.
func tradable(id string) domain.Market {
	return domain.Market{
		ID:          id,
		ConditionID: "cond-" + id,
		Question:    "Will " + id + " happen?",
		YesPrice:    0.6,
		NoPrice:     0.4,
		YesTokenID:  "yes-" + id,
		NoTokenID:   "no-" + id,
		LastUpdated: testNow.Add(-time.Minute),
		Active:      true,
	}
}

// metadataOnly builds a market as the metadata source returns it: no token
// IDs, no prices.
func metadataOnly(id string) domain.Market {
	return domain.Market{
		ID:          id,
		ConditionID: "cond-" + id,
		Question:    "Will " + id + " happen?",
		Volume24h:   1000,
		LastUpdated: testNow.Add(-time.Minute),
		Active:      true,
	}
}

// venueMarket builds the CLOB response that makes a metadata candidate
// tradable.
func venueMarket(id string) polymarket.ClobMarket {
	return polymarket.ClobMarket{
		ConditionID: "cond-" + id,
		Tokens: []polymarket.ClobToken{
			{TokenID: "yes-" + id, Outcome: "Yes", Price: 0.6},
			{TokenID: "no-" + id, Outcome: "No", Price: 0.4},
		},
		Active: true,
	}
}

func newTestService(store *fakeStore, cache *fakeCache, meta *fakeMeta, books *fakeBooks, policy Policy) *MarketService {
	logger := testLogger()
	enhancer := NewEnhancer(books, store, 5, time.Millisecond, logger)
	var mc domain.MarketCache
	if cache != nil {
		mc = cache
	}
	svc := NewMarketService(store, mc, meta, books, enhancer, policy, logger)
	svc.now = func() time.Time { return testNow }
	return svc
}

// --------------------------------------------------------------------------
// Markets: store paths
// --------------------------------------------------------------------------

func TestMarketsRejectsNonPositiveLimit(t *testing.T) {
	svc := newTestService(newFakeStore(), nil, &fakeMeta{}, &fakeBooks{}, Policy{})
	if _, err := svc.Markets(context.Background(), 0); err == nil {
		t.Fatal("expected error for limit 0")
	}
	if _, err := svc.Markets(context.Background(), -3); err == nil {
		t.Fatal("expected error for negative limit")
	}
}

func TestMarketsServesFreshStore(t *testing.T) {
	store := newFakeStore()
	for i := 0; i < 6; i++ {
		store.active = append(store.active, tradable(fmt.Sprintf("m%d", i)))
	}
	meta := &fakeMeta{}
	books := &fakeBooks{}
	svc := newTestService(store, nil, meta, books, Policy{})

	res, err := svc.Markets(context.Background(), 3)
	if err != nil {
		t.Fatalf("Markets: %v", err)
	}
	if res.Outcome != OutcomeStore {
		t.Fatalf("outcome = %q, want %q", res.Outcome, OutcomeStore)
	}
	if len(res.Markets) != 3 {
		t.Fatalf("len(markets) = %d, want 3", len(res.Markets))
	}
	if len(meta.offsets) != 0 {
		t.Errorf("metadata source was called %d times, want 0", len(meta.offsets))
	}
	if books.lookupCount() != 0 {
		t.Errorf("venue was called %d times, want 0", books.lookupCount())
	}
}

func TestMarketsEnhancesOnlyIncompleteStoredRecords(t *testing.T) {
	store := newFakeStore()
	complete := tradable("done")
	missing := metadataOnly("todo")
	store.active = []domain.Market{complete, missing}

	books := &fakeBooks{byCondition: map[string]polymarket.ClobMarket{
		"cond-todo": venueMarket("todo"),
	}}
	svc := newTestService(store, nil, &fakeMeta{}, books, Policy{})

	res, err := svc.Markets(context.Background(), 2)
	if err != nil {
		t.Fatalf("Markets: %v", err)
	}
	if res.Outcome != OutcomeEnhanced {
		t.Fatalf("outcome = %q, want %q", res.Outcome, OutcomeEnhanced)
	}
	if got := books.lookupCount(); got != 1 {
		t.Fatalf("venue lookups = %d, want 1 (only the incomplete record)", got)
	}
	if res.Markets[0].ID != "done" || res.Markets[1].ID != "todo" {
		t.Fatalf("order not preserved: %q, %q", res.Markets[0].ID, res.Markets[1].ID)
	}
	if !res.Markets[1].Enhanced() {
		t.Error("incomplete record was not enhanced")
	}
}

func TestMarketsBatchStalenessInvalidatesWholeBatch(t *testing.T) {
	store := newFakeStore()
	fresh := tradable("fresh")
	stale := tradable("stale")
	stale.LastUpdated = testNow.Add(-time.Hour)
	store.active = []domain.Market{fresh, stale}

	meta := &fakeMeta{pages: map[int][]domain.Market{
		0: {metadataOnly("live")},
	}}
	books := &fakeBooks{byCondition: map[string]polymarket.ClobMarket{
		"cond-live": venueMarket("live"),
	}}
	svc := newTestService(store, nil, meta, books, Policy{Staleness: StalenessBatch})

	res, err := svc.Markets(context.Background(), 1)
	if err != nil {
		t.Fatalf("Markets: %v", err)
	}
	if res.Outcome != OutcomeLive {
		t.Fatalf("outcome = %q, want %q (stale batch must trigger live fetch)", res.Outcome, OutcomeLive)
	}
	if res.Markets[0].ID != "live" {
		t.Fatalf("served %q, want the live-fetched market", res.Markets[0].ID)
	}
}

func TestMarketsRecordStalenessKeepsFreshRemainder(t *testing.T) {
	store := newFakeStore()
	fresh := tradable("fresh")
	stale := tradable("stale")
	stale.LastUpdated = testNow.Add(-time.Hour)
	store.active = []domain.Market{stale, fresh}

	svc := newTestService(store, nil, &fakeMeta{}, &fakeBooks{}, Policy{Staleness: StalenessRecord})

	res, err := svc.Markets(context.Background(), 1)
	if err != nil {
		t.Fatalf("Markets: %v", err)
	}
	if res.Outcome != OutcomeStore {
		t.Fatalf("outcome = %q, want %q", res.Outcome, OutcomeStore)
	}
	if len(res.Markets) != 1 || res.Markets[0].ID != "fresh" {
		t.Fatalf("got %+v, want only the fresh record", res.Markets)
	}
}

func TestMarketsStoreErrorFallsThroughToLive(t *testing.T) {
	store := newFakeStore()
	store.listErr = errors.New("connection refused")

	meta := &fakeMeta{pages: map[int][]domain.Market{
		0: {metadataOnly("live")},
	}}
	books := &fakeBooks{byCondition: map[string]polymarket.ClobMarket{
		"cond-live": venueMarket("live"),
	}}
	svc := newTestService(store, nil, meta, books, Policy{})

	res, err := svc.Markets(context.Background(), 1)
	if err != nil {
		t.Fatalf("Markets: %v", err)
	}
	if res.Outcome != OutcomeLive {
		t.Fatalf("outcome = %q, want %q", res.Outcome, OutcomeLive)
	}
}

// --------------------------------------------------------------------------
// Markets: live fetch, retries, fallback
// --------------------------------------------------------------------------

func TestMarketsLiveFetchFillsInOneAttempt(t *testing.T) {
	meta := &fakeMeta{pages: map[int][]domain.Market{
		0: {metadataOnly("a"), metadataOnly("b")},
	}}
	books := &fakeBooks{byCondition: map[string]polymarket.ClobMarket{
		"cond-a": venueMarket("a"),
		"cond-b": venueMarket("b"),
	}}
	store := newFakeStore()
	svc := newTestService(store, nil, meta, books, Policy{})

	res, err := svc.Markets(context.Background(), 2)
	if err != nil {
		t.Fatalf("Markets: %v", err)
	}
	if res.Outcome != OutcomeLive {
		t.Fatalf("outcome = %q, want %q", res.Outcome, OutcomeLive)
	}
	if res.Attempts != 1 {
		t.Errorf("attempts = %d, want 1", res.Attempts)
	}
	for _, m := range res.Markets {
		if !m.Valid() {
			t.Errorf("market %q served without full tradability: %+v", m.ID, m)
		}
	}
	if store.upsertCount() == 0 {
		t.Error("enhanced markets were not persisted")
	}
}

func TestMarketsRetriesAdvanceOffset(t *testing.T) {
	// Every page returns a candidate the venue cannot resolve, so no pass
	// ever fills the request and all attempts run.
	meta := &fakeMeta{pages: map[int][]domain.Market{
		0: {metadataOnly("p0")},
		2: {metadataOnly("p1")},
		4: {metadataOnly("p2")},
	}}
	books := &fakeBooks{} // resolves nothing
	svc := newTestService(newFakeStore(), nil, meta, books, Policy{MaxRetries: 2})

	res, err := svc.Markets(context.Background(), 2)
	if err != nil {
		t.Fatalf("Markets: %v", err)
	}
	if res.Outcome != OutcomePartial {
		t.Fatalf("outcome = %q, want %q", res.Outcome, OutcomePartial)
	}
	if res.Attempts != 3 {
		t.Fatalf("attempts = %d, want 3 (1 initial + 2 retries)", res.Attempts)
	}
	want := []int{0, 2, 4}
	if len(meta.offsets) != len(want) {
		t.Fatalf("offsets = %v, want %v", meta.offsets, want)
	}
	for i, off := range want {
		if meta.offsets[i] != off {
			t.Errorf("offset[%d] = %d, want %d", i, meta.offsets[i], off)
		}
	}
	if len(res.Markets) != 0 {
		t.Errorf("partial result has %d markets, want 0 (nothing resolved)", len(res.Markets))
	}
}

func TestMarketsPartialReturnsBestEffortSet(t *testing.T) {
	// Only one of the requested two markets is ever resolvable.
	meta := &fakeMeta{pages: map[int][]domain.Market{
		0: {metadataOnly("good"), metadataOnly("bad")},
	}}
	books := &fakeBooks{byCondition: map[string]polymarket.ClobMarket{
		"cond-good": venueMarket("good"),
	}}
	svc := newTestService(newFakeStore(), nil, meta, books, Policy{MaxRetries: 2})

	res, err := svc.Markets(context.Background(), 2)
	if err != nil {
		t.Fatalf("Markets: %v", err)
	}
	if res.Outcome != OutcomePartial {
		t.Fatalf("outcome = %q, want %q", res.Outcome, OutcomePartial)
	}
	if len(res.Markets) != 1 || res.Markets[0].ID != "good" {
		t.Fatalf("markets = %+v, want just the resolvable one", res.Markets)
	}
}

func TestMarketsAccumulatesValidAcrossAttempts(t *testing.T) {
	// A market resolved on an early pass must survive later passes, and a
	// market re-listed on a later page must not be returned twice.
	meta := &fakeMeta{pages: map[int][]domain.Market{
		0: {metadataOnly("early"), metadataOnly("bad")},
		3: {metadataOnly("early"), metadataOnly("late")},
		6: {},
	}}
	books := &fakeBooks{byCondition: map[string]polymarket.ClobMarket{
		"cond-early": venueMarket("early"),
		"cond-late":  venueMarket("late"),
	}}
	svc := newTestService(newFakeStore(), nil, meta, books, Policy{MaxRetries: 2})

	res, err := svc.Markets(context.Background(), 3)
	if err != nil {
		t.Fatalf("Markets: %v", err)
	}
	if res.Outcome != OutcomePartial {
		t.Fatalf("outcome = %q, want %q", res.Outcome, OutcomePartial)
	}
	if res.Attempts != 3 {
		t.Fatalf("attempts = %d, want 3", res.Attempts)
	}
	if len(res.Markets) != 2 {
		t.Fatalf("markets = %+v, want the two resolvable ones exactly once each", res.Markets)
	}
	if res.Markets[0].ID != "early" || res.Markets[1].ID != "late" {
		t.Errorf("market ids = %q, %q, want early, late", res.Markets[0].ID, res.Markets[1].ID)
	}
}

func TestMarketsTransientMetadataErrorRetries(t *testing.T) {
	meta := &fakeMeta{
		errs: map[int]error{0: errors.New("upstream 500")},
		pages: map[int][]domain.Market{
			1: {metadataOnly("a")},
		},
	}
	books := &fakeBooks{byCondition: map[string]polymarket.ClobMarket{
		"cond-a": venueMarket("a"),
	}}
	svc := newTestService(newFakeStore(), nil, meta, books, Policy{MaxRetries: 2})

	res, err := svc.Markets(context.Background(), 1)
	if err != nil {
		t.Fatalf("Markets: %v", err)
	}
	if res.Outcome != OutcomeLive {
		t.Fatalf("outcome = %q, want %q", res.Outcome, OutcomeLive)
	}
	if res.Attempts != 2 {
		t.Errorf("attempts = %d, want 2", res.Attempts)
	}
}

func TestMarketsFallsBackToVenueListing(t *testing.T) {
	metaErr := errors.New("gamma is down")
	meta := &fakeMeta{errs: map[int]error{
		0: metaErr, 1: metaErr, 2: metaErr,
	}}
	vm := venueMarket("vx")
	vm.Question = "venue listed"
	books := &fakeBooks{pages: []polymarket.ClobMarketsPage{
		{Data: []polymarket.ClobMarket{vm}, NextCursor: polymarket.EndCursor},
	}}
	store := newFakeStore()
	svc := newTestService(store, nil, meta, books, Policy{MaxRetries: 2})

	res, err := svc.Markets(context.Background(), 1)
	if err != nil {
		t.Fatalf("Markets: %v", err)
	}
	if res.Outcome != OutcomeFallback {
		t.Fatalf("outcome = %q, want %q", res.Outcome, OutcomeFallback)
	}
	if res.Attempts != 3 {
		t.Errorf("attempts = %d, want 3", res.Attempts)
	}
	if len(res.Markets) != 1 {
		t.Fatalf("len(markets) = %d, want 1", len(res.Markets))
	}
	m := res.Markets[0]
	if m.ID != "cond-vx" || m.ConditionID != "cond-vx" {
		t.Errorf("fallback market must use the condition ID as natural ID, got ID=%q", m.ID)
	}
	if !m.Enhanced() {
		t.Error("fallback market missing token IDs")
	}
	if m.Volume24h != 0 || m.Liquidity != 0 {
		t.Errorf("fallback market carries metrics the listing does not have: %+v", m)
	}
	if store.upsertCount() != 1 {
		t.Errorf("fallback markets persisted %d times, want 1", store.upsertCount())
	}
}

func TestMarketsFallbackSkipsInactiveAndUnmatchable(t *testing.T) {
	metaErr := errors.New("gamma is down")
	meta := &fakeMeta{errs: map[int]error{0: metaErr}}

	inactive := venueMarket("off")
	inactive.Active = false
	unmatched := polymarket.ClobMarket{
		ConditionID: "cond-odd",
		Tokens: []polymarket.ClobToken{
			{TokenID: "t1", Outcome: "Maybe", Price: 0.5},
		},
		Active: true,
	}
	good := venueMarket("ok")
	books := &fakeBooks{pages: []polymarket.ClobMarketsPage{
		{Data: []polymarket.ClobMarket{inactive, unmatched, good}, NextCursor: polymarket.EndCursor},
	}}
	svc := newTestService(newFakeStore(), nil, meta, books, Policy{MaxRetries: -1})

	res, err := svc.Markets(context.Background(), 5)
	if err != nil {
		t.Fatalf("Markets: %v", err)
	}
	if res.Outcome != OutcomeFallback {
		t.Fatalf("outcome = %q, want %q", res.Outcome, OutcomeFallback)
	}
	if len(res.Markets) != 1 || res.Markets[0].ID != "cond-ok" {
		t.Fatalf("markets = %+v, want only the active binary market", res.Markets)
	}
}

func TestMarketsFallbackFailurePropagatesMetadataError(t *testing.T) {
	metaErr := errors.New("gamma is down")
	meta := &fakeMeta{errs: map[int]error{0: metaErr}}
	books := &fakeBooks{pagesErr: errors.New("clob also down")}
	svc := newTestService(newFakeStore(), nil, meta, books, Policy{MaxRetries: -1})

	_, err := svc.Markets(context.Background(), 1)
	if err == nil {
		t.Fatal("expected error when both upstreams are down")
	}
	if !errors.Is(err, metaErr) {
		t.Fatalf("error = %v, want the original metadata error", err)
	}
}

func TestMarketsContextCancellationShortCircuits(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	meta := &fakeMeta{errs: map[int]error{
		0: fmt.Errorf("fetch: %w", context.Canceled),
	}}
	svc := newTestService(newFakeStore(), nil, meta, &fakeBooks{}, Policy{MaxRetries: 2})

	_, err := svc.Markets(ctx, 1)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
	if len(meta.offsets) != 1 {
		t.Errorf("metadata calls = %d, want 1 (no retries after cancellation)", len(meta.offsets))
	}
}

// --------------------------------------------------------------------------
// Point lookups
// --------------------------------------------------------------------------

func TestGetMarketCacheAside(t *testing.T) {
	store := newFakeStore()
	cache := newFakeCache()
	m := tradable("m1")
	store.byID[m.ID] = m

	svc := newTestService(store, cache, &fakeMeta{}, &fakeBooks{}, Policy{})

	got, err := svc.GetMarket(context.Background(), "m1")
	if err != nil {
		t.Fatalf("GetMarket: %v", err)
	}
	if got.ID != "m1" {
		t.Fatalf("got %q, want m1", got.ID)
	}

	// The store hit must have been backfilled into the cache.
	if _, err := cache.Get(context.Background(), "m1"); err != nil {
		t.Fatalf("market missing from cache after store hit: %v", err)
	}

	// A cache hit must not touch the store.
	delete(store.byID, "m1")
	if _, err := svc.GetMarket(context.Background(), "m1"); err != nil {
		t.Fatalf("GetMarket after cache backfill: %v", err)
	}
}

func TestGetMarketNotFound(t *testing.T) {
	svc := newTestService(newFakeStore(), newFakeCache(), &fakeMeta{}, &fakeBooks{}, Policy{})
	_, err := svc.GetMarket(context.Background(), "nope")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound", err)
	}
}

func TestGetMarketByTokenResolvesEitherSide(t *testing.T) {
	store := newFakeStore()
	m := tradable("m1")
	store.byID[m.ID] = m
	svc := newTestService(store, nil, &fakeMeta{}, &fakeBooks{}, Policy{})

	for _, tok := range []string{"yes-m1", "no-m1"} {
		got, err := svc.GetMarketByToken(context.Background(), tok)
		if err != nil {
			t.Fatalf("GetMarketByToken(%q): %v", tok, err)
		}
		if got.ID != "m1" {
			t.Errorf("GetMarketByToken(%q) = %q, want m1", tok, got.ID)
		}
	}
}

// --------------------------------------------------------------------------
// Policy defaults
// --------------------------------------------------------------------------

func TestPolicyDefaults(t *testing.T) {
	p := Policy{}.withDefaults()
	if p.TTL != defaultTTL {
		t.Errorf("TTL = %v, want %v", p.TTL, defaultTTL)
	}
	if p.Staleness != StalenessBatch {
		t.Errorf("Staleness = %q, want %q", p.Staleness, StalenessBatch)
	}
	if p.MaxRetries != defaultMaxRetries {
		t.Errorf("MaxRetries = %d, want %d", p.MaxRetries, defaultMaxRetries)
	}
	if p.StoreFetchCap != defaultStoreFetchCap {
		t.Errorf("StoreFetchCap = %d, want %d", p.StoreFetchCap, defaultStoreFetchCap)
	}

	// Negative retries clamp to zero attempts beyond the first.
	p = Policy{MaxRetries: -1}.withDefaults()
	if p.MaxRetries != 0 {
		t.Errorf("MaxRetries = %d, want 0", p.MaxRetries)
	}
}
