package polymarket

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/yonghanchen/predictbot/internal/domain"
)

// flexBool unmarshals from JSON bool or string ("true"/"false") so Gamma API
// responses work whether flags are sent as bools or strings.
type flexBool bool

func (f *flexBool) UnmarshalJSON(data []byte) error {
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		*f = flexBool(b)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*f = flexBool(strings.EqualFold(s, "true") || s == "1")
	return nil
}

// flexFloat unmarshals from a JSON number or a numeric string. The Gamma API
// sends volume and liquidity as strings; the CLOB API sends numbers.
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(data []byte) error {
	var n float64
	if err := json.Unmarshal(data, &n); err == nil {
		*f = flexFloat(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		*f = 0
		return nil
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return err
	}
	*f = flexFloat(n)
	return nil
}

// --------------------------------------------------------------------------
// Gamma API DTOs
// --------------------------------------------------------------------------

// GammaMarket represents a market as returned by the Gamma metadata API.
// The API has drifted over time, so several fields accept two spellings;
// ToDomainMarket coalesces them. Gamma never includes tradable token IDs --
// those only exist on the CLOB side.
type GammaMarket struct {
	ID          string `json:"id"`
	Question    string `json:"question"`
	Slug        string `json:"slug"`
	Description string `json:"description"`

	EndDate    string `json:"endDate"`
	EndDateAlt string `json:"end_date"`

	Volume24hr flexFloat `json:"volume24hr"`
	Volume     flexFloat `json:"volume"`
	Liquidity  flexFloat `json:"liquidity"`

	// OutcomePrices is a JSON-encoded array string, e.g. "[\"0.52\",\"0.48\"]".
	OutcomePrices     string    `json:"outcomePrices"`
	LastTradePrice    flexFloat `json:"lastTradePrice"`
	OneDayPriceChange flexFloat `json:"oneDayPriceChange"`

	ConditionID string `json:"conditionId"`

	Active   flexBool `json:"active"`
	Closed   flexBool `json:"closed"`
	Archived flexBool `json:"archived"`
}

// ToDomainMarket converts a GammaMarket to a domain.Market. Token IDs are
// always left empty: the Gamma API does not carry them, the enhancement pass
// fills them in from the CLOB side.
func (g *GammaMarket) ToDomainMarket() domain.Market {
	m := domain.Market{
		ID:             g.ID,
		ConditionID:    g.ConditionID,
		Question:       g.Question,
		Description:    g.Description,
		Liquidity:      float64(g.Liquidity),
		PriceChange24h: float64(g.OneDayPriceChange),
		Active:         bool(g.Active) && !bool(g.Closed),
		Archived:       bool(g.Archived),
	}
	if m.Question == "" {
		m.Question = g.Slug
	}

	m.Volume24h = float64(g.Volume24hr)
	if m.Volume24h == 0 {
		m.Volume24h = float64(g.Volume)
	}

	if end := coalesce(g.EndDate, g.EndDateAlt); end != "" {
		if t, err := time.Parse(time.RFC3339, end); err == nil {
			m.EndTime = t
		}
	}

	m.YesPrice, m.NoPrice = parseOutcomePrices(g.OutcomePrices, float64(g.LastTradePrice))

	return m
}

// parseOutcomePrices decodes the Gamma outcomePrices field, a JSON array of
// numeric strings ordered [yes, no]. When absent or malformed it falls back
// to the last trade price for the yes side and its complement for the no
// side; with no usable data both prices stay zero.
func parseOutcomePrices(encoded string, lastTrade float64) (yes, no float64) {
	if encoded != "" {
		var prices []string
		if err := json.Unmarshal([]byte(encoded), &prices); err == nil && len(prices) >= 2 {
			y, errY := strconv.ParseFloat(prices[0], 64)
			n, errN := strconv.ParseFloat(prices[1], 64)
			if errY == nil && errN == nil {
				return y, n
			}
		}
	}
	if lastTrade > 0 && lastTrade < 1 {
		return lastTrade, 1 - lastTrade
	}
	return 0, 0
}

func coalesce(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// --------------------------------------------------------------------------
// CLOB API DTOs
// --------------------------------------------------------------------------

// ClobToken is one outcome token inside a CLOB market response.
type ClobToken struct {
	TokenID string    `json:"token_id"`
	Outcome string    `json:"outcome"`
	Price   flexFloat `json:"price"`
	Winner  bool      `json:"winner"`
}

// BookLevel is a single price level in a CLOB order-book payload.
type BookLevel struct {
	Price flexFloat `json:"price"`
	Size  flexFloat `json:"size"`
}

// Book holds the optional top-of-book data attached to a market response.
type Book struct {
	Bids []BookLevel `json:"bids"`
	Asks []BookLevel `json:"asks"`
}

// Midpoint returns the midpoint of the best bid and best ask, and whether
// both sides were present. Bids are best-first descending and asks
// best-first ascending per the API, but the scan does not rely on ordering.
func (b *Book) Midpoint() (float64, bool) {
	if b == nil || len(b.Bids) == 0 || len(b.Asks) == 0 {
		return 0, false
	}
	bestBid := 0.0
	for _, l := range b.Bids {
		if float64(l.Price) > bestBid {
			bestBid = float64(l.Price)
		}
	}
	bestAsk := 0.0
	for _, l := range b.Asks {
		if bestAsk == 0 || float64(l.Price) < bestAsk {
			bestAsk = float64(l.Price)
		}
	}
	if bestBid <= 0 || bestAsk <= 0 {
		return 0, false
	}
	return (bestBid + bestAsk) / 2, true
}

// ClobMarket represents a market as returned by the CLOB API, either from
// the condition-keyed lookup or the paginated listing.
type ClobMarket struct {
	ConditionID string      `json:"condition_id"`
	Question    string      `json:"question"`
	Description string      `json:"description"`
	Category    string      `json:"category"`
	EndDateISO  string      `json:"end_date_iso"`
	Tokens      []ClobToken `json:"tokens"`
	OrderBook   *Book       `json:"orderBook,omitempty"`
	Volume24h   flexFloat   `json:"volume24h"`
	Liquidity   flexFloat   `json:"liquidity"`
	Active      flexBool    `json:"active"`
	Archived    flexBool    `json:"archived"`
	Closed      flexBool    `json:"closed"`
}

// ToDomainMarket converts a CLOB listing entry to a domain.Market for the
// fallback path used when the metadata API is unavailable. The CLOB listing
// carries no market-level metrics, so volume and liquidity default to zero;
// the condition ID doubles as the natural ID because the Gamma ID is
// unknowable on this path.
func (c *ClobMarket) ToDomainMarket() domain.Market {
	m := domain.Market{
		ID:          c.ConditionID,
		ConditionID: c.ConditionID,
		Question:    c.Question,
		Description: c.Description,
		Volume24h:   float64(c.Volume24h),
		Liquidity:   float64(c.Liquidity),
		Active:      bool(c.Active) && !bool(c.Closed),
		Archived:    bool(c.Archived),
	}
	if c.EndDateISO != "" {
		if t, err := time.Parse(time.RFC3339, c.EndDateISO); err == nil {
			m.EndTime = t
		}
	}
	return m
}

// ClobMarketsPage is one page of the CLOB market listing.
type ClobMarketsPage struct {
	Data       []ClobMarket `json:"data"`
	NextCursor string       `json:"next_cursor"`
}

// Cursor markers used by the CLOB listing endpoint.
const (
	InitialCursor = ""
	EndCursor     = "LTE=" // base64 "-1", returned on the last page
)

// --------------------------------------------------------------------------
// WebSocket DTOs
// --------------------------------------------------------------------------

// WSEvent is a single event from the CLOB market-data WebSocket.
type WSEvent struct {
	EventType string `json:"event_type"` // "book", "price_change", "last_trade_price"
	AssetID   string `json:"asset_id"`
	Market    string `json:"market"`
	Timestamp string `json:"timestamp"`

	// book events
	Bids []BookLevel `json:"bids,omitempty"`
	Asks []BookLevel `json:"asks,omitempty"`

	// price_change / last_trade_price events
	Side  string    `json:"side,omitempty"`
	Price flexFloat `json:"price,omitempty"`
	Size  flexFloat `json:"size,omitempty"`
}

// ToSnapshot converts a book event to a domain.OrderbookSnapshot.
func (e *WSEvent) ToSnapshot() domain.OrderbookSnapshot {
	snap := domain.OrderbookSnapshot{TokenID: e.AssetID, Timestamp: e.time()}
	for _, l := range e.Bids {
		p, s := float64(l.Price), float64(l.Size)
		snap.Bids = append(snap.Bids, domain.PriceLevel{Price: p, Size: s})
		if p > snap.BestBid {
			snap.BestBid = p
		}
	}
	for _, l := range e.Asks {
		p, s := float64(l.Price), float64(l.Size)
		snap.Asks = append(snap.Asks, domain.PriceLevel{Price: p, Size: s})
		if snap.BestAsk == 0 || p < snap.BestAsk {
			snap.BestAsk = p
		}
	}
	if snap.BestBid > 0 && snap.BestAsk > 0 {
		snap.MidPrice = (snap.BestBid + snap.BestAsk) / 2
	}
	return snap
}

// ToPriceChange converts a price_change event to a domain.PriceChange.
func (e *WSEvent) ToPriceChange() domain.PriceChange {
	return domain.PriceChange{
		TokenID:   e.AssetID,
		Side:      e.Side,
		Price:     float64(e.Price),
		Size:      float64(e.Size),
		Timestamp: e.time(),
	}
}

func (e *WSEvent) time() time.Time {
	if ms, err := strconv.ParseInt(e.Timestamp, 10, 64); err == nil {
		return time.UnixMilli(ms)
	}
	if t, err := time.Parse(time.RFC3339, e.Timestamp); err == nil {
		return t
	}
	return time.Now()
}

// wsSubscribe is the JSON payload sent to subscribe to market channels.
type wsSubscribe struct {
	Type    string   `json:"type"`
	Channel string   `json:"channel,omitempty"`
	Assets  []string `json:"assets_ids,omitempty"`
}
