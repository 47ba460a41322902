package domain

import "time"

// Market is the canonical, persisted representation of a prediction market.
// It merges metadata from the Gamma API (which never carries tradable token
// IDs) with token and price data from the CLOB API (which is keyed by
// condition ID rather than market ID).
type Market struct {
	// ID is the stable natural identifier assigned by the metadata API.
	// It is the upsert key in the persistent store.
	ID string `json:"id"`

	// ConditionID links the market to its order-book venue record. Empty
	// until the market has been resolved to a tradable venue.
	ConditionID string `json:"conditionId,omitempty"`

	Question    string `json:"question"`
	Description string `json:"description"`

	EndTime time.Time `json:"endTime"`

	Volume24h float64 `json:"volume24h"`
	Liquidity float64 `json:"liquidity"`

	// YesPrice and NoPrice are observed independently from the two order
	// book sides, so they are not required to sum to 1.
	YesPrice       float64 `json:"yesPrice"`
	NoPrice        float64 `json:"noPrice"`
	PriceChange24h float64 `json:"priceChange24h,omitempty"`

	// YesTokenID and NoTokenID are the ERC-1155 token IDs required to
	// submit orders. Empty string means not yet resolved.
	YesTokenID string `json:"yesTokenId"`
	NoTokenID  string `json:"noTokenId"`

	// LastUpdated is set on every write and drives the freshness policy.
	LastUpdated time.Time `json:"lastUpdated"`

	Active   bool `json:"isActive"`
	Archived bool `json:"isArchived"`
}

// Enhanced reports whether both tradable token IDs have been resolved.
func (m Market) Enhanced() bool {
	return m.YesTokenID != "" && m.NoTokenID != ""
}

// Valid reports whether the market can actually be traded: both token IDs
// resolved and both prices strictly positive. Only valid markets are
// surfaced to traders by the primary refresh paths.
func (m Market) Valid() bool {
	return m.Enhanced() && m.YesPrice > 0 && m.NoPrice > 0
}

// Fresh reports whether the record was updated within ttl of now.
func (m Market) Fresh(now time.Time, ttl time.Duration) bool {
	return now.Sub(m.LastUpdated) < ttl
}

// MarketView is the caller-facing shape returned by the API and bot layers.
type MarketView struct {
	ID             string   `json:"id"`
	Question       string   `json:"question"`
	Description    string   `json:"description"`
	EndDate        string   `json:"endDate"`
	Volume24h      float64  `json:"volume24h"`
	Liquidity      float64  `json:"liquidity"`
	YesPrice       float64  `json:"yesPrice"`
	NoPrice        float64  `json:"noPrice"`
	PriceChange24h float64  `json:"priceChange24h,omitempty"`
	YesTokenID     string   `json:"yesTokenId"`
	NoTokenID      string   `json:"noTokenId"`
	ConditionID    string   `json:"conditionId,omitempty"`
	ClobTokenIDs   []string `json:"clobTokensIds,omitempty"`
}

// View maps a Market to its caller-facing shape. EndTime is rendered as an
// RFC 3339 string; the token-ID pair is only included once both sides are
// resolved.
func (m Market) View() MarketView {
	v := MarketView{
		ID:             m.ID,
		Question:       m.Question,
		Description:    m.Description,
		EndDate:        m.EndTime.UTC().Format(time.RFC3339),
		Volume24h:      m.Volume24h,
		Liquidity:      m.Liquidity,
		YesPrice:       m.YesPrice,
		NoPrice:        m.NoPrice,
		PriceChange24h: m.PriceChange24h,
		YesTokenID:     m.YesTokenID,
		NoTokenID:      m.NoTokenID,
		ConditionID:    m.ConditionID,
	}
	if m.Enhanced() {
		v.ClobTokenIDs = []string{m.YesTokenID, m.NoTokenID}
	}
	return v
}

// Views maps a slice of markets to their caller-facing shapes.
func Views(markets []Market) []MarketView {
	out := make([]MarketView, 0, len(markets))
	for _, m := range markets {
		out = append(out, m.View())
	}
	return out
}
