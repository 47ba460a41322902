package domain

import "time"

// PriceLevel is a single price+size entry in an order book.
type PriceLevel struct {
	Price float64
	Size  float64
}

// OrderbookSnapshot is a full snapshot of bids and asks for a token.
type OrderbookSnapshot struct {
	TokenID   string
	Bids      []PriceLevel
	Asks      []PriceLevel
	BestBid   float64
	BestAsk   float64
	MidPrice  float64
	Timestamp time.Time
}

// PriceChange is an incremental order-book level update.
type PriceChange struct {
	TokenID   string
	Side      string // "BUY" or "SELL"
	Price     float64
	Size      float64 // 0 means the level was removed
	Timestamp time.Time
}
