package domain

import "time"

// Trade is an append-only enriched fill. VenueTradeID, when present,
// provides idempotency for (venue, venueTradeID).
type Trade struct {
	ID            int64
	UserID        string
	Venue         string
	VenueTradeID  string
	MarketID      string
	OutcomeID     string
	Side          string // "buy" or "sell"
	Size          float64
	Price         float64
	Fee           float64
	RealizedPnL   *float64
	Timestamp     time.Time
}

// Value is the notional traded, size * price.
func (t Trade) Value() float64 {
	return t.Size * t.Price
}

// FundingPayment is an append-only perpetual-futures funding record.
type FundingPayment struct {
	ID           int64
	UserID       string
	Venue        string
	Symbol       string
	Rate         float64
	Amount       float64
	PositionSize float64
	Timestamp    time.Time
}
