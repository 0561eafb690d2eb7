package domain

import "time"

// VenueBreakdown summarizes one venue's contribution to a PortfolioSnapshot.
type VenueBreakdown struct {
	Value         float64 `json:"value"`
	PnL           float64 `json:"pnl"`
	PositionCount int     `json:"positionCount"`
}

// PortfolioSnapshot is an append-only point-in-time serialization of a
// user's aggregate portfolio. The series is periodically pruned by age.
type PortfolioSnapshot struct {
	ID               int64
	UserID           string
	TotalValue       float64
	TotalPnl         float64
	TotalPnlPct      float64
	TotalCostBasis   float64
	PositionsCount   int
	PerVenueBreakdown map[string]VenueBreakdown
	CreatedAt        time.Time
}
