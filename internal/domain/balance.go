package domain

// Balance is a live per-venue asset balance. It is never persisted: the
// Aggregator merges a fresh read from each adapter on every cache miss.
type Balance struct {
	Venue     string
	Asset     string
	Available float64
	Locked    float64
	Total     float64
}
