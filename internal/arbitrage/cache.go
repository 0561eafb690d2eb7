package arbitrage

import (
	"time"

	"github.com/agenthub/venuecore/internal/cache"
)

// priceKey identifies one (venue, marketID, outcome) quote in the price
// cache.
type priceKey struct {
	venue, marketID, outcome string
}

// priceEntry is one cached quote observation.
type priceEntry struct {
	price float64
	fee   float64
}

// priceCache wraps cache.TTLCache with the engine's fixed freshness window,
// replacing the bare map+timestamp pattern spec.md §9 calls out, per the
// same cache.TTLCache type the Aggregator uses.
type priceCache struct {
	c *cache.TTLCache[priceKey, priceEntry]
}

func newPriceCache(freshness time.Duration) *priceCache {
	return &priceCache{c: cache.New[priceKey, priceEntry](freshness)}
}

func (p *priceCache) get(venue, marketID, outcome string) (priceEntry, bool) {
	return p.c.Get(priceKey{venue, marketID, outcome})
}

func (p *priceCache) put(venue, marketID, outcome string, e priceEntry) {
	p.c.Put(priceKey{venue, marketID, outcome}, e)
}
