package arbitrage

import (
	"context"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/agenthub/venuecore/internal/config"
	"github.com/agenthub/venuecore/internal/domain"
	"github.com/agenthub/venuecore/internal/venue"
)

// quoteSize is the nominal notional the engine quotes at; spec.md §8's
// profitPer100 scenario is denominated per $100, and the adapters in this
// repo price by probability/dollar regardless of size, so one fixed size
// is sufficient for spread detection.
const quoteSize = 100.0

// priceEpsilon is the minimum price movement that counts as a "changed"
// opportunity update (spec.md §9's open question on in-place updates): below
// this, a tick that merely re-confirms the same spread refreshes expiresAt
// silently instead of emitting a fresh event.
const priceEpsilon = 1e-6

// Subscriber receives every opportunity the engine creates or meaningfully
// updates. Per spec.md §4.6, emission happens synchronously within the tick;
// a subscriber that blocks stalls the whole engine, so subscribers must not
// block.
type Subscriber func(domain.ArbOpportunity)

// Engine holds the ArbMatch/ArbOpportunity working set and runs the
// quote-poll-and-detect tick described in spec.md §4.6. It is single-writer
// over its in-memory active-opportunity map; Tick is meant to be invoked by
// one Scheduler-owned job at a time.
type Engine struct {
	registry  *venue.Registry
	matches   domain.ArbMatchStore
	opps      domain.ArbOpportunityStore
	prices    *priceCache
	minSpread float64

	mu          sync.Mutex
	active      map[string]domain.ArbOpportunity // keyed by ArbOpportunity.Key()
	subscribers []Subscriber

	logger *slog.Logger
}

// New creates an Engine. A zero PriceCacheFreshSecs falls back to 5s; a zero
// minSpread is a valid "always report" configuration and is used as-is. The
// tick cadence is not set here: Tick runs whenever the Scheduler's
// "arbitrage.tick" cron entry fires (every minute by default), and
// cfg.PollIntervalMs does not change it.
func New(registry *venue.Registry, matches domain.ArbMatchStore, opps domain.ArbOpportunityStore, cfg config.ArbitrageConfig, logger *slog.Logger) *Engine {
	freshSecs := cfg.PriceCacheFreshSecs
	if freshSecs <= 0 {
		freshSecs = 5
	}
	return &Engine{
		registry:  registry,
		matches:   matches,
		opps:      opps,
		prices:    newPriceCache(time.Duration(freshSecs) * time.Second),
		minSpread: cfg.MinSpread,
		active:    make(map[string]domain.ArbOpportunity),
		logger:    logger.With(slog.String("component", "arb_engine")),
	}
}

// Subscribe registers fn to receive future opportunity events. It returns a
// function that unregisters fn.
func (e *Engine) Subscribe(fn Subscriber) func() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.subscribers = append(e.subscribers, fn)
	idx := len(e.subscribers) - 1
	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		e.subscribers[idx] = nil
	}
}

func (e *Engine) emit(o domain.ArbOpportunity) {
	e.mu.Lock()
	subs := append([]Subscriber(nil), e.subscribers...)
	e.mu.Unlock()
	for _, s := range subs {
		if s != nil {
			s(o)
		}
	}
}

// AddMatch persists a manually declared ArbMatch.
func (e *Engine) AddMatch(ctx context.Context, m domain.ArbMatch) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	if m.MatchedBy == "" {
		m.MatchedBy = domain.MatchedByManual
	}
	return e.matches.Add(ctx, m)
}

// RemoveMatch deletes a previously declared match.
func (e *Engine) RemoveMatch(ctx context.Context, id string) error {
	return e.matches.Remove(ctx, id)
}

// ListActiveOpportunities returns the engine's current active set: stored
// opportunities still flagged active whose expiresAt is in the future.
func (e *Engine) ListActiveOpportunities(ctx context.Context) ([]domain.ArbOpportunity, error) {
	opps, err := e.opps.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	live := opps[:0]
	for _, o := range opps {
		if o.ExpiresAt.After(now) {
			live = append(live, o)
		}
	}
	return live, nil
}

// Tick runs one full poll-detect-emit pass over every declared ArbMatch, per
// spec.md §4.6 steps 1-5. It is the handler the Scheduler's "arbitrage.tick"
// job invokes on its own cadence.
func (e *Engine) Tick(ctx context.Context, opportunityTTL time.Duration) error {
	now := time.Now().UTC()

	if _, err := e.opps.ExpireBefore(ctx, now); err != nil {
		return err
	}
	e.mu.Lock()
	for k, o := range e.active {
		if !o.ExpiresAt.After(now) {
			delete(e.active, k)
		}
	}
	e.mu.Unlock()

	matches, err := e.matches.List(ctx)
	if err != nil {
		return err
	}

	for _, m := range matches {
		e.tickMatch(ctx, m, now, opportunityTTL)
	}
	return nil
}

func (e *Engine) tickMatch(ctx context.Context, m domain.ArbMatch, now time.Time, ttl time.Duration) {
	type priced struct {
		ref   domain.MarketRef
		price float64
	}

	var legs []priced
	for _, ref := range m.Markets {
		outcome := ref.Outcome
		if outcome == "" {
			outcome = "yes"
		}
		price, ok := e.quote(ctx, ref.Venue, ref.MarketID, outcome)
		if !ok {
			continue
		}
		legs = append(legs, priced{ref: ref, price: price})
	}
	if len(legs) < 2 {
		return
	}

	var bestBuy, bestSell priced
	bestSpreadPct := math.Inf(-1)
	found := false
	for i := range legs {
		for j := range legs {
			if i == j {
				continue
			}
			buy, sell := legs[i], legs[j]
			if buy.price <= 0 || sell.price <= buy.price {
				continue
			}
			spreadPct := (sell.price - buy.price) / buy.price * 100
			if spreadPct < e.minSpread*100 {
				continue
			}
			if spreadPct > bestSpreadPct {
				bestSpreadPct = spreadPct
				bestBuy, bestSell = buy, sell
				found = true
			}
		}
	}
	if !found {
		// Prices converged below minSpread: retire this match's active opportunities.
		e.mu.Lock()
		for k, o := range e.active {
			if o.MatchID != m.ID {
				continue
			}
			o.IsActive = false
			if err := e.opps.Upsert(ctx, o); err != nil {
				e.logger.Warn("deactivate opportunity failed", slog.String("key", k), slog.String("error", err.Error()))
			}
			delete(e.active, k)
		}
		e.mu.Unlock()
		return
	}

	buyPrice, sellPrice := bestBuy.price, bestSell.price
	spread := sellPrice - buyPrice
	profitPer100 := (100/buyPrice)*sellPrice - 100

	opp := domain.ArbOpportunity{
		MatchID: m.ID,
		Buy: domain.ArbLeg{
			Venue: bestBuy.ref.Venue, MarketID: bestBuy.ref.MarketID,
			Outcome: coalesce(bestBuy.ref.Outcome, "yes"), Price: buyPrice,
		},
		Sell: domain.ArbLeg{
			Venue: bestSell.ref.Venue, MarketID: bestSell.ref.MarketID,
			Outcome: coalesce(bestSell.ref.Outcome, "yes"), Price: sellPrice,
		},
		Spread:       spread,
		SpreadPct:    bestSpreadPct,
		ProfitPer100: profitPer100,
		Confidence:   m.Similarity,
		DetectedAt:   now,
		ExpiresAt:    now.Add(ttl),
		IsActive:     true,
	}
	opp.ID = opp.Key()

	e.mu.Lock()
	existing, wasActive := e.active[opp.Key()]
	e.active[opp.Key()] = opp
	e.mu.Unlock()

	changed := !wasActive ||
		math.Abs(existing.Buy.Price-opp.Buy.Price) > priceEpsilon ||
		math.Abs(existing.Sell.Price-opp.Sell.Price) > priceEpsilon

	if err := e.opps.Upsert(ctx, opp); err != nil {
		e.logger.Warn("persist opportunity failed", slog.String("key", opp.Key()), slog.String("error", err.Error()))
		return
	}
	if changed {
		e.emit(opp)
	}
}

// quote returns the current price for (venue,marketID,outcome), preferring
// the freshness-windowed cache over a live adapter call.
func (e *Engine) quote(ctx context.Context, venueTag, marketID, outcome string) (float64, bool) {
	if cached, ok := e.prices.get(venueTag, marketID, outcome); ok {
		return cached.price, true
	}

	adapter, err := e.registry.Get(venueTag)
	if err != nil {
		return 0, false
	}
	q, err := adapter.Quote(ctx, marketID, outcome, quoteSize)
	if err != nil {
		e.logger.Debug("quote failed", slog.String("venue", venueTag), slog.String("market", marketID), slog.String("error", err.Error()))
		return 0, false
	}
	if q.Price <= 0 {
		return 0, false
	}
	e.prices.put(venueTag, marketID, outcome, priceEntry{price: q.Price, fee: q.Fee})
	return q.Price, true
}

func coalesce(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
