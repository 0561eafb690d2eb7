// Package aggregator implements the Aggregator: the read path that fans a
// portfolio summary request out across every venue a user has enabled
// credentials for, merges what comes back, and tolerates partial failure.
// The fan-out shape is grounded on the teacher's internal/arbitrage detector
// loop (bounded concurrency over a slice of venues via golang.org/x/sync/
// errgroup), generalized from "poll every exchange for a spread" to
// "poll every venue for positions and balances".
package aggregator

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/agenthub/venuecore/internal/accum"
	"github.com/agenthub/venuecore/internal/cache"
	"github.com/agenthub/venuecore/internal/config"
	"github.com/agenthub/venuecore/internal/domain"
	"github.com/agenthub/venuecore/internal/vault"
	"github.com/agenthub/venuecore/internal/venue"
)

// Summary is the merged, cross-venue view of a user's portfolio.
type Summary struct {
	UserID         string
	Positions      []domain.Position
	Balances       []domain.Balance
	TotalValue     float64
	TotalCostBasis float64
	TotalPnl       float64
	TotalPnlPct    float64
	Failures       []VenueFailure
	GeneratedAt    time.Time
}

// VenueFailure records a venue that could not be reached for this summary,
// so the caller can surface a partial-data warning without the whole
// request failing.
type VenueFailure struct {
	Venue string
	Op    string
	Err   error
}

// Aggregator merges live positions and balances across every enabled venue
// for a user, behind a short-lived cache.
type Aggregator struct {
	registry    *venue.Registry
	credentials domain.CredentialStore
	vault       *vault.Vault
	cache       *cache.TTLCache[string, Summary]
	rateLimited *cache.TTLCache[string, struct{}]
	fetchTimeout time.Duration
	logger      *slog.Logger
}

// New creates an Aggregator. cfg.FetchTimeoutSeconds and cfg.CacheTTLSeconds
// default to 10s and 30s respectively when zero.
func New(registry *venue.Registry, credentials domain.CredentialStore, v *vault.Vault, cfg config.AggregatorConfig, logger *slog.Logger) *Aggregator {
	timeout := time.Duration(cfg.FetchTimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ttl := time.Duration(cfg.CacheTTLSeconds) * time.Second
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &Aggregator{
		registry:     registry,
		credentials:  credentials,
		vault:        v,
		cache:        cache.New[string, Summary](ttl),
		rateLimited:  cache.New[string, struct{}](0),
		fetchTimeout: timeout,
		logger:       logger.With(slog.String("component", "aggregator")),
	}
}

// rateLimitKey identifies a (user, venue) pair in the rate-limit cache.
func rateLimitKey(userID, venueTag string) string {
	return userID + ":" + venueTag
}

// venueResult carries one venue's positions or balances fetch outcome back
// from a fan-out goroutine.
type venueResult struct {
	venue     string
	positions []domain.Position
	balances  []domain.Balance
	err       error
}

// GetSummary returns userID's merged portfolio summary, serving a cached
// result when one is fresh. Per-venue failures are collected and excluded
// from the merge rather than failing the whole call.
func (a *Aggregator) GetSummary(ctx context.Context, userID string) (Summary, error) {
	if cached, ok := a.cache.Get(userID); ok {
		return cached, nil
	}

	creds, err := a.credentials.ListEnabled(ctx, userID)
	if err != nil {
		return Summary{}, err
	}

	positions, balances, failures := a.fetchAll(ctx, userID, creds)

	summary := Summary{
		UserID:      userID,
		Positions:   positions,
		Balances:    balances,
		Failures:    failures,
		GeneratedAt: time.Now(),
	}
	summarize(&summary)

	a.cache.Put(userID, summary)
	return summary, nil
}

// fetchAll launches one bounded-timeout fetch per enabled credential,
// fanning positions and balances out together per venue, and waits for all
// of them to settle. A venue erroring does not cancel its siblings.
func (a *Aggregator) fetchAll(ctx context.Context, userID string, creds []domain.TradingCredential) ([]domain.Position, []domain.Balance, []VenueFailure) {
	results := make([]venueResult, len(creds))

	g, gctx := errgroup.WithContext(ctx)
	for i, cred := range creds {
		i, cred := i, cred
		g.Go(func() error {
			results[i] = a.fetchVenue(gctx, userID, cred)
			return nil
		})
	}
	_ = g.Wait() // per-venue errors are carried in results, never propagated here

	var positions []domain.Position
	var balances []domain.Balance
	var failures []VenueFailure
	for _, r := range results {
		if r.venue == "" {
			continue
		}
		if r.err != nil {
			failures = append(failures, VenueFailure{Venue: r.venue, Op: "fetch", Err: r.err})
			a.logger.Warn("venue fetch failed", slog.String("venue", r.venue), slog.String("error", r.err.Error()))
			continue
		}
		positions = append(positions, r.positions...)
		balances = append(balances, r.balances...)
	}
	return positions, balances, failures
}

// fetchVenue fetches one venue's positions and balances under a bounded
// timeout. It never returns an error itself: failures are reported inside
// venueResult so a bad venue can't abort its siblings via errgroup.
func (a *Aggregator) fetchVenue(ctx context.Context, userID string, cred domain.TradingCredential) venueResult {
	if _, limited := a.rateLimited.Get(rateLimitKey(userID, cred.Venue)); limited {
		return venueResult{venue: cred.Venue, err: venue.NewRateLimited(cred.Venue, 0)}
	}

	adapter, err := a.registry.Get(cred.Venue)
	if err != nil {
		return venueResult{venue: cred.Venue, err: err}
	}

	blob, err := a.vault.Get(ctx, userID, cred.Venue)
	if err != nil {
		return venueResult{venue: cred.Venue, err: err}
	}
	vc := toVenueCredential(cred, blob)

	fctx, cancel := context.WithTimeout(ctx, a.fetchTimeout)
	defer cancel()

	positions, posErr := adapter.FetchPositions(fctx, vc)
	if posErr != nil {
		a.recordFailure(ctx, userID, cred.Venue, posErr)
		return venueResult{venue: cred.Venue, err: posErr}
	}
	balances, balErr := adapter.FetchBalances(fctx, vc)
	if balErr != nil {
		a.recordFailure(ctx, userID, cred.Venue, balErr)
		return venueResult{venue: cred.Venue, err: balErr}
	}

	_ = a.vault.RecordSuccess(ctx, userID, cred.Venue)
	for i := range positions {
		positions[i].UserID = userID
	}
	return venueResult{venue: cred.Venue, positions: positions, balances: balances}
}

// recordFailure handles the per-Kind error policy spec.md §7 describes: only
// AuthError counts against the CredentialVault's cooldown counter;
// RateLimited instead skips the venue in the aggregator's own rate-limit
// cache until now+retryAfter, without touching the vault at all.
func (a *Aggregator) recordFailure(ctx context.Context, userID, venueTag string, err error) {
	aerr, ok := err.(*venue.AdapterError)
	if !ok {
		return
	}
	switch aerr.Kind {
	case venue.KindAuth:
		if recErr := a.vault.RecordFailure(ctx, userID, venueTag); recErr != nil {
			a.logger.Warn("failed to record credential failure", slog.String("venue", venueTag), slog.String("error", recErr.Error()))
		}
	case venue.KindRateLimited:
		retryAfter := aerr.RetryAfter
		if retryAfter <= 0 {
			retryAfter = time.Minute
		}
		a.rateLimited.PutUntil(rateLimitKey(userID, venueTag), struct{}{}, time.Now().Add(retryAfter))
	}
}

func toVenueCredential(cred domain.TradingCredential, blob vault.Blob) venue.Credential {
	return venue.Credential{
		Venue:         cred.Venue,
		Mode:          cred.Mode,
		APIKey:        blob.APIKey,
		APISecret:     blob.APISecret,
		Passphrase:    blob.Passphrase,
		WalletAddress: blob.WalletAddress,
		PrivateKeyHex: blob.PrivateKeyHex,
		Extra:         blob.Extra,
	}
}

// summarize fills in the derived totals on s from s.Positions, using
// compensated summation so long position lists don't lose precision to
// naive running sums.
func summarize(s *Summary) {
	var value, cost, pnl accum.Kahan
	for _, p := range s.Positions {
		value.Add(p.Value())
		cost.Add(p.CostBasis())
		pnl.Add(p.PnL())
	}
	s.TotalValue = value.Sum()
	s.TotalCostBasis = cost.Sum()
	s.TotalPnl = pnl.Sum()
	if s.TotalCostBasis != 0 {
		s.TotalPnlPct = s.TotalPnl / s.TotalCostBasis * 100
	}

	sort.Slice(s.Positions, func(i, j int) bool {
		if s.Positions[i].Venue != s.Positions[j].Venue {
			return s.Positions[i].Venue < s.Positions[j].Venue
		}
		return s.Positions[i].MarketID < s.Positions[j].MarketID
	})
}

// Invalidate drops userID's cached summary, forcing the next GetSummary call
// to re-fetch from every venue.
func (a *Aggregator) Invalidate(userID string) {
	a.cache.Invalidate(userID)
}
