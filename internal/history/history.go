// Package history implements HistoryService: periodic trade ingestion per
// spec.md §4.4, deduplicated by (venue, venueTradeID), plus the rolling
// win-rate and daily P&L statistics computed over the ingested trade log.
// The sync loop's shape is grounded on the teacher's cron-driven strategy
// runner (internal/server/handler/strategy_runtime.go): pull-then-persist
// per enabled credential, logged with log/slog, one user at a time so
// Sync is safe to call concurrently for different users.
package history

import (
	"context"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/agenthub/venuecore/internal/config"
	"github.com/agenthub/venuecore/internal/domain"
	"github.com/agenthub/venuecore/internal/vault"
	"github.com/agenthub/venuecore/internal/venue"
)

// Service pulls trade history from every enabled venue for a user,
// deduplicates on write, and serves aggregate statistics over what's been
// ingested.
type Service struct {
	registry *venue.Registry
	trades   domain.TradeStore
	creds    domain.CredentialStore
	vault    *vault.Vault
	pullLimit int
	logger   *slog.Logger
}

// New creates a history Service. cfg.PullLimit defaults to 500 when zero.
func New(registry *venue.Registry, trades domain.TradeStore, creds domain.CredentialStore, v *vault.Vault, cfg config.HistoryConfig, logger *slog.Logger) *Service {
	limit := cfg.PullLimit
	if limit <= 0 {
		limit = 500
	}
	return &Service{
		registry:  registry,
		trades:    trades,
		creds:     creds,
		vault:     v,
		pullLimit: limit,
		logger:    logger.With(slog.String("component", "history")),
	}
}

// SyncResult reports how a single user's sync pass went, per venue.
type SyncResult struct {
	Venue    string
	Inserted int
	Err      error
}

// Sync pulls new trades for userID from every enabled venue since that
// venue's last recorded trade timestamp, and persists them. It is
// reentrant-safe per user: a failing venue does not block its siblings or
// fail the overall call.
func (s *Service) Sync(ctx context.Context, userID string) ([]SyncResult, error) {
	creds, err := s.creds.ListEnabled(ctx, userID)
	if err != nil {
		return nil, err
	}

	results := make([]SyncResult, 0, len(creds))
	for _, cred := range creds {
		adapter, err := s.registry.Get(cred.Venue)
		if err != nil {
			results = append(results, SyncResult{Venue: cred.Venue, Err: err})
			continue
		}

		since, err := s.trades.GetLastTimestamp(ctx, userID, cred.Venue)
		if err != nil {
			results = append(results, SyncResult{Venue: cred.Venue, Err: err})
			continue
		}

		blob, err := s.vault.Get(ctx, userID, cred.Venue)
		if err != nil {
			results = append(results, SyncResult{Venue: cred.Venue, Err: err})
			continue
		}
		vc := venue.Credential{
			Venue: cred.Venue, Mode: cred.Mode,
			APIKey: blob.APIKey, APISecret: blob.APISecret, Passphrase: blob.Passphrase,
			WalletAddress: blob.WalletAddress, PrivateKeyHex: blob.PrivateKeyHex, Extra: blob.Extra,
		}

		opts := venue.FetchOpts{Limit: s.pullLimit}
		if !since.IsZero() {
			opts.Since = &since
		}

		fetched, err := adapter.FetchTrades(ctx, vc, opts)
		if err != nil {
			if aerr, ok := err.(*venue.AdapterError); ok && aerr.Kind == venue.KindNotSupported {
				continue // venue has no trade history endpoint (e.g. evmdex)
			}
			s.logger.Warn("trade pull failed", slog.String("venue", cred.Venue), slog.String("error", err.Error()))
			results = append(results, SyncResult{Venue: cred.Venue, Err: err})
			continue
		}
		for i := range fetched {
			fetched[i].UserID = userID
		}

		inserted, err := s.trades.InsertBatch(ctx, fetched)
		if err != nil {
			results = append(results, SyncResult{Venue: cred.Venue, Err: err})
			continue
		}
		results = append(results, SyncResult{Venue: cred.Venue, Inserted: inserted})
	}
	return results, nil
}

// Stats is the rolling performance summary returned by GetStats.
type Stats struct {
	Period       domain.StatsPeriod
	TotalTrades  int
	TotalVolume  float64
	TotalPnl     float64
	Wins         int
	Losses       int
	WinRate      float64
	ProfitFactor float64
	AvgWin       float64
	AvgLoss      float64
	LargestWin   float64
	LargestLoss  float64
}

// groupKey identifies one (venue, marketID, outcome) fill group.
type groupKey struct {
	venue, market, outcome string
}

// GetStats groups userID's trades by (venue, marketId, outcome) and
// aggregates realized P&L over the requested window.
func (s *Service) GetStats(ctx context.Context, userID string, period domain.StatsPeriod) (Stats, error) {
	opts := domain.ListOpts{}
	if since := periodStart(period); since != nil {
		opts.Since = since
	}

	trades, err := s.trades.ListByUser(ctx, userID, opts)
	if err != nil {
		return Stats{}, err
	}

	groups := map[groupKey]float64{}
	var totalVolume float64
	for _, t := range trades {
		key := groupKey{t.Venue, t.MarketID, t.OutcomeID}
		value := t.Value()
		totalVolume += value
		if t.Side == "sell" {
			groups[key] += value - t.Fee
		} else {
			groups[key] -= value + t.Fee
		}
	}

	stats := Stats{Period: period, TotalTrades: len(trades), TotalVolume: totalVolume}
	var sumWins, sumLosses float64
	for _, pnl := range groups {
		stats.TotalPnl += pnl
		switch {
		case pnl > 0:
			stats.Wins++
			sumWins += pnl
			if pnl > stats.LargestWin {
				stats.LargestWin = pnl
			}
		case pnl < 0:
			stats.Losses++
			sumLosses += pnl
			if pnl < stats.LargestLoss {
				stats.LargestLoss = pnl
			}
		}
	}

	if stats.Wins+stats.Losses > 0 {
		stats.WinRate = float64(stats.Wins) / float64(stats.Wins+stats.Losses) * 100
	}
	switch {
	case sumLosses == 0 && sumWins > 0:
		stats.ProfitFactor = math.Inf(1)
	case sumLosses == 0:
		stats.ProfitFactor = 0
	default:
		stats.ProfitFactor = sumWins / math.Abs(sumLosses)
	}
	if stats.Wins > 0 {
		stats.AvgWin = sumWins / float64(stats.Wins)
	}
	if stats.Losses > 0 {
		stats.AvgLoss = sumLosses / float64(stats.Losses)
	}
	return stats, nil
}

// DailyPnl is one UTC day's realized P&L and traded volume.
type DailyPnl struct {
	Day    time.Time
	Pnl    float64
	Volume float64
}

// GetDailyPnl returns userID's realized P&L and traded volume per UTC day
// over the trailing `days` days, oldest first.
func (s *Service) GetDailyPnl(ctx context.Context, userID string, days int) ([]DailyPnl, error) {
	since := time.Now().UTC().AddDate(0, 0, -days)
	trades, err := s.trades.ListByUser(ctx, userID, domain.ListOpts{Since: &since})
	if err != nil {
		return nil, err
	}

	byDay := map[time.Time]*DailyPnl{}
	for _, t := range trades {
		day := t.Timestamp.UTC().Truncate(24 * time.Hour)
		d, ok := byDay[day]
		if !ok {
			d = &DailyPnl{Day: day}
			byDay[day] = d
		}
		value := t.Value()
		d.Volume += value
		if t.Side == "sell" {
			d.Pnl += value - t.Fee
		} else {
			d.Pnl -= value + t.Fee
		}
	}

	out := make([]DailyPnl, 0, len(byDay))
	for _, d := range byDay {
		out = append(out, *d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Day.Before(out[j].Day) })
	return out, nil
}

func periodStart(period domain.StatsPeriod) *time.Time {
	now := time.Now().UTC()
	var since time.Time
	switch period {
	case domain.StatsPeriodDay:
		since = now.AddDate(0, 0, -1)
	case domain.StatsPeriodWeek:
		since = now.AddDate(0, 0, -7)
	case domain.StatsPeriodMonth:
		since = now.AddDate(0, -1, 0)
	default:
		return nil
	}
	return &since
}
