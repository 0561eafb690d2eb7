// Package app wires together every venuecore component into the single
// long-running core service: Store, venue adapters, Aggregator,
// HistoryService, RiskAnalyzer, ArbitrageEngine, CredentialVault, Scheduler,
// and Alerts, generalizing the teacher's internal/app package (App +
// Dependencies + Wire, reverse-order closers) from a multi-mode bot to one
// always-on service.
package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/agenthub/venuecore/internal/aggregator"
	"github.com/agenthub/venuecore/internal/alerts"
	"github.com/agenthub/venuecore/internal/arbitrage"
	"github.com/agenthub/venuecore/internal/config"
	"github.com/agenthub/venuecore/internal/domain"
	"github.com/agenthub/venuecore/internal/history"
	"github.com/agenthub/venuecore/internal/risk"
	"github.com/agenthub/venuecore/internal/scheduler"
	"github.com/agenthub/venuecore/internal/store"
	"github.com/agenthub/venuecore/internal/vault"
)

// App is the root application object. It owns configuration, the wired
// dependency set, and a reverse-order teardown stack, the same shape as
// the teacher's App.
type App struct {
	cfg    *config.Config
	logger *slog.Logger

	deps      *Dependencies
	cleanup   func()
	vault     *vault.Vault
	aggr      *aggregator.Aggregator
	history   *history.Service
	risk      *risk.Analyzer
	arbEngine *arbitrage.Engine
	indexer   *arbitrage.Indexer
	alerts    *alerts.Engine
	backup    *store.BackupService
	sched     *scheduler.Scheduler
}

// New creates an App from cfg and logger. Call Run to wire dependencies and
// start serving; call Close on shutdown.
func New(cfg *config.Config, logger *slog.Logger) *App {
	return &App{cfg: cfg, logger: logger.With(slog.String("component", "app"))}
}

// Run wires all dependencies, registers the Scheduler's jobs, starts the
// Scheduler, and blocks until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	deps, cleanup, err := Wire(ctx, a.cfg, a.logger)
	if err != nil {
		return fmt.Errorf("app: wire dependencies: %w", err)
	}
	a.deps = deps
	a.cleanup = cleanup

	a.vault = vault.New(deps.Store.Credentials, a.cfg.Vault.Passphrase)
	a.aggr = aggregator.New(deps.Registry, deps.Store.Credentials, a.vault, a.cfg.Aggregator, a.logger)
	a.history = history.New(deps.Registry, deps.Store.Trades, deps.Store.Credentials, a.vault, a.cfg.History, a.logger)
	a.risk = risk.New(deps.Store.Markets)
	a.alerts = alerts.New(deps.Store.Alerts, deps.Notifier, a.logger)

	matchers := arbitrage.NewRegistry()
	a.arbEngine = arbitrage.New(deps.Registry, deps.Store.ArbMatches, deps.Store.ArbOpps, a.cfg.Arbitrage, a.logger)
	a.indexer = arbitrage.NewIndexer(deps.Registry, deps.Store.MarketIndex, deps.Store.ArbMatches, matchers, a.cfg.Arbitrage.MinMatchConfidence, a.logger)

	a.arbEngine.Subscribe(a.onOpportunity)

	var archiver store.Archiver
	if deps.BackupArchiver != nil {
		archiver = deps.BackupArchiver
	}
	a.backup = store.NewBackupService(deps.DB, a.cfg.StateDir+"/"+a.cfg.Backup.Dir, a.cfg.Backup.Retention, archiver, a.logger)

	a.sched = scheduler.New(deps.Store.Jobs, a.cfg.Scheduler, a.logger)
	if err := a.registerJobs(ctx); err != nil {
		a.Close()
		return fmt.Errorf("app: register jobs: %w", err)
	}
	a.sched.Start()

	a.logger.InfoContext(ctx, "venuecore started", slog.Any("venues", deps.Registry.List()))

	<-ctx.Done()
	return ctx.Err()
}

// registerJobs binds the Scheduler's named jobs (spec.md §4.8) to their
// handlers, reading cron specs from cfg.Scheduler.Jobs.
func (a *App) registerJobs(ctx context.Context) error {
	spec := func(id, fallback string) string {
		if s, ok := a.cfg.Scheduler.Jobs[id]; ok && s != "" {
			return s
		}
		return fallback
	}

	if err := a.sched.Register(ctx, "portfolio.snapshot", spec("portfolio.snapshot", "0 */1 * * *"), a.jobPortfolioSnapshot); err != nil {
		return err
	}
	if err := a.sched.Register(ctx, "history.sync", spec("history.sync", "*/15 * * * *"), a.jobHistorySync); err != nil {
		return err
	}
	if a.cfg.Arbitrage.Enabled {
		if err := a.sched.Register(ctx, "arbitrage.tick", spec("arbitrage.tick", "* * * * *"), a.jobArbitrageTick); err != nil {
			return err
		}
	}
	if err := a.sched.Register(ctx, "db.backup", spec("db.backup", "0 * * * *"), a.jobDBBackup); err != nil {
		return err
	}
	if err := a.sched.Register(ctx, "market.index.prune", spec("market.index.prune", "0 3 * * *"), a.jobMarketIndexPrune); err != nil {
		return err
	}
	if err := a.sched.Register(ctx, "sessions.prune", spec("sessions.prune", "30 3 * * *"), a.jobSessionsPrune); err != nil {
		return err
	}
	return nil
}

// jobPortfolioSnapshot records a PortfolioSnapshot for every user, pulling
// each user's current aggregated summary through the Aggregator.
func (a *App) jobPortfolioSnapshot(ctx context.Context) error {
	users, err := a.deps.Store.Users.List(ctx)
	if err != nil {
		return err
	}
	for _, u := range users {
		summary, err := a.aggr.GetSummary(ctx, u.ID)
		if err != nil {
			a.logger.Warn("portfolio snapshot fetch failed", slog.String("user", u.ID), slog.String("error", err.Error()))
			continue
		}
		breakdown := make(map[string]domain.VenueBreakdown)
		for _, p := range summary.Positions {
			b := breakdown[p.Venue]
			b.Value += p.Value()
			b.PnL += p.PnL()
			b.PositionCount++
			breakdown[p.Venue] = b
		}
		snap := domain.PortfolioSnapshot{
			UserID:            u.ID,
			TotalValue:        summary.TotalValue,
			TotalPnl:          summary.TotalPnl,
			TotalPnlPct:       summary.TotalPnlPct,
			TotalCostBasis:    summary.TotalCostBasis,
			PositionsCount:    len(summary.Positions),
			PerVenueBreakdown: breakdown,
			CreatedAt:         time.Now().UTC(),
		}
		if err := a.deps.Store.Snapshots.Insert(ctx, snap); err != nil {
			a.logger.Warn("portfolio snapshot insert failed", slog.String("user", u.ID), slog.String("error", err.Error()))
		}
	}
	return nil
}

// jobHistorySync runs HistoryService.Sync for every user.
func (a *App) jobHistorySync(ctx context.Context) error {
	users, err := a.deps.Store.Users.List(ctx)
	if err != nil {
		return err
	}
	for _, u := range users {
		if _, err := a.history.Sync(ctx, u.ID); err != nil {
			a.logger.Warn("history sync failed", slog.String("user", u.ID), slog.String("error", err.Error()))
		}
	}
	return nil
}

// jobArbitrageTick runs one ArbitrageEngine.Tick pass.
func (a *App) jobArbitrageTick(ctx context.Context) error {
	ttl := time.Duration(a.cfg.Arbitrage.OpportunityTTLMs) * time.Millisecond
	return a.arbEngine.Tick(ctx, ttl)
}

// jobDBBackup runs the backup-and-prune cycle.
func (a *App) jobDBBackup(ctx context.Context) error {
	return a.backup.Run(ctx)
}

// jobMarketIndexPrune evicts market index entries untouched for 7 days.
func (a *App) jobMarketIndexPrune(ctx context.Context) error {
	_, err := a.indexer.Prune(ctx, time.Now().UTC().AddDate(0, 0, -7))
	return err
}

// jobSessionsPrune evicts portfolio snapshots older than 90 days per user,
// per spec.md §4.8's "sessions.prune" job: this service has no standalone
// session entity (spec.md §3 defines none), so the closest persisted
// per-user history subject to unbounded growth is PortfolioSnapshot rows.
func (a *App) jobSessionsPrune(ctx context.Context) error {
	users, err := a.deps.Store.Users.List(ctx)
	if err != nil {
		return err
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -90)
	for _, u := range users {
		if _, err := a.deps.Store.Snapshots.DeleteBefore(ctx, u.ID, cutoff); err != nil {
			a.logger.Warn("session prune failed", slog.String("user", u.ID), slog.String("error", err.Error()))
		}
	}
	return nil
}

// onOpportunity fans an emitted ArbOpportunity out to the Redis SignalBus
// (when configured) and feeds the Alerts engine's spread-triggered
// condition check.
func (a *App) onOpportunity(o domain.ArbOpportunity) {
	ctx := context.Background()

	if a.deps.RedisSignalBus != nil {
		if payload, err := json.Marshal(o); err == nil {
			if err := a.deps.RedisSignalBus.Publish(ctx, "arb.opportunity", payload); err != nil {
				a.logger.Warn("publish opportunity failed", slog.String("error", err.Error()))
			}
			_ = a.deps.RedisSignalBus.StreamAppend(ctx, "arb.opportunity.stream", payload)
		}
	}

	spread := o.Spread
	for _, leg := range []domain.ArbLeg{o.Buy, o.Sell} {
		if err := a.alerts.Evaluate(ctx, alerts.PriceTick{
			Venue: leg.Venue, MarketID: leg.MarketID, Price: leg.Price, Spread: &spread,
		}); err != nil {
			a.logger.Warn("alert evaluate failed", slog.String("error", err.Error()))
		}
	}
}

// Close stops the Scheduler within the configured deadline, then tears down
// every wired dependency in reverse order. Safe to call multiple times.
func (a *App) Close() {
	if a.sched != nil {
		stopCtx, cancel := context.WithTimeout(context.Background(), time.Duration(a.cfg.Scheduler.DeadlineSeconds)*time.Second)
		if err := a.sched.Stop(stopCtx); err != nil {
			a.logger.Warn("scheduler stop deadline exceeded", slog.String("error", err.Error()))
		}
		cancel()
	}
	if a.cleanup != nil {
		a.cleanup()
		a.cleanup = nil
	}
}
