package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination and time-range filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// StatsPeriod selects the window HistoryService aggregates over.
type StatsPeriod string

const (
	StatsPeriodDay   StatsPeriod = "day"
	StatsPeriodWeek  StatsPeriod = "week"
	StatsPeriodMonth StatsPeriod = "month"
	StatsPeriodAll   StatsPeriod = "all"
)

// UserStore persists User rows.
type UserStore interface {
	GetOrCreate(ctx context.Context, externalPlatformID string) (User, error)
	GetByID(ctx context.Context, id string) (User, error)
	List(ctx context.Context) ([]User, error)
	UpdateSettings(ctx context.Context, id string, settings map[string]string) error
	Delete(ctx context.Context, id string) error
}

// CredentialStore persists encrypted TradingCredential rows.
type CredentialStore interface {
	Upsert(ctx context.Context, c TradingCredential) error
	Get(ctx context.Context, userID, venue string) (TradingCredential, error)
	ListEnabled(ctx context.Context, userID string) ([]TradingCredential, error)
	RecordFailure(ctx context.Context, userID, venue string, cooldownUntil *time.Time) error
	RecordSuccess(ctx context.Context, userID, venue string) error
	SetEnabled(ctx context.Context, userID, venue string, enabled bool) error
}

// PositionStore persists normalized Position rows.
type PositionStore interface {
	Upsert(ctx context.Context, p Position) error
	GetOpen(ctx context.Context, userID string) ([]Position, error)
	ListHistory(ctx context.Context, userID string, opts ListOpts) ([]Position, error)
	Delete(ctx context.Context, userID, venue, marketID, outcomeID string) error
	DeleteAllForUser(ctx context.Context, userID string) error
}

// TradeStore persists append-only Trade rows, deduplicated by
// (venue, venueTradeID) when venueTradeID is present.
type TradeStore interface {
	InsertBatch(ctx context.Context, trades []Trade) (inserted int, err error)
	ListByUser(ctx context.Context, userID string, opts ListOpts) ([]Trade, error)
	ListByMarket(ctx context.Context, venue, marketID string, opts ListOpts) ([]Trade, error)
	GetLastTimestamp(ctx context.Context, userID, venue string) (time.Time, error)
}

// FundingStore persists append-only FundingPayment rows.
type FundingStore interface {
	InsertBatch(ctx context.Context, payments []FundingPayment) error
	Total(ctx context.Context, userID, venue string, since time.Time) (float64, error)
}

// SnapshotStore persists the append-only PortfolioSnapshot time series.
type SnapshotStore interface {
	Insert(ctx context.Context, s PortfolioSnapshot) error
	ListByUser(ctx context.Context, userID string, opts ListOpts) ([]PortfolioSnapshot, error)
	DeleteBefore(ctx context.Context, userID string, before time.Time) (int64, error)
}

// MarketStore persists the TTL-cached Market rows.
type MarketStore interface {
	Upsert(ctx context.Context, m Market) error
	Get(ctx context.Context, venue, marketID string) (*Market, error)
	EvictStale(ctx context.Context, before time.Time) (int64, error)
}

// MarketIndexStore persists MarketIndexEntry rows for cross-venue matching.
type MarketIndexStore interface {
	Upsert(ctx context.Context, e MarketIndexEntry) error
	ListByVenue(ctx context.Context, venue string) ([]MarketIndexEntry, error)
	List(ctx context.Context) ([]MarketIndexEntry, error)
	Prune(ctx context.Context, before time.Time) (int64, error)
}

// ArbMatchStore persists ArbMatch records.
type ArbMatchStore interface {
	Add(ctx context.Context, m ArbMatch) error
	Remove(ctx context.Context, id string) error
	List(ctx context.Context) ([]ArbMatch, error)
}

// ArbOpportunityStore persists ArbOpportunity records.
type ArbOpportunityStore interface {
	Upsert(ctx context.Context, o ArbOpportunity) error
	ListActive(ctx context.Context) ([]ArbOpportunity, error)
	ExpireBefore(ctx context.Context, now time.Time) (int64, error)
}

// AlertStore persists Alert rows.
type AlertStore interface {
	Upsert(ctx context.Context, a Alert) error
	Get(ctx context.Context, id string) (Alert, error)
	ListEnabledForMarket(ctx context.Context, venue, marketID string) ([]Alert, error)
	ListByUser(ctx context.Context, userID string) ([]Alert, error)
	RecordTrigger(ctx context.Context, id string, at time.Time) error
	Delete(ctx context.Context, id string) error
}

// ScheduledJob is a persisted Scheduler registry row.
type ScheduledJob struct {
	ID         string
	CronSpec   string
	Enabled    bool
	LastRunAt  *time.Time
	LastResult string
}

// JobStore persists the Scheduler's job registry.
type JobStore interface {
	Upsert(ctx context.Context, j ScheduledJob) error
	List(ctx context.Context) ([]ScheduledJob, error)
	RecordRun(ctx context.Context, id string, ranAt time.Time, result string) error
}
