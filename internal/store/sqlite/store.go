package sqlite

import "github.com/agenthub/venuecore/internal/domain"

// Store bundles one typed store per entity behind the Client's single
// connection, so callers wire one object instead of twelve constructors.
type Store struct {
	Users         *UserStore
	Credentials   *CredentialStore
	Positions     *PositionStore
	Trades        *TradeStore
	Funding       *FundingStore
	Snapshots     *SnapshotStore
	Markets       *MarketStore
	MarketIndex   *MarketIndexStore
	ArbMatches    *ArbMatchStore
	ArbOpps       *ArbOpportunityStore
	Alerts        *AlertStore
	Jobs          *JobStore
}

// NewStore builds every typed store over the same Client connection.
func NewStore(c *Client) *Store {
	return &Store{
		Users:       NewUserStore(c),
		Credentials: NewCredentialStore(c),
		Positions:   NewPositionStore(c),
		Trades:      NewTradeStore(c),
		Funding:     NewFundingStore(c),
		Snapshots:   NewSnapshotStore(c),
		Markets:     NewMarketStore(c),
		MarketIndex: NewMarketIndexStore(c),
		ArbMatches:  NewArbMatchStore(c),
		ArbOpps:     NewArbOpportunityStore(c),
		Alerts:      NewAlertStore(c),
		Jobs:        NewJobStore(c),
	}
}

// Compile-time assertions that each store satisfies its domain interface.
var (
	_ domain.UserStore            = (*UserStore)(nil)
	_ domain.CredentialStore      = (*CredentialStore)(nil)
	_ domain.PositionStore        = (*PositionStore)(nil)
	_ domain.TradeStore           = (*TradeStore)(nil)
	_ domain.FundingStore         = (*FundingStore)(nil)
	_ domain.SnapshotStore        = (*SnapshotStore)(nil)
	_ domain.MarketStore          = (*MarketStore)(nil)
	_ domain.MarketIndexStore     = (*MarketIndexStore)(nil)
	_ domain.ArbMatchStore        = (*ArbMatchStore)(nil)
	_ domain.ArbOpportunityStore  = (*ArbOpportunityStore)(nil)
	_ domain.AlertStore           = (*AlertStore)(nil)
	_ domain.JobStore             = (*JobStore)(nil)
)
