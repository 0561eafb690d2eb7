// Package venue defines the uniform contract every trading-venue integration
// implements, plus a registry so the Aggregator and ArbitrageEngine can look
// adapters up by tag without holding back-pointers to them.
package venue

import (
	"context"
	"time"

	"github.com/agenthub/venuecore/internal/domain"
)

// Credential is the decrypted secret an adapter needs for one call. Adapters
// receive it by value per-call and must not retain it.
type Credential struct {
	Venue    string
	Mode     domain.CredentialMode
	APIKey   string
	APISecret string
	Passphrase string
	WalletAddress string
	PrivateKeyHex string
	Extra    map[string]string
}

// FetchOpts bounds a trades/funding pull.
type FetchOpts struct {
	Since *time.Time
	Limit int
}

// Quote is the result of pricing a hypothetical fill.
type Quote struct {
	Price       float64
	Fee         float64
	PriceImpact float64
}

// Capabilities describes what a venue adapter supports. The Aggregator and
// ArbitrageEngine do not consult it: they call adapter methods directly, and
// an unsupported operation returns a NotSupported AdapterError.
type Capabilities struct {
	SupportsFutures bool
	SupportsFunding bool
	SupportsStream  bool
	SupportsSearch  bool
	PriceUnit       string // "probability" (0..1) or "quote_currency"
}

// Adapter is the uniform interface every venue integration implements.
// Every method may fail with an *AdapterError.
type Adapter interface {
	// Tag is the short venue identifier used as the VenueRegistry key
	// (e.g. "polymarket", "binancefutures").
	Tag() string
	Capabilities() Capabilities

	FetchPositions(ctx context.Context, cred Credential) ([]domain.Position, error)
	FetchBalances(ctx context.Context, cred Credential) ([]domain.Balance, error)
	FetchTrades(ctx context.Context, cred Credential, opts FetchOpts) ([]domain.Trade, error)
	FetchFunding(ctx context.Context, cred Credential, opts FetchOpts) ([]domain.FundingPayment, error)
	Quote(ctx context.Context, marketID, side string, size float64) (Quote, error)
}

// SearchableAdapter is implemented by adapters whose venue exposes a market
// search endpoint, used by the ArbitrageEngine's auto-match pass.
type SearchableAdapter interface {
	Adapter
	SearchMarkets(ctx context.Context, term string) ([]domain.Market, error)
}
