// Package pumpfun implements venue.Adapter for Pump.fun, a Solana
// bonding-curve token launchpad. Wallet "positions" are SPL token balances
// read on-chain; "trades" are buys/sells pulled from Pump.fun's public
// trade-history API. Pump.fun pricing follows a bonding curve rather than an
// order book, so Quote reads the curve's current implied price directly.
package pumpfun

import (
	"context"
	"net/url"
	"strconv"
	"time"

	"github.com/agenthub/venuecore/internal/domain"
	"github.com/agenthub/venuecore/internal/venue"
	"github.com/agenthub/venuecore/internal/venue/httpx"
	"github.com/agenthub/venuecore/internal/venue/solanarpc"
)

const Tag = "pumpfun"

// Adapter reads wallet token balances, trade history, and bonding-curve
// prices for Pump.fun.
type Adapter struct {
	api *httpx.Client
	rpc *solanarpc.Client
}

// New creates a Pump.fun adapter. apiURL is normally
// "https://frontend-api.pump.fun" and rpcURL a Solana RPC endpoint.
func New(apiURL, rpcURL string) *Adapter {
	return &Adapter{api: httpx.New(Tag, apiURL), rpc: solanarpc.New(Tag, rpcURL)}
}

var _ venue.Adapter = (*Adapter)(nil)

func (a *Adapter) Tag() string { return Tag }

func (a *Adapter) Capabilities() venue.Capabilities {
	return venue.Capabilities{
		SupportsFutures: false,
		SupportsFunding: false,
		SupportsStream:  false,
		SupportsSearch:  false,
		PriceUnit:       "quote_currency",
	}
}

func (a *Adapter) FetchPositions(ctx context.Context, cred venue.Credential) ([]domain.Position, error) {
	accounts, err := a.rpc.GetTokenAccountsByOwner(ctx, cred.WalletAddress)
	if err != nil {
		return nil, httpx.WrapErr(Tag, err)
	}
	now := time.Now()
	out := make([]domain.Position, 0, len(accounts))
	for _, acct := range accounts {
		out = append(out, domain.Position{
			Venue:      Tag,
			MarketID:   acct.Mint,
			OutcomeID:  "spot",
			Side:       "long",
			Size:       acct.Amount,
			OpenedAt:   now,
			UpdatedAt:  now,
			MarginMode: domain.MarginModeCross,
		})
	}
	return out, nil
}

func (a *Adapter) FetchBalances(ctx context.Context, cred venue.Credential) ([]domain.Balance, error) {
	lamports, err := a.rpc.GetBalance(ctx, cred.WalletAddress)
	if err != nil {
		return nil, httpx.WrapErr(Tag, err)
	}
	sol := float64(lamports) / 1e9
	out := []domain.Balance{{Venue: Tag, Asset: "SOL", Available: sol, Total: sol}}

	accounts, err := a.rpc.GetTokenAccountsByOwner(ctx, cred.WalletAddress)
	if err != nil {
		return nil, httpx.WrapErr(Tag, err)
	}
	for _, acct := range accounts {
		out = append(out, domain.Balance{Venue: Tag, Asset: acct.Mint, Available: acct.Amount, Total: acct.Amount})
	}
	return out, nil
}

type apiTrade struct {
	Signature string  `json:"signature"`
	Mint      string  `json:"mint"`
	IsBuy     bool    `json:"is_buy"`
	SolAmount float64 `json:"sol_amount"`
	TokenAmount float64 `json:"token_amount"`
	Ts        int64   `json:"timestamp"`
}

func (a *Adapter) FetchTrades(ctx context.Context, cred venue.Credential, opts venue.FetchOpts) ([]domain.Trade, error) {
	params := url.Values{}
	if opts.Limit > 0 {
		params.Set("limit", strconv.Itoa(opts.Limit))
	}
	path := "/trades/user/" + url.PathEscape(cred.WalletAddress)
	if len(params) > 0 {
		path += "?" + params.Encode()
	}

	var trades []apiTrade
	if err := a.api.Do(ctx, httpx.Request{Method: "GET", Path: path}, &trades); err != nil {
		return nil, httpx.WrapErr(Tag, err)
	}

	out := make([]domain.Trade, 0, len(trades))
	for _, t := range trades {
		if opts.Since != nil && time.Unix(t.Ts, 0).Before(*opts.Since) {
			continue
		}
		side := "buy"
		if !t.IsBuy {
			side = "sell"
		}
		out = append(out, domain.Trade{
			Venue:        Tag,
			VenueTradeID: t.Signature,
			MarketID:     t.Mint,
			OutcomeID:    t.Mint,
			Side:         side,
			Size:         t.TokenAmount,
			Price:        safeDiv(t.SolAmount, t.TokenAmount),
			Timestamp:    time.Unix(t.Ts, 0),
		})
	}
	return out, nil
}

func (a *Adapter) FetchFunding(ctx context.Context, cred venue.Credential, opts venue.FetchOpts) ([]domain.FundingPayment, error) {
	return nil, venue.NewNotSupported(Tag, "FetchFunding")
}

// Quote reads a token's current bonding-curve implied price in SOL:
// marketID is the token mint address.
func (a *Adapter) Quote(ctx context.Context, marketID, side string, size float64) (venue.Quote, error) {
	path := "/coins/" + url.PathEscape(marketID)
	var resp struct {
		VirtualSolReserves   float64 `json:"virtual_sol_reserves"`
		VirtualTokenReserves float64 `json:"virtual_token_reserves"`
	}
	if err := a.api.Do(ctx, httpx.Request{Method: "GET", Path: path}, &resp); err != nil {
		return venue.Quote{}, httpx.WrapErr(Tag, err)
	}
	return venue.Quote{Price: safeDiv(resp.VirtualSolReserves, resp.VirtualTokenReserves)}, nil
}

func safeDiv(a, b float64) float64 {
	if b == 0 {
		return 0
	}
	return a / b
}
