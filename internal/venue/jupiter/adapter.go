// Package jupiter implements venue.Adapter for Jupiter, Solana's swap
// aggregator. Jupiter has no margin account or resting positions: a wallet's
// "position" on this venue is just its current SPL token balances, read
// on-chain via internal/venue/solanarpc, and a "trade" is a completed swap
// pulled from Jupiter's public stats API. Quotes come from Jupiter's
// unauthenticated quote endpoint.
package jupiter

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

const Tag = "jupiter"

// Adapter reads wallet token balances and swap history for Jupiter.
type Adapter struct {
	api *httpx.Client
	rpc *solanarpc.Client
}

// New creates a Jupiter adapter. apiURL is normally "https://quote-api.jup.ag"
// and rpcURL a Solana RPC endpoint.
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

// FetchPositions reports each SPL token the wallet holds as a spot
// "position" with no tracked entry price: Jupiter swaps settle immediately,
// so there is no cost basis to recover from the chain alone.
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

type apiSwap struct {
	Signature string  `json:"signature"`
	InputMint string  `json:"inputMint"`
	OutputMint string `json:"outputMint"`
	InAmount  float64 `json:"inAmount"`
	OutAmount float64 `json:"outAmount"`
	FeeAmount float64 `json:"feeAmount"`
	Ts        int64   `json:"timestamp"`
}

func (a *Adapter) FetchTrades(ctx context.Context, cred venue.Credential, opts venue.FetchOpts) ([]domain.Trade, error) {
	params := url.Values{"wallet": {cred.WalletAddress}}
	if opts.Since != nil {
		params.Set("after", strconv.FormatInt(opts.Since.Unix(), 10))
	}
	if opts.Limit > 0 {
		params.Set("limit", strconv.Itoa(opts.Limit))
	}

	var resp struct {
		Swaps []apiSwap `json:"swaps"`
	}
	if err := a.api.Do(ctx, httpx.Request{Method: "GET", Path: "/v6/wallet-swaps?" + params.Encode()}, &resp); err != nil {
		return nil, httpx.WrapErr(Tag, err)
	}

	out := make([]domain.Trade, 0, len(resp.Swaps))
	for _, s := range resp.Swaps {
		price := safeDiv(s.OutAmount, s.InAmount)
		out = append(out, domain.Trade{
			Venue:        Tag,
			VenueTradeID: s.Signature,
			MarketID:     s.InputMint + "/" + s.OutputMint,
			OutcomeID:    s.OutputMint,
			Side:         "buy",
			Size:         s.InAmount,
			Price:        price,
			Fee:          s.FeeAmount,
			Timestamp:    time.Unix(s.Ts, 0),
		})
	}
	return out, nil
}

func (a *Adapter) FetchFunding(ctx context.Context, cred venue.Credential, opts venue.FetchOpts) ([]domain.FundingPayment, error) {
	return nil, venue.NewNotSupported(Tag, "FetchFunding")
}

// Quote calls Jupiter's public quote endpoint: marketID is "<inputMint>/
// <outputMint>" and size is the input amount in that token's base units.
func (a *Adapter) Quote(ctx context.Context, marketID, side string, size float64) (venue.Quote, error) {
	inOut := splitMarketID(marketID)
	if inOut[0] == "" || inOut[1] == "" {
		return venue.Quote{}, venue.NewVenueError(Tag, "bad_market_id", marketID)
	}

	params := url.Values{
		"inputMint":  {inOut[0]},
		"outputMint": {inOut[1]},
		"amount":     {strconv.FormatInt(int64(size), 10)},
	}
	var resp struct {
		OutAmount   float64 `json:"outAmount,string"`
		PriceImpact float64 `json:"priceImpactPct,string"`
	}
	if err := a.api.Do(ctx, httpx.Request{Method: "GET", Path: "/v6/quote?" + params.Encode()}, &resp); err != nil {
		return venue.Quote{}, httpx.WrapErr(Tag, err)
	}
	return venue.Quote{Price: safeDiv(resp.OutAmount, size), PriceImpact: resp.PriceImpact}, nil
}

func splitMarketID(marketID string) [2]string {
	for i := 0; i < len(marketID); i++ {
		if marketID[i] == '/' {
			return [2]string{marketID[:i], marketID[i+1:]}
		}
	}
	return [2]string{marketID, ""}
}

func safeDiv(a, b float64) float64 {
	if b == 0 {
		return 0
	}
	return a / b
}
