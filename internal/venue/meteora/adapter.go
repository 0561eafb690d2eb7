// Package meteora implements venue.Adapter for Meteora, a Solana dynamic-
// liquidity AMM (DLMM). Wallet "positions" are SPL token balances read
// on-chain; "trades" are swaps pulled from Meteora's public trade-history
// API.
package meteora

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

const Tag = "meteora"

// Adapter reads wallet token balances, swap history, and DLMM pool prices.
type Adapter struct {
	api *httpx.Client
	rpc *solanarpc.Client
}

// New creates a Meteora adapter. apiURL is normally
// "https://dlmm-api.meteora.ag" and rpcURL a Solana RPC endpoint.
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

type apiSwap struct {
	TxID      string  `json:"tx_id"`
	PairAddr  string  `json:"pair_address"`
	AmountIn  float64 `json:"amount_in"`
	AmountOut float64 `json:"amount_out"`
	Fee       float64 `json:"fee"`
	Ts        int64   `json:"onchain_timestamp"`
}

func (a *Adapter) FetchTrades(ctx context.Context, cred venue.Credential, opts venue.FetchOpts) ([]domain.Trade, error) {
	params := url.Values{"user": {cred.WalletAddress}}
	if opts.Since != nil {
		params.Set("after", strconv.FormatInt(opts.Since.Unix(), 10))
	}
	if opts.Limit > 0 {
		params.Set("limit", strconv.Itoa(opts.Limit))
	}

	var resp struct {
		Swaps []apiSwap `json:"swaps"`
	}
	if err := a.api.Do(ctx, httpx.Request{Method: "GET", Path: "/swap/history?" + params.Encode()}, &resp); err != nil {
		return nil, httpx.WrapErr(Tag, err)
	}

	out := make([]domain.Trade, 0, len(resp.Swaps))
	for _, s := range resp.Swaps {
		out = append(out, domain.Trade{
			Venue:        Tag,
			VenueTradeID: s.TxID,
			MarketID:     s.PairAddr,
			OutcomeID:    s.PairAddr,
			Side:         "buy",
			Size:         s.AmountIn,
			Price:        safeDiv(s.AmountOut, s.AmountIn),
			Fee:          s.Fee,
			Timestamp:    time.Unix(s.Ts, 0),
		})
	}
	return out, nil
}

func (a *Adapter) FetchFunding(ctx context.Context, cred venue.Credential, opts venue.FetchOpts) ([]domain.FundingPayment, error) {
	return nil, venue.NewNotSupported(Tag, "FetchFunding")
}

// Quote reads a DLMM pair's current price: marketID is the pair address.
func (a *Adapter) Quote(ctx context.Context, marketID, side string, size float64) (venue.Quote, error) {
	path := "/pair/" + url.PathEscape(marketID)
	var resp struct {
		CurrentPrice float64 `json:"current_price"`
	}
	if err := a.api.Do(ctx, httpx.Request{Method: "GET", Path: path}, &resp); err != nil {
		return venue.Quote{}, httpx.WrapErr(Tag, err)
	}
	return venue.Quote{Price: resp.CurrentPrice}, nil
}

func safeDiv(a, b float64) float64 {
	if b == 0 {
		return 0
	}
	return a / b
}
