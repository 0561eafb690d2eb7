// Package drift implements venue.Adapter for Drift Protocol, a Solana
// perpetuals exchange. Positions, trades, and funding are read from Drift's
// public Data API (keyed by wallet address, no signing required for reads),
// as is USDC collateral; only the wallet's SOL balance is read on-chain via
// internal/venue/solanarpc, the one thing every Solana-family adapter
// shares.
package drift

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

const Tag = "drift"

// Adapter reads Drift perpetual positions, collateral, fills, and funding.
type Adapter struct {
	data *httpx.Client
	rpc  *solanarpc.Client
}

// New creates a Drift adapter. dataAPIURL is normally
// "https://data.api.drift.trade" and rpcURL a Solana RPC endpoint.
func New(dataAPIURL, rpcURL string) *Adapter {
	return &Adapter{
		data: httpx.New(Tag, dataAPIURL),
		rpc:  solanarpc.New(Tag, rpcURL),
	}
}

var _ venue.Adapter = (*Adapter)(nil)

func (a *Adapter) Tag() string { return Tag }

func (a *Adapter) Capabilities() venue.Capabilities {
	return venue.Capabilities{
		SupportsFutures: true,
		SupportsFunding: true,
		SupportsStream:  false,
		SupportsSearch:  false,
		PriceUnit:       "quote_currency",
	}
}

type apiPerpPosition struct {
	MarketSymbol     string  `json:"marketSymbol"`
	BaseAssetAmount  float64 `json:"baseAssetAmount"`
	EntryPrice       float64 `json:"entryPrice"`
	MarkPrice        float64 `json:"markPrice"`
	UnrealizedPnl    float64 `json:"unrealizedPnl"`
	LiquidationPrice float64 `json:"liquidationPrice"`
}

func (a *Adapter) FetchPositions(ctx context.Context, cred venue.Credential) ([]domain.Position, error) {
	path := "/user/" + url.PathEscape(cred.WalletAddress) + "/perpPositions"
	var resp struct {
		Positions []apiPerpPosition `json:"positions"`
	}
	if err := a.data.Do(ctx, httpx.Request{Method: "GET", Path: path}, &resp); err != nil {
		return nil, httpx.WrapErr(Tag, err)
	}

	now := time.Now()
	out := make([]domain.Position, 0, len(resp.Positions))
	for _, p := range resp.Positions {
		if p.BaseAssetAmount == 0 {
			continue
		}
		side := "long"
		size := p.BaseAssetAmount
		if size < 0 {
			side = "short"
			size = -size
		}
		liq := p.LiquidationPrice
		out = append(out, domain.Position{
			Venue:            Tag,
			MarketID:         p.MarketSymbol,
			OutcomeID:        side,
			Side:             side,
			Size:             size,
			AvgEntryPrice:    p.EntryPrice,
			CurrentPrice:     p.MarkPrice,
			OpenedAt:         now,
			UpdatedAt:        now,
			MarginMode:       domain.MarginModeCross,
			LiquidationPrice: &liq,
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

	path := "/user/" + url.PathEscape(cred.WalletAddress) + "/collateral"
	var resp struct {
		FreeCollateral  float64 `json:"freeCollateral"`
		TotalCollateral float64 `json:"totalCollateral"`
	}
	if err := a.data.Do(ctx, httpx.Request{Method: "GET", Path: path}, &resp); err != nil {
		return nil, httpx.WrapErr(Tag, err)
	}

	return []domain.Balance{
		{Venue: Tag, Asset: "SOL", Available: sol, Total: sol},
		{
			Venue:     Tag,
			Asset:     "USDC",
			Available: resp.FreeCollateral,
			Locked:    resp.TotalCollateral - resp.FreeCollateral,
			Total:     resp.TotalCollateral,
		},
	}, nil
}

type apiFill struct {
	TxSig       string  `json:"txSig"`
	MarketSymbol string `json:"marketSymbol"`
	Side        string  `json:"side"` // "long" or "short"
	BaseAmount  float64 `json:"baseAssetAmountFilled"`
	Price       float64 `json:"quotePrice"`
	Fee         float64 `json:"takerFee"`
	Ts          int64   `json:"ts"`
}

func (a *Adapter) FetchTrades(ctx context.Context, cred venue.Credential, opts venue.FetchOpts) ([]domain.Trade, error) {
	params := url.Values{}
	if opts.Since != nil {
		params.Set("after", strconv.FormatInt(opts.Since.Unix(), 10))
	}
	if opts.Limit > 0 {
		params.Set("limit", strconv.Itoa(opts.Limit))
	}
	path := "/user/" + url.PathEscape(cred.WalletAddress) + "/trades"
	if len(params) > 0 {
		path += "?" + params.Encode()
	}

	var resp struct {
		Trades []apiFill `json:"trades"`
	}
	if err := a.data.Do(ctx, httpx.Request{Method: "GET", Path: path}, &resp); err != nil {
		return nil, httpx.WrapErr(Tag, err)
	}

	out := make([]domain.Trade, 0, len(resp.Trades))
	for _, f := range resp.Trades {
		side := "buy"
		if f.Side == "short" {
			side = "sell"
		}
		out = append(out, domain.Trade{
			Venue:        Tag,
			VenueTradeID: f.TxSig,
			MarketID:     f.MarketSymbol,
			OutcomeID:    f.MarketSymbol,
			Side:         side,
			Size:         f.BaseAmount,
			Price:        f.Price,
			Fee:          f.Fee,
			Timestamp:    time.Unix(f.Ts, 0),
		})
	}
	return out, nil
}

type apiFundingPayment struct {
	MarketSymbol string  `json:"marketSymbol"`
	Amount       float64 `json:"fundingPayment"`
	BaseAmount   float64 `json:"baseAssetAmount"`
	Ts           int64   `json:"ts"`
}

func (a *Adapter) FetchFunding(ctx context.Context, cred venue.Credential, opts venue.FetchOpts) ([]domain.FundingPayment, error) {
	params := url.Values{}
	if opts.Since != nil {
		params.Set("after", strconv.FormatInt(opts.Since.Unix(), 10))
	}
	if opts.Limit > 0 {
		params.Set("limit", strconv.Itoa(opts.Limit))
	}
	path := "/user/" + url.PathEscape(cred.WalletAddress) + "/fundingPayments"
	if len(params) > 0 {
		path += "?" + params.Encode()
	}

	var resp struct {
		Payments []apiFundingPayment `json:"payments"`
	}
	if err := a.data.Do(ctx, httpx.Request{Method: "GET", Path: path}, &resp); err != nil {
		return nil, httpx.WrapErr(Tag, err)
	}

	out := make([]domain.FundingPayment, 0, len(resp.Payments))
	for _, p := range resp.Payments {
		out = append(out, domain.FundingPayment{
			Venue:        Tag,
			Symbol:       p.MarketSymbol,
			Amount:       p.Amount,
			PositionSize: p.BaseAmount,
			Timestamp:    time.Unix(p.Ts, 0),
		})
	}
	return out, nil
}

func (a *Adapter) Quote(ctx context.Context, marketID, side string, size float64) (venue.Quote, error) {
	path := "/market/" + url.PathEscape(marketID) + "/mark"
	var resp struct {
		MarkPrice float64 `json:"markPrice"`
	}
	if err := a.data.Do(ctx, httpx.Request{Method: "GET", Path: path}, &resp); err != nil {
		return venue.Quote{}, httpx.WrapErr(Tag, err)
	}
	return venue.Quote{Price: resp.MarkPrice}, nil
}
