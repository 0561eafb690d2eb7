// Package hyperliquid implements venue.Adapter for Hyperliquid's perpetuals
// exchange. Hyperliquid's "info" endpoint is a public, unsigned POST keyed
// only by wallet address, so this adapter signs nothing.
package hyperliquid

import (
	"context"
	"strconv"
	"time"

	"github.com/agenthub/venuecore/internal/domain"
	"github.com/agenthub/venuecore/internal/venue"
	"github.com/agenthub/venuecore/internal/venue/httpx"
)

const Tag = "hyperliquid"

// Adapter reads Hyperliquid perpetual positions, balances, fills, and
// funding via the public info API.
type Adapter struct {
	client *httpx.Client
}

// New creates a Hyperliquid adapter. baseURL is normally
// "https://api.hyperliquid.xyz".
func New(baseURL string) *Adapter {
	return &Adapter{client: httpx.New(Tag, baseURL)}
}

var _ venue.Adapter = (*Adapter)(nil)

func (a *Adapter) Tag() string { return Tag }

func (a *Adapter) Capabilities() venue.Capabilities {
	return venue.Capabilities{
		SupportsFutures: true,
		SupportsFunding: true,
		SupportsStream:  true,
		SupportsSearch:  false,
		PriceUnit:       "quote_currency",
	}
}

func (a *Adapter) info(ctx context.Context, reqType string, extra map[string]any, out any) error {
	body := map[string]any{"type": reqType}
	for k, v := range extra {
		body[k] = v
	}
	return a.client.Do(ctx, httpx.Request{Method: "POST", Path: "/info", Body: body}, out)
}

type assetPosition struct {
	Position struct {
		Coin           string `json:"coin"`
		Szi            string `json:"szi"`
		EntryPx        string `json:"entryPx"`
		PositionValue  string `json:"positionValue"`
		UnrealizedPnl  string `json:"unrealizedPnl"`
		Leverage       struct {
			Type  string `json:"type"`
			Value int    `json:"value"`
		} `json:"leverage"`
		LiquidationPx string `json:"liquidationPx"`
	} `json:"position"`
}

func (a *Adapter) FetchPositions(ctx context.Context, cred venue.Credential) ([]domain.Position, error) {
	var resp struct {
		AssetPositions []assetPosition `json:"assetPositions"`
	}
	if err := a.info(ctx, "clearinghouseState", map[string]any{"user": cred.WalletAddress}, &resp); err != nil {
		return nil, httpx.WrapErr(Tag, err)
	}

	now := time.Now()
	out := make([]domain.Position, 0, len(resp.AssetPositions))
	for _, ap := range resp.AssetPositions {
		size := parseFloat(ap.Position.Szi)
		side := "long"
		if size < 0 {
			side = "short"
			size = -size
		}
		marginMode := domain.MarginModeCross
		if ap.Position.Leverage.Type == "isolated" {
			marginMode = domain.MarginModeIsolated
		}
		var liq *float64
		if v := parseFloat(ap.Position.LiquidationPx); v != 0 {
			liq = &v
		}
		notional := parseFloat(ap.Position.PositionValue)
		out = append(out, domain.Position{
			Venue:            Tag,
			MarketID:         ap.Position.Coin,
			OutcomeID:        side,
			Side:             side,
			Size:             size,
			AvgEntryPrice:    parseFloat(ap.Position.EntryPx),
			CurrentPrice:     safeDiv(notional, size),
			OpenedAt:         now,
			UpdatedAt:        now,
			Leverage:         float64(ap.Position.Leverage.Value),
			MarginMode:       marginMode,
			LiquidationPrice: liq,
			Notional:         &notional,
		})
	}
	return out, nil
}

func (a *Adapter) FetchBalances(ctx context.Context, cred venue.Credential) ([]domain.Balance, error) {
	var resp struct {
		MarginSummary struct {
			AccountValue string `json:"accountValue"`
		} `json:"marginSummary"`
		Withdrawable string `json:"withdrawable"`
	}
	if err := a.info(ctx, "clearinghouseState", map[string]any{"user": cred.WalletAddress}, &resp); err != nil {
		return nil, httpx.WrapErr(Tag, err)
	}
	total := parseFloat(resp.MarginSummary.AccountValue)
	avail := parseFloat(resp.Withdrawable)
	return []domain.Balance{{
		Venue:     Tag,
		Asset:     "USDC",
		Available: avail,
		Locked:    total - avail,
		Total:     total,
	}}, nil
}

type userFill struct {
	Coin  string `json:"coin"`
	Px    string `json:"px"`
	Sz    string `json:"sz"`
	Side  string `json:"side"` // "B" or "A"
	Time  int64  `json:"time"`
	Tid    int64 `json:"tid"`
	Fee   string `json:"fee"`
	ClosedPnl string `json:"closedPnl"`
}

func (a *Adapter) FetchTrades(ctx context.Context, cred venue.Credential, opts venue.FetchOpts) ([]domain.Trade, error) {
	extra := map[string]any{"user": cred.WalletAddress}
	if opts.Since != nil {
		extra["startTime"] = opts.Since.UnixMilli()
	}
	var fills []userFill
	if err := a.info(ctx, "userFills", extra, &fills); err != nil {
		return nil, httpx.WrapErr(Tag, err)
	}

	out := make([]domain.Trade, 0, len(fills))
	for _, f := range fills {
		side := "buy"
		if f.Side == "A" {
			side = "sell"
		}
		pnl := parseFloat(f.ClosedPnl)
		out = append(out, domain.Trade{
			Venue:        Tag,
			VenueTradeID: strconv.FormatInt(f.Tid, 10),
			MarketID:     f.Coin,
			OutcomeID:    f.Coin,
			Side:         side,
			Size:         parseFloat(f.Sz),
			Price:        parseFloat(f.Px),
			Fee:          parseFloat(f.Fee),
			RealizedPnL:  &pnl,
			Timestamp:    time.UnixMilli(f.Time),
		})
		if opts.Limit > 0 && len(out) >= opts.Limit {
			break
		}
	}
	return out, nil
}

type fundingEntry struct {
	Time  int64 `json:"time"`
	Delta struct {
		Coin    string `json:"coin"`
		Usdc    string `json:"usdc"`
		Szi     string `json:"szi"`
		FundingRate string `json:"fundingRate"`
	} `json:"delta"`
}

func (a *Adapter) FetchFunding(ctx context.Context, cred venue.Credential, opts venue.FetchOpts) ([]domain.FundingPayment, error) {
	extra := map[string]any{"user": cred.WalletAddress}
	if opts.Since != nil {
		extra["startTime"] = opts.Since.UnixMilli()
	}
	var entries []fundingEntry
	if err := a.info(ctx, "userFunding", extra, &entries); err != nil {
		return nil, httpx.WrapErr(Tag, err)
	}

	out := make([]domain.FundingPayment, 0, len(entries))
	for _, e := range entries {
		out = append(out, domain.FundingPayment{
			Venue:        Tag,
			Symbol:       e.Delta.Coin,
			Rate:         parseFloat(e.Delta.FundingRate),
			Amount:       parseFloat(e.Delta.Usdc),
			PositionSize: parseFloat(e.Delta.Szi),
			Timestamp:    time.UnixMilli(e.Time),
		})
	}
	return out, nil
}

func (a *Adapter) Quote(ctx context.Context, marketID, side string, size float64) (venue.Quote, error) {
	var mids map[string]string
	if err := a.info(ctx, "allMids", nil, &mids); err != nil {
		return venue.Quote{}, httpx.WrapErr(Tag, err)
	}
	px, ok := mids[marketID]
	if !ok {
		return venue.Quote{}, venue.NewVenueError(Tag, "no_such_market", marketID)
	}
	return venue.Quote{Price: parseFloat(px)}, nil
}

func parseFloat(s string) float64 {
	f, _ := strconv.ParseFloat(s, 64)
	return f
}

func safeDiv(a, b float64) float64 {
	if b == 0 {
		return 0
	}
	return a / b
}
