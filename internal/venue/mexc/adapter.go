// Package mexc implements venue.Adapter for MEXC Futures, signed with
// HMAC-SHA256 via internal/crypto.QuerySigner like Binance Futures, but with
// the signature sent in request headers rather than in the query string.
package mexc

import (
	"context"
	"net/url"
	"strconv"
	"time"

	"github.com/agenthub/venuecore/internal/crypto"
	"github.com/agenthub/venuecore/internal/domain"
	"github.com/agenthub/venuecore/internal/venue"
	"github.com/agenthub/venuecore/internal/venue/httpx"
)

const Tag = "mexc"

// Adapter reads MEXC Futures positions, balances, fills, and funding.
type Adapter struct {
	client *httpx.Client
}

// New creates a MEXC adapter. baseURL is normally
// "https://contract.mexc.com".
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

// signedGet mirrors MEXC contract API's auth scheme: ApiKey + Request-Time
// headers, with the signature computed over
// accessKey+timestamp+paramString.
func (a *Adapter) signedGet(ctx context.Context, cred venue.Credential, path string, params url.Values, out any) error {
	if params == nil {
		params = url.Values{}
	}
	query := params.Encode()
	ts := strconv.FormatInt(time.Now().UnixMilli(), 10)

	signer := &crypto.QuerySigner{APIKey: cred.APIKey, APISecret: cred.APISecret}
	sig := signer.Sign(cred.APIKey + ts + query)

	fullPath := path
	if query != "" {
		fullPath += "?" + query
	}

	return a.client.Do(ctx, httpx.Request{
		Method: "GET",
		Path:   fullPath,
		Headers: map[string]string{
			"ApiKey":       cred.APIKey,
			"Request-Time": ts,
			"Signature":    sig,
		},
	}, out)
}

type apiPosition struct {
	Symbol           string  `json:"symbol"`
	HoldVol          float64 `json:"holdVol"`
	PositionType     int     `json:"positionType"` // 1=long, 2=short
	OpenAvgPrice     float64 `json:"openAvgPrice"`
	HoldAvgPrice     float64 `json:"holdAvgPrice"`
	Leverage         float64 `json:"leverage"`
	MarginMode       int     `json:"marginMode"` // 1=isolated, 2=cross
	LiquidatePrice   float64 `json:"liquidatePrice"`
}

type mexcResult[T any] struct {
	Success bool `json:"success"`
	Data    T    `json:"data"`
}

func (a *Adapter) FetchPositions(ctx context.Context, cred venue.Credential) ([]domain.Position, error) {
	var resp mexcResult[[]apiPosition]
	if err := a.signedGet(ctx, cred, "/api/v1/private/position/open_positions", nil, &resp); err != nil {
		return nil, httpx.WrapErr(Tag, err)
	}

	now := time.Now()
	out := make([]domain.Position, 0, len(resp.Data))
	for _, p := range resp.Data {
		if p.HoldVol == 0 {
			continue
		}
		side := "long"
		if p.PositionType == 2 {
			side = "short"
		}
		marginMode := domain.MarginModeCross
		if p.MarginMode == 1 {
			marginMode = domain.MarginModeIsolated
		}
		liq := p.LiquidatePrice
		out = append(out, domain.Position{
			Venue:            Tag,
			MarketID:         p.Symbol,
			OutcomeID:        side,
			Side:             side,
			Size:             p.HoldVol,
			AvgEntryPrice:    p.OpenAvgPrice,
			CurrentPrice:     p.HoldAvgPrice,
			OpenedAt:         now,
			UpdatedAt:        now,
			Leverage:         p.Leverage,
			MarginMode:       marginMode,
			LiquidationPrice: &liq,
		})
	}
	return out, nil
}

type apiAsset struct {
	Currency         string  `json:"currency"`
	Equity           float64 `json:"equity"`
	AvailableBalance float64 `json:"availableBalance"`
}

func (a *Adapter) FetchBalances(ctx context.Context, cred venue.Credential) ([]domain.Balance, error) {
	var resp mexcResult[[]apiAsset]
	if err := a.signedGet(ctx, cred, "/api/v1/private/account/assets", nil, &resp); err != nil {
		return nil, httpx.WrapErr(Tag, err)
	}

	out := make([]domain.Balance, 0, len(resp.Data))
	for _, asset := range resp.Data {
		if asset.Equity == 0 {
			continue
		}
		out = append(out, domain.Balance{
			Venue:     Tag,
			Asset:     asset.Currency,
			Available: asset.AvailableBalance,
			Locked:    asset.Equity - asset.AvailableBalance,
			Total:     asset.Equity,
		})
	}
	return out, nil
}

type apiFill struct {
	OrderID  string  `json:"orderId"`
	Symbol   string  `json:"symbol"`
	Side     int     `json:"side"` // 1=open long, 2=close short, 3=open short, 4=close long
	Vol      float64 `json:"vol"`
	DealAvgPrice float64 `json:"dealAvgPrice"`
	Fee      float64 `json:"fee"`
	Profit   float64 `json:"profit"`
	CreateTime int64 `json:"createTime"`
}

func (a *Adapter) FetchTrades(ctx context.Context, cred venue.Credential, opts venue.FetchOpts) ([]domain.Trade, error) {
	params := url.Values{}
	if opts.Since != nil {
		params.Set("start_time", strconv.FormatInt(opts.Since.UnixMilli(), 10))
	}
	if opts.Limit > 0 {
		params.Set("page_size", strconv.Itoa(opts.Limit))
	}

	var resp mexcResult[[]apiFill]
	if err := a.signedGet(ctx, cred, "/api/v1/private/order/list/history_orders", params, &resp); err != nil {
		return nil, httpx.WrapErr(Tag, err)
	}

	out := make([]domain.Trade, 0, len(resp.Data))
	for _, f := range resp.Data {
		side := "buy"
		if f.Side == 2 || f.Side == 3 {
			side = "sell"
		}
		pnl := f.Profit
		out = append(out, domain.Trade{
			Venue:        Tag,
			VenueTradeID: f.OrderID,
			MarketID:     f.Symbol,
			OutcomeID:    f.Symbol,
			Side:         side,
			Size:         f.Vol,
			Price:        f.DealAvgPrice,
			Fee:          f.Fee,
			RealizedPnL:  &pnl,
			Timestamp:    time.UnixMilli(f.CreateTime),
		})
	}
	return out, nil
}

type apiFunding struct {
	Symbol   string  `json:"symbol"`
	Funding  float64 `json:"funding"`
	Position float64 `json:"positionSize"`
	SettleTime int64 `json:"settleTime"`
}

func (a *Adapter) FetchFunding(ctx context.Context, cred venue.Credential, opts venue.FetchOpts) ([]domain.FundingPayment, error) {
	params := url.Values{}
	if opts.Since != nil {
		params.Set("start_time", strconv.FormatInt(opts.Since.UnixMilli(), 10))
	}
	if opts.Limit > 0 {
		params.Set("page_size", strconv.Itoa(opts.Limit))
	}

	var resp mexcResult[[]apiFunding]
	if err := a.signedGet(ctx, cred, "/api/v1/private/position/funding_records", params, &resp); err != nil {
		return nil, httpx.WrapErr(Tag, err)
	}

	out := make([]domain.FundingPayment, 0, len(resp.Data))
	for _, f := range resp.Data {
		out = append(out, domain.FundingPayment{
			Venue:        Tag,
			Symbol:       f.Symbol,
			Amount:       f.Funding,
			PositionSize: f.Position,
			Timestamp:    time.UnixMilli(f.SettleTime),
		})
	}
	return out, nil
}

func (a *Adapter) Quote(ctx context.Context, marketID, side string, size float64) (venue.Quote, error) {
	var resp mexcResult[struct {
		LastPrice float64 `json:"lastPrice"`
	}]
	path := "/api/v1/contract/ticker?symbol=" + url.QueryEscape(marketID)
	if err := a.client.Do(ctx, httpx.Request{Method: "GET", Path: path}, &resp); err != nil {
		return venue.Quote{}, httpx.WrapErr(Tag, err)
	}
	if resp.Data.LastPrice == 0 {
		return venue.Quote{}, venue.NewVenueError(Tag, "no_such_market", marketID)
	}
	return venue.Quote{Price: resp.Data.LastPrice}, nil
}
