// Package binancefutures implements venue.Adapter for Binance USD-M
// Futures, authenticated with the query-string HMAC scheme every Binance
// REST endpoint shares (internal/crypto.QuerySigner).
package binancefutures

import (
	"context"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/agenthub/venuecore/internal/crypto"
	"github.com/agenthub/venuecore/internal/domain"
	"github.com/agenthub/venuecore/internal/venue"
	"github.com/agenthub/venuecore/internal/venue/httpx"
)

const Tag = "binancefutures"

// Adapter reads Binance Futures positions, balances, fills, and funding.
type Adapter struct {
	client *httpx.Client
}

// New creates a Binance Futures adapter. baseURL is normally
// "https://fapi.binance.com".
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

// signedGet builds a recvWindow/timestamp/signature query string and sends
// a signed GET, the shape every Binance-family endpoint shares.
func (a *Adapter) signedGet(ctx context.Context, cred venue.Credential, path string, params url.Values, out any) error {
	if params == nil {
		params = url.Values{}
	}
	params.Set("timestamp", strconv.FormatInt(time.Now().UnixMilli(), 10))
	params.Set("recvWindow", "5000")

	signer := &crypto.QuerySigner{APIKey: cred.APIKey, APISecret: cred.APISecret}
	query := params.Encode()
	sig := signer.Sign(query)
	fullPath := path + "?" + query + "&signature=" + sig

	return a.client.Do(ctx, httpx.Request{
		Method:  "GET",
		Path:    fullPath,
		Headers: map[string]string{"X-MBX-APIKEY": cred.APIKey},
	}, out)
}

type apiPositionRisk struct {
	Symbol           string `json:"symbol"`
	PositionAmt      string `json:"positionAmt"`
	EntryPrice       string `json:"entryPrice"`
	MarkPrice        string `json:"markPrice"`
	UnRealizedProfit string `json:"unRealizedProfit"`
	Leverage         string `json:"leverage"`
	MarginType       string `json:"marginType"`
	LiquidationPrice string `json:"liquidationPrice"`
	Notional         string `json:"notional"`
}

func (a *Adapter) FetchPositions(ctx context.Context, cred venue.Credential) ([]domain.Position, error) {
	var raw []apiPositionRisk
	if err := a.signedGet(ctx, cred, "/fapi/v2/positionRisk", nil, &raw); err != nil {
		return nil, httpx.WrapErr(Tag, err)
	}

	now := time.Now()
	out := make([]domain.Position, 0, len(raw))
	for _, p := range raw {
		amt := parseFloat(p.PositionAmt)
		if amt == 0 {
			continue
		}
		side := "long"
		if amt < 0 {
			side = "short"
			amt = -amt
		}
		marginMode := domain.MarginModeCross
		if p.MarginType == "isolated" {
			marginMode = domain.MarginModeIsolated
		}
		liq := parseFloat(p.LiquidationPrice)
		notional := parseFloat(p.Notional)
		out = append(out, domain.Position{
			Venue:            Tag,
			MarketID:         p.Symbol,
			OutcomeID:        side,
			Side:             side,
			Size:             amt,
			AvgEntryPrice:    parseFloat(p.EntryPrice),
			CurrentPrice:     parseFloat(p.MarkPrice),
			OpenedAt:         now,
			UpdatedAt:        now,
			Leverage:         parseFloat(p.Leverage),
			MarginMode:       marginMode,
			LiquidationPrice: &liq,
			Notional:         &notional,
		})
	}
	return out, nil
}

type apiBalance struct {
	Asset              string `json:"asset"`
	Balance            string `json:"balance"`
	AvailableBalance   string `json:"availableBalance"`
}

func (a *Adapter) FetchBalances(ctx context.Context, cred venue.Credential) ([]domain.Balance, error) {
	var raw []apiBalance
	if err := a.signedGet(ctx, cred, "/fapi/v2/balance", nil, &raw); err != nil {
		return nil, httpx.WrapErr(Tag, err)
	}

	out := make([]domain.Balance, 0, len(raw))
	for _, b := range raw {
		total := parseFloat(b.Balance)
		avail := parseFloat(b.AvailableBalance)
		if total == 0 {
			continue
		}
		out = append(out, domain.Balance{
			Venue:     Tag,
			Asset:     b.Asset,
			Available: avail,
			Locked:    total - avail,
			Total:     total,
		})
	}
	return out, nil
}

type apiUserTrade struct {
	ID        int64  `json:"id"`
	Symbol    string `json:"symbol"`
	Side      string `json:"side"`
	Qty       string `json:"qty"`
	Price     string `json:"price"`
	Commission string `json:"commission"`
	RealizedPnl string `json:"realizedPnl"`
	Time      int64  `json:"time"`
}

func (a *Adapter) FetchTrades(ctx context.Context, cred venue.Credential, opts venue.FetchOpts) ([]domain.Trade, error) {
	params := url.Values{}
	if opts.Since != nil {
		params.Set("startTime", strconv.FormatInt(opts.Since.UnixMilli(), 10))
	}
	if opts.Limit > 0 {
		params.Set("limit", strconv.Itoa(opts.Limit))
	}

	var raw []apiUserTrade
	if err := a.signedGet(ctx, cred, "/fapi/v1/userTrades", params, &raw); err != nil {
		return nil, httpx.WrapErr(Tag, err)
	}

	out := make([]domain.Trade, 0, len(raw))
	for _, t := range raw {
		pnl := parseFloat(t.RealizedPnl)
		out = append(out, domain.Trade{
			Venue:        Tag,
			VenueTradeID: strconv.FormatInt(t.ID, 10),
			MarketID:     t.Symbol,
			OutcomeID:    t.Symbol,
			Side:         strings.ToLower(t.Side),
			Size:         parseFloat(t.Qty),
			Price:        parseFloat(t.Price),
			Fee:          parseFloat(t.Commission),
			RealizedPnL:  &pnl,
			Timestamp:    time.UnixMilli(t.Time),
		})
	}
	return out, nil
}

type apiFundingEntry struct {
	Symbol  string `json:"symbol"`
	Income  string `json:"income"`
	Time    int64  `json:"time"`
}

func (a *Adapter) FetchFunding(ctx context.Context, cred venue.Credential, opts venue.FetchOpts) ([]domain.FundingPayment, error) {
	params := url.Values{}
	params.Set("incomeType", "FUNDING_FEE")
	if opts.Since != nil {
		params.Set("startTime", strconv.FormatInt(opts.Since.UnixMilli(), 10))
	}
	if opts.Limit > 0 {
		params.Set("limit", strconv.Itoa(opts.Limit))
	}

	var raw []apiFundingEntry
	if err := a.signedGet(ctx, cred, "/fapi/v1/income", params, &raw); err != nil {
		return nil, httpx.WrapErr(Tag, err)
	}

	out := make([]domain.FundingPayment, 0, len(raw))
	for _, f := range raw {
		out = append(out, domain.FundingPayment{
			Venue:     Tag,
			Symbol:    f.Symbol,
			Amount:    parseFloat(f.Income),
			Timestamp: time.UnixMilli(f.Time),
		})
	}
	return out, nil
}

func (a *Adapter) Quote(ctx context.Context, marketID, side string, size float64) (venue.Quote, error) {
	params := url.Values{}
	params.Set("symbol", marketID)
	var resp struct {
		Price string `json:"price"`
	}
	if err := a.client.Do(ctx, httpx.Request{Method: "GET", Path: "/fapi/v1/ticker/price?" + params.Encode()}, &resp); err != nil {
		return venue.Quote{}, httpx.WrapErr(Tag, err)
	}
	return venue.Quote{Price: parseFloat(resp.Price)}, nil
}

func parseFloat(s string) float64 {
	f, _ := strconv.ParseFloat(s, 64)
	return f
}
