// Package bybit implements venue.Adapter for Bybit derivatives, signed with
// Bybit's v5 header scheme: HMAC over
// timestamp+apiKey+recvWindow+queryString, passed as X-BAPI-* headers
// rather than folded into the query string itself (the one meaningful
// difference from the Binance-family adapters).
package bybit

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

const Tag = "bybit"

// Adapter reads Bybit USDT-perpetual positions, balances, fills, and funding.
type Adapter struct {
	client *httpx.Client
}

// New creates a Bybit adapter. baseURL is normally "https://api.bybit.com".
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

func (a *Adapter) signedGet(ctx context.Context, cred venue.Credential, path string, params url.Values, out any) error {
	if params == nil {
		params = url.Values{}
	}
	query := params.Encode()
	ts := strconv.FormatInt(time.Now().UnixMilli(), 10)
	const recvWindow = "5000"

	signer := &crypto.QuerySigner{APIKey: cred.APIKey, APISecret: cred.APISecret}
	sig := signer.Sign(ts + cred.APIKey + recvWindow + query)

	if query != "" {
		path += "?" + query
	}

	return a.client.Do(ctx, httpx.Request{
		Method: "GET",
		Path:   path,
		Headers: map[string]string{
			"X-BAPI-API-KEY":     cred.APIKey,
			"X-BAPI-TIMESTAMP":   ts,
			"X-BAPI-RECV-WINDOW": recvWindow,
			"X-BAPI-SIGN":        sig,
		},
	}, out)
}

type bybitResult[T any] struct {
	RetCode int    `json:"retCode"`
	RetMsg  string `json:"retMsg"`
	Result  T      `json:"result"`
}

type apiPosition struct {
	Symbol         string `json:"symbol"`
	Side           string `json:"side"` // "Buy"/"Sell"/""
	Size           string `json:"size"`
	AvgPrice       string `json:"avgPrice"`
	MarkPrice      string `json:"markPrice"`
	Leverage       string `json:"leverage"`
	TradeMode      int    `json:"tradeMode"` // 0=cross, 1=isolated
	LiqPrice       string `json:"liqPrice"`
	PositionValue  string `json:"positionValue"`
}

func (a *Adapter) FetchPositions(ctx context.Context, cred venue.Credential) ([]domain.Position, error) {
	params := url.Values{"category": {"linear"}, "settleCoin": {"USDT"}}
	var resp bybitResult[struct {
		List []apiPosition `json:"list"`
	}]
	if err := a.signedGet(ctx, cred, "/v5/position/list", params, &resp); err != nil {
		return nil, httpx.WrapErr(Tag, err)
	}

	now := time.Now()
	out := make([]domain.Position, 0, len(resp.Result.List))
	for _, p := range resp.Result.List {
		size := parseFloat(p.Size)
		if size == 0 {
			continue
		}
		side := strings.ToLower(p.Side)
		if side == "sell" {
			side = "short"
		} else {
			side = "long"
		}
		marginMode := domain.MarginModeCross
		if p.TradeMode == 1 {
			marginMode = domain.MarginModeIsolated
		}
		liq := parseFloat(p.LiqPrice)
		notional := parseFloat(p.PositionValue)
		out = append(out, domain.Position{
			Venue:            Tag,
			MarketID:         p.Symbol,
			OutcomeID:        side,
			Side:             side,
			Size:             size,
			AvgEntryPrice:    parseFloat(p.AvgPrice),
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

type apiWalletCoin struct {
	Coin            string `json:"coin"`
	WalletBalance   string `json:"walletBalance"`
	AvailableToWithdraw string `json:"availableToWithdraw"`
}

func (a *Adapter) FetchBalances(ctx context.Context, cred venue.Credential) ([]domain.Balance, error) {
	params := url.Values{"accountType": {"UNIFIED"}}
	var resp bybitResult[struct {
		List []struct {
			Coin []apiWalletCoin `json:"coin"`
		} `json:"list"`
	}]
	if err := a.signedGet(ctx, cred, "/v5/account/wallet-balance", params, &resp); err != nil {
		return nil, httpx.WrapErr(Tag, err)
	}

	var out []domain.Balance
	for _, acct := range resp.Result.List {
		for _, c := range acct.Coin {
			total := parseFloat(c.WalletBalance)
			if total == 0 {
				continue
			}
			avail := parseFloat(c.AvailableToWithdraw)
			out = append(out, domain.Balance{
				Venue:     Tag,
				Asset:     c.Coin,
				Available: avail,
				Locked:    total - avail,
				Total:     total,
			})
		}
	}
	return out, nil
}

type apiExecution struct {
	ExecID    string `json:"execId"`
	Symbol    string `json:"symbol"`
	Side      string `json:"side"`
	ExecQty   string `json:"execQty"`
	ExecPrice string `json:"execPrice"`
	ExecFee   string `json:"execFee"`
	ExecTime  string `json:"execTime"`
}

func (a *Adapter) FetchTrades(ctx context.Context, cred venue.Credential, opts venue.FetchOpts) ([]domain.Trade, error) {
	params := url.Values{"category": {"linear"}}
	if opts.Since != nil {
		params.Set("startTime", strconv.FormatInt(opts.Since.UnixMilli(), 10))
	}
	if opts.Limit > 0 {
		params.Set("limit", strconv.Itoa(opts.Limit))
	}

	var resp bybitResult[struct {
		List []apiExecution `json:"list"`
	}]
	if err := a.signedGet(ctx, cred, "/v5/execution/list", params, &resp); err != nil {
		return nil, httpx.WrapErr(Tag, err)
	}

	out := make([]domain.Trade, 0, len(resp.Result.List))
	for _, e := range resp.Result.List {
		ms, _ := strconv.ParseInt(e.ExecTime, 10, 64)
		out = append(out, domain.Trade{
			Venue:        Tag,
			VenueTradeID: e.ExecID,
			MarketID:     e.Symbol,
			OutcomeID:    e.Symbol,
			Side:         strings.ToLower(e.Side),
			Size:         parseFloat(e.ExecQty),
			Price:        parseFloat(e.ExecPrice),
			Fee:          parseFloat(e.ExecFee),
			Timestamp:    time.UnixMilli(ms),
		})
	}
	return out, nil
}

type apiFundingTx struct {
	Symbol   string `json:"symbol"`
	Funding  string `json:"funding"`
	TransactionTime string `json:"transactionTime"`
}

func (a *Adapter) FetchFunding(ctx context.Context, cred venue.Credential, opts venue.FetchOpts) ([]domain.FundingPayment, error) {
	params := url.Values{"category": {"linear"}, "type": {"SETTLEMENT"}}
	if opts.Since != nil {
		params.Set("startTime", strconv.FormatInt(opts.Since.UnixMilli(), 10))
	}
	if opts.Limit > 0 {
		params.Set("limit", strconv.Itoa(opts.Limit))
	}

	var resp bybitResult[struct {
		List []apiFundingTx `json:"list"`
	}]
	if err := a.signedGet(ctx, cred, "/v5/account/transaction-log", params, &resp); err != nil {
		return nil, httpx.WrapErr(Tag, err)
	}

	out := make([]domain.FundingPayment, 0, len(resp.Result.List))
	for _, f := range resp.Result.List {
		ms, _ := strconv.ParseInt(f.TransactionTime, 10, 64)
		out = append(out, domain.FundingPayment{
			Venue:     Tag,
			Symbol:    f.Symbol,
			Amount:    parseFloat(f.Funding),
			Timestamp: time.UnixMilli(ms),
		})
	}
	return out, nil
}

func (a *Adapter) Quote(ctx context.Context, marketID, side string, size float64) (venue.Quote, error) {
	params := url.Values{"category": {"linear"}, "symbol": {marketID}}
	var resp bybitResult[struct {
		List []struct {
			LastPrice string `json:"lastPrice"`
		} `json:"list"`
	}]
	if err := a.client.Do(ctx, httpx.Request{Method: "GET", Path: "/v5/market/tickers?" + params.Encode()}, &resp); err != nil {
		return venue.Quote{}, httpx.WrapErr(Tag, err)
	}
	if len(resp.Result.List) == 0 {
		return venue.Quote{}, venue.NewVenueError(Tag, "no_such_market", marketID)
	}
	return venue.Quote{Price: parseFloat(resp.Result.List[0].LastPrice)}, nil
}

func parseFloat(s string) float64 {
	f, _ := strconv.ParseFloat(s, 64)
	return f
}
