// Package polymarket implements venue.Adapter for Polymarket: the Gamma API
// for market discovery and pricing, and the CLOB Data API for position,
// trade, and balance reads, authenticated with the teacher's L2 HMAC header
// scheme derived from a wallet signature.
package polymarket

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/agenthub/venuecore/internal/crypto"
	"github.com/agenthub/venuecore/internal/domain"
	"github.com/agenthub/venuecore/internal/venue"
	"github.com/agenthub/venuecore/internal/venue/httpx"
)

const Tag = "polymarket"

// Adapter reads Polymarket CLOB positions/trades and Gamma market data.
type Adapter struct {
	clob  *httpx.Client
	gamma *httpx.Client
}

// New creates a Polymarket adapter. clobURL and gammaURL are normally
// "https://clob.polymarket.com" and "https://gamma-api.polymarket.com".
func New(clobURL, gammaURL string) *Adapter {
	return &Adapter{
		clob:  httpx.New(Tag, clobURL),
		gamma: httpx.New(Tag, gammaURL),
	}
}

var _ venue.SearchableAdapter = (*Adapter)(nil)

func (a *Adapter) Tag() string { return Tag }

func (a *Adapter) Capabilities() venue.Capabilities {
	return venue.Capabilities{
		SupportsFutures: false,
		SupportsFunding: false,
		SupportsStream:  true,
		SupportsSearch:  true,
		PriceUnit:       "probability",
	}
}

// l2Headers builds the POLY_* auth headers for a signed CLOB request, using
// the wallet address recovered from the credential and the HMAC API key/
// secret/passphrase issued by the CLOB's derive-api-key flow.
func l2Headers(cred venue.Credential, method, path, body string) map[string]string {
	auth := &crypto.HMACAuth{Key: cred.APIKey, Secret: cred.APISecret, Passphrase: cred.Passphrase}
	return auth.L2Headers(cred.WalletAddress, method, path, body)
}

type apiPosition struct {
	Asset         string  `json:"asset"`
	ConditionID   string  `json:"conditionId"`
	Outcome       string  `json:"outcome"`
	Size          float64 `json:"size,string"`
	AvgPrice      float64 `json:"avgPrice,string"`
	CurPrice      float64 `json:"curPrice,string"`
	RealizedPnl   float64 `json:"realizedPnl,string"`
	InitialValue  float64 `json:"initialValue,string"`
}

func (a *Adapter) FetchPositions(ctx context.Context, cred venue.Credential) ([]domain.Position, error) {
	path := "/positions?user=" + url.QueryEscape(cred.WalletAddress)
	var apiPositions []apiPosition
	if err := a.clob.Do(ctx, httpx.Request{
		Method:  "GET",
		Path:    path,
		Headers: l2Headers(cred, "GET", path, ""),
	}, &apiPositions); err != nil {
		return nil, httpx.WrapErr(Tag, err)
	}

	out := make([]domain.Position, 0, len(apiPositions))
	now := time.Now()
	for _, p := range apiPositions {
		side := "yes"
		if p.Outcome == "No" {
			side = "no"
		}
		out = append(out, domain.Position{
			Venue:         Tag,
			MarketID:      p.ConditionID,
			OutcomeID:     p.Asset,
			Side:          side,
			Size:          p.Size,
			AvgEntryPrice: p.AvgPrice,
			CurrentPrice:  p.CurPrice,
			OpenedAt:      now,
			UpdatedAt:     now,
		})
	}
	return out, nil
}

func (a *Adapter) FetchBalances(ctx context.Context, cred venue.Credential) ([]domain.Balance, error) {
	path := "/balance?user=" + url.QueryEscape(cred.WalletAddress)
	var resp struct {
		Balance float64 `json:"balance,string"`
	}
	if err := a.clob.Do(ctx, httpx.Request{
		Method:  "GET",
		Path:    path,
		Headers: l2Headers(cred, "GET", path, ""),
	}, &resp); err != nil {
		return nil, httpx.WrapErr(Tag, err)
	}
	return []domain.Balance{{
		Venue:     Tag,
		Asset:     "USDC",
		Available: resp.Balance,
		Total:     resp.Balance,
	}}, nil
}

type apiTrade struct {
	ID          string  `json:"id"`
	ConditionID string  `json:"conditionId"`
	Asset       string  `json:"asset"`
	Side        string  `json:"side"`
	Size        float64 `json:"size,string"`
	Price       float64 `json:"price,string"`
	FeeRateBps  float64 `json:"feeRateBps,string"`
	Timestamp   int64   `json:"timestamp,string"`
}

func (a *Adapter) FetchTrades(ctx context.Context, cred venue.Credential, opts venue.FetchOpts) ([]domain.Trade, error) {
	params := url.Values{}
	params.Set("user", cred.WalletAddress)
	if opts.Since != nil {
		params.Set("after", strconv.FormatInt(opts.Since.Unix(), 10))
	}
	if opts.Limit > 0 {
		params.Set("limit", strconv.Itoa(opts.Limit))
	}
	path := "/trades?" + params.Encode()

	var apiTrades []apiTrade
	if err := a.clob.Do(ctx, httpx.Request{
		Method:  "GET",
		Path:    path,
		Headers: l2Headers(cred, "GET", path, ""),
	}, &apiTrades); err != nil {
		return nil, httpx.WrapErr(Tag, err)
	}

	out := make([]domain.Trade, 0, len(apiTrades))
	for _, t := range apiTrades {
		out = append(out, domain.Trade{
			Venue:        Tag,
			VenueTradeID: t.ID,
			MarketID:     t.ConditionID,
			OutcomeID:    t.Asset,
			Side:         t.Side,
			Size:         t.Size,
			Price:        t.Price,
			Fee:          t.Size * t.Price * (t.FeeRateBps / 10000),
			Timestamp:    time.Unix(t.Timestamp, 0),
		})
	}
	return out, nil
}

// FetchFunding is not supported: Polymarket has no perpetual-futures
// funding mechanism.
func (a *Adapter) FetchFunding(ctx context.Context, cred venue.Credential, opts venue.FetchOpts) ([]domain.FundingPayment, error) {
	return nil, venue.NewNotSupported(Tag, "FetchFunding")
}

type apiMarket struct {
	ConditionID string   `json:"conditionId"`
	Question    string   `json:"question"`
	Slug        string   `json:"slug"`
	Closed      bool     `json:"closed"`
	Tokens      []apiTok `json:"tokens"`
}

type apiTok struct {
	TokenID string `json:"token_id"`
	Outcome string `json:"outcome"`
	Price   string `json:"price"`
}

// Quote looks up the current last-traded price for the outcome token
// matching side (e.g. "yes"/"no", matched case-insensitively since Gamma
// returns capitalized outcome names) within the market identified by
// marketID (a conditionID), from Gamma market metadata, since Gamma
// publishes last-traded token prices without requiring a signed request.
func (a *Adapter) Quote(ctx context.Context, marketID, side string, size float64) (venue.Quote, error) {
	path := "/markets/" + url.PathEscape(marketID)
	var m apiMarket
	if err := a.gamma.Do(ctx, httpx.Request{Method: "GET", Path: path}, &m); err != nil {
		return venue.Quote{}, httpx.WrapErr(Tag, err)
	}
	for _, tok := range m.Tokens {
		if !strings.EqualFold(tok.Outcome, side) {
			continue
		}
		price, err := strconv.ParseFloat(tok.Price, 64)
		if err != nil {
			return venue.Quote{}, venue.NewVenueError(Tag, "bad_price", fmt.Sprintf("parse price %q: %v", tok.Price, err))
		}
		return venue.Quote{Price: price}, nil
	}
	return venue.Quote{}, venue.NewVenueError(Tag, "no_such_token", marketID)
}

func (a *Adapter) SearchMarkets(ctx context.Context, term string) ([]domain.Market, error) {
	params := url.Values{}
	params.Set("q", term)
	params.Set("limit", "50")

	var apiMarkets []apiMarket
	if err := a.gamma.Do(ctx, httpx.Request{Method: "GET", Path: "/markets?" + params.Encode()}, &apiMarkets); err != nil {
		return nil, httpx.WrapErr(Tag, err)
	}

	now := time.Now()
	out := make([]domain.Market, 0, len(apiMarkets))
	for _, m := range apiMarkets {
		outcomes := make([]string, 0, len(m.Tokens))
		for _, tok := range m.Tokens {
			outcomes = append(outcomes, tok.Outcome)
		}
		raw, _ := json.Marshal(m)
		out = append(out, domain.Market{
			Venue:      Tag,
			MarketID:   m.ConditionID,
			Question:   m.Question,
			Outcomes:   outcomes,
			Resolved:   m.Closed,
			LastSeenAt: now,
			CachedRaw:  raw,
		})
	}
	return out, nil
}
