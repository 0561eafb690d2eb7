// Package manifold implements venue.Adapter for Manifold Markets, whose
// public API is entirely unauthenticated read-only REST: no signing layer
// is needed, only the shared httpx.Client.
package manifold

import (
	"context"
	"net/url"
	"strconv"
	"time"

	"github.com/agenthub/venuecore/internal/domain"
	"github.com/agenthub/venuecore/internal/venue"
	"github.com/agenthub/venuecore/internal/venue/httpx"
)

const Tag = "manifold"

// Adapter reads Manifold positions (bets), public market data, and user
// balance, all from the venue's open API.
type Adapter struct {
	client *httpx.Client
}

// New creates a Manifold adapter. baseURL is normally
// "https://api.manifold.markets".
func New(baseURL string) *Adapter {
	return &Adapter{client: httpx.New(Tag, baseURL)}
}

var _ venue.SearchableAdapter = (*Adapter)(nil)

func (a *Adapter) Tag() string { return Tag }

func (a *Adapter) Capabilities() venue.Capabilities {
	return venue.Capabilities{
		SupportsFutures: false,
		SupportsFunding: false,
		SupportsStream:  false,
		SupportsSearch:  true,
		PriceUnit:       "probability",
	}
}

// userID maps a wallet/account credential to a Manifold user ID: the Extra
// map's "user_id" entry carries it since Manifold identifies accounts by ID,
// falling back to the APIKey field when that entry is absent.
func userID(cred venue.Credential) string {
	if id, ok := cred.Extra["user_id"]; ok {
		return id
	}
	return cred.APIKey
}

type apiBet struct {
	ID            string  `json:"id"`
	ContractID    string  `json:"contractId"`
	Outcome       string  `json:"outcome"`
	Amount        float64 `json:"amount"`
	Shares        float64 `json:"shares"`
	ProbBefore    float64 `json:"probBefore"`
	ProbAfter     float64 `json:"probAfter"`
	CreatedTime   int64   `json:"createdTime"`
}

func (a *Adapter) FetchPositions(ctx context.Context, cred venue.Credential) ([]domain.Position, error) {
	params := url.Values{"userId": {userID(cred)}}
	var bets []apiBet
	if err := a.client.Do(ctx, httpx.Request{Method: "GET", Path: "/v0/bets?" + params.Encode()}, &bets); err != nil {
		return nil, httpx.WrapErr(Tag, err)
	}

	byContract := map[string]*domain.Position{}
	now := time.Now()
	for _, b := range bets {
		key := b.ContractID + "|" + b.Outcome
		pos, ok := byContract[key]
		if !ok {
			pos = &domain.Position{
				Venue:      Tag,
				MarketID:   b.ContractID,
				OutcomeID:  b.Outcome,
				Side:       b.Outcome,
				OpenedAt:   time.UnixMilli(b.CreatedTime),
				UpdatedAt:  now,
				MarginMode: domain.MarginModeCross,
			}
			byContract[key] = pos
		}
		pos.Size += b.Shares
		pos.CurrentPrice = b.ProbAfter
		if pos.Size != 0 {
			pos.AvgEntryPrice = safeDiv(pos.AvgEntryPrice*(pos.Size-b.Shares)+b.Amount, pos.Size)
		}
	}

	out := make([]domain.Position, 0, len(byContract))
	for _, pos := range byContract {
		if pos.Size == 0 {
			continue
		}
		out = append(out, *pos)
	}
	return out, nil
}

func (a *Adapter) FetchBalances(ctx context.Context, cred venue.Credential) ([]domain.Balance, error) {
	path := "/v0/user/" + url.PathEscape(userID(cred))
	var resp struct {
		Balance float64 `json:"balance"`
	}
	if err := a.client.Do(ctx, httpx.Request{Method: "GET", Path: path}, &resp); err != nil {
		return nil, httpx.WrapErr(Tag, err)
	}
	return []domain.Balance{{Venue: Tag, Asset: "MANA", Available: resp.Balance, Total: resp.Balance}}, nil
}

func (a *Adapter) FetchTrades(ctx context.Context, cred venue.Credential, opts venue.FetchOpts) ([]domain.Trade, error) {
	params := url.Values{"userId": {userID(cred)}}
	if opts.Limit > 0 {
		params.Set("limit", strconv.Itoa(opts.Limit))
	}
	var bets []apiBet
	if err := a.client.Do(ctx, httpx.Request{Method: "GET", Path: "/v0/bets?" + params.Encode()}, &bets); err != nil {
		return nil, httpx.WrapErr(Tag, err)
	}

	out := make([]domain.Trade, 0, len(bets))
	for _, b := range bets {
		ts := time.UnixMilli(b.CreatedTime)
		if opts.Since != nil && ts.Before(*opts.Since) {
			continue
		}
		side := "buy"
		if b.Amount < 0 {
			side = "sell"
		}
		out = append(out, domain.Trade{
			Venue:        Tag,
			VenueTradeID: b.ID,
			MarketID:     b.ContractID,
			OutcomeID:    b.Outcome,
			Side:         side,
			Size:         absFloat(b.Shares),
			Price:        safeDiv(absFloat(b.Amount), absFloat(b.Shares)),
			Timestamp:    ts,
		})
	}
	return out, nil
}

// FetchFunding is not supported: Manifold has no perpetual-futures funding
// mechanism.
func (a *Adapter) FetchFunding(ctx context.Context, cred venue.Credential, opts venue.FetchOpts) ([]domain.FundingPayment, error) {
	return nil, venue.NewNotSupported(Tag, "FetchFunding")
}

type apiMarket struct {
	ID          string  `json:"id"`
	Question    string  `json:"question"`
	Probability float64 `json:"probability"`
	IsResolved  bool    `json:"isResolved"`
}

func (a *Adapter) Quote(ctx context.Context, marketID, side string, size float64) (venue.Quote, error) {
	path := "/v0/market/" + url.PathEscape(marketID)
	var m apiMarket
	if err := a.client.Do(ctx, httpx.Request{Method: "GET", Path: path}, &m); err != nil {
		return venue.Quote{}, httpx.WrapErr(Tag, err)
	}
	price := m.Probability
	if side == "no" {
		price = 1 - price
	}
	return venue.Quote{Price: price}, nil
}

func (a *Adapter) SearchMarkets(ctx context.Context, term string) ([]domain.Market, error) {
	params := url.Values{"term": {term}, "limit": {"50"}}
	var apiMarkets []apiMarket
	if err := a.client.Do(ctx, httpx.Request{Method: "GET", Path: "/v0/search-markets?" + params.Encode()}, &apiMarkets); err != nil {
		return nil, httpx.WrapErr(Tag, err)
	}

	now := time.Now()
	out := make([]domain.Market, 0, len(apiMarkets))
	for _, m := range apiMarkets {
		out = append(out, domain.Market{
			Venue:      Tag,
			MarketID:   m.ID,
			Question:   m.Question,
			Outcomes:   []string{"yes", "no"},
			Resolved:   m.IsResolved,
			LastSeenAt: now,
		})
	}
	return out, nil
}

func safeDiv(a, b float64) float64 {
	if b == 0 {
		return 0
	}
	return a / b
}

func absFloat(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
