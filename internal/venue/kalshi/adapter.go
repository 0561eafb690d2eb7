// Package kalshi implements venue.Adapter for the Kalshi exchange API,
// authenticated with RSA-PSS-SHA256 request signing, grounded directly on
// the teacher's internal/platform/kalshi/client.go signing scheme.
package kalshi

import (
	"context"
	gocrypto "crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/agenthub/venuecore/internal/domain"
	"github.com/agenthub/venuecore/internal/venue"
	"github.com/agenthub/venuecore/internal/venue/httpx"
)

const Tag = "kalshi"

// Adapter reads Kalshi positions, fills, and market data.
type Adapter struct {
	client *httpx.Client
}

// New creates a Kalshi adapter. baseURL is normally
// "https://api.elections.kalshi.com/trade-api/v2".
func New(baseURL string) *Adapter {
	return &Adapter{client: httpx.New(Tag, baseURL)}
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

// signedHeaders builds the KALSHI-ACCESS-* headers for a request. The
// credential's PrivateKeyHex field holds the PEM-encoded RSA private key
// text (Kalshi issues RSA keypairs, not hex secp256k1 keys, but Blob has no
// dedicated PEM field so this reuses the one free string slot).
func signedHeaders(cred venue.Credential, method, path string) (map[string]string, error) {
	block, _ := pem.Decode([]byte(cred.PrivateKeyHex))
	if block == nil {
		return nil, fmt.Errorf("kalshi: no PEM block in private key")
	}
	key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		key, err = x509.ParsePKCS1PrivateKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("kalshi: parse private key: %w", err)
		}
	}
	rsaKey, ok := key.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("kalshi: expected RSA private key, got %T", key)
	}

	ts := strconv.FormatInt(time.Now().UnixMilli(), 10)
	message := ts + method + path
	hash := sha256.Sum256([]byte(message))
	sig, err := rsa.SignPSS(rand.Reader, rsaKey, gocrypto.SHA256, hash[:], &rsa.PSSOptions{
		SaltLength: rsa.PSSSaltLengthEqualsHash,
	})
	if err != nil {
		return nil, fmt.Errorf("kalshi: sign: %w", err)
	}

	return map[string]string{
		"KALSHI-ACCESS-KEY":       cred.APIKey,
		"KALSHI-ACCESS-SIGNATURE": base64.StdEncoding.EncodeToString(sig),
		"KALSHI-ACCESS-TIMESTAMP": ts,
	}, nil
}

type apiPosition struct {
	Ticker           string  `json:"ticker"`
	Position         int64   `json:"position"`
	MarketExposure   int64   `json:"market_exposure"`
	RealizedPnl      int64   `json:"realized_pnl"`
	FeesPaid         int64   `json:"fees_paid"`
	LastPriceCents   int64   `json:"last_price"`
	AvgEntryPriceC   int64   `json:"average_entry_price_cents"`
}

func (a *Adapter) FetchPositions(ctx context.Context, cred venue.Credential) ([]domain.Position, error) {
	path := "/portfolio/positions"
	headers, err := signedHeaders(cred, "GET", path)
	if err != nil {
		return nil, venue.NewAuthError(Tag, err.Error(), err)
	}

	var resp struct {
		MarketPositions []apiPosition `json:"market_positions"`
	}
	if err := a.client.Do(ctx, httpx.Request{Method: "GET", Path: path, Headers: headers}, &resp); err != nil {
		return nil, httpx.WrapErr(Tag, err)
	}

	now := time.Now()
	out := make([]domain.Position, 0, len(resp.MarketPositions))
	for _, p := range resp.MarketPositions {
		side := "yes"
		size := float64(p.Position)
		if p.Position < 0 {
			side = "no"
			size = -size
		}
		out = append(out, domain.Position{
			Venue:         Tag,
			MarketID:      p.Ticker,
			OutcomeID:     side,
			Side:          side,
			Size:          size,
			AvgEntryPrice: float64(p.AvgEntryPriceC) / 100,
			CurrentPrice:  float64(p.LastPriceCents) / 100,
			OpenedAt:      now,
			UpdatedAt:     now,
		})
	}
	return out, nil
}

func (a *Adapter) FetchBalances(ctx context.Context, cred venue.Credential) ([]domain.Balance, error) {
	path := "/portfolio/balance"
	headers, err := signedHeaders(cred, "GET", path)
	if err != nil {
		return nil, venue.NewAuthError(Tag, err.Error(), err)
	}
	var resp struct {
		BalanceCents int64 `json:"balance"`
	}
	if err := a.client.Do(ctx, httpx.Request{Method: "GET", Path: path, Headers: headers}, &resp); err != nil {
		return nil, httpx.WrapErr(Tag, err)
	}
	dollars := float64(resp.BalanceCents) / 100
	return []domain.Balance{{Venue: Tag, Asset: "USD", Available: dollars, Total: dollars}}, nil
}

type apiFill struct {
	TradeID   string `json:"trade_id"`
	Ticker    string `json:"ticker"`
	Side      string `json:"side"`
	Action    string `json:"action"`
	Count     int64  `json:"count"`
	YesPrice  int64  `json:"yes_price"`
	NoPrice   int64  `json:"no_price"`
	CreatedTS string `json:"created_time"`
}

func (a *Adapter) FetchTrades(ctx context.Context, cred venue.Credential, opts venue.FetchOpts) ([]domain.Trade, error) {
	params := url.Values{}
	if opts.Limit > 0 {
		params.Set("limit", strconv.Itoa(opts.Limit))
	}
	if opts.Since != nil {
		params.Set("min_ts", strconv.FormatInt(opts.Since.Unix(), 10))
	}
	path := "/portfolio/fills"
	if len(params) > 0 {
		path += "?" + params.Encode()
	}

	headers, err := signedHeaders(cred, "GET", "/portfolio/fills")
	if err != nil {
		return nil, venue.NewAuthError(Tag, err.Error(), err)
	}

	var resp struct {
		Fills []apiFill `json:"fills"`
	}
	if err := a.client.Do(ctx, httpx.Request{Method: "GET", Path: path, Headers: headers}, &resp); err != nil {
		return nil, httpx.WrapErr(Tag, err)
	}

	out := make([]domain.Trade, 0, len(resp.Fills))
	for _, f := range resp.Fills {
		price := float64(f.YesPrice) / 100
		if f.Side == "no" {
			price = float64(f.NoPrice) / 100
		}
		ts, _ := time.Parse(time.RFC3339, f.CreatedTS)
		out = append(out, domain.Trade{
			Venue:        Tag,
			VenueTradeID: f.TradeID,
			MarketID:     f.Ticker,
			OutcomeID:    f.Side,
			Side:         f.Action,
			Size:         float64(f.Count),
			Price:        price,
			Timestamp:    ts,
		})
	}
	return out, nil
}

func (a *Adapter) FetchFunding(ctx context.Context, cred venue.Credential, opts venue.FetchOpts) ([]domain.FundingPayment, error) {
	return nil, venue.NewNotSupported(Tag, "FetchFunding")
}

func (a *Adapter) Quote(ctx context.Context, marketID, side string, size float64) (venue.Quote, error) {
	path := fmt.Sprintf("/markets/%s", url.PathEscape(marketID))
	var resp struct {
		Market struct {
			YesAsk int64 `json:"yes_ask"`
			YesBid int64 `json:"yes_bid"`
			NoAsk  int64 `json:"no_ask"`
			NoBid  int64 `json:"no_bid"`
		} `json:"market"`
	}
	if err := a.client.Do(ctx, httpx.Request{Method: "GET", Path: path}, &resp); err != nil {
		return venue.Quote{}, httpx.WrapErr(Tag, err)
	}
	cents := resp.Market.YesAsk
	if side == "no" {
		cents = resp.Market.NoAsk
	}
	return venue.Quote{Price: float64(cents) / 100}, nil
}

type apiMarket struct {
	Ticker   string `json:"ticker"`
	Title    string `json:"title"`
	Subtitle string `json:"subtitle"`
	Status   string `json:"status"`
}

func (a *Adapter) SearchMarkets(ctx context.Context, term string) ([]domain.Market, error) {
	params := url.Values{}
	params.Set("status", "open")
	params.Set("limit", "100")
	path := "/markets?" + params.Encode()

	var resp struct {
		Markets []apiMarket `json:"markets"`
	}
	if err := a.client.Do(ctx, httpx.Request{Method: "GET", Path: path}, &resp); err != nil {
		return nil, httpx.WrapErr(Tag, err)
	}

	now := time.Now()
	var out []domain.Market
	for _, m := range resp.Markets {
		if term != "" &&
			!strings.Contains(strings.ToLower(m.Title), strings.ToLower(term)) &&
			!strings.Contains(strings.ToLower(m.Subtitle), strings.ToLower(term)) {
			continue
		}
		out = append(out, domain.Market{
			Venue:      Tag,
			MarketID:   m.Ticker,
			Question:   m.Title,
			Outcomes:   []string{"yes", "no"},
			Resolved:   m.Status == "settled",
			LastSeenAt: now,
		})
	}
	return out, nil
}
