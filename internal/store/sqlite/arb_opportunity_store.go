package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/agenthub/venuecore/internal/domain"
)

// ArbOpportunityStore implements domain.ArbOpportunityStore over SQLite.
type ArbOpportunityStore struct {
	db *sql.DB
}

func NewArbOpportunityStore(c *Client) *ArbOpportunityStore {
	return &ArbOpportunityStore{db: c.DB()}
}

// Upsert replaces the opportunity by ID, which the caller sets deterministically
// from ArbOpportunity.Key() so a repeat detection updates in place.
func (s *ArbOpportunityStore) Upsert(ctx context.Context, o domain.ArbOpportunity) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO arb_opportunities (
			id, match_id, buy_venue, buy_market_id, buy_outcome, buy_price,
			sell_venue, sell_market_id, sell_outcome, sell_price,
			spread, spread_pct, profit_per_100, confidence, detected_at, expires_at, is_active
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			match_id = excluded.match_id,
			buy_price = excluded.buy_price,
			sell_price = excluded.sell_price,
			spread = excluded.spread,
			spread_pct = excluded.spread_pct,
			profit_per_100 = excluded.profit_per_100,
			confidence = excluded.confidence,
			expires_at = excluded.expires_at,
			is_active = excluded.is_active
	`,
		o.ID, o.MatchID, o.Buy.Venue, o.Buy.MarketID, o.Buy.Outcome, o.Buy.Price,
		o.Sell.Venue, o.Sell.MarketID, o.Sell.Outcome, o.Sell.Price,
		o.Spread, o.SpreadPct, o.ProfitPer100, o.Confidence,
		toMillis(o.DetectedAt), toMillis(o.ExpiresAt), boolInt(o.IsActive),
	)
	if err != nil {
		return fmt.Errorf("sqlite: upsert arb opportunity %s: %w", o.ID, err)
	}
	return nil
}

const arbOpportunitySelectCols = `id, match_id, buy_venue, buy_market_id, buy_outcome, buy_price,
	sell_venue, sell_market_id, sell_outcome, sell_price,
	spread, spread_pct, profit_per_100, confidence, detected_at, expires_at, is_active`

func scanArbOpportunityRows(rows *sql.Rows) ([]domain.ArbOpportunity, error) {
	var out []domain.ArbOpportunity
	for rows.Next() {
		var o domain.ArbOpportunity
		var isActive int
		var detectedAt, expiresAt int64
		if err := rows.Scan(&o.ID, &o.MatchID,
			&o.Buy.Venue, &o.Buy.MarketID, &o.Buy.Outcome, &o.Buy.Price,
			&o.Sell.Venue, &o.Sell.MarketID, &o.Sell.Outcome, &o.Sell.Price,
			&o.Spread, &o.SpreadPct, &o.ProfitPer100, &o.Confidence,
			&detectedAt, &expiresAt, &isActive); err != nil {
			return nil, err
		}
		o.IsActive = isActive != 0
		o.DetectedAt = fromMillis(detectedAt)
		o.ExpiresAt = fromMillis(expiresAt)
		out = append(out, o)
	}
	return out, rows.Err()
}

func (s *ArbOpportunityStore) ListActive(ctx context.Context) ([]domain.ArbOpportunity, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+arbOpportunitySelectCols+` FROM arb_opportunities WHERE is_active = 1`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list active arb opportunities: %w", err)
	}
	defer rows.Close()
	return scanArbOpportunityRows(rows)
}

func (s *ArbOpportunityStore) ExpireBefore(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE arb_opportunities SET is_active = 0 WHERE is_active = 1 AND expires_at < ?`,
		toMillis(now))
	if err != nil {
		return 0, fmt.Errorf("sqlite: expire arb opportunities: %w", err)
	}
	return res.RowsAffected()
}
