package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/agenthub/venuecore/internal/domain"
)

// MarketStore implements domain.MarketStore over SQLite.
type MarketStore struct {
	db *sql.DB
}

func NewMarketStore(c *Client) *MarketStore {
	return &MarketStore{db: c.DB()}
}

func (s *MarketStore) Upsert(ctx context.Context, m domain.Market) error {
	outcomesJSON, err := encodeJSON(m.Outcomes)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO markets (venue, market_id, question, outcomes, end_date, resolved, last_seen_at, cached_raw)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(venue, market_id) DO UPDATE SET
			question = excluded.question,
			outcomes = excluded.outcomes,
			end_date = excluded.end_date,
			resolved = excluded.resolved,
			last_seen_at = excluded.last_seen_at,
			cached_raw = excluded.cached_raw
	`, m.Venue, m.MarketID, m.Question, outcomesJSON, toMillisPtr(m.EndDate),
		boolInt(m.Resolved), toMillis(m.LastSeenAt), m.CachedRaw)
	if err != nil {
		return fmt.Errorf("sqlite: upsert market %s/%s: %w", m.Venue, m.MarketID, err)
	}
	return nil
}

func (s *MarketStore) Get(ctx context.Context, venue, marketID string) (*domain.Market, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT venue, market_id, question, outcomes, end_date, resolved, last_seen_at, cached_raw
		FROM markets WHERE venue = ? AND market_id = ?`, venue, marketID)

	var m domain.Market
	var outcomesJSON string
	var endDate *int64
	var resolved int
	var lastSeenAt int64

	err := row.Scan(&m.Venue, &m.MarketID, &m.Question, &outcomesJSON, &endDate,
		&resolved, &lastSeenAt, &m.CachedRaw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: get market %s/%s: %w", venue, marketID, err)
	}
	if err := decodeJSON(outcomesJSON, &m.Outcomes); err != nil {
		return nil, err
	}
	m.EndDate = fromMillisPtr(endDate)
	m.Resolved = resolved != 0
	m.LastSeenAt = fromMillis(lastSeenAt)
	return &m, nil
}

func (s *MarketStore) EvictStale(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM markets WHERE last_seen_at < ?`, toMillis(before))
	if err != nil {
		return 0, fmt.Errorf("sqlite: evict stale markets: %w", err)
	}
	return res.RowsAffected()
}
