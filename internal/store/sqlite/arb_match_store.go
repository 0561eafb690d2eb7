package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/agenthub/venuecore/internal/domain"
)

// ArbMatchStore implements domain.ArbMatchStore over SQLite.
type ArbMatchStore struct {
	db *sql.DB
}

func NewArbMatchStore(c *Client) *ArbMatchStore {
	return &ArbMatchStore{db: c.DB()}
}

func (s *ArbMatchStore) Add(ctx context.Context, m domain.ArbMatch) error {
	marketsJSON, err := encodeJSON(m.Markets)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO arb_matches (id, markets, matched_by, similarity, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			markets = excluded.markets,
			matched_by = excluded.matched_by,
			similarity = excluded.similarity
	`, m.ID, marketsJSON, string(m.MatchedBy), m.Similarity, toMillis(m.CreatedAt))
	if err != nil {
		return fmt.Errorf("sqlite: add arb match %s: %w", m.ID, err)
	}
	return nil
}

func (s *ArbMatchStore) Remove(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM arb_matches WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: remove arb match %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *ArbMatchStore) List(ctx context.Context) ([]domain.ArbMatch, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, markets, matched_by, similarity, created_at FROM arb_matches`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list arb matches: %w", err)
	}
	defer rows.Close()

	var out []domain.ArbMatch
	for rows.Next() {
		var m domain.ArbMatch
		var marketsJSON, matchedBy string
		var createdAt int64
		if err := rows.Scan(&m.ID, &marketsJSON, &matchedBy, &m.Similarity, &createdAt); err != nil {
			return nil, err
		}
		if err := decodeJSON(marketsJSON, &m.Markets); err != nil {
			return nil, err
		}
		m.MatchedBy = domain.MatchedBy(matchedBy)
		m.CreatedAt = fromMillis(createdAt)
		out = append(out, m)
	}
	return out, rows.Err()
}
