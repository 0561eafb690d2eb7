package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/agenthub/venuecore/internal/domain"
)

// MarketIndexStore implements domain.MarketIndexStore over SQLite.
type MarketIndexStore struct {
	db *sql.DB
}

func NewMarketIndexStore(c *Client) *MarketIndexStore {
	return &MarketIndexStore{db: c.DB()}
}

func (s *MarketIndexStore) Upsert(ctx context.Context, e domain.MarketIndexEntry) error {
	tagsJSON, err := encodeJSON(e.Tags)
	if err != nil {
		return err
	}
	embedding, err := encodeEmbedding(e.Embedding)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO market_index_entries (venue, market_id, question, description, tags, content_hash, embedding, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(venue, market_id) DO UPDATE SET
			question = excluded.question,
			description = excluded.description,
			tags = excluded.tags,
			content_hash = excluded.content_hash,
			embedding = excluded.embedding,
			updated_at = excluded.updated_at
	`, e.Venue, e.MarketID, e.Question, e.Description, tagsJSON, e.ContentHash, embedding, toMillis(e.UpdatedAt))
	if err != nil {
		return fmt.Errorf("sqlite: upsert market index entry %s/%s: %w", e.Venue, e.MarketID, err)
	}
	return nil
}

const marketIndexSelectCols = `venue, market_id, question, description, tags, content_hash, embedding, updated_at`

func scanMarketIndexRows(rows *sql.Rows) ([]domain.MarketIndexEntry, error) {
	var out []domain.MarketIndexEntry
	for rows.Next() {
		var e domain.MarketIndexEntry
		var tagsJSON string
		var embedding []byte
		var updatedAt int64
		if err := rows.Scan(&e.Venue, &e.MarketID, &e.Question, &e.Description,
			&tagsJSON, &e.ContentHash, &embedding, &updatedAt); err != nil {
			return nil, err
		}
		if err := decodeJSON(tagsJSON, &e.Tags); err != nil {
			return nil, err
		}
		emb, err := decodeEmbedding(embedding)
		if err != nil {
			return nil, err
		}
		e.Embedding = emb
		e.UpdatedAt = fromMillis(updatedAt)
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *MarketIndexStore) ListByVenue(ctx context.Context, venue string) ([]domain.MarketIndexEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+marketIndexSelectCols+` FROM market_index_entries WHERE venue = ?`, venue)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list market index for venue %s: %w", venue, err)
	}
	defer rows.Close()
	return scanMarketIndexRows(rows)
}

func (s *MarketIndexStore) List(ctx context.Context) ([]domain.MarketIndexEntry, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+marketIndexSelectCols+` FROM market_index_entries`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list market index: %w", err)
	}
	defer rows.Close()
	return scanMarketIndexRows(rows)
}

func (s *MarketIndexStore) Prune(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM market_index_entries WHERE updated_at < ?`, toMillis(before))
	if err != nil {
		return 0, fmt.Errorf("sqlite: prune market index: %w", err)
	}
	return res.RowsAffected()
}
