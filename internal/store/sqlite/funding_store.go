package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/agenthub/venuecore/internal/accum"
	"github.com/agenthub/venuecore/internal/domain"
)

// FundingStore implements domain.FundingStore over SQLite.
type FundingStore struct {
	db *sql.DB
}

func NewFundingStore(c *Client) *FundingStore {
	return &FundingStore{db: c.DB()}
}

func (s *FundingStore) InsertBatch(ctx context.Context, payments []domain.FundingPayment) error {
	if len(payments) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin funding batch: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO funding_payments (user_id, venue, symbol, rate, amount, position_size, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("sqlite: prepare funding insert: %w", err)
	}
	defer stmt.Close()

	for i, p := range payments {
		if _, err := stmt.ExecContext(ctx, p.UserID, p.Venue, p.Symbol, p.Rate, p.Amount,
			p.PositionSize, toMillis(p.Timestamp)); err != nil {
			return fmt.Errorf("sqlite: insert funding batch item %d: %w", i, err)
		}
	}
	return tx.Commit()
}

// Total sums the funding amounts for (userID, venue) since the given time
// using Kahan-compensated accumulation over the retrieved rows, as the
// Aggregator does for its portfolio totals.
func (s *FundingStore) Total(ctx context.Context, userID, venue string, since time.Time) (float64, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT amount FROM funding_payments WHERE user_id = ? AND venue = ? AND timestamp >= ?`,
		userID, venue, toMillis(since))
	if err != nil {
		return 0, fmt.Errorf("sqlite: query funding total %s/%s: %w", userID, venue, err)
	}
	defer rows.Close()

	var k accum.Kahan
	for rows.Next() {
		var amt float64
		if err := rows.Scan(&amt); err != nil {
			return 0, err
		}
		k.Add(amt)
	}
	return k.Sum(), rows.Err()
}
