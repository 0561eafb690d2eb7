package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/agenthub/venuecore/internal/domain"
)

// TradeStore implements domain.TradeStore over SQLite.
type TradeStore struct {
	db *sql.DB
}

func NewTradeStore(c *Client) *TradeStore {
	return &TradeStore{db: c.DB()}
}

const tradeSelectCols = `id, user_id, venue, venue_trade_id, market_id, outcome_id,
	side, size, price, fee, realized_pnl, timestamp`

func scanTradeRows(rows *sql.Rows) ([]domain.Trade, error) {
	var out []domain.Trade
	for rows.Next() {
		var t domain.Trade
		var ts int64
		if err := rows.Scan(&t.ID, &t.UserID, &t.Venue, &t.VenueTradeID, &t.MarketID,
			&t.OutcomeID, &t.Side, &t.Size, &t.Price, &t.Fee, &t.RealizedPnL, &ts); err != nil {
			return nil, err
		}
		t.Timestamp = fromMillis(ts)
		out = append(out, t)
	}
	return out, rows.Err()
}

// InsertBatch inserts trades one at a time inside a transaction, relying on
// the partial unique index on (venue, venue_trade_id) to silently skip
// duplicates via INSERT OR IGNORE. Returns the count actually inserted.
func (s *TradeStore) InsertBatch(ctx context.Context, trades []domain.Trade) (int, error) {
	if len(trades) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("sqlite: begin trade batch: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR IGNORE INTO trades (
			user_id, venue, venue_trade_id, market_id, outcome_id,
			side, size, price, fee, realized_pnl, timestamp
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("sqlite: prepare trade insert: %w", err)
	}
	defer stmt.Close()

	inserted := 0
	for i, t := range trades {
		res, err := stmt.ExecContext(ctx,
			t.UserID, t.Venue, t.VenueTradeID, t.MarketID, t.OutcomeID,
			t.Side, t.Size, t.Price, t.Fee, t.RealizedPnL, toMillis(t.Timestamp))
		if err != nil {
			return inserted, fmt.Errorf("sqlite: insert trade batch item %d: %w", i, err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			inserted++
		}
	}

	if err := tx.Commit(); err != nil {
		return inserted, fmt.Errorf("sqlite: commit trade batch: %w", err)
	}
	return inserted, nil
}

func (s *TradeStore) ListByUser(ctx context.Context, userID string, opts domain.ListOpts) ([]domain.Trade, error) {
	query := `SELECT ` + tradeSelectCols + ` FROM trades WHERE user_id = ?`
	args := []any{userID}
	query, args = appendListOpts(query, args, "timestamp", opts)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list trades for user %s: %w", userID, err)
	}
	defer rows.Close()
	return scanTradeRows(rows)
}

func (s *TradeStore) ListByMarket(ctx context.Context, venue, marketID string, opts domain.ListOpts) ([]domain.Trade, error) {
	query := `SELECT ` + tradeSelectCols + ` FROM trades WHERE venue = ? AND market_id = ?`
	args := []any{venue, marketID}
	query, args = appendListOpts(query, args, "timestamp", opts)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list trades for market %s/%s: %w", venue, marketID, err)
	}
	defer rows.Close()
	return scanTradeRows(rows)
}

func (s *TradeStore) GetLastTimestamp(ctx context.Context, userID, venue string) (time.Time, error) {
	var ts *int64
	err := s.db.QueryRowContext(ctx,
		`SELECT MAX(timestamp) FROM trades WHERE user_id = ? AND venue = ?`, userID, venue).Scan(&ts)
	if err != nil {
		return time.Time{}, fmt.Errorf("sqlite: get last trade timestamp %s/%s: %w", userID, venue, err)
	}
	if ts == nil {
		return time.Time{}, nil
	}
	return fromMillis(*ts), nil
}

// appendListOpts applies the common Since/Until/Limit/Offset filters used
// by every history-style list query, ordered descending by orderCol.
func appendListOpts(query string, args []any, orderCol string, opts domain.ListOpts) (string, []any) {
	if opts.Since != nil {
		query += fmt.Sprintf(" AND %s >= ?", orderCol)
		args = append(args, toMillis(*opts.Since))
	}
	if opts.Until != nil {
		query += fmt.Sprintf(" AND %s <= ?", orderCol)
		args = append(args, toMillis(*opts.Until))
	}
	query += fmt.Sprintf(" ORDER BY %s DESC", orderCol)
	if opts.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, opts.Limit)
		if opts.Offset > 0 {
			query += " OFFSET ?"
			args = append(args, opts.Offset)
		}
	}
	return query, args
}
