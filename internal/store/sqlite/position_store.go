package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/agenthub/venuecore/internal/domain"
)

// PositionStore implements domain.PositionStore over SQLite.
type PositionStore struct {
	db *sql.DB
}

func NewPositionStore(c *Client) *PositionStore {
	return &PositionStore{db: c.DB()}
}

const positionSelectCols = `id, user_id, venue, market_id, outcome_id, side,
	size, avg_entry_price, current_price, opened_at, updated_at,
	leverage, margin_mode, liquidation_price, notional`

func scanPositionRows(rows *sql.Rows) ([]domain.Position, error) {
	var out []domain.Position
	for rows.Next() {
		var p domain.Position
		var marginMode string
		var openedAt, updatedAt int64

		if err := rows.Scan(
			&p.ID, &p.UserID, &p.Venue, &p.MarketID, &p.OutcomeID, &p.Side,
			&p.Size, &p.AvgEntryPrice, &p.CurrentPrice, &openedAt, &updatedAt,
			&p.Leverage, &marginMode, &p.LiquidationPrice, &p.Notional,
		); err != nil {
			return nil, err
		}
		p.MarginMode = domain.MarginMode(marginMode)
		p.OpenedAt = fromMillis(openedAt)
		p.UpdatedAt = fromMillis(updatedAt)
		out = append(out, p)
	}
	return out, rows.Err()
}

// Upsert inserts or replaces the open position keyed by
// (userID, venue, marketID, outcomeID).
func (s *PositionStore) Upsert(ctx context.Context, p domain.Position) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO positions (
			id, user_id, venue, market_id, outcome_id, side,
			size, avg_entry_price, current_price, opened_at, updated_at,
			leverage, margin_mode, liquidation_price, notional
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id, venue, market_id, outcome_id) DO UPDATE SET
			side = excluded.side,
			size = excluded.size,
			avg_entry_price = excluded.avg_entry_price,
			current_price = excluded.current_price,
			updated_at = excluded.updated_at,
			leverage = excluded.leverage,
			margin_mode = excluded.margin_mode,
			liquidation_price = excluded.liquidation_price,
			notional = excluded.notional
	`,
		p.ID, p.UserID, p.Venue, p.MarketID, p.OutcomeID, p.Side,
		p.Size, p.AvgEntryPrice, p.CurrentPrice, toMillis(p.OpenedAt), toMillis(p.UpdatedAt),
		p.Leverage, string(p.MarginMode), p.LiquidationPrice, p.Notional,
	)
	if err != nil {
		return fmt.Errorf("sqlite: upsert position %s: %w", p.ID, err)
	}
	return nil
}

func (s *PositionStore) GetOpen(ctx context.Context, userID string) ([]domain.Position, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+positionSelectCols+` FROM positions WHERE user_id = ? ORDER BY opened_at DESC`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: get open positions for %s: %w", userID, err)
	}
	defer rows.Close()
	return scanPositionRows(rows)
}

// ListHistory is reserved for a future closed-position ledger; today's
// positions table only tracks the current open snapshot per leg, so this
// returns the same rows GetOpen does, filtered by ListOpts.
func (s *PositionStore) ListHistory(ctx context.Context, userID string, opts domain.ListOpts) ([]domain.Position, error) {
	query := `SELECT ` + positionSelectCols + ` FROM positions WHERE user_id = ?`
	args := []any{userID}

	if opts.Since != nil {
		query += ` AND opened_at >= ?`
		args = append(args, toMillis(*opts.Since))
	}
	if opts.Until != nil {
		query += ` AND opened_at <= ?`
		args = append(args, toMillis(*opts.Until))
	}
	query += ` ORDER BY opened_at DESC`
	if opts.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, opts.Limit)
		if opts.Offset > 0 {
			query += ` OFFSET ?`
			args = append(args, opts.Offset)
		}
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list position history for %s: %w", userID, err)
	}
	defer rows.Close()
	return scanPositionRows(rows)
}

func (s *PositionStore) Delete(ctx context.Context, userID, venue, marketID, outcomeID string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM positions WHERE user_id = ? AND venue = ? AND market_id = ? AND outcome_id = ?`,
		userID, venue, marketID, outcomeID)
	if err != nil {
		return fmt.Errorf("sqlite: delete position %s/%s/%s/%s: %w", userID, venue, marketID, outcomeID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *PositionStore) DeleteAllForUser(ctx context.Context, userID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM positions WHERE user_id = ?`, userID)
	if err != nil {
		return fmt.Errorf("sqlite: delete all positions for %s: %w", userID, err)
	}
	return nil
}
