package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/agenthub/venuecore/internal/domain"
)

// SnapshotStore implements domain.SnapshotStore over SQLite.
type SnapshotStore struct {
	db *sql.DB
}

func NewSnapshotStore(c *Client) *SnapshotStore {
	return &SnapshotStore{db: c.DB()}
}

func (s *SnapshotStore) Insert(ctx context.Context, snap domain.PortfolioSnapshot) error {
	breakdownJSON, err := encodeJSON(snap.PerVenueBreakdown)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO portfolio_snapshots (
			user_id, total_value, total_pnl, total_pnl_pct, total_cost_basis,
			positions_count, per_venue_breakdown, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		snap.UserID, snap.TotalValue, snap.TotalPnl, snap.TotalPnlPct, snap.TotalCostBasis,
		snap.PositionsCount, breakdownJSON, toMillis(snap.CreatedAt))
	if err != nil {
		return fmt.Errorf("sqlite: insert snapshot for %s: %w", snap.UserID, err)
	}
	return nil
}

func (s *SnapshotStore) ListByUser(ctx context.Context, userID string, opts domain.ListOpts) ([]domain.PortfolioSnapshot, error) {
	query := `SELECT id, user_id, total_value, total_pnl, total_pnl_pct, total_cost_basis,
		positions_count, per_venue_breakdown, created_at FROM portfolio_snapshots WHERE user_id = ?`
	args := []any{userID}
	query, args = appendListOpts(query, args, "created_at", opts)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list snapshots for %s: %w", userID, err)
	}
	defer rows.Close()

	var out []domain.PortfolioSnapshot
	for rows.Next() {
		var snap domain.PortfolioSnapshot
		var breakdownJSON string
		var createdAt int64
		if err := rows.Scan(&snap.ID, &snap.UserID, &snap.TotalValue, &snap.TotalPnl,
			&snap.TotalPnlPct, &snap.TotalCostBasis, &snap.PositionsCount, &breakdownJSON, &createdAt); err != nil {
			return nil, err
		}
		snap.PerVenueBreakdown = map[string]domain.VenueBreakdown{}
		if err := decodeJSON(breakdownJSON, &snap.PerVenueBreakdown); err != nil {
			return nil, err
		}
		snap.CreatedAt = fromMillis(createdAt)
		out = append(out, snap)
	}
	return out, rows.Err()
}

func (s *SnapshotStore) DeleteBefore(ctx context.Context, userID string, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM portfolio_snapshots WHERE user_id = ? AND created_at < ?`,
		userID, toMillis(before))
	if err != nil {
		return 0, fmt.Errorf("sqlite: delete snapshots before for %s: %w", userID, err)
	}
	return res.RowsAffected()
}
