package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/agenthub/venuecore/internal/domain"
)

// AlertStore implements domain.AlertStore over SQLite.
type AlertStore struct {
	db *sql.DB
}

func NewAlertStore(c *Client) *AlertStore {
	return &AlertStore{db: c.DB()}
}

const alertSelectCols = `id, user_id, kind, condition, enabled, triggered,
	trigger_count, channel, chat_id, created_at, last_triggered_at`

func scanAlertRow(row *sql.Row) (domain.Alert, error) {
	var a domain.Alert
	var kind, conditionJSON string
	var enabled, triggered int
	var createdAt int64
	var lastTriggeredAt *int64

	err := row.Scan(&a.ID, &a.UserID, &kind, &conditionJSON, &enabled, &triggered,
		&a.TriggerCount, &a.Channel, &a.ChatID, &createdAt, &lastTriggeredAt)
	if err != nil {
		return domain.Alert{}, err
	}
	a.Kind = domain.AlertKind(kind)
	if err := decodeJSON(conditionJSON, &a.Condition); err != nil {
		return domain.Alert{}, err
	}
	a.Enabled = enabled != 0
	a.Triggered = triggered != 0
	a.CreatedAt = fromMillis(createdAt)
	a.LastTriggeredAt = fromMillisPtr(lastTriggeredAt)
	return a, nil
}

func scanAlertRows(rows *sql.Rows) ([]domain.Alert, error) {
	var out []domain.Alert
	for rows.Next() {
		var a domain.Alert
		var kind, conditionJSON string
		var enabled, triggered int
		var createdAt int64
		var lastTriggeredAt *int64

		if err := rows.Scan(&a.ID, &a.UserID, &kind, &conditionJSON, &enabled, &triggered,
			&a.TriggerCount, &a.Channel, &a.ChatID, &createdAt, &lastTriggeredAt); err != nil {
			return nil, err
		}
		a.Kind = domain.AlertKind(kind)
		if err := decodeJSON(conditionJSON, &a.Condition); err != nil {
			return nil, err
		}
		a.Enabled = enabled != 0
		a.Triggered = triggered != 0
		a.CreatedAt = fromMillis(createdAt)
		a.LastTriggeredAt = fromMillisPtr(lastTriggeredAt)
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *AlertStore) Upsert(ctx context.Context, a domain.Alert) error {
	conditionJSON, err := encodeJSON(a.Condition)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO alerts (
			id, user_id, kind, condition, enabled, triggered, trigger_count,
			channel, chat_id, created_at, last_triggered_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			kind = excluded.kind,
			condition = excluded.condition,
			enabled = excluded.enabled,
			triggered = excluded.triggered,
			trigger_count = excluded.trigger_count,
			channel = excluded.channel,
			chat_id = excluded.chat_id,
			last_triggered_at = excluded.last_triggered_at
	`, a.ID, a.UserID, string(a.Kind), conditionJSON, boolInt(a.Enabled), boolInt(a.Triggered),
		a.TriggerCount, a.Channel, a.ChatID, toMillis(a.CreatedAt), toMillisPtr(a.LastTriggeredAt))
	if err != nil {
		return fmt.Errorf("sqlite: upsert alert %s: %w", a.ID, err)
	}
	return nil
}

func (s *AlertStore) Get(ctx context.Context, id string) (domain.Alert, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+alertSelectCols+` FROM alerts WHERE id = ?`, id)
	a, err := scanAlertRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Alert{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Alert{}, fmt.Errorf("sqlite: get alert %s: %w", id, err)
	}
	return a, nil
}

// ListEnabledForMarket returns enabled alerts whose condition names this
// (venue, marketID) pair, for the ArbitrageEngine/quote-tick evaluator.
func (s *AlertStore) ListEnabledForMarket(ctx context.Context, venue, marketID string) ([]domain.Alert, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+alertSelectCols+` FROM alerts
		WHERE enabled = 1
		  AND json_extract(condition, '$.Venue') = ?
		  AND json_extract(condition, '$.MarketID') = ?
	`, venue, marketID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list alerts for market %s/%s: %w", venue, marketID, err)
	}
	defer rows.Close()
	return scanAlertRows(rows)
}

func (s *AlertStore) ListByUser(ctx context.Context, userID string) ([]domain.Alert, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+alertSelectCols+` FROM alerts WHERE user_id = ?`, userID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list alerts for user %s: %w", userID, err)
	}
	defer rows.Close()
	return scanAlertRows(rows)
}

func (s *AlertStore) RecordTrigger(ctx context.Context, id string, at time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE alerts SET triggered = 1, trigger_count = trigger_count + 1, last_triggered_at = ?
		WHERE id = ?`, toMillis(at), id)
	if err != nil {
		return fmt.Errorf("sqlite: record alert trigger %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *AlertStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM alerts WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: delete alert %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	return nil
}
