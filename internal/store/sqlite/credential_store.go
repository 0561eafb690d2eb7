package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/agenthub/venuecore/internal/domain"
)

// CredentialStore implements domain.CredentialStore over SQLite.
type CredentialStore struct {
	db *sql.DB
}

func NewCredentialStore(c *Client) *CredentialStore {
	return &CredentialStore{db: c.DB()}
}

const credentialSelectCols = `user_id, venue, mode, encrypted_blob, enabled,
	last_used_at, failed_attempts, cooldown_until, created_at, updated_at`

func scanCredentialRow(row *sql.Row) (domain.TradingCredential, error) {
	var c domain.TradingCredential
	var mode string
	var enabled int
	var lastUsedAt, cooldownUntil *int64
	var createdAt, updatedAt int64

	err := row.Scan(&c.UserID, &c.Venue, &mode, &c.EncryptedBlob, &enabled,
		&lastUsedAt, &c.FailedAttempts, &cooldownUntil, &createdAt, &updatedAt)
	if err != nil {
		return domain.TradingCredential{}, err
	}
	c.Mode = domain.CredentialMode(mode)
	c.Enabled = enabled != 0
	c.LastUsedAt = fromMillisPtr(lastUsedAt)
	c.CooldownUntil = fromMillisPtr(cooldownUntil)
	c.CreatedAt = fromMillis(createdAt)
	c.UpdatedAt = fromMillis(updatedAt)
	return c, nil
}

func scanCredentialRows(rows *sql.Rows) ([]domain.TradingCredential, error) {
	var out []domain.TradingCredential
	for rows.Next() {
		var c domain.TradingCredential
		var mode string
		var enabled int
		var lastUsedAt, cooldownUntil *int64
		var createdAt, updatedAt int64

		if err := rows.Scan(&c.UserID, &c.Venue, &mode, &c.EncryptedBlob, &enabled,
			&lastUsedAt, &c.FailedAttempts, &cooldownUntil, &createdAt, &updatedAt); err != nil {
			return nil, err
		}
		c.Mode = domain.CredentialMode(mode)
		c.Enabled = enabled != 0
		c.LastUsedAt = fromMillisPtr(lastUsedAt)
		c.CooldownUntil = fromMillisPtr(cooldownUntil)
		c.CreatedAt = fromMillis(createdAt)
		c.UpdatedAt = fromMillis(updatedAt)
		out = append(out, c)
	}
	return out, rows.Err()
}

// Upsert inserts or replaces the credential for (userID, venue).
func (s *CredentialStore) Upsert(ctx context.Context, c domain.TradingCredential) error {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO trading_credentials (
			user_id, venue, mode, encrypted_blob, enabled,
			last_used_at, failed_attempts, cooldown_until, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id, venue) DO UPDATE SET
			mode = excluded.mode,
			encrypted_blob = excluded.encrypted_blob,
			enabled = excluded.enabled,
			last_used_at = excluded.last_used_at,
			failed_attempts = excluded.failed_attempts,
			cooldown_until = excluded.cooldown_until,
			updated_at = excluded.updated_at
	`,
		c.UserID, c.Venue, string(c.Mode), c.EncryptedBlob, boolInt(c.Enabled),
		toMillisPtr(c.LastUsedAt), c.FailedAttempts, toMillisPtr(c.CooldownUntil),
		toMillis(now), toMillis(now))
	if err != nil {
		return fmt.Errorf("sqlite: upsert credential %s/%s: %w", c.UserID, c.Venue, err)
	}
	return nil
}

func (s *CredentialStore) Get(ctx context.Context, userID, venue string) (domain.TradingCredential, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+credentialSelectCols+` FROM trading_credentials WHERE user_id = ? AND venue = ?`,
		userID, venue)
	c, err := scanCredentialRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.TradingCredential{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.TradingCredential{}, fmt.Errorf("sqlite: get credential %s/%s: %w", userID, venue, err)
	}
	return c, nil
}

func (s *CredentialStore) ListEnabled(ctx context.Context, userID string) ([]domain.TradingCredential, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+credentialSelectCols+` FROM trading_credentials WHERE user_id = ? AND enabled = 1`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list enabled credentials for %s: %w", userID, err)
	}
	defer rows.Close()
	return scanCredentialRows(rows)
}

func (s *CredentialStore) RecordFailure(ctx context.Context, userID, venue string, cooldownUntil *time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE trading_credentials SET
			failed_attempts = failed_attempts + 1,
			cooldown_until = ?,
			updated_at = ?
		WHERE user_id = ? AND venue = ?`,
		toMillisPtr(cooldownUntil), toMillis(time.Now().UTC()), userID, venue)
	if err != nil {
		return fmt.Errorf("sqlite: record credential failure %s/%s: %w", userID, venue, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *CredentialStore) RecordSuccess(ctx context.Context, userID, venue string) error {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `
		UPDATE trading_credentials SET
			failed_attempts = 0,
			cooldown_until = NULL,
			last_used_at = ?,
			updated_at = ?
		WHERE user_id = ? AND venue = ?`,
		toMillis(now), toMillis(now), userID, venue)
	if err != nil {
		return fmt.Errorf("sqlite: record credential success %s/%s: %w", userID, venue, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *CredentialStore) SetEnabled(ctx context.Context, userID, venue string, enabled bool) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE trading_credentials SET enabled = ?, updated_at = ? WHERE user_id = ? AND venue = ?`,
		boolInt(enabled), toMillis(time.Now().UTC()), userID, venue)
	if err != nil {
		return fmt.Errorf("sqlite: set credential enabled %s/%s: %w", userID, venue, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
