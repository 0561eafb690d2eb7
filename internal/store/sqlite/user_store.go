package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/agenthub/venuecore/internal/domain"
)

// UserStore implements domain.UserStore over SQLite.
type UserStore struct {
	db *sql.DB
}

func NewUserStore(c *Client) *UserStore {
	return &UserStore{db: c.DB()}
}

func scanUser(row *sql.Row) (domain.User, error) {
	var u domain.User
	var settingsJSON string
	var createdAt, updatedAt int64

	if err := row.Scan(&u.ID, &u.ExternalPlatformID, &settingsJSON, &createdAt, &updatedAt); err != nil {
		return domain.User{}, err
	}
	u.Settings = map[string]string{}
	if err := decodeJSON(settingsJSON, &u.Settings); err != nil {
		return domain.User{}, err
	}
	u.CreatedAt = fromMillis(createdAt)
	u.UpdatedAt = fromMillis(updatedAt)
	return u, nil
}

// GetOrCreate returns the existing user for externalPlatformID, or creates
// one with a fresh ID if none exists yet.
func (s *UserStore) GetOrCreate(ctx context.Context, externalPlatformID string) (domain.User, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, external_platform_id, settings, created_at, updated_at
		 FROM users WHERE external_platform_id = ?`, externalPlatformID)
	u, err := scanUser(row)
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return domain.User{}, fmt.Errorf("sqlite: get user: %w", err)
	}

	now := time.Now().UTC()
	u = domain.User{
		ID:                 uuid.NewString(),
		ExternalPlatformID: externalPlatformID,
		Settings:           map[string]string{},
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	settingsJSON, err := encodeJSON(u.Settings)
	if err != nil {
		return domain.User{}, err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO users (id, external_platform_id, settings, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?)`,
		u.ID, u.ExternalPlatformID, settingsJSON, toMillis(now), toMillis(now))
	if err != nil {
		return domain.User{}, fmt.Errorf("sqlite: create user: %w", err)
	}
	return u, nil
}

func (s *UserStore) GetByID(ctx context.Context, id string) (domain.User, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, external_platform_id, settings, created_at, updated_at
		 FROM users WHERE id = ?`, id)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.User{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.User{}, fmt.Errorf("sqlite: get user %s: %w", id, err)
	}
	return u, nil
}

// List returns every user, used by scheduled jobs that fan out per-user
// work (portfolio snapshots, session pruning).
func (s *UserStore) List(ctx context.Context) ([]domain.User, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, external_platform_id, settings, created_at, updated_at FROM users`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list users: %w", err)
	}
	defer rows.Close()

	var out []domain.User
	for rows.Next() {
		var u domain.User
		var settingsJSON string
		var createdAt, updatedAt int64
		if err := rows.Scan(&u.ID, &u.ExternalPlatformID, &settingsJSON, &createdAt, &updatedAt); err != nil {
			return nil, err
		}
		u.Settings = map[string]string{}
		if err := decodeJSON(settingsJSON, &u.Settings); err != nil {
			return nil, err
		}
		u.CreatedAt = fromMillis(createdAt)
		u.UpdatedAt = fromMillis(updatedAt)
		out = append(out, u)
	}
	return out, rows.Err()
}

func (s *UserStore) UpdateSettings(ctx context.Context, id string, settings map[string]string) error {
	settingsJSON, err := encodeJSON(settings)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET settings = ?, updated_at = ? WHERE id = ?`,
		settingsJSON, toMillis(time.Now().UTC()), id)
	if err != nil {
		return fmt.Errorf("sqlite: update user settings %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *UserStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: delete user %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}
