package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/agenthub/venuecore/internal/domain"
)

// JobStore implements domain.JobStore over SQLite, persisting the
// Scheduler's job registry so LastRunAt/LastResult survive a restart.
type JobStore struct {
	db *sql.DB
}

func NewJobStore(c *Client) *JobStore {
	return &JobStore{db: c.DB()}
}

func (s *JobStore) Upsert(ctx context.Context, j domain.ScheduledJob) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO scheduled_jobs (id, cron_spec, enabled, last_run_at, last_result)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			cron_spec = excluded.cron_spec,
			enabled = excluded.enabled
	`, j.ID, j.CronSpec, boolInt(j.Enabled), toMillisPtr(j.LastRunAt), j.LastResult)
	if err != nil {
		return fmt.Errorf("sqlite: upsert scheduled job %s: %w", j.ID, err)
	}
	return nil
}

func (s *JobStore) List(ctx context.Context) ([]domain.ScheduledJob, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, cron_spec, enabled, last_run_at, last_result FROM scheduled_jobs`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list scheduled jobs: %w", err)
	}
	defer rows.Close()

	var out []domain.ScheduledJob
	for rows.Next() {
		var j domain.ScheduledJob
		var enabled int
		var lastRunAt *int64
		if err := rows.Scan(&j.ID, &j.CronSpec, &enabled, &lastRunAt, &j.LastResult); err != nil {
			return nil, err
		}
		j.Enabled = enabled != 0
		j.LastRunAt = fromMillisPtr(lastRunAt)
		out = append(out, j)
	}
	return out, rows.Err()
}

func (s *JobStore) RecordRun(ctx context.Context, id string, ranAt time.Time, result string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE scheduled_jobs SET last_run_at = ?, last_result = ? WHERE id = ?`,
		toMillis(ranAt), result, id)
	if err != nil {
		return fmt.Errorf("sqlite: record job run %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	return nil
}
