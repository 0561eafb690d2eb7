package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/agenthub/venuecore/internal/config"
	"github.com/agenthub/venuecore/internal/store/sqlite"
)

func newTestScheduler(t *testing.T, cfg config.SchedulerConfig) (*Scheduler, *sqlite.JobStore) {
	t.Helper()
	dir := t.TempDir()
	c, err := sqlite.Open(context.Background(), filepath.Join(dir, "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	store := sqlite.NewJobStore(c)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(store, cfg, logger), store
}

func TestRegisterPersistsJobSpec(t *testing.T) {
	s, store := newTestScheduler(t, config.SchedulerConfig{})
	ctx := context.Background()

	require.NoError(t, s.Register(ctx, "portfolio.snapshot", "@every 1h", func(context.Context) error { return nil }))

	jobs, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	require.Equal(t, "portfolio.snapshot", jobs[0].ID)
	require.Equal(t, "@every 1h", jobs[0].CronSpec)
	require.True(t, jobs[0].Enabled)
	require.Nil(t, jobs[0].LastRunAt)
}

func TestRegisterRejectsInvalidCronSpec(t *testing.T) {
	s, _ := newTestScheduler(t, config.SchedulerConfig{})
	err := s.Register(context.Background(), "bad.job", "not a cron spec", func(context.Context) error { return nil })
	require.Error(t, err)
}

func TestRunNowRecordsSuccessResult(t *testing.T) {
	s, store := newTestScheduler(t, config.SchedulerConfig{DeadlineSeconds: 5})
	ctx := context.Background()
	require.NoError(t, s.Register(ctx, "history.sync", "@every 1h", func(context.Context) error { return nil }))

	var ran bool
	s.RunNow("history.sync", func(context.Context) error {
		ran = true
		return nil
	})
	require.True(t, ran)

	jobs, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	require.Equal(t, "ok", jobs[0].LastResult)
	require.NotNil(t, jobs[0].LastRunAt)
}

func TestRunNowRecordsFailureResult(t *testing.T) {
	s, store := newTestScheduler(t, config.SchedulerConfig{DeadlineSeconds: 5})
	ctx := context.Background()
	require.NoError(t, s.Register(ctx, "db.backup", "@every 1h", func(context.Context) error { return nil }))

	s.RunNow("db.backup", func(context.Context) error {
		return errors.New("disk full")
	})

	jobs, err := store.List(ctx)
	require.NoError(t, err)
	require.Equal(t, "disk full", jobs[0].LastResult)
}

func TestStopReturnsPromptlyWithNoJobsRunning(t *testing.T) {
	s, _ := newTestScheduler(t, config.SchedulerConfig{})
	s.Start()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))
}
