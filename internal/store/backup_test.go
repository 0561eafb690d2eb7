package store

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeBackuper struct {
	calls []string
}

func (f *fakeBackuper) Backup(_ context.Context, destPath string) error {
	f.calls = append(f.calls, destPath)
	return os.WriteFile(destPath, []byte("snapshot"), 0o644)
}

type fakeArchiver struct {
	archived []string
	fail     bool
}

func (f *fakeArchiver) Archive(_ context.Context, localPath string) error {
	if f.fail {
		return context.DeadlineExceeded
	}
	f.archived = append(f.archived, localPath)
	return nil
}

func newTestService(t *testing.T, retention int, archiver Archiver) (*BackupService, *fakeBackuper, string) {
	t.Helper()
	dir := t.TempDir()
	fb := &fakeBackuper{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewBackupService(fb, dir, retention, archiver, logger), fb, dir
}

func TestRunWritesBackupAndArchives(t *testing.T) {
	arch := &fakeArchiver{}
	s, fb, dir := newTestService(t, 3, arch)

	require.NoError(t, s.Run(context.Background()))
	require.Len(t, fb.calls, 1)
	require.Len(t, arch.archived, 1)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestRunSucceedsWhenArchiveFails(t *testing.T) {
	arch := &fakeArchiver{fail: true}
	s, _, dir := newTestService(t, 3, arch)

	require.NoError(t, s.Run(context.Background()))
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestPruneKeepsOnlyRetentionMostRecent(t *testing.T) {
	s, _, dir := newTestService(t, 2, nil)

	names := []string{
		"venuecore-20260101T000000Z.db",
		"venuecore-20260102T000000Z.db",
		"venuecore-20260103T000000Z.db",
		"venuecore-20260104T000000Z.db",
	}
	for _, n := range names {
		require.NoError(t, os.WriteFile(filepath.Join(dir, n), []byte("x"), 0o644))
	}

	pruned, err := s.prune()
	require.NoError(t, err)
	require.Equal(t, 2, pruned)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	var remaining []string
	for _, e := range entries {
		remaining = append(remaining, e.Name())
	}
	require.ElementsMatch(t, []string{names[2], names[3]}, remaining)
}

func TestPruneIgnoresUnrelatedFiles(t *testing.T) {
	s, _, dir := newTestService(t, 1, nil)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "venuecore-20260101T000000Z.db"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "readme.txt"), []byte("x"), 0o644))

	pruned, err := s.prune()
	require.NoError(t, err)
	require.Equal(t, 0, pruned)
}
