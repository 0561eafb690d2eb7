// Package store provides the Store.backupNow orchestration that sits above
// the sqlite.Client's raw VACUUM INTO: stamping a sortable filename,
// uploading the copy off-box when S3 archiving is configured, and pruning
// local backups beyond the configured retention count, generalizing the
// teacher's internal/pipeline.Archiver retention-cutoff shape from
// row-level archiving to whole-file backup pruning.
package store

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/agenthub/venuecore/internal/store/sqlite"
)

// Backuper is the subset of *sqlite.Client the backup service needs, kept
// as an interface so tests can substitute a fake without touching a real
// database file.
type Backuper interface {
	Backup(ctx context.Context, destPath string) error
}

// Archiver uploads a local backup file to off-box storage. A nil Archiver
// disables off-box archiving.
type Archiver interface {
	Archive(ctx context.Context, localPath string) error
}

// BackupService runs the "db.backup" scheduled job: snapshot, optional
// off-box archive, local retention prune.
type BackupService struct {
	db        Backuper
	dir       string
	retention int
	archiver  Archiver
	logger    *slog.Logger
}

// NewBackupService creates a BackupService. archiver may be nil.
func NewBackupService(db Backuper, dir string, retention int, archiver Archiver, logger *slog.Logger) *BackupService {
	return &BackupService{
		db:        db,
		dir:       dir,
		retention: retention,
		archiver:  archiver,
		logger:    logger.With(slog.String("component", "backup")),
	}
}

// Run performs one backup cycle: VACUUM INTO a new timestamped file,
// archive it off-box if configured, then prune local backups beyond
// retention. An archive failure is logged but does not fail the run — the
// local copy still exists and counts toward retention.
func (b *BackupService) Run(ctx context.Context) error {
	path := filepath.Join(b.dir, sqlite.BackupFilename(time.Now()))
	if err := b.db.Backup(ctx, path); err != nil {
		return fmt.Errorf("store: backup run: %w", err)
	}
	b.logger.Info("backup written", slog.String("path", path))

	if b.archiver != nil {
		if err := b.archiver.Archive(ctx, path); err != nil {
			b.logger.Error("backup archive failed", slog.String("path", path), slog.String("error", err.Error()))
		}
	}

	pruned, err := b.prune()
	if err != nil {
		return fmt.Errorf("store: prune backups: %w", err)
	}
	if pruned > 0 {
		b.logger.Info("pruned old backups", slog.Int("count", pruned))
	}
	return nil
}

// prune keeps the retention-most-recent "venuecore-*.db" files in dir,
// ordered by filename — BackupFilename embeds the UTC timestamp so
// lexicographic order is chronological order, sidestepping filesystem mtime
// ambiguity across restores.
func (b *BackupService) prune() (int, error) {
	entries, err := os.ReadDir(b.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		n := e.Name()
		if strings.HasPrefix(n, "venuecore-") && strings.HasSuffix(n, ".db") {
			names = append(names, n)
		}
	}
	sort.Strings(names)

	if len(names) <= b.retention {
		return 0, nil
	}
	toRemove := names[:len(names)-b.retention]
	for _, n := range toRemove {
		if err := os.Remove(filepath.Join(b.dir, n)); err != nil && !os.IsNotExist(err) {
			return 0, fmt.Errorf("remove %s: %w", n, err)
		}
	}
	return len(toRemove), nil
}
