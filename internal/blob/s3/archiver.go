package s3blob

import (
	"context"
	"fmt"
	"os"
)

// BackupArchiver uploads the Store's local SQLite backup file to an
// S3-compatible bucket as an optional off-box copy, grounded on the
// teacher's ArchiveImpl (query-serialize-upload) and aristath/sentinel's
// R2 backup service, simplified per SPEC_FULL.md §4.1: the source here is
// already a single backup file rather than several per-table JSONL
// archives, so there is nothing to query or serialize — only to upload.
type BackupArchiver struct {
	writer *Writer
}

// NewBackupArchiver creates a BackupArchiver over writer's configured bucket.
func NewBackupArchiver(writer *Writer) *BackupArchiver {
	return &BackupArchiver{writer: writer}
}

// Archive uploads the backup file at localPath to "backups/<basename>" in
// the configured bucket.
func (a *BackupArchiver) Archive(ctx context.Context, localPath string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("s3blob: open backup %s: %w", localPath, err)
	}
	defer f.Close()

	key := "backups/" + baseName(localPath)
	if err := a.writer.Put(ctx, key, f, "application/x-sqlite3"); err != nil {
		return fmt.Errorf("s3blob: archive backup %s: %w", localPath, err)
	}
	return nil
}

func baseName(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' || path[i] == '\\' {
			return path[i+1:]
		}
	}
	return path
}
