// Package sqlite implements the domain store interfaces on top of an
// embedded modernc.org/sqlite database, replacing the teacher's Postgres
// store: a single operator-owned file needs no external server, and
// VACUUM INTO gives the backup job a point-in-time copy for free.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// Client wraps the single *sql.DB connection used across every store. SQLite
// serializes writers regardless, but we still funnel multi-statement
// sequences (schema init, backups) through writeMu so a backup never races a
// migration.
type Client struct {
	db      *sql.DB
	path    string
	writeMu sync.Mutex
}

// Open creates the database directory if needed, opens a WAL-mode
// connection, and applies the schema. dbPath is a filesystem path, e.g.
// "./data/venuecore.db".
func Open(ctx context.Context, dbPath string) (*Client, error) {
	dir := filepath.Dir(dbPath)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("sqlite: create data dir %s: %w", dir, err)
		}
	}

	dsn := dbPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %s: %w", dbPath, err)
	}
	// A single writer connection avoids SQLITE_BUSY storms under WAL; reads
	// still proceed concurrently against the same handle.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: ping %s: %w", dbPath, err)
	}

	c := &Client{db: db, path: dbPath}
	if err := c.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return c, nil
}

// DB returns the underlying *sql.DB for store constructors.
func (c *Client) DB() *sql.DB { return c.db }

// Path returns the filesystem path the database was opened from.
func (c *Client) Path() string { return c.path }

// Close releases the connection.
func (c *Client) Close() error { return c.db.Close() }

// migrate applies schemaStatements and any additive ALTERs, then records
// schemaVersion in _schema_version. Every statement is independently
// idempotent, so this is safe to call on every startup.
func (c *Client) migrate(ctx context.Context) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin migration tx: %w", err)
	}
	defer tx.Rollback()

	for i, stmt := range schemaStatements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("sqlite: apply schema statement %d: %w", i, err)
		}
	}
	for _, m := range additiveMigrations {
		if err := m(ctx, tx); err != nil {
			return fmt.Errorf("sqlite: apply migration: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO _schema_version (id, version) VALUES (1, ?)
		ON CONFLICT(id) DO UPDATE SET version = excluded.version
	`, schemaVersion); err != nil {
		return fmt.Errorf("sqlite: record schema version: %w", err)
	}

	return tx.Commit()
}

// Backup writes a consistent point-in-time copy of the database to destPath
// using SQLite's VACUUM INTO, which is safe to run against a live WAL-mode
// database without blocking readers for long.
func (c *Client) Backup(ctx context.Context, destPath string) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return fmt.Errorf("sqlite: create backup dir: %w", err)
	}
	// VACUUM INTO refuses to overwrite an existing file.
	_ = os.Remove(destPath)

	if _, err := c.db.ExecContext(ctx, `VACUUM INTO ?`, destPath); err != nil {
		return fmt.Errorf("sqlite: vacuum into %s: %w", destPath, err)
	}
	return nil
}

// BackupFilename returns a sortable backup filename stamped with at, so
// pruning orders by the name itself rather than filesystem mtime (which
// clock skew or a restored copy can make unreliable).
func BackupFilename(at time.Time) string {
	return fmt.Sprintf("venuecore-%s.db", at.UTC().Format("20060102T150405Z"))
}
