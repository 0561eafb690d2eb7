package sqlite

import (
	"context"
	"database/sql"
	"strings"
)

// migration applies one additive schema change inside the shared migration
// transaction. New columns are added here, guarded against already having
// been applied, rather than by editing schema.go's CREATE TABLE statements.
type migration func(ctx context.Context, tx *sql.Tx) error

// additiveMigrations runs after schemaStatements on every startup. It is
// currently empty: schema.go's initial CREATE TABLE set already matches
// version 1. Future additive columns append a guarded ALTER here and bump
// schemaVersion in schema.go.
var additiveMigrations = []migration{}

// addColumnIfMissing is the guard future migrations should use: ALTER TABLE
// ADD COLUMN has no IF NOT EXISTS form in SQLite, so we check pragma
// table_info first.
func addColumnIfMissing(ctx context.Context, tx *sql.Tx, table, column, ddl string) error {
	rows, err := tx.QueryContext(ctx, `SELECT name FROM pragma_table_info(?)`, table)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return err
		}
		if strings.EqualFold(name, column) {
			return rows.Err()
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `ALTER TABLE `+table+` ADD COLUMN `+column+` `+ddl)
	return err
}
