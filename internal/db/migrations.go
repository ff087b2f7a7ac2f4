package db

import (
	"database/sql"
	"fmt"
)

// migrations is a list of SQL statements applied in order after schema creation.
// Each migration must be idempotent. Append new migrations at the end.
var migrations = []string{
	// Migration 1: Replace the partial unique index on items.code with a
	// full one. A soft-deleted item still owns its image directory, so its
	// code stays reserved until the item is purged.
	`DROP INDEX IF EXISTS idx_items_code_active`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_items_code ON items(code)`,
}

// Migrate runs the database schema migrations.
func Migrate(db *sql.DB) error {
	_, err := db.Exec(schema)
	if err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	for i, m := range migrations {
		if _, err := db.Exec(m); err != nil {
			return fmt.Errorf("running migration %d: %w", i+1, err)
		}
	}

	return nil
}
