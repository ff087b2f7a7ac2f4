package store

import (
	"context"
	"database/sql"
)

// DBTX is the subset of database operations the store needs. Both *sql.DB
// and *sql.Tx satisfy it, so every write operation can run inside an
// externally managed transaction; no store function ever commits on its own.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// nullable converts an empty string to NULL for optional text columns.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
