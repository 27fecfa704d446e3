// Package db provides the SQLite-backed subscriber store. The database is
// a single local file opened through the pure-Go sqlite driver; schema
// creation and column migrations run automatically at startup.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"

	"foreversister/internal/types"
)

// Open opens (creating if necessary) the SQLite database at path and runs
// migrations. The parent directory is created when missing.
func Open(ctx context.Context, path string) (*sql.DB, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to create database directory", err)
		}
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to open database", err)
	}

	// The driver is file-backed; a single writer avoids SQLITE_BUSY under
	// concurrent API and scheduler access.
	conn.SetMaxOpenConns(1)

	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to ping database", err)
	}

	if err := migrate(ctx, conn); err != nil {
		conn.Close()
		return nil, err
	}
	return conn, nil
}

// migrate creates the subscribers table and applies additive column
// migrations for databases created by older versions.
func migrate(ctx context.Context, conn *sql.DB) error {
	_, err := conn.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS subscribers (
			email       TEXT PRIMARY KEY,
			frequency   INTEGER NOT NULL,
			salutation  INTEGER NOT NULL DEFAULT 0,
			birth_year  INTEGER,
			birth_month INTEGER,
			birth_day   INTEGER
		)`)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to create schema", err)
	}

	// Older databases predate the salutation and birthday columns. SQLite
	// has no ADD COLUMN IF NOT EXISTS, so probe the table info.
	existing, err := columnSet(ctx, conn, "subscribers")
	if err != nil {
		return err
	}
	additive := []struct {
		name string
		ddl  string
	}{
		{"salutation", "ALTER TABLE subscribers ADD COLUMN salutation INTEGER NOT NULL DEFAULT 0"},
		{"birth_year", "ALTER TABLE subscribers ADD COLUMN birth_year INTEGER"},
		{"birth_month", "ALTER TABLE subscribers ADD COLUMN birth_month INTEGER"},
		{"birth_day", "ALTER TABLE subscribers ADD COLUMN birth_day INTEGER"},
	}
	for _, col := range additive {
		if existing[col.name] {
			continue
		}
		if _, err := conn.ExecContext(ctx, col.ddl); err != nil {
			return types.NewAppError(types.ErrCodeInternalDB,
				fmt.Sprintf("failed to add column %s", col.name), err)
		}
	}
	return nil
}

// columnSet returns the set of column names present on table.
func columnSet(ctx context.Context, conn *sql.DB, table string) (map[string]bool, error) {
	rows, err := conn.QueryContext(ctx, "PRAGMA table_info("+table+")")
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to inspect schema", err)
	}
	defer rows.Close()

	cols := make(map[string]bool)
	for rows.Next() {
		var (
			cid        int
			name, typ  string
			notNull    int
			defaultVal sql.NullString
			pk         int
		)
		if err := rows.Scan(&cid, &name, &typ, &notNull, &defaultVal, &pk); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to inspect schema", err)
		}
		cols[strings.ToLower(name)] = true
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to inspect schema", err)
	}
	return cols, nil
}
