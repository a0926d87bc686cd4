// Package storage opens the embedded database and applies the schema.
//
// The service is single-node: users, the schema configuration, and uploaded
// dataset bytes all live in one sqlite file next to the binary. The dataset
// itself is served from memory; sqlite only makes state survive restarts.
package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

const schemaDDL = `
CREATE TABLE IF NOT EXISTS users (
	username      TEXT PRIMARY KEY,
	password_hash TEXT NOT NULL,
	role          TEXT NOT NULL,
	created_at    TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS app_config (
	id                SMALLINT PRIMARY KEY CHECK (id = 1),
	identifier_column TEXT NOT NULL DEFAULT '',
	date_column       TEXT NOT NULL DEFAULT '',
	visible_columns   TEXT NOT NULL DEFAULT '[]',
	updated_at        TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS datasets (
	id           TEXT PRIMARY KEY,
	filename     TEXT NOT NULL,
	size         INTEGER NOT NULL,
	column_count INTEGER NOT NULL,
	row_count    INTEGER NOT NULL,
	data         BLOB NOT NULL,
	active       INTEGER NOT NULL DEFAULT 0,
	uploaded_at  TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_datasets_uploaded_at ON datasets (uploaded_at DESC);
`

// Open opens (creating if needed) the sqlite database at path and ensures
// the schema exists. The parent directory is created when missing.
func Open(path string) (*sql.DB, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// A single writer keeps sqlite happy under concurrent handlers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schemaDDL); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return db, nil
}
