// Package schema holds the admin-selected column mapping: which dataset
// column identifies a person, which holds the record date, and which
// columns end users may see.
//
// The mapping lives independently of the dataset. An upload can remove a
// column the mapping still names; queries tolerate that instead of failing,
// so validation happens only when the mapping is written.
package schema

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// Config is the column mapping. An empty VisibleColumns list means every
// column is visible.
type Config struct {
	IdentifierColumn string   `json:"identifier_column"`
	DateColumn       string   `json:"date_column"`
	VisibleColumns   []string `json:"visible_columns"`
}

// ValidationError reports a mapping that references a column the current
// dataset does not have. Safe to show to the admin.
type ValidationError struct {
	msg string
}

func (e *ValidationError) Error() string {
	return e.msg
}

// Store keeps the current mapping in memory and persists every write to
// sqlite so it survives restarts. Reads and the write swap are guarded so a
// reader never observes a half-written mapping.
type Store struct {
	db *sql.DB

	mu      sync.RWMutex
	current Config
}

// NewStore loads the persisted mapping, or starts from the all-empty
// default when none has been saved yet.
func NewStore(ctx context.Context, db *sql.DB) (*Store, error) {
	s := &Store{db: db, current: Config{VisibleColumns: []string{}}}

	var (
		identifier, date, visibleJSON string
	)
	err := db.QueryRowContext(ctx,
		`SELECT identifier_column, date_column, visible_columns FROM app_config WHERE id = 1`).
		Scan(&identifier, &date, &visibleJSON)
	switch {
	case err == sql.ErrNoRows:
		return s, nil
	case err != nil:
		return nil, fmt.Errorf("load schema config: %w", err)
	}

	var visible []string
	if err := json.Unmarshal([]byte(visibleJSON), &visible); err != nil {
		return nil, fmt.Errorf("decode visible columns: %w", err)
	}
	s.current = Config{
		IdentifierColumn: identifier,
		DateColumn:       date,
		VisibleColumns:   visible,
	}
	return s, nil
}

// Get returns the current mapping. The returned value is a copy.
func (s *Store) Get() Config {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cfg := s.current
	cfg.VisibleColumns = append([]string(nil), s.current.VisibleColumns...)
	return cfg
}

// Set validates cfg against the given dataset columns, persists it, and
// makes it current. When columns is empty (no dataset loaded yet) the key
// columns are accepted unchecked; visible columns are never validated, an
// admin may pre-declare them before the matching upload arrives.
func (s *Store) Set(ctx context.Context, cfg Config, columns []string) error {
	if len(columns) > 0 {
		if !columnOK(cfg.IdentifierColumn, columns) {
			return &ValidationError{msg: fmt.Sprintf("identifier column %q does not exist in the dataset", cfg.IdentifierColumn)}
		}
		if !columnOK(cfg.DateColumn, columns) {
			return &ValidationError{msg: fmt.Sprintf("date column %q does not exist in the dataset", cfg.DateColumn)}
		}
	}

	if cfg.VisibleColumns == nil {
		cfg.VisibleColumns = []string{}
	}
	visibleJSON, err := json.Marshal(cfg.VisibleColumns)
	if err != nil {
		return fmt.Errorf("encode visible columns: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO app_config (id, identifier_column, date_column, visible_columns, updated_at)
		 VALUES (1, ?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET
			identifier_column = excluded.identifier_column,
			date_column       = excluded.date_column,
			visible_columns   = excluded.visible_columns,
			updated_at        = excluded.updated_at`,
		cfg.IdentifierColumn, cfg.DateColumn, string(visibleJSON), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("persist schema config: %w", err)
	}

	s.mu.Lock()
	s.current = cfg
	s.mu.Unlock()
	return nil
}

// columnOK accepts empty names (column not configured) and names present
// in the dataset.
func columnOK(name string, columns []string) bool {
	if name == "" {
		return true
	}
	for _, col := range columns {
		if col == name {
			return true
		}
	}
	return false
}
