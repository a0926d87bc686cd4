// Package query matches rows of the active dataset against user input.
//
// Two operations exist: Suggest, a substring autocomplete over the
// identifier column, and Lookup, an exact (identifier, date) match. Both
// are pure reads over a table snapshot and run freely in parallel with
// each other and with uploads.
package query

import (
	"errors"
	"strings"

	"consulta/internal/dataset"
	"consulta/internal/normalize"
	"consulta/internal/schema"
)

// Sentinel results of a lookup. Handlers translate these into user-facing
// responses; anything else is an internal fault and stays out of responses.
var (
	// ErrNoData means no dataset has been uploaded yet.
	ErrNoData = errors.New("no dataset loaded")

	// ErrNotConfigured means the identifier or date column is unset.
	ErrNotConfigured = errors.New("key columns not configured")

	// ErrNotFound means no row matched the identifier and date.
	ErrNotFound = errors.New("no matching records")
)

// suggestLimit caps autocomplete results.
const suggestLimit = 5

// Engine reads the table store and schema config to answer queries.
type Engine struct {
	tables *dataset.Store
	schema *schema.Store
}

// New creates an engine over the given stores.
func New(tables *dataset.Store, schemaStore *schema.Store) *Engine {
	return &Engine{tables: tables, schema: schemaStore}
}

// Suggest returns up to 5 identifier values whose search key contains
// fragment, in dataset row order. Matching is a case-sensitive byte
// substring. When the identifier column is unset or missing from the
// current dataset, Suggest silently returns nil: autocomplete is an aid,
// not a contract.
func (e *Engine) Suggest(fragment string) []string {
	t := e.tables.Current()
	col := e.schema.Get().IdentifierColumn
	if col == "" || !t.HasColumn(col) {
		return nil
	}

	var matches []string
	for _, row := range t.Rows() {
		key := normalize.SearchKey(row[col])
		if key == "" || !strings.Contains(key, fragment) {
			continue
		}
		matches = append(matches, key)
		if len(matches) == suggestLimit {
			break
		}
	}
	return matches
}

// Lookup returns the display projection of every row whose identifier
// equals identifier (trimmed, exact) and whose date falls on the same
// calendar day as dateText, both parsed leniently day-first. Rows keep
// dataset order; the projection is restricted to the configured visible
// columns.
func (e *Engine) Lookup(identifier, dateText string) ([]map[string]string, error) {
	t := e.tables.Current()
	if t.Empty() {
		return nil, ErrNoData
	}

	cfg := e.schema.Get()
	if cfg.IdentifierColumn == "" || cfg.DateColumn == "" {
		return nil, ErrNotConfigured
	}

	wantID := strings.TrimSpace(identifier)
	wantDate, ok := normalize.ParseDate(dateText)
	if !ok {
		// An unparseable query date can never match a row.
		return nil, ErrNotFound
	}

	var matched []dataset.Row
	for _, row := range t.Rows() {
		if normalize.SearchKey(row[cfg.IdentifierColumn]) != wantID {
			continue
		}
		rowDate, ok := normalize.CellDate(row[cfg.DateColumn])
		if !ok {
			// Malformed date cell: skip the row, never abort the scan.
			continue
		}
		if normalize.SameDay(rowDate, wantDate) {
			matched = append(matched, row)
		}
	}
	if len(matched) == 0 {
		return nil, ErrNotFound
	}

	return Project(t, matched, cfg.VisibleColumns), nil
}

// Record returns the full, unfiltered first row matching identifier, with
// dates rendered in ISO form. It backs the admin detail view, which is not
// subject to the visible-column restriction.
func (e *Engine) Record(identifier string) (map[string]string, error) {
	t := e.tables.Current()
	if t.Empty() {
		return nil, ErrNoData
	}

	col := e.schema.Get().IdentifierColumn
	if col == "" || !t.HasColumn(col) {
		return nil, ErrNotConfigured
	}

	wantID := strings.TrimSpace(identifier)
	for _, row := range t.Rows() {
		if normalize.SearchKey(row[col]) != wantID {
			continue
		}
		out := make(map[string]string, len(t.Columns()))
		for _, name := range t.Columns() {
			out[name] = normalize.DisplayISO(row[name])
		}
		return out, nil
	}

	return nil, ErrNotFound
}
