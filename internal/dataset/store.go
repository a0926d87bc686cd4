package dataset

import "sync"

// Store owns the active table. Queries read it concurrently; an upload
// replaces it wholesale. The swap is atomic with respect to readers: a
// reader sees either the old table or the new one, never a mix.
type Store struct {
	mu    sync.RWMutex
	table *Table
}

// NewStore creates a store holding an empty table.
func NewStore() *Store {
	return &Store{table: NewTable(nil, nil)}
}

// Current returns the active table snapshot. The returned table is
// immutable; callers may hold it across a concurrent Replace.
func (s *Store) Current() *Table {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.table
}

// Replace swaps in a new table. Callers must parse and validate the upload
// before calling Replace so a failed parse never disturbs the active table.
func (s *Store) Replace(t *Table) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.table = t
}
