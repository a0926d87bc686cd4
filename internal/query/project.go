package query

import (
	"consulta/internal/dataset"
	"consulta/internal/normalize"
)

// Project restricts rows to the visible columns and renders every kept
// value for display. An empty visible list keeps all columns. Columns are
// walked in the table's natural order, so the key set of each output row is
// the intersection of the visible set and the table's columns; visible
// entries the table no longer has are simply omitted.
func Project(t *dataset.Table, rows []dataset.Row, visible []string) []map[string]string {
	var keep map[string]bool
	if len(visible) > 0 {
		keep = make(map[string]bool, len(visible))
		for _, name := range visible {
			keep[name] = true
		}
	}

	out := make([]map[string]string, 0, len(rows))
	for _, row := range rows {
		display := make(map[string]string)
		for _, name := range t.Columns() {
			if keep != nil && !keep[name] {
				continue
			}
			display[name] = normalize.Display(row[name])
		}
		out = append(out, display)
	}
	return out
}
