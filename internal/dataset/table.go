// Package dataset holds the active tabular dataset in memory.
//
// A dataset is one sheet of records: an ordered list of column names and an
// ordered list of rows. The whole table is replaced wholesale on each upload;
// there are no partial writes and no per-row mutation.
package dataset

import "time"

// Kind classifies a cell value. Spreadsheets carry native date and number
// cells; everything else is text. Empty cells are Missing.
type Kind int

const (
	KindMissing Kind = iota
	KindText
	KindNumber
	KindTime
)

// Cell is a single value from the dataset. Exactly one of the value fields
// is meaningful, selected by Kind.
type Cell struct {
	Kind   Kind
	Text   string
	Number float64
	Time   time.Time
}

// Missing reports whether the cell has no value.
func (c Cell) Missing() bool {
	return c.Kind == KindMissing
}

// Row maps column names to cell values. Every row of a Table has an entry
// (possibly missing) for every declared column.
type Row map[string]Cell

// Table is an immutable in-memory snapshot of the uploaded dataset.
// Construct it via Load; readers must never mutate it.
type Table struct {
	columns []string
	rows    []Row
}

// NewTable builds a table from a column list and rows.
// Rows are padded so that every declared column has a value.
func NewTable(columns []string, rows []Row) *Table {
	for _, row := range rows {
		for _, col := range columns {
			if _, ok := row[col]; !ok {
				row[col] = Cell{Kind: KindMissing}
			}
		}
	}
	return &Table{columns: columns, rows: rows}
}

// Columns returns the column names in header order.
func (t *Table) Columns() []string {
	return t.columns
}

// HasColumn reports whether name is one of the table's columns.
func (t *Table) HasColumn(name string) bool {
	for _, col := range t.columns {
		if col == name {
			return true
		}
	}
	return false
}

// Rows returns the data rows in sheet order.
func (t *Table) Rows() []Row {
	return t.rows
}

// Len returns the number of data rows.
func (t *Table) Len() int {
	return len(t.rows)
}

// Empty reports whether the table holds no data rows.
// A freshly started process with nothing uploaded has an empty table.
func (t *Table) Empty() bool {
	return len(t.rows) == 0
}
