// Package normalize renders heterogeneous cell values into comparable and
// display-ready text, and parses the free-form dates users type.
//
// Every comparison site in the query path goes through this package so that
// a value stored as a native date cell, a number, or loose text all behave
// the same way. Rendering is total: malformed values render as best-effort
// text, never an error.
package normalize

import (
	"strconv"
	"strings"
	"time"

	"consulta/internal/dataset"
)

// DisplayDateLayout is how date cells are shown to end users.
const DisplayDateLayout = "02/01/2006"

// missingPlaceholder is what users see for empty cells.
const missingPlaceholder = "-"

// Date layouts accepted for human-entered dates and text date columns.
// Day-first layouts come first: the dataset's users write 7/3/2024 meaning
// the 7th of March. Layouts with two-digit years are pivoted separately.
var (
	dayFirstLayouts = []string{
		"2/1/2006", "02/01/2006", "2-1-2006", "02-01-2006", "2.1.2006", "02.01.2006",
		"2/1/2006 15:04", "02/01/2006 15:04:05",
		"2 Jan 2006", "2 January 2006",
	}
	isoLayouts = []string{
		"2006-01-02", "2006/01/02", "2006.01.02",
		"2006-01-02 15:04:05", "2006-01-02T15:04:05",
	}
	twoDigitYearLayouts = []string{
		"2/1/06", "02/01/06", "2-1-06", "2.1.06",
	}
)

// twoDigitYearPivot controls how two-digit years are resolved: parsed years
// more than this many years in the future roll back a century.
const twoDigitYearPivot = 20

// SearchKey renders a cell to its canonical text form for identifier
// comparison. Text and numbers use their natural representation, trimmed;
// date cells are not reformatted here, they keep an unambiguous form.
func SearchKey(c dataset.Cell) string {
	switch c.Kind {
	case dataset.KindText:
		return strings.TrimSpace(c.Text)
	case dataset.KindNumber:
		return formatNumber(c.Number)
	case dataset.KindTime:
		return c.Time.Format("2006-01-02 15:04:05")
	default:
		return ""
	}
}

// Display renders a cell for user-facing output: date cells as DD/MM/YYYY,
// missing or empty values as "-", everything else as its natural text.
func Display(c dataset.Cell) string {
	switch c.Kind {
	case dataset.KindTime:
		return c.Time.Format(DisplayDateLayout)
	case dataset.KindNumber:
		return formatNumber(c.Number)
	case dataset.KindText:
		if s := strings.TrimSpace(c.Text); s != "" {
			return s
		}
		return missingPlaceholder
	default:
		return missingPlaceholder
	}
}

// DisplayISO is Display with ISO dates, used by the admin detail view.
func DisplayISO(c dataset.Cell) string {
	if c.Kind == dataset.KindTime {
		return c.Time.Format("2006-01-02")
	}
	return Display(c)
}

// ParseDate parses a free-form date string leniently, day-first.
// Unparseable input yields ok=false, never an error.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}

	for _, layout := range dayFirstLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	for _, layout := range isoLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}

	pivot := time.Now().Year() + twoDigitYearPivot
	for _, layout := range twoDigitYearLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			if t.Year() > pivot {
				t = t.AddDate(-100, 0, 0)
			}
			return t, true
		}
	}

	return time.Time{}, false
}

// CellDate extracts the calendar date carried by a cell: native date cells
// directly, text cells through ParseDate. Numbers and missing cells carry
// no date.
func CellDate(c dataset.Cell) (time.Time, bool) {
	switch c.Kind {
	case dataset.KindTime:
		return c.Time, true
	case dataset.KindText:
		return ParseDate(c.Text)
	default:
		return time.Time{}, false
	}
}

// SameDay reports whether two instants fall on the same calendar day,
// ignoring time of day.
func SameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// formatNumber renders a float the way a person would write it: integers
// without a decimal point, no exponent notation for ordinary magnitudes.
func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
