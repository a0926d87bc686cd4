package dataset

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

// LoadError reports a malformed or unusable upload. Its message is safe to
// show to the admin who uploaded the file.
type LoadError struct {
	msg string
}

func (e *LoadError) Error() string {
	return e.msg
}

func loadErrorf(format string, args ...any) *LoadError {
	return &LoadError{msg: fmt.Sprintf(format, args...)}
}

// xlsxMagic is the zip local-file-header signature; .xlsx files are zips.
var xlsxMagic = []byte{0x50, 0x4b, 0x03, 0x04}

// Load parses raw spreadsheet bytes into a Table. The filename selects the
// parser (.csv vs .xlsx); contents that do not match the extension fail with
// a LoadError. The first row is the header; header names are trimmed of
// surrounding whitespace and must be unique and non-empty after trimming.
//
// Only spreadsheet-native types are recognized: date/time cells and numeric
// cells keep their type, everything else stays text. CSV input has no native
// types, so CSV cells are text or missing.
func Load(raw []byte, filename string) (*Table, error) {
	if len(raw) == 0 {
		return nil, loadErrorf("uploaded file is empty")
	}

	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv":
		return loadCSV(raw)
	case ".xlsx":
		if !bytes.HasPrefix(raw, xlsxMagic) {
			return nil, loadErrorf("file %q is not a valid xlsx workbook", filename)
		}
		return loadXLSX(raw)
	default:
		return nil, loadErrorf("unsupported file type %q, expected .xlsx or .csv", filepath.Ext(filename))
	}
}

// loadXLSX reads the first sheet of a workbook.
func loadXLSX(raw []byte) (*Table, error) {
	f, err := excelize.OpenReader(bytes.NewReader(raw))
	if err != nil {
		return nil, loadErrorf("cannot open workbook: %v", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, loadErrorf("workbook has no sheets")
	}
	sheet := sheets[0]

	grid, err := f.GetRows(sheet)
	if err != nil {
		return nil, loadErrorf("cannot read sheet %q: %v", sheet, err)
	}
	if len(grid) == 0 {
		return nil, loadErrorf("sheet %q has no header row", sheet)
	}

	columns, err := headerColumns(grid[0])
	if err != nil {
		return nil, err
	}

	rows := make([]Row, 0, len(grid)-1)
	for i := 1; i < len(grid); i++ {
		row := make(Row, len(columns))
		for j, col := range columns {
			// Row and column indices are 1-based in cell references,
			// and the header occupies row 1.
			name, cerr := excelize.CoordinatesToCellName(j+1, i+1)
			if cerr != nil {
				return nil, loadErrorf("cannot address cell (%d,%d): %v", j+1, i+1, cerr)
			}
			cell, cerr := readCell(f, sheet, name, grid[i], j)
			if cerr != nil {
				return nil, loadErrorf("cannot read cell %s: %v", name, cerr)
			}
			row[col] = cell
		}
		rows = append(rows, row)
	}

	return NewTable(columns, rows), nil
}

// readCell classifies one workbook cell. Date-styled and numeric cells keep
// their native type; everything else is the formatted text, trimmed.
//
// Numeric cells in xlsx carry no explicit type attribute, so classification
// goes by content: if the raw value is a number, the cell is numeric, and a
// date number format promotes it to a date.
func readCell(f *excelize.File, sheet, name string, textRow []string, idx int) (Cell, error) {
	text := ""
	if idx < len(textRow) {
		text = strings.TrimSpace(textRow[idx])
	}
	if text == "" {
		return Cell{Kind: KindMissing}, nil
	}

	kind, err := f.GetCellType(sheet, name)
	if err != nil {
		return Cell{}, err
	}

	switch kind {
	case excelize.CellTypeSharedString, excelize.CellTypeInlineString,
		excelize.CellTypeBool, excelize.CellTypeError:
		return Cell{Kind: KindText, Text: text}, nil
	}

	raw, err := f.GetCellValue(sheet, name, excelize.Options{RawCellValue: true})
	if err != nil {
		return Cell{}, err
	}

	serial, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		// Non-numeric content in an untyped or formula cell; keep the text.
		return Cell{Kind: KindText, Text: text}, nil
	}

	if isDateStyled(f, sheet, name) {
		t, err := excelize.ExcelDateToTime(serial, false)
		if err != nil {
			return Cell{}, err
		}
		return Cell{Kind: KindTime, Time: t}, nil
	}
	return Cell{Kind: KindNumber, Number: serial}, nil
}

// builtinDateFormats are the built-in xlsx number format IDs that render a
// serial number as a date or time.
var builtinDateFormats = map[int]bool{
	14: true, 15: true, 16: true, 17: true, 18: true, 19: true, 20: true,
	21: true, 22: true, 27: true, 28: true, 29: true, 30: true, 31: true,
	32: true, 33: true, 34: true, 35: true, 36: true, 45: true, 46: true,
	47: true, 50: true, 51: true, 52: true, 53: true, 54: true, 55: true,
	56: true, 57: true, 58: true,
}

// isDateStyled reports whether the cell's number format renders its value as
// a date.
func isDateStyled(f *excelize.File, sheet, name string) bool {
	styleID, err := f.GetCellStyle(sheet, name)
	if err != nil {
		return false
	}
	style, err := f.GetStyle(styleID)
	if err != nil || style == nil {
		return false
	}
	if builtinDateFormats[style.NumFmt] {
		return true
	}
	if style.CustomNumFmt != nil {
		return strings.ContainsAny(*style.CustomNumFmt, "ymd")
	}
	return false
}

// loadCSV reads comma-separated input. All values are text.
func loadCSV(raw []byte) (*Table, error) {
	reader := csv.NewReader(bytes.NewReader(raw))
	reader.FieldsPerRecord = -1

	grid, err := reader.ReadAll()
	if err != nil {
		return nil, loadErrorf("cannot parse csv: %v", err)
	}
	if len(grid) == 0 {
		return nil, loadErrorf("csv has no header row")
	}

	columns, err := headerColumns(grid[0])
	if err != nil {
		return nil, err
	}

	rows := make([]Row, 0, len(grid)-1)
	for i := 1; i < len(grid); i++ {
		row := make(Row, len(columns))
		for j, col := range columns {
			text := ""
			if j < len(grid[i]) {
				text = strings.TrimSpace(grid[i][j])
			}
			if text == "" {
				row[col] = Cell{Kind: KindMissing}
			} else {
				row[col] = Cell{Kind: KindText, Text: text}
			}
		}
		rows = append(rows, row)
	}

	return NewTable(columns, rows), nil
}

// headerColumns trims header names and rejects empty or duplicate names.
func headerColumns(header []string) ([]string, error) {
	columns := make([]string, len(header))
	seen := make(map[string]int, len(header))
	for i, name := range header {
		name = strings.TrimSpace(name)
		if name == "" {
			return nil, loadErrorf("header column %d has an empty name", i+1)
		}
		if prev, dup := seen[name]; dup {
			return nil, loadErrorf("duplicate column name %q (columns %d and %d)", name, prev+1, i+1)
		}
		seen[name] = i
		columns[i] = name
	}
	return columns, nil
}
