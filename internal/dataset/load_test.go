package dataset

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

// buildWorkbook creates an in-memory xlsx file from a header and rows.
// Values keep their Go types so the workbook carries native number and
// date cells, like a file exported from a real spreadsheet.
func buildWorkbook(t *testing.T, header []string, rows [][]any) []byte {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)

	headerRow := make([]any, len(header))
	for i, h := range header {
		headerRow[i] = h
	}
	require.NoError(t, f.SetSheetRow(sheet, "A1", &headerRow))

	dateStyle, err := f.NewStyle(&excelize.Style{NumFmt: 14}) // built-in date format
	require.NoError(t, err)

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cell, &row))

		for j, v := range row {
			if _, isTime := v.(time.Time); !isTime {
				continue
			}
			name, err := excelize.CoordinatesToCellName(j+1, i+2)
			require.NoError(t, err)
			require.NoError(t, f.SetCellStyle(sheet, name, name, dateStyle))
		}
	}

	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

func TestLoadXLSX(t *testing.T) {
	raw := buildWorkbook(t,
		[]string{" DNI ", "Fecha", "Nombre", "Horas"},
		[][]any{
			{"12345678", time.Date(2024, 3, 7, 0, 0, 0, 0, time.UTC), "Ana", 7.5},
			{"87654321", time.Date(2024, 3, 8, 0, 0, 0, 0, time.UTC), "Luis", nil},
		},
	)

	table, err := Load(raw, "padron.xlsx")
	require.NoError(t, err)

	require.Equal(t, []string{"DNI", "Fecha", "Nombre", "Horas"}, table.Columns())
	require.Equal(t, 2, table.Len())

	row := table.Rows()[0]
	require.Equal(t, KindText, row["DNI"].Kind)
	require.Equal(t, "12345678", row["DNI"].Text)

	require.Equal(t, KindTime, row["Fecha"].Kind)
	y, m, d := row["Fecha"].Time.Date()
	require.Equal(t, 2024, y)
	require.Equal(t, time.March, m)
	require.Equal(t, 7, d)

	require.Equal(t, KindNumber, row["Horas"].Kind)
	require.Equal(t, 7.5, row["Horas"].Number)

	// Empty cell is missing, but the column is still present in the row.
	require.Equal(t, KindMissing, table.Rows()[1]["Horas"].Kind)
}

func TestLoadXLSXDuplicateColumns(t *testing.T) {
	raw := buildWorkbook(t,
		[]string{"DNI", " DNI "},
		[][]any{{"1", "2"}},
	)

	_, err := Load(raw, "dup.xlsx")
	require.Error(t, err)
	var loadErr *LoadError
	require.ErrorAs(t, err, &loadErr)
	require.Contains(t, loadErr.Error(), "duplicate column")
}

func TestLoadXLSXEmptyHeaderName(t *testing.T) {
	raw := buildWorkbook(t,
		[]string{"DNI", "   "},
		[][]any{{"1", "2"}},
	)

	_, err := Load(raw, "blank.xlsx")
	var loadErr *LoadError
	require.ErrorAs(t, err, &loadErr)
	require.Contains(t, loadErr.Error(), "empty name")
}

func TestLoadXLSXHeaderOnly(t *testing.T) {
	raw := buildWorkbook(t, []string{"DNI", "Fecha"}, nil)

	table, err := Load(raw, "empty.xlsx")
	require.NoError(t, err)
	require.True(t, table.Empty())
	require.Equal(t, []string{"DNI", "Fecha"}, table.Columns())
}

func TestLoadCSV(t *testing.T) {
	raw := []byte("DNI , Nombre\n12345678, Ana \n87654321,\n")

	table, err := Load(raw, "padron.csv")
	require.NoError(t, err)
	require.Equal(t, []string{"DNI", "Nombre"}, table.Columns())
	require.Equal(t, 2, table.Len())

	require.Equal(t, "Ana", table.Rows()[0]["Nombre"].Text)
	require.Equal(t, KindMissing, table.Rows()[1]["Nombre"].Kind)
}

func TestLoadCSVRaggedRows(t *testing.T) {
	// Short rows are padded with missing cells.
	raw := []byte("A,B,C\n1\n1,2,3\n")

	table, err := Load(raw, "ragged.csv")
	require.NoError(t, err)
	require.Equal(t, 2, table.Len())
	require.Equal(t, KindMissing, table.Rows()[0]["B"].Kind)
	require.Equal(t, "3", table.Rows()[1]["C"].Text)
}

func TestLoadRejectsBadInput(t *testing.T) {
	cases := []struct {
		name     string
		raw      []byte
		filename string
	}{
		{"empty bytes", nil, "x.xlsx"},
		{"not a workbook", []byte("hello"), "x.xlsx"},
		{"unsupported extension", []byte("a,b\n1,2\n"), "x.pdf"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(tc.raw, tc.filename)
			var loadErr *LoadError
			require.ErrorAs(t, err, &loadErr)
		})
	}
}
