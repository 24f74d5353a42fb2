package sheet

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func workbook(t *testing.T, rows [][]any) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	for r, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, r+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &row))
	}
	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))
	return buf.Bytes()
}

func TestReadXLSX(t *testing.T) {
	data := workbook(t, [][]any{
		{" Winery ", "Quantity", "Unit Price"},
		{"Ktima Alpha", 12, "12,50€"},
		{""},
		{"Ktima Beta", 3.5},
	})

	table, err := Read("sales-uploads/jan.xlsx", MimeXLSX, data)
	require.NoError(t, err)
	assert.Equal(t, "Sheet1", table.Sheet)
	assert.Equal(t, []string{"Winery", "Quantity", "Unit Price"}, table.Headers)
	require.Len(t, table.Rows, 2)

	first := table.Rows[0]
	assert.Equal(t, 2, first.Number)
	assert.Equal(t, Cell{Text: "Ktima Alpha"}, first.Cells["Winery"])
	assert.Equal(t, Cell{Text: "12", Numeric: true}, first.Cells["Quantity"])
	assert.Equal(t, Cell{Text: "12,50€"}, first.Cells["Unit Price"])

	second := table.Rows[1]
	assert.Equal(t, 4, second.Number)
	assert.Equal(t, "3.5", second.Cells["Quantity"].Text)
	assert.True(t, second.Cells["Unit Price"].Blank())
}

func TestReadDetectsFormatFromContent(t *testing.T) {
	data := workbook(t, [][]any{{"customerId"}, {"C1"}})

	table, err := Read("upload", "application/octet-stream", data)
	require.NoError(t, err)
	require.Len(t, table.Rows, 1)
	assert.Equal(t, "C1", table.Rows[0].Cells["customerId"].Text)
}

func TestReadCSVSemicolon(t *testing.T) {
	data := []byte("\xEF\xBB\xBFCustomer ID;Total Balance\nC1;1.234,56\n;\nC2;0\n")

	table, err := Read("balance-uploads/b.csv", MimeCSV, data)
	require.NoError(t, err)
	assert.Equal(t, []string{"Customer ID", "Total Balance"}, table.Headers)
	require.Len(t, table.Rows, 2)
	assert.Equal(t, "1.234,56", table.Rows[0].Cells["Total Balance"].Text)
	assert.False(t, table.Rows[0].Cells["Total Balance"].Numeric)
	assert.Equal(t, 4, table.Rows[1].Number)
}

func TestReadUnsupported(t *testing.T) {
	_, err := Read("notes.txt", "text/plain", []byte("hello"))
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestReadCorruptXLS(t *testing.T) {
	_, err := Read("old.xls", MimeXLS, []byte{0xD0, 0xCF, 0x11, 0xE0, 0x00})
	assert.Error(t, err)
}

func TestRowGetPrefersFirstNonBlank(t *testing.T) {
	row := Row{Cells: map[string]Cell{
		"Bottle":      {Text: "  "},
		"Bottle Info": {Text: "750ml"},
	}}
	assert.Equal(t, "750ml", row.Get("Bottle", "Bottle Info").String())
	assert.True(t, row.Get("Missing").Blank())
}

func TestCellStringDropsInvalidUTF8(t *testing.T) {
	assert.Equal(t, "Κτήμα Α", Cell{Text: " Κτήμα\xff Α "}.String())
}

func TestBuildTableHeaders(t *testing.T) {
	table := buildTable("s", [][]Cell{
		{{Text: "Notes"}, {Text: "Notes"}, {Text: " "}},
		{{Text: "first"}, {Text: "second"}, {Text: "no header"}},
		{{Text: ""}, {Text: ""}, {Text: "only under blank header"}},
	})
	require.Len(t, table.Rows, 1)
	assert.Equal(t, "first", table.Rows[0].Cells["Notes"].Text)
	assert.Len(t, table.Rows[0].Cells, 1)
}

func TestMimeTypeByName(t *testing.T) {
	assert.Equal(t, MimeXLSX, MimeTypeByName("sales-uploads/March.XLSX"))
	assert.Equal(t, MimeXLS, MimeTypeByName("old.xls"))
	assert.Equal(t, MimeCSV, MimeTypeByName("b.csv"))
	assert.Empty(t, MimeTypeByName("notes.txt"))
	assert.Empty(t, MimeTypeByName("noext"))
}
