// Package sheet turns uploaded spreadsheet bytes into header-keyed rows.
package sheet

import (
	"bytes"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// ErrUnsupportedFormat is returned when an uploaded file is not a spreadsheet we can read.
var ErrUnsupportedFormat = errors.New("unsupported file format")

const (
	MimeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	MimeXLS  = "application/vnd.ms-excel"
	MimeCSV  = "text/csv"
)

var (
	zipMagic = []byte{0x50, 0x4B, 0x03, 0x04}
	oleMagic = []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}
)

// Cell is one spreadsheet value. Numeric cells hold the machine representation of the
// number (dot decimal, no grouping); everything else is the text as typed.
type Cell struct {
	Text    string
	Numeric bool
}

func (c Cell) Blank() bool {
	return strings.TrimSpace(c.Text) == ""
}

// String is the trimmed text with invalid UTF-8 dropped.
func (c Cell) String() string {
	return strings.TrimSpace(strings.ToValidUTF8(c.Text, ""))
}

type Row struct {
	// Number is the 1-based row number as shown by spreadsheet programs.
	Number int
	Cells  map[string]Cell
}

// Get returns the first non-blank cell among the given header names.
func (r Row) Get(names ...string) Cell {
	var found Cell
	for _, name := range names {
		c, ok := r.Cells[name]
		if !ok {
			continue
		}
		if !c.Blank() {
			return c
		}
		found = c
	}
	return found
}

type Table struct {
	Sheet   string
	Headers []string
	Rows    []Row
}

// Read parses data as a spreadsheet and returns its first sheet. Row 0 is the header row.
// The format is picked from the file extension, then the MIME type, then the content.
func Read(fileName, mimeType string, data []byte) (*Table, error) {
	switch detectFormat(fileName, mimeType, data) {
	case "xlsx":
		return readXLSX(data)
	case "xls":
		return readXLS(data)
	case "csv":
		return readCSV(data)
	default:
		return nil, fmt.Errorf("%w: %s (%s)", ErrUnsupportedFormat, fileName, mimeType)
	}
}

// MimeTypeByName returns the content type of a spreadsheet file name, or "" when the
// extension is not one Read understands.
func MimeTypeByName(fileName string) string {
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".xlsx", ".xlsm":
		return MimeXLSX
	case ".xls":
		return MimeXLS
	case ".csv":
		return MimeCSV
	}
	return ""
}

func detectFormat(fileName, mimeType string, data []byte) string {
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".xlsx", ".xlsm":
		return "xlsx"
	case ".xls":
		return "xls"
	case ".csv":
		return "csv"
	}
	switch strings.ToLower(strings.TrimSpace(mimeType)) {
	case MimeXLSX:
		return "xlsx"
	case MimeXLS:
		return "xls"
	case MimeCSV, "application/csv":
		return "csv"
	}
	switch {
	case bytes.HasPrefix(data, zipMagic):
		return "xlsx"
	case bytes.HasPrefix(data, oleMagic):
		return "xls"
	}
	return ""
}

// buildTable applies the header row to every following row. Blank rows are dropped,
// columns with a blank header are ignored and the first of two equal headers wins.
func buildTable(sheetName string, grid [][]Cell) *Table {
	table := &Table{Sheet: sheetName}
	if len(grid) == 0 {
		return table
	}

	headers := make([]string, len(grid[0]))
	for i, c := range grid[0] {
		headers[i] = strings.TrimSpace(c.Text)
	}
	table.Headers = headers

	for r := 1; r < len(grid); r++ {
		row := Row{Number: r + 1, Cells: make(map[string]Cell, len(headers))}
		empty := true
		for i, c := range grid[r] {
			if i >= len(headers) || headers[i] == "" {
				continue
			}
			if _, dup := row.Cells[headers[i]]; dup {
				continue
			}
			row.Cells[headers[i]] = c
			if !c.Blank() {
				empty = false
			}
		}
		if empty {
			continue
		}
		table.Rows = append(table.Rows, row)
	}
	return table
}
