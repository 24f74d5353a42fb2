package sheet

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/extrame/xls"
)

// readXLS reads legacy BIFF workbooks. The format library renders every cell as text, so a
// cell is treated as numeric when that text is already a plain machine number.
func readXLS(data []byte) (table *Table, err error) {
	defer func() {
		// The BIFF parser panics on some truncated files.
		if r := recover(); r != nil {
			table, err = nil, fmt.Errorf("failed to read xls: %v", r)
		}
	}()

	book, err := xls.OpenReader(bytes.NewReader(data), "utf-8")
	if err != nil {
		return nil, fmt.Errorf("failed to open xls: %w", err)
	}
	ws := book.GetSheet(0)
	if ws == nil {
		return nil, errors.New("xls file has no sheets")
	}

	grid := make([][]Cell, 0, int(ws.MaxRow)+1)
	for i := 0; i <= int(ws.MaxRow); i++ {
		row := ws.Row(i)
		if row == nil {
			grid = append(grid, nil)
			continue
		}
		last := row.LastCol()
		cells := make([]Cell, max(last, 0))
		for c := row.FirstCol(); c < last; c++ {
			text := row.Col(c)
			cells[c] = Cell{Text: text, Numeric: i > 0 && isMachineNumber(text)}
		}
		grid = append(grid, cells)
	}
	return buildTable(ws.Name, grid), nil
}

func isMachineNumber(text string) bool {
	text = strings.TrimSpace(text)
	if text == "" || strings.ContainsAny(text, ", ") {
		return false
	}
	_, err := strconv.ParseFloat(text, 64)
	return err == nil
}
