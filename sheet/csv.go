package sheet

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"fmt"
)

var byteOrderMark = []byte{0xEF, 0xBB, 0xBF}

func readCSV(data []byte) (*Table, error) {
	data = bytes.TrimPrefix(data, byteOrderMark)

	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.Comma = detectDelimiter(data)

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read csv: %w", err)
	}

	grid := make([][]Cell, len(records))
	for r, record := range records {
		cells := make([]Cell, len(record))
		for c, value := range record {
			cells[c] = Cell{Text: value}
		}
		grid[r] = cells
	}
	return buildTable("csv", grid), nil
}

// detectDelimiter picks ';' for files exported with a comma decimal separator.
func detectDelimiter(data []byte) rune {
	line, _ := bufio.NewReader(bytes.NewReader(data)).ReadString('\n')
	if bytes.Count([]byte(line), []byte(";")) > bytes.Count([]byte(line), []byte(",")) {
		return ';'
	}
	return ','
}
