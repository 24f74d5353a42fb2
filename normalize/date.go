package normalize

import (
	"strconv"
	"strings"
	"time"

	"github.com/mmdatafocus/winery_ingest/sheet"
	"github.com/xuri/excelize/v2"
)

// Day-first layouts come first; the upload files are produced with a Greek locale.
var dateLayouts = []string{
	"02/01/2006",
	"2/1/2006",
	"02/01/2006 15:04",
	"02/01/2006 15:04:05",
	"02-01-2006",
	"02.01.2006",
	"2006-01-02",
	"2006-01-02 15:04:05",
	time.RFC3339,
}

// ParseDate reads a spreadsheet serial date or a date typed as text. It returns nil for
// anything else.
func ParseDate(c sheet.Cell) *time.Time {
	text := strings.TrimSpace(c.Text)
	if text == "" {
		return nil
	}
	if c.Numeric {
		serial, err := strconv.ParseFloat(text, 64)
		if err == nil && serial > 0 {
			if t, err := excelize.ExcelDateToTime(serial, false); err == nil {
				t = t.UTC()
				return &t
			}
		}
		return nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, text, time.UTC); err == nil {
			return &t
		}
	}
	return nil
}
