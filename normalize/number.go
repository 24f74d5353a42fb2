// Package normalize converts raw spreadsheet values into typed domain values. Nothing here
// fails: a value that cannot be understood becomes its zero value so a single bad cell
// never blocks a file.
package normalize

import (
	"strconv"
	"strings"
	"unicode"

	"github.com/mmdatafocus/winery_ingest/sheet"
	"github.com/shopspring/decimal"
)

// ParseLocaleNumber reads a number written the Greek/continental way: "1.234,56 €".
// Currency symbols and whitespace are dropped, '.' is a thousands separator and ',' the
// decimal mark. Blank or unparseable input yields 0.
func ParseLocaleNumber(raw string) float64 {
	s := cleanLocaleNumber(raw)
	if s == "" {
		return 0
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0
	}
	f, _ := d.Float64()
	return f
}

func cleanLocaleNumber(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	upper := strings.ToUpper(raw)
	for _, code := range []string{"EUR", "USD"} {
		upper = strings.ReplaceAll(upper, code, "")
	}

	var b strings.Builder
	for _, r := range upper {
		switch {
		case unicode.IsSpace(r), unicode.Is(unicode.Sc, r), r == '.':
		case r == ',':
			b.WriteByte('.')
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// NumberFromCell takes numeric cells verbatim and runs text cells through ParseLocaleNumber.
func NumberFromCell(c sheet.Cell) float64 {
	if c.Blank() {
		return 0
	}
	if c.Numeric {
		if f, err := strconv.ParseFloat(strings.TrimSpace(c.Text), 64); err == nil {
			return f
		}
	}
	return ParseLocaleNumber(c.Text)
}

// NonNegative clamps negative amounts to zero.
func NonNegative(f float64) float64 {
	if f < 0 {
		return 0
	}
	return f
}
