package normalize

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const (
	FieldBottleInfo = "bottleInfo"
	FieldWineInfo   = "wineInfo"

	BottleMarker = "ΦΙΑΛΗ"
	WineMarker   = "ΟΙΝΟΣ"
)

// Rule maps note segments starting with one of Markers onto Field.
type Rule struct {
	Field   string
	Markers []string
}

// Tokenizer extracts fields from pipe-delimited notes such as "ΦΙΑΛΗ 750ml | ΟΙΝΟΣ Ασύρτικο".
// Markers match case- and accent-insensitively at the start of a segment; the rest of the
// segment, trimmed, is the value. The first segment that yields a value for a field wins.
type Tokenizer struct {
	rules []Rule
}

func NewTokenizer(rules ...Rule) *Tokenizer {
	t := &Tokenizer{}
	for _, r := range rules {
		t = t.WithMarkers(r.Field, r.Markers...)
	}
	return t
}

var defaultTokenizer = NewTokenizer(
	Rule{Field: FieldBottleInfo, Markers: []string{BottleMarker}},
	Rule{Field: FieldWineInfo, Markers: []string{WineMarker}},
)

func DefaultTokenizer() *Tokenizer {
	return defaultTokenizer
}

// WithMarkers returns a copy of t with extra markers for field. Unknown fields are
// appended as new rules after the existing ones.
func (t *Tokenizer) WithMarkers(field string, markers ...string) *Tokenizer {
	out := &Tokenizer{rules: make([]Rule, len(t.rules))}
	copy(out.rules, t.rules)

	folded := make([]string, 0, len(markers))
	for _, m := range markers {
		if f := fold(strings.TrimSpace(m)); f != "" {
			folded = append(folded, f)
		}
	}
	for i := range out.rules {
		if out.rules[i].Field == field {
			out.rules[i].Markers = append(append([]string{}, out.rules[i].Markers...), folded...)
			return out
		}
	}
	out.rules = append(out.rules, Rule{Field: field, Markers: folded})
	return out
}

// Parse returns the value found for each field.
func (t *Tokenizer) Parse(notes string) map[string]string {
	found := map[string]string{}
	if strings.TrimSpace(notes) == "" {
		return found
	}
	for _, segment := range strings.Split(notes, "|") {
		segment = norm.NFC.String(strings.TrimSpace(segment))
		if segment == "" {
			continue
		}
	rules:
		for _, rule := range t.rules {
			for _, marker := range rule.Markers {
				value, ok := cutMarker(segment, marker)
				if !ok {
					continue
				}
				if _, done := found[rule.Field]; !done && value != "" {
					found[rule.Field] = value
				}
				break rules
			}
		}
	}
	return found
}

type NoteInfo struct {
	BottleInfo *string
	WineInfo   *string
}

func (n NoteInfo) Empty() bool {
	return n.BottleInfo == nil && n.WineInfo == nil
}

func (t *Tokenizer) ParseNoteTokens(notes string) NoteInfo {
	found := t.Parse(notes)
	var info NoteInfo
	if v, ok := found[FieldBottleInfo]; ok {
		info.BottleInfo = &v
	}
	if v, ok := found[FieldWineInfo]; ok {
		info.WineInfo = &v
	}
	return info
}

// ParseNoteTokens parses notes with the default marker vocabulary.
func ParseNoteTokens(notes string) NoteInfo {
	return defaultTokenizer.ParseNoteTokens(notes)
}

var stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

func fold(s string) string {
	out, _, err := transform.String(stripMarks, s)
	if err != nil {
		out = s
	}
	return strings.ToUpper(out)
}

// cutMarker folds segment rune by rune until it has consumed as much as marker and
// returns the remainder of the original text when the folded prefix equals marker. Invalid
// UTF-8 is dropped.
func cutMarker(segment, marker string) (string, bool) {
	segment = strings.ToValidUTF8(segment, "")
	var prefix strings.Builder
	for i, r := range segment {
		prefix.WriteString(fold(string(r)))
		if prefix.Len() < len(marker) {
			continue
		}
		if prefix.String() != marker {
			return "", false
		}
		rest := strings.TrimSpace(segment[i+utf8.RuneLen(r):])
		rest = strings.TrimSpace(strings.TrimPrefix(rest, ":"))
		return rest, true
	}
	return "", false
}
