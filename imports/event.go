// Package imports turns uploaded spreadsheets into invoice and balance documents.
package imports

import (
	"fmt"
	"strings"
)

// FileEvent describes one uploaded object. Content holds the whole file; the importers
// never stream.
type FileEvent struct {
	Bucket     string
	Name       string
	Generation int64
	MimeType   string
	Content    []byte
}

// Prefix is the first path segment of the object name, which selects the import job.
func (ev FileEvent) Prefix() string {
	name := strings.TrimLeft(ev.Name, "/")
	if i := strings.Index(name, "/"); i >= 0 {
		return name[:i]
	}
	return ""
}

// Key identifies this exact version of the object.
func (ev FileEvent) Key() string {
	return fmt.Sprintf("%s/%s#%d", ev.Bucket, ev.Name, ev.Generation)
}

type Result struct {
	Message          string `json:"message"`
	RecordsProcessed int    `json:"recordsProcessed"`
	RowsSkipped      int    `json:"rowsSkipped"`
	// Skipped is set when the event was not meant for the importer.
	Skipped bool `json:"skipped,omitempty"`
}

func skipped(format string, args ...any) *Result {
	return &Result{Message: fmt.Sprintf(format, args...), Skipped: true}
}
