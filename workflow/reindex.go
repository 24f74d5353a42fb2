package workflow

import (
	"context"
	"fmt"
	"strings"

	"github.com/mmdatafocus/winery_ingest/docstore"
	"github.com/mmdatafocus/winery_ingest/models"
)

// ReindexInvoices derives bottleInfo and wineInfo from the notes of every invoice again.
// Only fields whose parsed value differs from the stored one are written, so a second run
// over unchanged data writes nothing.
func (j *Jobs) ReindexInvoices(ctx context.Context) (*Result, error) {
	collection := j.invoices()
	tokenizer := j.tokenizer()
	return j.run(ctx, JobReindexInvoices, collection, func(ctx context.Context) (*Result, error) {
		var ops []docstore.Op
		scanned := 0
		err := j.Store.Scan(ctx, collection, func(d docstore.Document) error {
			scanned++
			notes := docstore.String(d.Fields, models.InvoiceNotes)
			if strings.TrimSpace(notes) == "" {
				return nil
			}
			info := tokenizer.ParseNoteTokens(notes)
			fields := map[string]any{}
			if info.BottleInfo != nil && *info.BottleInfo != docstore.String(d.Fields, models.InvoiceBottleInfo) {
				fields[models.InvoiceBottleInfo] = *info.BottleInfo
			}
			if info.WineInfo != nil && *info.WineInfo != docstore.String(d.Fields, models.InvoiceWineInfo) {
				fields[models.InvoiceWineInfo] = *info.WineInfo
			}
			if len(fields) > 0 {
				ops = append(ops, docstore.Upsert(collection, d.ID, fields, true))
			}
			return nil
		})
		if err != nil {
			return nil, scanFailed(JobReindexInvoices, err)
		}

		if len(ops) == 0 {
			return &Result{Message: fmt.Sprintf("Reindexed 0 of %d invoices, all up to date", scanned)}, nil
		}
		if _, err := j.committer(JobReindexInvoices).Apply(ctx, ops); err != nil {
			return nil, err
		}
		return &Result{
			Message: fmt.Sprintf("Reindexed %d of %d invoices", len(ops), scanned),
			Updated: len(ops),
		}, nil
	})
}
