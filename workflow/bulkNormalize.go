package workflow

import (
	"context"
	"fmt"

	"github.com/mmdatafocus/winery_ingest/docstore"
	"github.com/mmdatafocus/winery_ingest/models"
	"github.com/mmdatafocus/winery_ingest/utils"
)

type NormalizeRequest struct {
	OldNames []string `json:"oldNames" validate:"min=1,dive,notblank"`
	NewName  string   `json:"newName" validate:"notblank"`
}

func (j *Jobs) NormalizeBottleInfo(ctx context.Context, req NormalizeRequest) (*Result, error) {
	return j.Normalize(ctx, JobNormalizeBottleInfo, j.invoices(), models.InvoiceBottleInfo, req)
}

// Normalize rewrites field to req.NewName on every document of collection whose value is
// exactly one of req.OldNames. The request is validated before anything is read.
func (j *Jobs) Normalize(ctx context.Context, job, collection, field string, req NormalizeRequest) (*Result, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, &utils.JobError{Kind: utils.KindInvalidArgument, Job: job, Batch: -1, Message: err.Error(), Err: err}
	}

	old := make(map[string]bool, len(req.OldNames))
	for _, name := range req.OldNames {
		old[name] = true
	}

	return j.run(ctx, job, collection, func(ctx context.Context) (*Result, error) {
		var ops []docstore.Op
		err := j.Store.Scan(ctx, collection, func(d docstore.Document) error {
			v := docstore.String(d.Fields, field)
			if !old[v] || v == req.NewName {
				return nil
			}
			ops = append(ops, docstore.Upsert(collection, d.ID, map[string]any{field: req.NewName}, true))
			return nil
		})
		if err != nil {
			return nil, scanFailed(job, err)
		}

		if len(ops) == 0 {
			return &Result{Message: "No records found"}, nil
		}
		if _, err := j.committer(job).Apply(ctx, ops); err != nil {
			return nil, err
		}
		return &Result{
			Message: fmt.Sprintf("Updated %s on %d records to %q", field, len(ops), req.NewName),
			Updated: len(ops),
		}, nil
	})
}
