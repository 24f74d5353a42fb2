package workflow

import (
	"context"
	"fmt"

	"github.com/mmdatafocus/winery_ingest/docstore"
	"github.com/mmdatafocus/winery_ingest/models"
)

type referenceDoc struct {
	id        string
	sortOrder int
	active    bool
}

// keeps reports whether a should survive over b: lowest sortOrder, then active, then the
// smaller id. The survivor does not depend on scan order.
func (a referenceDoc) keeps(b referenceDoc) bool {
	if a.sortOrder != b.sortOrder {
		return a.sortOrder < b.sortOrder
	}
	if a.active != b.active {
		return a.active
	}
	return a.id < b.id
}

func (j *Jobs) CollapseBottleTypes(ctx context.Context) (*Result, error) {
	return j.Collapse(ctx, JobCollapseBottleTypes, j.bottleTypes())
}

// Collapse leaves at most one document per name in collection and deletes the rest.
// Documents without a name are not touched.
func (j *Jobs) Collapse(ctx context.Context, job, collection string) (*Result, error) {
	return j.run(ctx, job, collection, func(ctx context.Context) (*Result, error) {
		groups := map[string][]referenceDoc{}
		var order []string
		err := j.Store.Scan(ctx, collection, func(d docstore.Document) error {
			name := docstore.String(d.Fields, models.ReferenceName)
			if name == "" {
				return nil
			}
			if _, seen := groups[name]; !seen {
				order = append(order, name)
			}
			groups[name] = append(groups[name], referenceDoc{
				id:        d.ID,
				sortOrder: docstore.Int(d.Fields, models.ReferenceSortOrder, models.DefaultSortOrder),
				active:    docstore.Bool(d.Fields, models.ReferenceActive),
			})
			return nil
		})
		if err != nil {
			return nil, scanFailed(job, err)
		}

		var ops []docstore.Op
		for _, name := range order {
			docs := groups[name]
			if len(docs) < 2 {
				continue
			}
			survivor := docs[0]
			for _, d := range docs[1:] {
				if d.keeps(survivor) {
					survivor = d
				}
			}
			for _, d := range docs {
				if d.id != survivor.id {
					ops = append(ops, docstore.Delete(collection, d.id))
				}
			}
		}

		if len(ops) == 0 {
			return &Result{Message: fmt.Sprintf("No duplicates in %s", collection)}, nil
		}
		if _, err := j.committer(job).Apply(ctx, ops); err != nil {
			return nil, err
		}
		return &Result{
			Message: fmt.Sprintf("Removed %d duplicates from %s", len(ops), collection),
			Removed: len(ops),
		}, nil
	})
}
