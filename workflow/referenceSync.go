package workflow

import (
	"context"
	"fmt"
	"strings"

	"github.com/mmdatafocus/winery_ingest/docstore"
	"github.com/mmdatafocus/winery_ingest/models"
)

// ReferenceSync describes a pick list derived from a source collection: the names in Target
// must be exactly the distinct non-empty values Extract yields over Source.
type ReferenceSync struct {
	Job     string
	Source  string
	Target  string
	Extract func(fields map[string]any) string
}

// BottleTypeSync derives bottle types from the bottleInfo of every invoice.
func BottleTypeSync(invoices, bottleTypes string) ReferenceSync {
	return ReferenceSync{
		Job:    JobSyncBottleTypes,
		Source: invoices,
		Target: bottleTypes,
		Extract: func(fields map[string]any) string {
			return docstore.String(fields, models.InvoiceBottleInfo)
		},
	}
}

func (j *Jobs) SyncBottleTypes(ctx context.Context) (*Result, error) {
	return j.Sync(ctx, BottleTypeSync(j.invoices(), j.bottleTypes()))
}

// Sync adds a reference item for every value missing from the target and deletes every
// item whose name no source record carries any more. A name that is still carried but has
// no active item gets its first item reactivated. Values are compared as stored; whitespace
// variants count as different names. Items that stay keep their other fields and items
// without a name are left alone.
//
// Deletes from an interrupted run are not undone; run it again to converge, it recomputes
// the delta from current state.
func (j *Jobs) Sync(ctx context.Context, rs ReferenceSync) (*Result, error) {
	return j.run(ctx, rs.Job, rs.Target, func(ctx context.Context) (*Result, error) {
		truth := map[string]bool{}
		var truthOrder []string
		err := j.Store.Scan(ctx, rs.Source, func(d docstore.Document) error {
			v := rs.Extract(d.Fields)
			if strings.TrimSpace(v) == "" || truth[v] {
				return nil
			}
			truth[v] = true
			truthOrder = append(truthOrder, v)
			return nil
		})
		if err != nil {
			return nil, scanFailed(rs.Job, err)
		}

		current := map[string][]string{}
		hasActive := map[string]bool{}
		var currentOrder []string
		err = j.Store.Scan(ctx, rs.Target, func(d docstore.Document) error {
			name := docstore.String(d.Fields, models.ReferenceName)
			if name == "" {
				return nil
			}
			if _, seen := current[name]; !seen {
				currentOrder = append(currentOrder, name)
			}
			current[name] = append(current[name], d.ID)
			if docstore.Bool(d.Fields, models.ReferenceActive) {
				hasActive[name] = true
			}
			return nil
		})
		if err != nil {
			return nil, scanFailed(rs.Job, err)
		}

		var ops []docstore.Op
		added, removed, reactivated := 0, 0, 0
		for _, name := range truthOrder {
			if ids, ok := current[name]; ok {
				if !hasActive[name] {
					ops = append(ops, docstore.Upsert(rs.Target, ids[0], map[string]any{models.ReferenceActive: true}, true))
					reactivated++
				}
				continue
			}
			item := models.NewReferenceItem(name)
			ops = append(ops, docstore.Upsert(rs.Target, j.Store.NewID(rs.Target), item.Fields(), false))
			added++
		}
		for _, name := range currentOrder {
			if truth[name] {
				continue
			}
			for _, id := range current[name] {
				ops = append(ops, docstore.Delete(rs.Target, id))
				removed++
			}
		}

		if len(ops) == 0 {
			return &Result{Message: fmt.Sprintf("%s already in sync (%d items)", rs.Target, len(truthOrder))}, nil
		}
		if _, err := j.committer(rs.Job).Apply(ctx, ops); err != nil {
			return nil, err
		}
		msg := fmt.Sprintf("%s synced: %d added, %d removed", rs.Target, added, removed)
		if reactivated > 0 {
			msg += fmt.Sprintf(", %d reactivated", reactivated)
		}
		return &Result{
			Message: msg,
			Added:   added,
			Removed: removed,
			Updated: reactivated,
		}, nil
	})
}
