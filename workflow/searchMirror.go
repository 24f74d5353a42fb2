package workflow

import (
	"context"
	"fmt"

	"cloud.google.com/go/pubsub"
	"github.com/mmdatafocus/winery_ingest/config"
	"github.com/mmdatafocus/winery_ingest/docstore"
	"github.com/mmdatafocus/winery_ingest/utils"
)

const defaultIndexBatch = 500

// IndexRecord is one document as sent to the search index, with its id under "objectID".
type IndexRecord map[string]any

type SearchIndexer interface {
	Index(ctx context.Context, collection string, records []IndexRecord) error
}

// PubSubIndexer hands each batch to the search indexer as one Pub/Sub message.
type PubSubIndexer struct {
	Topic *pubsub.Topic
}

type indexMessage struct {
	Collection string        `json:"collection"`
	Records    []IndexRecord `json:"records"`
}

func (p *PubSubIndexer) Index(ctx context.Context, collection string, records []IndexRecord) error {
	_, err := config.PublishJSON(ctx, p.Topic, indexMessage{Collection: collection, Records: records}, map[string]string{
		"collection": collection,
	})
	return err
}

// MirrorInvoices pushes every invoice to the search index in batches.
func (j *Jobs) MirrorInvoices(ctx context.Context) (*Result, error) {
	collection := j.invoices()
	return j.run(ctx, JobIndexInvoices, "index:"+collection, func(ctx context.Context) (*Result, error) {
		if j.Indexer == nil {
			return nil, utils.Internal(JobIndexInvoices, fmt.Errorf("search index is not configured"))
		}
		size := j.IndexBatch
		if size <= 0 {
			size = defaultIndexBatch
		}

		batch := make([]IndexRecord, 0, size)
		sent, batches := 0, 0
		flush := func(ctx context.Context) error {
			if len(batch) == 0 {
				return nil
			}
			if err := j.Indexer.Index(ctx, collection, batch); err != nil {
				return &utils.JobError{Kind: utils.KindInternal, Job: JobIndexInvoices, Batch: batches, Applied: sent, Err: err}
			}
			sent += len(batch)
			batches++
			batch = make([]IndexRecord, 0, size)
			return nil
		}

		err := j.Store.Scan(ctx, collection, func(d docstore.Document) error {
			record := make(IndexRecord, len(d.Fields)+1)
			for k, v := range d.Fields {
				record[k] = v
			}
			record["objectID"] = d.ID
			batch = append(batch, record)
			if len(batch) >= size {
				return flush(ctx)
			}
			return nil
		})
		if err == nil {
			err = flush(ctx)
		}
		if err != nil {
			return nil, scanFailed(JobIndexInvoices, err)
		}
		return &Result{
			Message: fmt.Sprintf("Indexed %d invoices in %d batches", sent, batches),
			Updated: sent,
		}, nil
	})
}
