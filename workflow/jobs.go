package workflow

import (
	"context"
	"errors"
	"time"

	"github.com/mmdatafocus/winery_ingest/docstore"
	"github.com/mmdatafocus/winery_ingest/models"
	"github.com/mmdatafocus/winery_ingest/normalize"
	"github.com/mmdatafocus/winery_ingest/utils"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Job names, also used in logs, spans and errors.
const (
	JobSyncBottleTypes     = "sync.bottle-types"
	JobCollapseBottleTypes = "collapse.bottle-types"
	JobNormalizeBottleInfo = "normalize.bottle-info"
	JobReindexInvoices     = "reindex.invoices"
	JobIndexInvoices       = "index.invoices"
)

// Result is what an operator job reports. Only Message leaves the process; the counts are
// for callers and tests.
type Result struct {
	Message string `json:"message"`
	Added   int    `json:"-"`
	Removed int    `json:"-"`
	Updated int    `json:"-"`
}

// Jobs runs the operator-triggered maintenance jobs against the document store. Every job
// reads current state, computes its writes, and commits them through a docstore.Committer;
// a failure leaves earlier batches applied.
type Jobs struct {
	Store     docstore.Store
	Locker    JobLocker
	Tokenizer *normalize.Tokenizer
	Indexer   SearchIndexer
	Logger    *logrus.Logger
	Tracer    trace.Tracer

	Ceiling              int
	InvoiceCollection    string
	BottleTypeCollection string
	IndexBatch           int
}

func (j *Jobs) logger() *logrus.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return logrus.StandardLogger()
}

func (j *Jobs) tracer() trace.Tracer {
	if j.Tracer != nil {
		return j.Tracer
	}
	return otel.Tracer("winery-ingest")
}

func (j *Jobs) tokenizer() *normalize.Tokenizer {
	if j.Tokenizer != nil {
		return j.Tokenizer
	}
	return normalize.DefaultTokenizer()
}

func (j *Jobs) invoices() string {
	if j.InvoiceCollection != "" {
		return j.InvoiceCollection
	}
	return models.InvoiceCollection
}

func (j *Jobs) bottleTypes() string {
	if j.BottleTypeCollection != "" {
		return j.BottleTypeCollection
	}
	return models.BottleTypeCollection
}

func (j *Jobs) committer(job string) *docstore.Committer {
	return docstore.NewCommitter(j.Store, job, j.Ceiling, j.logger())
}

// run wraps fn in a span and the lease named lock. Jobs that touch the same collection
// share a lease.
func (j *Jobs) run(ctx context.Context, job, lock string, fn func(ctx context.Context) (*Result, error)) (*Result, error) {
	ctx, span := j.tracer().Start(ctx, "job."+job, trace.WithAttributes(attribute.String("job.lock", lock)))
	defer span.End()
	ctx = utils.SetJobNameInContext(ctx, job)

	fields := logrus.Fields{"job": job}
	if cid, ok := utils.GetCorrelationIdFromContext(ctx); ok {
		fields["correlation_id"] = cid
	}
	if username, ok := utils.GetUsernameFromContext(ctx); ok {
		fields["username"] = username
	}
	if role, ok := utils.GetRoleFromContext(ctx); ok {
		fields["role"] = role
	}

	if j.Locker != nil {
		leased, release, err := j.Locker.Acquire(ctx, lock)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			j.logger().WithFields(fields).Warn("[job.locked] " + err.Error())
			return nil, err
		}
		defer release()
		ctx = leased
	}

	start := time.Now()
	res, err := fn(ctx)
	fields["duration_ms"] = time.Since(start).Milliseconds()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		j.logger().WithFields(fields).Error("[job.failed] " + err.Error())
		return nil, err
	}
	span.SetAttributes(
		attribute.Int("job.added", res.Added),
		attribute.Int("job.removed", res.Removed),
		attribute.Int("job.updated", res.Updated),
	)
	j.logger().WithFields(fields).Info("[job.done] " + res.Message)
	return res, nil
}

func scanFailed(job string, err error) error {
	var jobErr *utils.JobError
	if errors.As(err, &jobErr) {
		return err
	}
	return utils.Internal(job, err)
}
