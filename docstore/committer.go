package docstore

import (
	"context"

	"github.com/mmdatafocus/winery_ingest/utils"
	"github.com/sirupsen/logrus"
)

// Committer splits writes into transactional batches of at most Ceiling operations and
// commits them strictly in order, batch N+1 only after batch N has been acknowledged.
//
// Atomicity is per batch only. When a commit fails, the batches before it stay applied and
// the returned *utils.JobError carries their operation count in Applied. Re-running an
// upsert-only job is therefore safe; re-running a job that issued deletes is not unless its
// delta is recomputed from current state.
//
// A Committer counts batches across calls so errors name the batch index within the job;
// it is not safe for concurrent use.
type Committer struct {
	Store   Store
	Ceiling int
	Job     string
	Logger  *logrus.Logger

	batches int
	applied int
}

func NewCommitter(store Store, job string, ceiling int, logger *logrus.Logger) *Committer {
	return &Committer{Store: store, Job: job, Ceiling: ceiling, Logger: logger}
}

func (c *Committer) ceiling() int {
	if c.Ceiling <= 0 {
		return DefaultCeiling
	}
	return c.Ceiling
}

// Apply commits ops and returns how many were applied. On error the count is the number
// confirmed written by this call before the failing batch.
func (c *Committer) Apply(ctx context.Context, ops []Op) (int, error) {
	if c.Job == "" {
		c.Job, _ = utils.GetJobNameFromContext(ctx)
	}
	ceiling := c.ceiling()
	applied := 0
	for start := 0; start < len(ops); start += ceiling {
		end := min(start+ceiling, len(ops))
		batch := ops[start:end]

		if err := ctx.Err(); err != nil {
			return applied, c.fail(err)
		}
		for _, op := range batch {
			if err := op.validate(); err != nil {
				return applied, c.fail(err)
			}
		}
		if err := c.Store.Commit(ctx, batch); err != nil {
			return applied, c.fail(err)
		}

		applied += len(batch)
		c.applied += len(batch)
		if c.Logger != nil {
			c.Logger.WithFields(logrus.Fields{
				"job":     c.Job,
				"batch":   c.batches,
				"ops":     len(batch),
				"applied": c.applied,
			}).Debug("[docstore.commit]")
		}
		c.batches++
	}
	return applied, nil
}

// Batches is the number of batches committed so far.
func (c *Committer) Batches() int { return c.batches }

// Applied is the number of operations committed so far across all calls.
func (c *Committer) Applied() int { return c.applied }

func (c *Committer) fail(err error) error {
	jobErr := &utils.JobError{
		Kind:    utils.KindInternal,
		Job:     c.Job,
		Batch:   c.batches,
		Applied: c.applied,
		Err:     err,
	}
	if c.Logger != nil {
		c.Logger.WithFields(logrus.Fields{
			"job":     c.Job,
			"batch":   c.batches,
			"applied": c.applied,
			"error":   err.Error(),
		}).Error("[docstore.commit.failed]")
	}
	return jobErr
}
