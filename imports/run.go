package imports

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mmdatafocus/winery_ingest/docstore"
	"github.com/mmdatafocus/winery_ingest/sheet"
	"github.com/mmdatafocus/winery_ingest/utils"
	"github.com/sirupsen/logrus"
)

// Config is what every importer needs to write documents.
type Config struct {
	Store      docstore.Store
	Collection string
	// Prefix is the upload folder the importer listens on.
	Prefix      string
	Ceiling     int
	Checkpoints Checkpointer
	Logger      *logrus.Logger
	Now         func() time.Time
}

func (cfg Config) now() time.Time {
	if cfg.Now != nil {
		return cfg.Now()
	}
	return time.Now().UTC()
}

func (cfg Config) logger() *logrus.Logger {
	if cfg.Logger != nil {
		return cfg.Logger
	}
	return logrus.StandardLogger()
}

func (cfg Config) checkpoints() Checkpointer {
	if cfg.Checkpoints != nil {
		return cfg.Checkpoints
	}
	return NoCheckpoints{}
}

// layout names the accepted header spellings per document field.
type layout struct {
	aliases  map[string][]string
	required []string
}

// columns maps each document field to the headers of this table that carry it.
type columns map[string][]string

func (l layout) resolve(headers []string) columns {
	cols := columns{}
	for field, aliases := range l.aliases {
		for _, alias := range aliases {
			for _, h := range headers {
				if h != "" && strings.EqualFold(h, alias) {
					cols[field] = append(cols[field], h)
				}
			}
		}
	}
	return cols
}

func (c columns) get(row sheet.Row, field string) sheet.Cell {
	return row.Get(c[field]...)
}

func (c columns) blank(row sheet.Row) bool {
	for field := range c {
		if !c.get(row, field).Blank() {
			return false
		}
	}
	return true
}

type rowMapper func(cols columns, row sheet.Row) (docstore.Op, bool)

// run parses the upload and pushes one operation per accepted row through the chunked
// committer. Progress is checkpointed after every committed batch, so a redelivered event
// for the same object version resumes after the last committed row.
func (cfg Config) run(ctx context.Context, job string, ev FileEvent, l layout, mapRow rowMapper) (*Result, error) {
	logger := cfg.logger()
	fields := logrus.Fields{"job": job, "bucket": ev.Bucket, "object": ev.Name, "generation": ev.Generation}

	table, err := sheet.Read(ev.Name, ev.MimeType, ev.Content)
	if err != nil {
		return nil, &utils.JobError{Kind: utils.KindInvalidArgument, Job: job, Batch: -1, Message: "unreadable spreadsheet " + ev.Name, Err: err}
	}
	if len(table.Headers) == 0 {
		return nil, utils.InvalidArgument(job, "header row required in "+ev.Name)
	}
	cols := l.resolve(table.Headers)
	for _, field := range l.required {
		if len(cols[field]) == 0 {
			return nil, utils.InvalidArgument(job, fmt.Sprintf("%s has no %s column", ev.Name, field))
		}
	}

	checkpoints := cfg.checkpoints()
	key := ev.Key()
	start, resumed := 0, 0
	cp, ok, err := checkpoints.Load(ctx, key)
	if err != nil {
		logger.WithFields(fields).Warn("[import.checkpoint.load] " + err.Error())
	} else if ok && cp.NextRow <= len(table.Rows) {
		start, resumed = cp.NextRow, cp.Applied
		logger.WithFields(fields).WithFields(logrus.Fields{
			"next_row": cp.NextRow,
			"applied":  cp.Applied,
		}).Info("[import.resume]")
	}

	committer := docstore.NewCommitter(cfg.Store, job, cfg.Ceiling, logger)
	buf := committer.NewBuffer()
	next := start
	buf.OnFlush = func(ctx context.Context, applied int) error {
		if err := checkpoints.Save(ctx, key, Checkpoint{NextRow: next, Applied: resumed + applied}); err != nil {
			logger.WithFields(fields).Warn("[import.checkpoint.save] " + err.Error())
		}
		return nil
	}

	rowsSkipped := 0
	for i := start; i < len(table.Rows); i++ {
		row := table.Rows[i]
		next = i + 1
		op, ok := mapRow(cols, row)
		if !ok {
			rowsSkipped++
			logger.WithFields(fields).WithField("row", row.Number).Debug("[import.row.skipped]")
			continue
		}
		if err := buf.Add(ctx, op); err != nil {
			return nil, err
		}
	}
	if err := buf.Flush(ctx); err != nil {
		return nil, err
	}
	if err := checkpoints.Clear(ctx, key); err != nil {
		logger.WithFields(fields).Warn("[import.checkpoint.clear] " + err.Error())
	}

	res := &Result{RecordsProcessed: resumed + buf.Applied(), RowsSkipped: rowsSkipped}
	logger.WithFields(fields).WithFields(logrus.Fields{
		"records": res.RecordsProcessed,
		"skipped": res.RowsSkipped,
		"batches": committer.Batches(),
	}).Info("[import.done]")
	return res, nil
}
