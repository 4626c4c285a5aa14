// Package pipeline drives the single-pass streaming load: rows are built
// and validated in parallel, assembled into bounded batches by a single
// collector, and flushed to the store through a bounded writer pool with
// retry. A bad row or a failed batch never aborts the run.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"nhs-data-pipeline/config"
	"nhs-data-pipeline/models"
	"nhs-data-pipeline/services"
	"nhs-data-pipeline/source"
	"nhs-data-pipeline/storage"
	"nhs-data-pipeline/utils"
)

// Pipeline orchestrates one load run. It owns every TransformedRecord from
// creation until hand-off to the store.
type Pipeline struct {
	cfg       *config.Config
	builder   *services.Builder
	validator *services.Validator
	store     storage.RecordWriter
}

// sourceItem carries either one raw row or a row-level read error.
type sourceItem struct {
	row models.RawRow
	err error
}

// rowResult is the outcome of building and validating one row.
type rowResult struct {
	rec     *models.TransformedRecord
	verdict models.ValidationVerdict
	err     error
}

// New constructs a Pipeline. An unusable column mapping is a configuration
// error caught here, before any row is read.
func New(cfg *config.Config, mapping *models.ColumnMapping, store storage.RecordWriter) (*Pipeline, error) {
	if mapping == nil || len(mapping.Columns) == 0 {
		return nil, fmt.Errorf("pipeline: column mapping is empty")
	}

	var hasCode, hasPeriod bool
	for _, c := range mapping.Columns {
		if c.Domain == models.DomainMetadata {
			switch c.Metric {
			case "entity_code":
				hasCode = true
			case "period":
				hasPeriod = true
			}
		}
	}
	if !hasCode || !hasPeriod {
		return nil, fmt.Errorf("pipeline: mapping lacks required identity columns (entity_code, period)")
	}

	return &Pipeline{
		cfg:       cfg,
		builder:   services.NewBuilder(mapping),
		validator: services.NewValidator(cfg.CompletenessThreshold),
		store:     store,
	}, nil
}

// Run streams the source to completion and returns the run summary. The
// returned error is non-nil only for configuration-level failures (a failed
// --clear); row and batch failures are recorded in the summary instead.
func (p *Pipeline) Run(ctx context.Context, src source.RowSource, clear bool) (*models.RunSummary, error) {
	summary := &models.RunSummary{
		RunID:            uuid.NewString(),
		SourcePath:       p.cfg.SourcePath,
		State:            models.StateIdle,
		RejectionReasons: map[string]int{},
		StartedAt:        time.Now().UTC(),
	}

	if clear {
		log.Info("Clearing target table before load")
		if err := p.store.Clear(ctx); err != nil {
			summary.State = models.StateAborted
			summary.FinishedAt = time.Now().UTC()
			return summary, fmt.Errorf("pipeline: clear store: %w", err)
		}
	}

	summary.State = models.StateStreaming
	log.WithFields(log.Fields{
		"run_id":     summary.RunID,
		"source":     summary.SourcePath,
		"batch_size": p.cfg.BatchSize,
		"workers":    p.cfg.RowWorkers,
	}).Info("Pipeline run starting")

	workers := p.cfg.RowWorkers
	if workers < 1 {
		workers = 1
	}

	rows := make(chan sourceItem)
	results := make(chan rowResult, workers*2)

	g, gctx := errgroup.WithContext(ctx)

	// Single reader: the source yields one row at a time in file order.
	go func() {
		defer close(rows)
		for {
			row, err := src.Next()
			if err == io.EOF {
				return
			}
			select {
			case rows <- sourceItem{row: row, err: err}:
			case <-gctx.Done():
				return
			}
		}
	}()

	// Bounded build+validate workers. Transform order does not matter:
	// uniqueness is enforced by the (entity_code, period) key, not by
	// insertion order.
	for i := 0; i < workers; i++ {
		g.Go(func() error {
			for item := range rows {
				res := p.processItem(item)
				select {
				case results <- res:
				case <-gctx.Done():
					return gctx.Err()
				}
			}
			return nil
		})
	}

	go func() {
		_ = g.Wait()
		close(results)
	}()

	p.collect(ctx, results, summary)

	summary.FinishedAt = time.Now().UTC()
	switch {
	case ctx.Err() != nil:
		summary.State = models.StateAborted
	case summary.FailedBatches > 0:
		summary.State = models.StateCompletedWithFailures
	default:
		summary.State = models.StateCompleted
	}

	log.WithFields(log.Fields{
		"run_id":   summary.RunID,
		"state":    summary.State,
		"read":     summary.RowsRead,
		"written":  summary.RecordsWritten,
		"rejected": summary.RecordsRejected,
		"warned":   summary.RecordsWarned,
		"failed":   summary.FailedBatches,
	}).Info("Pipeline run finished")

	return summary, nil
}

func (p *Pipeline) processItem(item sourceItem) rowResult {
	if item.err != nil {
		return rowResult{err: item.err}
	}
	rec, err := p.builder.Build(item.row)
	if err != nil {
		return rowResult{err: err}
	}
	return rowResult{rec: rec, verdict: p.validator.Validate(rec)}
}

// collect is the single owner of batch assembly. Workers post completed
// records here; nothing else touches the accumulator.
func (p *Pipeline) collect(ctx context.Context, results <-chan rowResult, summary *models.RunSummary) {
	entities := utils.NewStringSet()
	periods := utils.NewStringSet()
	flushPool := utils.NewWorkerPool(p.cfg.WriteWorkers, p.cfg.WriteThrottleMs)

	var mu sync.Mutex // guards the flush-updated summary counters

	batch := make([]*models.TransformedRecord, 0, p.cfg.BatchSize)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		toWrite := batch
		batch = make([]*models.TransformedRecord, 0, p.cfg.BatchSize)

		flushPool.Submit(func() {
			retry := &utils.RetryConfig{
				MaxAttempts: p.cfg.MaxRetries,
				BaseDelay:   p.cfg.RetryBaseDelay,
			}
			err := retry.Do(ctx, "store upsert", func(ctx context.Context) error {
				return p.store.UpsertBatch(ctx, toWrite)
			})

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				summary.FailedBatches++
				log.WithField("records", len(toWrite)).Errorf("Batch permanently failed, continuing run: %v", err)
				return
			}
			summary.RecordsWritten += len(toWrite)
		})
	}

	for res := range results {
		summary.RowsRead++

		if res.err != nil {
			summary.RecordsRejected++
			summary.RejectionReasons[string(models.ErrRowBuildFailed)]++
			log.Debugf("Row rejected: %v", res.err)
			continue
		}

		if !res.verdict.IsValid {
			summary.RecordsRejected++
			for _, kind := range res.verdict.Errors {
				summary.RejectionReasons[string(kind)]++
			}
			continue
		}

		if len(res.verdict.Warnings) > 0 {
			summary.RecordsWarned++
			log.WithFields(log.Fields{
				"entity":       res.rec.EntityCode,
				"period":       res.rec.Period,
				"completeness": fmt.Sprintf("%.2f", res.verdict.Completeness),
			}).Debug("Record accepted with low completeness")
		}

		entities.Add(res.rec.EntityCode)
		periods.Add(res.rec.Period)

		batch = append(batch, res.rec)
		if len(batch) >= p.cfg.BatchSize {
			flush()
		}
	}

	// Stream exhausted: drain the final partial batch and all in-flight
	// writes. Run overwrites this with the terminal state.
	summary.State = models.StateDraining
	flush()
	flushPool.Wait()

	summary.DistinctEntities = entities.Size()
	summary.DistinctPeriods = periods.Size()
}
