package worker

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/ppiankov/qbot/internal/model"
)

// Upserter is the write side of a collection
type Upserter interface {
	Name() string
	Upsert(ctx context.Context, records []model.Record) error
}

// UpsertJob writes one batch of records to a collection
type UpsertJob struct {
	Target  Upserter
	Records []model.Record
	Limiter *Limiter
	Key     string // limiter key
}

// Execute waits for rate-limit clearance and upserts the batch
func (j *UpsertJob) Execute(ctx context.Context) Result {
	res := &UpsertResult{Collection: j.Target.Name(), Records: len(j.Records)}

	if j.Limiter != nil {
		if err := j.Limiter.Wait(ctx, j.Key); err != nil {
			res.Error = err
			return res
		}
	}

	if err := j.Target.Upsert(ctx, j.Records); err != nil {
		res.Error = fmt.Errorf("upsert %d records into %s: %w", len(j.Records), j.Target.Name(), err)
	}
	return res
}

// UpsertResult is the outcome of one UpsertJob
type UpsertResult struct {
	Collection string
	Records    int
	Error      error
}

// GetError returns the error from the upsert
func (r *UpsertResult) GetError() error {
	return r.Error
}

// Progress is called after every finished batch with the running totals
type Progress func(done, total int)

// BatchProcessor splits records into batches and upserts them concurrently
type BatchProcessor struct {
	concurrency int
	batchSize   int
	limiter     *Limiter
	logger      *zap.Logger
}

// NewBatchProcessor creates a batch processor. limiter may be nil.
func NewBatchProcessor(concurrency, batchSize int, limiter *Limiter, logger *zap.Logger) *BatchProcessor {
	if batchSize <= 0 {
		batchSize = 64
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BatchProcessor{
		concurrency: concurrency,
		batchSize:   batchSize,
		limiter:     limiter,
		logger:      logger,
	}
}

// Batches splits records into consecutive slices of at most size records
func Batches(records []model.Record, size int) [][]model.Record {
	if size <= 0 {
		size = len(records)
	}
	var out [][]model.Record
	for start := 0; start < len(records); start += size {
		end := min(start+size, len(records))
		out = append(out, records[start:end])
	}
	return out
}

// Upsert writes records to target in concurrent batches and returns how
// many records were written. The first batch error is returned after all
// batches finish.
func (b *BatchProcessor) Upsert(ctx context.Context, target Upserter, key string, records []model.Record, progress Progress) (int, error) {
	batches := Batches(records, b.batchSize)
	if len(batches) == 0 {
		return 0, nil
	}

	pool := NewPool(ctx, b.concurrency)
	pool.Start()

	go func() {
		defer pool.Close()
		for _, batch := range batches {
			if err := pool.Submit(&UpsertJob{Target: target, Records: batch, Limiter: b.limiter, Key: key}); err != nil {
				return
			}
		}
	}()

	written := 0
	var firstErr error
	finished := 0
	for result := range pool.Results() {
		finished++
		res := result.(*UpsertResult)
		if res.Error != nil {
			b.logger.Warn("batch failed", zap.String("collection", res.Collection), zap.Error(res.Error))
			if firstErr == nil {
				firstErr = res.Error
			}
			continue
		}
		written += res.Records
		if progress != nil {
			progress(written, len(records))
		}
	}

	if firstErr == nil && finished < len(batches) {
		firstErr = ctx.Err()
		if firstErr == nil {
			firstErr = fmt.Errorf("%d of %d batches did not run", len(batches)-finished, len(batches))
		}
	}
	return written, firstErr
}
