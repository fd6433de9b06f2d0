package ingest

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ppiankov/qbot/internal/store"
	"github.com/ppiankov/qbot/internal/worker"
)

// Stats reports what an ingestion run wrote
type Stats struct {
	Verses   int
	Topics   int
	Duration time.Duration
}

// Ingester writes a corpus into a store's verse and theme collections
type Ingester struct {
	store     *store.Store
	processor *worker.BatchProcessor
	key       string // rate-limit key, the embedder name
	logger    *zap.Logger
}

// New creates an ingester. key selects the rate-limit bucket shared by all
// batches, normally the embedder name.
func New(s *store.Store, processor *worker.BatchProcessor, key string, logger *zap.Logger) *Ingester {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ingester{store: s, processor: processor, key: key, logger: logger}
}

// Run upserts every verse, then every derived topic. Upserts are idempotent
// so a failed run can simply be repeated.
func (in *Ingester) Run(ctx context.Context, c *Corpus, progress worker.Progress) (Stats, error) {
	start := time.Now()
	var stats Stats

	n, err := in.processor.Upsert(ctx, in.store.Verses, in.key, c.Records(), progress)
	stats.Verses = n
	if err != nil {
		return stats, fmt.Errorf("ingest verses: %w", err)
	}
	in.logger.Info("verses ingested", zap.String("collection", in.store.Verses.Name()), zap.Int("count", n))

	topics := c.Topics()
	n, err = in.processor.Upsert(ctx, in.store.Themes, in.key, TopicRecords(topics), nil)
	stats.Topics = n
	if err != nil {
		return stats, fmt.Errorf("ingest topics: %w", err)
	}
	in.logger.Info("topics ingested", zap.String("collection", in.store.Themes.Name()), zap.Int("count", n))

	stats.Duration = time.Since(start)
	return stats, nil
}
