// Package store holds the verse and theme collections: key-value lookup by
// id plus semantic search over embedded documents.
package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"

	"github.com/ppiankov/qbot/internal/embed"
	"github.com/ppiankov/qbot/internal/model"
)

// ErrDimensionMismatch is returned when a query vector and stored vectors
// come from embedders of different dimensionality
var ErrDimensionMismatch = errors.New("embedding dimension mismatch")

// Collection is a semantic index over records keyed by id
type Collection interface {
	// Name returns the collection name
	Name() string

	// Query returns up to n records ranked by similarity to text
	Query(ctx context.Context, text string, n int) ([]model.Match, error)

	// Get returns the records for ids in request order, silently omitting
	// ids that are not stored
	Get(ctx context.Context, ids []string) ([]model.Record, error)

	// Upsert inserts or replaces records by id
	Upsert(ctx context.Context, records []model.Record) error

	// Count returns the number of stored records
	Count(ctx context.Context) (int, error)

	// All returns every stored record ordered by id
	All(ctx context.Context) ([]model.Record, error)
}

// Store bundles the verse and theme collections of one backend
type Store struct {
	Verses Collection
	Themes Collection
	closer io.Closer
}

// Close releases the backend
func (s *Store) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}

// Open opens the backend selected by cfg.Backend
func Open(ctx context.Context, cfg model.StoreConfig, embedder embed.Embedder, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	switch strings.ToLower(cfg.Backend) {
	case "memory":
		return &Store{
			Verses: NewMemoryCollection(cfg.VerseCollection, embedder),
			Themes: NewMemoryCollection(cfg.ThemeCollection, embedder),
		}, nil

	case "sqlite", "":
		db, err := OpenSQLite(ctx, cfg.Path)
		if err != nil {
			return nil, err
		}
		logger.Debug("opened sqlite store", zap.String("path", cfg.Path))
		return &Store{
			Verses: db.Collection(cfg.VerseCollection, embedder),
			Themes: db.Collection(cfg.ThemeCollection, embedder),
			closer: db,
		}, nil

	case "postgres", "pgvector":
		db, err := OpenPostgres(ctx, cfg.DSN)
		if err != nil {
			return nil, err
		}
		logger.Debug("opened postgres store")
		return &Store{
			Verses: db.Collection(cfg.VerseCollection, embedder),
			Themes: db.Collection(cfg.ThemeCollection, embedder),
			closer: db,
		}, nil

	default:
		return nil, fmt.Errorf("unknown store backend: %s (supported: memory, sqlite, postgres)", cfg.Backend)
	}
}

// uniqueIDs drops duplicate and empty ids, keeping first occurrence order
func uniqueIDs(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

// inRequestOrder orders found records by ids, skipping missing ones
func inRequestOrder(ids []string, found map[string]model.Record) []model.Record {
	out := make([]model.Record, 0, len(found))
	for _, id := range ids {
		if rec, ok := found[id]; ok {
			out = append(out, rec)
		}
	}
	return out
}

// embedRecords embeds the text of every record in one call
func embedRecords(ctx context.Context, embedder embed.Embedder, records []model.Record) ([][]float32, error) {
	texts := make([]string, len(records))
	for i, r := range records {
		texts[i] = r.EmbedText()
	}
	vectors, err := embedder.Embed(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed records: %w", err)
	}
	if len(vectors) != len(records) {
		return nil, fmt.Errorf("embed records: got %d vectors for %d records", len(vectors), len(records))
	}
	return vectors, nil
}

// embedQuery embeds a single query text
func embedQuery(ctx context.Context, embedder embed.Embedder, text string) ([]float32, error) {
	vectors, err := embedder.Embed(ctx, []string{text})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("embed query: got %d vectors", len(vectors))
	}
	return vectors[0], nil
}
