package store

import (
	"context"
	"sort"
	"sync"

	"github.com/ppiankov/qbot/internal/embed"
	"github.com/ppiankov/qbot/internal/model"
)

// MemoryCollection keeps records and vectors in process memory
type MemoryCollection struct {
	name     string
	embedder embed.Embedder

	mu      sync.RWMutex
	records map[string]candidate
	order   []string // insertion order, used to break score ties
}

// NewMemoryCollection creates an empty in-memory collection
func NewMemoryCollection(name string, embedder embed.Embedder) *MemoryCollection {
	return &MemoryCollection{
		name:     name,
		embedder: embedder,
		records:  make(map[string]candidate),
	}
}

// Name returns the collection name
func (c *MemoryCollection) Name() string {
	return c.name
}

// Query ranks every record by cosine similarity to text
func (c *MemoryCollection) Query(ctx context.Context, text string, n int) ([]model.Match, error) {
	q, err := embedQuery(ctx, c.embedder, text)
	if err != nil {
		return nil, err
	}

	c.mu.RLock()
	candidates := make([]candidate, 0, len(c.order))
	for _, id := range c.order {
		candidates = append(candidates, c.records[id])
	}
	c.mu.RUnlock()

	return rankTopN(q, candidates, n)
}

// Get returns stored records for ids in request order
func (c *MemoryCollection) Get(ctx context.Context, ids []string) ([]model.Record, error) {
	ids = uniqueIDs(ids)

	c.mu.RLock()
	defer c.mu.RUnlock()

	found := make(map[string]model.Record, len(ids))
	for _, id := range ids {
		if cand, ok := c.records[id]; ok {
			found[id] = cand.record
		}
	}
	return inRequestOrder(ids, found), nil
}

// Upsert embeds and stores records, replacing existing ids
func (c *MemoryCollection) Upsert(ctx context.Context, records []model.Record) error {
	if len(records) == 0 {
		return nil
	}

	vectors, err := embedRecords(ctx, c.embedder, records)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for i, r := range records {
		if _, exists := c.records[r.ID]; !exists {
			c.order = append(c.order, r.ID)
		}
		c.records[r.ID] = candidate{record: r, vector: vectors[i]}
	}
	return nil
}

// Count returns the number of records
func (c *MemoryCollection) Count(ctx context.Context) (int, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.records), nil
}

// All returns every record ordered by id
func (c *MemoryCollection) All(ctx context.Context) ([]model.Record, error) {
	c.mu.RLock()
	out := make([]model.Record, 0, len(c.records))
	for _, cand := range c.records {
		out = append(out, cand.record)
	}
	c.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
