// Package retrieval implements the query functions the router dispatches to:
// semantic verse search, context windows around references, and theme lookup.
// Every function returns result lines; callers join them once.
package retrieval

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/ppiankov/qbot/internal/model"
	"github.com/ppiankov/qbot/internal/store"
)

const (
	DefaultTopN   = 10
	DefaultWindow = 2
)

// Retriever runs read-only queries against the verse and theme collections
type Retriever struct {
	Verses store.Collection
	Themes store.Collection
	TopN   int // results per semantic query
	Window int // verses on each side of a CONTEXT reference
}

// New creates a retriever with default top-n and window
func New(verses, themes store.Collection) *Retriever {
	return &Retriever{
		Verses: verses,
		Themes: themes,
		TopN:   DefaultTopN,
		Window: DefaultWindow,
	}
}

func (r *Retriever) topN() int {
	if r.TopN <= 0 {
		return DefaultTopN
	}
	return r.TopN
}

func (r *Retriever) window() int {
	if r.Window < 0 {
		return DefaultWindow
	}
	return r.Window
}

// Line formats a verse record as "id: text"
func Line(rec model.Record) string {
	return rec.ID + ": " + rec.Document
}

// Find runs every query against the verse collection and returns the hits as
// "id: text" lines. Queries run concurrently; lines are deduplicated across
// the batch, keeping query order then rank order.
func (r *Retriever) Find(ctx context.Context, queries []string) ([]string, error) {
	results := make([][]model.Match, len(queries))

	g, gctx := errgroup.WithContext(ctx)
	for i, q := range queries {
		g.Go(func() error {
			matches, err := r.Verses.Query(gctx, q, r.topN())
			if err != nil {
				return fmt.Errorf("find %q: %w", q, err)
			}
			results[i] = matches
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	lines := []string{}
	for _, matches := range results {
		for _, m := range matches {
			line := Line(m.Record)
			if seen[line] {
				continue
			}
			seen[line] = true
			lines = append(lines, line)
		}
	}
	return lines, nil
}

// WindowIDs returns the ids from verse-window to verse+window in the same
// chapter. The lower bound is clamped to verse 1, the upper bound to MaxInt.
func WindowIDs(ref model.Ref, window int) []string {
	window = max(window, 0)
	if ref.Verse < 1 {
		return nil
	}
	lo := max(ref.Verse-window, 1)
	hi := math.MaxInt
	if ref.Verse <= math.MaxInt-window {
		hi = ref.Verse + window
	}

	ids := make([]string, 0, hi-lo+1)
	for v := lo; ; v++ {
		ids = append(ids, model.Ref{Chapter: ref.Chapter, Verse: v}.String())
		if v == hi {
			break
		}
	}
	return ids
}

// Context fetches the window around each reference as "id: text" lines.
// Ids missing from the store are absent; verses shared by overlapping
// windows appear once.
func (r *Retriever) Context(ctx context.Context, refs []model.Ref) ([]string, error) {
	var ids []string
	seen := make(map[string]bool)
	for _, ref := range refs {
		for _, id := range WindowIDs(ref, r.window()) {
			if !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
	}
	if len(ids) == 0 {
		return []string{}, nil
	}

	records, err := r.Verses.Get(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("context: %w", err)
	}

	lines := make([]string, 0, len(records))
	for _, rec := range records {
		lines = append(lines, Line(rec))
	}
	return lines, nil
}

// ThemeLabels returns the sorted, distinct topic labels closest to query
func (r *Retriever) ThemeLabels(ctx context.Context, query string) ([]string, error) {
	matches, err := r.Themes.Query(ctx, query, r.topN())
	if err != nil {
		return nil, fmt.Errorf("themes %q: %w", query, err)
	}

	seen := make(map[string]bool, len(matches))
	labels := make([]string, 0, len(matches))
	for _, m := range matches {
		label := strings.TrimSpace(m.Document)
		if label == "" || seen[label] {
			continue
		}
		seen[label] = true
		labels = append(labels, label)
	}
	sort.Strings(labels)
	return labels, nil
}

// ThemeVerses returns the verse ids carried by the named topics, in canonical
// order without duplicates
func (r *Retriever) ThemeVerses(ctx context.Context, labels []string) ([]string, error) {
	records, err := r.Themes.Get(ctx, labels)
	if err != nil {
		return nil, fmt.Errorf("theme verses: %w", err)
	}

	seen := make(map[string]bool)
	var ids []string
	for _, rec := range records {
		for _, id := range model.TopicFromRecord(rec).VerseIDs {
			if !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
	}
	model.SortIDs(ids)
	return ids, nil
}
