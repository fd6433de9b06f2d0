package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/ppiankov/qbot/internal/model"
	"github.com/ppiankov/qbot/internal/store"
)

// Export writes every verse of the collection in the normalized format,
// keyed by "chapter:verse"
func Export(ctx context.Context, verses store.Collection, w io.Writer) (int, error) {
	records, err := verses.All(ctx)
	if err != nil {
		return 0, fmt.Errorf("export: %w", err)
	}

	out := make(map[string]model.Verse, len(records))
	for _, rec := range records {
		v, err := model.VerseFromRecord(rec)
		if err != nil {
			return 0, fmt.Errorf("export %s: %w", rec.ID, err)
		}
		if v.Topics == nil {
			v.Topics = []string{}
		}
		out[v.ID()] = v
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return 0, fmt.Errorf("encode export: %w", err)
	}
	return len(out), nil
}
