// Package answer grounds a candidate answer in the verses it cites.
package answer

import (
	"context"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/ppiankov/qbot/internal/store"
)

var citationPattern = regexp.MustCompile(`\d+:\d+`)

// Citations returns the distinct chapter:verse tokens in text, in order of
// first appearance
func Citations(text string) []string {
	matches := citationPattern.FindAllString(text, -1)
	seen := make(map[string]bool, len(matches))
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		if !seen[m] {
			seen[m] = true
			out = append(out, m)
		}
	}
	return out
}

// Processor appends a References section listing the text of cited verses
type Processor struct {
	verses store.Collection
	logger *zap.Logger
}

// NewProcessor creates a processor resolving citations against verses
func NewProcessor(verses store.Collection, logger *zap.Logger) *Processor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Processor{verses: verses, logger: logger}
}

// Process returns ans followed by the references it cites. Citations that
// are not stored are dropped. The answer itself is never altered; when no
// citation resolves it is returned as-is.
func (p *Processor) Process(ctx context.Context, ans string) string {
	ids := Citations(ans)
	if len(ids) == 0 {
		return ans
	}

	records, err := p.verses.Get(ctx, ids)
	if err != nil {
		p.logger.Warn("resolve citations failed", zap.Strings("ids", ids), zap.Error(err))
		return ans
	}
	if len(records) == 0 {
		p.logger.Debug("no citation resolved", zap.Strings("ids", ids))
		return ans
	}

	var b strings.Builder
	b.WriteString(ans)
	b.WriteString("\n\nReferences:\n\n")
	for i, rec := range records {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString("[" + rec.ID + "]: " + rec.Document)
	}
	return b.String()
}
