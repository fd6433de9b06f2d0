package store

import (
	"fmt"
	"math"
	"sort"

	"github.com/ppiankov/qbot/internal/model"
)

// Cosine returns the cosine similarity of a and b. Zero vectors score 0.
func Cosine(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d != %d", ErrDimensionMismatch, len(a), len(b))
	}

	var dotProduct, aMagnitude, bMagnitude float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		aMagnitude += float64(a[i]) * float64(a[i])
		bMagnitude += float64(b[i]) * float64(b[i])
	}

	if aMagnitude == 0 || bMagnitude == 0 {
		return 0, nil
	}
	return dotProduct / (math.Sqrt(aMagnitude) * math.Sqrt(bMagnitude)), nil
}

// candidate is a stored record with its vector, awaiting ranking
type candidate struct {
	record model.Record
	vector []float32
}

// rankTopN scores candidates against query and returns the n best.
// Ties keep candidate order.
func rankTopN(query []float32, candidates []candidate, n int) ([]model.Match, error) {
	matches := make([]model.Match, 0, len(candidates))
	for _, c := range candidates {
		score, err := Cosine(query, c.vector)
		if err != nil {
			return nil, fmt.Errorf("score %s: %w", c.record.ID, err)
		}
		matches = append(matches, model.Match{Record: c.record, Score: score})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})

	if n > 0 && len(matches) > n {
		matches = matches[:n]
	}
	return matches, nil
}
