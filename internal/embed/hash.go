package embed

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"
	"unicode"
)

// HashEmbedder is a deterministic, dependency-free embedder based on
// signed feature hashing of word unigrams and bigrams. It needs no network
// and is used offline and in tests.
type HashEmbedder struct {
	dims int
}

// NewHashEmbedder creates a hash embedder producing dims-dimensional vectors
func NewHashEmbedder(dims int) *HashEmbedder {
	if dims <= 0 {
		dims = 256
	}
	return &HashEmbedder{dims: dims}
}

// Name returns the embedder name
func (e *HashEmbedder) Name() string {
	return fmt.Sprintf("hash:%d", e.dims)
}

// Embed hashes every text into a unit vector
func (e *HashEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out[i] = e.vector(text)
	}
	return out, nil
}

func (e *HashEmbedder) vector(text string) []float32 {
	v := make([]float32, e.dims)
	words := tokenize(text)

	for i, w := range words {
		e.add(v, w, 1)
		if i > 0 {
			e.add(v, words[i-1]+" "+w, 0.5)
		}
	}

	return Normalize(v)
}

func (e *HashEmbedder) add(v []float32, feature string, weight float32) {
	h := fnv.New64a()
	_, _ = h.Write([]byte(feature))
	sum := h.Sum64()

	idx := int(sum % uint64(e.dims))
	if sum&(1<<63) != 0 {
		weight = -weight
	}
	v[idx] += weight
}

// tokenize lowercases text and splits it on anything that is not a letter
// or digit, dropping very short tokens
func tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	words := fields[:0]
	for _, f := range fields {
		if len([]rune(f)) > 1 {
			words = append(words, f)
		}
	}
	return words
}
