// Package embed turns text into vectors for the semantic stores.
package embed

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/ppiankov/qbot/internal/model"
)

// Embedder generates vector embeddings for text
type Embedder interface {
	// Embed returns one vector per input text, in input order
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// Name identifies the backend and model, e.g. "openai:text-embedding-3-small".
	// It namespaces cached vectors.
	Name() string
}

// New creates an embedder from configuration
func New(cfg model.EmbeddingConfig, httpCfg model.HTTPConfig) (Embedder, error) {
	switch strings.ToLower(cfg.Provider) {
	case "openai":
		return NewOpenAIEmbedder(cfg)
	case "ollama":
		return NewOllamaEmbedder(cfg, httpCfg), nil
	case "gemini", "genai":
		return NewGeminiEmbedder(context.Background(), cfg)
	case "hash", "":
		return NewHashEmbedder(cfg.Dimensions), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider: %s (supported: openai, ollama, gemini, hash)", cfg.Provider)
	}
}

// Normalize scales v to unit length in place. Zero vectors are left untouched.
func Normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return v
	}
	norm := float32(math.Sqrt(sum))
	for i := range v {
		v[i] /= norm
	}
	return v
}

// checkCount guards against backends returning fewer vectors than inputs
func checkCount(name string, got, want int) error {
	if got != want {
		return fmt.Errorf("%s returned %d embeddings for %d inputs", name, got, want)
	}
	return nil
}
