package embed

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"github.com/ppiankov/qbot/internal/model"
)

// GeminiEmbedder generates embeddings using Google's Gemini API
type GeminiEmbedder struct {
	client *genai.Client
	model  string
}

// NewGeminiEmbedder creates a new Gemini embedder
func NewGeminiEmbedder(ctx context.Context, cfg model.EmbeddingConfig) (*GeminiEmbedder, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("Gemini API key is required for embeddings")
	}

	m := cfg.Model
	if m == "" {
		m = "gemini-embedding-001"
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create Gemini client: %w", err)
	}

	return &GeminiEmbedder{client: client, model: m}, nil
}

// Name returns the embedder name
func (e *GeminiEmbedder) Name() string {
	return "gemini:" + e.model
}

// Embed embeds all texts in one batched request
func (e *GeminiEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	contents := make([]*genai.Content, len(texts))
	for i, text := range texts {
		contents[i] = genai.NewContentFromText(text, genai.RoleUser)
	}

	result, err := e.client.Models.EmbedContent(ctx, e.model, contents, &genai.EmbedContentConfig{
		TaskType: "SEMANTIC_SIMILARITY",
	})
	if err != nil {
		return nil, fmt.Errorf("Gemini embed error: %w", err)
	}
	if err := checkCount("gemini", len(result.Embeddings), len(texts)); err != nil {
		return nil, err
	}

	out := make([][]float32, len(result.Embeddings))
	for i, emb := range result.Embeddings {
		out[i] = emb.Values
	}
	return out, nil
}
