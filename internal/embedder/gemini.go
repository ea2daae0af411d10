package embedder

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// geminiModels is the subset of *genai.Models used by GeminiEmbedder.
type geminiModels interface {
	EmbedContent(ctx context.Context, model string, contents []*genai.Content, config *genai.EmbedContentConfig) (*genai.EmbedContentResponse, error)
}

// GeminiEmbedder implements rag.Embedder using the Gemini embedContent API.
// It is the reference backend: text-embedding-004 produces 768-dimension
// vectors, matching the Postgres schema.
type GeminiEmbedder struct {
	// models is the Gemini models service.
	models geminiModels
	// model is the embedding model name (e.g. "text-embedding-004").
	model string
	// dimensions requests a reduced output size when > 0.
	dimensions int
}

// GeminiConfig holds the settings for constructing a GeminiEmbedder.
type GeminiConfig struct {
	// Model is the embedding model name (default: text-embedding-004).
	Model string
	// Dimensions optionally truncates the output vector.
	Dimensions int
}

// NewGeminiEmbedder constructs a GeminiEmbedder on an existing genai client.
func NewGeminiEmbedder(client *genai.Client, cfg *GeminiConfig) (*GeminiEmbedder, error) {
	if client == nil {
		return nil, fmt.Errorf("gemini embedder: client must not be nil")
	}
	return newGeminiEmbedder(client.Models, cfg), nil
}

func newGeminiEmbedder(models geminiModels, cfg *GeminiConfig) *GeminiEmbedder {
	model := cfg.Model
	if model == "" {
		model = defaultGeminiModel
	}
	return &GeminiEmbedder{models: models, model: model, dimensions: cfg.Dimensions}
}

// Embed converts a batch of texts into their corresponding embeddings.
// The returned slice is parallel to the input slice.
func (e *GeminiEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("gemini embedder: no texts provided")
	}
	contents := make([]*genai.Content, 0, len(texts))
	for _, t := range texts {
		contents = append(contents, genai.NewContentFromText(t, genai.RoleUser))
	}

	var cfg *genai.EmbedContentConfig
	if e.dimensions > 0 {
		dims := int32(e.dimensions)
		cfg = &genai.EmbedContentConfig{OutputDimensionality: &dims}
	}

	resp, err := e.models.EmbedContent(ctx, e.model, contents, cfg)
	if err != nil {
		return nil, fmt.Errorf("gemini embedder: request failed: %w", err)
	}
	if resp == nil || len(resp.Embeddings) != len(texts) {
		got := 0
		if resp != nil {
			got = len(resp.Embeddings)
		}
		return nil, fmt.Errorf("gemini embedder: expected %d embeddings, got %d", len(texts), got)
	}

	out := make([][]float32, len(resp.Embeddings))
	for i, emb := range resp.Embeddings {
		if emb == nil || len(emb.Values) == 0 {
			return nil, fmt.Errorf("gemini embedder: empty embedding at index %d", i)
		}
		out[i] = emb.Values
	}
	return out, nil
}
