package gemini

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/generative-ai-go/genai"
	"github.com/poiesic/ragline/ai"
)

// Embedder implements ai.Embedder using Gemini embedding models.
type Embedder struct {
	client    *genai.Client
	modelName string
	logger    *slog.Logger
}

var _ ai.Embedder = (*Embedder)(nil)

func newEmbedder(client *genai.Client, modelName string) *Embedder {
	return &Embedder{
		client:    client,
		modelName: modelName,
		logger:    slog.Default().With("component", "gemini-embedder"),
	}
}

// EmbedText generates a vector embedding for a single text string.
func (e *Embedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	e.logger.Debug("generating embedding for single text", "length", len(text))

	resp, err := e.client.EmbeddingModel(e.modelName).EmbedContent(ctx, genai.Text(text))
	if err != nil {
		return nil, fmt.Errorf("gemini embed: %w", err)
	}
	if resp.Embedding == nil {
		return []float32{}, nil
	}
	return resp.Embedding.Values, nil
}

// EmbedTexts batches all texts into one request.
func (e *Embedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	e.logger.Debug("generating embeddings for texts", "count", len(texts))

	em := e.client.EmbeddingModel(e.modelName)
	batch := em.NewBatch()
	for _, t := range texts {
		batch.AddContent(genai.Text(t))
	}

	resp, err := em.BatchEmbedContents(ctx, batch)
	if err != nil {
		return nil, fmt.Errorf("gemini batch embed: %w", err)
	}

	out := make([][]float32, 0, len(resp.Embeddings))
	for _, emb := range resp.Embeddings {
		out = append(out, emb.Values)
	}
	return out, nil
}
