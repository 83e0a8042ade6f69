package reembed

import (
	"context"
	"fmt"
	"time"

	"github.com/poiesic/ragline/ai"
	"github.com/poiesic/ragline/core"
	"github.com/poiesic/ragline/ingestion"
	"github.com/poiesic/ragline/storage"
)

// BatchProcessor embeds one batch of chunks and writes it back.
type BatchProcessor struct {
	collection     storage.Collection
	embedder       ai.Embedder
	maxRetries     int
	retryBaseDelay time.Duration
}

// NewBatchProcessor creates a batch processor.
func NewBatchProcessor(collection storage.Collection, embedder ai.Embedder, maxRetries int, retryBaseDelay time.Duration) *BatchProcessor {
	return &BatchProcessor{
		collection:     collection,
		embedder:       embedder,
		maxRetries:     maxRetries,
		retryBaseDelay: retryBaseDelay,
	}
}

// Process replaces the vector of every record in place and upserts the batch.
// Either the whole batch is written or none of it is.
func (bp *BatchProcessor) Process(ctx context.Context, records []core.ChunkRecord) error {
	if len(records) == 0 {
		return nil
	}

	texts := make([]string, len(records))
	for i := range records {
		texts[i] = records[i].Text
	}

	var embeddings [][]float32
	err := ingestion.RetryWithBackoff(ctx, func() error {
		var err error
		embeddings, err = bp.embedder.EmbedTexts(ctx, texts)
		return err
	}, bp.maxRetries, bp.retryBaseDelay)
	if err != nil {
		return fmt.Errorf("failed to generate embeddings after %d attempts: %w", bp.maxRetries, err)
	}

	if len(embeddings) != len(records) {
		return fmt.Errorf("%w: expected %d vectors, got %d", ErrEmbeddingMismatch, len(records), len(embeddings))
	}
	for i := range records {
		if len(embeddings[i]) == 0 {
			return fmt.Errorf("%w: empty vector for chunk %s", ErrEmbeddingMismatch, records[i].ID)
		}
		records[i].Vector = core.NormalizeVector(embeddings[i])
	}

	if err := bp.collection.BatchUpsert(ctx, records); err != nil {
		return fmt.Errorf("failed to update chunks: %w", err)
	}
	return nil
}
