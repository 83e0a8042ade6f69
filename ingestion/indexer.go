package ingestion

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"time"

	"github.com/poiesic/ragline/ai"
	"github.com/poiesic/ragline/core"
	"github.com/poiesic/ragline/storage"
)

const (
	DefaultBatchSize   = 10
	DefaultMaxAttempts = 3
	DefaultRetryDelay  = 500 * time.Millisecond
)

// IndexResult counts what happened to the chunks an Indexer consumed.
// Stored + Dropped equals the number of chunks pulled.
type IndexResult struct {
	Stored  int
	Dropped int
	Batches int
}

// Indexer is the sink of the pipeline. It groups chunks into fixed-size
// batches, embeds each chunk individually, and writes each batch's
// successfully embedded chunks with a single upsert.
type Indexer struct {
	embedder    ai.Embedder
	collection  storage.Collection
	batchSize   int
	maxAttempts int
	retryDelay  time.Duration
	logger      *slog.Logger
}

// NewIndexer creates an Indexer.
func NewIndexer(embedder ai.Embedder, collection storage.Collection, batchSize, maxAttempts int, retryDelay time.Duration, logger *slog.Logger) (*Indexer, error) {
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	if collection == nil {
		return nil, ErrCollectionRequired
	}
	if batchSize < 1 {
		return nil, ErrInvalidBatchSize
	}
	if maxAttempts < 1 {
		return nil, ErrInvalidMaxAttempts
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Indexer{
		embedder:    embedder,
		collection:  collection,
		batchSize:   batchSize,
		maxAttempts: maxAttempts,
		retryDelay:  retryDelay,
		logger:      logger.With("component", "indexer"),
	}, nil
}

// Index consumes chunks until the stream ends or fails. The returned
// result is valid even when err is non-nil and covers everything pulled
// before the failure.
func (ix *Indexer) Index(ctx context.Context, chunks iter.Seq2[core.ChunkRecord, error]) (IndexResult, error) {
	var result IndexResult
	batch := make([]core.ChunkRecord, 0, ix.batchSize)

	for chunk, err := range chunks {
		if err != nil {
			// Chunks waiting in the partial batch are never stored.
			result.Dropped += len(batch)
			return result, err
		}
		batch = append(batch, chunk)
		if len(batch) >= ix.batchSize {
			if err := ix.flush(ctx, batch, &result); err != nil {
				return result, err
			}
			batch = batch[:0]
		}
	}

	if len(batch) > 0 {
		if err := ix.flush(ctx, batch, &result); err != nil {
			return result, err
		}
	}
	return result, nil
}

// flush embeds every chunk in batch and stores the ones that succeeded.
// Chunks that never reach storage are counted as dropped.
func (ix *Indexer) flush(ctx context.Context, batch []core.ChunkRecord, result *IndexResult) error {
	embedded := make([]core.ChunkRecord, 0, len(batch))
	for i, chunk := range batch {
		vector, err := ix.embed(ctx, chunk.Text)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				result.Dropped += len(embedded) + len(batch) - i
				return ctxErr
			}
			ix.logger.Warn("embedding failed, dropping chunk", "chunkID", chunk.ID, "err", err)
			result.Dropped++
			continue
		}
		chunk.Vector = vector
		embedded = append(embedded, chunk)
	}

	if len(embedded) == 0 {
		return nil
	}

	if err := ix.collection.BatchUpsert(ctx, embedded); err != nil {
		result.Dropped += len(embedded)
		return fmt.Errorf("store batch of %d chunks: %w", len(embedded), err)
	}
	result.Stored += len(embedded)
	result.Batches++
	ix.logger.Debug("stored batch", "count", len(embedded))
	return nil
}

func (ix *Indexer) embed(ctx context.Context, text string) ([]float32, error) {
	var vector []float32
	err := RetryWithBackoff(ctx, func() error {
		v, err := ix.embedder.EmbedText(ctx, text)
		if err != nil {
			return err
		}
		if len(v) == 0 {
			return ErrEmptyEmbedding
		}
		vector = v
		return nil
	}, ix.maxAttempts, ix.retryDelay)
	if err != nil {
		return nil, err
	}
	return core.NormalizeVector(vector), nil
}
