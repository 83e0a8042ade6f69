package reembed

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/poiesic/ragline/ai"
	"github.com/poiesic/ragline/core"
	"github.com/poiesic/ragline/storage"
)

// Collection is a chunk store that can also be scanned.
type Collection interface {
	storage.Collection
	storage.Scanner
}

// Config controls batching, reporting and retry.
type Config struct {
	// BatchSize is the number of chunks embedded and written together.
	BatchSize int

	// ReportInterval is how often to report progress, in chunks.
	ReportInterval int

	// MaxRetries is the maximum number of embedding attempts per batch.
	MaxRetries int

	// RetryDelay is the base delay for exponential backoff.
	RetryDelay time.Duration
}

func DefaultConfig() *Config {
	return &Config{
		BatchSize:      100,
		ReportInterval: 100,
		MaxRetries:     3,
		RetryDelay:     1 * time.Second,
	}
}

// Result summarizes a reembedding run.
type Result struct {
	Chunks  int
	Batches int
	Elapsed time.Duration
}

type Reembedder struct {
	collection Collection
	config     *Config
	progress   io.Writer
	processor  *BatchProcessor
	logger     *slog.Logger
}

// NewReembedder creates a reembedder that writes progress lines to progress.
// A nil config means DefaultConfig().
func NewReembedder(collection Collection, embedder ai.Embedder, config *Config, progress io.Writer) (*Reembedder, error) {
	if collection == nil {
		return nil, ErrCollectionRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	if config == nil {
		config = DefaultConfig()
	}
	if config.BatchSize <= 0 {
		config.BatchSize = DefaultConfig().BatchSize
	}
	if progress == nil {
		progress = io.Discard
	}

	return &Reembedder{
		collection: collection,
		config:     config,
		progress:   progress,
		processor:  NewBatchProcessor(collection, embedder, config.MaxRetries, config.RetryDelay),
		logger:     slog.Default().With("component", "reembedder"),
	}, nil
}

// Run reembeds every chunk. A failed batch stops the run; batches already
// written keep their new vectors.
func (r *Reembedder) Run(ctx context.Context) (Result, error) {
	total, err := r.collection.Count(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("failed to count chunks: %w", err)
	}
	if total == 0 {
		fmt.Fprintf(r.progress, "No chunks found in collection (0 chunks)\n")
		return Result{}, nil
	}

	fmt.Fprintf(r.progress, "Starting reembedding of %d chunks (batch size: %d)\n",
		total, r.config.BatchSize)

	tracker := NewProgressTracker(r.progress, total, r.config.ReportInterval)
	tracker.Start()

	var res Result
	batch := make([]core.ChunkRecord, 0, r.config.BatchSize)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := r.processor.Process(ctx, batch); err != nil {
			return fmt.Errorf("failed to process batch %d: %w", res.Batches+1, err)
		}
		res.Batches++
		res.Chunks += len(batch)
		tracker.Update(res.Chunks)
		batch = batch[:0]
		return nil
	}

	for record, err := range r.collection.Scan(ctx) {
		if err != nil {
			res.Elapsed = tracker.Elapsed()
			return res, fmt.Errorf("failed to scan chunks: %w", err)
		}
		batch = append(batch, record)
		if len(batch) == r.config.BatchSize {
			if err := flush(); err != nil {
				res.Elapsed = tracker.Elapsed()
				return res, err
			}
		}
	}
	if err := flush(); err != nil {
		res.Elapsed = tracker.Elapsed()
		return res, err
	}

	tracker.Finish()
	res.Elapsed = tracker.Elapsed()

	fmt.Fprintf(r.progress, "Reembedding complete. Processed %d chunks in %v (%.1f chunks/sec)\n",
		res.Chunks, res.Elapsed.Round(time.Second), float64(res.Chunks)/res.Elapsed.Seconds())
	r.logger.Info("reembedding complete", "chunks", res.Chunks, "batches", res.Batches)
	return res, nil
}
