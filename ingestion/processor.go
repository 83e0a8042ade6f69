package ingestion

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/poiesic/ragline/ai"
	"github.com/poiesic/ragline/chunking"
	"github.com/poiesic/ragline/core"
	"github.com/poiesic/ragline/extract"
	"github.com/poiesic/ragline/storage"
)

// Request identifies one document to process.
type Request struct {
	JobID    string // generated when empty
	Path     string // local file to read
	Filename string // name reported to observers and stored with chunks; defaults to the base of Path
}

// SourceSelector picks the page source for a path.
type SourceSelector func(path string) (extract.Source, error)

// Processor composes the extract, chunk, and index stages into a lazy pull
// chain and reports progress to an Observer.
type Processor struct {
	embedder      ai.Embedder
	collection    storage.Collection
	chunker       *chunking.Chunker
	selectSource  SourceSelector
	batchSize     int
	maxAttempts   int
	retryDelay    time.Duration
	progressEvery int
	logger        *slog.Logger
}

// Option configures a Processor.
type Option func(*Processor) error

// WithBatchSize sets how many chunks are embedded before each storage write.
// Default is 10.
func WithBatchSize(size int) Option {
	return func(p *Processor) error {
		if size < 1 {
			return ErrInvalidBatchSize
		}
		p.batchSize = size
		return nil
	}
}

// WithRetry sets the embedding retry policy.
// Default is 3 attempts starting at 500ms.
func WithRetry(maxAttempts int, baseDelay time.Duration) Option {
	return func(p *Processor) error {
		if maxAttempts < 1 {
			return ErrInvalidMaxAttempts
		}
		p.maxAttempts = maxAttempts
		p.retryDelay = baseDelay
		return nil
	}
}

// WithProgressEvery sets how many items pass a stage between progress events.
// Default is 10.
func WithProgressEvery(n int) Option {
	return func(p *Processor) error {
		if n < 1 {
			n = DefaultProgressEvery
		}
		p.progressEvery = n
		return nil
	}
}

// WithChunker replaces the default chunker.
func WithChunker(chunker *chunking.Chunker) Option {
	return func(p *Processor) error {
		if chunker != nil {
			p.chunker = chunker
		}
		return nil
	}
}

// WithSourceSelector replaces extension-based source selection.
func WithSourceSelector(selector SourceSelector) Option {
	return func(p *Processor) error {
		if selector != nil {
			p.selectSource = selector
		}
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Processor) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger
		return nil
	}
}

// NewProcessor creates a document processor.
func NewProcessor(embedder ai.Embedder, collection storage.Collection, opts ...Option) (*Processor, error) {
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	if collection == nil {
		return nil, ErrCollectionRequired
	}

	p := &Processor{
		embedder:      embedder,
		collection:    collection,
		batchSize:     DefaultBatchSize,
		maxAttempts:   DefaultMaxAttempts,
		retryDelay:    DefaultRetryDelay,
		progressEvery: DefaultProgressEvery,
		logger:        slog.Default(),
	}

	for _, opt := range opts {
		if err := opt(p); err != nil {
			return nil, err
		}
	}

	if p.chunker == nil {
		chunker, err := chunking.New()
		if err != nil {
			return nil, err
		}
		p.chunker = chunker
	}
	if p.selectSource == nil {
		logger := p.logger
		p.selectSource = func(path string) (extract.Source, error) {
			return extract.ForPath(path, extract.WithLogger(logger))
		}
	}

	return p, nil
}

// Run processes one document. The observer is required. OnStart is called
// once, followed by exactly one of OnFinish or OnError. The returned stats
// cover whatever was processed, including on failure.
func (p *Processor) Run(ctx context.Context, req Request, observer Observer) (stats core.Stats, err error) {
	if observer == nil {
		return stats, ErrObserverRequired
	}
	if req.JobID == "" {
		req.JobID = uuid.NewString()
	}
	filename := req.Filename
	if filename == "" {
		filename = filepath.Base(req.Path)
	}

	logger := p.logger.With("jobID", req.JobID)
	start := time.Now()
	observer.OnStart(filename)

	var pages, chunks int
	var result IndexResult
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrPipelinePanic, r)
		}
		stats = core.Stats{
			Pages:    pages,
			Chunks:   result.Stored,
			Dropped:  result.Dropped,
			Batches:  result.Batches,
			Duration: time.Since(start),
		}
		if err != nil {
			logger.Error("run failed", "file", filename, "err", err)
			observer.OnError(err)
			return
		}
		logger.Info("run finished", "file", filename, "chunks", stats.Chunks, "dropped", stats.Dropped)
		observer.OnFinish(filename, stats)
	}()

	source, err := p.selectSource(req.Path)
	if err != nil {
		return stats, err
	}

	indexer, err := NewIndexer(p.embedder, p.collection, p.batchSize, p.maxAttempts, p.retryDelay, logger)
	if err != nil {
		return stats, err
	}

	pageStream := withSource(source.Extract(ctx, req.JobID, req.Path), filename)
	chunkStream := p.chunker.Process(observe(pageStream, StageChunking, p.progressEvery, observer, &pages), req.JobID)
	result, err = indexer.Index(ctx, observe(chunkStream, StageIndexing, p.progressEvery, observer, &chunks))
	return stats, err
}

// withSource stamps each page with the document name callers know it by,
// rather than the local path it was read from.
func withSource(pages iter.Seq2[core.PageRecord, error], name string) iter.Seq2[core.PageRecord, error] {
	return func(yield func(core.PageRecord, error) bool) {
		for page, err := range pages {
			if err == nil {
				page.Source = name
			}
			if !yield(page, err) {
				return
			}
		}
	}
}
