// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package ragline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"

	"github.com/poiesic/ragline/ai"
	"github.com/poiesic/ragline/ai/gemini"
	"github.com/poiesic/ragline/ai/openai"
	"github.com/poiesic/ragline/chunking"
	"github.com/poiesic/ragline/config"
	"github.com/poiesic/ragline/extract"
	"github.com/poiesic/ragline/ingestion"
	"github.com/poiesic/ragline/jobs"
	"github.com/poiesic/ragline/reembed"
	"github.com/poiesic/ragline/search"
	"github.com/poiesic/ragline/server"
	"github.com/poiesic/ragline/storage"
	"github.com/poiesic/ragline/storage/badger"
	"github.com/poiesic/ragline/storage/pgvector"
	"github.com/poiesic/ragline/uploads"
)

// Engine owns the long-lived resources (vector store and model provider)
// and builds the components that use them.
type Engine struct {
	cfg        *config.Config
	backend    *badger.Backend // nil unless the badger store is selected
	collection storage.Collection
	provider   ai.AIProvider
	logger     *slog.Logger
}

// EngineOption configures an Engine.
type EngineOption func(*engineOptions)

type engineOptions struct {
	provider ai.AIProvider
	logger   *slog.Logger
}

// WithProvider uses provider instead of building one from the config.
// The engine takes ownership and closes it.
func WithProvider(provider ai.AIProvider) EngineOption {
	return func(o *engineOptions) {
		o.provider = provider
	}
}

// WithLogger sets the logger handed to every component.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) EngineOption {
	return func(o *engineOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// Open validates cfg and opens the vector store and model provider it names.
func Open(ctx context.Context, cfg *config.Config, opts ...EngineOption) (*Engine, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: nil config", config.ErrInvalidConfig)
	}
	options := &engineOptions{logger: slog.Default()}
	for _, opt := range opts {
		opt(options)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	e := &Engine{cfg: cfg, logger: options.logger}

	switch cfg.Store {
	case config.StorePgvector:
		coll, err := pgvector.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		e.collection = coll
	default:
		backend, err := badger.OpenBackend(cfg.DataDir, false)
		if err != nil {
			return nil, err
		}
		coll, err := badger.NewCollection(backend)
		if err != nil {
			backend.Close()
			return nil, err
		}
		e.backend = backend
		e.collection = coll
	}

	e.provider = options.provider
	if e.provider == nil {
		provider, err := newProvider(ctx, cfg.AI)
		if err != nil {
			e.closeStore()
			return nil, err
		}
		e.provider = provider
	}

	e.logger.Debug("engine opened", "store", cfg.Store, "provider", cfg.AI.Provider)
	return e, nil
}

func newProvider(ctx context.Context, cfg *ai.Config) (ai.AIProvider, error) {
	if cfg.Provider == ai.ProviderGemini {
		return gemini.NewProvider(ctx, cfg)
	}
	return openai.NewProvider(cfg)
}

// Close releases the provider, then the store.
func (e *Engine) Close() error {
	var errs []error
	if err := e.provider.Close(); err != nil {
		e.logger.Error("error closing AI provider", "err", err)
		errs = append(errs, err)
	}
	if err := e.closeStore(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (e *Engine) closeStore() error {
	if err := e.collection.Close(); err != nil {
		e.logger.Error("error closing collection", "err", err)
		return err
	}
	if e.backend != nil {
		if err := e.backend.Close(); err != nil {
			e.logger.Error("error closing backend storage", "err", err)
			return err
		}
	}
	return nil
}

// Config returns the configuration the engine was opened with.
func (e *Engine) Config() *config.Config {
	return e.cfg
}

// Collection returns the vector store.
func (e *Engine) Collection() storage.Collection {
	return e.collection
}

// NewProcessor builds a document processor from the engine's settings.
// opts are applied after the configured ones.
func (e *Engine) NewProcessor(opts ...ingestion.Option) (*ingestion.Processor, error) {
	chunker, err := chunking.New(
		chunking.WithChunkSize(e.cfg.ChunkSize),
		chunking.WithChunkOverlap(e.cfg.ChunkOverlap),
	)
	if err != nil {
		return nil, err
	}

	base := []ingestion.Option{
		ingestion.WithChunker(chunker),
		ingestion.WithBatchSize(e.cfg.BatchSize),
		ingestion.WithRetry(e.cfg.MaxRetries, e.cfg.RetryDelay),
		ingestion.WithProgressEvery(e.cfg.ProgressEvery),
		ingestion.WithLogger(e.logger),
		ingestion.WithSourceSelector(e.sourceFor),
	}
	return ingestion.NewProcessor(e.provider.Embedder(), e.collection, append(base, opts...)...)
}

// sourceFor selects a page source by extension, validating PDFs when the
// engine is configured to.
func (e *Engine) sourceFor(path string) (extract.Source, error) {
	return extract.ForPath(path,
		extract.WithValidation(e.cfg.ValidatePDF),
		extract.WithLogger(e.logger),
	)
}

// NewSearcher builds a searcher from the engine's settings.
func (e *Engine) NewSearcher(opts ...search.Option) (*search.Searcher, error) {
	base := []search.Option{
		search.WithTopK(e.cfg.TopK),
		search.WithLogger(e.logger),
	}
	return search.NewSearcher(e.collection, e.provider, append(base, opts...)...)
}

// NewReembedder builds a reembedder over the engine's collection, writing
// progress to progress. Batching and retry follow the engine's settings.
func (e *Engine) NewReembedder(progress io.Writer, reportInterval int) (*reembed.Reembedder, error) {
	coll, ok := e.collection.(reembed.Collection)
	if !ok {
		return nil, fmt.Errorf("collection %T cannot be scanned", e.collection)
	}
	return reembed.NewReembedder(coll, e.provider.Embedder(), &reembed.Config{
		BatchSize:      e.cfg.BatchSize,
		ReportInterval: reportInterval,
		MaxRetries:     e.cfg.MaxRetries,
		RetryDelay:     e.cfg.RetryDelay,
	}, progress)
}

// NewUploadStore opens the configured upload store.
func (e *Engine) NewUploadStore(ctx context.Context) (uploads.Store, error) {
	if e.cfg.UploadStore == config.UploadS3 {
		return uploads.NewS3Store(ctx, e.cfg.S3)
	}
	dir, err := filepath.Abs(e.cfg.UploadDir)
	if err != nil {
		return nil, err
	}
	return uploads.NewDiskStore(dir)
}

// Service is everything `serve` needs: the job registry, the worker pool
// behind it, and the HTTP server in front of both.
type Service struct {
	Registry *jobs.Registry
	Runner   *jobs.Runner
	Server   *server.Server
}

// NewService wires a registry, runner and HTTP server onto the engine.
// The caller shuts down Server and then Runner.
func (e *Engine) NewService(ctx context.Context, opts ...server.Option) (*Service, error) {
	proc, err := e.NewProcessor()
	if err != nil {
		return nil, err
	}
	searcher, err := e.NewSearcher()
	if err != nil {
		return nil, err
	}
	store, err := e.NewUploadStore(ctx)
	if err != nil {
		return nil, err
	}

	registry := jobs.NewRegistry(
		jobs.WithCapacity(e.cfg.JobCapacity),
		jobs.WithTTL(e.cfg.JobTTL),
		jobs.WithRegistryLogger(e.logger),
	)
	runner, err := jobs.NewRunner(proc, registry, store,
		jobs.WithWorkers(e.cfg.Workers),
		jobs.WithRunnerLogger(e.logger),
	)
	if err != nil {
		return nil, err
	}

	base := []server.Option{
		server.WithAddr(e.cfg.Addr),
		server.WithLogger(e.logger),
	}
	srv, err := server.New(registry, runner, store, searcher, append(base, opts...)...)
	if err != nil {
		_ = runner.Shutdown(ctx)
		return nil, err
	}

	return &Service{Registry: registry, Runner: runner, Server: srv}, nil
}
