package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync"

	"github.com/panjf2000/ants/v2"

	"github.com/poiesic/ragline/core"
	"github.com/poiesic/ragline/ingestion"
	"github.com/poiesic/ragline/uploads"
)

// Pipeline runs one document through ingestion.
// *ingestion.Processor satisfies it.
type Pipeline interface {
	Run(ctx context.Context, req ingestion.Request, observer ingestion.Observer) (core.Stats, error)
}

// Job is a unit of background work: one saved upload to ingest.
type Job struct {
	ID       string // registry id, also used as the ingestion job id
	Filename string // original upload name
	Ref      string // upload store reference
}

// Runner executes jobs on a bounded worker pool. Each job's state is
// written only by the worker running it, through an Observer.
type Runner struct {
	pool     *ants.Pool
	pipeline Pipeline
	registry *Registry
	uploads  uploads.Store
	mu       sync.RWMutex // orders wg.Add against Shutdown
	wg       sync.WaitGroup
	closed   bool
	logger   *slog.Logger
	events   *slog.Logger // base logger for per-job pipeline events
}

// RunnerOption configures a Runner.
type RunnerOption func(*runnerConfig)

type runnerConfig struct {
	workers int
	logger  *slog.Logger
}

// WithWorkers sets how many jobs run at once.
// Default is runtime.NumCPU().
func WithWorkers(n int) RunnerOption {
	return func(c *runnerConfig) {
		if n > 0 {
			c.workers = n
		}
	}
}

// WithRunnerLogger sets a custom logger.
// Default is slog.Default().
func WithRunnerLogger(logger *slog.Logger) RunnerOption {
	return func(c *runnerConfig) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewRunner creates a runner. Call Shutdown to release its workers.
func NewRunner(pipeline Pipeline, registry *Registry, store uploads.Store, opts ...RunnerOption) (*Runner, error) {
	if pipeline == nil {
		return nil, ErrPipelineRequired
	}
	if registry == nil {
		return nil, ErrRegistryRequired
	}
	if store == nil {
		return nil, ErrUploadStoreRequired
	}

	cfg := runnerConfig{workers: runtime.NumCPU(), logger: slog.Default()}
	for _, opt := range opts {
		opt(&cfg)
	}

	pool, err := ants.NewPool(cfg.workers)
	if err != nil {
		return nil, err
	}

	return &Runner{
		pool:     pool,
		pipeline: pipeline,
		registry: registry,
		uploads:  store,
		logger:   cfg.logger.With("component", "job-runner"),
		events:   cfg.logger,
	}, nil
}

// Submit schedules job and returns without waiting for a free worker.
// Jobs beyond the pool size stay queued until a worker is available.
func (r *Runner) Submit(job Job) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return ErrRunnerClosed
	}

	r.wg.Add(1)
	go func() {
		err := r.pool.Submit(func() {
			defer r.wg.Done()
			r.run(job)
		})
		if err != nil {
			r.wg.Done()
			r.logger.Error("failed to schedule job", "jobID", job.ID, "err", err)
			_ = r.registry.Fail(job.ID, fmt.Errorf("schedule job: %w", err))
			r.cleanup(job)
		}
	}()
	return nil
}

// Shutdown stops accepting jobs, waits for submitted jobs to finish or
// ctx to end, then releases the pool.
func (r *Runner) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.pool.Release()
		return nil
	case <-ctx.Done():
		r.pool.Release()
		return ctx.Err()
	}
}

// Running returns the number of busy workers.
func (r *Runner) Running() int {
	return r.pool.Running()
}

func (r *Runner) run(job Job) {
	observer := ingestion.MultiObserver{
		NewObserver(r.registry, job.ID, r.logger),
		ingestion.NewLogObserver(r.events.With("jobID", job.ID)),
	}
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("job panicked", "jobID", job.ID, "panic", p)
			observer.OnError(fmt.Errorf("%w: %v", ErrJobPanic, p))
		}
		r.cleanup(job)
	}()

	// Jobs are not cancellable; they run to completion or failure.
	ctx := context.Background()

	path, release, err := r.uploads.Open(ctx, job.Ref)
	if err != nil {
		observer.OnStart(job.Filename)
		observer.OnError(fmt.Errorf("open upload: %w", err))
		return
	}
	defer release()

	req := ingestion.Request{JobID: job.ID, Path: path, Filename: job.Filename}
	if _, err := r.pipeline.Run(ctx, req, observer); err != nil {
		r.logger.Debug("job failed", "jobID", job.ID, "err", err)
	}
}

func (r *Runner) cleanup(job Job) {
	if err := r.uploads.Delete(context.Background(), job.Ref); err != nil {
		r.logger.Warn("failed to remove upload", "jobID", job.ID, "ref", job.Ref, "err", err)
	}
}
