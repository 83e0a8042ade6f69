package jobs

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/poiesic/ragline/core"
)

const (
	DefaultCapacity = 1024
	DefaultTTL      = 24 * time.Hour
)

// entry is one job's state and the lock that serializes its mutations.
type entry struct {
	mu       sync.Mutex
	state    core.JobState
	progress map[string]int // latest count per stage
}

// Registry holds the state of active and recently finished jobs.
//
// Queued and processing jobs are always retained. Once a job completes or
// fails it moves to a bounded set of finished jobs: past capacity the least
// recently touched one is evicted, and one untouched for the TTL expires.
//
// Reads return copies, so callers never observe a state while it is being
// changed.
type Registry struct {
	mu       sync.RWMutex
	active   map[string]*entry
	finished *expirable.LRU[string, *entry]
	now      func() time.Time
	logger   *slog.Logger
}

type registryConfig struct {
	capacity int
	ttl      time.Duration
	logger   *slog.Logger
	now      func() time.Time
}

// RegistryOption configures a Registry.
type RegistryOption func(*registryConfig)

// WithCapacity sets the maximum number of finished jobs retained.
// Default is 1024.
func WithCapacity(n int) RegistryOption {
	return func(c *registryConfig) {
		if n > 0 {
			c.capacity = n
		}
	}
}

// WithTTL sets how long an untouched finished job is retained.
// Default is 24h.
func WithTTL(ttl time.Duration) RegistryOption {
	return func(c *registryConfig) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithRegistryLogger sets a custom logger.
// Default is slog.Default().
func WithRegistryLogger(logger *slog.Logger) RegistryOption {
	return func(c *registryConfig) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	cfg := registryConfig{
		capacity: DefaultCapacity,
		ttl:      DefaultTTL,
		logger:   slog.Default(),
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	logger := cfg.logger.With("component", "job-registry")
	onEvict := func(id string, e *entry) {
		logger.Debug("job evicted", "jobID", id)
	}

	return &Registry{
		active:   make(map[string]*entry),
		finished: expirable.NewLRU[string, *entry](cfg.capacity, onEvict, cfg.ttl),
		now:      cfg.now,
		logger:   logger,
	}
}

// Create registers a new queued job for file and returns its initial state.
func (r *Registry) Create(file string) core.JobState {
	now := r.now()
	e := &entry{
		state: core.JobState{
			JobID:     uuid.NewString(),
			Status:    core.JobQueued,
			Log:       []string{},
			File:      file,
			CreatedAt: now,
			UpdatedAt: now,
		},
		progress: make(map[string]int),
	}
	r.mu.Lock()
	r.active[e.state.JobID] = e
	r.mu.Unlock()
	r.logger.Debug("job created", "jobID", e.state.JobID, "file", file)
	return e.state.Clone()
}

// Get returns a snapshot of the job's state.
func (r *Registry) Get(id string) (core.JobState, error) {
	e, ok := r.lookup(id)
	if !ok {
		return core.JobState{}, ErrJobNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.Clone(), nil
}

// Len returns the number of retained jobs, active and finished.
func (r *Registry) Len() int {
	r.mu.RLock()
	n := len(r.active)
	r.mu.RUnlock()
	return n + r.finished.Len()
}

// Start moves a queued job to processing.
func (r *Registry) Start(id string) error {
	return r.update(id, func(e *entry) error {
		if err := r.transition(e, core.JobProcessing); err != nil {
			return err
		}
		e.state.Log = append(e.state.Log, "Started processing "+e.state.File)
		return nil
	})
}

// Progress records the latest item count for a stage and logs msg.
// The job's progress is the sum of the latest count of every stage, and
// never decreases. Progress on a job that is not processing is ignored.
func (r *Registry) Progress(id, stage string, count int, msg string) error {
	return r.update(id, func(e *entry) error {
		if e.state.Status != core.JobProcessing {
			r.logger.Warn("ignoring progress for idle job", "jobID", id, "status", e.state.Status)
			return nil
		}
		if count > e.progress[stage] {
			e.progress[stage] = count
		}
		total := 0
		for _, n := range e.progress {
			total += n
		}
		if total > e.state.Progress {
			e.state.Progress = total
		}
		e.state.Log = append(e.state.Log, fmt.Sprintf("[%s] %s", stage, msg))
		return nil
	})
}

// AppendLog adds a line to the job's log.
func (r *Registry) AppendLog(id, line string) error {
	return r.update(id, func(e *entry) error {
		e.state.Log = append(e.state.Log, line)
		return nil
	})
}

// Finish marks a processing job completed with its final stats.
func (r *Registry) Finish(id string, stats core.Stats) error {
	return r.update(id, func(e *entry) error {
		if err := r.transition(e, core.JobCompleted); err != nil {
			return err
		}
		e.state.Stats = &stats
		if done := stats.Pages + stats.Chunks + stats.Dropped; done > e.state.Progress {
			e.state.Progress = done
		}
		e.state.Log = append(e.state.Log, "Finished: "+stats.String())
		return nil
	})
}

// Fail marks a queued or processing job failed.
func (r *Registry) Fail(id string, cause error) error {
	return r.update(id, func(e *entry) error {
		if err := r.transition(e, core.JobFailed); err != nil {
			return err
		}
		msg := "unknown error"
		if cause != nil {
			msg = cause.Error()
		}
		e.state.Error = msg
		e.state.Log = append(e.state.Log, "Error: "+msg)
		return nil
	})
}

// transition applies a status change, or logs and rejects an illegal one.
// Must be called with e.mu held.
func (r *Registry) transition(e *entry, to core.JobStatus) error {
	if err := core.ValidateTransition(e.state.Status, to); err != nil {
		r.logger.Warn("ignoring illegal transition", "jobID", e.state.JobID, "err", err)
		return err
	}
	e.state.Status = to
	return nil
}

// lookup finds an entry, active ones first. A finishing entry is added to
// the finished set before it leaves the active set, so it is never missed.
func (r *Registry) lookup(id string) (*entry, bool) {
	r.mu.RLock()
	e, ok := r.active[id]
	r.mu.RUnlock()
	if ok {
		return e, true
	}
	return r.finished.Get(id)
}

// update runs fn under the entry's lock. An entry that has reached a
// terminal status moves to the finished set; re-adding a finished entry
// refreshes its recency and TTL.
func (r *Registry) update(id string, fn func(e *entry) error) error {
	e, ok := r.lookup(id)
	if !ok {
		return ErrJobNotFound
	}

	e.mu.Lock()
	err := fn(e)
	if err == nil {
		e.state.UpdatedAt = r.now()
	}
	done := e.state.Status.Terminal()
	e.mu.Unlock()

	if done {
		r.finished.Add(id, e)
		r.mu.Lock()
		delete(r.active, id)
		r.mu.Unlock()
	}
	return err
}
