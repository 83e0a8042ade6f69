package jobs

import (
	"log/slog"

	"github.com/poiesic/ragline/core"
	"github.com/poiesic/ragline/ingestion"
)

// Observer records pipeline events for one job in a Registry.
type Observer struct {
	registry *Registry
	jobID    string
	logger   *slog.Logger
}

var _ ingestion.Observer = (*Observer)(nil)

// NewObserver creates an observer that writes jobID's events to registry.
func NewObserver(registry *Registry, jobID string, logger *slog.Logger) *Observer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Observer{
		registry: registry,
		jobID:    jobID,
		logger:   logger.With("component", "job-observer", "jobID", jobID),
	}
}

func (o *Observer) OnStart(filename string) {
	o.check(o.registry.Start(o.jobID))
}

func (o *Observer) OnProgress(stage ingestion.Stage, count int, msg string) {
	o.check(o.registry.Progress(o.jobID, string(stage), count, msg))
}

func (o *Observer) OnFinish(filename string, stats core.Stats) {
	o.check(o.registry.Finish(o.jobID, stats))
}

func (o *Observer) OnError(err error) {
	o.check(o.registry.Fail(o.jobID, err))
}

// check logs registry errors. A job evicted mid-run keeps running; its
// events have nowhere to go.
func (o *Observer) check(err error) {
	if err != nil {
		o.logger.Debug("registry update skipped", "err", err)
	}
}
