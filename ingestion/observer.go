package ingestion

import (
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/poiesic/ragline/core"
)

// Stage names a point in the pipeline where items are counted.
type Stage string

const (
	// StageChunking counts pages entering the chunker.
	StageChunking Stage = "CHUNKING"
	// StageIndexing counts chunks entering the indexer.
	StageIndexing Stage = "INDEXING"
)

// Observer receives lifecycle events from a pipeline run.
// Each run calls OnStart once, then OnProgress any number of times, then
// exactly one of OnFinish or OnError. All calls for a run come from the
// goroutine executing Run.
type Observer interface {
	OnStart(filename string)
	OnProgress(stage Stage, count int, msg string)
	OnFinish(filename string, stats core.Stats)
	OnError(err error)
}

// NoopObserver ignores every event.
type NoopObserver struct{}

var _ Observer = NoopObserver{}

func (NoopObserver) OnStart(string)                {}
func (NoopObserver) OnProgress(Stage, int, string) {}
func (NoopObserver) OnFinish(string, core.Stats)   {}
func (NoopObserver) OnError(error)                 {}

// MultiObserver forwards every event to each of its observers in order.
type MultiObserver []Observer

var _ Observer = MultiObserver(nil)

func (m MultiObserver) OnStart(filename string) {
	for _, o := range m {
		o.OnStart(filename)
	}
}

func (m MultiObserver) OnProgress(stage Stage, count int, msg string) {
	for _, o := range m {
		o.OnProgress(stage, count, msg)
	}
}

func (m MultiObserver) OnFinish(filename string, stats core.Stats) {
	for _, o := range m {
		o.OnFinish(filename, stats)
	}
}

func (m MultiObserver) OnError(err error) {
	for _, o := range m {
		o.OnError(err)
	}
}

// LogObserver writes events to a structured logger.
type LogObserver struct {
	logger *slog.Logger
}

var _ Observer = (*LogObserver)(nil)

// NewLogObserver creates an observer that logs to logger, or slog.Default()
// when logger is nil.
func NewLogObserver(logger *slog.Logger) *LogObserver {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogObserver{logger: logger.With("component", "pipeline")}
}

func (o *LogObserver) OnStart(filename string) {
	o.logger.Info("processing started", "file", filename)
}

func (o *LogObserver) OnProgress(stage Stage, count int, msg string) {
	o.logger.Debug(msg, "stage", stage, "count", count)
}

func (o *LogObserver) OnFinish(filename string, stats core.Stats) {
	o.logger.Info("processing finished",
		"file", filename,
		"pages", stats.Pages,
		"chunks", stats.Chunks,
		"dropped", stats.Dropped,
		"batches", stats.Batches,
		"duration", stats.Duration)
}

func (o *LogObserver) OnError(err error) {
	o.logger.Error("processing failed", "err", err)
}

// ConsoleObserver prints human-readable progress lines with item rates.
type ConsoleObserver struct {
	writer    io.Writer
	startTime time.Time
	mu        sync.Mutex
}

var _ Observer = (*ConsoleObserver)(nil)

// NewConsoleObserver creates an observer that prints to writer
// (typically os.Stderr).
func NewConsoleObserver(writer io.Writer) *ConsoleObserver {
	return &ConsoleObserver{writer: writer}
}

func (o *ConsoleObserver) OnStart(filename string) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.startTime = time.Now()
	fmt.Fprintf(o.writer, "Processing %s...\n", filename)
}

func (o *ConsoleObserver) OnProgress(stage Stage, count int, msg string) {
	o.mu.Lock()
	defer o.mu.Unlock()

	rate := 0.0
	if elapsed := time.Since(o.startTime).Seconds(); elapsed > 0 {
		rate = float64(count) / elapsed
	}
	fmt.Fprintf(o.writer, "[%s] %s (%.1f items/s)\n", stage, msg, rate)
}

func (o *ConsoleObserver) OnFinish(filename string, stats core.Stats) {
	o.mu.Lock()
	defer o.mu.Unlock()

	fmt.Fprintf(o.writer, "Done %s: %s\n", filename, stats)
}

func (o *ConsoleObserver) OnError(err error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	fmt.Fprintf(o.writer, "Error: %v\n", err)
}
