package ingestion

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"sync"

	"github.com/poiesic/ragline/core"
	"github.com/poiesic/ragline/extract"
)

// event is one observer callback, recorded in order.
type event struct {
	kind     string
	stage    Stage
	count    int
	filename string
	stats    core.Stats
	err      error
}

// recordingObserver captures every callback for assertions.
type recordingObserver struct {
	mu     sync.Mutex
	events []event
}

func (o *recordingObserver) OnStart(filename string) {
	o.add(event{kind: "start", filename: filename})
}

func (o *recordingObserver) OnProgress(stage Stage, count int, msg string) {
	o.add(event{kind: "progress", stage: stage, count: count})
}

func (o *recordingObserver) OnFinish(filename string, stats core.Stats) {
	o.add(event{kind: "finish", filename: filename, stats: stats})
}

func (o *recordingObserver) OnError(err error) {
	o.add(event{kind: "error", err: err})
}

func (o *recordingObserver) add(e event) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.events = append(o.events, e)
}

func (o *recordingObserver) kinds() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]string, len(o.events))
	for i, e := range o.events {
		out[i] = e.kind
	}
	return out
}

func (o *recordingObserver) progress(stage Stage) []int {
	o.mu.Lock()
	defer o.mu.Unlock()
	var out []int
	for _, e := range o.events {
		if e.kind == "progress" && e.stage == stage {
			out = append(out, e.count)
		}
	}
	return out
}

func (o *recordingObserver) last() event {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.events[len(o.events)-1]
}

// fakeCollection records every upsert.
type fakeCollection struct {
	mu      sync.Mutex
	batches [][]core.ChunkRecord
	err     error
}

func (c *fakeCollection) BatchUpsert(ctx context.Context, records []core.ChunkRecord) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.batches = append(c.batches, append([]core.ChunkRecord(nil), records...))
	return nil
}

func (c *fakeCollection) Query(ctx context.Context, vector []float32, topK int) ([]*core.SearchResult, error) {
	return nil, errors.New("not implemented")
}

func (c *fakeCollection) Count(ctx context.Context) (int, error) {
	return len(c.stored()), nil
}

func (c *fakeCollection) Close() error {
	return nil
}

func (c *fakeCollection) stored() []core.ChunkRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []core.ChunkRecord
	for _, b := range c.batches {
		out = append(out, b...)
	}
	return out
}

func (c *fakeCollection) batchCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.batches)
}

// fakeSource yields fixed page contents.
type fakeSource struct {
	contents []string
	err      error // yielded after the pages, when set
}

func (s *fakeSource) Extract(ctx context.Context, jobID, path string) iter.Seq2[core.PageRecord, error] {
	return func(yield func(core.PageRecord, error) bool) {
		for i, content := range s.contents {
			page := core.PageRecord{
				JobID:      jobID,
				PageNumber: i + 1,
				TotalPages: len(s.contents),
				Content:    content,
				Source:     path,
			}
			if !yield(page, nil) {
				return
			}
		}
		if s.err != nil {
			yield(core.PageRecord{}, s.err)
		}
	}
}

func sourceOf(src extract.Source) SourceSelector {
	return func(string) (extract.Source, error) { return src, nil }
}

// chunkStream yields n chunks with texts "chunk-1" through "chunk-n".
func chunkStream(n int) iter.Seq2[core.ChunkRecord, error] {
	return func(yield func(core.ChunkRecord, error) bool) {
		for i := 1; i <= n; i++ {
			chunk := core.ChunkRecord{
				ID:    core.ChunkID(1, i-1, "job"),
				JobID: "job",
				Page:  1,
				Text:  fmt.Sprintf("chunk-%d", i),
			}
			if !yield(chunk, nil) {
				return
			}
		}
	}
}

// paragraphs returns n paragraphs separated by blank lines, each
// small enough to stay in one chunk on its own.
func paragraphs(n int) string {
	var s string
	for i := range n {
		if i > 0 {
			s += "\n\n"
		}
		s += fmt.Sprintf("Paragraph %d %s", i, filler)
	}
	return s
}

// filler pads a paragraph to roughly 600 characters, so two never fit in
// one 1000 character chunk.
var filler = func() string {
	var s string
	for len(s) < 600 {
		s += "lorem ipsum dolor sit amet "
	}
	return s
}()
