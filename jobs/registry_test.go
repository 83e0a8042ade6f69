package jobs

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/poiesic/ragline/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_Create(t *testing.T) {
	r := NewRegistry()

	a := r.Create("a.pdf")
	b := r.Create("b.pdf")

	assert.NotEqual(t, a.JobID, b.JobID)
	assert.Equal(t, core.JobQueued, a.Status)
	assert.Equal(t, "a.pdf", a.File)
	assert.NotNil(t, a.Log)
	assert.Empty(t, a.Log)
	assert.Equal(t, 0, a.Progress)
	assert.False(t, a.CreatedAt.IsZero())
	assert.Equal(t, 2, r.Len())
}

func TestRegistry_UnknownID(t *testing.T) {
	r := NewRegistry()
	r.Create("a.pdf")

	_, err := r.Get("missing")
	assert.ErrorIs(t, err, ErrJobNotFound)

	assert.ErrorIs(t, r.Start("missing"), ErrJobNotFound)
	assert.ErrorIs(t, r.Progress("missing", "INDEXING", 10, "x"), ErrJobNotFound)
	assert.ErrorIs(t, r.AppendLog("missing", "x"), ErrJobNotFound)
	assert.ErrorIs(t, r.Finish("missing", core.Stats{}), ErrJobNotFound)
	assert.ErrorIs(t, r.Fail("missing", errors.New("x")), ErrJobNotFound)

	assert.Equal(t, 1, r.Len(), "lookups must not create entries")
}

func TestRegistry_GetReturnsSnapshot(t *testing.T) {
	r := NewRegistry()
	job := r.Create("a.pdf")
	require.NoError(t, r.Start(job.JobID))

	snap, err := r.Get(job.JobID)
	require.NoError(t, err)
	snap.Log[0] = "tampered"
	snap.Log = append(snap.Log, "extra")
	snap.Status = core.JobFailed

	again, err := r.Get(job.JobID)
	require.NoError(t, err)
	assert.Equal(t, []string{"Started processing a.pdf"}, again.Log)
	assert.Equal(t, core.JobProcessing, again.Status)
}

func TestRegistry_Lifecycle(t *testing.T) {
	r := NewRegistry()
	job := r.Create("report.pdf")

	require.NoError(t, r.Start(job.JobID))
	require.NoError(t, r.Progress(job.JobID, "CHUNKING", 10, "Processed 10 items..."))
	require.NoError(t, r.Progress(job.JobID, "INDEXING", 10, "Processed 10 items..."))

	stats := core.Stats{Pages: 12, Chunks: 28, Dropped: 2, Batches: 3, Duration: time.Second}
	require.NoError(t, r.Finish(job.JobID, stats))

	got, err := r.Get(job.JobID)
	require.NoError(t, err)
	assert.Equal(t, core.JobCompleted, got.Status)
	require.NotNil(t, got.Stats)
	assert.Equal(t, stats, *got.Stats)
	assert.Equal(t, 42, got.Progress)
	assert.Equal(t, []string{
		"Started processing report.pdf",
		"[CHUNKING] Processed 10 items...",
		"[INDEXING] Processed 10 items...",
		"Finished: " + stats.String(),
	}, got.Log)
	assert.True(t, !got.UpdatedAt.Before(got.CreatedAt))
}

func TestRegistry_Fail(t *testing.T) {
	t.Run("from processing", func(t *testing.T) {
		r := NewRegistry()
		job := r.Create("a.pdf")
		require.NoError(t, r.Start(job.JobID))
		require.NoError(t, r.Fail(job.JobID, errors.New("cannot open document")))

		got, _ := r.Get(job.JobID)
		assert.Equal(t, core.JobFailed, got.Status)
		assert.Equal(t, "cannot open document", got.Error)
		assert.Equal(t, "Error: cannot open document", got.Log[len(got.Log)-1])
		assert.Equal(t, 0, got.Progress)
	})

	t.Run("from queued", func(t *testing.T) {
		r := NewRegistry()
		job := r.Create("a.pdf")
		require.NoError(t, r.Fail(job.JobID, errors.New("upload lost")))

		got, _ := r.Get(job.JobID)
		assert.Equal(t, core.JobFailed, got.Status)
	})
}

func TestRegistry_IllegalTransitionsIgnored(t *testing.T) {
	tests := []struct {
		name  string
		setup func(r *Registry, id string)
		apply func(r *Registry, id string) error
		want  core.JobStatus
	}{
		{
			name:  "finish while queued",
			setup: func(r *Registry, id string) {},
			apply: func(r *Registry, id string) error { return r.Finish(id, core.Stats{}) },
			want:  core.JobQueued,
		},
		{
			name:  "start twice",
			setup: func(r *Registry, id string) { _ = r.Start(id) },
			apply: func(r *Registry, id string) error { return r.Start(id) },
			want:  core.JobProcessing,
		},
		{
			name: "fail after completed",
			setup: func(r *Registry, id string) {
				_ = r.Start(id)
				_ = r.Finish(id, core.Stats{})
			},
			apply: func(r *Registry, id string) error { return r.Fail(id, errors.New("late")) },
			want:  core.JobCompleted,
		},
		{
			name: "restart after failed",
			setup: func(r *Registry, id string) {
				_ = r.Fail(id, errors.New("boom"))
			},
			apply: func(r *Registry, id string) error { return r.Start(id) },
			want:  core.JobFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRegistry()
			job := r.Create("a.pdf")
			tt.setup(r, job.JobID)
			before, _ := r.Get(job.JobID)

			err := tt.apply(r, job.JobID)
			assert.ErrorIs(t, err, core.ErrIllegalTransition)

			after, _ := r.Get(job.JobID)
			assert.Equal(t, tt.want, after.Status)
			assert.Equal(t, before.Log, after.Log)
			assert.Equal(t, before.Error, after.Error)
		})
	}
}

func TestRegistry_ProgressMonotone(t *testing.T) {
	r := NewRegistry()
	job := r.Create("a.pdf")

	require.NoError(t, r.Progress(job.JobID, "CHUNKING", 10, "ignored while queued"))
	got, _ := r.Get(job.JobID)
	assert.Equal(t, 0, got.Progress)
	assert.Empty(t, got.Log)

	require.NoError(t, r.Start(job.JobID))

	last := 0
	updates := []struct {
		stage string
		count int
	}{
		{"CHUNKING", 10}, {"INDEXING", 10}, {"INDEXING", 20},
		{"CHUNKING", 5}, {"CHUNKING", 20}, {"INDEXING", 30},
	}
	for _, u := range updates {
		require.NoError(t, r.Progress(job.JobID, u.stage, u.count, "msg"))
		got, _ := r.Get(job.JobID)
		assert.GreaterOrEqual(t, got.Progress, last)
		last = got.Progress
	}
	assert.Equal(t, 50, last)

	require.NoError(t, r.Finish(job.JobID, core.Stats{Pages: 1, Chunks: 1}))
	got, _ = r.Get(job.JobID)
	assert.Equal(t, 50, got.Progress, "finish never lowers progress")
}

// finish drives a new job for file to completed.
func finish(t *testing.T, r *Registry, file string) core.JobState {
	t.Helper()
	job := r.Create(file)
	require.NoError(t, r.Start(job.JobID))
	require.NoError(t, r.Finish(job.JobID, core.Stats{Pages: 1}))
	return job
}

func TestRegistry_CapacityEvictsLeastRecent(t *testing.T) {
	r := NewRegistry(WithCapacity(2))

	a := finish(t, r, "a.pdf")
	b := finish(t, r, "b.pdf")
	require.NoError(t, r.AppendLog(a.JobID, "touch"))
	c := finish(t, r, "c.pdf")

	_, err := r.Get(b.JobID)
	assert.ErrorIs(t, err, ErrJobNotFound)

	_, err = r.Get(a.JobID)
	assert.NoError(t, err)
	_, err = r.Get(c.JobID)
	assert.NoError(t, err)
	assert.Equal(t, 2, r.Len())
}

func TestRegistry_ActiveJobsNeverEvicted(t *testing.T) {
	r := NewRegistry(WithCapacity(2))

	running := r.Create("running.pdf")
	require.NoError(t, r.Start(running.JobID))
	require.NoError(t, r.Progress(running.JobID, "CHUNKING", 10, "Processed 10 items..."))
	queued := r.Create("queued.pdf")
	for i := range 4 {
		finish(t, r, fmt.Sprintf("done%d.pdf", i))
	}
	r.Create("extra1.pdf")
	r.Create("extra2.pdf")

	got, err := r.Get(running.JobID)
	require.NoError(t, err)
	assert.Equal(t, core.JobProcessing, got.Status)
	assert.Equal(t, 10, got.Progress)

	got, err = r.Get(queued.JobID)
	require.NoError(t, err)
	assert.Equal(t, core.JobQueued, got.Status)

	require.NoError(t, r.Finish(running.JobID, core.Stats{Pages: 1, Chunks: 2}))
	got, err = r.Get(running.JobID)
	require.NoError(t, err)
	assert.Equal(t, core.JobCompleted, got.Status)
	require.NotNil(t, got.Stats)
	assert.Equal(t, 2, got.Stats.Chunks)

	assert.Equal(t, 3+2, r.Len(), "queued and extras active, two finished retained")
}

func TestRegistry_TTL(t *testing.T) {
	t.Run("untouched finished job expires", func(t *testing.T) {
		r := NewRegistry(WithTTL(50 * time.Millisecond))
		job := finish(t, r, "a.pdf")

		time.Sleep(120 * time.Millisecond)
		_, err := r.Get(job.JobID)
		assert.ErrorIs(t, err, ErrJobNotFound)
	})

	t.Run("active job does not expire", func(t *testing.T) {
		r := NewRegistry(WithTTL(50 * time.Millisecond))
		job := r.Create("a.pdf")
		require.NoError(t, r.Start(job.JobID))

		time.Sleep(120 * time.Millisecond)
		got, err := r.Get(job.JobID)
		require.NoError(t, err)
		assert.Equal(t, core.JobProcessing, got.Status)
	})

	t.Run("mutation refreshes expiry", func(t *testing.T) {
		r := NewRegistry(WithTTL(300 * time.Millisecond))
		job := finish(t, r, "a.pdf")

		time.Sleep(200 * time.Millisecond)
		require.NoError(t, r.AppendLog(job.JobID, "touch"))
		time.Sleep(200 * time.Millisecond)

		got, err := r.Get(job.JobID)
		require.NoError(t, err)
		assert.Equal(t, core.JobCompleted, got.Status)
	})
}

func TestRegistry_ConcurrentAccess(t *testing.T) {
	r := NewRegistry()
	job := r.Create("a.pdf")
	require.NoError(t, r.Start(job.JobID))

	var wg sync.WaitGroup
	for w := range 8 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for i := 1; i <= 50; i++ {
				_ = r.Progress(job.JobID, fmt.Sprintf("S%d", w), i, "msg")
			}
		}()
		go func() {
			defer wg.Done()
			last := 0
			for range 50 {
				got, err := r.Get(job.JobID)
				if assert.NoError(t, err) {
					assert.GreaterOrEqual(t, got.Progress, last)
					last = got.Progress
				}
			}
		}()
	}
	wg.Wait()

	got, _ := r.Get(job.JobID)
	assert.Equal(t, 8*50, got.Progress)
	assert.Len(t, got.Log, 1+8*50)
}
