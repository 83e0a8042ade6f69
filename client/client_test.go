package client

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/poiesic/ragline/ai/mock"
	"github.com/poiesic/ragline/core"
	"github.com/poiesic/ragline/ingestion"
	"github.com/poiesic/ragline/jobs"
	"github.com/poiesic/ragline/search"
	"github.com/poiesic/ragline/server"
	"github.com/poiesic/ragline/storage/badger"
	"github.com/poiesic/ragline/uploads"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.Handler) *Client {
	t.Helper()
	ts := httptest.NewServer(h)
	t.Cleanup(ts.Close)
	c, err := New(ts.URL + "/")
	require.NoError(t, err)
	return c
}

func TestNew(t *testing.T) {
	_, err := New("  ")
	assert.ErrorIs(t, err, ErrEmptyBaseURL)

	_, err = New("not a url")
	assert.Error(t, err)

	c, err := New("http://127.0.0.1:8000/")
	require.NoError(t, err)
	assert.Equal(t, "http://127.0.0.1:8000", c.baseURL)
}

func TestSubmit(t *testing.T) {
	var gotName, gotBody string
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/ingest", r.URL.Path)
		f, hdr, err := r.FormFile("file")
		if !assert.NoError(t, err) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		defer f.Close()
		b, _ := io.ReadAll(f)
		gotName, gotBody = hdr.Filename, string(b)
		_, _ = io.WriteString(w, `{"job_id":"abc","status":"queued"}`)
	}))

	res, err := c.Submit(context.Background(), "/some/dir/report.pdf", strings.NewReader("page one"))
	require.NoError(t, err)
	assert.Equal(t, SubmitResult{JobID: "abc", Status: "queued"}, res)
	assert.Equal(t, "report.pdf", gotName)
	assert.Equal(t, "page one", gotBody)
}

func TestSubmit_ServerError(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = io.WriteString(w, `{"detail":"File save failed: disk full"}`)
	}))

	_, err := c.Submit(context.Background(), "a.pdf", strings.NewReader("x"))
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusInternalServerError, se.Code)
	assert.Equal(t, "File save failed: disk full", se.Detail)
}

func TestStatus(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/status/known" {
			w.WriteHeader(http.StatusNotFound)
			_, _ = io.WriteString(w, `{"detail":"Job not found"}`)
			return
		}
		_ = json.NewEncoder(w).Encode(core.JobState{JobID: "known", Status: core.JobProcessing, Progress: 10, Log: []string{"x"}})
	}))

	t.Run("known", func(t *testing.T) {
		state, err := c.Status(context.Background(), "known")
		require.NoError(t, err)
		assert.Equal(t, core.JobProcessing, state.Status)
		assert.Equal(t, 10, state.Progress)
	})

	t.Run("unknown", func(t *testing.T) {
		_, err := c.Status(context.Background(), "missing")
		assert.ErrorIs(t, err, ErrJobNotFound)
	})
}

func TestWait(t *testing.T) {
	t.Run("polls until terminal", func(t *testing.T) {
		var polls atomic.Int32
		c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			n := polls.Add(1)
			state := core.JobState{JobID: "j", Status: core.JobProcessing, Progress: int(n) * 10}
			if n == 3 {
				state.Status = core.JobCompleted
			}
			_ = json.NewEncoder(w).Encode(state)
		}))

		var seen []int
		state, err := c.Wait(context.Background(), "j", time.Millisecond, func(s core.JobState) {
			seen = append(seen, s.Progress)
		})
		require.NoError(t, err)
		assert.Equal(t, core.JobCompleted, state.Status)
		assert.Equal(t, []int{10, 20, 30}, seen)
	})

	t.Run("failed job is returned without error", func(t *testing.T) {
		c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewEncoder(w).Encode(core.JobState{JobID: "j", Status: core.JobFailed, Error: "boom"})
		}))

		state, err := c.Wait(context.Background(), "j", time.Millisecond, nil)
		require.NoError(t, err)
		assert.Equal(t, "boom", state.Error)
	})

	t.Run("not found stops polling", func(t *testing.T) {
		var polls atomic.Int32
		c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			polls.Add(1)
			w.WriteHeader(http.StatusNotFound)
			_, _ = io.WriteString(w, `{"detail":"Job not found"}`)
		}))

		_, err := c.Wait(context.Background(), "gone", time.Millisecond, nil)
		assert.ErrorIs(t, err, ErrJobNotFound)
		assert.Equal(t, int32(1), polls.Load())
	})

	t.Run("context cancellation", func(t *testing.T) {
		c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewEncoder(w).Encode(core.JobState{Status: core.JobQueued})
		}))

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		_, err := c.Wait(ctx, "j", 5*time.Millisecond, nil)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})
}

func TestChat(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if req["question"] == "" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = io.WriteString(w, `{"detail":"question is required"}`)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"answer": "about " + req["question"]})
	}))

	answer, err := c.Chat(context.Background(), "revenue")
	require.NoError(t, err)
	assert.Equal(t, "about revenue", answer)

	_, err = c.Chat(context.Background(), "")
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusBadRequest, se.Code)
}

func TestClient_AgainstServer(t *testing.T) {
	coll, backend, err := badger.NewMemoryCollection()
	require.NoError(t, err)
	defer backend.Close()

	embedder := mock.NewMockEmbedder()
	generator := mock.NewMockGenerator("Revenue rose 12%.")
	provider := mock.NewMockProviderWithServices(embedder, generator)

	proc, err := ingestion.NewProcessor(embedder, coll)
	require.NoError(t, err)
	searcher, err := search.NewSearcher(coll, provider)
	require.NoError(t, err)

	store, err := uploads.NewDiskStore(t.TempDir())
	require.NoError(t, err)
	registry := jobs.NewRegistry()
	runner, err := jobs.NewRunner(proc, registry, store, jobs.WithWorkers(2))
	require.NoError(t, err)
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = runner.Shutdown(ctx)
	}()

	srv, err := server.New(registry, runner, store, searcher)
	require.NoError(t, err)
	c := newTestClient(t, srv.Handler())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	res, err := c.Submit(ctx, "q3.txt", strings.NewReader("Revenue rose 12% in Q3.\fCosts were flat."))
	require.NoError(t, err)
	assert.Equal(t, "queued", res.Status)

	state, err := c.Wait(ctx, res.JobID, 5*time.Millisecond, nil)
	require.NoError(t, err)
	require.Equal(t, core.JobCompleted, state.Status, state.Error)
	assert.Equal(t, 2, state.Stats.Pages)
	assert.Equal(t, 2, state.Stats.Chunks)

	answer, err := c.Chat(ctx, "How did revenue change?")
	require.NoError(t, err)
	assert.Equal(t, "Revenue rose 12%.", answer)
	require.Equal(t, 1, generator.CallCount())
	assert.Contains(t, generator.Prompts()[0], "Revenue rose 12% in Q3.")

	_, err = c.Status(ctx, "does-not-exist")
	assert.ErrorIs(t, err, ErrJobNotFound)
}
