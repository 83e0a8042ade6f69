package core

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// ID is a content-derived fingerprint.
type ID uint64

// IDFromContent generates a deterministic ID from text content using BLAKE2b hashing.
// This ensures that identical content produces identical IDs.
func IDFromContent(text string) ID {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(text))
	sum := h.Sum(nil)
	return ID(binary.LittleEndian.Uint64(sum))
}

// ChunkID builds the identifier of the index-th chunk (0-based) cut from a page.
// The scheme is stable so a rerun under the same job regenerates the same IDs.
func ChunkID(page, index int, jobID string) string {
	return fmt.Sprintf("pg%d_chk%d_%s", page, index, jobID)
}

// PageRecord is one page of extracted document text.
type PageRecord struct {
	JobID      string
	PageNumber int // 1-based
	TotalPages int
	Content    string // trimmed page text
	Source     string // document identifier, usually the file name
}

// ChunkRecord is a bounded slice of page text prepared for embedding and retrieval.
type ChunkRecord struct {
	ID     string
	JobID  string
	Page   int
	Text   string
	Source string
	Vector []float32 // populated by the indexer just before storage
}

// SearchResult represents a retrieved chunk and its similarity score.
type SearchResult struct {
	Record *ChunkRecord
	Score  float32
}

// JobStatus is the lifecycle state of an ingestion job.
type JobStatus string

const (
	JobQueued     JobStatus = "queued"
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
)

// Terminal reports whether no further transitions are allowed from s.
func (s JobStatus) Terminal() bool {
	return s == JobCompleted || s == JobFailed
}

// Stats summarizes a finished ingestion run.
type Stats struct {
	Pages    int           `json:"pages"`
	Chunks   int           `json:"chunks"`  // embedded and stored
	Dropped  int           `json:"dropped"` // embedding failed after retries
	Batches  int           `json:"batches"` // storage calls made
	Duration time.Duration `json:"duration_ns"`
}

func (s Stats) String() string {
	return fmt.Sprintf("%d pages, %d chunks indexed, %d dropped, %d batches in %s",
		s.Pages, s.Chunks, s.Dropped, s.Batches, s.Duration.Round(time.Millisecond))
}

// JobState is the externally visible record of one ingestion job.
type JobState struct {
	JobID     string    `json:"job_id"`
	Status    JobStatus `json:"status"`
	Log       []string  `json:"log"`
	Progress  int       `json:"progress"`
	File      string    `json:"file,omitempty"`
	Stats     *Stats    `json:"stats,omitempty"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Clone returns a deep copy that shares no mutable state with s.
func (s *JobState) Clone() JobState {
	out := *s
	out.Log = append([]string(nil), s.Log...)
	if out.Log == nil {
		out.Log = []string{}
	}
	if s.Stats != nil {
		stats := *s.Stats
		out.Stats = &stats
	}
	return out
}
