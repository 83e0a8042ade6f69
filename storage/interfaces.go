package storage

import (
	"context"
	"iter"

	"github.com/poiesic/ragline/core"
)

// Collection is a vector-indexed store of embedded chunks.
// Implementations must be thread-safe and support concurrent access.
type Collection interface {
	// BatchUpsert stores records keyed by their chunk ID, replacing any
	// existing record with the same ID. Every record must carry a vector.
	// Returns ErrEmptyBatch when called with no records.
	BatchUpsert(ctx context.Context, records []core.ChunkRecord) error

	// Query returns up to topK records nearest to vector.
	// Results are ordered by similarity score (highest first).
	Query(ctx context.Context, vector []float32, topK int) ([]*core.SearchResult, error)

	// Count returns the number of stored records.
	Count(ctx context.Context) (int, error)

	// Close closes the storage backend and releases resources.
	Close() error
}

// Scanner is implemented by collections that can enumerate every stored
// record. Records written while a scan is in progress may or may not be
// yielded.
type Scanner interface {
	Scan(ctx context.Context) iter.Seq2[core.ChunkRecord, error]
}
