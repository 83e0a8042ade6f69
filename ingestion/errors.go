package ingestion

import "errors"

var (
	// ErrObserverRequired is returned by Run when no observer is provided.
	ErrObserverRequired = errors.New("observer required")

	// ErrEmbedderRequired is returned when an embedder is not provided.
	ErrEmbedderRequired = errors.New("embedder required")

	// ErrCollectionRequired is returned when a chunk collection is not provided.
	ErrCollectionRequired = errors.New("collection required")

	// ErrInvalidMaxAttempts is returned when maxAttempts is <= 0
	ErrInvalidMaxAttempts = errors.New("maxAttempts must be greater than 0")

	// ErrInvalidBatchSize is returned when the batch size is < 1.
	ErrInvalidBatchSize = errors.New("batch size must be greater than 0")

	// ErrEmptyEmbedding is returned when the embedder yields an empty vector.
	ErrEmptyEmbedding = errors.New("empty embedding")

	// ErrPipelinePanic wraps a panic recovered from the pull chain.
	ErrPipelinePanic = errors.New("pipeline panic")
)
