package reembed

import "errors"

var (
	// ErrCollectionRequired is returned when a collection is not provided.
	ErrCollectionRequired = errors.New("collection required")

	// ErrEmbedderRequired is returned when an embedder is not provided.
	ErrEmbedderRequired = errors.New("embedder required")

	// ErrEmbeddingMismatch is returned when the embedder returns a different
	// number of vectors than texts, or an empty vector.
	ErrEmbeddingMismatch = errors.New("embedding result does not match input")
)
