// Package reembed recomputes the vector of every stored chunk with the
// current embedder. Run it after switching embedding models so stored
// vectors and query vectors come from the same model.
//
// Chunks are read with storage.Scanner, embedded in batches with retry and
// exponential backoff, normalized to unit length, and written back under
// their existing ids.
package reembed
