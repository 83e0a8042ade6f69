// Package uploads persists submitted documents until a job has processed
// them.
package uploads

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"strings"
)

// CopyBufferSize is the increment in which upload bodies are copied.
const CopyBufferSize = 1 << 20

// ErrUploadNotFound is returned when a reference does not name a stored upload.
var ErrUploadNotFound = errors.New("upload not found")

// Store saves uploads and makes them available as local files.
type Store interface {
	// Save streams r into the store and returns a reference to it.
	Save(ctx context.Context, jobID, filename string, r io.Reader) (string, error)

	// Open returns a local path for ref. release must be called when the
	// caller is done with the path.
	Open(ctx context.Context, ref string) (path string, release func(), err error)

	// Delete removes ref from the store. Deleting a missing upload is not an error.
	Delete(ctx context.Context, ref string) error
}

// objectName is the stored name of an upload: temp_{jobID}{ext}. The
// extension is kept because page sources are chosen by it.
func objectName(jobID, filename string) string {
	ext := strings.ToLower(filepath.Ext(filepath.Base(filename)))
	return "temp_" + jobID + ext
}

// copyChunked copies src to dst through a CopyBufferSize buffer. The
// wrappers hide ReaderFrom and WriterTo so the buffer is always used.
func copyChunked(dst io.Writer, src io.Reader) (int64, error) {
	buf := make([]byte, CopyBufferSize)
	return io.CopyBuffer(struct{ io.Writer }{dst}, struct{ io.Reader }{src}, buf)
}
