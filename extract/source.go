package extract

import (
	"context"
	"fmt"
	"iter"
	"path/filepath"
	"strings"

	"github.com/poiesic/ragline/core"
)

// Source produces the pages of a document.
type Source interface {
	Extract(ctx context.Context, jobID, path string) iter.Seq2[core.PageRecord, error]
}

// ForPath selects a Source by file extension.
func ForPath(path string, opts ...Option) (Source, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return NewPDFSource(opts...), nil
	case ".txt", ".text":
		return NewTextSource(opts...), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(path))
}
