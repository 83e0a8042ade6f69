package uploads

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
)

// DiskStore keeps uploads as files in a directory. References are file paths.
type DiskStore struct {
	dir    string
	logger *slog.Logger
}

var _ Store = (*DiskStore)(nil)

// NewDiskStore creates a store rooted at dir, creating it if needed.
func NewDiskStore(dir string) (*DiskStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &DiskStore{
		dir:    dir,
		logger: slog.Default().With("component", "disk-uploads"),
	}, nil
}

func (s *DiskStore) Save(ctx context.Context, jobID, filename string, r io.Reader) (string, error) {
	path := filepath.Join(s.dir, objectName(jobID, filename))

	f, err := os.Create(path)
	if err != nil {
		return "", err
	}

	n, err := copyChunked(f, r)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(path)
		return "", fmt.Errorf("save upload: %w", err)
	}

	s.logger.Debug("saved upload", "jobID", jobID, "path", path, "bytes", n)
	return path, nil
}

func (s *DiskStore) Open(ctx context.Context, ref string) (string, func(), error) {
	if _, err := os.Stat(ref); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil, fmt.Errorf("%w: %s", ErrUploadNotFound, ref)
		}
		return "", nil, err
	}
	return ref, func() {}, nil
}

func (s *DiskStore) Delete(ctx context.Context, ref string) error {
	if err := os.Remove(ref); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
