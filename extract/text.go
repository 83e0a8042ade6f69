package extract

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"iter"
	"log/slog"
	"os"
	"strings"

	"github.com/poiesic/ragline/core"
)

const (
	formFeed = '\f'

	// maxPageBytes bounds a single page of text.
	maxPageBytes = 16 << 20
)

// TextSource reads plain text where pages are separated by form feeds,
// the layout pdftotext produces. A file without form feeds is one page.
type TextSource struct {
	logger *slog.Logger
}

var _ Source = (*TextSource)(nil)

// NewTextSource creates a plain text page source.
func NewTextSource(opts ...Option) *TextSource {
	o := buildOptions(opts)
	return &TextSource{logger: o.logger.With("component", "text-source")}
}

// Extract yields the pages of the text file at path. The file is read
// twice: once to count pages and once to emit them.
func (s *TextSource) Extract(ctx context.Context, jobID, path string) iter.Seq2[core.PageRecord, error] {
	return func(yield func(core.PageRecord, error) bool) {
		total, err := countPages(path)
		if err != nil {
			yield(core.PageRecord{}, fmt.Errorf("%w: %s: %w", ErrOpenDocument, path, err))
			return
		}

		f, err := os.Open(path)
		if err != nil {
			yield(core.PageRecord{}, fmt.Errorf("%w: %s: %w", ErrOpenDocument, path, err))
			return
		}
		defer f.Close()

		s.logger.Debug("opened text", "path", path, "pages", total)

		scanner := newPageScanner(f)
		num := 0
		for scanner.Scan() {
			if err := ctx.Err(); err != nil {
				yield(core.PageRecord{}, err)
				return
			}
			num++
			page := core.PageRecord{
				JobID:      jobID,
				PageNumber: num,
				TotalPages: total,
				Content:    strings.TrimSpace(scanner.Text()),
				Source:     path,
			}
			if !yield(page, nil) {
				return
			}
		}
		if err := scanner.Err(); err != nil {
			yield(core.PageRecord{}, fmt.Errorf("%w %d: %w", ErrDecodePage, num+1, err))
		}
	}
}

func countPages(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	scanner := newPageScanner(f)
	n := 0
	for scanner.Scan() {
		n++
	}
	return n, scanner.Err()
}

func newPageScanner(f *os.File) *bufio.Scanner {
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), maxPageBytes)
	scanner.Split(scanPages)
	return scanner
}

// scanPages is a bufio.SplitFunc that splits on form feeds. A trailing
// form feed does not produce an empty final page.
func scanPages(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexByte(data, formFeed); i >= 0 {
		return i + 1, data[:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}
