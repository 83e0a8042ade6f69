package extract

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/poiesic/ragline/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func collect(t *testing.T, src Source, path string) ([]core.PageRecord, error) {
	t.Helper()
	var pages []core.PageRecord
	for page, err := range src.Extract(context.Background(), "job-1", path) {
		if err != nil {
			return pages, err
		}
		pages = append(pages, page)
	}
	return pages, nil
}

func TestTextSource(t *testing.T) {
	t.Run("splits on form feed", func(t *testing.T) {
		path := writeFile(t, "doc.txt", "  first page \n\fsecond page\f\n\nthird\f")

		pages, err := collect(t, NewTextSource(), path)
		require.NoError(t, err)
		require.Len(t, pages, 3)

		assert.Equal(t, "first page", pages[0].Content)
		assert.Equal(t, "second page", pages[1].Content)
		assert.Equal(t, "third", pages[2].Content)
		for i, p := range pages {
			assert.Equal(t, i+1, p.PageNumber)
			assert.Equal(t, 3, p.TotalPages)
			assert.Equal(t, "job-1", p.JobID)
			assert.Equal(t, path, p.Source)
		}
	})

	t.Run("no form feed is one page", func(t *testing.T) {
		path := writeFile(t, "doc.txt", "just one page")

		pages, err := collect(t, NewTextSource(), path)
		require.NoError(t, err)
		require.Len(t, pages, 1)
		assert.Equal(t, 1, pages[0].TotalPages)
	})

	t.Run("blank page kept", func(t *testing.T) {
		path := writeFile(t, "doc.txt", "a\f   \fb")

		pages, err := collect(t, NewTextSource(), path)
		require.NoError(t, err)
		require.Len(t, pages, 3)
		assert.Empty(t, pages[1].Content)
	})

	t.Run("empty file has no pages", func(t *testing.T) {
		path := writeFile(t, "doc.txt", "")

		pages, err := collect(t, NewTextSource(), path)
		require.NoError(t, err)
		assert.Empty(t, pages)
	})

	t.Run("missing file", func(t *testing.T) {
		pages, err := collect(t, NewTextSource(), filepath.Join(t.TempDir(), "nope.txt"))
		assert.ErrorIs(t, err, ErrOpenDocument)
		assert.Empty(t, pages)
	})

	t.Run("stops early", func(t *testing.T) {
		path := writeFile(t, "doc.txt", "a\fb\fc")

		count := 0
		for _, err := range NewTextSource().Extract(context.Background(), "job-1", path) {
			require.NoError(t, err)
			count++
			if count == 2 {
				break
			}
		}
		assert.Equal(t, 2, count)
	})

	t.Run("cancelled context", func(t *testing.T) {
		path := writeFile(t, "doc.txt", "a\fb")
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		var gotErr error
		for _, err := range NewTextSource().Extract(ctx, "job-1", path) {
			gotErr = err
		}
		assert.ErrorIs(t, gotErr, context.Canceled)
	})
}

func TestPDFSource_OpenErrors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := collect(t, NewPDFSource(), filepath.Join(t.TempDir(), "missing.pdf"))
		assert.ErrorIs(t, err, ErrOpenDocument)
	})

	t.Run("not a pdf", func(t *testing.T) {
		path := writeFile(t, "fake.pdf", "this is plain text, not a PDF")
		_, err := collect(t, NewPDFSource(), path)
		assert.ErrorIs(t, err, ErrOpenDocument)
	})

	t.Run("validation rejects garbage", func(t *testing.T) {
		path := writeFile(t, "fake.pdf", "%PDF-1.7\ngarbage")
		_, err := collect(t, NewPDFSource(WithValidation(true)), path)
		assert.ErrorIs(t, err, ErrOpenDocument)
		assert.ErrorIs(t, err, ErrInvalidPDF)
	})

	t.Run("garbage without validation fails on open", func(t *testing.T) {
		path := writeFile(t, "fake.pdf", "%PDF-1.7\ngarbage")
		_, err := collect(t, NewPDFSource(), path)
		assert.ErrorIs(t, err, ErrOpenDocument)
		assert.NotErrorIs(t, err, ErrInvalidPDF)
	})

	t.Run("open is deferred until iteration", func(t *testing.T) {
		seq := NewPDFSource(WithValidation(true)).Extract(context.Background(), "job-1", "/does/not/exist.pdf")
		assert.NotNil(t, seq)
	})
}

func TestForPath(t *testing.T) {
	tests := []struct {
		path    string
		want    any
		wantErr error
	}{
		{path: "report.pdf", want: &PDFSource{}},
		{path: "REPORT.PDF", want: &PDFSource{}},
		{path: "notes.txt", want: &TextSource{}},
		{path: "slides.pptx", wantErr: ErrUnsupportedFormat},
		{path: "noext", wantErr: ErrUnsupportedFormat},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			src, err := ForPath(tt.path)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.IsType(t, tt.want, src)
		})
	}
}

func TestScanPages(t *testing.T) {
	adv, tok, err := scanPages([]byte("ab\fcd"), false)
	require.NoError(t, err)
	assert.Equal(t, 3, adv)
	assert.Equal(t, "ab", string(tok))

	adv, tok, err = scanPages([]byte("cd"), false)
	require.NoError(t, err)
	assert.Equal(t, 0, adv)
	assert.Nil(t, tok)

	adv, tok, err = scanPages([]byte("cd"), true)
	require.NoError(t, err)
	assert.Equal(t, 2, adv)
	assert.Equal(t, "cd", string(tok))
}
