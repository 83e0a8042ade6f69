// Package chunking splits pages into overlapping, retrievable chunks.
package chunking

import (
	"errors"
	"fmt"
	"iter"
	"strings"

	"github.com/tmc/langchaingo/textsplitter"

	"github.com/poiesic/ragline/core"
)

const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 200
)

// DefaultSeparators are tried in order, from paragraph breaks down to
// single characters.
var DefaultSeparators = []string{"\n\n", "\n", ".", " ", ""}

// ErrInvalidOptions is returned when chunk size and overlap are inconsistent.
var ErrInvalidOptions = errors.New("invalid chunking options")

// Chunker splits page content with a recursive character splitter.
// Output depends only on the page content and the options, so rerunning a
// document yields the same chunk IDs.
type Chunker struct {
	size       int
	overlap    int
	separators []string
	splitter   textsplitter.RecursiveCharacter
}

// Option configures a Chunker.
type Option func(*Chunker)

// WithChunkSize sets the maximum chunk length in characters.
func WithChunkSize(size int) Option {
	return func(c *Chunker) {
		c.size = size
	}
}

// WithChunkOverlap sets how many characters consecutive chunks share.
func WithChunkOverlap(overlap int) Option {
	return func(c *Chunker) {
		c.overlap = overlap
	}
}

// WithSeparators overrides DefaultSeparators.
func WithSeparators(separators []string) Option {
	return func(c *Chunker) {
		c.separators = separators
	}
}

// New creates a Chunker.
func New(opts ...Option) (*Chunker, error) {
	c := &Chunker{
		size:       DefaultChunkSize,
		overlap:    DefaultChunkOverlap,
		separators: DefaultSeparators,
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.size < 1 || c.overlap < 0 || c.overlap >= c.size {
		return nil, fmt.Errorf("%w: size=%d overlap=%d", ErrInvalidOptions, c.size, c.overlap)
	}
	if len(c.separators) == 0 {
		return nil, fmt.Errorf("%w: no separators", ErrInvalidOptions)
	}

	c.splitter = textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(c.size),
		textsplitter.WithChunkOverlap(c.overlap),
		textsplitter.WithSeparators(c.separators),
	)
	return c, nil
}

// Split returns the chunks of a single page's text.
func (c *Chunker) Split(text string) ([]string, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	return c.splitter.SplitText(text)
}

// Process turns a page stream into a chunk stream. Each chunk's ID is
// derived from its page number, its index within the page, and jobID.
// Errors from the page stream are passed through and end iteration.
func (c *Chunker) Process(pages iter.Seq2[core.PageRecord, error], jobID string) iter.Seq2[core.ChunkRecord, error] {
	return func(yield func(core.ChunkRecord, error) bool) {
		for page, err := range pages {
			if err != nil {
				yield(core.ChunkRecord{}, err)
				return
			}

			texts, err := c.Split(page.Content)
			if err != nil {
				yield(core.ChunkRecord{}, fmt.Errorf("split page %d: %w", page.PageNumber, err))
				return
			}

			for i, text := range texts {
				chunk := core.ChunkRecord{
					ID:     core.ChunkID(page.PageNumber, i, jobID),
					JobID:  jobID,
					Page:   page.PageNumber,
					Text:   text,
					Source: page.Source,
				}
				if !yield(chunk, nil) {
					return
				}
			}
		}
	}
}
