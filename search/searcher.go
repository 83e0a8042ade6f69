package search

import (
	"context"
	"log/slog"
	"strings"

	"github.com/poiesic/ragline/ai"
	"github.com/poiesic/ragline/core"
	"github.com/poiesic/ragline/storage"
)

// DefaultTopK is how many passages are used as context.
const DefaultTopK = 5

// Searcher retrieves relevant chunks and generates grounded answers.
type Searcher struct {
	collection storage.Collection
	embedder   ai.Embedder
	generator  ai.Generator
	topK       int
	logger     *slog.Logger
}

// Option configures a Searcher.
type Option func(*Searcher) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Searcher) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// WithTopK sets how many passages Answer uses as context.
// Default is 5.
func WithTopK(k int) Option {
	return func(s *Searcher) error {
		if k < 1 {
			return ErrInvalidTopK
		}
		s.topK = k
		return nil
	}
}

// NewSearcher creates a new searcher.
func NewSearcher(collection storage.Collection, provider ai.AIProvider, opts ...Option) (*Searcher, error) {
	if collection == nil {
		return nil, ErrCollectionRequired
	}
	if provider == nil {
		return nil, ErrAIProviderRequired
	}

	s := &Searcher{
		collection: collection,
		embedder:   provider.Embedder(),
		generator:  provider.Generator(),
		topK:       DefaultTopK,
		logger:     slog.Default(),
	}

	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}

	return s, nil
}

// Retrieve returns up to topK chunks nearest to question, best first.
// Chunks with identical text are returned once, at their best rank.
func (s *Searcher) Retrieve(ctx context.Context, question string, topK int) ([]*core.SearchResult, error) {
	if strings.TrimSpace(question) == "" {
		return nil, ErrEmptyQuestion
	}
	if topK < 1 {
		return nil, ErrInvalidTopK
	}

	embedding, err := s.embedder.EmbedText(ctx, question)
	if err != nil {
		s.logger.Error("error generating embedding for question", "err", err)
		return nil, err
	}

	// Over-fetch so that collapsing duplicates still leaves topK passages.
	matches, err := s.collection.Query(ctx, core.NormalizeVector(embedding), topK*2)
	if err != nil {
		s.logger.Error("error querying for similar chunks", "err", err)
		return nil, err
	}

	seen := make(map[core.ID]bool, len(matches))
	results := make([]*core.SearchResult, 0, topK)
	for _, match := range matches {
		key := core.IDFromContent(match.Record.Text)
		if seen[key] {
			continue
		}
		seen[key] = true
		results = append(results, match)
		if len(results) == topK {
			break
		}
	}

	s.logger.Debug("retrieved passages", "requested", topK, "matched", len(matches), "returned", len(results))
	return results, nil
}

// Answer answers question from the indexed documents.
func (s *Searcher) Answer(ctx context.Context, question string) (string, error) {
	return s.AnswerWithMonitor(ctx, question, nil)
}

// AnswerWithMonitor answers question and reports each step to monitor.
func (s *Searcher) AnswerWithMonitor(ctx context.Context, question string, monitor Monitor) (string, error) {
	if monitor == nil {
		monitor = &noopMonitor{}
	}
	monitor.Start(question)

	results, err := s.Retrieve(ctx, question, s.topK)
	if err != nil {
		return "", err
	}
	monitor.AfterRetrieval(results)

	prompt := BuildPrompt(question, results)
	monitor.AfterPrompt(prompt)

	answer, err := s.generator.Generate(ctx, prompt)
	if err != nil {
		s.logger.Error("error generating answer", "err", err)
		return "", err
	}

	monitor.Finish(answer)
	return answer, nil
}
