package openai

import (
	"context"
	"log/slog"

	"github.com/poiesic/ragline/ai"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// Generator implements ai.Generator using OpenAI-compatible chat APIs.
type Generator struct {
	client llms.Model
	logger *slog.Logger
}

var _ ai.Generator = (*Generator)(nil)

func newGenerator(config *ai.Config) (*Generator, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	client, err := openai.New(
		openai.WithBaseURL(config.GenerationHost),
		openai.WithToken(token(config)),
		openai.WithModel(config.GenerationModel),
	)
	if err != nil {
		return nil, err
	}

	return &Generator{
		client: client,
		logger: slog.Default().With("component", "openai-generator"),
	}, nil
}

// NewGenerator creates a new generator using the provided configuration.
//
// Returns ai.Generator interface to enforce abstraction.
func NewGenerator(config *ai.Config) (ai.Generator, error) {
	return newGenerator(config)
}

// Generate sends prompt as a single user message and returns the completion text.
func (g *Generator) Generate(ctx context.Context, prompt string) (string, error) {
	g.logger.Debug("generating answer", "promptLength", len(prompt))

	answer, err := llms.GenerateFromSinglePrompt(ctx, g.client, prompt, llms.WithTemperature(0))
	if err != nil {
		g.logger.Error("failed to generate answer", "err", err)
		return "", err
	}
	return answer, nil
}
