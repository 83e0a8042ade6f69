package gemini

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/poiesic/ragline/ai"
)

// Generator implements ai.Generator using Gemini generative models.
type Generator struct {
	client    *genai.Client
	modelName string
	logger    *slog.Logger
}

var _ ai.Generator = (*Generator)(nil)

func newGenerator(client *genai.Client, modelName string) *Generator {
	return &Generator{
		client:    client,
		modelName: modelName,
		logger:    slog.Default().With("component", "gemini-generator"),
	}
}

// Generate returns the concatenated text parts of the first candidate.
func (g *Generator) Generate(ctx context.Context, prompt string) (string, error) {
	m := g.client.GenerativeModel(g.modelName)
	m.SetTemperature(0)

	resp, err := m.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		g.logger.Warn("gemini returned no candidates")
		return "", nil
	}

	var b strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		if t, ok := p.(genai.Text); ok {
			b.WriteString(string(t))
		}
	}
	return b.String(), nil
}
