// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


// Package gemini implements ai.AIProvider on top of the hosted Gemini API.
package gemini

import (
	"context"
	"log/slog"

	"github.com/google/generative-ai-go/genai"
	"github.com/poiesic/ragline/ai"
	"google.golang.org/api/option"
)

// Provider implements ai.AIProvider with a single shared genai client.
type Provider struct {
	client    *genai.Client
	embedder  *Embedder
	generator *Generator
	logger    *slog.Logger
}

// NewProvider creates a Gemini-backed provider. The config must select
// ai.ProviderGemini and carry an API key.
//
// Returns ai.AIProvider interface to enforce abstraction.
func NewProvider(ctx context.Context, config *ai.Config) (ai.AIProvider, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(config.APIKey))
	if err != nil {
		return nil, err
	}

	return &Provider{
		client:    client,
		embedder:  newEmbedder(client, config.EmbeddingModel),
		generator: newGenerator(client, config.GenerationModel),
		logger:    slog.Default().With("component", "gemini-provider"),
	}, nil
}

// Embedder returns the text embedding service.
func (p *Provider) Embedder() ai.Embedder {
	return p.embedder
}

// Generator returns the answer generation service.
func (p *Provider) Generator() ai.Generator {
	return p.generator
}

// Close releases the underlying genai client.
func (p *Provider) Close() error {
	p.logger.Debug("closing Gemini provider")
	return p.client.Close()
}
