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


package ai

import (
	"errors"
	"fmt"
	"strings"
)

// Supported provider names.
const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

// Config holds configuration for AI service providers.
type Config struct {
	// Provider selects the backend: ProviderOpenAI (any OpenAI-compatible API)
	// or ProviderGemini.
	Provider string

	// EmbeddingHost is the base URL for the embedding service API.
	// Ignored by the Gemini provider.
	// Example: "http://localhost:11434/v1" for local OpenAI-compatible server
	EmbeddingHost string

	// GenerationHost is the base URL for the answer generation API.
	// Ignored by the Gemini provider.
	GenerationHost string

	// EmbeddingModel is the model identifier to use for text embeddings.
	// Example: "embeddinggemma", "gemini-embedding-001"
	EmbeddingModel string

	// GenerationModel is the model identifier used to answer questions.
	// Example: "qwen2.5:3b", "gemini-2.5-flash"
	GenerationModel string

	// APIKey authenticates against hosted services. Local OpenAI-compatible
	// servers accept an empty key.
	APIKey string
}

// ConfigOption is a functional option for configuring a Config.
type ConfigOption func(*Config)

// WithProvider selects the provider backend.
func WithProvider(provider string) ConfigOption {
	return func(c *Config) {
		c.Provider = provider
	}
}

// WithEmbeddingHost sets the embedding service host URL.
func WithEmbeddingHost(host string) ConfigOption {
	return func(c *Config) {
		c.EmbeddingHost = host
	}
}

// WithGenerationHost sets the generation service host URL.
func WithGenerationHost(host string) ConfigOption {
	return func(c *Config) {
		c.GenerationHost = host
	}
}

// WithHost sets both embedding and generation hosts to the same URL.
func WithHost(host string) ConfigOption {
	return func(c *Config) {
		c.EmbeddingHost = host
		c.GenerationHost = host
	}
}

// WithEmbeddingModel sets the embedding model identifier.
func WithEmbeddingModel(model string) ConfigOption {
	return func(c *Config) {
		c.EmbeddingModel = model
	}
}

// WithGenerationModel sets the generation model identifier.
func WithGenerationModel(model string) ConfigOption {
	return func(c *Config) {
		c.GenerationModel = model
	}
}

// WithAPIKey sets the credential used for hosted providers.
func WithAPIKey(key string) ConfigOption {
	return func(c *Config) {
		c.APIKey = key
	}
}

// DefaultConfig returns a Config with sensible defaults for local OpenAI-compatible services.
// By default, both embedding and generation use the same host.
func DefaultConfig() *Config {
	defaultHost := "http://localhost:11434/v1"
	return &Config{
		Provider:        ProviderOpenAI,
		EmbeddingHost:   defaultHost,
		GenerationHost:  defaultHost,
		EmbeddingModel:  "embeddinggemma",
		GenerationModel: "qwen2.5:3b",
	}
}

// DefaultGeminiConfig returns a Config for the hosted Gemini API.
func DefaultGeminiConfig(apiKey string) *Config {
	return &Config{
		Provider:        ProviderGemini,
		EmbeddingModel:  "gemini-embedding-001",
		GenerationModel: "gemini-2.5-flash",
		APIKey:          apiKey,
	}
}

// NewConfig creates a Config with the default values and applies the provided options.
//
// Example:
//
//	cfg := NewConfig(
//	    WithHost("http://localhost:11434/v1"),
//	    WithEmbeddingModel("text-embedding-3-small"),
//	)
func NewConfig(opts ...ConfigOption) *Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// Normalize ensures the configuration is in a canonical form.
// For the OpenAI provider it adds the /v1 suffix to hosts if missing, which is
// required by most OpenAI-compatible APIs (Ollama, LocalAI, vLLM, etc).
func (c *Config) Normalize() {
	c.Provider = strings.ToLower(strings.TrimSpace(c.Provider))
	if c.Provider == "" {
		c.Provider = ProviderOpenAI
	}
	if c.Provider != ProviderOpenAI {
		return
	}
	c.EmbeddingHost = withV1Suffix(c.EmbeddingHost)
	c.GenerationHost = withV1Suffix(c.GenerationHost)
}

func withV1Suffix(host string) string {
	if host == "" || strings.HasSuffix(host, "/v1") {
		return host
	}
	return strings.TrimSuffix(host, "/") + "/v1"
}

// Validate checks that the configuration is valid and complete.
// It automatically normalizes the configuration before validation.
func (c *Config) Validate() error {
	c.Normalize()

	switch c.Provider {
	case ProviderOpenAI:
		if c.EmbeddingHost == "" {
			return errors.New("ai config: EmbeddingHost is required")
		}
		if c.GenerationHost == "" {
			return errors.New("ai config: GenerationHost is required")
		}
	case ProviderGemini:
		if c.APIKey == "" {
			return errors.New("ai config: APIKey is required for gemini")
		}
	default:
		return fmt.Errorf("ai config: unknown provider %q", c.Provider)
	}

	if c.EmbeddingModel == "" {
		return errors.New("ai config: EmbeddingModel is required")
	}
	if c.GenerationModel == "" {
		return errors.New("ai config: GenerationModel is required")
	}
	return nil
}
