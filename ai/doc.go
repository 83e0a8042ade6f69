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


// Package ai provides abstractions for the model services used by ragline.
//
// Two capabilities are needed: turning text into vectors (Embedder) and
// answering a prompt (Generator). AIProvider bundles both so they share
// configuration and client lifecycle.
//
// # Implementation Packages
//
//   - ai/openai: OpenAI-compatible APIs (OpenAI, Ollama, vLLM) via langchaingo
//   - ai/gemini: the hosted Gemini API via generative-ai-go
//   - ai/mock: deterministic test doubles
//
// # Constructor Return Type Pattern
//
// Public constructors (openai.NewProvider, gemini.NewProvider) return the
// ai.AIProvider interface. Mock constructors return concrete types so tests
// can inject behavior and read call counts.
//
// # Usage Example
//
//	provider, err := openai.NewProvider(ai.DefaultConfig())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer provider.Close()
//
//	vec, err := provider.Embedder().EmbedText(ctx, "Hello world")
//	answer, err := provider.Generator().Generate(ctx, prompt)
package ai
