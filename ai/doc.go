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

// Package ai provides abstractions for the embedding services used during
// protocol ingestion.
//
// The central interface is Embedder, which turns chunk text into vectors.
// AIProvider wraps an Embedder with a lifecycle so callers can construct
// and release the underlying client in one place.
//
// # Implementation Packages
//
//   - ai/openai: any OpenAI-compatible embedding server, via langchaingo
//   - ai/voyage: the Voyage AI REST API
//   - ai/mock: test doubles for unit testing without external services
//
// # Constructor Return Type Pattern
//
// Public constructors (openai.NewProvider, voyage.NewEmbedder) return
// INTERFACE types so the ingestion pipeline depends only on ai.Embedder.
// Test constructors (mock.NewMockEmbedder) return CONCRETE types so tests can
// inject behavior and assert on call counts.
//
//	cfg := ai.NewConfig(ai.WithEmbeddingModel("nomic-embed-text"))
//	provider, err := openai.NewProvider(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer provider.Close()
//
//	vectors, err := provider.Embedder().EmbedTexts(ctx, texts)
package ai
