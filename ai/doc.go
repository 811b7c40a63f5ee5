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


// Package ai provides abstractions for the embedding service consumed by ragquota.
//
// The ingestion and query pipelines depend on the Embedder interface only; the
// inference call itself is an opaque text-to-vector function.
//
// # Implementation Packages
//
//   - ai/openai: Production implementation using OpenAI-compatible APIs
//   - ai/mock: Test doubles for unit testing without external dependencies
//
// # Constructor Return Type Pattern
//
// Public constructors (openai.NewProvider, openai.NewEmbedder) return INTERFACE
// types. Test constructors (mock.NewMockEmbedder) return CONCRETE types so tests
// can inject behavior and assert on call counts.
//
// # Malformed Responses
//
// Callers validate embedding responses with CheckEmbeddings. A response with the
// wrong number of vectors, or with an empty vector, is reported as
// ErrMalformedEmbedding so pipelines can fail fast (ingestion) or degrade to an
// empty result (query).
//
// # Usage Example
//
//	config := ai.NewConfig(ai.WithEmbeddingModel("text-embedding-3-small"))
//	provider, err := openai.NewProvider(config)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer provider.Close()
//
//	vectors, err := provider.Embedder().EmbedTexts(ctx, []string{"Hello world"})
package ai
