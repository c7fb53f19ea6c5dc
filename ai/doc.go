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


// Package ai provides abstractions for the embedding model used by Vantage.
//
// Queries and video frames are mapped into the same vector space by an
// external encoder. Frame vectors arrive with the indexing input; this
// package covers the query side through the Embedder interface.
//
// # Implementation Packages
//
//   - ai/openai: OpenAI-compatible embedding APIs through langchaingo
//   - ai/mock: deterministic test doubles
//
// Public constructors return the ai.Embedder interface; mock constructors
// return concrete types so tests can inject behavior and count calls.
//
//	embedder, err := openai.NewEmbedder(ai.NewConfig(ai.WithEmbeddingModel("clip")))
//	vector, err := embedder.EncodeText(ctx, "red car at night")
package ai
