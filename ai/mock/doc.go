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


// Package mock provides test doubles for the ai.Embedder interface.
//
//	// Default deterministic behavior
//	embedder := mock.NewMockEmbedder()
//	vector, err := embedder.EncodeText(ctx, "test")
//
//	// Custom behavior injection
//	failing := mock.NewMockEmbedder().
//	    WithEncodeTextFunc(func(ctx context.Context, text string) ([]float32, error) {
//	        return nil, errors.New("model offline")
//	    })
//
// DeterministicVector is exported so tests can store frames whose vectors
// exactly match a query.
package mock
