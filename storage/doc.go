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


// Package storage provides the storage abstraction layer for vantage.
//
// This package defines index interfaces that decouple the retrieval core from
// the storage implementation. The badger subpackage stores frame embeddings;
// the sqlite subpackage records indexing job status.
//
// # Architecture
//
//   - VectorIndex: keyed (vector, metadata) records with owner-scoped
//     nearest-neighbor queries and deletion by video
//   - TagIndex: owner-scoped keyword scans over detected-object classes
//   - FrameIndex: both of the above over one record set
//   - JobStatusWriter: write-only view of the video metadata store
//
// # Owner Scoping
//
// Every read takes an owner ID and only ever touches that owner's records.
// Scoping is enforced by key layout inside the implementation, never by
// filtering results after the fact.
//
// # Serialization
//
// Records are kept as typed structs in memory. MarshalRecord and
// UnmarshalRecord encode them with MUS only at the storage boundary.
//
// # Thread Safety
//
// All implementations must be thread-safe and support concurrent access
// from multiple goroutines.
package storage
