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


// Package search retrieves ranked video moments for a free-text query.
//
// The Searcher combines two signals scoped to one owner:
//   - dense vector similarity between the encoded query and frame embeddings,
//     calibrated into a confidence in [0, 1]
//   - substring matches between significant query words and the object
//     classes detected in each frame
//
// Candidates from both signals are merged per video without deduplication,
// grouped into temporal clusters by a chain-distance rule, and each cluster
// becomes one Moment with a padded clip range. Moments are ranked by
// confidence, highest first.
//
// A failing signal degrades the search instead of aborting it: the failure
// is logged, reported to the SearchMonitor as a *DegradedError, and the
// other signal carries the query.
package search
