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


// Package calibration converts raw cosine distances into bounded confidence values.
//
// A Model is loaded once from a calibration artifact: a JSON document whose
// "stats" object holds, per semantic category, the mean, std, min, max and
// count of cosine similarities observed on a held-out calibration set.
// Two scalars are derived at load time:
//
//	floor   = stats[off].max * 1.1   // similarity at or below => confidence 0
//	ceiling = stats[exact].mean      // similarity at or above => confidence 1
//
// and confidence is the clamped linear interpolation between them.
//
// There is no safe default mapping, so every load failure is returned as a
// *FatalError and the process must not serve search traffic. A Model is
// immutable; changing the artifact requires a restart.
package calibration
