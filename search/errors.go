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


package search

import (
	"errors"
	"fmt"
)

var (
	// ErrVectorIndexRequired is returned when a vector index is not provided.
	ErrVectorIndexRequired = errors.New("vector index required")

	// ErrTagIndexRequired is returned when a tag index is not provided.
	ErrTagIndexRequired = errors.New("tag index required")

	// ErrEmbedderRequired is returned when an embedder is not provided.
	ErrEmbedderRequired = errors.New("embedder required")

	// ErrCalibratorRequired is returned when a calibration model is not provided.
	ErrCalibratorRequired = errors.New("calibrator required")

	// ErrEmptyQuery is returned for a blank query string.
	ErrEmptyQuery = errors.New("query is empty")

	// ErrInvalidLimit is returned when the result limit is not positive.
	ErrInvalidLimit = errors.New("limit must be positive")

	// ErrOwnerRequired is returned when a search is not scoped to an owner.
	ErrOwnerRequired = errors.New("owner id required")
)

// Stage names the part of a search that failed without aborting it.
type Stage string

const (
	StageEmbed  Stage = "embed"
	StageVector Stage = "vector"
	StageTag    Stage = "tag"
	StageClip   Stage = "clip"
)

// DegradedError describes a recovered per-query failure. The search
// continues with the affected stage contributing nothing.
type DegradedError struct {
	Stage Stage
	Err   error
}

func (e *DegradedError) Error() string {
	return fmt.Sprintf("search degraded at %s stage: %v", e.Stage, e.Err)
}

func (e *DegradedError) Unwrap() error {
	return e.Err
}
