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


package core

import (
	"fmt"
	"math"
	"strings"
)

// ValidateFrameMetadata validates FrameMetadata according to domain rules.
//
// Validation rules:
//   - VideoID and OwnerID must not be empty and must not contain NUL bytes
//   - Timestamp must be finite and >= 0
//
// NOT validated (optional detector output):
//   - DetectedClasses
//   - ClassConfidences
//   - VideoPath (moments without a path simply get no clip)
func ValidateFrameMetadata(meta *FrameMetadata) error {
	if meta == nil {
		return fmt.Errorf("%w: metadata is nil", ErrInvalidMetadata)
	}
	if meta.VideoID == "" {
		return fmt.Errorf("%w: %w", ErrInvalidMetadata, ErrEmptyVideoID)
	}
	if meta.OwnerID == "" {
		return fmt.Errorf("%w: %w", ErrInvalidMetadata, ErrEmptyOwnerID)
	}
	if err := ValidateKey(meta.VideoID); err != nil {
		return fmt.Errorf("%w: video id: %w", ErrInvalidMetadata, err)
	}
	if err := ValidateKey(meta.OwnerID); err != nil {
		return fmt.Errorf("%w: owner id: %w", ErrInvalidMetadata, err)
	}
	if !IsValidTimestamp(meta.Timestamp) {
		return fmt.Errorf("%w: %w", ErrInvalidMetadata, ErrInvalidTimestamp)
	}
	return nil
}

// ValidateEmbeddingRecord validates an EmbeddingRecord according to domain rules.
//
// Validation rules:
//   - Id must not contain NUL bytes (an empty Id is assigned by the index)
//   - Vector must be non-empty and finite
//   - Metadata must pass ValidateFrameMetadata
func ValidateEmbeddingRecord(record *EmbeddingRecord) error {
	if record == nil {
		return fmt.Errorf("%w: record is nil", ErrInvalidRecord)
	}
	if err := ValidateKey(record.Id); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidRecord, err)
	}
	if err := ValidateVector(record.Vector); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidRecord, err)
	}
	if err := ValidateFrameMetadata(&record.Metadata); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidRecord, err)
	}
	return nil
}

// ValidateVector checks that a vector is non-empty and holds only finite values.
func ValidateVector(v []float32) error {
	if len(v) == 0 {
		return ErrEmptyVector
	}
	for _, x := range v {
		f := float64(x)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return ErrInvalidVector
		}
	}
	return nil
}

// ValidateKey rejects identifiers that would break composite storage keys.
func ValidateKey(s string) error {
	if strings.IndexByte(s, 0) >= 0 {
		return ErrInvalidKey
	}
	return nil
}

// IsValidTimestamp checks if a frame timestamp is finite and non-negative.
func IsValidTimestamp(ts float64) bool {
	return !math.IsNaN(ts) && !math.IsInf(ts, 0) && ts >= 0
}

// CheckOwner returns ErrOwnerMismatch unless meta belongs to ownerID.
func CheckOwner(meta *FrameMetadata, ownerID string) error {
	if meta.OwnerID != ownerID {
		return fmt.Errorf("%w: video %s", ErrOwnerMismatch, meta.VideoID)
	}
	return nil
}
