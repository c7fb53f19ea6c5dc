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

import "errors"

// Domain validation errors
var (
	// ErrInvalidRecord indicates an EmbeddingRecord failed validation.
	ErrInvalidRecord = errors.New("invalid embedding record")

	// ErrInvalidMetadata indicates FrameMetadata failed validation.
	ErrInvalidMetadata = errors.New("invalid frame metadata")

	// ErrEmptyVideoID indicates the VideoID field is empty.
	ErrEmptyVideoID = errors.New("video id cannot be empty")

	// ErrEmptyOwnerID indicates the OwnerID field is empty.
	ErrEmptyOwnerID = errors.New("owner id cannot be empty")

	// ErrInvalidTimestamp indicates a negative or non-finite frame timestamp.
	ErrInvalidTimestamp = errors.New("timestamp must be a finite, non-negative number of seconds")

	// ErrEmptyVector indicates the embedding vector is empty.
	ErrEmptyVector = errors.New("vector cannot be empty")

	// ErrInvalidVector indicates the embedding vector holds NaN or Inf components.
	ErrInvalidVector = errors.New("vector contains non-finite values")

	// ErrInvalidKey indicates an identifier contains a reserved byte.
	ErrInvalidKey = errors.New("identifier contains a NUL byte")

	// ErrOwnerMismatch indicates a direct record access by a caller that does not own the record.
	ErrOwnerMismatch = errors.New("record belongs to a different owner")
)
