package ingestion

import "errors"

var (
	// ErrFrameIndexRequired is returned when a frame index is not provided.
	ErrFrameIndexRequired = errors.New("frame index required")

	// ErrFrameSourceRequired is returned when a job has no frame source.
	ErrFrameSourceRequired = errors.New("frame source required")

	// ErrInvalidMaxAttempts is returned when maxAttempts is not positive.
	ErrInvalidMaxAttempts = errors.New("maxAttempts must be greater than 0")

	// ErrInvalidFrame is returned when the source yields an unusable frame.
	ErrInvalidFrame = errors.New("invalid frame")
)
