package storage

import (
	"context"

	"github.com/poiesic/vantage/core"
)

// VectorIndex is an append-mostly keyed store of (vector, metadata) records.
// Implementations must be thread-safe and support concurrent readers.
// Every read is scoped to one owner at the index boundary.
type VectorIndex interface {
	// Add inserts one record and returns its ID.
	// If id is empty a fresh unique ID is generated.
	// Adding an existing ID replaces that record.
	Add(ctx context.Context, vector []float32, meta core.FrameMetadata, id string) (string, error)

	// Query returns up to k records owned by ownerID nearest to vector under
	// cosine distance (1 - cosine similarity), ordered by ascending distance.
	Query(ctx context.Context, vector []float32, k int, ownerID string) ([]core.VectorMatch, error)

	// DeleteByVideo removes every record of videoID and returns how many were removed.
	// Deleting a video with no records is a no-op.
	DeleteByVideo(ctx context.Context, videoID string) (int, error)

	// Get retrieves a single record by ID for direct access.
	// Returns ErrNotFound if the record doesn't exist and core.ErrOwnerMismatch
	// if it belongs to a different owner.
	Get(ctx context.Context, id string, ownerID string) (*core.EmbeddingRecord, error)

	// Count returns the total number of live records.
	Count(ctx context.Context) (int, error)

	// Close releases resources held by the index.
	Close() error
}

// TagIndex matches query words against detected-object classes of stored frames.
type TagIndex interface {
	// ScanTags scans the records of ownerID in a fixed order and returns those
	// whose detected classes contain at least one of words as a substring.
	// Scanning stops as soon as budget matches have been collected.
	// words are expected in lower case.
	ScanTags(ctx context.Context, words []string, ownerID string, budget int) ([]core.TagMatch, error)
}

// FrameIndex combines vector and tag access over the same frame records.
type FrameIndex interface {
	VectorIndex
	TagIndex
}

// JobStatusWriter records the indexing status of a video.
// From the retrieval core's perspective the metadata store is write-only.
type JobStatusWriter interface {
	// UpdateStatus sets the status of videoID and the error message (empty on success).
	UpdateStatus(ctx context.Context, videoID, ownerID string, status core.JobStatus, message string) error
}
