package core

import (
	"encoding/hex"
	"math"
	"strconv"

	"github.com/go-crypt/x/blake2b"
	"github.com/google/uuid"
)

// FrameID generates a deterministic record ID for a frame of a video using BLAKE2b hashing.
// Re-indexing the same video produces the same IDs, so a retried job overwrites
// rather than duplicates its records.
func FrameID(videoID string, timestamp float64) string {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(videoID))
	h.Write([]byte{0})
	h.Write([]byte(strconv.FormatFloat(timestamp, 'f', -1, 64)))
	return videoID + "-" + hex.EncodeToString(h.Sum(nil))
}

// NewRecordID returns a fresh random record ID.
func NewRecordID() string {
	return uuid.NewString()
}

// FrameMetadata describes one indexed frame. It is produced once per frame and never mutated.
type FrameMetadata struct {
	VideoID   string
	OwnerID   string
	Timestamp float64 // seconds from the start of the video
	VideoPath string

	// DetectedClasses holds object classes found in the frame (optional).
	DetectedClasses []string
	// ClassConfidences maps a detected class to the detector's confidence (optional).
	ClassConfidences map[string]float64
}

// HasClasses reports whether any object classes were detected in the frame.
func (m FrameMetadata) HasClasses() bool {
	return len(m.DetectedClasses) > 0
}

// EmbeddingRecord is a stored (vector, metadata) pair. Records are immutable once written.
type EmbeddingRecord struct {
	Id       string
	Vector   []float32
	Metadata FrameMetadata
}

// VectorMatch is a raw nearest-neighbor hit returned by a vector index.
type VectorMatch struct {
	Id       string
	Metadata FrameMetadata
	Distance float64 // 1 - cosine similarity, in [0, 2]
}

// TagMatch is a record whose detected classes matched a query word.
type TagMatch struct {
	Id         string
	Metadata   FrameMetadata
	Confidence float64
}

// Source identifies which retrieval signal produced a candidate.
type Source int

const (
	// SourceVector marks candidates from dense vector similarity.
	SourceVector Source = iota + 1
	// SourceTag marks candidates from detected-object tag matches.
	SourceTag
)

// String returns the match type label used on moments.
func (s Source) String() string {
	switch s {
	case SourceVector:
		return "vector"
	case SourceTag:
		return "tag"
	default:
		return "unknown"
	}
}

// MarshalText renders the label, so moments serialize as "vector" or "tag".
func (s Source) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// SearchCandidate is a transient per-query hit with a calibrated confidence in [0,1].
type SearchCandidate struct {
	VideoID    string
	Timestamp  float64
	Confidence float64
	Metadata   FrameMetadata
	Source     Source
}

// Moment is a ranked, time-bounded result representing one matching segment of a video.
type Moment struct {
	Id           string
	Confidence   float64
	VideoID      string
	StartTime    float64
	EndTime      float64
	ClipDuration float64
	MatchCount   int
	ClipPath     string // empty when no clip was materialized
	ClipURL      string // empty when ClipPath is empty
	MatchType    Source
	Metadata     FrameMetadata // metadata of the best candidate in the cluster
}

// HasClip reports whether a clip file backs this moment.
func (m Moment) HasClip() bool {
	return m.ClipPath != ""
}

// JobStatus is the indexing state of a video as recorded in the metadata store.
type JobStatus string

const (
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
)

// Normalize scales v to unit length in place and returns its original norm.
// Zero vectors are left untouched.
func Normalize(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	norm := math.Sqrt(sum)
	if norm == 0 {
		return 0
	}
	for i := range v {
		v[i] = float32(float64(v[i]) / norm)
	}
	return norm
}

// CosineDistance returns 1 - cosine similarity of a and b, clamped to [0, 2].
// Vectors of different length are compared over their common prefix; a zero
// vector is maximally uninformative and yields distance 1.
func CosineDistance(a, b []float32) float64 {
	n := min(len(a), len(b))
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 1
	}
	d := 1 - dot/(math.Sqrt(na)*math.Sqrt(nb))
	return math.Max(0, math.Min(2, d))
}
