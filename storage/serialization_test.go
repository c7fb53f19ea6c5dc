package storage

import (
	"testing"

	"github.com/poiesic/vantage/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalUnmarshalRecord(t *testing.T) {
	record := &core.EmbeddingRecord{
		Id:     "video-1-abc",
		Vector: []float32{0.25, -0.5, 1},
		Metadata: core.FrameMetadata{
			VideoID:          "video-1",
			OwnerID:          "42",
			Timestamp:        13.25,
			VideoPath:        "/data/videos/video-1.mp4",
			DetectedClasses:  []string{"person", "dog"},
			ClassConfidences: map[string]float64{"person": 0.91, "dog": 0.4},
		},
	}

	decoded, err := UnmarshalRecord(MarshalRecord(record))
	require.NoError(t, err)
	assert.Equal(t, record, decoded)
}

func TestMarshalRecord_OptionalFieldsStayNil(t *testing.T) {
	record := &core.EmbeddingRecord{
		Id:       "r",
		Vector:   []float32{1},
		Metadata: core.FrameMetadata{VideoID: "v", OwnerID: "o"},
	}

	decoded, err := UnmarshalRecord(MarshalRecord(record))
	require.NoError(t, err)
	assert.Nil(t, decoded.Metadata.DetectedClasses)
	assert.Nil(t, decoded.Metadata.ClassConfidences)
}

func TestMarshalRecord_Deterministic(t *testing.T) {
	record := &core.EmbeddingRecord{
		Id:     "r",
		Vector: []float32{1},
		Metadata: core.FrameMetadata{
			VideoID:          "v",
			OwnerID:          "o",
			ClassConfidences: map[string]float64{"a": 1, "b": 2, "c": 3, "d": 4},
		},
	}
	first := MarshalRecord(record)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, MarshalRecord(record))
	}
}

func TestUnmarshalRecord_Truncated(t *testing.T) {
	record := &core.EmbeddingRecord{
		Id:       "r",
		Vector:   []float32{1, 2, 3},
		Metadata: core.FrameMetadata{VideoID: "v", OwnerID: "o", Timestamp: 1},
	}
	data := MarshalRecord(record)

	for _, cut := range []int{0, 1, len(data) / 2, len(data) - 1} {
		_, err := UnmarshalRecord(data[:cut])
		assert.ErrorIs(t, err, ErrSerializationFailed, "cut at %d", cut)
	}
}
