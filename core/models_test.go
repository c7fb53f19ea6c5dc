package core

import (
	"math"
	"testing"
)

func TestFrameID(t *testing.T) {
	id1 := FrameID("video-1", 12.5)
	id2 := FrameID("video-1", 12.5)
	if id1 != id2 {
		t.Errorf("FrameID() produced different IDs for the same frame: %s vs %s", id1, id2)
	}

	if FrameID("video-1", 13) == id1 {
		t.Error("FrameID() collided for different timestamps")
	}
	if FrameID("video-2", 12.5) == id1 {
		t.Error("FrameID() collided for different videos")
	}
}

func TestNewRecordID(t *testing.T) {
	if NewRecordID() == NewRecordID() {
		t.Error("NewRecordID() returned the same ID twice")
	}
}

func TestCosineDistance(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 0}, []float32{1, 0}, 0},
		{"scaled", []float32{2, 0}, []float32{0.5, 0}, 0},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 1},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, 2},
		{"zero vector", []float32{0, 0}, []float32{1, 0}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CosineDistance(tt.a, tt.b)
			if math.Abs(got-tt.want) > 1e-6 {
				t.Errorf("CosineDistance() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNormalize(t *testing.T) {
	v := []float32{3, 4}
	norm := Normalize(v)
	if math.Abs(norm-5) > 1e-6 {
		t.Errorf("Normalize() norm = %v, want 5", norm)
	}
	if math.Abs(float64(v[0])-0.6) > 1e-6 || math.Abs(float64(v[1])-0.8) > 1e-6 {
		t.Errorf("Normalize() = %v, want [0.6 0.8]", v)
	}
}

func TestSourceString(t *testing.T) {
	if SourceVector.String() != "vector" || SourceTag.String() != "tag" {
		t.Errorf("unexpected labels %q %q", SourceVector, SourceTag)
	}
	if Source(0).String() != "unknown" {
		t.Errorf("zero Source label = %q", Source(0))
	}
}

func TestMomentHasClipOnMapValues(t *testing.T) {
	moments := map[string]Moment{
		"cut":    {ClipPath: "/clips/v1_9_10.mp4"},
		"no-cut": {},
	}
	if !moments["cut"].HasClip() {
		t.Error("HasClip() = false for a moment with a clip path")
	}
	if moments["no-cut"].HasClip() {
		t.Error("HasClip() = true for a moment without a clip path")
	}

	frames := map[string]FrameMetadata{"tagged": {DetectedClasses: []string{"dog"}}}
	if !frames["tagged"].HasClasses() {
		t.Error("HasClasses() = false for a frame with detected classes")
	}
}
