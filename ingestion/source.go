package ingestion

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
)

// Frame is one encoded video frame with its detector output.
type Frame struct {
	Timestamp        float64            `json:"timestamp"`
	Vector           []float32          `json:"vector"`
	DetectedClasses  []string           `json:"detected_classes,omitempty"`
	ClassConfidences map[string]float64 `json:"class_confidences,omitempty"`
}

// FrameSource yields the frames of one video in any order.
// Next returns io.EOF once the frames are exhausted.
type FrameSource interface {
	Next(ctx context.Context) (*Frame, error)
}

// SliceSource serves frames from memory.
type SliceSource struct {
	frames []Frame
	pos    int
}

// NewSliceSource creates a source over frames.
func NewSliceSource(frames []Frame) *SliceSource {
	return &SliceSource{frames: frames}
}

// Next returns the next frame or io.EOF.
func (s *SliceSource) Next(ctx context.Context) (*Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.pos >= len(s.frames) {
		return nil, io.EOF
	}
	f := &s.frames[s.pos]
	s.pos++
	return f, nil
}

// JSONLSource decodes one JSON frame object per line.
type JSONLSource struct {
	scanner *bufio.Scanner
	line    int
}

// maxLineSize fits a few thousand float dimensions per line.
const maxLineSize = 4 << 20

// NewJSONLSource reads frames from r. Blank lines are skipped.
func NewJSONLSource(r io.Reader) *JSONLSource {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	return &JSONLSource{scanner: scanner}
}

// Next decodes the next frame or returns io.EOF.
func (s *JSONLSource) Next(ctx context.Context) (*Frame, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !s.scanner.Scan() {
			if err := s.scanner.Err(); err != nil {
				return nil, fmt.Errorf("read frames: %w", err)
			}
			return nil, io.EOF
		}
		s.line++
		line := s.scanner.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		var f Frame
		if err := json.Unmarshal(line, &f); err != nil {
			return nil, fmt.Errorf("%w: line %d: %w", ErrInvalidFrame, s.line, err)
		}
		return &f, nil
	}
}
