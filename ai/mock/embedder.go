package mock

import (
	"context"
	"hash/fnv"
	"sync/atomic"

	"github.com/poiesic/vantage/ai"
	"github.com/poiesic/vantage/core"
)

// DefaultDimensions is the vector length produced by the default behavior.
const DefaultDimensions = 64

// MockEmbedder is a test double for ai.Embedder.
// It allows custom behavior injection via function fields.
type MockEmbedder struct {
	// EncodeTextFunc is called by EncodeText if set.
	// If nil, uses default deterministic behavior.
	EncodeTextFunc func(ctx context.Context, text string) ([]float32, error)

	callCount atomic.Int64
}

var _ ai.Embedder = (*MockEmbedder)(nil)

// NewMockEmbedder creates a mock embedder with default deterministic behavior.
func NewMockEmbedder() *MockEmbedder {
	return &MockEmbedder{}
}

// WithEncodeTextFunc injects custom behavior and returns the embedder.
func (m *MockEmbedder) WithEncodeTextFunc(fn func(ctx context.Context, text string) ([]float32, error)) *MockEmbedder {
	m.EncodeTextFunc = fn
	return m
}

// EncodeText generates a deterministic embedding based on text hash.
func (m *MockEmbedder) EncodeText(ctx context.Context, text string) ([]float32, error) {
	m.callCount.Add(1)

	if m.EncodeTextFunc != nil {
		return m.EncodeTextFunc(ctx, text)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return DeterministicVector(text, DefaultDimensions), nil
}

// CallCount returns the number of times EncodeText was called.
func (m *MockEmbedder) CallCount() int {
	return int(m.callCount.Load())
}

// Reset clears the call count and injected behavior.
func (m *MockEmbedder) Reset() {
	m.callCount.Store(0)
	m.EncodeTextFunc = nil
}

// DeterministicVector creates a unit-length vector from text.
// It uses FNV hash to ensure the same text always produces the same vector,
// so tests can index frames with the vector a query will produce.
func DeterministicVector(text string, dim int) []float32 {
	h := fnv.New32a()
	h.Write([]byte(text))
	seed := h.Sum32()

	vector := make([]float32, dim)
	for i := 0; i < dim; i++ {
		seed = seed*1664525 + 1013904223 // LCG constants
		vector[i] = float32(seed%1000)/1000.0 - 0.5
	}
	core.Normalize(vector)
	return vector
}
