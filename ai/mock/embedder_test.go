package mock

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockEmbedder_Deterministic(t *testing.T) {
	m := NewMockEmbedder()
	ctx := context.Background()

	a, err := m.EncodeText(ctx, "red car")
	require.NoError(t, err)
	b, err := m.EncodeText(ctx, "red car")
	require.NoError(t, err)
	c, err := m.EncodeText(ctx, "blue boat")
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, DefaultDimensions)
	assert.Equal(t, 3, m.CallCount())

	var sum float64
	for _, x := range a {
		sum += float64(x) * float64(x)
	}
	assert.InDelta(t, 1.0, math.Sqrt(sum), 1e-5)
}

func TestMockEmbedder_CustomFunc(t *testing.T) {
	boom := errors.New("boom")
	m := NewMockEmbedder().WithEncodeTextFunc(func(ctx context.Context, text string) ([]float32, error) {
		return nil, boom
	})

	_, err := m.EncodeText(context.Background(), "x")
	assert.ErrorIs(t, err, boom)

	m.Reset()
	assert.Zero(t, m.CallCount())
	_, err = m.EncodeText(context.Background(), "x")
	assert.NoError(t, err)
}
