package ai

import "context"

type Embedder interface {
	// EncodeText maps a text query into the shared text/frame vector space.
	// Implementations return unit-length vectors and are safe for concurrent use.
	EncodeText(ctx context.Context, text string) ([]float32, error)
}
