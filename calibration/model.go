package calibration

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
)

const (
	// DefaultOffCategory is the category of captions that do not describe the image.
	DefaultOffCategory = "Off"
	// DefaultExactCategory is the category of captions that describe the image exactly.
	DefaultExactCategory = "Perfect"

	floorMargin = 1.1
)

// CategoryStats summarizes the similarities observed for one category.
type CategoryStats struct {
	Mean  *float64 `json:"mean"`
	Std   *float64 `json:"std"`
	Min   *float64 `json:"min"`
	Max   *float64 `json:"max"`
	Count int      `json:"count"`
}

// Artifact is the on-disk calibration document.
type Artifact struct {
	Model string                   `json:"model,omitempty"`
	Stats map[string]CategoryStats `json:"stats"`
}

// Model maps raw cosine distances to confidences in [0,1].
// It is immutable and safe for concurrent use.
type Model struct {
	floor   float64
	ceiling float64
}

// Option configures how an artifact is interpreted.
type Option func(*options)

type options struct {
	offCategory   string
	exactCategory string
}

// WithCategories sets the category names used for the floor and the ceiling.
func WithCategories(off, exact string) Option {
	return func(o *options) {
		if off != "" {
			o.offCategory = off
		}
		if exact != "" {
			o.exactCategory = exact
		}
	}
}

// NewModel creates a model from explicit similarity bounds.
func NewModel(floor, ceiling float64) (*Model, error) {
	if !finite(floor) || !finite(ceiling) {
		return nil, fatal("", fmt.Errorf("%w: non-finite bounds", ErrArtifactMalformed))
	}
	if ceiling <= floor {
		return nil, fatal("", fmt.Errorf("%w: floor=%.4f ceiling=%.4f", ErrInvalidBounds, floor, ceiling))
	}
	return &Model{floor: floor, ceiling: ceiling}, nil
}

// Load reads and validates the calibration artifact at path.
func Load(path string, opts ...Option) (*Model, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fatal(path, fmt.Errorf("%w: %w", ErrArtifactMissing, err))
	}
	defer f.Close()

	m, err := Parse(f, opts...)
	if err != nil {
		var fe *FatalError
		if errors.As(err, &fe) {
			fe.Path = path
		}
		return nil, err
	}
	return m, nil
}

// Parse reads a calibration artifact from r.
func Parse(r io.Reader, opts ...Option) (*Model, error) {
	o := options{offCategory: DefaultOffCategory, exactCategory: DefaultExactCategory}
	for _, opt := range opts {
		opt(&o)
	}

	var artifact Artifact
	if err := json.NewDecoder(r).Decode(&artifact); err != nil {
		return nil, fatal("", fmt.Errorf("%w: %w", ErrArtifactMalformed, err))
	}
	if len(artifact.Stats) == 0 {
		return nil, fatal("", fmt.Errorf("%w: no stats", ErrArtifactMalformed))
	}

	off, err := category(artifact.Stats, o.offCategory)
	if err != nil {
		return nil, fatal("", err)
	}
	exact, err := category(artifact.Stats, o.exactCategory)
	if err != nil {
		return nil, fatal("", err)
	}
	if off.Max == nil || exact.Mean == nil {
		return nil, fatal("", fmt.Errorf("%w: %q needs max and %q needs mean",
			ErrArtifactMalformed, o.offCategory, o.exactCategory))
	}

	return NewModel(*off.Max*floorMargin, *exact.Mean)
}

func category(stats map[string]CategoryStats, name string) (CategoryStats, error) {
	s, ok := stats[name]
	if !ok {
		return CategoryStats{}, fmt.Errorf("%w: %q", ErrCategoryMissing, name)
	}
	for _, v := range []*float64{s.Mean, s.Std, s.Min, s.Max} {
		if v != nil && !finite(*v) {
			return CategoryStats{}, fmt.Errorf("%w: %q has non-finite values", ErrArtifactMalformed, name)
		}
	}
	return s, nil
}

// Confidence converts a raw cosine distance into a confidence in [0,1].
// It is monotonically non-increasing in distance.
func (m *Model) Confidence(rawDistance float64) float64 {
	if math.IsNaN(rawDistance) {
		return 0
	}
	similarity := 1 - rawDistance
	c := (similarity - m.floor) / (m.ceiling - m.floor)
	return math.Max(0, math.Min(1, c))
}

// Floor returns the similarity at or below which confidence is 0.
func (m *Model) Floor() float64 {
	return m.floor
}

// Ceiling returns the similarity at or above which confidence is 1.
func (m *Model) Ceiling() float64 {
	return m.ceiling
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
