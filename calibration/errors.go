package calibration

import (
	"errors"
	"fmt"
)

var (
	// ErrArtifactMissing indicates the calibration artifact could not be read.
	ErrArtifactMissing = errors.New("calibration artifact missing")

	// ErrArtifactMalformed indicates the artifact is not valid calibration JSON.
	ErrArtifactMalformed = errors.New("calibration artifact malformed")

	// ErrCategoryMissing indicates a required category is absent from the stats.
	ErrCategoryMissing = errors.New("calibration category missing")

	// ErrInvalidBounds indicates the derived ceiling does not exceed the floor.
	ErrInvalidBounds = errors.New("calibration ceiling must exceed floor")
)

// FatalError is returned for every calibration load failure. It is a
// startup-only condition: callers must not serve search traffic after it.
type FatalError struct {
	Path string
	Err  error
}

func (e *FatalError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("fatal calibration error: %v", e.Err)
	}
	return fmt.Sprintf("fatal calibration error (%s): %v", e.Path, e.Err)
}

func (e *FatalError) Unwrap() error {
	return e.Err
}

func fatal(path string, err error) error {
	return &FatalError{Path: path, Err: err}
}
