package clips

import "errors"

var (
	// ErrInvalidRange indicates a time range that cannot produce a clip.
	ErrInvalidRange = errors.New("invalid clip time range")

	// ErrSourceUnreadable indicates the source video is missing or unreadable.
	ErrSourceUnreadable = errors.New("source video unreadable")

	// ErrInvalidClipID indicates a clip id that is empty or not a plain file name.
	ErrInvalidClipID = errors.New("invalid clip id")

	// ErrCutFailed indicates the external cutter exited with an error.
	ErrCutFailed = errors.New("clip cut failed")
)
