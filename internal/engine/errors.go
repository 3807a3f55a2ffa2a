package engine

import "errors"

var (
	// ErrValidation indicates a validation failure.
	ErrValidation = errors.New("validation failed")

	// ErrDiffFailed indicates the change set could not be computed.
	ErrDiffFailed = errors.New("failed to compute changed files")
)
