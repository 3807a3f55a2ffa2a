package resolver

import "errors"

var (
	// ErrFilterContract indicates the platform filter returned a package
	// that was not among the candidates it was given. Resolution is aborted.
	ErrFilterContract = errors.New("platform filter returned a package not allowed")

	// ErrNoManifest indicates a package has no usable package manifest and
	// therefore no public surface.
	ErrNoManifest = errors.New("package manifest unavailable")
)
