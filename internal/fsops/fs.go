// Package fsops provides the read-only filesystem operations preval needs.
//
// All filesystem access from the resolver and the workspace layer goes
// through the FS interface so that the policies can be exercised against
// fixture trees in tests.
//
// Key features:
//   - Case-insensitive extension matching for EDK2 manifests
//   - Eager argument validation on directory walks
//   - Testable via the FS interface
package fsops

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// ErrInvalidWalk is returned when WalkFiles is called with a directory that
// is not an absolute path to an existing directory.
var ErrInvalidWalk = errors.New("invalid walk directory")

// FS provides an abstraction for filesystem reads.
type FS interface {
	// Stat returns file info, following symlinks.
	Stat(path string) (os.FileInfo, error)

	// ReadDir lists the entries directly inside a directory.
	ReadDir(path string) ([]os.DirEntry, error)

	// ReadFile reads the entire contents of a file.
	ReadFile(path string) ([]byte, error)

	// Exists checks if a path exists.
	Exists(path string) (bool, error)

	// IsDir reports whether path exists and is a directory.
	IsDir(path string) bool

	// WalkFiles recursively lists files under dir whose names end with one of
	// extensions (case-insensitive), skipping names that start with any of
	// ignorePrefixes (case-insensitive).
	WalkFiles(dir string, extensions []string, ignorePrefixes []string) ([]string, error)
}

// RealFS implements FS using actual OS operations.
type RealFS struct{}

// NewRealFS creates a new RealFS.
func NewRealFS() *RealFS {
	return &RealFS{}
}

// Stat returns file info, following symlinks.
func (f *RealFS) Stat(path string) (os.FileInfo, error) {
	return os.Stat(path)
}

// ReadDir lists the entries directly inside a directory.
func (f *RealFS) ReadDir(path string) ([]os.DirEntry, error) {
	return os.ReadDir(path)
}

// ReadFile reads the entire contents of a file.
func (f *RealFS) ReadFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}

// Exists checks if a path exists.
func (f *RealFS) Exists(path string) (bool, error) {
	_, err := os.Lstat(path)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

// IsDir reports whether path exists and is a directory.
func (f *RealFS) IsDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// WalkFiles recursively lists matching files under dir in lexical order.
//
// The directory is validated before walking: an empty, relative, missing or
// non-directory argument fails with ErrInvalidWalk instead of returning an
// empty list, so caller bugs surface immediately.
func (f *RealFS) WalkFiles(dir string, extensions []string, ignorePrefixes []string) ([]string, error) {
	if err := validateWalkDir(dir, f.IsDir); err != nil {
		return nil, err
	}

	exts := lowerAll(extensions)
	ignores := lowerAll(ignorePrefixes)

	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if MatchName(d.Name(), exts, ignores) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk %s: %w", dir, err)
	}

	return files, nil
}

// MatchName reports whether name ends with one of exts and does not start
// with any of ignores. Both lists must already be lower case.
func MatchName(name string, exts, ignores []string) bool {
	lower := strings.ToLower(name)
	for _, prefix := range ignores {
		if strings.HasPrefix(lower, prefix) {
			return false
		}
	}
	for _, ext := range exts {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

// HasExt reports whether name ends with ext, ignoring case.
func HasExt(name, ext string) bool {
	return strings.HasSuffix(strings.ToLower(name), strings.ToLower(ext))
}

func validateWalkDir(dir string, isDir func(string) bool) error {
	if dir == "" {
		return fmt.Errorf("%w: no directory given", ErrInvalidWalk)
	}
	if !filepath.IsAbs(dir) {
		return fmt.Errorf("%w: %q is not an absolute path", ErrInvalidWalk, dir)
	}
	if !isDir(dir) {
		return fmt.Errorf("%w: %q is not an existing directory", ErrInvalidWalk, dir)
	}
	return nil
}

func lowerAll(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		out = append(out, strings.ToLower(item))
	}
	return out
}
