package engine

import (
	"fmt"
	"path/filepath"
	"strings"
)

// resolveUserPath turns a path given on the command line (absolute, or
// relative to cwd) into a clean absolute path inside root. Paths that escape
// root, or name root itself, are rejected.
func resolveUserPath(userPath, cwd, root string) (string, error) {
	absPath := userPath
	if !filepath.IsAbs(absPath) {
		absPath = filepath.Join(cwd, absPath)
	}
	absPath = filepath.Clean(absPath)
	root = filepath.Clean(root)

	relPath, err := filepath.Rel(root, absPath)
	if err != nil {
		return "", fmt.Errorf("%w: failed to compute workspace path for %q: %v", ErrValidation, userPath, err)
	}

	if relPath == ".." || strings.HasPrefix(relPath, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %q resolves to %q which is outside the workspace", ErrValidation, userPath, absPath)
	}
	if relPath == "." {
		return "", fmt.Errorf("%w: %q resolves to the workspace root", ErrValidation, userPath)
	}

	return absPath, nil
}
