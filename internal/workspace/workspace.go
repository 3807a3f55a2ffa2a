// Package workspace translates between absolute filesystem paths and
// workspace-relative EDK2 paths, and maps files to the package that owns them.
//
// A workspace is a root directory plus an optional list of extra package
// search roots (the EDK2 PACKAGES_PATH). A package is any directory that
// directly contains a package manifest; its identifier is its path relative
// to the root it was found under, using forward slashes.
package workspace

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"

	"github.com/danieljhkim/preval/internal/fsops"
	"github.com/danieljhkim/preval/internal/manifest"
)

var (
	// ErrOutsideWorkspace indicates a path is not under any workspace root.
	ErrOutsideWorkspace = errors.New("path is outside the workspace")

	// ErrInvalidRoot indicates a workspace or packages path root is unusable.
	ErrInvalidRoot = errors.New("invalid workspace root")
)

// PathResolver is the path translation service the resolver depends on.
type PathResolver interface {
	// ToRelative converts an absolute path to a workspace-relative one.
	ToRelative(absPath string) (string, error)

	// ToAbsolute converts a workspace-relative path to an absolute one.
	ToAbsolute(relPath string) (string, error)

	// ContainingPackage returns the package that owns absPath. found is
	// false when the file lies outside every package.
	ContainingPackage(absPath string) (pkg string, found bool, err error)
}

// Workspace implements PathResolver over a root and its packages path.
type Workspace struct {
	root   string
	roots  []string
	fs     fsops.FS
	logger *slog.Logger
}

// New creates a Workspace. root must be an absolute directory; packagesPath
// entries may be absolute or relative to root.
func New(fs fsops.FS, root string, packagesPath []string, logger *slog.Logger) (*Workspace, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if !filepath.IsAbs(root) || !fs.IsDir(root) {
		return nil, fmt.Errorf("%w: %q is not an absolute directory", ErrInvalidRoot, root)
	}
	root = filepath.Clean(root)

	var extra []string
	for _, p := range packagesPath {
		if !filepath.IsAbs(p) {
			p = filepath.Join(root, filepath.FromSlash(p))
		}
		p = filepath.Clean(p)
		if !fs.IsDir(p) {
			return nil, fmt.Errorf("%w: packages path %q is not a directory", ErrInvalidRoot, p)
		}
		extra = append(extra, p)
	}

	// Deeper roots win: a packages path entry nested in the workspace must
	// claim its files before the workspace root does.
	sort.SliceStable(extra, func(i, j int) bool { return len(extra[i]) > len(extra[j]) })
	roots := append(extra, root)

	return &Workspace{
		root:   root,
		roots:  roots,
		fs:     fs,
		logger: logger,
	}, nil
}

// Root returns the workspace root.
func (w *Workspace) Root() string {
	return w.root
}

// Roots returns every search root, most specific first.
func (w *Workspace) Roots() []string {
	out := make([]string, len(w.roots))
	copy(out, w.roots)
	return out
}

// ToRelative converts an absolute path to a forward-slash path relative to
// the most specific root that contains it.
func (w *Workspace) ToRelative(absPath string) (string, error) {
	root, rel, ok := w.split(absPath)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrOutsideWorkspace, absPath)
	}
	w.logger.Debug("resolved relative path", slog.String("path", absPath), slog.String("root", root), slog.String("relative", rel))
	return rel, nil
}

// ToAbsolute returns root/relPath for the first root where it exists.
func (w *Workspace) ToAbsolute(relPath string) (string, error) {
	if relPath == "" {
		return "", fmt.Errorf("empty relative path")
	}
	if filepath.IsAbs(relPath) {
		return "", fmt.Errorf("path %q is not workspace relative", relPath)
	}

	for _, root := range w.roots {
		candidate := filepath.Join(root, filepath.FromSlash(relPath))
		exists, err := w.fs.Exists(candidate)
		if err != nil {
			return "", fmt.Errorf("failed to check %s: %w", candidate, err)
		}
		if exists {
			return candidate, nil
		}
	}

	return "", fmt.Errorf("%w: %s not found under any root", ErrOutsideWorkspace, relPath)
}

// ContainingPackage walks up from the file's directory to its root and
// returns the first directory that holds a package manifest.
func (w *Workspace) ContainingPackage(absPath string) (string, bool, error) {
	root, _, ok := w.split(absPath)
	if !ok {
		return "", false, fmt.Errorf("%w: %s", ErrOutsideWorkspace, absPath)
	}

	dir := filepath.Dir(filepath.Clean(absPath))
	for {
		if dir == root {
			// The workspace root itself is never a package.
			return "", false, nil
		}
		if w.fs.IsDir(dir) {
			hasManifest, err := w.hasPackageManifest(dir)
			if err != nil {
				return "", false, err
			}
			if hasManifest {
				rel, err := filepath.Rel(root, dir)
				if err != nil {
					return "", false, fmt.Errorf("failed to compute package path: %w", err)
				}
				return filepath.ToSlash(rel), true, nil
			}
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false, nil
		}
		dir = parent
	}
}

func (w *Workspace) hasPackageManifest(dir string) (bool, error) {
	entries, err := w.fs.ReadDir(dir)
	if err != nil {
		return false, fmt.Errorf("failed to list %s: %w", dir, err)
	}
	for _, entry := range entries {
		if !entry.IsDir() && manifest.IsPackageManifest(entry.Name()) {
			return true, nil
		}
	}
	return false, nil
}

// split returns the root containing absPath and the forward-slash path
// relative to it.
func (w *Workspace) split(absPath string) (string, string, bool) {
	if !filepath.IsAbs(absPath) {
		return "", "", false
	}
	absPath = filepath.Clean(absPath)

	for _, root := range w.roots {
		rel, err := filepath.Rel(root, absPath)
		if err != nil {
			continue
		}
		if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			continue
		}
		return root, filepath.ToSlash(rel), true
	}
	return "", "", false
}
