package resolver

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/danieljhkim/preval/internal/fsops"
	"github.com/danieljhkim/preval/internal/manifest"
	"github.com/danieljhkim/preval/internal/workspace"
)

// DefaultCacheSize bounds the number of packages whose manifests are kept.
const DefaultCacheSize = 1024

// manifestEntry is a cached package manifest. A nil manifest records that
// the package has none, so the lookup is not repeated.
type manifestEntry struct {
	manifest *manifest.PackageManifest
}

// SurfaceClassifier decides whether a file belongs to the public surface of
// the package that contains it. Parsed package manifests are cached for the
// lifetime of the classifier.
type SurfaceClassifier struct {
	paths  workspace.PathResolver
	fs     fsops.FS
	reader manifest.Reader
	cache  *lru.Cache[string, manifestEntry]
	tel    *telemetry
	logger *slog.Logger
}

// NewSurfaceClassifier creates a classifier with a cache of cacheSize
// packages.
func NewSurfaceClassifier(paths workspace.PathResolver, fs fsops.FS, reader manifest.Reader, cacheSize int, logger *slog.Logger) (*SurfaceClassifier, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}
	cache, err := lru.New[string, manifestEntry](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create manifest cache: %w", err)
	}
	tel, err := newTelemetry(nil, nil)
	if err != nil {
		return nil, err
	}
	return &SurfaceClassifier{
		paths:  paths,
		fs:     fs,
		reader: reader,
		cache:  cache,
		tel:    tel,
		logger: logger,
	}, nil
}

// IsPublicFile reports whether absPath lies under one of its package's
// declared include directories or is the package manifest itself. Files
// outside any package, and packages without a manifest, are never public.
func (c *SurfaceClassifier) IsPublicFile(absPath string) bool {
	pkg, found, err := c.paths.ContainingPackage(absPath)
	if err != nil {
		c.logger.Error("failed to get containing package",
			slog.String("file", absPath),
			slog.String("error", err.Error()))
		return false
	}
	if !found {
		return false
	}

	dec := c.packageManifest(pkg)
	if dec == nil {
		c.logger.Info("no package manifest for file", slog.String("file", absPath), slog.String("package", pkg))
		return false
	}

	fp := filepath.ToSlash(absPath)
	for _, include := range dec.IncludePaths {
		if strings.Contains(fp, pkg+"/"+include+"/") {
			return true
		}
	}

	return manifest.IsPackageManifest(absPath)
}

// packageManifest returns the cached manifest for pkg, loading it on a miss.
func (c *SurfaceClassifier) packageManifest(pkg string) *manifest.PackageManifest {
	if entry, ok := c.cache.Get(pkg); ok {
		c.tel.recordManifestLookup(context.Background(), true)
		return entry.manifest
	}
	c.tel.recordManifestLookup(context.Background(), false)

	dec, err := c.loadManifest(pkg)
	if err != nil {
		c.logger.Error("unable to load package manifest",
			slog.String("package", pkg),
			slog.String("error", err.Error()))
		dec = nil
	}
	c.cache.Add(pkg, manifestEntry{manifest: dec})
	return dec
}

func (c *SurfaceClassifier) loadManifest(pkg string) (*manifest.PackageManifest, error) {
	dir, err := c.paths.ToAbsolute(pkg)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNoManifest, err)
	}

	path, err := manifest.FindPackageManifest(c.fs, dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNoManifest, err)
	}

	if rel, err := c.paths.ToRelative(path); err != nil || rel == "" {
		return nil, fmt.Errorf("%w: unable to convert path for %s", ErrNoManifest, path)
	}

	dec, err := c.reader.ParsePackage(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNoManifest, err)
	}
	return dec, nil
}

// CachedPackages returns the number of packages with a cached entry.
func (c *SurfaceClassifier) CachedPackages() int {
	return c.cache.Len()
}
