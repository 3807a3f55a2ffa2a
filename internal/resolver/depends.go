package resolver

import (
	"fmt"
	"log/slog"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/danieljhkim/preval/internal/fsops"
	"github.com/danieljhkim/preval/internal/manifest"
	"github.com/danieljhkim/preval/internal/workspace"
)

// moduleDeps is one module manifest and the packages it declares.
type moduleDeps struct {
	path     string
	packages []string
}

// DependencyChecker decides whether any module of a package declares a
// dependency on another package. The module manifests of each evaluated
// package are parsed once and cached.
type DependencyChecker struct {
	paths   workspace.PathResolver
	fs      fsops.FS
	reader  manifest.Reader
	modules *lru.Cache[string, []moduleDeps]
	logger  *slog.Logger
}

// NewDependencyChecker creates a checker caching up to cacheSize packages.
func NewDependencyChecker(paths workspace.PathResolver, fs fsops.FS, reader manifest.Reader, cacheSize int, logger *slog.Logger) (*DependencyChecker, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}
	modules, err := lru.New[string, []moduleDeps](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create module cache: %w", err)
	}
	return &DependencyChecker{
		paths:   paths,
		fs:      fs,
		reader:  reader,
		modules: modules,
		logger:  logger,
	}, nil
}

// DependsOn reports whether a module manifest beneath pkg declares a
// package dependency starting with support. The prefix test tolerates
// declarations that carry a path suffix such as "MdePkg/MdePkg.dec".
func (d *DependencyChecker) DependsOn(pkg, support string) (bool, error) {
	modules, err := d.moduleDeps(pkg)
	if err != nil {
		return false, err
	}

	for _, mod := range modules {
		for _, used := range mod.packages {
			if strings.HasPrefix(used, support) {
				d.logger.Debug("module depends on package",
					slog.String("module", mod.path),
					slog.String("package", support))
				return true, nil
			}
		}
	}
	return false, nil
}

func (d *DependencyChecker) moduleDeps(pkg string) ([]moduleDeps, error) {
	if cached, ok := d.modules.Get(pkg); ok {
		return cached, nil
	}

	dir, err := d.paths.ToAbsolute(pkg)
	if err != nil {
		return nil, fmt.Errorf("failed to locate package %s: %w", pkg, err)
	}

	files, err := d.fs.WalkFiles(dir, []string{manifest.ModuleExt}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to list modules of %s: %w", pkg, err)
	}

	modules := make([]moduleDeps, 0, len(files))
	for _, file := range files {
		inf, err := d.reader.ParseModule(file)
		if err != nil {
			d.logger.Error("failed to parse module manifest",
				slog.String("package", pkg),
				slog.String("module", file),
				slog.String("error", err.Error()))
			continue
		}
		modules = append(modules, moduleDeps{path: file, packages: inf.PackagesUsed})
	}

	d.modules.Add(pkg, modules)
	return modules, nil
}
