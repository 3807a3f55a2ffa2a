// Package resolver decides which packages of an EDK2 workspace must be built
// for a set of changed files.
//
// Three policies run in a fixed order, and a package leaves the remaining
// set the first time a policy selects it:
//   - Policy 1: the platform filter hook selects packages directly
//   - Policy 2: packages that contain a changed file
//   - Policy 3: packages with a module depending on a package whose public
//     surface (declared include directories or manifest) changed
//
// Candidates that no policy selects are absent from the result and can skip
// their build.
package resolver

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/danieljhkim/preval/internal/fsops"
	"github.com/danieljhkim/preval/internal/manifest"
	"github.com/danieljhkim/preval/internal/workspace"
)

// FilterFunc is the platform filter hook. It receives workspace-relative
// changed files and a copy of the remaining candidates, and must return a
// subset of those candidates.
type FilterFunc func(changedFiles []string, candidates []string) []string

// Resolver turns a change set into a BuildJustification. A Resolver may be
// reused across calls; its manifest caches persist between them.
type Resolver struct {
	paths   workspace.PathResolver
	surface *SurfaceClassifier
	deps    *DependencyChecker
	tel     *telemetry
	logger  *slog.Logger
}

// New creates a Resolver for one workspace. Spans and counters go to the
// global OpenTelemetry providers unless an Option overrides them.
func New(paths workspace.PathResolver, fs fsops.FS, reader manifest.Reader, logger *slog.Logger, opts ...Option) (*Resolver, error) {
	if logger == nil {
		logger = slog.Default()
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	tel, err := newTelemetry(o.tracerProvider, o.meterProvider)
	if err != nil {
		return nil, err
	}

	surface, err := NewSurfaceClassifier(paths, fs, reader, DefaultCacheSize, logger)
	if err != nil {
		return nil, err
	}
	surface.tel = tel

	deps, err := NewDependencyChecker(paths, fs, reader, DefaultCacheSize, logger)
	if err != nil {
		return nil, err
	}

	return &Resolver{
		paths:   paths,
		surface: surface,
		deps:    deps,
		tel:     tel,
		logger:  logger,
	}, nil
}

// Surface returns the resolver's public surface classifier.
func (r *Resolver) Surface() *SurfaceClassifier {
	return r.surface
}

// Resolve applies the three policies to files (absolute paths) over
// candidates. A filter returning a package outside the candidates aborts
// resolution with ErrFilterContract and no partial result.
func (r *Resolver) Resolve(ctx context.Context, files []string, candidates []string, filter FilterFunc) (result *BuildJustification, err error) {
	ctx, span := r.tel.startResolveSpan(ctx, len(files), len(candidates))
	remaining := newPackageSet(candidates)
	defer func() {
		selected := 0
		if result != nil {
			selected = result.Len()
		}
		setResolveSpanResult(span, selected, remaining.Len(), err)
		span.End()
	}()

	built := newJustification()
	if len(files) == 0 {
		r.logger.Info("no changed files, nothing to build")
		return built, nil
	}

	if err := r.applyFilter(ctx, files, remaining, built, filter); err != nil {
		return nil, err
	}
	if remaining.Len() == 0 {
		return built, nil
	}

	r.applyChanged(ctx, files, remaining, built)
	if remaining.Len() == 0 {
		return built, nil
	}

	r.applyDependencies(ctx, files, remaining, built)
	return built, nil
}

// applyFilter runs Policy 1.
func (r *Resolver) applyFilter(ctx context.Context, files []string, remaining *packageSet, built *BuildJustification, filter FilterFunc) error {
	if filter == nil {
		return nil
	}

	relative := make([]string, 0, len(files))
	for _, f := range files {
		rel, err := r.paths.ToRelative(f)
		if err != nil {
			r.logger.Warn("failed to convert changed file to workspace path",
				slog.String("file", f),
				slog.String("error", err.Error()))
			continue
		}
		relative = append(relative, rel)
	}

	selected := filter(relative, remaining.Snapshot())

	// Validate the whole answer before recording any of it.
	for _, pkg := range selected {
		if !remaining.Contains(pkg) {
			return fmt.Errorf("%w: %q", ErrFilterContract, pkg)
		}
	}

	for _, pkg := range selected {
		r.mark(ctx, remaining, built, Decision{Package: pkg, Policy: PolicyPlatformFilter, Reason: platformFilterReason})
	}
	return nil
}

// applyChanged runs Policy 2.
func (r *Resolver) applyChanged(ctx context.Context, files []string, remaining *packageSet, built *BuildJustification) {
	for _, f := range files {
		pkg, ok := r.containingPackage(f)
		if !ok {
			continue
		}
		if remaining.Contains(pkg) {
			r.mark(ctx, remaining, built, Decision{Package: pkg, Policy: PolicyChanged, Reason: changedReason})
		}
	}
}

// applyDependencies runs Policy 3.
func (r *Resolver) applyDependencies(ctx context.Context, files []string, remaining *packageSet, built *BuildJustification) {
	public := r.publicChanges(files)
	if len(public) == 0 {
		return
	}
	r.logger.Debug("packages with public changes", slog.Any("packages", public))

	for _, support := range public {
		for _, pkg := range remaining.Snapshot() {
			depends, err := r.deps.DependsOn(pkg, support)
			if err != nil {
				r.logger.Error("failed to evaluate package dependencies",
					slog.String("package", pkg),
					slog.String("dependency", support),
					slog.String("error", err.Error()))
				continue
			}
			if depends {
				r.mark(ctx, remaining, built, Decision{
					Package:   pkg,
					Policy:    PolicyDependency,
					Reason:    dependencyReason(support),
					DependsOn: support,
				})
			}
		}
		if remaining.Len() == 0 {
			return
		}
	}
}

// publicChanges returns the sorted, de-duplicated packages that have at
// least one changed public file.
func (r *Resolver) publicChanges(files []string) []string {
	seen := make(map[string]bool)
	for _, f := range files {
		pkg, ok := r.containingPackage(f)
		if !ok || seen[pkg] {
			continue
		}
		if r.surface.IsPublicFile(f) {
			seen[pkg] = true
		}
	}

	public := make([]string, 0, len(seen))
	for pkg := range seen {
		public = append(public, pkg)
	}
	sort.Strings(public)
	return public
}

// containingPackage resolves the owning package of f, logging failures.
func (r *Resolver) containingPackage(f string) (string, bool) {
	pkg, found, err := r.paths.ContainingPackage(f)
	if err != nil {
		r.logger.Error("failed to get package for file",
			slog.String("file", f),
			slog.String("error", err.Error()))
		return "", false
	}
	if !found {
		r.logger.Debug("file is not in a package", slog.String("file", f))
		return "", false
	}
	return pkg, true
}

func (r *Resolver) mark(ctx context.Context, remaining *packageSet, built *BuildJustification, d Decision) {
	if !remaining.Remove(d.Package) {
		return
	}
	if built.record(d) {
		r.tel.recordSelected(ctx, d.Policy)
		r.logger.Debug("package selected",
			slog.String("package", d.Package),
			slog.String("reason", d.Reason))
	}
}
