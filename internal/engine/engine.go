// Package engine provides the core business logic for preval operations.
//
// The engine package acts as the orchestration layer between CLI commands and
// the resolver. It computes the change set, builds the workspace view, and
// turns the resolver's decisions into reportable results.
//
// Key components:
//   - Engine: Main orchestrator that coordinates all operations
//   - Eval: Decides which candidate packages must be built
//   - Changes/Owner: Classify files by owning package and public surface
package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/danieljhkim/preval/internal/fsops"
	"github.com/danieljhkim/preval/internal/gitx"
	"github.com/danieljhkim/preval/internal/manifest"
	"github.com/danieljhkim/preval/internal/resolver"
	"github.com/danieljhkim/preval/internal/settings"
	"github.com/danieljhkim/preval/internal/workspace"
)

// Engine orchestrates all preval operations.
// It is the main API surface called by the CLI.
type Engine struct {
	git      gitx.ChangeSetProvider
	fs       fsops.FS
	reader   manifest.Reader
	settings settings.Provider
	logger   *slog.Logger
}

// New creates a new Engine with the given dependencies. A nil provider
// behaves like settings.Default.
func New(git gitx.ChangeSetProvider, fs fsops.FS, provider settings.Provider, logger *slog.Logger) *Engine {
	if provider == nil {
		provider = settings.Default{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		git:      git,
		fs:       fs,
		reader:   manifest.NewINIReader(fs),
		settings: provider,
		logger:   logger,
	}
}

// Eval decides which candidate packages must be built for the change set
// between the working copy and req.Target. When the change set cannot be
// computed every candidate is selected and no error is returned.
func (e *Engine) Eval(ctx context.Context, req *EvalRequest) (*EvalResult, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	root := workspaceRoot(req.Workspace, req.CWD)
	candidates := candidateList(req.Packages)
	result := &EvalResult{
		Target:       req.Target,
		Workspace:    root,
		ChangedFiles: []string{},
	}

	code, files := e.changeSet(req.DiffFile).ChangedFiles(ctx, req.Target, root)
	result.DiffCode = code
	if code != 0 {
		e.logger.Warn("failed to compute changed files, building every package",
			slog.Int("code", code),
			slog.String("target", req.Target))
		result.fill(resolver.BuildEverything(candidates, code), candidates)
		return result, nil
	}

	ws, res, err := e.newResolver(root)
	if err != nil {
		return nil, err
	}
	result.ChangedFiles = relativeAll(ws, files)

	justification, err := res.Resolve(ctx, files, candidates, e.settings.FilterPackagesToTest)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve packages: %w", err)
	}
	result.fill(justification, candidates)

	e.logger.Info("evaluation complete",
		slog.Int("changed", len(files)),
		slog.Int("build", len(result.Packages)),
		slog.Int("skip", len(result.Skipped)))
	return result, nil
}

// Changes lists the change set with each file's owning package.
func (e *Engine) Changes(ctx context.Context, req *ChangesRequest) (*FilesResult, error) {
	if req.Target == "" && req.DiffFile == "" {
		return nil, fmt.Errorf("%w: a target ref or a diff file is required", ErrValidation)
	}

	root := workspaceRoot(req.Workspace, req.CWD)
	code, files := e.changeSet(req.DiffFile).ChangedFiles(ctx, req.Target, root)
	if code != 0 {
		return nil, fmt.Errorf("%w: exit code %d", ErrDiffFailed, code)
	}

	ws, res, err := e.newResolver(root)
	if err != nil {
		return nil, err
	}

	result := &FilesResult{Target: req.Target, Workspace: root, Files: []FileInfo{}}
	for _, f := range files {
		result.Files = append(result.Files, classify(ws, res, f))
	}
	return result, nil
}

// Owner classifies the requested files.
func (e *Engine) Owner(ctx context.Context, req *OwnerRequest) (*FilesResult, error) {
	if len(req.Files) == 0 {
		return nil, fmt.Errorf("%w: no files given", ErrValidation)
	}

	root := workspaceRoot(req.Workspace, req.CWD)
	abs := make([]string, 0, len(req.Files))
	for _, f := range req.Files {
		p, err := resolveUserPath(f, req.CWD, root)
		if err != nil {
			return nil, err
		}
		abs = append(abs, p)
	}

	ws, res, err := e.newResolver(root)
	if err != nil {
		return nil, err
	}

	result := &FilesResult{Workspace: root, Files: []FileInfo{}}
	for _, f := range abs {
		result.Files = append(result.Files, classify(ws, res, f))
	}
	return result, nil
}

// changeSet picks the change set source for a request.
func (e *Engine) changeSet(diffFile string) gitx.ChangeSetProvider {
	if diffFile != "" {
		return gitx.NewPatchChangeSet(diffFile, e.logger)
	}
	return e.git
}

func (e *Engine) newResolver(root string) (*workspace.Workspace, *resolver.Resolver, error) {
	ws, err := workspace.New(e.fs, root, e.settings.PackagesPath(), e.logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open workspace: %w", err)
	}
	res, err := resolver.New(ws, e.fs, e.reader, e.logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create resolver: %w", err)
	}
	return ws, res, nil
}

func classify(ws *workspace.Workspace, res *resolver.Resolver, absPath string) FileInfo {
	rel, err := ws.ToRelative(absPath)
	if err != nil {
		return FileInfo{Path: absPath, Outside: true}
	}

	info := FileInfo{Path: rel}
	pkg, found, err := ws.ContainingPackage(absPath)
	if err != nil || !found {
		return info
	}
	info.Package = pkg
	info.Public = res.Surface().IsPublicFile(absPath)
	return info
}

func relativeAll(ws *workspace.Workspace, files []string) []string {
	out := make([]string, 0, len(files))
	for _, f := range files {
		if rel, err := ws.ToRelative(f); err == nil {
			out = append(out, rel)
		} else {
			out = append(out, f)
		}
	}
	return out
}

func workspaceRoot(ws, cwd string) string {
	if ws != "" {
		return ws
	}
	return cwd
}
