// Package gitx computes the set of files changed between the working copy
// and a target ref.
package gitx

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/sourcegraph/go-diff/diff"
)

// CodeNotStarted is returned when the diff command could not be started.
const CodeNotStarted = -1

// ChangeSetProvider lists files changed between the working copy and a
// target ref. A non-zero code means the change set is unknown; files is
// then empty.
type ChangeSetProvider interface {
	ChangedFiles(ctx context.Context, target, workingDir string) (code int, files []string)
}

// GitRepo provides an abstraction for git repository operations.
type GitRepo interface {
	ChangeSetProvider

	// Discover finds the git repository root starting from cwd.
	Discover(cwd string) (root string, err error)
}

// RealGitRepo implements GitRepo using actual git commands.
type RealGitRepo struct {
	logger *slog.Logger
}

// NewRealGitRepo creates a new RealGitRepo.
func NewRealGitRepo(logger *slog.Logger) *RealGitRepo {
	if logger == nil {
		logger = slog.Default()
	}
	return &RealGitRepo{logger: logger}
}

// Discover finds the git repository root by walking up from cwd looking for .git directory.
func (g *RealGitRepo) Discover(cwd string) (string, error) {
	absPath, err := filepath.Abs(cwd)
	if err != nil {
		return "", fmt.Errorf("failed to get absolute path: %w", err)
	}

	current := absPath
	for {
		gitDir := filepath.Join(current, ".git")
		if info, err := os.Stat(gitDir); err == nil {
			// .git can be a directory or a file (for worktrees/submodules)
			if info.IsDir() || info.Mode().IsRegular() {
				return current, nil
			}
		}

		parent := filepath.Dir(current)
		if parent == current {
			// Reached root directory
			return "", fmt.Errorf("not in a git repository")
		}
		current = parent
	}
}

// ChangedFiles runs `git diff --name-only HEAD..<target>` in workingDir and
// returns the git exit code with the changed files as absolute paths. Paths
// reported by git are relative to the repository root.
func (g *RealGitRepo) ChangedFiles(ctx context.Context, target, workingDir string) (int, []string) {
	cmd := exec.CommandContext(ctx, "git", "diff", "--name-only", "HEAD.."+target)
	cmd.Dir = workingDir
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	output, err := cmd.Output()
	if err != nil {
		code := CodeNotStarted
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			code = exitErr.ExitCode()
		}
		g.logger.Error("git diff returned an error",
			slog.Int("code", code),
			slog.String("target", target),
			slog.String("stderr", strings.TrimSpace(stderr.String())))
		return code, nil
	}
	g.logger.Debug("git diff command returned successfully", slog.String("target", target))

	root, err := g.Discover(workingDir)
	if err != nil {
		root = workingDir
	}

	files := joinLines(root, output)
	if len(files) == 0 {
		g.logger.Info("no files listed in diff")
	}
	for _, f := range files {
		g.logger.Debug("file changed", slog.String("file", f))
	}
	return 0, files
}

// joinLines joins each non-empty line of output onto root.
func joinLines(root string, output []byte) []string {
	var files []string
	scanner := bufio.NewScanner(bytes.NewReader(output))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		files = append(files, filepath.Join(root, filepath.FromSlash(line)))
	}
	return files
}

// PatchChangeSet reads the change set from a unified diff file instead of
// asking git, for pipelines that only have the patch.
type PatchChangeSet struct {
	path   string
	logger *slog.Logger
}

// NewPatchChangeSet creates a provider reading the patch at path.
func NewPatchChangeSet(path string, logger *slog.Logger) *PatchChangeSet {
	if logger == nil {
		logger = slog.Default()
	}
	return &PatchChangeSet{path: path, logger: logger}
}

// ChangedFiles returns the files touched by the patch, joined onto
// workingDir. target is ignored. Unreadable or malformed patches yield
// code 1.
func (p *PatchChangeSet) ChangedFiles(ctx context.Context, target, workingDir string) (int, []string) {
	data, err := os.ReadFile(p.path)
	if err != nil {
		p.logger.Error("failed to read patch", slog.String("patch", p.path), slog.String("error", err.Error()))
		return 1, nil
	}

	names, err := PatchFileNames(data)
	if err != nil {
		p.logger.Error("failed to parse patch", slog.String("patch", p.path), slog.String("error", err.Error()))
		return 1, nil
	}

	files := make([]string, 0, len(names))
	for _, name := range names {
		files = append(files, filepath.Join(workingDir, filepath.FromSlash(name)))
	}
	return 0, files
}

// PatchFileNames lists the repository-relative paths touched by a unified
// diff, in patch order. Deleted files are reported by their old name.
func PatchFileNames(patch []byte) ([]string, error) {
	fileDiffs, err := diff.NewMultiFileDiffReader(bytes.NewReader(patch)).ReadAllFiles()
	if err != nil {
		return nil, fmt.Errorf("failed to parse diff: %w", err)
	}

	seen := make(map[string]bool)
	var names []string
	for _, fd := range fileDiffs {
		name := stripPrefix(fd.NewName)
		if name == "" {
			name = stripPrefix(fd.OrigName)
		}
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		names = append(names, name)
	}
	return names, nil
}

// stripPrefix removes the a/ or b/ prefix git puts on diff names and maps
// /dev/null to "".
func stripPrefix(name string) string {
	name = strings.TrimSpace(name)
	if name == "" || name == "/dev/null" {
		return ""
	}
	if strings.HasPrefix(name, "a/") || strings.HasPrefix(name, "b/") {
		return name[2:]
	}
	return name
}

// FakeGitRepo implements GitRepo with predetermined values for testing.
type FakeGitRepo struct {
	root  string
	code  int
	files []string
	err   error

	// Calls records the targets ChangedFiles was asked for.
	Calls []string
}

// NewFakeGitRepo creates a FakeGitRepo whose change set is files (relative
// to root).
func NewFakeGitRepo(root string, files ...string) *FakeGitRepo {
	return &FakeGitRepo{root: root, files: files}
}

// SetError sets an error to be returned by Discover.
func (g *FakeGitRepo) SetError(err error) {
	g.err = err
}

// SetCode makes ChangedFiles fail with code.
func (g *FakeGitRepo) SetCode(code int) {
	g.code = code
}

// Discover returns the predetermined root.
func (g *FakeGitRepo) Discover(cwd string) (string, error) {
	if g.err != nil {
		return "", g.err
	}
	return g.root, nil
}

// ChangedFiles returns the predetermined change set.
func (g *FakeGitRepo) ChangedFiles(ctx context.Context, target, workingDir string) (int, []string) {
	g.Calls = append(g.Calls, target)
	if g.code != 0 {
		return g.code, nil
	}
	files := make([]string, 0, len(g.files))
	for _, f := range g.files {
		files = append(files, filepath.Join(g.root, filepath.FromSlash(f)))
	}
	return 0, files
}
