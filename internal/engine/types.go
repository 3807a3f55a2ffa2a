package engine

import (
	"fmt"
	"strings"

	"github.com/danieljhkim/preval/internal/resolver"
)

// EvalRequest represents a request to decide which packages to build.
type EvalRequest struct {
	// CWD is the current working directory
	CWD string

	// Workspace is the workspace root (default: CWD)
	Workspace string

	// Target is the ref the change set is computed against
	Target string

	// Packages are the candidate packages
	Packages []string

	// DiffFile reads the change set from a patch instead of git
	DiffFile string
}

func (r *EvalRequest) validate() error {
	if r.Target == "" && r.DiffFile == "" {
		return fmt.Errorf("%w: a target ref or a diff file is required", ErrValidation)
	}
	if len(candidateList(r.Packages)) == 0 {
		return fmt.Errorf("%w: no candidate packages", ErrValidation)
	}
	return nil
}

// PackageDecision is one package that must be built.
type PackageDecision struct {
	Name      string          `json:"name"`
	Policy    resolver.Policy `json:"policy"`
	Reason    string          `json:"reason"`
	DependsOn string          `json:"dependsOn,omitempty"`
}

// EvalResult represents the outcome of an evaluation.
type EvalResult struct {
	Target    string `json:"target"`
	Workspace string `json:"workspace"`

	// DiffCode is the change set exit code. Non-zero means every candidate
	// was selected.
	DiffCode int `json:"diffCode"`

	// ChangedFiles are workspace relative where possible
	ChangedFiles []string `json:"changedFiles"`

	// Packages to build, in candidate order
	Packages []PackageDecision `json:"packages"`

	// Skipped candidates need no build
	Skipped []string `json:"skipped"`
}

// PackageNames returns the names of the packages to build.
func (r *EvalResult) PackageNames() []string {
	names := make([]string, 0, len(r.Packages))
	for _, p := range r.Packages {
		names = append(names, p.Name)
	}
	return names
}

// CSV returns the packages to build joined by commas.
func (r *EvalResult) CSV() string {
	return strings.Join(r.PackageNames(), ",")
}

// fill copies j into the result in candidate order.
func (r *EvalResult) fill(j *resolver.BuildJustification, candidates []string) {
	r.Packages = []PackageDecision{}
	r.Skipped = []string{}
	for _, pkg := range candidates {
		d, ok := j.Decision(pkg)
		if !ok {
			r.Skipped = append(r.Skipped, pkg)
			continue
		}
		r.Packages = append(r.Packages, PackageDecision{
			Name:      d.Package,
			Policy:    d.Policy,
			Reason:    d.Reason,
			DependsOn: d.DependsOn,
		})
	}
}

// ChangesRequest represents a request to list the change set.
type ChangesRequest struct {
	CWD       string
	Workspace string
	Target    string
	DiffFile  string
}

// OwnerRequest represents a request to classify files.
type OwnerRequest struct {
	CWD       string
	Workspace string

	// Files are absolute or relative to CWD
	Files []string
}

// FileInfo describes where a file sits in the workspace.
type FileInfo struct {
	// Path is workspace relative, or absolute when outside the workspace
	Path string `json:"path"`

	// Package is empty when the file is in no package
	Package string `json:"package,omitempty"`

	// Public reports whether the file is part of its package's public surface
	Public bool `json:"public"`

	Outside bool `json:"outside,omitempty"`
}

// FilesResult lists classified files.
type FilesResult struct {
	Target    string     `json:"target,omitempty"`
	Workspace string     `json:"workspace"`
	Files     []FileInfo `json:"files"`
}

// candidateList drops empty names and duplicates, keeping first occurrence.
func candidateList(pkgs []string) []string {
	seen := make(map[string]bool, len(pkgs))
	out := make([]string, 0, len(pkgs))
	for _, p := range pkgs {
		p = strings.TrimSpace(p)
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	return out
}
