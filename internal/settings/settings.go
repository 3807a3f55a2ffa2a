// Package settings defines the platform capability the resolver needs from
// its surroundings and the YAML-backed implementation preval ships with.
//
// The resolver only ever asks two things of a platform: which candidate
// packages an external policy wants built for a set of changed files, and
// which extra directories should be searched for packages. Provider is
// exactly that.
package settings

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path"
	"strings"

	"github.com/bmatcuk/doublestar"
	"gopkg.in/yaml.v3"
)

// FileName is the settings file looked up at the workspace root.
const FileName = ".preval.yaml"

// Filter modes for the default filter behavior.
const (
	// FilterNone selects nothing unless a rule matches.
	FilterNone = "none"

	// FilterAll selects every candidate, disabling policies 2 and 3.
	FilterAll = "all"
)

// ErrInvalidSettings indicates a malformed settings file.
var ErrInvalidSettings = errors.New("invalid settings")

// Provider is the narrow platform capability used by the resolver.
type Provider interface {
	// FilterPackagesToTest returns the subset of candidates an external
	// policy requires to be built. changedFiles are workspace relative.
	FilterPackagesToTest(changedFiles []string, candidates []string) []string

	// PackagesPath returns extra package search roots, workspace relative.
	PackagesPath() []string
}

// File models .preval.yaml.
type File struct {
	// Packages is the default candidate package list.
	Packages []string `yaml:"packages"`

	// PackagesPath lists extra package search roots.
	PackagesPath []string `yaml:"packages_path"`

	Filter FilterConfig `yaml:"filter"`
}

// FilterConfig configures the policy 1 filter.
type FilterConfig struct {
	Default string `yaml:"default"`
	Rules   []Rule `yaml:"rules"`
}

// Rule selects Packages whenever any changed file matches one of Files.
// Both lists hold doublestar globs.
type Rule struct {
	Name     string   `yaml:"name"`
	Files    []string `yaml:"files"`
	Packages []string `yaml:"packages"`
}

// Load reads and validates a settings file.
func Load(file string) (*File, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read settings %s: %w", file, err)
	}
	f, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", file, err)
	}
	return f, nil
}

// Parse decodes and validates settings YAML. Unknown fields are rejected.
func Parse(data []byte) (*File, error) {
	f := &File{}
	if len(bytes.TrimSpace(data)) > 0 {
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(f); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidSettings, err)
		}
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return f, nil
}

// Validate checks filter mode and glob syntax. Globs are checked with
// path.Match, whose syntax doublestar extends.
func (f *File) Validate() error {
	switch strings.ToLower(f.Filter.Default) {
	case "", FilterNone, FilterAll:
	default:
		return fmt.Errorf("%w: filter.default must be %q or %q, got %q", ErrInvalidSettings, FilterNone, FilterAll, f.Filter.Default)
	}

	for i, rule := range f.Filter.Rules {
		if len(rule.Files) == 0 || len(rule.Packages) == 0 {
			return fmt.Errorf("%w: rule %d (%s) needs both files and packages", ErrInvalidSettings, i, rule.Name)
		}
		for _, pattern := range append(append([]string{}, rule.Files...), rule.Packages...) {
			if _, err := path.Match(pattern, ""); err != nil {
				return fmt.Errorf("%w: rule %d (%s) pattern %q: %v", ErrInvalidSettings, i, rule.Name, pattern, err)
			}
		}
	}
	return nil
}

// Default is the Provider used when no settings file exists. Its filter
// returns nothing, leaving every decision to the built-in policies.
//
// This differs from the stock edk2 PR eval settings manager, whose filter
// returns every candidate and so builds everything on any change. Set
// "filter.default: all" in the settings file to get that behavior back.
type Default struct {
	Paths []string
}

// FilterPackagesToTest selects nothing.
func (d Default) FilterPackagesToTest(changedFiles []string, candidates []string) []string {
	return nil
}

// PackagesPath returns the configured search roots.
func (d Default) PackagesPath() []string {
	return d.Paths
}

// RuleFilter is a Provider driven by a settings file.
type RuleFilter struct {
	file *File
}

// NewRuleFilter wraps a validated settings file.
func NewRuleFilter(f *File) *RuleFilter {
	if f == nil {
		f = &File{}
	}
	return &RuleFilter{file: f}
}

// PackagesPath returns packages_path from the settings file.
func (r *RuleFilter) PackagesPath() []string {
	return r.file.PackagesPath
}

// FilterPackagesToTest applies the configured rules. The result keeps the
// order of candidates and never contains a package outside candidates.
func (r *RuleFilter) FilterPackagesToTest(changedFiles []string, candidates []string) []string {
	if strings.EqualFold(r.file.Filter.Default, FilterAll) {
		out := make([]string, len(candidates))
		copy(out, candidates)
		return out
	}

	var patterns []string
	for _, rule := range r.file.Filter.Rules {
		if anyMatch(rule.Files, changedFiles) {
			patterns = append(patterns, rule.Packages...)
		}
	}
	if len(patterns) == 0 {
		return nil
	}

	var out []string
	for _, pkg := range candidates {
		if anyMatch(patterns, []string{pkg}) {
			out = append(out, pkg)
		}
	}
	return out
}

// anyMatch reports whether some pattern matches some name. Patterns were
// validated on load, so match errors are treated as a miss.
func anyMatch(patterns, names []string) bool {
	for _, pattern := range patterns {
		for _, name := range names {
			if ok, err := doublestar.Match(pattern, name); err == nil && ok {
				return true
			}
		}
	}
	return false
}
