// Package manifest reads the EDK2 metadata files the resolver depends on.
//
// Package manifests (.dec) declare the public include directories of a
// package. Module manifests (.inf) declare which packages a module uses.
// Both are INI-shaped: bracketed section headers followed by one entry per
// line, so they are loaded with go-ini in a permissive mode and only the
// sections preval cares about are extracted.
package manifest

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/go-ini/ini"

	"github.com/danieljhkim/preval/internal/fsops"
)

const (
	// PackageExt is the extension of a package manifest.
	PackageExt = ".dec"

	// ModuleExt is the extension of a module manifest.
	ModuleExt = ".inf"

	includesSection = "includes"
	packagesSection = "packages"
)

var (
	// ErrNoManifest indicates a package directory holds no package manifest.
	ErrNoManifest = errors.New("no package manifest")

	// ErrAmbiguousManifest indicates a package directory holds more than one
	// package manifest.
	ErrAmbiguousManifest = errors.New("more than one package manifest")
)

// PackageManifest is the parsed content of a .dec file.
type PackageManifest struct {
	// Path is the absolute path of the manifest file.
	Path string

	// IncludePaths are the declared public include directories, relative to
	// the package directory, with forward slashes, in declaration order.
	IncludePaths []string
}

// ModuleManifest is the parsed content of an .inf file.
type ModuleManifest struct {
	// Path is the absolute path of the manifest file.
	Path string

	// PackagesUsed are the package dependency declarations in declaration
	// order, e.g. "MdePkg/MdePkg.dec".
	PackagesUsed []string
}

// Reader parses package and module manifests.
type Reader interface {
	// ParsePackage parses a package manifest.
	ParsePackage(path string) (*PackageManifest, error)

	// ParseModule parses a module manifest.
	ParseModule(path string) (*ModuleManifest, error)
}

// INIReader implements Reader on top of go-ini.
type INIReader struct {
	fs fsops.FS
}

// NewINIReader creates a reader that loads files through fs.
func NewINIReader(fs fsops.FS) *INIReader {
	return &INIReader{fs: fs}
}

// ParsePackage parses the [Includes] sections of a package manifest.
func (r *INIReader) ParsePackage(path string) (*PackageManifest, error) {
	entries, err := r.sectionEntries(path, includesSection)
	if err != nil {
		return nil, err
	}

	includes := make([]string, 0, len(entries))
	for _, entry := range entries {
		entry = strings.Trim(filepath.ToSlash(entry), "/")
		if entry != "" {
			includes = append(includes, entry)
		}
	}

	return &PackageManifest{Path: path, IncludePaths: dedupe(includes)}, nil
}

// ParseModule parses the [Packages] sections of a module manifest.
func (r *INIReader) ParseModule(path string) (*ModuleManifest, error) {
	entries, err := r.sectionEntries(path, packagesSection)
	if err != nil {
		return nil, err
	}

	used := make([]string, 0, len(entries))
	for _, entry := range entries {
		used = append(used, filepath.ToSlash(entry))
	}

	return &ModuleManifest{Path: path, PackagesUsed: dedupe(used)}, nil
}

// sectionEntries returns the entries of every section whose base name is
// want, in file order. Section headers may carry an architecture suffix
// ("Includes.X64") and may list several sections separated by commas.
func (r *INIReader) sectionEntries(path, want string) ([]string, error) {
	data, err := r.fs.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest %s: %w", path, err)
	}

	cfg, err := ini.LoadSources(ini.LoadOptions{
		AllowBooleanKeys:         true,
		AllowShadows:             true,
		SpaceBeforeInlineComment: true,
		KeyValueDelimiters:       "=",
	}, keepSections(data, want))
	if err != nil {
		return nil, fmt.Errorf("failed to parse manifest %s: %w", path, err)
	}

	var entries []string
	for _, section := range cfg.Sections() {
		if !sectionMatches(section.Name(), want) {
			continue
		}
		for _, key := range section.Keys() {
			if entry := cleanEntry(key.Name()); entry != "" {
				entries = append(entries, entry)
			}
		}
	}

	return entries, nil
}

// keepSections drops every line outside the sections named want. Sections
// preval ignores ([Pcd], [Defines], ...) may hold lines go-ini rejects,
// such as a leading quote, and must not fail the whole manifest.
func keepSections(data []byte, want string) []byte {
	var out strings.Builder
	keep := false
	for _, line := range strings.SplitAfter(string(data), "\n") {
		if name, ok := sectionHeader(line); ok {
			keep = sectionMatches(name, want)
		}
		if keep {
			out.WriteString(line)
		}
	}
	return []byte(out.String())
}

// sectionHeader returns the name inside a "[...]" header line.
func sectionHeader(line string) (string, bool) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "[") {
		return "", false
	}
	end := strings.Index(line, "]")
	if end < 0 {
		return "", false
	}
	return strings.TrimSpace(line[1:end]), true
}

func sectionMatches(header, want string) bool {
	for _, part := range strings.Split(header, ",") {
		base, _, _ := strings.Cut(strings.TrimSpace(part), ".")
		if strings.EqualFold(base, want) {
			return true
		}
	}
	return false
}

// cleanEntry strips trailing comments and whitespace from a manifest line.
func cleanEntry(line string) string {
	if i := strings.Index(line, "#"); i >= 0 {
		line = line[:i]
	}
	return strings.TrimSpace(line)
}

func dedupe(items []string) []string {
	seen := make(map[string]bool, len(items))
	out := items[:0]
	for _, item := range items {
		if seen[item] {
			continue
		}
		seen[item] = true
		out = append(out, item)
	}
	return out
}

// FindPackageManifest returns the single package manifest directly inside
// dir. The extension match is case-insensitive.
func FindPackageManifest(fs fsops.FS, dir string) (string, error) {
	entries, err := fs.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("failed to list package directory %s: %w", dir, err)
	}

	var found []string
	for _, entry := range entries {
		if entry.IsDir() || !fsops.HasExt(entry.Name(), PackageExt) {
			continue
		}
		found = append(found, filepath.Join(dir, entry.Name()))
	}

	switch len(found) {
	case 0:
		return "", fmt.Errorf("%w in %s", ErrNoManifest, dir)
	case 1:
		return found[0], nil
	default:
		return "", fmt.Errorf("%w in %s: %s", ErrAmbiguousManifest, dir, strings.Join(found, ", "))
	}
}

// IsPackageManifest reports whether path names a package manifest.
func IsPackageManifest(path string) bool {
	return fsops.HasExt(path, PackageExt)
}
