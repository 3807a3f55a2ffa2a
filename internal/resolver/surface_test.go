package resolver

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danieljhkim/preval/internal/manifest"
)

func TestSurfaceClassifier_IsPublicFile(t *testing.T) {
	f := newFixture(t)
	surface := f.resolver.Surface()

	tests := []struct {
		name string
		file string
		want bool
	}{
		{name: "declared include directory", file: "PkgA/Include/Foo.h", want: true},
		{name: "nested include directory", file: "PkgB/Include/Protocol/Bar.h", want: true},
		{name: "private library source", file: "PkgA/Library/Foo/Foo.c", want: false},
		{name: "private header outside include", file: "PkgA/Library/Foo/Private.h", want: false},
		{name: "package manifest", file: "PkgA/PkgA.dec", want: true},
		{name: "manifest of package without includes", file: "PkgC/PkgC.dec", want: true},
		{name: "module manifest", file: "PkgA/Library/Foo/Foo.inf", want: false},
		{name: "file outside any package", file: "Docs/readme.md", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, surface.IsPublicFile(f.abs(tt.file)))
		})
	}

	// PkgA, PkgB and PkgC were each parsed exactly once.
	assert.Equal(t, 3, surface.CachedPackages())
	assert.Equal(t, 3, f.reader.packageParses)
}

func TestSurfaceClassifier_OutsideWorkspace(t *testing.T) {
	f := newFixture(t)
	assert.False(t, f.resolver.Surface().IsPublicFile(filepath.Join(t.TempDir(), "Include", "x.h")))
}

// stubPaths reports every file as belonging to one package.
type stubPaths struct {
	pkg    string
	dir    string
	absErr error
}

func (s stubPaths) ToRelative(absPath string) (string, error) {
	return filepath.Base(absPath), nil
}

func (s stubPaths) ToAbsolute(relPath string) (string, error) {
	if s.absErr != nil {
		return "", s.absErr
	}
	return s.dir, nil
}

func (s stubPaths) ContainingPackage(absPath string) (string, bool, error) {
	return s.pkg, true, nil
}

func TestSurfaceClassifier_MissingManifestIsCachedAsAbsent(t *testing.T) {
	f := newFixture(t)
	reader := &countingReader{inner: manifest.NewINIReader(f.fs)}
	paths := stubPaths{pkg: "Docs", dir: f.abs("Docs")}

	surface, err := NewSurfaceClassifier(paths, f.fs, reader, 0, nil)
	require.NoError(t, err)

	assert.False(t, surface.IsPublicFile(f.abs("Docs/Include/readme.md")))
	assert.False(t, surface.IsPublicFile(f.abs("Docs/readme.md")))
	assert.Equal(t, 1, surface.CachedPackages())
	assert.Equal(t, 0, reader.packageParses)
}

func TestSurfaceClassifier_UnresolvablePackage(t *testing.T) {
	f := newFixture(t)
	paths := stubPaths{pkg: "PkgA", absErr: errors.New("boom")}

	surface, err := NewSurfaceClassifier(paths, f.fs, f.reader, 8, nil)
	require.NoError(t, err)

	assert.False(t, surface.IsPublicFile(f.abs("PkgA/Include/Foo.h")))
	assert.Equal(t, 0, f.reader.packageParses)
}

func TestSurfaceClassifier_LoadManifestErrors(t *testing.T) {
	f := newFixture(t)
	paths := stubPaths{pkg: "Docs", dir: f.abs("Docs")}
	surface, err := NewSurfaceClassifier(paths, f.fs, f.reader, 8, nil)
	require.NoError(t, err)

	_, err = surface.loadManifest("Docs")
	assert.True(t, errors.Is(err, ErrNoManifest))
}

func TestSurfaceClassifier_AmbiguousManifestKeepsCause(t *testing.T) {
	f := newFixture(t)
	dir := f.abs("Dual")
	require.NoError(t, os.MkdirAll(dir, 0755))
	for _, name := range []string{"One.dec", "Two.dec"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(decWithInclude), 0644))
	}

	paths := stubPaths{pkg: "Dual", dir: dir}
	surface, err := NewSurfaceClassifier(paths, f.fs, f.reader, 8, nil)
	require.NoError(t, err)

	_, err = surface.loadManifest("Dual")
	assert.ErrorIs(t, err, ErrNoManifest)
	assert.ErrorIs(t, err, manifest.ErrAmbiguousManifest)
}
