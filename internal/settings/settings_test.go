package settings

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleSettings = `
packages:
  - MdePkg
  - MdeModulePkg
  - NetworkPkg
packages_path:
  - Silicon
filter:
  default: none
  rules:
    - name: base tools
      files: ["BaseTools/**"]
      packages: ["*"]
    - name: network scripts
      files: ["Scripts/net/**/*.py"]
      packages: ["NetworkPkg"]
`

func TestParse(t *testing.T) {
	f, err := Parse([]byte(sampleSettings))
	require.NoError(t, err)

	assert.Equal(t, []string{"MdePkg", "MdeModulePkg", "NetworkPkg"}, f.Packages)
	assert.Equal(t, []string{"Silicon"}, f.PackagesPath)
	assert.Equal(t, FilterNone, f.Filter.Default)
	require.Len(t, f.Filter.Rules, 2)
	assert.Equal(t, "network scripts", f.Filter.Rules[1].Name)
}

func TestParse_Empty(t *testing.T) {
	f, err := Parse([]byte("  \n"))
	require.NoError(t, err)
	assert.Empty(t, f.Packages)
	assert.Empty(t, f.Filter.Rules)
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{name: "unknown field", data: "pakages: [MdePkg]\n"},
		{name: "bad default", data: "filter:\n  default: some\n"},
		{name: "rule without packages", data: "filter:\n  rules:\n    - files: [\"a/**\"]\n"},
		{name: "bad glob", data: "filter:\n  rules:\n    - files: [\"a/[\"]\n      packages: [\"*\"]\n"},
		{name: "not yaml", data: "packages: [unterminated\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.data))
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidSettings), "got %v", err)
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	require.NoError(t, os.WriteFile(path, []byte(sampleSettings), 0644))

	f, err := Load(path)
	require.NoError(t, err)
	assert.Len(t, f.Packages, 3)

	_, err = Load(filepath.Join(t.TempDir(), FileName))
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestRuleFilter_FilterPackagesToTest(t *testing.T) {
	f, err := Parse([]byte(sampleSettings))
	require.NoError(t, err)
	filter := NewRuleFilter(f)
	candidates := []string{"MdePkg", "NetworkPkg", "Platform/BoardPkg"}

	tests := []struct {
		name    string
		changed []string
		want    []string
	}{
		{
			name:    "no rule matches",
			changed: []string{"MdePkg/Include/Base.h"},
			want:    nil,
		},
		{
			name:    "single star does not cross separators",
			changed: []string{"BaseTools/Source/C/GenFw/GenFw.c"},
			want:    []string{"MdePkg", "NetworkPkg"},
		},
		{
			name:    "targeted rule",
			changed: []string{"Scripts/net/tools/gen.py"},
			want:    []string{"NetworkPkg"},
		},
		{
			name:    "no changed files",
			changed: nil,
			want:    nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, filter.FilterPackagesToTest(tt.changed, candidates))
		})
	}
	assert.Equal(t, []string{"Silicon"}, filter.PackagesPath())
}

func TestRuleFilter_DefaultAll(t *testing.T) {
	filter := NewRuleFilter(&File{Filter: FilterConfig{Default: "ALL"}})
	candidates := []string{"MdePkg", "NetworkPkg"}

	got := filter.FilterPackagesToTest(nil, candidates)
	assert.Equal(t, candidates, got)

	got[0] = "mutated"
	assert.Equal(t, "MdePkg", candidates[0])
}

func TestDefault(t *testing.T) {
	d := Default{Paths: []string{"Edk2"}}
	assert.Nil(t, d.FilterPackagesToTest([]string{"MdePkg/MdePkg.dec"}, []string{"MdePkg"}))
	assert.Equal(t, []string{"Edk2"}, d.PackagesPath())
}
