package integration

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danieljhkim/preval/internal/engine"
	"github.com/danieljhkim/preval/internal/resolver"
	"github.com/danieljhkim/preval/internal/settings"
)

func TestEval_RealGit(t *testing.T) {
	tests := []struct {
		name    string
		changes map[string]string
		want    map[string]string
		skipped []string
	}{
		{
			name:    "public header rebuilds dependents",
			changes: map[string]string{"MdePkg/Include/Base.h": "// changed\n"},
			want: map[string]string{
				"MdePkg":       "Policy 2 - Build any package that has changed",
				"MdeModulePkg": "Policy 3 - Package depends on MdePkg",
				"ShellPkg":     "Policy 3 - Package depends on MdePkg",
			},
			skipped: []string{"OvmfPkg"},
		},
		{
			name:    "architecture include directory is public",
			changes: map[string]string{"MdePkg/Include/X64/ProcessorBind.h": "// changed\n"},
			want: map[string]string{
				"MdePkg":       "Policy 2 - Build any package that has changed",
				"MdeModulePkg": "Policy 3 - Package depends on MdePkg",
				"ShellPkg":     "Policy 3 - Package depends on MdePkg",
			},
			skipped: []string{"OvmfPkg"},
		},
		{
			name:    "private source builds only its package",
			changes: map[string]string{"MdePkg/Library/BaseLib/String.c": "// changed\n"},
			want: map[string]string{
				"MdePkg": "Policy 2 - Build any package that has changed",
			},
			skipped: []string{"MdeModulePkg", "OvmfPkg", "ShellPkg"},
		},
		{
			name:    "package manifest is public",
			changes: map[string]string{"MdeModulePkg/MdeModulePkg.dec": moduleDec + "\n[Guids]\n"},
			want: map[string]string{
				"MdeModulePkg": "Policy 2 - Build any package that has changed",
				"OvmfPkg":      "Policy 3 - Package depends on MdeModulePkg",
			},
			skipped: []string{"MdePkg", "ShellPkg"},
		},
		{
			name:    "files outside packages build nothing",
			changes: map[string]string{"BaseTools/Scripts/PatchCheck.py": "# changed\n"},
			want:    map[string]string{},
			skipped: allPackages,
		},
		{
			name:    "no commits since target",
			want:    map[string]string{},
			skipped: allPackages,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := setupRepo(t, tt.changes)
			eng := newEngine(settings.Default{Paths: []string{"Platform"}})

			result, err := eng.Eval(context.Background(), &engine.EvalRequest{
				CWD:       root,
				Workspace: root,
				Target:    "target",
				Packages:  allPackages,
			})
			require.NoError(t, err)

			assert.Equal(t, 0, result.DiffCode)
			got := make(map[string]string, len(result.Packages))
			for _, p := range result.Packages {
				got[p.Name] = p.Reason
			}
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.skipped, result.Skipped)
		})
	}
}

func TestEval_RealGitFromSubdirectory(t *testing.T) {
	root := setupRepo(t, map[string]string{"OvmfPkg/Sec/SecMain.c": "// changed\n"})
	eng := newEngine(settings.Default{Paths: []string{"Platform"}})

	result, err := eng.Eval(context.Background(), &engine.EvalRequest{
		CWD:       filepath.Join(root, "OvmfPkg", "Sec"),
		Workspace: root,
		Target:    "target",
		Packages:  allPackages,
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"OvmfPkg"}, result.PackageNames())
	assert.Equal(t, []string{"OvmfPkg/Sec/SecMain.c"}, result.ChangedFiles)
}

func TestEval_RealGitUnknownTarget(t *testing.T) {
	root := setupRepo(t, nil)
	eng := newEngine(nil)

	result, err := eng.Eval(context.Background(), &engine.EvalRequest{
		CWD:       root,
		Workspace: root,
		Target:    "origin/does-not-exist",
		Packages:  allPackages,
	})
	require.NoError(t, err)

	assert.NotEqual(t, 0, result.DiffCode)
	assert.Equal(t, allPackages, result.PackageNames())
	for _, p := range result.Packages {
		assert.Equal(t, resolver.PolicyDiffFailed, p.Policy)
		assert.Equal(t, resolver.DiffFailedReason(result.DiffCode), p.Reason)
	}
	assert.Empty(t, result.Skipped)
}

func TestEval_RealGitPlatformRules(t *testing.T) {
	root := setupRepo(t, map[string]string{"Conf/target.txt": "ACTIVE_PLATFORM = OvmfPkg/OvmfPkgIa32.dsc\n"})
	provider := settings.NewRuleFilter(&settings.File{
		PackagesPath: []string{"Platform"},
		Filter: settings.FilterConfig{Rules: []settings.Rule{
			{Name: "build configuration", Files: []string{"Conf/*.txt"}, Packages: []string{"OvmfPkg"}},
		}},
	})
	eng := newEngine(provider)

	result, err := eng.Eval(context.Background(), &engine.EvalRequest{
		CWD:       root,
		Workspace: root,
		Target:    "target",
		Packages:  allPackages,
	})
	require.NoError(t, err)

	require.Len(t, result.Packages, 1)
	assert.Equal(t, "OvmfPkg", result.Packages[0].Name)
	assert.Equal(t, resolver.PolicyPlatformFilter, result.Packages[0].Policy)
}
