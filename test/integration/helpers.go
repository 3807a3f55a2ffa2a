// Package integration runs the engine end to end against real git
// repositories laid out like EDK2 workspaces.
package integration

import (
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/danieljhkim/preval/internal/engine"
	"github.com/danieljhkim/preval/internal/fsops"
	"github.com/danieljhkim/preval/internal/gitx"
	"github.com/danieljhkim/preval/internal/logging"
	"github.com/danieljhkim/preval/internal/settings"
)

const (
	mdeDec = `## @file
[Defines]
  DEC_SPECIFICATION = 0x00010005
  PACKAGE_NAME      = MdePkg

[Includes]
  Include

[Includes.X64]
  Include/X64
`
	moduleDec = `[Defines]
  PACKAGE_NAME = MdeModulePkg

[Includes]
  Include
`
	ovmfDec = `[Defines]
  PACKAGE_NAME = OvmfPkg
`
)

// baseline is the workspace as committed on the target branch.
var baseline = map[string]string{
	"MdePkg/MdePkg.dec":                  mdeDec,
	"MdePkg/Include/Base.h":              "// base\n",
	"MdePkg/Include/X64/ProcessorBind.h": "// bind\n",
	"MdePkg/Library/BaseLib/String.c":    "// string\n",
	"MdePkg/Library/BaseLib/BaseLib.inf": inf("MdePkg/MdePkg.dec"),
	"MdeModulePkg/MdeModulePkg.dec":      moduleDec,
	"MdeModulePkg/Core/Dxe/DxeMain.inf":  inf("MdePkg/MdePkg.dec", "MdeModulePkg/MdeModulePkg.dec"),
	"MdeModulePkg/Core/Dxe/DxeMain.c":    "// dxe\n",
	"OvmfPkg/OvmfPkg.dec":                ovmfDec,
	"OvmfPkg/Sec/SecMain.inf":            inf("MdeModulePkg/MdeModulePkg.dec"),
	"OvmfPkg/Sec/SecMain.c":              "// sec\n",
	"Platform/ShellPkg/ShellPkg.dec":     ovmfDec,
	"Platform/ShellPkg/App/Shell.inf":    inf("MdePkg/MdePkg.dec"),
	"Conf/target.txt":                    "ACTIVE_PLATFORM = OvmfPkg/OvmfPkgX64.dsc\n",
	"BaseTools/Scripts/PatchCheck.py":    "# check\n",
}

func inf(pkgs ...string) string {
	data := "[Defines]\n  INF_VERSION = 0x00010005\n  BASE_NAME = Module\n\n[Packages]\n"
	for _, p := range pkgs {
		data += "  " + p + "\n"
	}
	return data
}

func writeFiles(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, data := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(data), 0644))
	}
}

func git(t *testing.T, dir string, args ...string) {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	require.NoError(t, err, "git %v: %s", args, out)
}

// setupRepo commits the baseline, tags it as branch "target", then commits
// changes on top. The returned root is the repository root.
func setupRepo(t *testing.T, changes map[string]string) string {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}

	root := t.TempDir()
	git(t, root, "init")
	git(t, root, "config", "user.email", "ci@example.com")
	git(t, root, "config", "user.name", "CI")

	writeFiles(t, root, baseline)
	git(t, root, "add", ".")
	git(t, root, "commit", "-m", "baseline")
	git(t, root, "branch", "target")

	if len(changes) > 0 {
		writeFiles(t, root, changes)
		git(t, root, "add", ".")
		git(t, root, "commit", "-m", "pull request")
	}
	return root
}

func newEngine(provider settings.Provider) *engine.Engine {
	logger := logging.Discard()
	return engine.New(gitx.NewRealGitRepo(logger), fsops.NewRealFS(), provider, logger)
}

var allPackages = []string{"MdePkg", "MdeModulePkg", "OvmfPkg", "ShellPkg"}
