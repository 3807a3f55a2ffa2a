package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danieljhkim/preval/internal/engine"
	"github.com/danieljhkim/preval/internal/telemetry"
)

const (
	testDec = "[Defines]\n  PACKAGE_NAME = X\n\n[Includes]\n  Include\n"
	testInf = "[Defines]\n  BASE_NAME = Mod\n\n[Packages]\n  MdePkg/MdePkg.dec\n"
)

const headerPatch = `diff --git a/MdePkg/Include/Base.h b/MdePkg/Include/Base.h
index 1111111..2222222 100644
--- a/MdePkg/Include/Base.h
+++ b/MdePkg/Include/Base.h
@@ -1 +1 @@
-old
+new
`

// setupTestWorkspace creates an EDK2-like workspace where MdeModulePkg uses
// MdePkg and NetworkPkg uses nothing.
func setupTestWorkspace(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	files := map[string]string{
		"MdePkg/MdePkg.dec":                          testDec,
		"MdePkg/Include/Base.h":                      "",
		"MdeModulePkg/MdeModulePkg.dec":              testDec,
		"MdeModulePkg/Core/Dxe/DxeMain.inf":          testInf,
		"NetworkPkg/NetworkPkg.dec":                  testDec,
		"NetworkPkg/Library/Net/Net.inf":             "[Defines]\n  BASE_NAME = Net\n",
		"NetworkPkg/Library/Net/Net.c":               "",
		"MdeModulePkg/Core/Dxe/DxeMain/DxeMain.c":    "",
		"MdeModulePkg/Include/Guid/MemoryTypeInfo.h": "",
	}
	for rel, data := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(data), 0644))
	}
	return root
}

func writePatch(t *testing.T, data string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pr.patch")
	require.NoError(t, os.WriteFile(path, []byte(data), 0644))
	return path
}

func TestEvalCommand_Report(t *testing.T) {
	root := setupTestWorkspace(t)
	patch := writePatch(t, headerPatch)

	out, _, err := executeCommand(t, "eval",
		"--workspace", root,
		"--diff-file", patch,
		"--packages", "NetworkPkg,MdeModulePkg,MdePkg",
		"--output-csv-format-string", "pkgs={pkgcsv}",
		"--output-count-format-string", "PackageCount={pkgcount}")
	require.NoError(t, err)

	assert.Equal(t, "Need to Build:\n"+
		"MdeModulePkg  Reason: Policy 3 - Package depends on MdePkg\n"+
		"MdePkg        Reason: Policy 2 - Build any package that has changed\n"+
		"pkgs=MdeModulePkg,MdePkg\n"+
		"PackageCount=2\n", out)
}

func TestEvalCommand_PackagesFromSettings(t *testing.T) {
	root := setupTestWorkspace(t)
	require.NoError(t, os.WriteFile(filepath.Join(root, ".preval.yaml"), []byte(`packages:
  - MdePkg
  - NetworkPkg
filter:
  rules:
    - name: network
      files: ["MdePkg/Include/**"]
      packages: ["NetworkPkg"]
`), 0644))
	patch := writePatch(t, headerPatch)

	out, _, err := executeCommand(t, "eval", "--workspace", root, "--diff-file", patch, "--json")
	require.NoError(t, err)

	var result engine.EvalResult
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, []string{"MdePkg", "NetworkPkg"}, result.PackageNames())
	assert.Equal(t, "Policy 1 - Platform Function - Filter Packages", result.Packages[1].Reason)
	assert.Equal(t, []string{"MdePkg/Include/Base.h"}, result.ChangedFiles)
	assert.Empty(t, result.Skipped)
}

func TestEvalCommand_InvalidSettings(t *testing.T) {
	root := setupTestWorkspace(t)
	require.NoError(t, os.WriteFile(filepath.Join(root, ".preval.yaml"), []byte("filter:\n  default: sometimes\n"), 0644))

	_, _, err := executeCommand(t, "eval", "--workspace", root, "--pr-target", "origin/main", "--packages", "MdePkg")
	assert.Error(t, err)
}

func TestEvalCommand_DiffFailureBuildsEverything(t *testing.T) {
	root := setupTestWorkspace(t)

	out, _, err := executeCommand(t, "eval",
		"--workspace", root,
		"--diff-file", filepath.Join(root, "missing.patch"),
		"--packages", "MdePkg,NetworkPkg",
		"--output-count-format-string", "n={pkgcount}")
	require.NoError(t, err)

	assert.Contains(t, out, "MdePkg      Reason: Policy 0 - Failed to diff (1)")
	assert.Contains(t, out, "NetworkPkg  Reason: Policy 0 - Failed to diff (1)")
	assert.Contains(t, out, "n=2\n")
}

func TestEvalCommand_NothingToBuild(t *testing.T) {
	root := setupTestWorkspace(t)
	patch := writePatch(t, "")

	out, _, err := executeCommand(t, "eval",
		"--workspace", root,
		"--diff-file", patch,
		"--packages", "MdePkg",
		"--output-csv-format-string", "pkgs={pkgcsv}",
		"--output-count-format-string", "n={pkgcount}")
	require.NoError(t, err)

	assert.Equal(t, "Need to Build:\nNone\npkgs=\nn=0\n", out)
}

func TestEvalCommand_Validation(t *testing.T) {
	root := setupTestWorkspace(t)

	_, _, err := executeCommand(t, "eval", "--workspace", root, "--packages", "MdePkg")
	assert.ErrorIs(t, err, engine.ErrValidation)

	_, _, err = executeCommand(t, "eval", "--workspace", root, "--pr-target", "origin/main")
	assert.ErrorIs(t, err, engine.ErrValidation)
}

func TestEvalCommand_LogFile(t *testing.T) {
	root := setupTestWorkspace(t)
	patch := writePatch(t, headerPatch)
	logDir := filepath.Join(t.TempDir(), "Build")

	_, _, err := executeCommand(t, "eval",
		"--workspace", root,
		"--diff-file", patch,
		"--packages", "MdePkg",
		"--log-dir", logDir)
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(logDir, "PREVALLOG.txt"))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"evaluation complete"`)
}

func TestChangesCommand(t *testing.T) {
	root := setupTestWorkspace(t)
	patch := writePatch(t, headerPatch)

	out, _, err := executeCommand(t, "changes", "--workspace", root, "--diff-file", patch)
	require.NoError(t, err)
	assert.Regexp(t, `MdePkg/Include/Base\.h\s+MdePkg\s+public`, out)

	_, _, err = executeCommand(t, "changes", "--workspace", root)
	assert.ErrorIs(t, err, engine.ErrValidation)
}

func TestOwnerCommand(t *testing.T) {
	root := setupTestWorkspace(t)

	out, _, err := executeCommand(t, "owner", "--workspace", root, "--json",
		filepath.Join(root, "NetworkPkg", "Library", "Net", "Net.c"),
		filepath.Join(root, "MdeModulePkg", "Include", "Guid", "MemoryTypeInfo.h"))
	require.NoError(t, err)

	var result engine.FilesResult
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, []engine.FileInfo{
		{Path: "NetworkPkg/Library/Net/Net.c", Package: "NetworkPkg", Public: false},
		{Path: "MdeModulePkg/Include/Guid/MemoryTypeInfo.h", Package: "MdeModulePkg", Public: true},
	}, result.Files)

	_, _, err = executeCommand(t, "owner", "--workspace", root)
	assert.Error(t, err)
}

func TestEvalCommand_TelemetryStdout(t *testing.T) {
	root := setupTestWorkspace(t)
	patch := writePatch(t, headerPatch)

	out, errOut, err := executeCommand(t, "eval",
		"--workspace", root,
		"--diff-file", patch,
		"--packages", "MdeModulePkg,MdePkg",
		"--telemetry", "stdout")
	require.NoError(t, err)

	assert.Contains(t, out, "Need to Build:")
	assert.NotContains(t, out, "PackageResolver.Resolve")
	assert.Contains(t, errOut, "PackageResolver.Resolve")
	assert.Contains(t, errOut, "preval_packages_selected_total")
}

func TestEvalCommand_UnknownTelemetryExporter(t *testing.T) {
	root := setupTestWorkspace(t)

	_, _, err := executeCommand(t, "eval",
		"--workspace", root,
		"--pr-target", "origin/main",
		"--packages", "MdePkg",
		"--telemetry", "carrier-pigeon")
	assert.ErrorIs(t, err, telemetry.ErrUnknownExporter)
}

func TestEvalCommand_HelpExplainsDefaultFilter(t *testing.T) {
	out, _, err := executeCommand(t, "eval", "--help")
	require.NoError(t, err)
	assert.Contains(t, out, "platform filter selects nothing")
	assert.Contains(t, out, `"filter.default: all"`)
}
