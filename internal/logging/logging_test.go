package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_ConsoleLevel(t *testing.T) {
	tests := []struct {
		name      string
		verbose   bool
		wantDebug bool
	}{
		{name: "info by default", verbose: false, wantDebug: false},
		{name: "debug when verbose", verbose: true, wantDebug: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger, err := New(Options{Verbose: tt.verbose, Console: &buf})
			require.NoError(t, err)
			defer logger.Close()

			logger.Debug("debug line")
			logger.Info("info line", "package", "MdePkg")

			out := buf.String()
			assert.Contains(t, out, "info line")
			assert.Contains(t, out, "package=MdePkg")
			assert.Equal(t, tt.wantDebug, strings.Contains(out, "debug line"))
		})
	}
}

func TestNew_FileGetsDebugAsJSON(t *testing.T) {
	var console bytes.Buffer
	file := filepath.Join(t.TempDir(), "Build", "PREVALLOG.txt")

	logger, err := New(Options{File: file, Console: &console})
	require.NoError(t, err)

	logger.With("component", "resolver").Debug("file changed", "file", "MdePkg/Include/Base.h")
	logger.Info("done")
	require.NoError(t, logger.Close())
	require.NoError(t, logger.Close())

	assert.NotContains(t, console.String(), "file changed")
	assert.Contains(t, console.String(), "done")

	data, err := os.ReadFile(file)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)

	var rec map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &rec))
	assert.Equal(t, "DEBUG", rec["level"])
	assert.Equal(t, "file changed", rec["msg"])
	assert.Equal(t, "resolver", rec["component"])
	assert.Equal(t, "MdePkg/Include/Base.h", rec["file"])
}

func TestNew_BadFile(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0644))

	_, err := New(Options{File: filepath.Join(blocker, "log.txt"), Console: &bytes.Buffer{}})
	assert.Error(t, err)
}

func TestDiscard(t *testing.T) {
	logger := Discard()
	logger.Error("dropped")
	assert.False(t, logger.Enabled(context.Background(), slog.LevelError))
}
