// Package config resolves the filesystem locations preval works with.
//
// Locations come from CLI flags first, then environment variables (which may
// be seeded from a .env file), then discovery from the current directory.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"

	"github.com/danieljhkim/preval/internal/settings"
)

// Environment variables consulted when the matching flag is not set.
const (
	EnvWorkspace = "PREVAL_WORKSPACE"
	EnvConfig    = "PREVAL_CONFIG"
	EnvLogFile   = "PREVAL_LOG_FILE"
	EnvTelemetry = "PREVAL_TELEMETRY"
)

// LogFileName is the log file created inside a log directory.
const LogFileName = "PREVALLOG.txt"

// ErrInvalidWorkspace indicates the workspace location is not a directory.
var ErrInvalidWorkspace = errors.New("invalid workspace")

// RootFinder locates the repository root enclosing a directory.
type RootFinder interface {
	Discover(cwd string) (string, error)
}

// Overrides holds values given explicitly on the command line.
type Overrides struct {
	Workspace string
	Config    string
	LogFile   string
	LogDir    string
}

// Paths contains all the filesystem paths used by preval.
type Paths struct {
	// Workspace is the absolute workspace root.
	Workspace string

	// Settings is the settings file, or empty when there is none.
	Settings string

	// LogFile is the debug log file, or empty when file logging is off.
	LogFile string
}

// LoadEnv loads KEY=VALUE pairs from dir/.env into the environment.
// Variables already set are left alone. A missing file is not an error.
func LoadEnv(dir string) error {
	file := filepath.Join(dir, ".env")
	if _, err := os.Stat(file); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to stat %s: %w", file, err)
	}
	if err := godotenv.Load(file); err != nil {
		return fmt.Errorf("failed to load %s: %w", file, err)
	}
	return nil
}

// Resolve works out every path for a run started in cwd. finder may be nil,
// in which case the workspace defaults to cwd.
func Resolve(cwd string, o Overrides, finder RootFinder) (*Paths, error) {
	ws, err := resolveWorkspace(cwd, o.Workspace, finder)
	if err != nil {
		return nil, err
	}

	cfg, err := resolveSettings(cwd, ws, o.Config)
	if err != nil {
		return nil, err
	}

	return &Paths{
		Workspace: ws,
		Settings:  cfg,
		LogFile:   resolveLogFile(cwd, o.LogFile, o.LogDir),
	}, nil
}

func resolveWorkspace(cwd, flag string, finder RootFinder) (string, error) {
	ws := firstSet(flag, os.Getenv(EnvWorkspace))
	if ws == "" && finder != nil {
		if root, err := finder.Discover(cwd); err == nil {
			ws = root
		}
	}
	if ws == "" {
		ws = cwd
	}

	ws = absFrom(cwd, ws)
	info, err := os.Stat(ws)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidWorkspace, err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%w: %s is not a directory", ErrInvalidWorkspace, ws)
	}
	return ws, nil
}

// resolveSettings returns the settings file to load. An explicitly named
// file must exist; the workspace default is optional.
func resolveSettings(cwd, ws, flag string) (string, error) {
	if explicit := firstSet(flag, os.Getenv(EnvConfig)); explicit != "" {
		file := absFrom(cwd, explicit)
		if _, err := os.Stat(file); err != nil {
			return "", fmt.Errorf("failed to find settings file: %w", err)
		}
		return file, nil
	}

	file := filepath.Join(ws, settings.FileName)
	if _, err := os.Stat(file); err == nil {
		return file, nil
	}
	return "", nil
}

func resolveLogFile(cwd, flag, dir string) string {
	if file := firstSet(flag, os.Getenv(EnvLogFile)); file != "" {
		return absFrom(cwd, file)
	}
	if dir != "" {
		return filepath.Join(absFrom(cwd, dir), LogFileName)
	}
	return ""
}

func firstSet(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func absFrom(cwd, p string) string {
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(cwd, p)
}
