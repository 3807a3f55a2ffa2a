package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/danieljhkim/preval/internal/config"
	"github.com/danieljhkim/preval/internal/engine"
	"github.com/danieljhkim/preval/internal/fsops"
	"github.com/danieljhkim/preval/internal/gitx"
	"github.com/danieljhkim/preval/internal/logging"
	"github.com/danieljhkim/preval/internal/settings"
	"github.com/danieljhkim/preval/internal/telemetry"
)

// session holds everything a command needs for one run.
type session struct {
	cwd      string
	paths    *config.Paths
	settings *settings.File
	logger   *logging.Logger
	engine   *engine.Engine
	shutdown telemetry.ShutdownFunc
}

// newSession resolves paths and settings and creates an engine with real
// implementations of all dependencies.
func newSession(cmd *cobra.Command) (*session, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get current directory: %w", err)
	}

	if err := config.LoadEnv(cwd); err != nil {
		return nil, err
	}

	paths, err := config.Resolve(cwd, config.Overrides{
		Workspace: workspaceDir,
		Config:    configFile,
		LogFile:   logFile,
		LogDir:    logDir,
	}, gitx.NewRealGitRepo(logging.Discard()))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve paths: %w", err)
	}

	logger, err := logging.New(logging.Options{
		Verbose: verbose,
		File:    paths.LogFile,
		Console: cmd.ErrOrStderr(),
	})
	if err != nil {
		return nil, err
	}

	shutdown, err := telemetry.Setup(telemetry.Config{
		Exporter:       firstNonEmpty(telemetryExp, os.Getenv(config.EnvTelemetry)),
		ServiceVersion: rootCmd.Version,
		Writer:         cmd.ErrOrStderr(),
	})
	if err != nil {
		_ = logger.Close()
		return nil, err
	}

	s := &session{cwd: cwd, paths: paths, logger: logger, shutdown: shutdown}
	provider, err := s.loadSettings()
	if err != nil {
		s.close()
		return nil, err
	}

	s.engine = engine.New(gitx.NewRealGitRepo(logger.Logger), fsops.NewRealFS(), provider, logger.Logger)
	return s, nil
}

// loadSettings reads the settings file, falling back to the default provider
// when there is none.
func (s *session) loadSettings() (settings.Provider, error) {
	if s.paths.Settings == "" {
		s.logger.Debug("no settings file, using default filter")
		s.settings = &settings.File{}
		return settings.Default{}, nil
	}

	f, err := settings.Load(s.paths.Settings)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("loaded settings", "file", s.paths.Settings, "rules", len(f.Filter.Rules))
	s.settings = f
	return settings.NewRuleFilter(f), nil
}

// candidates returns the packages named on the command line, or the
// settings file's list.
func (s *session) candidates(flag []string) []string {
	if len(flag) > 0 {
		return flag
	}
	return s.settings.Packages
}

func (s *session) close() {
	if err := s.shutdown(context.Background()); err != nil {
		s.logger.Warn("telemetry shutdown failed", "error", err)
	}
	_ = s.logger.Close()
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// FormatError formats an error for display.
func FormatError(err error) string {
	return errorColor.Sprintf("Error: %v", err)
}

// outputJSON writes a value as JSON.
func outputJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
