package cli

import (
	"context"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/danieljhkim/preval/internal/engine"
)

var (
	changesTarget   string
	changesDiffFile string
)

var changesCmd = &cobra.Command{
	Use:   "changes",
	Short: "List changed files with their owning package",
	Long:  `List the files changed against the pull request target, the package that owns each one, and whether the file is part of that package's public surface.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newSession(cmd)
		if err != nil {
			return err
		}
		defer s.close()

		diffFile := changesDiffFile
		if diffFile != "" && !filepath.IsAbs(diffFile) {
			diffFile = filepath.Join(s.cwd, diffFile)
		}

		result, err := s.engine.Changes(context.Background(), &engine.ChangesRequest{
			CWD:       s.cwd,
			Workspace: s.paths.Workspace,
			Target:    changesTarget,
			DiffFile:  diffFile,
		})
		if err != nil {
			return err
		}

		if jsonOutput {
			return outputJSON(cmd.OutOrStdout(), result)
		}
		printFileTable(cmd.OutOrStdout(), result.Files)
		return nil
	},
}

func init() {
	changesCmd.Flags().StringVarP(&changesTarget, "pr-target", "t", "", "Pull request target ref, for example origin/master")
	changesCmd.Flags().StringVar(&changesDiffFile, "diff-file", "", "Read the changes from a unified diff instead of git")
}
