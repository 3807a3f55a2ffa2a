package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/danieljhkim/preval/internal/engine"
)

var ownerCmd = &cobra.Command{
	Use:   "owner <file>...",
	Short: "Show the package owning each file",
	Long:  `Show the package that owns each file and whether the file is part of that package's public surface.`,
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newSession(cmd)
		if err != nil {
			return err
		}
		defer s.close()

		result, err := s.engine.Owner(context.Background(), &engine.OwnerRequest{
			CWD:       s.cwd,
			Workspace: s.paths.Workspace,
			Files:     args,
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
