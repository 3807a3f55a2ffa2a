package cli

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/danieljhkim/preval/internal/engine"
)

var (
	evalTarget      string
	evalPackages    []string
	evalDiffFile    string
	evalCSVFormat   string
	evalCountFormat string
)

var evalCmd = &cobra.Command{
	Use:   "eval",
	Short: "Decide which packages a pull request needs built",
	Long: `Evaluate the changes between the working copy and the pull request target and
report which of the candidate packages must be built and tested.

If the changed files cannot be computed every candidate is reported, so the
command still succeeds and the pipeline builds everything.

Without a settings file the platform filter selects nothing, so only changed
packages and packages depending on a changed public surface are built. The
stock edk2 PR eval builds every candidate instead; set "filter.default: all"
in .preval.yaml to match it.`,
	Example: `  preval eval --pr-target origin/master --packages MdePkg,OvmfPkg
  preval eval --pr-target origin/master --output-csv-format-string "pkgs={pkgcsv}"
  preval eval --diff-file pr.patch --output-count-format-string "PackageCount={pkgcount}"`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newSession(cmd)
		if err != nil {
			return err
		}
		defer s.close()

		diffFile := evalDiffFile
		if diffFile != "" && !filepath.IsAbs(diffFile) {
			diffFile = filepath.Join(s.cwd, diffFile)
		}

		req := &engine.EvalRequest{
			CWD:       s.cwd,
			Workspace: s.paths.Workspace,
			Target:    evalTarget,
			Packages:  s.candidates(evalPackages),
			DiffFile:  diffFile,
		}

		result, err := s.engine.Eval(context.Background(), req)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if jsonOutput {
			return outputJSON(out, result)
		}

		printBuildReport(out, result)
		if evalCSVFormat != "" {
			fmt.Fprintln(out, expandPackageCSV(evalCSVFormat, result))
		}
		if evalCountFormat != "" {
			fmt.Fprintln(out, expandPackageCount(evalCountFormat, result))
		}
		return nil
	},
}

func init() {
	evalCmd.Flags().StringVarP(&evalTarget, "pr-target", "t", "", "Pull request target ref, for example origin/master")
	evalCmd.Flags().StringSliceVarP(&evalPackages, "packages", "p", nil, "Candidate packages (default: packages from the settings file)")
	evalCmd.Flags().StringVar(&evalDiffFile, "diff-file", "", "Read the changes from a unified diff instead of git")
	evalCmd.Flags().StringVar(&evalCSVFormat, "output-csv-format-string", "", "Print this format with {pkgcsv} replaced by the packages to build")
	evalCmd.Flags().StringVar(&evalCountFormat, "output-count-format-string", "", "Print this format with {pkgcount} replaced by the number of packages to build")
}
