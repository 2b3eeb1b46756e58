package cli

import (
	"github.com/spf13/cobra"

	"github.com/forgebuild/forge/internal/ferror"
)

// NewRootCmd builds the forge root cobra command.
func NewRootCmd(version string) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "forge",
		Short:         "A build driver for C and C++ projects",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.AddCommand(newBuildCmd())
	cmd.AddCommand(newNewCmd())
	cmd.AddCommand(newCleanCmd())
	return cmd
}

// Run executes the root command with args and returns the process exit code
// per the front-end convention: 0 success, 1 any action failure, 2
// configuration error, 3 cancellation.
func Run(args []string, version string) int {
	root := NewRootCmd(version)
	root.SetArgs(args)
	if err := root.Execute(); err != nil {
		root.PrintErrln("error:", err)
		return ferror.ExitCode(err)
	}
	return 0
}
