package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/forgebuild/forge/internal/ferror"
	"github.com/forgebuild/forge/internal/forgepath"
	"github.com/forgebuild/forge/internal/scaffold"
)

func newNewCmd() *cobra.Command {
	var workspace bool
	var cxx bool
	cmd := &cobra.Command{
		Use:   "new <name>",
		Short: "Scaffold a starter forge.toml and source tree",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			cwd, err := os.Getwd()
			if err != nil {
				return err
			}
			abs, err := forgepath.New(cwd)
			if err != nil {
				return err
			}
			dir := abs
			if !workspace {
				dir = abs.Join(name)
			}
			if err := os.MkdirAll(dir.String(), 0o755); err != nil {
				return ferror.Wrap(ferror.ScanIO, err, "creating %s", dir)
			}
			return scaffold.New(scaffold.Options{
				Name:      name,
				Dir:       dir.String(),
				Workspace: workspace,
				CXX:       cxx,
			})
		},
	}
	cmd.Flags().BoolVar(&workspace, "workspace", false, "scaffold this project as a workspace root containing the new member")
	cmd.Flags().BoolVar(&cxx, "cxx", false, "scaffold a C++ starter instead of C")
	return cmd
}
