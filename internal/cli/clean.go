package cli

import (
	"os"
	"path/filepath"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/forgebuild/forge/internal/config"
	"github.com/forgebuild/forge/internal/fingerprint"
	"github.com/forgebuild/forge/internal/forgepath"
)

func newCleanCmd() *cobra.Command {
	var member string
	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Remove a project's (or one member's) build-output root and cache",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runClean(member)
		},
	}
	cmd.Flags().StringVar(&member, "member", "", "restrict cleaning to this workspace member")
	return cmd
}

func runClean(member string) error {
	fsys := afero.NewOsFs()
	cwd, err := os.Getwd()
	if err != nil {
		return err
	}
	root, err := forgepath.New(cwd)
	if err != nil {
		return err
	}

	var members []string
	if member != "" {
		members = []string{member}
	}

	ecs, err := config.Resolve(fsys, config.Request{Root: root.String(), Members: members})
	if err != nil {
		return err
	}

	for _, ec := range ecs {
		// Purge the whole profile-agnostic build root, not just ec.BuildRoot
		// (which is already profile-scoped), so `forge clean` clears every
		// profile's cache and artifacts for the member in one pass.
		target := filepath.Dir(ec.BuildRoot)
		if err := fingerprint.Purge(fsys, target); err != nil {
			return err
		}
	}
	return nil
}
