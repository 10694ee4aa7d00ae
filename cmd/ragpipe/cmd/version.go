package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// version is set at build time via -ldflags "-X ...cmd.version=...";
// it defaults to "dev" for local builds.
var version = "dev"

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the ragpipe version",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println("ragpipe version", version)
			return nil
		},
	}
}
