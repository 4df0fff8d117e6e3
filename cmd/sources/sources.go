// Package sources implements the command-line interface for inspecting the
// configured listing sources.
package sources

import (
	"github.com/spf13/cobra"

	cmdcommon "github.com/rentwatch/rentwatch/cmd/common"
)

// Command returns the sources command group.
func Command(deps func() (*cmdcommon.CommandDeps, error)) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sources",
		Short: "Manage listing sources",
		Long:  `Inspect the sources configured in the registry file.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cmd.AddCommand(NewListCommand(deps))
	cmd.AddCommand(NewValidateCommand(deps))

	return cmd
}
