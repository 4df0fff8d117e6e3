package sources

import (
	"fmt"

	"github.com/spf13/cobra"

	cmdcommon "github.com/rentwatch/rentwatch/cmd/common"
)

// NewValidateCommand creates the sources validate command.
func NewValidateCommand(deps func() (*cmdcommon.CommandDeps, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate the source registry file",
		Long:  `Load the source registry file and report validation errors without running anything.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := deps()
			if err != nil {
				return fmt.Errorf("failed to initialize dependencies: %w", err)
			}

			registry, err := d.LoadRegistry()
			if err != nil {
				return err
			}

			d.Logger.Info("Source registry is valid",
				"sources", len(registry.All()),
				"enabled", len(registry.Enabled()))
			return nil
		},
	}
}
