package sources

import (
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	cmdcommon "github.com/rentwatch/rentwatch/cmd/common"
	"github.com/rentwatch/rentwatch/internal/domain"
)

// RenderTable formats and displays the sources in a table.
func RenderTable(configs []domain.SourceConfig) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleLight)

	t.AppendHeader(table.Row{"ID", "Name", "Enabled", "Priority", "Parser", "Rate/min", "Base URL"})
	for _, cfg := range configs {
		parser := cfg.Scrape.Parser
		if parser == "" {
			parser = "generic"
		}
		t.AppendRow(table.Row{
			cfg.ID,
			cfg.Name,
			cfg.Enabled,
			cfg.Priority,
			parser,
			cfg.Scrape.RateLimit.RequestsPerMinute,
			cfg.BaseURL,
		})
	}

	t.Render()
}

// NewListCommand creates the sources list command.
func NewListCommand(deps func() (*cmdcommon.CommandDeps, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all configured sources",
		Long:  `List all listing sources configured in the registry file.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := deps()
			if err != nil {
				return fmt.Errorf("failed to initialize dependencies: %w", err)
			}

			registry, err := d.LoadRegistry()
			if err != nil {
				return err
			}

			configs := registry.All()
			if len(configs) == 0 {
				d.Logger.Info("No sources configured")
				return nil
			}
			RenderTable(configs)
			return nil
		},
	}
}
