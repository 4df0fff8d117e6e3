// Package crawl implements the crawl command for ingesting listings from a
// single source.
package crawl

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	cmdcommon "github.com/rentwatch/rentwatch/cmd/common"
	"github.com/rentwatch/rentwatch/internal/domain"
)

// Command returns the crawl command for use in the root command.
func Command(deps func() (*cmdcommon.CommandDeps, error)) *cobra.Command {
	var (
		maxPages    int
		maxListings int
		dryRun      bool
	)

	cmd := &cobra.Command{
		Use:   "crawl [source]",
		Short: "Crawl one source for rental listings",
		Long: `Crawl a configured source: discover listing pages, fetch and parse them,
and store the normalized listings. Specify the source id as an argument.

With --dry-run the crawl fetches and parses but persists nothing.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := deps()
			if err != nil {
				return fmt.Errorf("failed to initialize dependencies: %w", err)
			}

			stack, err := cmdcommon.BuildStack(cmd.Context(), d)
			if err != nil {
				return err
			}
			defer stack.Close(cmd.Context())

			result, err := stack.Crawler.Run(cmd.Context(), domain.CrawlParams{
				SourceID:    args[0],
				MaxPages:    maxPages,
				MaxListings: maxListings,
				DryRun:      dryRun,
			})
			if result != nil {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				if encErr := enc.Encode(result); encErr != nil {
					d.Logger.Error("Failed to render crawl result", "error", encErr)
				}
			}
			if err != nil {
				return fmt.Errorf("crawl failed: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&maxPages, "max-pages", 0,
		"Override the configured discovery page limit (0 means use default)")
	cmd.Flags().IntVar(&maxListings, "max-listings", 0,
		"Override the configured listing limit (0 means use default)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false,
		"Fetch and parse without persisting anything")

	return cmd
}
