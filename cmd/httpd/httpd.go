// Package httpd implements the HTTP server command.
package httpd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	cmdcommon "github.com/rentwatch/rentwatch/cmd/common"
	"github.com/rentwatch/rentwatch/internal/api"
)

const shutdownTimeout = 30 * time.Second

// Command returns the httpd command for use in the root command.
func Command(deps func() (*cmdcommon.CommandDeps, error)) *cobra.Command {
	var noScheduler bool

	cmd := &cobra.Command{
		Use:   "httpd",
		Short: "Start the HTTP API server",
		Long: `Start the HTTP API server together with the refresh-job scheduler.
The server exposes job processing, synchronous scrapes, and statistics.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := deps()
			if err != nil {
				return fmt.Errorf("failed to initialize dependencies: %w", err)
			}

			stack, err := cmdcommon.BuildStack(cmd.Context(), d)
			if err != nil {
				return err
			}
			defer func() {
				closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
				defer cancel()
				if closeErr := stack.Close(closeCtx); closeErr != nil {
					d.Logger.Error("Failed to close storage", "error", closeErr)
				}
			}()

			server := api.NewServer(api.Params{
				Config:    d.Config,
				Logger:    d.Logger,
				Registry:  stack.Registry,
				Listings:  stack.Store.Listings,
				Queue:     stack.Store.Jobs,
				Health:    stack.Store.Health,
				Crawler:   stack.Crawler,
				Processor: stack.Processor,
			})

			if !noScheduler {
				spec := d.Config.GetCrawlConfig().SchedulerSpec
				if err := stack.Scheduler.Start(spec); err != nil {
					return fmt.Errorf("failed to start scheduler: %w", err)
				}
				defer stack.Scheduler.Stop()
			}

			errCh := make(chan error, 1)
			go func() { errCh <- server.Start() }()

			select {
			case err := <-errCh:
				if err != nil {
					return fmt.Errorf("server failed: %w", err)
				}
				return nil
			case <-cmd.Context().Done():
				d.Logger.Info("Shutdown signal received")
				shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
				defer cancel()
				if err := server.Stop(shutdownCtx); err != nil {
					return fmt.Errorf("failed to stop server: %w", err)
				}
				return nil
			}
		},
	}

	cmd.Flags().BoolVar(&noScheduler, "no-scheduler", false,
		"Serve the API without the refresh-job scheduler")

	return cmd
}
