// Package cmd implements the command-line interface for rentwatch.
// It provides the root command and subcommands for crawling sources,
// serving the HTTP API, and inspecting the source registry.
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	cmdcommon "github.com/rentwatch/rentwatch/cmd/common"
	cmdcrawl "github.com/rentwatch/rentwatch/cmd/crawl"
	"github.com/rentwatch/rentwatch/cmd/httpd"
	cmdsources "github.com/rentwatch/rentwatch/cmd/sources"
)

// Version is set at build time via -ldflags.
var Version = "dev"

var (
	// cfgFile holds the path to the configuration file.
	cfgFile string

	// debug enables debug logging for all commands.
	debug bool

	rootCmd = &cobra.Command{
		Use:   "rentwatch",
		Short: "A rental-listing ingestion service",
		Long: `rentwatch crawls rental listing sources, normalizes what it finds,
and tracks listing freshness, price history, and source health.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
)

// Execute runs the root command.
func Execute() error {
	// Load .env early so environment variables are available to config.
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile,
		"config",
		"",
		"config file (default is ./config.yaml, ~/.rentwatch/config.yaml, or /etc/rentwatch/config.yaml)",
	)
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("rentwatch version %s\n", Version)
		},
	})

	rootCmd.AddCommand(cmdcrawl.Command(newDeps))
	rootCmd.AddCommand(httpd.Command(newDeps))
	rootCmd.AddCommand(cmdsources.Command(newDeps))
}

// newDeps builds command dependencies from the parsed global flags. Deferred
// to a function so flag values are read after cobra parses them.
func newDeps() (*cmdcommon.CommandDeps, error) {
	return cmdcommon.NewCommandDeps(cfgFile, debug)
}
