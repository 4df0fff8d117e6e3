// Package common provides shared wiring for command implementations.
package common

import (
	"fmt"

	"github.com/rentwatch/rentwatch/internal/config"
	"github.com/rentwatch/rentwatch/internal/logger"
	"github.com/rentwatch/rentwatch/internal/sources"
)

// CommandDeps holds common dependencies for all commands.
// Use this instead of context.Value for type-safe dependency injection.
type CommandDeps struct {
	Logger logger.Interface
	Config config.Interface
}

// Validate ensures all required dependencies are present.
func (d CommandDeps) Validate() error {
	if d.Logger == nil {
		return ErrLoggerRequired
	}
	if d.Config == nil {
		return ErrConfigRequired
	}
	return nil
}

// NewCommandDeps loads configuration and builds the logger.
func NewCommandDeps(cfgFile string, debug bool) (*CommandDeps, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	appCfg := cfg.GetAppConfig()
	level := appCfg.LogLevel
	if debug {
		level = "debug"
	}
	log, err := logger.New(logger.Config{
		Level:       level,
		Encoding:    appCfg.LogEncoding,
		Development: appCfg.Environment == "development",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	deps := &CommandDeps{Logger: log, Config: cfg}
	if err := deps.Validate(); err != nil {
		return nil, err
	}
	return deps, nil
}

// LoadRegistry loads the source registry named by the crawl config.
func (d *CommandDeps) LoadRegistry() (*sources.Registry, error) {
	return sources.LoadRegistry(d.Config.GetCrawlConfig().SourcesFile, d.Logger)
}
