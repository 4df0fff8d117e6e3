package common

import (
	"context"
	"fmt"

	"github.com/rentwatch/rentwatch/internal/crawl"
	"github.com/rentwatch/rentwatch/internal/job"
	"github.com/rentwatch/rentwatch/internal/scrape"
	"github.com/rentwatch/rentwatch/internal/sources"
	"github.com/rentwatch/rentwatch/internal/storage"
)

// Stack is the fully wired service graph shared by the crawl and httpd
// commands.
type Stack struct {
	Deps      *CommandDeps
	Registry  *sources.Registry
	Store     *storage.Client
	Crawler   *crawl.Orchestrator
	Processor *job.Processor
	Scheduler *job.Scheduler
}

// BuildStack loads the registry, connects MongoDB, and wires the crawl and
// job services. Callers own Close.
func BuildStack(ctx context.Context, deps *CommandDeps) (*Stack, error) {
	registry, err := deps.LoadRegistry()
	if err != nil {
		return nil, fmt.Errorf("failed to load source registry: %w", err)
	}

	store, err := storage.Connect(ctx, deps.Config.GetDatabaseConfig(), deps.Logger)
	if err != nil {
		return nil, fmt.Errorf("failed to connect storage: %w", err)
	}

	crawlCfg := deps.Config.GetCrawlConfig()
	crawler := crawl.New(
		registry,
		store.Listings,
		store.Pages,
		store.Health,
		scrape.Options{
			Logger:       deps.Logger,
			FetchTimeout: crawlCfg.FetchTimeout,
			UserAgent:    crawlCfg.UserAgent,
		},
		deps.Logger,
	)
	processor := job.NewProcessor(store.Jobs, crawler, deps.Logger)
	scheduler := job.NewScheduler(registry, store.Jobs, deps.Logger)

	return &Stack{
		Deps:      deps,
		Registry:  registry,
		Store:     store,
		Crawler:   crawler,
		Processor: processor,
		Scheduler: scheduler,
	}, nil
}

// Close releases the stack's storage connection.
func (s *Stack) Close(ctx context.Context) error {
	return s.Store.Close(ctx)
}
