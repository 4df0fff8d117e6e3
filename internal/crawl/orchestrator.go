// Package crawl orchestrates a full crawl of one source: discovery,
// fetching, parsing, persistence, and delisting reconciliation, with
// health counters recorded throughout.
package crawl

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rentwatch/rentwatch/internal/domain"
	"github.com/rentwatch/rentwatch/internal/logger"
	"github.com/rentwatch/rentwatch/internal/scrape"
	"github.com/rentwatch/rentwatch/internal/sources"
	"github.com/rentwatch/rentwatch/internal/storage"
)

// Defaults applied when CrawlParams leaves a bound unset.
const (
	DefaultMaxPages    = 10
	DefaultMaxListings = 200

	// batchIngestTimeout bounds a batch provider's trigger-to-dataset cycle.
	batchIngestTimeout = 10 * time.Minute
)

// errNoListings marks a fetched page whose extractors produced nothing.
var errNoListings = errors.New("no listings extracted")

// Interface runs crawls.
type Interface interface {
	// Run crawls one source and always returns a result, partial on failure.
	Run(ctx context.Context, params domain.CrawlParams) (*domain.CrawlResult, error)
}

// Orchestrator drives the crawl state machine for a single source at a time.
type Orchestrator struct {
	registry sources.Interface
	listings storage.ListingStore
	pages    storage.PageStore
	health   storage.HealthStore
	adapters scrape.Options
	logger   logger.Interface

	// adapterFor resolves the adapter for a source; swappable in tests.
	adapterFor func(*domain.SourceConfig, scrape.Options) (scrape.Adapter, error)
}

// Ensure Orchestrator implements Interface
var _ Interface = (*Orchestrator)(nil)

// New creates a crawl orchestrator.
func New(
	registry sources.Interface,
	listings storage.ListingStore,
	pages storage.PageStore,
	health storage.HealthStore,
	adapters scrape.Options,
	log logger.Interface,
) *Orchestrator {
	if log == nil {
		log = logger.NewNop()
	}
	return &Orchestrator{
		registry:   registry,
		listings:   listings,
		pages:      pages,
		health:     health,
		adapters:   adapters,
		logger:     log,
		adapterFor: scrape.ForSource,
	}
}

// Run executes a crawl of the source named in params. The returned result is
// never nil: a fatal error mid-crawl still yields the counts accumulated up
// to that point, alongside the error.
func (o *Orchestrator) Run(ctx context.Context, params domain.CrawlParams) (*domain.CrawlResult, error) {
	start := time.Now()
	result := &domain.CrawlResult{SourceID: params.SourceID}
	defer func() { result.Duration = time.Since(start) }()

	source, err := o.registry.GetEnabled(params.SourceID)
	if err != nil {
		result.AddError(err.Error())
		return result, err
	}

	if params.MaxPages <= 0 {
		params.MaxPages = DefaultMaxPages
	}
	if params.MaxListings <= 0 {
		params.MaxListings = DefaultMaxListings
	}

	adapter, err := o.adapterFor(source, o.adapters)
	if err != nil {
		result.AddError(err.Error())
		o.recordError(ctx, source.ID, err)
		return result, err
	}
	// Browser-backed adapters hold a headless process open; release it when
	// the crawl is done.
	if closer, ok := adapter.(interface{ Close() }); ok {
		defer closer.Close()
	}

	log := o.logger.WithSource(source.ID)
	log.Info("Crawl starting",
		"parser", source.Scrape.Parser,
		"max_pages", params.MaxPages,
		"max_listings", params.MaxListings,
		"dry_run", params.DryRun)

	if runner, ok := adapter.(scrape.BatchRunner); ok {
		err = o.runBatch(ctx, source, runner, params, result, log)
	} else {
		err = o.runPaged(ctx, source, adapter, params, result, log)
	}
	if err != nil {
		result.AddError(err.Error())
		o.recordError(ctx, source.ID, err)
		return result, err
	}

	log.Info("Crawl finished",
		"pages", result.PagesDiscovered,
		"found", result.ListingsFound,
		"new", result.ListingsNew,
		"updated", result.ListingsUpdated,
		"delisted", result.ListingsDelisted,
		"fetch_failures", result.FetchFailures,
		"duration", time.Since(start))
	return result, nil
}

// runPaged is the standard discovery-fetch-parse loop for page-oriented
// sources.
func (o *Orchestrator) runPaged(
	ctx context.Context,
	source *domain.SourceConfig,
	adapter scrape.Adapter,
	params domain.CrawlParams,
	result *domain.CrawlResult,
	log logger.Interface,
) error {
	urls, err := o.discover(ctx, adapter, params, result, log)
	if err != nil {
		return err
	}

	activeURLs := make([]string, 0, len(urls))
	for _, discovered := range urls {
		if err := ctx.Err(); err != nil {
			return err
		}
		if result.ListingsFound >= params.MaxListings {
			log.Info("Listing cap reached", "max_listings", params.MaxListings)
			break
		}

		page := o.fetchPage(ctx, source, adapter, discovered.URL, params, result, log)
		if page == nil {
			continue
		}

		listings, err := o.parsePage(ctx, source, adapter, page, params, result, log)
		if err != nil {
			continue
		}
		for _, listing := range listings {
			activeURLs = append(activeURLs, listing.SourceURL)
		}
	}

	return o.reconcile(ctx, source, params, activeURLs, result, log)
}

// runBatch is the trigger-wait-pull path for batch API providers. Discovery
// and per-page fetching do not apply; the provider returns the full dataset.
func (o *Orchestrator) runBatch(
	ctx context.Context,
	source *domain.SourceConfig,
	runner scrape.BatchRunner,
	params domain.CrawlParams,
	result *domain.CrawlResult,
	log logger.Interface,
) error {
	fetchStart := time.Now()
	listings, err := runner.Ingest(ctx, batchIngestTimeout)
	o.record(ctx, source.ID, domain.HealthDelta{
		FetchAttempts: 1,
		FetchDuration: time.Since(fetchStart),
	})
	if err != nil {
		o.record(ctx, source.ID, domain.HealthDelta{FetchFailures: 1})
		return fmt.Errorf("batch ingest failed: %w", err)
	}
	o.record(ctx, source.ID, domain.HealthDelta{FetchSuccesses: 1})

	if len(listings) > params.MaxListings {
		listings = listings[:params.MaxListings]
	}

	activeURLs := make([]string, 0, len(listings))
	for _, listing := range listings {
		o.persistListing(ctx, source, listing, params, result, log)
		activeURLs = append(activeURLs, listing.SourceURL)
	}

	return o.reconcile(ctx, source, params, activeURLs, result, log)
}

// discover paginates ListListingURLs until an empty page, the page cap, or a
// discovery error.
func (o *Orchestrator) discover(
	ctx context.Context,
	adapter scrape.Adapter,
	params domain.CrawlParams,
	result *domain.CrawlResult,
	log logger.Interface,
) ([]scrape.DiscoveredURL, error) {
	var all []scrape.DiscoveredURL
	seen := make(map[string]struct{})

	for page := 0; page < params.MaxPages; page++ {
		urls, err := adapter.ListListingURLs(ctx, scrape.ListParams{Page: page})
		if err != nil {
			return nil, fmt.Errorf("discovery failed on page %d: %w", page, err)
		}
		if len(urls) == 0 {
			break
		}
		result.PagesDiscovered++
		for _, u := range urls {
			if _, ok := seen[u.URL]; ok {
				continue
			}
			seen[u.URL] = struct{}{}
			all = append(all, u)
		}
		if len(all) >= params.MaxListings {
			break
		}
	}

	log.Debug("Discovery complete", "urls", len(all), "pages", result.PagesDiscovered)
	return all, nil
}

// fetchPage fetches one listing page, persists the audit record, and records
// fetch health. Returns nil when the fetch failed.
func (o *Orchestrator) fetchPage(
	ctx context.Context,
	source *domain.SourceConfig,
	adapter scrape.Adapter,
	pageURL string,
	params domain.CrawlParams,
	result *domain.CrawlResult,
	log logger.Interface,
) *domain.RawPage {
	fetchStart := time.Now()
	page := adapter.Fetch(ctx, pageURL)
	delta := domain.HealthDelta{
		FetchAttempts: 1,
		FetchDuration: time.Since(fetchStart),
	}

	if !page.Fetched() {
		delta.FetchFailures = 1
		delta.Error = page.ErrorMessage
		result.FetchFailures++
		log.Warn("Fetch failed", "url", pageURL, "status", page.HTTPStatus, "error", page.ErrorMessage)
	} else {
		delta.FetchSuccesses = 1
	}
	o.record(ctx, source.ID, delta)

	if !params.DryRun {
		if err := o.pages.Insert(ctx, page); err != nil {
			log.Error("Failed to store raw page", "url", pageURL, "error", err)
			result.AddError(fmt.Sprintf("store page %s: %v", pageURL, err))
		}
	}

	if !page.Fetched() {
		return nil
	}
	return page
}

// parsePage parses one fetched page, updates its parse status, and persists
// the extracted listings.
func (o *Orchestrator) parsePage(
	ctx context.Context,
	source *domain.SourceConfig,
	adapter scrape.Adapter,
	page *domain.RawPage,
	params domain.CrawlParams,
	result *domain.CrawlResult,
	log logger.Interface,
) ([]*domain.NormalizedListing, error) {
	listings, err := adapter.Parse(ctx, page)
	delta := domain.HealthDelta{ParseAttempts: 1}
	if err != nil {
		delta.ParseFailures = 1
		delta.Error = err.Error()
		result.ParseFailures++
		o.record(ctx, source.ID, delta)
		o.setParseStatus(ctx, page, domain.ParseFailed, err.Error(), params, log)
		log.Warn("Parse failed", "url", page.URL, "error", err)
		return nil, err
	}
	if len(listings) == 0 {
		// A fetched page that yields nothing is a parse failure: the page
		// rendered but the extractors found no listing in it.
		delta.ParseFailures = 1
		delta.Error = errNoListings.Error()
		result.ParseFailures++
		o.record(ctx, source.ID, delta)
		o.setParseStatus(ctx, page, domain.ParseFailed, errNoListings.Error(), params, log)
		log.Warn("Parse extracted no listings", "url", page.URL)
		return nil, errNoListings
	}

	delta.ParseSuccesses = 1
	o.record(ctx, source.ID, delta)
	o.setParseStatus(ctx, page, domain.ParseParsed, "", params, log)

	for _, listing := range listings {
		o.persistListing(ctx, source, listing, params, result, log)
	}
	return listings, nil
}

// persistListing upserts one listing and bumps the listing counters.
func (o *Orchestrator) persistListing(
	ctx context.Context,
	source *domain.SourceConfig,
	listing *domain.NormalizedListing,
	params domain.CrawlParams,
	result *domain.CrawlResult,
	log logger.Interface,
) {
	result.ListingsFound++
	delta := domain.HealthDelta{ListingsFound: 1}

	if params.DryRun {
		o.record(ctx, source.ID, delta)
		return
	}

	outcome, err := o.listings.Upsert(ctx, listing)
	if err != nil {
		log.Error("Failed to upsert listing", "url", listing.SourceURL, "error", err)
		result.AddError(fmt.Sprintf("upsert %s: %v", listing.SourceURL, err))
		o.record(ctx, source.ID, delta)
		return
	}
	if outcome.Created {
		result.ListingsNew++
		delta.ListingsNew = 1
	} else {
		result.ListingsUpdated++
		delta.ListingsUpdated = 1
	}
	if outcome.RelistDetected {
		log.Info("Relist detected", "url", listing.SourceURL)
	}
	o.record(ctx, source.ID, delta)
}

// reconcile flips listings absent from this crawl's active set to delisted.
// Skipped on dry runs and on crawls that found nothing, since an empty crawl
// more often signals a source problem than a mass delisting.
func (o *Orchestrator) reconcile(
	ctx context.Context,
	source *domain.SourceConfig,
	params domain.CrawlParams,
	activeURLs []string,
	result *domain.CrawlResult,
	log logger.Interface,
) error {
	if params.DryRun {
		return nil
	}
	if len(activeURLs) == 0 {
		log.Warn("No active listings seen, skipping delist reconciliation")
		return nil
	}

	delisted, err := o.listings.MarkListingsDelisted(ctx, source.ID, activeURLs)
	if err != nil {
		return fmt.Errorf("delist reconciliation failed: %w", err)
	}
	result.ListingsDelisted = int(delisted)
	if delisted > 0 {
		o.record(ctx, source.ID, domain.HealthDelta{ListingsDelisted: int(delisted)})
		log.Info("Listings delisted", "count", delisted)
	}
	return nil
}

func (o *Orchestrator) setParseStatus(
	ctx context.Context,
	page *domain.RawPage,
	status domain.ParseStatus,
	errorMessage string,
	params domain.CrawlParams,
	log logger.Interface,
) {
	if params.DryRun {
		return
	}
	if err := o.pages.SetParseStatus(ctx, page.ID, status, errorMessage); err != nil && !errors.Is(err, storage.ErrNotFound) {
		log.Error("Failed to update parse status", "page_id", page.ID, "error", err)
	}
}

// record writes a health delta, logging rather than failing the crawl when
// telemetry writes error out.
func (o *Orchestrator) record(ctx context.Context, sourceID string, delta domain.HealthDelta) {
	if err := o.health.RecordMetric(ctx, sourceID, delta); err != nil {
		o.logger.Warn("Failed to record source health", "source", sourceID, "error", err)
	}
}

func (o *Orchestrator) recordError(ctx context.Context, sourceID string, err error) {
	o.record(ctx, sourceID, domain.HealthDelta{Error: err.Error()})
}
