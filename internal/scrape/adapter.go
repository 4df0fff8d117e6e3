// Package scrape provides the pluggable source-adapter framework: polite
// fetching, the generic extraction cascade, and the source-specific adapters
// that turn pages from one source into normalized listings.
package scrape

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rentwatch/rentwatch/internal/domain"
	"github.com/rentwatch/rentwatch/internal/logger"
)

// ListParams narrows a discovery call.
type ListParams struct {
	// Page is the zero-based pagination index.
	Page int
	// Borough optionally narrows discovery to one borough.
	Borough string
	// Category optionally narrows discovery to a source-specific category.
	Category string
}

// DiscoveredURL is one listing URL found during discovery.
type DiscoveredURL struct {
	URL string `json:"url"`
	// SourceListingID is the source's own identifier when discoverable.
	SourceListingID string `json:"sourceListingId,omitempty"`
	// Metadata carries discovery-time hints (e.g. sitemap lastmod).
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Adapter is the polymorphic contract every source implements.
//
//   - ListListingURLs is idempotent for given params and returns an empty
//     slice at the end of pagination without erroring.
//   - Fetch never returns an error for ordinary HTTP or network failures;
//     those are encoded on the RawPage as HTTPStatus 0 plus ErrorMessage.
//   - Parse returns zero or more listings from a fetched page; zero is a
//     valid "no data extracted" outcome, not an error.
type Adapter interface {
	// Source returns the configuration this adapter operates on.
	Source() *domain.SourceConfig
	// ListListingURLs enumerates listing URLs for one discovery page.
	ListListingURLs(ctx context.Context, params ListParams) ([]DiscoveredURL, error)
	// Fetch retrieves one page, applying the source's rate-limit policy first.
	Fetch(ctx context.Context, pageURL string) *domain.RawPage
	// Parse extracts normalized listings from a fetched page.
	Parse(ctx context.Context, page *domain.RawPage) ([]*domain.NormalizedListing, error)
}

// Known parser identifiers, assigned per source in the registry file.
const (
	ParserGeneric            = "generic"
	ParserMarketplace        = "marketplace"
	ParserMarketplaceBrowser = "marketplace_browser"
	ParserBatchAPI           = "batch_api"
)

// ErrUnknownParser is returned when a source names a parser with no adapter.
var ErrUnknownParser = errors.New("unknown parser")

// Options carries shared adapter dependencies and tunables.
type Options struct {
	Logger       logger.Interface
	Client       *http.Client
	FetchTimeout time.Duration
	// UserAgent overrides the default user agent when non-empty.
	UserAgent string
}

// ForSource builds the adapter assigned to the given source. An empty parser
// identifier selects the generic extraction cascade.
func ForSource(source *domain.SourceConfig, opts Options) (Adapter, error) {
	parser := source.Scrape.Parser
	if parser == "" {
		parser = ParserGeneric
	}

	switch parser {
	case ParserGeneric:
		return NewGenericAdapter(source, opts), nil
	case ParserMarketplace:
		return NewMarketplaceAdapter(source, opts), nil
	case ParserMarketplaceBrowser:
		return NewBrowserAdapter(source, opts), nil
	case ParserBatchAPI:
		return NewBatchAdapter(source, opts), nil
	default:
		return nil, fmt.Errorf("%w: %q for source %s", ErrUnknownParser, parser, source.ID)
	}
}
