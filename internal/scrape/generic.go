package scrape

import (
	"context"

	"github.com/rentwatch/rentwatch/internal/domain"
)

// GenericAdapter serves sources with no bespoke parser. Discovery and parsing
// both run the strategy cascades defined in discovery.go and cascade.go.
type GenericAdapter struct {
	*baseAdapter
}

// Ensure GenericAdapter implements Adapter
var _ Adapter = (*GenericAdapter)(nil)

// NewGenericAdapter builds a cascade-driven adapter for one source.
func NewGenericAdapter(source *domain.SourceConfig, opts Options) *GenericAdapter {
	return &GenericAdapter{baseAdapter: newBaseAdapter(source, opts)}
}

// ListListingURLs runs the discovery cascade for one page of results.
func (a *GenericAdapter) ListListingURLs(ctx context.Context, params ListParams) ([]DiscoveredURL, error) {
	return a.discoverListingURLs(ctx, params)
}

// Parse runs the extraction cascade over one fetched page. Zero listings is
// a valid outcome for pages that carry no extractable data.
func (a *GenericAdapter) Parse(_ context.Context, page *domain.RawPage) ([]*domain.NormalizedListing, error) {
	if !page.Fetched() {
		return nil, nil
	}
	listing, ok := extractListing(page)
	if !ok {
		return nil, nil
	}
	return []*domain.NormalizedListing{listing}, nil
}
