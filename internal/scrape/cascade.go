package scrape

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/rentwatch/rentwatch/internal/domain"
)

// The extraction cascade tries independent strategies in reliability order:
// JSON-LD structured data, schema.org microdata, then heuristic CSS pattern
// matching. Each strategy is a try-extract function returning an optional
// result; the first success wins, so structured data is always trusted over
// heuristics.

// extractorFunc attempts to extract a listing from a parsed document.
// ok is false when the strategy found nothing usable.
type extractorFunc func(doc *goquery.Document, pageURL string) (listing *domain.NormalizedListing, ok bool)

// cascade is the ordered strategy list used by the generic adapter.
var cascade = []extractorFunc{
	extractJSONLD,
	extractMicrodata,
	extractHeuristic,
}

// extractListing runs the cascade over a fetched page.
func extractListing(page *domain.RawPage) (*domain.NormalizedListing, bool) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page.Content))
	if err != nil {
		return nil, false
	}
	for _, extract := range cascade {
		if listing, ok := extract(doc, page.URL); ok {
			finishListing(listing, page)
			return listing, true
		}
	}
	return nil, false
}

// finishListing applies the shared normalization steps every strategy shares:
// location inference, image fallback, and identity fields.
func finishListing(listing *domain.NormalizedListing, page *domain.RawPage) {
	listing.SourceID = page.SourceID
	listing.SourceURL = page.URL
	listing.Status = domain.ListingActive

	if listing.Address.Raw != "" {
		normalized, neighborhood, borough := LocateAddress(listing.Address.Raw)
		listing.Address.Normalized = normalized
		if listing.Address.Neighborhood == "" {
			listing.Address.Neighborhood = neighborhood
		}
		if listing.Address.Borough == "" {
			listing.Address.Borough = borough
		}
	}
	if len(listing.ImageURLs) == 0 {
		listing.ImageURLs = page.ImageURLs
	}
}
