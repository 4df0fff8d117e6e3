package scrape

import (
	"context"
	"encoding/json"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/rentwatch/rentwatch/internal/domain"
)

// MarketplaceAdapter is the direct-fetch variant for the JS-heavy marketplace.
// It looks for the site's embedded client-side state (an inline JSON payload
// or application-state script block) before falling back to DOM heuristics;
// most marketplace pages ship their data this way even though the visible DOM
// is rendered client-side.
type MarketplaceAdapter struct {
	*baseAdapter
}

// Ensure MarketplaceAdapter implements Adapter
var _ Adapter = (*MarketplaceAdapter)(nil)

// NewMarketplaceAdapter builds the embedded-state marketplace adapter.
func NewMarketplaceAdapter(source *domain.SourceConfig, opts Options) *MarketplaceAdapter {
	return &MarketplaceAdapter{baseAdapter: newBaseAdapter(source, opts)}
}

// ListListingURLs runs the shared discovery cascade.
func (a *MarketplaceAdapter) ListListingURLs(ctx context.Context, params ListParams) ([]DiscoveredURL, error) {
	return a.discoverListingURLs(ctx, params)
}

// Parse tries embedded state first, then the generic extraction cascade.
func (a *MarketplaceAdapter) Parse(_ context.Context, page *domain.RawPage) ([]*domain.NormalizedListing, error) {
	if !page.Fetched() {
		return nil, nil
	}
	if listing, ok := extractEmbeddedState(page); ok {
		return []*domain.NormalizedListing{listing}, nil
	}
	listing, ok := extractListing(page)
	if !ok {
		return nil, nil
	}
	return []*domain.NormalizedListing{listing}, nil
}

// appStatePatterns match inline application-state assignments in script blocks.
var appStatePatterns = []*regexp.Regexp{
	regexp.MustCompile(`window\.__INITIAL_STATE__\s*=\s*(\{.*?\});?\s*(?:</script>|window\.|$)`),
	regexp.MustCompile(`window\.__APP_DATA__\s*=\s*(\{.*?\});?\s*(?:</script>|window\.|$)`),
	regexp.MustCompile(`window\.dataLayer\s*=\s*(\[.*?\]);`),
}

// embeddedListing is the subset of marketplace state payloads the extractor
// reads; field names follow the common camelCase convention of client bundles.
type embeddedListing struct {
	Title             string   `json:"title"`
	Name              string   `json:"name"`
	Price             any      `json:"price"`
	Bedrooms          any      `json:"bedrooms"`
	Bathrooms         any      `json:"bathrooms"`
	SquareFeet        any      `json:"squareFeet"`
	Address           string   `json:"address"`
	DisplayAddr       string   `json:"displayAddress"`
	Neighborhood      string   `json:"neighborhood"`
	Borough           string   `json:"borough"`
	Zip               string   `json:"zipCode"`
	Latitude          any      `json:"latitude"`
	Longitude         any      `json:"longitude"`
	Images            []string `json:"images"`
	Amenities         []string `json:"amenities"`
	NoFee             *bool    `json:"noFee"`
	NetEffectivePrice any      `json:"netEffectivePrice"`
	MonthsFree        any      `json:"monthsFree"`
	LeaseTerm         any      `json:"leaseTermMonths"`
	BrokerName        string   `json:"brokerName"`
	BrokerPhone       string   `json:"brokerPhone"`
}

// extractEmbeddedState scans script blocks for inline state and pulls the
// listing payload out of it.
func extractEmbeddedState(page *domain.RawPage) (*domain.NormalizedListing, bool) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page.Content))
	if err != nil {
		return nil, false
	}

	// Next.js-style data blocks carry the props tree as pure JSON.
	if raw := doc.Find("script#__NEXT_DATA__").First().Text(); raw != "" {
		if listing, ok := listingFromStateJSON(raw); ok {
			finishMarketplaceListing(listing, page)
			return listing, true
		}
	}

	var found *domain.NormalizedListing
	doc.Find("script").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := s.Text()
		for _, pattern := range appStatePatterns {
			m := pattern.FindStringSubmatch(text)
			if m == nil {
				continue
			}
			if listing, ok := listingFromStateJSON(m[1]); ok {
				found = listing
				return false
			}
		}
		return true
	})

	if found == nil {
		return nil, false
	}
	finishMarketplaceListing(found, page)
	return found, true
}

// listingFromStateJSON digs a listing object out of an arbitrary state tree.
// The payload key varies by bundle version, so the walk is shape-driven: any
// object carrying both a price and an address-like field is taken.
func listingFromStateJSON(raw string) (*domain.NormalizedListing, bool) {
	var tree any
	if err := json.Unmarshal([]byte(raw), &tree); err != nil {
		return nil, false
	}
	node := findListingNode(tree, 0)
	if node == nil {
		return nil, false
	}

	encoded, err := json.Marshal(node)
	if err != nil {
		return nil, false
	}
	var embedded embeddedListing
	if err := json.Unmarshal(encoded, &embedded); err != nil {
		return nil, false
	}
	return convertEmbedded(embedded), true
}

// maxStateDepth bounds the state-tree walk; real payloads nest listings
// within a handful of levels.
const maxStateDepth = 8

// findListingNode walks the state tree for an object that looks like a
// listing payload.
func findListingNode(node any, depth int) map[string]any {
	if depth > maxStateDepth {
		return nil
	}
	switch v := node.(type) {
	case map[string]any:
		_, hasPrice := v["price"]
		_, hasAddr := v["address"]
		_, hasDisplayAddr := v["displayAddress"]
		if hasPrice && (hasAddr || hasDisplayAddr) {
			return v
		}
		for _, child := range v {
			if found := findListingNode(child, depth+1); found != nil {
				return found
			}
		}
	case []any:
		for _, child := range v {
			if found := findListingNode(child, depth+1); found != nil {
				return found
			}
		}
	}
	return nil
}

// convertEmbedded maps an embedded payload onto the normalized shape.
func convertEmbedded(e embeddedListing) *domain.NormalizedListing {
	listing := &domain.NormalizedListing{
		Title: e.Title,
		Price: toFloat(e.Price),
	}
	if listing.Title == "" {
		listing.Title = e.Name
	}
	listing.Beds = toFloatPtr(e.Bedrooms)
	listing.Baths = toFloatPtr(e.Bathrooms)
	if sqft := toFloat(e.SquareFeet); sqft > 0 {
		n := int(sqft)
		listing.Sqft = &n
	}

	raw := e.Address
	if raw == "" {
		raw = e.DisplayAddr
	}
	listing.Address = domain.Address{
		Raw:          raw,
		Neighborhood: e.Neighborhood,
		Borough:      e.Borough,
		Zip:          e.Zip,
		Latitude:     toFloatPtr(e.Latitude),
		Longitude:    toFloatPtr(e.Longitude),
	}

	listing.ImageURLs = e.Images
	listing.Amenities = e.Amenities
	listing.BrokerName = e.BrokerName
	listing.BrokerPhone = e.BrokerPhone

	listing.Extension.NoFee = e.NoFee
	listing.Extension.NetEffectivePrice = toFloatPtr(e.NetEffectivePrice)
	listing.Extension.MonthsFree = toFloatPtr(e.MonthsFree)
	if term := toFloat(e.LeaseTerm); term > 0 {
		months := int(term)
		listing.Extension.LeaseTermMonths = &months
	}
	return listing
}

// finishMarketplaceListing applies the shared post-extraction normalization,
// including the same gazetteer inference the base cascade uses.
func finishMarketplaceListing(listing *domain.NormalizedListing, page *domain.RawPage) {
	finishListing(listing, page)
}
