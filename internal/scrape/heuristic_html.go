package scrape

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/rentwatch/rentwatch/internal/domain"
)

// Heuristic CSS pattern matching over common listing markup conventions.
// Last resort of the cascade: low precision, but many brokerage sites carry
// no structured data at all.

// priceSelectors are tried in order for the listing price block.
var priceSelectors = []string{
	"[class*='price']",
	"[data-price]",
	".listing-price",
	"[id*='price']",
}

// detailSelectors locate the beds/baths/sqft text blob.
var detailSelectors = []string{
	"[class*='detail']",
	"[class*='bed']",
	"[class*='info']",
	"[class*='spec']",
	"[class*='stats']",
}

// addressSelectors locate the address line.
var addressSelectors = []string{
	"[class*='address']",
	"[itemprop='address']",
	"address",
	"h1",
}

// amenitySelectors locate amenity lists or link groups.
var amenitySelectors = []string{
	"[class*='amenit'] li",
	"[class*='amenit'] a",
	"[class*='feature'] li",
}

// gallerySelectors locate listing image galleries.
var gallerySelectors = []string{
	"[class*='gallery'] img",
	"[class*='carousel'] img",
	"[class*='photo'] img",
}

// extractHeuristic scrapes listing fields from common class-name patterns.
func extractHeuristic(doc *goquery.Document, pageURL string) (*domain.NormalizedListing, bool) {
	listing := &domain.NormalizedListing{SourceURL: pageURL}

	for _, sel := range priceSelectors {
		if text := firstText(doc, sel); text != "" {
			if price := ParsePrice(text); price > 0 {
				listing.Price = price
				break
			}
		}
	}

	detailText := ""
	for _, sel := range detailSelectors {
		if text := firstText(doc, sel); text != "" {
			detailText += " " + text
		}
	}
	if detailText != "" {
		listing.Beds = ParseBeds(detailText)
		listing.Baths = ParseBaths(detailText)
		listing.Sqft = ParseSqft(detailText)
	}

	for _, sel := range addressSelectors {
		if text := firstText(doc, sel); text != "" && looksLikeAddress(text) {
			listing.Address.Raw = text
			break
		}
	}

	for _, sel := range amenitySelectors {
		doc.Find(sel).Each(func(_ int, s *goquery.Selection) {
			amenity := strings.TrimSpace(s.Text())
			if amenity != "" && len(amenity) < 60 {
				listing.Amenities = append(listing.Amenities, amenity)
			}
		})
		if len(listing.Amenities) > 0 {
			break
		}
	}

	for _, sel := range gallerySelectors {
		doc.Find(sel).Each(func(_ int, s *goquery.Selection) {
			if src, ok := s.Attr("src"); ok && src != "" {
				listing.ImageURLs = append(listing.ImageURLs, src)
			}
		})
		if len(listing.ImageURLs) > 0 {
			break
		}
	}

	if listing.Title == "" {
		listing.Title = firstText(doc, "h1")
	}

	// A price is the minimum signal for a usable heuristic extraction.
	if listing.Price == 0 {
		return nil, false
	}
	return listing, true
}

// firstText returns the trimmed text of the first node matching the selector.
func firstText(doc *goquery.Document, selector string) string {
	return strings.TrimSpace(doc.Find(selector).First().Text())
}

// looksLikeAddress filters out obvious non-address heading text.
func looksLikeAddress(text string) bool {
	if len(text) < 5 || len(text) > 200 {
		return false
	}
	lower := strings.ToLower(text)
	for _, marker := range []string{"street", "st", "ave", "avenue", "road", "rd", "place", "pl", "blvd", "broadway"} {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return strings.ContainsAny(text, "0123456789")
}
