package scrape

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/rentwatch/rentwatch/internal/domain"
)

// extractMicrodata reads schema.org microdata attributes (itemprop) from the
// document. Used when no JSON-LD rental block is present.
func extractMicrodata(doc *goquery.Document, pageURL string) (*domain.NormalizedListing, bool) {
	scope := doc.Find("[itemtype*='schema.org']").First()
	if scope.Length() == 0 {
		scope = doc.Selection
	}

	listing := &domain.NormalizedListing{SourceURL: pageURL}

	listing.Title = itempropText(scope, "name")
	if price := itempropValue(scope, "price"); price != "" {
		listing.Price = toFloat(price)
	}

	if beds := itempropValue(scope, "numberOfBedrooms"); beds != "" {
		listing.Beds = toFloatPtr(beds)
	}
	if baths := itempropValue(scope, "numberOfBathroomsTotal"); baths != "" {
		listing.Baths = toFloatPtr(baths)
	}
	if size := itempropValue(scope, "floorSize"); size != "" {
		if f := toFloat(size); f > 0 {
			sqft := int(f)
			listing.Sqft = &sqft
		}
	}

	street := itempropText(scope, "streetAddress")
	locality := itempropText(scope, "addressLocality")
	region := itempropText(scope, "addressRegion")
	zip := itempropText(scope, "postalCode")
	if street != "" || locality != "" {
		listing.Address = domain.Address{
			Raw:   strings.Join(filterEmpty(street, locality, region, zip), ", "),
			City:  locality,
			State: region,
			Zip:   zip,
		}
	}

	scope.Find("[itemprop='image']").Each(func(_ int, s *goquery.Selection) {
		if src, ok := s.Attr("src"); ok && src != "" {
			listing.ImageURLs = append(listing.ImageURLs, src)
		} else if content, ok := s.Attr("content"); ok && content != "" {
			listing.ImageURLs = append(listing.ImageURLs, content)
		}
	})

	if listing.Price == 0 && listing.Address.Raw == "" {
		return nil, false
	}
	return listing, true
}

// itempropText returns the trimmed text of the first matching itemprop node.
func itempropText(scope *goquery.Selection, prop string) string {
	return strings.TrimSpace(scope.Find("[itemprop='" + prop + "']").First().Text())
}

// itempropValue prefers the content attribute over node text, per the
// microdata convention for meta-style properties.
func itempropValue(scope *goquery.Selection, prop string) string {
	node := scope.Find("[itemprop='" + prop + "']").First()
	if node.Length() == 0 {
		return ""
	}
	if content, ok := node.Attr("content"); ok && strings.TrimSpace(content) != "" {
		return strings.TrimSpace(content)
	}
	return strings.TrimSpace(node.Text())
}
