package scrape

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/rentwatch/rentwatch/internal/domain"
)

// rentalTypes are JSON-LD @type values that describe a rental listing.
var rentalTypes = map[string]bool{
	"Apartment":             true,
	"House":                 true,
	"SingleFamilyResidence": true,
	"Residence":             true,
	"RealEstateListing":     true,
	"Offer":                 true,
	"Product":               true,
	"Accommodation":         true,
}

// jsonLDDocument is the subset of schema.org fields the extractor reads.
// Numeric fields arrive as strings or numbers depending on the site.
type jsonLDDocument struct {
	Type        any    `json:"@type"`
	Name        string `json:"name"`
	Description string `json:"description"`
	URL         string `json:"url"`
	Image       any    `json:"image"`

	NumberOfRooms          any `json:"numberOfRooms"`
	NumberOfBedrooms       any `json:"numberOfBedrooms"`
	NumberOfBathroomsTotal any `json:"numberOfBathroomsTotal"`
	FloorSize              *struct {
		Value any `json:"value"`
	} `json:"floorSize"`

	Address *struct {
		Type            string `json:"@type"`
		StreetAddress   string `json:"streetAddress"`
		AddressLocality string `json:"addressLocality"`
		AddressRegion   string `json:"addressRegion"`
		PostalCode      string `json:"postalCode"`
	} `json:"address"`

	Geo *struct {
		Latitude  any `json:"latitude"`
		Longitude any `json:"longitude"`
	} `json:"geo"`

	Offers *struct {
		Price         any    `json:"price"`
		PriceCurrency string `json:"priceCurrency"`
	} `json:"offers"`
	Price any `json:"price"`

	AmenityFeature []struct {
		Name string `json:"name"`
	} `json:"amenityFeature"`
}

// extractJSONLD reads application/ld+json script blocks and converts the
// first rental-like document into a listing.
func extractJSONLD(doc *goquery.Document, pageURL string) (*domain.NormalizedListing, bool) {
	var listing *domain.NormalizedListing

	doc.Find("script[type='application/ld+json']").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		for _, ld := range decodeJSONLD(s.Text()) {
			if !isRentalType(ld.Type) {
				continue
			}
			if candidate := convertJSONLD(ld, pageURL); candidate != nil {
				listing = candidate
				return false
			}
		}
		return true
	})

	return listing, listing != nil
}

// decodeJSONLD parses one script block, tolerating both single documents and
// arrays (including @graph containers).
func decodeJSONLD(raw string) []jsonLDDocument {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}

	var single jsonLDDocument
	if err := json.Unmarshal([]byte(raw), &single); err == nil && single.Type != nil {
		return []jsonLDDocument{single}
	}

	var list []jsonLDDocument
	if err := json.Unmarshal([]byte(raw), &list); err == nil {
		return list
	}

	var graph struct {
		Graph []jsonLDDocument `json:"@graph"`
	}
	if err := json.Unmarshal([]byte(raw), &graph); err == nil {
		return graph.Graph
	}
	return nil
}

// isRentalType matches @type against the rental-like type set; @type may be
// a string or a list of strings.
func isRentalType(t any) bool {
	switch v := t.(type) {
	case string:
		return rentalTypes[v]
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok && rentalTypes[s] {
				return true
			}
		}
	}
	return false
}

// convertJSONLD maps a rental-like JSON-LD document onto a listing. Returns
// nil when the document carries neither price nor address, which usually
// means a decorative schema block.
func convertJSONLD(ld jsonLDDocument, pageURL string) *domain.NormalizedListing {
	listing := &domain.NormalizedListing{
		Title:     ld.Name,
		SourceURL: pageURL,
	}

	if ld.Offers != nil {
		listing.Price = toFloat(ld.Offers.Price)
	}
	if listing.Price == 0 {
		listing.Price = toFloat(ld.Price)
	}

	if beds := toFloatPtr(ld.NumberOfBedrooms); beds != nil {
		listing.Beds = beds
	} else if rooms := toFloatPtr(ld.NumberOfRooms); rooms != nil {
		listing.Beds = rooms
	}
	listing.Baths = toFloatPtr(ld.NumberOfBathroomsTotal)
	if ld.FloorSize != nil {
		if size := toFloatPtr(ld.FloorSize.Value); size != nil {
			sqft := int(*size)
			listing.Sqft = &sqft
		}
	}

	if ld.Address != nil {
		listing.Address = domain.Address{
			Raw: strings.TrimSpace(strings.Join(filterEmpty(
				ld.Address.StreetAddress,
				ld.Address.AddressLocality,
				ld.Address.AddressRegion,
				ld.Address.PostalCode,
			), ", ")),
			City:  ld.Address.AddressLocality,
			State: ld.Address.AddressRegion,
			Zip:   ld.Address.PostalCode,
		}
	}
	if ld.Geo != nil {
		listing.Address.Latitude = toFloatPtr(ld.Geo.Latitude)
		listing.Address.Longitude = toFloatPtr(ld.Geo.Longitude)
	}

	listing.ImageURLs = imageList(ld.Image)
	for _, amenity := range ld.AmenityFeature {
		if amenity.Name != "" {
			listing.Amenities = append(listing.Amenities, amenity.Name)
		}
	}

	if listing.Price == 0 && listing.Address.Raw == "" {
		return nil
	}
	return listing
}

// imageList flattens the schema.org image field, which may be a string or a
// list of strings or ImageObject maps.
func imageList(v any) []string {
	switch img := v.(type) {
	case string:
		if img == "" {
			return nil
		}
		return []string{img}
	case []any:
		var urls []string
		for _, item := range img {
			switch x := item.(type) {
			case string:
				urls = append(urls, x)
			case map[string]any:
				if u, ok := x["url"].(string); ok {
					urls = append(urls, u)
				}
			}
		}
		return urls
	case map[string]any:
		if u, ok := img["url"].(string); ok {
			return []string{u}
		}
	}
	return nil
}

// toFloat coerces a JSON number or numeric string to float64.
func toFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case string:
		cleaned := strings.ReplaceAll(strings.TrimPrefix(strings.TrimSpace(n), "$"), ",", "")
		f, err := strconv.ParseFloat(cleaned, 64)
		if err != nil {
			return 0
		}
		return f
	}
	return 0
}

// toFloatPtr is toFloat returning nil for missing or non-numeric values.
func toFloatPtr(v any) *float64 {
	if v == nil {
		return nil
	}
	f := toFloat(v)
	if f == 0 {
		if s, ok := v.(string); !ok || strings.TrimSpace(s) != "0" {
			if n, isNum := v.(float64); !isNum || n != 0 {
				return nil
			}
		}
	}
	return &f
}

// filterEmpty drops empty strings from a field list.
func filterEmpty(fields ...string) []string {
	out := fields[:0]
	for _, f := range fields {
		if strings.TrimSpace(f) != "" {
			out = append(out, f)
		}
	}
	return out
}
