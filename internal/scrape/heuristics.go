package scrape

import (
	"regexp"
	"strconv"
	"strings"
)

// Heuristic text parsers shared by every adapter. These operate on free-form
// listing text where structured data is unavailable.

var (
	studioPattern = regexp.MustCompile(`(?i)\bstudio\b`)
	bedsPattern   = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*(?:br|bed|beds|bedroom|bedrooms)\b`)
	bathsPattern  = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*(?:ba|bath|baths|bathroom|bathrooms)\b`)
	sqftPattern   = regexp.MustCompile(`(?i)([\d,]+)\s*(?:sq\.?\s?ft|sqft|square\s+feet|ft2|ft²)`)
	pricePattern  = regexp.MustCompile(`\$\s?([\d,]+(?:\.\d{1,2})?)`)
)

// ParseBeds extracts a bedroom count from free text. "Studio" maps to 0.
// Returns nil when no signal is present.
func ParseBeds(text string) *float64 {
	if studioPattern.MatchString(text) {
		zero := 0.0
		return &zero
	}
	m := bedsPattern.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	n, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return nil
	}
	return &n
}

// ParseBaths extracts a bathroom count from free text, defaulting to 1 when
// the text looks like a listing but carries no bath signal.
func ParseBaths(text string) *float64 {
	m := bathsPattern.FindStringSubmatch(text)
	if m == nil {
		one := 1.0
		return &one
	}
	n, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		one := 1.0
		return &one
	}
	return &n
}

// ParseSqft extracts a square-footage figure from free text.
func ParseSqft(text string) *int {
	m := sqftPattern.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	n, err := strconv.Atoi(strings.ReplaceAll(m[1], ",", ""))
	if err != nil || n <= 0 {
		return nil
	}
	return &n
}

// ParsePrice extracts the first dollar amount from free text. Returns 0 when
// no price is present.
func ParsePrice(text string) float64 {
	m := pricePattern.FindStringSubmatch(text)
	if m == nil {
		return 0
	}
	n, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", ""), 64)
	if err != nil {
		return 0
	}
	return n
}
