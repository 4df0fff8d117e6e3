package scrape

import (
	"regexp"
	"sort"
	"strings"
)

// Address normalization and location inference shared by every adapter.
// Neighborhood matching is a fixed gazetteer lookup, longest match first,
// with no fuzzy matching.

var (
	addressWhitespace  = regexp.MustCompile(`\s+`)
	addressPunctuation = regexp.MustCompile(`[.,;#!?]+$`)
)

// NormalizeAddress collapses whitespace and strips trailing punctuation.
func NormalizeAddress(raw string) string {
	s := addressWhitespace.ReplaceAllString(strings.TrimSpace(raw), " ")
	s = addressPunctuation.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

// boroughKeywords maps lowercase borough signals to canonical borough names.
var boroughKeywords = map[string]string{
	"manhattan":     "Manhattan",
	"new york, ny":  "Manhattan",
	"brooklyn":      "Brooklyn",
	"bklyn":         "Brooklyn",
	"queens":        "Queens",
	"bronx":         "Bronx",
	"the bronx":     "Bronx",
	"staten island": "Staten Island",
}

// InferBorough scans text for a borough keyword.
func InferBorough(text string) string {
	lower := strings.ToLower(text)
	for keyword, borough := range boroughKeywords {
		if strings.Contains(lower, keyword) {
			return borough
		}
	}
	return ""
}

// neighborhoodGazetteer maps known neighborhood names to their borough.
var neighborhoodGazetteer = map[string]string{
	"upper east side":     "Manhattan",
	"upper west side":     "Manhattan",
	"east village":        "Manhattan",
	"west village":        "Manhattan",
	"greenwich village":   "Manhattan",
	"lower east side":     "Manhattan",
	"chelsea":             "Manhattan",
	"midtown":             "Manhattan",
	"harlem":              "Manhattan",
	"east harlem":         "Manhattan",
	"washington heights":  "Manhattan",
	"inwood":              "Manhattan",
	"tribeca":             "Manhattan",
	"soho":                "Manhattan",
	"nolita":              "Manhattan",
	"chinatown":           "Manhattan",
	"financial district":  "Manhattan",
	"murray hill":         "Manhattan",
	"gramercy":            "Manhattan",
	"kips bay":            "Manhattan",
	"hell's kitchen":      "Manhattan",
	"morningside heights": "Manhattan",

	"williamsburg":       "Brooklyn",
	"greenpoint":         "Brooklyn",
	"bushwick":           "Brooklyn",
	"bed-stuy":           "Brooklyn",
	"bedford-stuyvesant": "Brooklyn",
	"park slope":         "Brooklyn",
	"prospect heights":   "Brooklyn",
	"crown heights":      "Brooklyn",
	"fort greene":        "Brooklyn",
	"clinton hill":       "Brooklyn",
	"dumbo":              "Brooklyn",
	"brooklyn heights":   "Brooklyn",
	"carroll gardens":    "Brooklyn",
	"cobble hill":        "Brooklyn",
	"gowanus":            "Brooklyn",
	"sunset park":        "Brooklyn",
	"bay ridge":          "Brooklyn",
	"flatbush":           "Brooklyn",
	"east flatbush":      "Brooklyn",

	"astoria":          "Queens",
	"long island city": "Queens",
	"sunnyside":        "Queens",
	"woodside":         "Queens",
	"jackson heights":  "Queens",
	"elmhurst":         "Queens",
	"forest hills":     "Queens",
	"flushing":         "Queens",
	"ridgewood":        "Queens",
	"rego park":        "Queens",

	"riverdale":   "Bronx",
	"fordham":     "Bronx",
	"mott haven":  "Bronx",
	"pelham bay":  "Bronx",
	"kingsbridge": "Bronx",

	"st. george":  "Staten Island",
	"tottenville": "Staten Island",
	"great kills": "Staten Island",
}

// gazetteerNames holds neighborhood names sorted by descending length so the
// longest match wins.
var gazetteerNames = func() []string {
	names := make([]string, 0, len(neighborhoodGazetteer))
	for name := range neighborhoodGazetteer {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if len(names[i]) != len(names[j]) {
			return len(names[i]) > len(names[j])
		}
		return names[i] < names[j]
	})
	return names
}()

// InferNeighborhood matches a normalized address against the gazetteer,
// returning the neighborhood and its borough. Longest match wins.
func InferNeighborhood(normalizedAddress string) (neighborhood, borough string) {
	lower := strings.ToLower(normalizedAddress)
	for _, name := range gazetteerNames {
		if strings.Contains(lower, name) {
			return canonicalNeighborhood(name), neighborhoodGazetteer[name]
		}
	}
	return "", ""
}

// canonicalNeighborhood title-cases a gazetteer key for display.
func canonicalNeighborhood(name string) string {
	words := strings.Fields(name)
	for i, w := range words {
		if w == "of" || w == "the" {
			continue
		}
		words[i] = titleWord(w)
	}
	return strings.Join(words, " ")
}

// titleWord uppercases the first letter of each hyphenated segment.
func titleWord(w string) string {
	parts := strings.Split(w, "-")
	for i, p := range parts {
		if p == "" {
			continue
		}
		parts[i] = strings.ToUpper(p[:1]) + p[1:]
	}
	return strings.Join(parts, "-")
}

// LocateAddress normalizes a raw address and fills in neighborhood and
// borough inference in one pass.
func LocateAddress(raw string) (normalized, neighborhood, borough string) {
	normalized = NormalizeAddress(raw)
	neighborhood, borough = InferNeighborhood(normalized)
	if borough == "" {
		borough = InferBorough(normalized)
	}
	return normalized, neighborhood, borough
}
