// Package domain provides domain models used across the application.
package domain

import "time"

// SourceType categorizes the kind of site a source is.
type SourceType string

// Known source types.
const (
	SourceTypeClassifieds SourceType = "classifieds"
	SourceTypeMarketplace SourceType = "marketplace"
	SourceTypeBrokerage   SourceType = "brokerage"
	SourceTypeAggregator  SourceType = "aggregator"
	SourceTypeBatchAPI    SourceType = "batch_api"
)

// FieldAvailability grades how reliably a source exposes a field.
// Used only for reporting, never for parsing decisions.
type FieldAvailability string

// Availability grades.
const (
	AvailabilityHigh   FieldAvailability = "high"
	AvailabilityMedium FieldAvailability = "medium"
	AvailabilityLow    FieldAvailability = "low"
	AvailabilityNone   FieldAvailability = "none"
)

// RateLimit describes the politeness policy applied before each request to a source.
type RateLimit struct {
	// RequestsPerMinute is the sustained request budget.
	RequestsPerMinute int `yaml:"requests_per_minute" json:"requestsPerMinute"`
	// BaseDelay is the fixed delay before every request.
	BaseDelay time.Duration `yaml:"base_delay" json:"baseDelay"`
	// Jitter is the upper bound of the uniform random delay added to BaseDelay.
	Jitter time.Duration `yaml:"jitter" json:"jitter"`
}

// ScrapeConfig holds per-source crawl behavior.
type ScrapeConfig struct {
	// Difficulty is a free-form crawl difficulty note (easy, moderate, hard).
	Difficulty string `yaml:"difficulty" json:"difficulty"`
	// RateLimit is the politeness policy for this source.
	RateLimit RateLimit `yaml:"rate_limit" json:"rateLimit"`
	// RefreshInterval is how often a refresh job is scheduled for this source.
	RefreshInterval time.Duration `yaml:"refresh_interval" json:"refreshInterval"`
	// Parser names the adapter used for this source. Empty selects the generic cascade.
	Parser string `yaml:"parser" json:"parser"`
	// RequiresJS indicates the source needs script execution to render listings.
	RequiresJS bool `yaml:"requires_js" json:"requiresJS"`
}

// SourceConfig describes one external listing source. Immutable during a crawl;
// mutated only by administrative configuration.
type SourceConfig struct {
	ID       string     `yaml:"id" json:"id"`
	Name     string     `yaml:"name" json:"name"`
	Enabled  bool       `yaml:"enabled" json:"enabled"`
	Priority int        `yaml:"priority" json:"priority"`
	Type     SourceType `yaml:"type" json:"type"`

	// URL set for discovery.
	BaseURL    string `yaml:"base_url" json:"baseURL"`
	SearchPath string `yaml:"search_path" json:"searchPath"`
	SitemapURL string `yaml:"sitemap_url" json:"sitemapURL"`
	APIURL     string `yaml:"api_url" json:"apiURL"`

	// DataAvailability grades which listing fields this source exposes.
	DataAvailability map[string]FieldAvailability `yaml:"data_availability" json:"dataAvailability"`

	Scrape ScrapeConfig `yaml:"scrape" json:"scrape"`
}

// SearchURL returns the absolute search page URL, or the base URL when no
// search path is configured.
func (s *SourceConfig) SearchURL() string {
	if s.SearchPath == "" {
		return s.BaseURL
	}
	return s.BaseURL + s.SearchPath
}
