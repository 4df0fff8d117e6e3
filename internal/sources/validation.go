package sources

import (
	"errors"
	"fmt"
	"net/url"

	"github.com/rentwatch/rentwatch/internal/domain"
)

// Validation errors.
var (
	// ErrMissingID indicates a source without an id.
	ErrMissingID = errors.New("source id is required")
	// ErrMissingName indicates a source without a name.
	ErrMissingName = errors.New("source name is required")
	// ErrMissingBaseURL indicates a source without a base URL.
	ErrMissingBaseURL = errors.New("source base_url is required")
	// ErrInvalidRateLimit indicates a non-positive rate limit.
	ErrInvalidRateLimit = errors.New("requests_per_minute must be positive")
)

// Validate checks a source configuration for structural problems.
func Validate(cfg *domain.SourceConfig) error {
	if cfg.ID == "" {
		return ErrMissingID
	}
	if cfg.Name == "" {
		return ErrMissingName
	}
	if cfg.BaseURL == "" {
		return ErrMissingBaseURL
	}
	if _, err := url.ParseRequestURI(cfg.BaseURL); err != nil {
		return fmt.Errorf("invalid base_url %q: %w", cfg.BaseURL, err)
	}
	if cfg.SitemapURL != "" {
		if _, err := url.ParseRequestURI(cfg.SitemapURL); err != nil {
			return fmt.Errorf("invalid sitemap_url %q: %w", cfg.SitemapURL, err)
		}
	}
	if cfg.Scrape.RateLimit.RequestsPerMinute <= 0 {
		return ErrInvalidRateLimit
	}
	if cfg.Scrape.RateLimit.BaseDelay < 0 || cfg.Scrape.RateLimit.Jitter < 0 {
		return errors.New("rate limit delays must not be negative")
	}
	return nil
}
