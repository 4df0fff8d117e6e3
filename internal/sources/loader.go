package sources

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"

	"github.com/rentwatch/rentwatch/internal/domain"
)

// Loader errors.
var (
	// ErrNoSources indicates no sources were found in the registry file.
	ErrNoSources = errors.New("no sources found in registry file")
	// ErrInvalidFormat indicates the registry file shape is not recognized.
	ErrInvalidFormat = errors.New("invalid source registry format")
)

// fileEntry mirrors one source entry in the registry YAML. Durations may be
// written as Go duration strings ("2s") or raw milliseconds.
type fileEntry struct {
	ID       string `mapstructure:"id"`
	Name     string `mapstructure:"name"`
	Enabled  bool   `mapstructure:"enabled"`
	Priority int    `mapstructure:"priority"`
	Type     string `mapstructure:"type"`

	BaseURL    string `mapstructure:"base_url"`
	SearchPath string `mapstructure:"search_path"`
	SitemapURL string `mapstructure:"sitemap_url"`
	APIURL     string `mapstructure:"api_url"`

	DataAvailability map[string]string `mapstructure:"data_availability"`

	Scrape struct {
		Difficulty        string `mapstructure:"difficulty"`
		RequestsPerMinute int    `mapstructure:"requests_per_minute"`
		BaseDelay         any    `mapstructure:"base_delay"`
		Jitter            any    `mapstructure:"jitter"`
		RefreshInterval   any    `mapstructure:"refresh_interval"`
		Parser            string `mapstructure:"parser"`
		RequiresJS        bool   `mapstructure:"requires_js"`
	} `mapstructure:"scrape"`
}

// fileRoot is the top-level shape of the registry file.
type fileRoot struct {
	Sources []map[string]any `yaml:"sources"`
}

// LoadFile reads and decodes the source registry YAML file.
func LoadFile(path string) ([]domain.SourceConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read registry file: %w", err)
	}

	var root fileRoot
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidFormat, err)
	}
	if len(root.Sources) == 0 {
		return nil, ErrNoSources
	}

	configs := make([]domain.SourceConfig, 0, len(root.Sources))
	for i, raw := range root.Sources {
		var entry fileEntry
		if err := mapstructure.Decode(raw, &entry); err != nil {
			return nil, fmt.Errorf("%w: source %d: %w", ErrInvalidFormat, i, err)
		}
		cfg, err := convertEntry(entry)
		if err != nil {
			return nil, fmt.Errorf("source %d (%s): %w", i, entry.ID, err)
		}
		configs = append(configs, cfg)
	}
	return configs, nil
}

// convertEntry maps a decoded file entry onto the domain SourceConfig.
func convertEntry(entry fileEntry) (domain.SourceConfig, error) {
	baseDelay, err := toDuration(entry.Scrape.BaseDelay)
	if err != nil {
		return domain.SourceConfig{}, fmt.Errorf("base_delay: %w", err)
	}
	jitter, err := toDuration(entry.Scrape.Jitter)
	if err != nil {
		return domain.SourceConfig{}, fmt.Errorf("jitter: %w", err)
	}
	refresh, err := toDuration(entry.Scrape.RefreshInterval)
	if err != nil {
		return domain.SourceConfig{}, fmt.Errorf("refresh_interval: %w", err)
	}

	availability := make(map[string]domain.FieldAvailability, len(entry.DataAvailability))
	for field, grade := range entry.DataAvailability {
		availability[field] = domain.FieldAvailability(grade)
	}

	return domain.SourceConfig{
		ID:               entry.ID,
		Name:             entry.Name,
		Enabled:          entry.Enabled,
		Priority:         entry.Priority,
		Type:             domain.SourceType(entry.Type),
		BaseURL:          entry.BaseURL,
		SearchPath:       entry.SearchPath,
		SitemapURL:       entry.SitemapURL,
		APIURL:           entry.APIURL,
		DataAvailability: availability,
		Scrape: domain.ScrapeConfig{
			Difficulty: entry.Scrape.Difficulty,
			RateLimit: domain.RateLimit{
				RequestsPerMinute: entry.Scrape.RequestsPerMinute,
				BaseDelay:         baseDelay,
				Jitter:            jitter,
			},
			RefreshInterval: refresh,
			Parser:          entry.Scrape.Parser,
			RequiresJS:      entry.Scrape.RequiresJS,
		},
	}, nil
}

// toDuration accepts a Go duration string or a raw millisecond count.
func toDuration(v any) (time.Duration, error) {
	switch val := v.(type) {
	case nil:
		return 0, nil
	case string:
		if val == "" {
			return 0, nil
		}
		d, err := time.ParseDuration(val)
		if err != nil {
			return 0, fmt.Errorf("invalid duration %q: %w", val, err)
		}
		return d, nil
	case int:
		return time.Duration(val) * time.Millisecond, nil
	case int64:
		return time.Duration(val) * time.Millisecond, nil
	case float64:
		return time.Duration(val) * time.Millisecond, nil
	default:
		return 0, fmt.Errorf("unsupported duration type %T", v)
	}
}
