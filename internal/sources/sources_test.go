package sources_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rentwatch/rentwatch/internal/domain"
	"github.com/rentwatch/rentwatch/internal/logger"
	"github.com/rentwatch/rentwatch/internal/sources"
)

const registryYAML = `sources:
  - id: craigslist
    name: Craigslist
    enabled: true
    priority: 5
    type: classifieds
    base_url: https://newyork.craigslist.org
    search_path: /search/apa
    scrape:
      difficulty: low
      requests_per_minute: 20
      base_delay: 2s
      jitter: 500
      refresh_interval: 6h
      parser: generic
  - id: streeteasy
    name: StreetEasy
    enabled: true
    priority: 9
    type: marketplace
    base_url: https://streeteasy.com
    scrape:
      requests_per_minute: 6
      base_delay: 10s
      parser: marketplace_browser
      requires_js: true
  - id: oldsite
    name: Old Site
    enabled: false
    priority: 1
    base_url: https://old.example.com
    scrape:
      requests_per_minute: 10
`

func writeRegistry(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sources.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadFile(t *testing.T) {
	t.Parallel()

	configs, err := sources.LoadFile(writeRegistry(t, registryYAML))
	require.NoError(t, err)
	require.Len(t, configs, 3)

	cl := configs[0]
	assert.Equal(t, "craigslist", cl.ID)
	assert.Equal(t, 20, cl.Scrape.RateLimit.RequestsPerMinute)
	assert.Equal(t, 2*time.Second, cl.Scrape.RateLimit.BaseDelay)
	// Numeric durations are milliseconds.
	assert.Equal(t, 500*time.Millisecond, cl.Scrape.RateLimit.Jitter)
	assert.Equal(t, 6*time.Hour, cl.Scrape.RefreshInterval)

	se := configs[1]
	assert.True(t, se.Scrape.RequiresJS)
	assert.Equal(t, "marketplace_browser", se.Scrape.Parser)
}

func TestLoadFile_Empty(t *testing.T) {
	t.Parallel()

	_, err := sources.LoadFile(writeRegistry(t, "sources: []\n"))
	assert.ErrorIs(t, err, sources.ErrNoSources)
}

func TestLoadFile_BadDuration(t *testing.T) {
	t.Parallel()

	bad := `sources:
  - id: x
    name: X
    base_url: https://x.example.com
    scrape:
      requests_per_minute: 1
      base_delay: "not-a-duration"
`
	_, err := sources.LoadFile(writeRegistry(t, bad))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "base_delay")
}

func TestValidate(t *testing.T) {
	t.Parallel()

	valid := domain.SourceConfig{
		ID:      "x",
		Name:    "X",
		BaseURL: "https://x.example.com",
		Scrape: domain.ScrapeConfig{
			RateLimit: domain.RateLimit{RequestsPerMinute: 10},
		},
	}
	require.NoError(t, sources.Validate(&valid))

	tests := []struct {
		name    string
		mutate  func(*domain.SourceConfig)
		wantErr error
	}{
		{"missing id", func(c *domain.SourceConfig) { c.ID = "" }, sources.ErrMissingID},
		{"missing name", func(c *domain.SourceConfig) { c.Name = "" }, sources.ErrMissingName},
		{"missing base url", func(c *domain.SourceConfig) { c.BaseURL = "" }, sources.ErrMissingBaseURL},
		{"zero rate limit", func(c *domain.SourceConfig) { c.Scrape.RateLimit.RequestsPerMinute = 0 }, sources.ErrInvalidRateLimit},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			assert.ErrorIs(t, sources.Validate(&cfg), tt.wantErr)
		})
	}
}

func TestRegistry(t *testing.T) {
	t.Parallel()

	registry, err := sources.LoadRegistry(writeRegistry(t, registryYAML), logger.NewNop())
	require.NoError(t, err)

	// Ordered by descending priority.
	all := registry.All()
	require.Len(t, all, 3)
	assert.Equal(t, "streeteasy", all[0].ID)
	assert.Equal(t, "craigslist", all[1].ID)
	assert.Equal(t, "oldsite", all[2].ID)

	enabled := registry.Enabled()
	require.Len(t, enabled, 2)

	got, err := registry.Get("oldsite")
	require.NoError(t, err)
	assert.False(t, got.Enabled)

	_, err = registry.GetEnabled("oldsite")
	assert.ErrorIs(t, err, sources.ErrSourceDisabled)

	_, err = registry.Get("nope")
	assert.ErrorIs(t, err, sources.ErrSourceNotFound)
}
