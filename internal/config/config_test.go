package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rentwatch/rentwatch/internal/config"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)

	assert.Equal(t, "rentwatch", cfg.App.Name)
	assert.Equal(t, "development", cfg.App.Environment)
	assert.Equal(t, ":8080", cfg.Server.Address)
	assert.Equal(t, "mongodb://localhost:27017", cfg.Database.URI)
	assert.Equal(t, "rentwatch", cfg.Database.Database)
	assert.Equal(t, "sources.yaml", cfg.Crawl.SourcesFile)
	assert.Equal(t, 10, cfg.Crawl.MaxPages)
	assert.Equal(t, 200, cfg.Crawl.MaxListings)
	assert.Equal(t, 30*time.Second, cfg.Crawl.FetchTimeout)
	assert.Equal(t, "*/15 * * * *", cfg.Crawl.SchedulerSpec)

	require.NoError(t, cfg.Validate())
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
app:
  environment: production
  log_level: warn
server:
  address: ":9090"
  read_timeout: 15s
database:
  uri: mongodb://db.internal:27017
  database: rentals
crawl:
  sources_file: /etc/rentwatch/sources.yaml
  max_pages: 3
  scheduler_spec: "0 * * * *"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, "production", cfg.App.Environment)
	assert.Equal(t, "warn", cfg.App.LogLevel)
	assert.Equal(t, ":9090", cfg.Server.Address)
	assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, "mongodb://db.internal:27017", cfg.Database.URI)
	assert.Equal(t, "rentals", cfg.Database.Database)
	assert.Equal(t, "/etc/rentwatch/sources.yaml", cfg.Crawl.SourcesFile)
	assert.Equal(t, 3, cfg.Crawl.MaxPages)
	assert.Equal(t, "0 * * * *", cfg.Crawl.SchedulerSpec)

	// Unset keys keep their defaults.
	assert.Equal(t, 200, cfg.Crawl.MaxListings)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("RENTWATCH_DATABASE_URI", "mongodb://env-host:27017")
	t.Setenv("RENTWATCH_SERVER_ADDRESS", ":7070")

	cfg, err := config.Load("")
	require.NoError(t, err)

	assert.Equal(t, "mongodb://env-host:27017", cfg.Database.URI)
	assert.Equal(t, ":7070", cfg.Server.Address)
}

func TestLoad_BadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("app: [not a map"), 0o600))

	_, err := config.Load(path)
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	base := func() *config.Config {
		cfg, err := config.Load("")
		require.NoError(t, err)
		return cfg
	}

	cfg := base()
	cfg.Database.URI = ""
	assert.ErrorContains(t, cfg.Validate(), "database uri")

	cfg = base()
	cfg.Database.Database = ""
	assert.ErrorContains(t, cfg.Validate(), "database name")

	cfg = base()
	cfg.Server.Address = ""
	assert.ErrorContains(t, cfg.Validate(), "server address")

	cfg = base()
	cfg.Crawl.SourcesFile = ""
	assert.ErrorContains(t, cfg.Validate(), "sources file")
}
