// Package config provides configuration management for the rentwatch ingestion
// service. It handles loading, validation, and access to configuration values
// from YAML files and environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Interface defines the interface for configuration management.
type Interface interface {
	// GetAppConfig returns the application configuration.
	GetAppConfig() *AppConfig
	// GetServerConfig returns the HTTP server configuration.
	GetServerConfig() *ServerConfig
	// GetDatabaseConfig returns the MongoDB configuration.
	GetDatabaseConfig() *DatabaseConfig
	// GetCrawlConfig returns crawl defaults.
	GetCrawlConfig() *CrawlConfig
	// Validate validates the configuration.
	Validate() error
}

// AppConfig represents application-level settings.
type AppConfig struct {
	Name        string `yaml:"name" mapstructure:"name"`
	Environment string `yaml:"environment" mapstructure:"environment"`
	LogLevel    string `yaml:"log_level" mapstructure:"log_level"`
	LogEncoding string `yaml:"log_encoding" mapstructure:"log_encoding"`
	Debug       bool   `yaml:"debug" mapstructure:"debug"`
}

// ServerConfig represents HTTP server settings.
type ServerConfig struct {
	Address      string        `yaml:"address" mapstructure:"address"`
	ReadTimeout  time.Duration `yaml:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout" mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout" mapstructure:"idle_timeout"`
}

// DatabaseConfig represents MongoDB settings.
type DatabaseConfig struct {
	URI            string        `yaml:"uri" mapstructure:"uri"`
	Database       string        `yaml:"database" mapstructure:"database"`
	ConnectTimeout time.Duration `yaml:"connect_timeout" mapstructure:"connect_timeout"`
	QueryTimeout   time.Duration `yaml:"query_timeout" mapstructure:"query_timeout"`
}

// CrawlConfig represents crawl defaults applied when a job or request does not
// override them.
type CrawlConfig struct {
	// SourcesFile is the path to the source registry YAML file.
	SourcesFile string `yaml:"sources_file" mapstructure:"sources_file"`
	// MaxPages bounds pagination per crawl.
	MaxPages int `yaml:"max_pages" mapstructure:"max_pages"`
	// MaxListings bounds listings fetched per crawl.
	MaxListings int `yaml:"max_listings" mapstructure:"max_listings"`
	// FetchTimeout bounds each page fetch.
	FetchTimeout time.Duration `yaml:"fetch_timeout" mapstructure:"fetch_timeout"`
	// UserAgent is the fallback user agent when a source has none configured.
	UserAgent string `yaml:"user_agent" mapstructure:"user_agent"`
	// SchedulerSpec is the cron spec driving refresh-job scheduling.
	SchedulerSpec string `yaml:"scheduler_spec" mapstructure:"scheduler_spec"`
}

// Defaults.
const (
	defaultServerAddress = ":8080"
	defaultServerTimeout = 30 * time.Second
	defaultIdleTimeout   = 60 * time.Second

	defaultMongoURI       = "mongodb://localhost:27017"
	defaultDatabase       = "rentwatch"
	defaultConnectTimeout = 10 * time.Second
	defaultQueryTimeout   = 30 * time.Second

	defaultSourcesFile  = "sources.yaml"
	defaultMaxPages     = 10
	defaultMaxListings  = 200
	defaultFetchTimeout = 30 * time.Second
	// defaultSchedulerSpec checks refresh eligibility every 15 minutes.
	defaultSchedulerSpec = "*/15 * * * *"
)

// Config represents the application configuration.
type Config struct {
	App      AppConfig      `yaml:"app" mapstructure:"app"`
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
	Database DatabaseConfig `yaml:"database" mapstructure:"database"`
	Crawl    CrawlConfig    `yaml:"crawl" mapstructure:"crawl"`
}

// Ensure Config implements Interface
var _ Interface = (*Config)(nil)

// GetAppConfig returns the application configuration.
func (c *Config) GetAppConfig() *AppConfig { return &c.App }

// GetServerConfig returns the HTTP server configuration.
func (c *Config) GetServerConfig() *ServerConfig { return &c.Server }

// GetDatabaseConfig returns the MongoDB configuration.
func (c *Config) GetDatabaseConfig() *DatabaseConfig { return &c.Database }

// GetCrawlConfig returns crawl defaults.
func (c *Config) GetCrawlConfig() *CrawlConfig { return &c.Crawl }

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Database.URI == "" {
		return errors.New("database uri must be specified")
	}
	if c.Database.Database == "" {
		return errors.New("database name must be specified")
	}
	if c.Server.Address == "" {
		return errors.New("server address must be specified")
	}
	if c.Crawl.SourcesFile == "" {
		return errors.New("sources file must be specified")
	}
	return nil
}

// Load initializes Viper, reads the config file and environment, and returns
// the resulting configuration. The .env file and config file are optional.
func Load(cfgFile string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("RENTWATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.rentwatch")
		v.AddConfigPath("/etc/rentwatch")
	}

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// setDefaults registers default values for all configuration keys.
func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "rentwatch")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.log_level", "info")
	v.SetDefault("app.log_encoding", "console")

	v.SetDefault("server.address", defaultServerAddress)
	v.SetDefault("server.read_timeout", defaultServerTimeout)
	v.SetDefault("server.write_timeout", defaultServerTimeout)
	v.SetDefault("server.idle_timeout", defaultIdleTimeout)

	v.SetDefault("database.uri", defaultMongoURI)
	v.SetDefault("database.database", defaultDatabase)
	v.SetDefault("database.connect_timeout", defaultConnectTimeout)
	v.SetDefault("database.query_timeout", defaultQueryTimeout)

	v.SetDefault("crawl.sources_file", defaultSourcesFile)
	v.SetDefault("crawl.max_pages", defaultMaxPages)
	v.SetDefault("crawl.max_listings", defaultMaxListings)
	v.SetDefault("crawl.fetch_timeout", defaultFetchTimeout)
	v.SetDefault("crawl.user_agent", "")
	v.SetDefault("crawl.scheduler_spec", defaultSchedulerSpec)
}
