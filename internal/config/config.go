// Package config provides YAML-based configuration loading for the
// storefront daemon. Secrets (bot tokens, DB passwords) come from the
// environment, optionally seeded from a .env file, never from the YAML.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the top-level storefront configuration, loaded from config.yaml.
type Config struct {
	Shop      string          `yaml:"shop"` // shop name, used in logs
	Source    SourceConfig    `yaml:"source"`
	Catalog   CatalogConfig   `yaml:"catalog"`
	Discord   DiscordConfig   `yaml:"discord"`
	Slack     SlackConfig     `yaml:"slack"`
	DB        DBConfig        `yaml:"db"`
	Dashboard DashboardConfig `yaml:"dashboard"`
}

// SourceConfig holds Google Sheets settings for the product source.
type SourceConfig struct {
	SpreadsheetID   string `yaml:"spreadsheet_id"`
	ReadRange       string `yaml:"read_range"`
	CredentialsFile string `yaml:"credentials_file"` // service-account JSON
	TTLSeconds      int    `yaml:"ttl_seconds"`      // source-side cache
}

// CatalogConfig holds index rebuild settings.
type CatalogConfig struct {
	TTLSeconds  int    `yaml:"ttl_seconds"` // index staleness window
	RefreshCron string `yaml:"refresh_cron"`
}

// DiscordConfig enables the Discord adapter when a token is present.
type DiscordConfig struct {
	Token          string `yaml:"-"` // DISCORD_BOT_TOKEN
	ChannelID      string `yaml:"channel_id"`
	ManagerChannel string `yaml:"manager_channel"`
}

// SlackConfig enables the Slack adapter when both tokens are present.
type SlackConfig struct {
	BotToken       string `yaml:"-"` // SLACK_BOT_TOKEN
	AppToken       string `yaml:"-"` // SLACK_APP_TOKEN
	ChannelID      string `yaml:"channel_id"`
	ManagerChannel string `yaml:"manager_channel"`
}

// DBConfig holds order-log storage settings. Driver is "sqlite" or "mysql".
type DBConfig struct {
	Driver   string `yaml:"driver"`
	Path     string `yaml:"path"` // sqlite file path
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	User     string `yaml:"user"`
	Password string `yaml:"-"` // MYSQL_PASSWORD
}

// DashboardConfig holds the operator API settings.
type DashboardConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// Load reads a YAML config file from path, overlays environment secrets,
// and returns a validated Config. A .env file next to the process (if any)
// is loaded first; existing environment variables win over .env entries.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("config: load .env: %w", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse unmarshals YAML bytes into a validated Config with environment
// secrets applied.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	cfg.applyEnv()
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// SourceTTL returns the source cache TTL as a duration.
func (c *Config) SourceTTL() time.Duration {
	return time.Duration(c.Source.TTLSeconds) * time.Second
}

// CatalogTTL returns the index staleness window as a duration.
func (c *Config) CatalogTTL() time.Duration {
	return time.Duration(c.Catalog.TTLSeconds) * time.Second
}

// applyEnv pulls secrets from the environment.
func (c *Config) applyEnv() {
	c.Discord.Token = os.Getenv("DISCORD_BOT_TOKEN")
	c.Slack.BotToken = os.Getenv("SLACK_BOT_TOKEN")
	c.Slack.AppToken = os.Getenv("SLACK_APP_TOKEN")
	c.DB.Password = os.Getenv("MYSQL_PASSWORD")
	if v := os.Getenv("GOOGLE_CREDENTIALS_FILE"); v != "" {
		c.Source.CredentialsFile = v
	}
}

// applyDefaults fills in derived and default values.
func (c *Config) applyDefaults() {
	if c.Shop == "" {
		c.Shop = "storefront"
	}
	if c.Source.ReadRange == "" {
		c.Source.ReadRange = "A1:Z"
	}
	if c.Source.TTLSeconds == 0 {
		c.Source.TTLSeconds = 300
	}
	if c.Catalog.TTLSeconds == 0 {
		c.Catalog.TTLSeconds = 600
	}
	if c.Catalog.RefreshCron == "" {
		c.Catalog.RefreshCron = "0 * * * *"
	}
	if c.DB.Driver == "" {
		c.DB.Driver = "sqlite"
	}
	if c.DB.Driver == "sqlite" && c.DB.Path == "" {
		c.DB.Path = "storefront.db"
	}
	if c.DB.Driver == "mysql" {
		if c.DB.Host == "" {
			c.DB.Host = "127.0.0.1"
		}
		if c.DB.Port == 0 {
			c.DB.Port = 3306
		}
	}
	if c.Dashboard.Port == 0 {
		c.Dashboard.Port = 8080
	}
}

// validate checks that all required fields are present and consistent.
func (c *Config) validate() error {
	var errs []string
	if c.Source.SpreadsheetID == "" {
		errs = append(errs, "source.spreadsheet_id is required")
	}
	if c.Source.CredentialsFile == "" {
		errs = append(errs, "source.credentials_file is required (or GOOGLE_CREDENTIALS_FILE)")
	}
	if c.Discord.Token == "" && c.Slack.BotToken == "" {
		errs = append(errs, "at least one platform token is required (DISCORD_BOT_TOKEN or SLACK_BOT_TOKEN)")
	}
	if c.Slack.BotToken != "" && c.Slack.AppToken == "" {
		errs = append(errs, "SLACK_APP_TOKEN is required with SLACK_BOT_TOKEN")
	}
	switch c.DB.Driver {
	case "sqlite", "mysql":
	default:
		errs = append(errs, fmt.Sprintf("db.driver %q is not supported (sqlite, mysql)", c.DB.Driver))
	}
	if c.DB.Driver == "mysql" {
		if c.DB.Database == "" {
			errs = append(errs, "db.database is required for mysql")
		}
		if c.DB.User == "" {
			errs = append(errs, "db.user is required for mysql")
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
