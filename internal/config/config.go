// Package config provides YAML-based configuration loading for Motorlot.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Config is the top-level Motorlot configuration, loaded from motorlot.yaml.
type Config struct {
	Dealership     string          `yaml:"dealership"`
	Currency       string          `yaml:"currency"`
	LaborRate      string          `yaml:"labor_rate"` // hourly rate, e.g. "85.00"
	StorageRetries int             `yaml:"storage_retries"`
	DB             DBConfig        `yaml:"db"`
	Notify         NotifyConfig    `yaml:"notify"`
	Reconcile      ReconcileConfig `yaml:"reconcile"`
}

// DBConfig holds connection settings for the dealership database.
type DBConfig struct {
	Driver   string `yaml:"driver"` // "mysql" or "sqlite"
	User     string `yaml:"user"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	Path     string `yaml:"path"` // sqlite only
}

// NotifyConfig controls where transition and ledger events are announced.
type NotifyConfig struct {
	Command string        `yaml:"command"` // shell command template, e.g. "notify-send 'Motorlot' '{{.Summary}}'"
	Slack   SlackConfig   `yaml:"slack"`
	Discord DiscordConfig `yaml:"discord"`
}

// SlackConfig holds Slack delivery settings.
type SlackConfig struct {
	BotToken string `yaml:"bot_token"`
	Channel  string `yaml:"channel"`
}

// DiscordConfig holds Discord delivery settings.
type DiscordConfig struct {
	BotToken string `yaml:"bot_token"`
	Channel  string `yaml:"channel"`
}

// ReconcileConfig controls the scheduled reconciliation job.
type ReconcileConfig struct {
	Cron            string `yaml:"cron"` // 5-field cron expression
	NotifyAnomalies bool   `yaml:"notify_anomalies"`
}

// Load reads a YAML config file from path and returns a validated Config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse unmarshals YAML bytes into a validated Config.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LaborRateDecimal returns the hourly labor rate as a decimal.
// Call only after validation; a malformed rate returns zero.
func (c *Config) LaborRateDecimal() decimal.Decimal {
	d, err := decimal.NewFromString(c.LaborRate)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// applyDefaults fills in derived and default values.
func (c *Config) applyDefaults() {
	if c.Currency == "" {
		c.Currency = "USD"
	}
	if c.LaborRate == "" {
		c.LaborRate = "0"
	}
	if c.StorageRetries == 0 {
		c.StorageRetries = 3
	}
	if c.DB.Driver == "" {
		c.DB.Driver = "sqlite"
	}
	if c.DB.Driver == "sqlite" && c.DB.Path == "" {
		c.DB.Path = "motorlot.db"
	}
	if c.DB.User == "" {
		c.DB.User = "root"
	}
	if c.DB.Host == "" {
		c.DB.Host = "127.0.0.1"
	}
	if c.DB.Port == 0 {
		c.DB.Port = 3306
	}
	if c.DB.Database == "" && c.Dealership != "" {
		c.DB.Database = "motorlot_" + strings.ToLower(strings.ReplaceAll(c.Dealership, " ", "_"))
	}
	if c.Reconcile.Cron == "" {
		c.Reconcile.Cron = "0 6 * * *"
	}
}

// validate checks that all required fields are present and consistent.
func (c *Config) validate() error {
	var errs []string
	if c.Dealership == "" {
		errs = append(errs, "dealership is required")
	}
	if c.DB.Driver != "mysql" && c.DB.Driver != "sqlite" {
		errs = append(errs, fmt.Sprintf("db.driver %q must be mysql or sqlite", c.DB.Driver))
	}
	if c.DB.Driver == "mysql" && c.DB.Database == "" {
		errs = append(errs, "db.database is required for mysql")
	}
	if _, err := decimal.NewFromString(c.LaborRate); err != nil {
		errs = append(errs, fmt.Sprintf("labor_rate %q is not a valid decimal", c.LaborRate))
	}
	if c.Notify.Slack.BotToken != "" && c.Notify.Slack.Channel == "" {
		errs = append(errs, "notify.slack.channel is required when a slack bot token is set")
	}
	if c.Notify.Discord.BotToken != "" && c.Notify.Discord.Channel == "" {
		errs = append(errs, "notify.discord.channel is required when a discord bot token is set")
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
