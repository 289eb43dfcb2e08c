// Package config provides YAML-based configuration loading for Switchboard.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level Switchboard configuration, loaded from
// switchboard.yaml.
type Config struct {
	CoordsFile  string          `yaml:"coords_file"`
	MailboxRoot string          `yaml:"mailbox_root"`
	Ledger      LedgerConfig    `yaml:"ledger"`
	Router      RouterConfig    `yaml:"router"`
	Driver      DriverConfig    `yaml:"driver"`
	Watchdog    WatchdogConfig  `yaml:"watchdog"`
	Relay       RelayConfig     `yaml:"relay"`
	Dashboard   DashboardConfig `yaml:"dashboard"`
}

// LedgerConfig selects and configures the ledger database backend.
// "sqlite" (default) keeps the ledger in a local file; "mysql" points at a
// shared MySQL/Dolt server for multi-host deployments.
type LedgerConfig struct {
	Driver   string `yaml:"driver"`
	Path     string `yaml:"path"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
}

// RouterConfig holds retry and dedup policy for the message router.
type RouterConfig struct {
	MaxRetries     int `yaml:"max_retries"`
	BaseBackoffMs  int `yaml:"base_backoff_ms"`
	MaxBackoffMs   int `yaml:"max_backoff_ms"`
	DedupWindowSec int `yaml:"dedup_window_sec"`
	LaneBuffer     int `yaml:"lane_buffer"`
}

// BaseBackoff returns the configured base backoff as a duration.
func (r RouterConfig) BaseBackoff() time.Duration {
	return time.Duration(r.BaseBackoffMs) * time.Millisecond
}

// MaxBackoff returns the configured backoff cap as a duration.
func (r RouterConfig) MaxBackoff() time.Duration {
	return time.Duration(r.MaxBackoffMs) * time.Millisecond
}

// DedupWindow returns the configured dedup window as a duration.
func (r RouterConfig) DedupWindow() time.Duration {
	return time.Duration(r.DedupWindowSec) * time.Second
}

// DriverConfig configures the simulated-input delivery driver.
type DriverConfig struct {
	Tool        string `yaml:"tool"`
	TypeDelayMs int    `yaml:"type_delay_ms"`
	TimeoutSec  int    `yaml:"timeout_sec"`
}

// TypeDelay returns the inter-keystroke delay as a duration.
func (d DriverConfig) TypeDelay() time.Duration {
	return time.Duration(d.TypeDelayMs) * time.Millisecond
}

// Timeout returns the per-delivery timeout as a duration.
func (d DriverConfig) Timeout() time.Duration {
	return time.Duration(d.TimeoutSec) * time.Second
}

// WatchdogConfig configures the health-monitoring daemon.
type WatchdogConfig struct {
	PollIntervalSec   int    `yaml:"poll_interval_sec"`
	StaleThresholdSec int    `yaml:"stale_threshold_sec"`
	DigestCron        string `yaml:"digest_cron"`
}

// PollInterval returns the daemon poll interval as a duration.
func (w WatchdogConfig) PollInterval() time.Duration {
	return time.Duration(w.PollIntervalSec) * time.Second
}

// StaleThreshold returns the agent staleness threshold as a duration.
func (w WatchdogConfig) StaleThreshold() time.Duration {
	return time.Duration(w.StaleThresholdSec) * time.Second
}

// RelayConfig selects the chat platform for escalation events. Platform may
// be "discord", "slack", or "none".
type RelayConfig struct {
	Platform string        `yaml:"platform"`
	Discord  DiscordConfig `yaml:"discord"`
	Slack    SlackConfig   `yaml:"slack"`
}

// DiscordConfig holds Discord relay credentials.
type DiscordConfig struct {
	BotToken  string `yaml:"bot_token"`
	ChannelID string `yaml:"channel_id"`
}

// SlackConfig holds Slack relay credentials.
type SlackConfig struct {
	BotToken  string `yaml:"bot_token"`
	ChannelID string `yaml:"channel_id"`
}

// DashboardConfig configures the HTTP API server.
type DashboardConfig struct {
	Port int `yaml:"port"`
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

// applyDefaults fills in derived and default values.
func (c *Config) applyDefaults() {
	if c.CoordsFile == "" {
		c.CoordsFile = "agent_coords.json"
	}
	if c.MailboxRoot == "" {
		c.MailboxRoot = "mailboxes"
	}
	if c.Ledger.Driver == "" {
		c.Ledger.Driver = "sqlite"
	}
	if c.Ledger.Path == "" {
		c.Ledger.Path = "switchboard.db"
	}
	if c.Ledger.Host == "" {
		c.Ledger.Host = "127.0.0.1"
	}
	if c.Ledger.Port == 0 {
		c.Ledger.Port = 3306
	}
	if c.Ledger.Database == "" {
		c.Ledger.Database = "switchboard"
	}
	if c.Router.MaxRetries == 0 {
		c.Router.MaxRetries = 3
	}
	if c.Router.BaseBackoffMs == 0 {
		c.Router.BaseBackoffMs = 500
	}
	if c.Router.MaxBackoffMs == 0 {
		c.Router.MaxBackoffMs = 30000
	}
	if c.Router.DedupWindowSec == 0 {
		c.Router.DedupWindowSec = 300
	}
	if c.Router.LaneBuffer == 0 {
		c.Router.LaneBuffer = 32
	}
	if c.Driver.Tool == "" {
		c.Driver.Tool = "xdotool"
	}
	if c.Driver.TypeDelayMs == 0 {
		c.Driver.TypeDelayMs = 12
	}
	if c.Driver.TimeoutSec == 0 {
		c.Driver.TimeoutSec = 10
	}
	if c.Watchdog.PollIntervalSec == 0 {
		c.Watchdog.PollIntervalSec = 30
	}
	if c.Watchdog.StaleThresholdSec == 0 {
		c.Watchdog.StaleThresholdSec = 300
	}
	if c.Relay.Platform == "" {
		c.Relay.Platform = "none"
	}
	if c.Dashboard.Port == 0 {
		c.Dashboard.Port = 8080
	}
}

// validate checks that all required fields are present and consistent.
func (c *Config) validate() error {
	var errs []string
	switch c.Ledger.Driver {
	case "sqlite", "mysql":
	default:
		errs = append(errs, fmt.Sprintf("ledger.driver must be sqlite or mysql, got %q", c.Ledger.Driver))
	}
	if c.Router.MaxRetries < 0 {
		errs = append(errs, "router.max_retries must not be negative")
	}
	if c.Router.DedupWindowSec < 0 {
		errs = append(errs, "router.dedup_window_sec must not be negative")
	}
	switch c.Relay.Platform {
	case "none":
	case "discord":
		if c.Relay.Discord.BotToken == "" {
			errs = append(errs, "relay.discord.bot_token is required when platform is discord")
		}
		if c.Relay.Discord.ChannelID == "" {
			errs = append(errs, "relay.discord.channel_id is required when platform is discord")
		}
	case "slack":
		if c.Relay.Slack.BotToken == "" {
			errs = append(errs, "relay.slack.bot_token is required when platform is slack")
		}
		if c.Relay.Slack.ChannelID == "" {
			errs = append(errs, "relay.slack.channel_id is required when platform is slack")
		}
	default:
		errs = append(errs, fmt.Sprintf("relay.platform must be discord, slack, or none, got %q", c.Relay.Platform))
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
