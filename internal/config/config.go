// Package config loads the tool's own configuration file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"mcpdock/internal/security"
)

const (
	// FileName is searched in the default config locations when no
	// explicit path is given.
	FileName = "mcpdock.yaml"

	DefaultHost                = "127.0.0.1"
	DefaultPort                = 5600
	DefaultKeepBackups         = 10
	DefaultHealthWindowMinutes = 60
)

// Config is the root structure of mcpdock.yaml. Every field has a working
// default, so an absent file is valid.
type Config struct {
	// DBPath is the SQLite database holding server records and events.
	DBPath string `yaml:"db_path"`

	// CacheDir holds materialized source artifacts.
	CacheDir string `yaml:"cache_dir"`

	// LogFile receives the structured log stream alongside stdout.
	LogFile string `yaml:"log_file"`

	// GitHubToken authenticates source resolution; anonymous when empty.
	GitHubToken string `yaml:"github_token"`

	Host string `yaml:"host"`
	Port int    `yaml:"port"`

	// WebhookSecret signs redeploy webhooks. Webhook endpoints are
	// disabled when empty.
	WebhookSecret string `yaml:"webhook_secret"`

	// KeepBackups bounds retained host-config backups.
	KeepBackups int `yaml:"keep_backups"`

	// HealthWindowMinutes bounds how far back log evidence counts.
	HealthWindowMinutes int `yaml:"health_window_minutes"`

	// HostConfigPath and HostLogDir override the platform-derived paths.
	// Mainly for tests and non-standard installs.
	HostConfigPath string `yaml:"host_config_path"`
	HostLogDir     string `yaml:"host_log_dir"`
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load reads and validates the configuration at path. An empty path yields
// the defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}

	cfg.applyDefaults()

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, fmt.Errorf("invalid configuration in %s:\n%s", path, strings.Join(errs, "\n"))
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.DBPath == "" {
		c.DBPath = "./mcpdock.db"
	}
	if c.CacheDir == "" {
		if userCache, err := os.UserCacheDir(); err == nil {
			c.CacheDir = filepath.Join(userCache, "mcpdock")
		} else {
			c.CacheDir = "./cache"
		}
	}
	if c.LogFile == "" {
		c.LogFile = "./mcpdock.log"
	}
	if c.Host == "" {
		c.Host = DefaultHost
	}
	if c.Port == 0 {
		c.Port = DefaultPort
	}
	if c.KeepBackups == 0 {
		c.KeepBackups = DefaultKeepBackups
	}
	if c.HealthWindowMinutes == 0 {
		c.HealthWindowMinutes = DefaultHealthWindowMinutes
	}
}

// Validate returns a list of human-readable problems, empty when the
// configuration is usable.
func (c *Config) Validate() []string {
	var errors []string

	if c.Port < 1 || c.Port > 65535 {
		errors = append(errors, fmt.Sprintf("  - port must be between 1 and 65535, got %d", c.Port))
	}

	if c.KeepBackups < 1 {
		errors = append(errors, fmt.Sprintf("  - keep_backups must be at least 1, got %d", c.KeepBackups))
	}

	if c.HealthWindowMinutes < 1 {
		errors = append(errors, fmt.Sprintf("  - health_window_minutes must be at least 1, got %d", c.HealthWindowMinutes))
	}

	if c.WebhookSecret != "" {
		if err := security.ValidateSecret(c.WebhookSecret); err != nil {
			errors = append(errors, fmt.Sprintf("  - webhook_secret: %v", err))
		}
	}

	if c.HostConfigPath != "" {
		if _, err := security.SanitizePath(c.HostConfigPath); err != nil {
			errors = append(errors, fmt.Sprintf("  - host_config_path: %v", err))
		}
	}
	if c.HostLogDir != "" {
		if _, err := security.SanitizePath(c.HostLogDir); err != nil {
			errors = append(errors, fmt.Sprintf("  - host_log_dir: %v", err))
		}
	}

	return errors
}
