// Package config loads warden's daemon configuration: supervisor tuning,
// notification channels, and routing overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"

	"github.com/wardenhq/warden/internal/notify"
)

// SupervisorConfig tunes the health supervisor loop.
type SupervisorConfig struct {
	IntervalSeconds       int     `mapstructure:"interval_seconds"`
	MaxRestarts           int     `mapstructure:"max_restarts"`
	CooldownSeconds       int     `mapstructure:"cooldown_seconds"`
	ProgressWindowSeconds int     `mapstructure:"progress_window_seconds"`
	MemoryWarnPercent     float64 `mapstructure:"memory_warn_percent"`
	MemoryCriticalPercent float64 `mapstructure:"memory_critical_percent"`
	DaemonScript          string  `mapstructure:"daemon_script"`
}

// NotificationsConfig mirrors the recognized notification options:
// per-channel settings, the digest interval, and routing overrides keyed by
// event tag.
type NotificationsConfig struct {
	Channels              map[string]notify.ChannelSettings `mapstructure:"channels"`
	DigestIntervalMinutes int                               `mapstructure:"digest_interval_minutes"`
	Overrides             map[string][]string               `mapstructure:"overrides"`
}

// Config is the full daemon configuration.
type Config struct {
	LogLevel      string              `mapstructure:"log_level"`
	LockDBPath    string              `mapstructure:"lock_db_path"`
	Supervisor    SupervisorConfig    `mapstructure:"supervisor"`
	Notifications NotificationsConfig `mapstructure:"notifications"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		LogLevel: "info",
		Supervisor: SupervisorConfig{
			IntervalSeconds:       30,
			MaxRestarts:           5,
			CooldownSeconds:       60,
			ProgressWindowSeconds: 300,
			MemoryWarnPercent:     85,
			MemoryCriticalPercent: 95,
		},
		Notifications: NotificationsConfig{
			DigestIntervalMinutes: 30,
		},
	}
}

// Load reads <projectRoot>/.warden/config.yaml, applying defaults for
// anything unset and WARDEN_* environment overrides on top. A missing file
// yields the defaults.
func Load(projectRoot string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(filepath.Join(projectRoot, ".warden", "config.yaml"))
	v.SetConfigType("yaml")
	v.SetEnvPrefix("WARDEN")
	v.AutomaticEnv()

	defaults := Default()
	v.SetDefault("log_level", defaults.LogLevel)
	v.SetDefault("supervisor.interval_seconds", defaults.Supervisor.IntervalSeconds)
	v.SetDefault("supervisor.max_restarts", defaults.Supervisor.MaxRestarts)
	v.SetDefault("supervisor.cooldown_seconds", defaults.Supervisor.CooldownSeconds)
	v.SetDefault("supervisor.progress_window_seconds", defaults.Supervisor.ProgressWindowSeconds)
	v.SetDefault("supervisor.memory_warn_percent", defaults.Supervisor.MemoryWarnPercent)
	v.SetDefault("supervisor.memory_critical_percent", defaults.Supervisor.MemoryCriticalPercent)
	v.SetDefault("notifications.digest_interval_minutes", defaults.Notifications.DigestIntervalMinutes)

	if err := v.ReadInConfig(); err != nil {
		if _, statErr := os.Stat(v.ConfigFileUsed()); statErr == nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		// No config file: defaults apply.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return &cfg, nil
}

// RouterConfig converts the notification section into router construction
// parameters.
func (c *Config) RouterConfig(projectRoot string) notify.Config {
	interval := time.Duration(c.Notifications.DigestIntervalMinutes) * time.Minute
	return notify.Config{
		ProjectRoot:    projectRoot,
		Channels:       c.Notifications.Channels,
		DigestInterval: interval,
		Overrides:      c.Notifications.Overrides,
	}
}

// SupervisorInterval returns the tick interval as a duration.
func (c *Config) SupervisorInterval() time.Duration {
	return time.Duration(c.Supervisor.IntervalSeconds) * time.Second
}

// SupervisorCooldown returns the restart cooldown as a duration.
func (c *Config) SupervisorCooldown() time.Duration {
	return time.Duration(c.Supervisor.CooldownSeconds) * time.Second
}

// SupervisorProgressWindow returns the recovery freshness window.
func (c *Config) SupervisorProgressWindow() time.Duration {
	return time.Duration(c.Supervisor.ProgressWindowSeconds) * time.Second
}
