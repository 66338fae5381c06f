/**
 * CONTEXT:   Daemon configuration for screentimed's tick loop, store, and enforcement mode
 * INPUT:     YAML configuration file (optional) layered over built-in defaults
 * OUTPUT:    Validated DaemonConfig ready for daemon/store/kernel construction
 * BUSINESS:  Centralize every operational knob named in spec section 6
 * RISK:      Low - configuration struct with defaults and validation, no side effects
 */
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Mode selects how the enforcement kernel behaves.
type Mode string

const (
	ModeNormal      Mode = "normal"
	ModePassthrough Mode = "passthrough"
	ModeStrict      Mode = "strict"
)

// DaemonConfig holds every key spec section 6 names under daemon.*, plus
// the ambient server/logging/database settings screentimed needs to run
// as a long-lived service.
type DaemonConfig struct {
	Daemon   DaemonSection   `yaml:"daemon"`
	Server   ServerConfig    `yaml:"server"`
	Database DatabaseConfig  `yaml:"database"`
	Logging  LoggingConfig   `yaml:"logging"`
}

// DaemonSection is the daemon.* key namespace from spec section 6.
type DaemonSection struct {
	PollIntervalSec     int    `yaml:"poll_interval"`
	ResetHour           int    `yaml:"reset_hour"`
	DBPath              string `yaml:"db_path"`
	Mode                Mode   `yaml:"mode"`
	GracePeriodSeconds  int    `yaml:"grace_period_seconds"`
	WarningThresholdsMin []int `yaml:"warning_thresholds"`
	CPUThreshold        float64 `yaml:"cpu_threshold"`
}

// ServerConfig configures the loopback admin HTTP API (spec 4.10/6).
type ServerConfig struct {
	ListenAddr      string        `yaml:"listen_addr"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// DatabaseConfig configures the embedded relational store connection.
type DatabaseConfig struct {
	MaxOpenConns       int           `yaml:"max_open_conns"`
	MaxIdleConns       int           `yaml:"max_idle_conns"`
	ConnMaxLifetime    time.Duration `yaml:"conn_max_lifetime"`
	RetentionEventsDays int          `yaml:"retention_events_days"`
	RetentionSessionsDays int        `yaml:"retention_sessions_days"`
	RetentionMessageLogDays int      `yaml:"retention_message_log_days"`
}

// LoggingConfig configures the logrus-backed logger.
type LoggingConfig struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"`
	OutputFile string `yaml:"output_file"`
}

// NewDefaultConfig returns production-sane defaults for every field.
func NewDefaultConfig() *DaemonConfig {
	return &DaemonConfig{
		Daemon: DaemonSection{
			PollIntervalSec:      30,
			ResetHour:            4,
			DBPath:               "./data/screentimed.db",
			Mode:                 ModeNormal,
			GracePeriodSeconds:   300,
			WarningThresholdsMin: []int{30, 15, 5},
			CPUThreshold:         5.0,
		},
		Server: ServerConfig{
			ListenAddr:      "127.0.0.1:9193",
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    10 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Database: DatabaseConfig{
			MaxOpenConns:            10,
			MaxIdleConns:            5,
			ConnMaxLifetime:         time.Hour,
			RetentionEventsDays:     30,
			RetentionSessionsDays:   90,
			RetentionMessageLogDays: 7,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// LoadConfig reads a YAML file at path and overlays it on top of
// defaults. An empty or missing path is not an error: the daemon simply
// runs on defaults, which keeps the interactive configuration UX (named
// out of scope) decoupled from the core's ability to start.
func LoadConfig(path string) (*DaemonConfig, error) {
	cfg := NewDefaultConfig()
	if path == "" {
		return cfg, nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config file %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate enforces the ranges spec section 6 implies (reset_hour 0-23,
// positive poll interval, a recognized mode).
func (c *DaemonConfig) Validate() error {
	if c.Daemon.PollIntervalSec <= 0 {
		return fmt.Errorf("daemon.poll_interval must be positive")
	}
	if c.Daemon.ResetHour < 0 || c.Daemon.ResetHour > 23 {
		return fmt.Errorf("daemon.reset_hour must be 0-23")
	}
	if c.Daemon.DBPath == "" {
		return fmt.Errorf("daemon.db_path must be set")
	}
	switch c.Daemon.Mode {
	case ModeNormal, ModePassthrough, ModeStrict:
	default:
		return fmt.Errorf("daemon.mode must be one of normal|passthrough|strict")
	}
	if c.Daemon.GracePeriodSeconds < 0 {
		return fmt.Errorf("daemon.grace_period_seconds must be non-negative")
	}
	for _, m := range c.Daemon.WarningThresholdsMin {
		if m < 0 {
			return fmt.Errorf("daemon.warning_thresholds must be non-negative")
		}
	}
	if c.Daemon.CPUThreshold < 0 {
		return fmt.Errorf("daemon.cpu_threshold must be non-negative")
	}
	return nil
}

// PollInterval is the tick cadence as a time.Duration.
func (c *DaemonConfig) PollInterval() time.Duration {
	return time.Duration(c.Daemon.PollIntervalSec) * time.Second
}

// GracePeriod is the grace window as a time.Duration.
func (c *DaemonConfig) GracePeriod() time.Duration {
	return time.Duration(c.Daemon.GracePeriodSeconds) * time.Second
}
