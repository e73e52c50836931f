package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Logging  LoggingConfig  `yaml:"logging"`
	Watcher  WatcherConfig  `yaml:"watcher"`
	Backup   BackupConfig   `yaml:"backup"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port     int    `yaml:"port"`
	BasePath string `yaml:"base_path"`
}

// DatabaseConfig holds SQLite settings.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	FilePath string `yaml:"file_path"`
}

// WatcherConfig holds filesystem watcher settings.
type WatcherConfig struct {
	Enabled         bool `yaml:"enabled"`
	DebounceSeconds int  `yaml:"debounce_seconds"`
}

// BackupConfig holds scheduled database backup settings. Dir defaults to a
// backups directory next to the database file when empty.
type BackupConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Dir           string `yaml:"dir"`
	IntervalHours int    `yaml:"interval_hours"`
	Retention     int    `yaml:"retention"`
	MaxAgeDays    int    `yaml:"max_age_days"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:     8424,
			BasePath: "",
		},
		Database: DatabaseConfig{
			Path: "data/armory.db",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Watcher: WatcherConfig{
			Enabled:         true,
			DebounceSeconds: 2,
		},
		Backup: BackupConfig{
			Enabled:       true,
			IntervalHours: 24,
			Retention:     7,
			MaxAgeDays:    0,
		},
	}
}

// Load reads config from a YAML file (if it exists) and overrides with
// environment variables. Environment variables take precedence.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := cfg.loadFromFile(path); err != nil {
			return nil, fmt.Errorf("loading config file: %w", err)
		}
	}

	cfg.loadFromEnv()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func (c *Config) loadFromFile(path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path comes from trusted env/flag
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return yaml.Unmarshal(data, c)
}

func (c *Config) loadFromEnv() {
	if v := os.Getenv("ARMORY_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Server.Port = port
		}
	}
	if v := os.Getenv("ARMORY_BASE_PATH"); v != "" {
		c.Server.BasePath = v
	}
	if v := os.Getenv("ARMORY_DB_PATH"); v != "" {
		c.Database.Path = v
	}
	if v := os.Getenv("ARMORY_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("ARMORY_LOG_FORMAT"); v != "" {
		c.Logging.Format = v
	}
	if v := os.Getenv("ARMORY_LOG_FILE"); v != "" {
		c.Logging.FilePath = v
	}
	if v := os.Getenv("ARMORY_WATCHER_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Watcher.Enabled = b
		}
	}
	if v := os.Getenv("ARMORY_BACKUP_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Backup.Enabled = b
		}
	}
	if v := os.Getenv("ARMORY_BACKUP_DIR"); v != "" {
		c.Backup.Dir = v
	}
}

func (c *Config) validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Server.Port)
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database path is required")
	}
	if c.Watcher.DebounceSeconds < 0 {
		return fmt.Errorf("watcher debounce must be non-negative")
	}
	if c.Backup.Enabled && c.Backup.IntervalHours < 1 {
		return fmt.Errorf("backup interval must be at least 1 hour")
	}
	if c.Backup.Retention < 0 {
		return fmt.Errorf("backup retention must be non-negative")
	}
	c.Server.BasePath = strings.TrimRight(c.Server.BasePath, "/")
	return nil
}
