// Package config handles loading and parsing of lolrus configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration for lolrus.
type Config struct {
	Logging     LoggingConfig     `yaml:"logging"`
	Client      ClientConfig      `yaml:"client"`
	Connections ConnectionsConfig `yaml:"connections"`
	Preview     PreviewConfig     `yaml:"preview"`
	Debug       DebugConfig       `yaml:"debug"`
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error.
	Level string `yaml:"level"`
	// Format is the log output format: text or json.
	Format string `yaml:"format"`
}

// ClientConfig holds storage client transport and scheduling settings.
type ClientConfig struct {
	// Workers is the size of the per-client pool for async operations.
	Workers int `yaml:"workers"`
	// RetryMaxAttempts is the number of attempts for transient failures.
	RetryMaxAttempts int `yaml:"retry_max_attempts"`
	// ConnectTimeoutSeconds is the TCP connect timeout.
	ConnectTimeoutSeconds int `yaml:"connect_timeout_seconds"`
	// ReadTimeoutSeconds is the response header timeout.
	ReadTimeoutSeconds int `yaml:"read_timeout_seconds"`
	// UsePathStyle forces path-style addressing; required by most
	// self-hosted S3-compatible providers.
	UsePathStyle bool `yaml:"use_path_style"`
}

// ConnectionsConfig holds saved-connection registry settings.
type ConnectionsConfig struct {
	// Path is the filesystem path for the connections SQLite database.
	Path string `yaml:"path"`
	// SecretService is the service name used to key credential lookups
	// in the secret store.
	SecretService string `yaml:"secret_service"`
}

// PreviewConfig holds per-kind caps for bounded in-memory downloads.
type PreviewConfig struct {
	TextMaxBytes    int64 `yaml:"text_max_bytes"`
	ImageMaxBytes   int64 `yaml:"image_max_bytes"`
	ArchiveMaxBytes int64 `yaml:"archive_max_bytes"`
}

// DebugConfig holds the optional local debug listener settings.
type DebugConfig struct {
	// Enabled controls whether the /metrics and /healthz listener starts.
	Enabled bool `yaml:"enabled"`
	// Addr is the listen address for the debug listener.
	Addr string `yaml:"addr"`
}

// Load reads a YAML configuration file from the given path and returns a
// parsed Config. A missing file is not an error; defaults apply.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyDefaults(cfg)
	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Client: ClientConfig{
			Workers:               4,
			RetryMaxAttempts:      3,
			ConnectTimeoutSeconds: 10,
			ReadTimeoutSeconds:    30,
			UsePathStyle:          true,
		},
		Connections: ConnectionsConfig{
			Path:          defaultConnectionsPath(),
			SecretService: "lolrus-s3-browser",
		},
		Preview: PreviewConfig{
			TextMaxBytes:    10_000_000,
			ImageMaxBytes:   50_000_000,
			ArchiveMaxBytes: 100_000_000,
		},
		Debug: DebugConfig{
			Enabled: false,
			Addr:    "127.0.0.1:9180",
		},
	}
}

// applyDefaults fills in any fields that are still at their zero value
// after YAML unmarshaling.
func applyDefaults(cfg *Config) {
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}
	if cfg.Client.Workers == 0 {
		cfg.Client.Workers = 4
	}
	if cfg.Client.RetryMaxAttempts == 0 {
		cfg.Client.RetryMaxAttempts = 3
	}
	if cfg.Client.ConnectTimeoutSeconds == 0 {
		cfg.Client.ConnectTimeoutSeconds = 10
	}
	if cfg.Client.ReadTimeoutSeconds == 0 {
		cfg.Client.ReadTimeoutSeconds = 30
	}
	if cfg.Connections.Path == "" {
		cfg.Connections.Path = defaultConnectionsPath()
	}
	if cfg.Connections.SecretService == "" {
		cfg.Connections.SecretService = "lolrus-s3-browser"
	}
	if cfg.Preview.TextMaxBytes == 0 {
		cfg.Preview.TextMaxBytes = 10_000_000
	}
	if cfg.Preview.ImageMaxBytes == 0 {
		cfg.Preview.ImageMaxBytes = 50_000_000
	}
	if cfg.Preview.ArchiveMaxBytes == 0 {
		cfg.Preview.ArchiveMaxBytes = 100_000_000
	}
	if cfg.Debug.Addr == "" {
		cfg.Debug.Addr = "127.0.0.1:9180"
	}
}

// defaultConnectionsPath returns ~/.config/lolrus/connections.db, falling
// back to a relative path when the home directory cannot be resolved.
func defaultConnectionsPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "connections.db"
	}
	return filepath.Join(home, ".config", "lolrus", "connections.db")
}
