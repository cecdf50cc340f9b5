package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	Directories DirectoriesConfig       `yaml:"directories"`
	Global      GlobalConfig            `yaml:"global"`
	Cache       CacheConfig             `yaml:"cache"`
	Database    DatabaseConfig          `yaml:"database"`
	Sources     map[string]SourceConfig `yaml:"sources"`
	Logging     LoggingConfig           `yaml:"logging"`
}

// DirectoriesConfig holds the scan source, organize target, and layout pattern.
type DirectoriesConfig struct {
	Source           string `yaml:"source"`
	Target           string `yaml:"target"`
	DirectoryPattern string `yaml:"directory_pattern"`
}

// GlobalConfig holds the selection knobs consumed by the resolver core.
type GlobalConfig struct {
	MinConfidence       float64            `yaml:"min_confidence"`
	RequireConfirmation bool               `yaml:"require_confirmation"`
	SearchTimeout       int                `yaml:"search_timeout"` // seconds
	SourceWeights       map[string]float64 `yaml:"source_weights"`
}

// CacheConfig holds result cache settings.
type CacheConfig struct {
	Dir        string `yaml:"dir"`
	ExpireDays int    `yaml:"expire_days"`
}

// DatabaseConfig holds SQLite settings for the processed-file tracker.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// SourceConfig holds one catalog adapter's settings. Credential fields are
// only meaningful for the sources that use them.
type SourceConfig struct {
	Enabled      bool    `yaml:"enabled"`
	Weight       float64 `yaml:"weight"`
	AppName      string  `yaml:"app_name,omitempty"`
	Version      string  `yaml:"version,omitempty"`
	Contact      string  `yaml:"contact,omitempty"`
	ClientID     string  `yaml:"client_id,omitempty"`
	ClientSecret string  `yaml:"client_secret,omitempty"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level          string `yaml:"level"`
	Format         string `yaml:"format"`
	FilePath       string `yaml:"file_path,omitempty"`
	FileMaxSizeMB  int    `yaml:"file_max_size_mb,omitempty"`
	FileMaxFiles   int    `yaml:"file_max_files,omitempty"`
	FileMaxAgeDays int    `yaml:"file_max_age_days,omitempty"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Directories: DirectoriesConfig{
			DirectoryPattern: "{artist}/{album}/{title}",
		},
		Global: GlobalConfig{
			MinConfidence: 50,
			SearchTimeout: 30,
			SourceWeights: map[string]float64{
				"musicbrainz": 1.0,
				"spotify":     1.0,
				"netease":     0.8,
				"qqmusic":     0.8,
			},
		},
		Cache: CacheConfig{
			Dir:        ".cache",
			ExpireDays: 30,
		},
		Database: DatabaseConfig{
			Path: ".cache/tonearm.db",
		},
		Sources: map[string]SourceConfig{
			"musicbrainz": {
				Enabled: true,
				Weight:  1.0,
				AppName: "tonearm",
				Version: "1.0",
				Contact: "tonearm@example.com",
			},
			"spotify": {Weight: 1.0},
			"netease": {Enabled: true, Weight: 0.8},
			"qqmusic": {Enabled: true, Weight: 0.8},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
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
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return yaml.Unmarshal(data, c)
}

func (c *Config) loadFromEnv() {
	if v := os.Getenv("TONEARM_SOURCE_DIR"); v != "" {
		c.Directories.Source = v
	}
	if v := os.Getenv("TONEARM_TARGET_DIR"); v != "" {
		c.Directories.Target = v
	}
	if v := os.Getenv("TONEARM_CACHE_DIR"); v != "" {
		c.Cache.Dir = v
	}
	if v := os.Getenv("TONEARM_DB_PATH"); v != "" {
		c.Database.Path = v
	}
	if v := os.Getenv("TONEARM_MIN_CONFIDENCE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Global.MinConfidence = f
		}
	}
	if v := os.Getenv("TONEARM_SEARCH_TIMEOUT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Global.SearchTimeout = n
		}
	}
	if v := os.Getenv("TONEARM_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("TONEARM_LOG_FORMAT"); v != "" {
		c.Logging.Format = v
	}
	if v := os.Getenv("TONEARM_SPOTIFY_ID"); v != "" {
		s := c.Sources["spotify"]
		s.ClientID = v
		c.Sources["spotify"] = s
	}
	if v := os.Getenv("TONEARM_SPOTIFY_SECRET"); v != "" {
		s := c.Sources["spotify"]
		s.ClientSecret = v
		c.Sources["spotify"] = s
	}
}

func (c *Config) validate() error {
	if c.Global.MinConfidence < 0 || c.Global.MinConfidence > 100 {
		return fmt.Errorf("min_confidence must be within [0,100]: %v", c.Global.MinConfidence)
	}
	if c.Global.SearchTimeout <= 0 {
		return fmt.Errorf("search_timeout must be positive: %d", c.Global.SearchTimeout)
	}
	if c.Cache.Dir == "" {
		return fmt.Errorf("cache dir is required")
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database path is required")
	}
	if c.Directories.DirectoryPattern == "" {
		c.Directories.DirectoryPattern = "{artist}/{album}/{title}"
	}
	return nil
}

// SourceEnabled reports whether the named source is enabled.
func (c *Config) SourceEnabled(name string) bool {
	s, ok := c.Sources[name]
	return ok && s.Enabled
}

// Source returns the named source's settings, zero when absent.
func (c *Config) Source(name string) SourceConfig {
	return c.Sources[name]
}
