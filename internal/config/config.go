package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// FileName is the config file created by init and read from the project root.
const FileName = "stmtimport.yaml"

// Config represents the top-level stmtimport.yaml configuration.
type Config struct {
	Account    string           `yaml:"account"`
	Kind       string           `yaml:"kind"`
	Rates      RatesConfig      `yaml:"rates"`
	Duplicates DuplicatesConfig `yaml:"duplicates"`
	Ledger     LedgerConfig     `yaml:"ledger"`
	Server     ServerConfig     `yaml:"server"`
	Log        LogConfig        `yaml:"log"`
	Git        GitConfig        `yaml:"git"`
}

// RatesConfig points at the exchange-rate service.
type RatesConfig struct {
	BaseURL     string        `yaml:"base_url"`
	Timeout     time.Duration `yaml:"timeout"`
	Concurrency int           `yaml:"concurrency"`
}

// DuplicatesConfig points at the duplicate-detection service.
// The bearer token is read from the environment variable named by TokenEnv.
type DuplicatesConfig struct {
	URL      string        `yaml:"url"`
	Timeout  time.Duration `yaml:"timeout"`
	TokenEnv string        `yaml:"token_env"`
}

// Token returns the duplicate-service token from the environment.
func (d DuplicatesConfig) Token() string {
	if d.TokenEnv == "" {
		return ""
	}
	return os.Getenv(d.TokenEnv)
}

// LedgerConfig selects where imported transactions are written.
type LedgerConfig struct {
	Driver string `yaml:"driver"` // "sqlite" or "csv"
	Path   string `yaml:"path"`   // database file, or journal root directory
}

// ServerConfig controls the HTTP API.
type ServerConfig struct {
	Addr           string   `yaml:"addr"`
	AllowedOrigins []string `yaml:"allowed_origins,omitempty"`
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "console" or "json"
}

// GitConfig controls committing the CSV journal after an import.
type GitConfig struct {
	AutoCommit  bool   `yaml:"auto_commit"`
	AuthorName  string `yaml:"author_name"`
	AuthorEmail string `yaml:"author_email"`
}

// Ledger drivers.
const (
	DriverSQLite = "sqlite"
	DriverCSV    = "csv"
)

// Load reads a stmtimport.yaml file from disk. Unset fields keep their defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// LoadOrDefault is Load, falling back to Default when path does not exist.
func LoadOrDefault(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return Default(), nil
	}
	return Load(path)
}

// Save writes a Config to a YAML file.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// Validate checks enumerated fields and limits.
func (c *Config) Validate() error {
	switch c.Kind {
	case "", "spending", "revenue":
	default:
		return fmt.Errorf("kind %q must be spending or revenue", c.Kind)
	}
	switch c.Ledger.Driver {
	case DriverSQLite, DriverCSV:
	default:
		return fmt.Errorf("ledger driver %q must be %s or %s", c.Ledger.Driver, DriverSQLite, DriverCSV)
	}
	switch c.Log.Format {
	case "", "console", "json":
	default:
		return fmt.Errorf("log format %q must be console or json", c.Log.Format)
	}
	if c.Rates.Concurrency < 0 {
		return fmt.Errorf("rates concurrency must not be negative")
	}
	return nil
}

// Default returns a Config with sensible defaults for a new project.
func Default() *Config {
	return &Config{
		Kind: "spending",
		Rates: RatesConfig{
			BaseURL:     "https://api.frankfurter.app",
			Timeout:     10 * time.Second,
			Concurrency: 1,
		},
		Duplicates: DuplicatesConfig{
			URL:      "http://localhost:8080/api/transactions/check-duplicates",
			Timeout:  15 * time.Second,
			TokenEnv: "STMTIMPORT_DUPLICATES_TOKEN",
		},
		Ledger: LedgerConfig{
			Driver: DriverSQLite,
			Path:   "ledger.db",
		},
		Server: ServerConfig{
			Addr:           ":8081",
			AllowedOrigins: []string{"http://localhost:3000"},
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
		Git: GitConfig{
			AutoCommit:  false,
			AuthorName:  "stmtimport",
			AuthorEmail: "stmtimport@localhost",
		},
	}
}
