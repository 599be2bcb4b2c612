// Package config loads dynadump settings from YAML files and DYNADUMP_*
// environment variables.
package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/nisimpson/dynadump"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// Checkpoint store kinds.
const (
	StoreFile     = "file"
	StoreSQLite   = "sqlite"
	StoreDynamoDB = "dynamodb"
)

// Config holds all configuration options for an export
type Config struct {
	Source     SourceConfig     `yaml:"source"`
	Output     OutputConfig     `yaml:"output"`
	Checkpoint CheckpointConfig `yaml:"checkpoint"`
	Retry      RetryConfig      `yaml:"retry"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// SourceConfig describes the exported table and how it is read
type SourceConfig struct {
	Table          string   `yaml:"table"`
	Region         string   `yaml:"region"`
	Endpoint       string   `yaml:"endpoint"` // e.g. http://localhost:8000 for DynamoDB Local
	KeyAttribute   string   `yaml:"key_attribute"`
	PageSize       int      `yaml:"page_size"` // 0 uses the service default
	ConsistentRead bool     `yaml:"consistent_read"`
	Attributes     []string `yaml:"attributes"`
}

// OutputConfig holds export file settings
type OutputConfig struct {
	Path          string `yaml:"path"` // Default is <table>.json
	Format        string `yaml:"format"`
	IdentityField string `yaml:"identity_field"`
}

// CheckpointConfig selects where resume state is kept
type CheckpointConfig struct {
	Store      string        `yaml:"store"`
	Path       string        `yaml:"path"`  // file and sqlite stores
	Table      string        `yaml:"table"` // dynamodb store
	TimeToLive time.Duration `yaml:"time_to_live"`
}

// RetryConfig holds backoff settings for transient fetch failures
type RetryConfig struct {
	BaseDelay    time.Duration `yaml:"base_delay"`
	MaxDelay     time.Duration `yaml:"max_delay"`
	Multiplier   float64       `yaml:"multiplier"`
	JitterFactor float64       `yaml:"jitter_factor"`
	MaxAttempts  int           `yaml:"max_attempts"` // 0 retries forever
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // console or json
}

// DefaultConfig returns a Config with default settings. The table name has
// no default.
func DefaultConfig() *Config {
	return &Config{
		Source: SourceConfig{
			KeyAttribute: dynadump.DefaultKeyAttribute,
		},
		Output: OutputConfig{
			Format:        string(dynadump.FormatJSON),
			IdentityField: dynadump.DefaultIdentityField,
		},
		Checkpoint: CheckpointConfig{
			Store: StoreFile,
		},
		Retry: RetryConfig{
			BaseDelay:    time.Second,
			MaxDelay:     30 * time.Second,
			Multiplier:   2.0,
			JitterFactor: 0.1,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load builds a configuration from defaults, then the YAML file at path (or
// a default location when path is empty), then the environment.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if err := cfg.LoadFromFile(path); err != nil {
		return nil, err
	}

	if err := cfg.LoadFromEnv(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadFromFile loads configuration from a YAML file. An empty path searches
// the default locations; finding no file there is not an error.
func (c *Config) LoadFromFile(path string) error {
	if path == "" {
		path = findConfigFile()
		if path == "" {
			return nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	return nil
}

func findConfigFile() string {
	locations := []string{".dynadump.yaml", ".dynadump.yml"}
	if home, err := os.UserHomeDir(); err == nil {
		locations = append(locations,
			filepath.Join(home, ".config", "dynadump", "config.yaml"),
			filepath.Join(home, ".config", "dynadump", "config.yml"),
		)
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// LoadFromEnv overrides settings with DYNADUMP_* environment variables.
// Unset or empty variables are ignored.
func (c *Config) LoadFromEnv() error {
	var errs []error

	str := func(name string, dst *string) {
		if v := os.Getenv(name); v != "" {
			*dst = v
		}
	}
	integer := func(name string, dst *int) {
		if v := os.Getenv(name); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", name, err))
				return
			}
			*dst = n
		}
	}
	boolean := func(name string, dst *bool) {
		if v := os.Getenv(name); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", name, err))
				return
			}
			*dst = b
		}
	}
	duration := func(name string, dst *time.Duration) {
		if v := os.Getenv(name); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", name, err))
				return
			}
			*dst = d
		}
	}

	str("DYNADUMP_TABLE", &c.Source.Table)
	str("DYNADUMP_REGION", &c.Source.Region)
	str("DYNADUMP_ENDPOINT", &c.Source.Endpoint)
	str("DYNADUMP_KEY", &c.Source.KeyAttribute)
	integer("DYNADUMP_PAGE_SIZE", &c.Source.PageSize)
	boolean("DYNADUMP_CONSISTENT_READ", &c.Source.ConsistentRead)
	if v := os.Getenv("DYNADUMP_ATTRIBUTES"); v != "" {
		c.Source.Attributes = SplitList(v)
	}

	str("DYNADUMP_OUTPUT", &c.Output.Path)
	str("DYNADUMP_FORMAT", &c.Output.Format)
	str("DYNADUMP_IDENTITY_FIELD", &c.Output.IdentityField)

	str("DYNADUMP_CHECKPOINT_STORE", &c.Checkpoint.Store)
	str("DYNADUMP_CHECKPOINT_PATH", &c.Checkpoint.Path)
	str("DYNADUMP_CHECKPOINT_TABLE", &c.Checkpoint.Table)
	duration("DYNADUMP_CHECKPOINT_TTL", &c.Checkpoint.TimeToLive)

	integer("DYNADUMP_MAX_ATTEMPTS", &c.Retry.MaxAttempts)
	duration("DYNADUMP_RETRY_BASE_DELAY", &c.Retry.BaseDelay)
	duration("DYNADUMP_RETRY_MAX_DELAY", &c.Retry.MaxDelay)

	str("DYNADUMP_LOG_LEVEL", &c.Logging.Level)
	str("DYNADUMP_LOG_FORMAT", &c.Logging.Format)

	return errors.Join(errs...)
}

// SplitList splits a comma separated list, dropping blanks.
func SplitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// OutputPath returns the export file, defaulting to <table>.json.
func (c *Config) OutputPath() string {
	if c.Output.Path != "" {
		return c.Output.Path
	}
	return c.Source.Table + ".json"
}

// CheckpointPath returns the checkpoint location for the file and sqlite
// stores, defaulting to <table>.checkpoint.json or <table>.checkpoint.db.
func (c *Config) CheckpointPath() string {
	if c.Checkpoint.Path != "" {
		return c.Checkpoint.Path
	}
	if c.Checkpoint.Store == StoreSQLite {
		return c.Source.Table + ".checkpoint.db"
	}
	return c.Source.Table + ".checkpoint.json"
}

// Backoff returns the retry policy described by the configuration.
func (c *Config) Backoff() *dynadump.ExponentialBackoff {
	return &dynadump.ExponentialBackoff{
		BaseDelay:    c.Retry.BaseDelay,
		MaxDelay:     c.Retry.MaxDelay,
		Multiplier:   c.Retry.Multiplier,
		JitterFactor: c.Retry.JitterFactor,
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	if c.Source.Table == "" {
		errs = append(errs, errors.New("source table is required"))
	}
	if c.Source.KeyAttribute == "" {
		errs = append(errs, errors.New("key attribute is required"))
	}
	if c.Source.PageSize < 0 {
		errs = append(errs, errors.New("page size cannot be negative"))
	}
	if c.Source.PageSize > math.MaxInt32 {
		errs = append(errs, fmt.Errorf("page size cannot exceed %d", math.MaxInt32))
	}

	if _, err := dynadump.ParseFormat(c.Output.Format); err != nil {
		errs = append(errs, err)
	}
	if c.Output.IdentityField == "" {
		errs = append(errs, errors.New("identity field is required"))
	}

	switch c.Checkpoint.Store {
	case StoreFile, StoreSQLite:
	case StoreDynamoDB:
		if c.Checkpoint.Table == "" {
			errs = append(errs, errors.New("checkpoint table is required for the dynamodb store"))
		} else if c.Checkpoint.Table == c.Source.Table {
			errs = append(errs, errors.New("checkpoint table must differ from the exported table"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown checkpoint store %q (want file, sqlite or dynamodb)", c.Checkpoint.Store))
	}
	if c.Checkpoint.TimeToLive < 0 {
		errs = append(errs, errors.New("checkpoint time to live cannot be negative"))
	}

	if c.Retry.BaseDelay < 0 {
		errs = append(errs, errors.New("retry base delay cannot be negative"))
	}
	if c.Retry.MaxDelay > 0 && c.Retry.MaxDelay < c.Retry.BaseDelay {
		errs = append(errs, errors.New("retry max delay must be at least the base delay"))
	}
	if c.Retry.Multiplier < 1 {
		errs = append(errs, errors.New("retry multiplier must be at least 1"))
	}
	if c.Retry.JitterFactor < 0 || c.Retry.JitterFactor > 1 {
		errs = append(errs, errors.New("retry jitter factor must be between 0 and 1"))
	}
	if c.Retry.MaxAttempts < 0 {
		errs = append(errs, errors.New("max attempts cannot be negative"))
	}

	if _, err := zerolog.ParseLevel(c.Logging.Level); err != nil {
		errs = append(errs, fmt.Errorf("invalid log level %q", c.Logging.Level))
	}
	if c.Logging.Format != "console" && c.Logging.Format != "json" {
		errs = append(errs, fmt.Errorf("invalid log format %q (want console or json)", c.Logging.Format))
	}

	return errors.Join(errs...)
}
