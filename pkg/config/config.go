package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration options for the Jira harvester
type Config struct {
	// Jira connection settings
	Jira JiraConfig `yaml:"jira" json:"jira"`

	// Fetch pipeline settings
	Fetch FetchConfig `yaml:"fetch" json:"fetch"`

	// Rate limiting configuration
	RateLimit RateLimitConfig `yaml:"rate_limit" json:"rate_limit"`

	// Output directory layout
	Output OutputConfig `yaml:"output" json:"output"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// JiraConfig holds settings for the remote Jira instance
type JiraConfig struct {
	BaseURL        string        `yaml:"base_url" json:"base_url"`
	RequestTimeout time.Duration `yaml:"request_timeout" json:"request_timeout"`
	Fields         string        `yaml:"fields" json:"fields"`
	UserAgent      string        `yaml:"user_agent" json:"user_agent"`
}

// FetchConfig holds fetch pipeline settings
type FetchConfig struct {
	// BatchSize is the page size requested from the search endpoint
	BatchSize int `yaml:"batch_size" json:"batch_size"`
	// MaxIssues is a legacy total cap applied only in unlimited mode
	// (0 means no cap). Pending obligations always take priority over it.
	MaxIssues int `yaml:"max_issues" json:"max_issues"`
	// MaxRetries bounds retry attempts for transient failures
	MaxRetries int `yaml:"max_retries" json:"max_retries"`
	// RateLimitRetries bounds retry attempts for 429 responses
	RateLimitRetries int `yaml:"rate_limit_retries" json:"rate_limit_retries"`
}

// RateLimitConfig holds client-side throttling configuration
type RateLimitConfig struct {
	RequestsPerMinute int `yaml:"requests_per_minute" json:"requests_per_minute"`
}

// OutputConfig holds the workspace directory layout
type OutputConfig struct {
	BaseDirectory   string `yaml:"base_directory" json:"base_directory"`
	RawSubdir       string `yaml:"raw_subdir" json:"raw_subdir"`
	ProcessedSubdir string `yaml:"processed_subdir" json:"processed_subdir"`
	StateSubdir     string `yaml:"state_subdir" json:"state_subdir"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	File  string `yaml:"file" json:"file"`
}

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Jira: JiraConfig{
			BaseURL:        "https://issues.apache.org/jira",
			RequestTimeout: 30 * time.Second,
			Fields:         "*all",
			UserAgent:      "jiraharvest/1.0",
		},
		Fetch: FetchConfig{
			BatchSize:        50,
			MaxIssues:        0,
			MaxRetries:       5,
			RateLimitRetries: 8,
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: 60,
		},
		Output: OutputConfig{
			BaseDirectory:   "./outputs",
			RawSubdir:       "raw",
			ProcessedSubdir: "processed",
			StateSubdir:     "state",
		},
		Logging: LoggingConfig{
			Level: "info",
			File:  "",
		},
	}
}

// RawDir returns the directory holding raw issue artifacts.
func (c *Config) RawDir() string {
	return filepath.Join(c.Output.BaseDirectory, c.Output.RawSubdir)
}

// ProcessedDir returns the directory holding flattened JSONL output.
func (c *Config) ProcessedDir() string {
	return filepath.Join(c.Output.BaseDirectory, c.Output.ProcessedSubdir)
}

// CheckpointFile returns the path of the checkpoint file.
func (c *Config) CheckpointFile() string {
	return filepath.Join(c.Output.BaseDirectory, c.Output.StateSubdir, "checkpoints.json")
}

// LoadFromEnv loads configuration from environment variables
func (c *Config) LoadFromEnv() error {
	if base := os.Getenv("JIRAHARVEST_BASE_URL"); base != "" {
		c.Jira.BaseURL = base
	}
	if fields := os.Getenv("JIRAHARVEST_FIELDS"); fields != "" {
		c.Jira.Fields = fields
	}
	if timeout := os.Getenv("JIRAHARVEST_REQUEST_TIMEOUT"); timeout != "" {
		d, err := time.ParseDuration(timeout)
		if err != nil {
			// Bare numbers mean seconds, matching the original tooling
			var secs float64
			if _, serr := fmt.Sscanf(timeout, "%f", &secs); serr == nil && secs > 0 {
				d = time.Duration(secs * float64(time.Second))
			} else {
				return fmt.Errorf("invalid JIRAHARVEST_REQUEST_TIMEOUT %q: %w", timeout, err)
			}
		}
		c.Jira.RequestTimeout = d
	}

	if batch := os.Getenv("JIRAHARVEST_BATCH_SIZE"); batch != "" {
		val, err := strconv.Atoi(batch)
		if err != nil || val <= 0 {
			return fmt.Errorf("invalid JIRAHARVEST_BATCH_SIZE %q: must be a positive integer", batch)
		}
		c.Fetch.BatchSize = val
	}
	if rpm := os.Getenv("JIRAHARVEST_REQUESTS_PER_MINUTE"); rpm != "" {
		val, err := strconv.Atoi(rpm)
		if err != nil || val <= 0 {
			return fmt.Errorf("invalid JIRAHARVEST_REQUESTS_PER_MINUTE %q: must be a positive integer", rpm)
		}
		c.RateLimit.RequestsPerMinute = val
	}

	if outputDir := os.Getenv("JIRAHARVEST_OUTPUT_DIR"); outputDir != "" {
		c.Output.BaseDirectory = outputDir
	}

	if logLevel := os.Getenv("JIRAHARVEST_LOG_LEVEL"); logLevel != "" {
		c.Logging.Level = logLevel
	}

	return nil
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
	// If path is empty, try default locations
	if path == "" {
		path = c.findConfigFile()
		if path == "" {
			return nil // No config file found, not an error
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// findConfigFile searches for config file in standard locations
func (c *Config) findConfigFile() string {
	locations := []string{
		".jiraharvest.yaml",
		".jiraharvest.yml",
		filepath.Join(os.Getenv("HOME"), ".config", "jiraharvest", "config.yaml"),
		filepath.Join(os.Getenv("HOME"), ".config", "jiraharvest", "config.yml"),
		filepath.Join(os.Getenv("HOME"), ".jiraharvest.yaml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	if c.Jira.BaseURL == "" {
		errs = append(errs, errors.New("jira base URL is required"))
	} else if !strings.HasPrefix(c.Jira.BaseURL, "http://") && !strings.HasPrefix(c.Jira.BaseURL, "https://") {
		errs = append(errs, errors.New("jira base URL must start with http:// or https://"))
	}
	if c.Jira.RequestTimeout <= 0 {
		errs = append(errs, errors.New("request timeout must be positive"))
	}

	if c.Fetch.BatchSize <= 0 {
		errs = append(errs, errors.New("batch size must be positive"))
	}
	if c.Fetch.MaxIssues < 0 {
		errs = append(errs, errors.New("max issues cannot be negative"))
	}
	if c.Fetch.MaxRetries < 0 {
		errs = append(errs, errors.New("max retries cannot be negative"))
	}
	if c.Fetch.RateLimitRetries < 0 {
		errs = append(errs, errors.New("rate limit retries cannot be negative"))
	}

	if c.RateLimit.RequestsPerMinute <= 0 {
		errs = append(errs, errors.New("requests per minute must be positive"))
	}

	if c.Output.BaseDirectory == "" {
		errs = append(errs, errors.New("output directory is required"))
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, errors.New("invalid log level"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// MergeCommandLineFlags merges command line flags into the configuration
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if base, ok := flags["base-url"].(string); ok && base != "" {
		c.Jira.BaseURL = base
	}
	if outputDir, ok := flags["output"].(string); ok && outputDir != "" {
		c.Output.BaseDirectory = outputDir
	}
	if batch, ok := flags["batch-size"].(int); ok && batch > 0 {
		c.Fetch.BatchSize = batch
	}
	if rpm, ok := flags["requests-per-minute"].(int); ok && rpm > 0 {
		c.RateLimit.RequestsPerMinute = rpm
	}
	if level, ok := flags["log-level"].(string); ok && level != "" {
		c.Logging.Level = level
	}
}

// Load creates a configuration by merging defaults, an optional .env file,
// a config file, environment variables, and command line flags, in that
// order of increasing precedence.
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	// A missing .env file is fine; it only seeds the process environment.
	_ = godotenv.Load()

	cfg := DefaultConfig()

	if err := cfg.LoadFromFile(configPath); err != nil {
		return nil, err
	}

	if err := cfg.LoadFromEnv(); err != nil {
		return nil, err
	}

	cfg.MergeCommandLineFlags(flags)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}
