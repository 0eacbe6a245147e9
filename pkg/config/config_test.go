package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	if config.Jira.BaseURL != "https://issues.apache.org/jira" {
		t.Errorf("Expected default base URL to be the public Apache instance, got %s", config.Jira.BaseURL)
	}
	if config.Jira.RequestTimeout != 30*time.Second {
		t.Errorf("Expected default request timeout to be 30s, got %v", config.Jira.RequestTimeout)
	}
	if config.Jira.Fields != "*all" {
		t.Errorf("Expected default fields to be *all, got %s", config.Jira.Fields)
	}
	if config.Fetch.BatchSize != 50 {
		t.Errorf("Expected default batch size to be 50, got %d", config.Fetch.BatchSize)
	}
	if config.Fetch.MaxRetries != 5 {
		t.Errorf("Expected default max retries to be 5, got %d", config.Fetch.MaxRetries)
	}
	if config.Fetch.RateLimitRetries != 8 {
		t.Errorf("Expected default rate limit retries to be 8, got %d", config.Fetch.RateLimitRetries)
	}
	if config.RateLimit.RequestsPerMinute != 60 {
		t.Errorf("Expected default requests per minute to be 60, got %d", config.RateLimit.RequestsPerMinute)
	}
	if config.Output.BaseDirectory != "./outputs" {
		t.Errorf("Expected default output directory to be ./outputs, got %s", config.Output.BaseDirectory)
	}

	if err := config.Validate(); err != nil {
		t.Errorf("Expected default config to be valid: %v", err)
	}
}

func TestDirectoryLayout(t *testing.T) {
	config := DefaultConfig()
	config.Output.BaseDirectory = "/data/harvest"

	if got := config.RawDir(); got != filepath.Join("/data/harvest", "raw") {
		t.Errorf("Unexpected raw dir: %s", got)
	}
	if got := config.ProcessedDir(); got != filepath.Join("/data/harvest", "processed") {
		t.Errorf("Unexpected processed dir: %s", got)
	}
	if got := config.CheckpointFile(); got != filepath.Join("/data/harvest", "state", "checkpoints.json") {
		t.Errorf("Unexpected checkpoint file: %s", got)
	}
}

func TestLoadFromEnv(t *testing.T) {
	os.Setenv("JIRAHARVEST_BASE_URL", "https://jira.internal.example.com")
	os.Setenv("JIRAHARVEST_BATCH_SIZE", "25")
	os.Setenv("JIRAHARVEST_REQUEST_TIMEOUT", "45s")
	os.Setenv("JIRAHARVEST_REQUESTS_PER_MINUTE", "30")
	os.Setenv("JIRAHARVEST_OUTPUT_DIR", "/tmp/test-harvest")
	os.Setenv("JIRAHARVEST_LOG_LEVEL", "debug")

	defer func() {
		os.Unsetenv("JIRAHARVEST_BASE_URL")
		os.Unsetenv("JIRAHARVEST_BATCH_SIZE")
		os.Unsetenv("JIRAHARVEST_REQUEST_TIMEOUT")
		os.Unsetenv("JIRAHARVEST_REQUESTS_PER_MINUTE")
		os.Unsetenv("JIRAHARVEST_OUTPUT_DIR")
		os.Unsetenv("JIRAHARVEST_LOG_LEVEL")
	}()

	config := DefaultConfig()
	if err := config.LoadFromEnv(); err != nil {
		t.Fatalf("Failed to load from environment: %v", err)
	}

	if config.Jira.BaseURL != "https://jira.internal.example.com" {
		t.Errorf("Expected base URL from env, got %s", config.Jira.BaseURL)
	}
	if config.Fetch.BatchSize != 25 {
		t.Errorf("Expected batch size 25, got %d", config.Fetch.BatchSize)
	}
	if config.Jira.RequestTimeout != 45*time.Second {
		t.Errorf("Expected request timeout 45s, got %v", config.Jira.RequestTimeout)
	}
	if config.RateLimit.RequestsPerMinute != 30 {
		t.Errorf("Expected 30 requests per minute, got %d", config.RateLimit.RequestsPerMinute)
	}
	if config.Output.BaseDirectory != "/tmp/test-harvest" {
		t.Errorf("Expected output dir from env, got %s", config.Output.BaseDirectory)
	}
	if config.Logging.Level != "debug" {
		t.Errorf("Expected debug log level, got %s", config.Logging.Level)
	}
}

func TestLoadFromEnvBareSecondsTimeout(t *testing.T) {
	os.Setenv("JIRAHARVEST_REQUEST_TIMEOUT", "15")
	defer os.Unsetenv("JIRAHARVEST_REQUEST_TIMEOUT")

	config := DefaultConfig()
	if err := config.LoadFromEnv(); err != nil {
		t.Fatalf("Failed to load from environment: %v", err)
	}

	if config.Jira.RequestTimeout != 15*time.Second {
		t.Errorf("Expected bare number to mean seconds, got %v", config.Jira.RequestTimeout)
	}
}

func TestLoadFromEnvRejectsGarbage(t *testing.T) {
	cases := []struct {
		name  string
		key   string
		value string
	}{
		{"non-numeric batch size", "JIRAHARVEST_BATCH_SIZE", "abc"},
		{"zero batch size", "JIRAHARVEST_BATCH_SIZE", "0"},
		{"non-numeric rate limit", "JIRAHARVEST_REQUESTS_PER_MINUTE", "sixty"},
		{"negative rate limit", "JIRAHARVEST_REQUESTS_PER_MINUTE", "-1"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			os.Setenv(tc.key, tc.value)
			defer os.Unsetenv(tc.key)

			config := DefaultConfig()
			if err := config.LoadFromEnv(); err == nil {
				t.Errorf("Expected error for %s=%q, got nil", tc.key, tc.value)
			}
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	content := `
jira:
  base_url: https://jira.example.org
  request_timeout: 20s
fetch:
  batch_size: 100
  max_issues: 500
rate_limit:
  requests_per_minute: 120
output:
  base_directory: /srv/harvest
logging:
  level: warn
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	config := DefaultConfig()
	if err := config.LoadFromFile(path); err != nil {
		t.Fatalf("Failed to load config file: %v", err)
	}

	if config.Jira.BaseURL != "https://jira.example.org" {
		t.Errorf("Expected base URL from file, got %s", config.Jira.BaseURL)
	}
	if config.Fetch.BatchSize != 100 {
		t.Errorf("Expected batch size 100, got %d", config.Fetch.BatchSize)
	}
	if config.Fetch.MaxIssues != 500 {
		t.Errorf("Expected max issues 500, got %d", config.Fetch.MaxIssues)
	}
	if config.RateLimit.RequestsPerMinute != 120 {
		t.Errorf("Expected 120 requests per minute, got %d", config.RateLimit.RequestsPerMinute)
	}
	if config.Logging.Level != "warn" {
		t.Errorf("Expected warn log level, got %s", config.Logging.Level)
	}

	// Values absent from the file keep their defaults
	if config.Jira.Fields != "*all" {
		t.Errorf("Expected fields default to survive, got %s", config.Jira.Fields)
	}
}

func TestLoadFromMissingFileIsError(t *testing.T) {
	config := DefaultConfig()
	if err := config.LoadFromFile("/nonexistent/config.yaml"); err == nil {
		t.Error("Expected error for explicitly named missing file")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty base URL", func(c *Config) { c.Jira.BaseURL = "" }},
		{"base URL without scheme", func(c *Config) { c.Jira.BaseURL = "issues.apache.org" }},
		{"zero timeout", func(c *Config) { c.Jira.RequestTimeout = 0 }},
		{"zero batch size", func(c *Config) { c.Fetch.BatchSize = 0 }},
		{"negative max issues", func(c *Config) { c.Fetch.MaxIssues = -1 }},
		{"negative retries", func(c *Config) { c.Fetch.MaxRetries = -1 }},
		{"zero requests per minute", func(c *Config) { c.RateLimit.RequestsPerMinute = 0 }},
		{"empty output dir", func(c *Config) { c.Output.BaseDirectory = "" }},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			config := DefaultConfig()
			test.mutate(config)
			if err := config.Validate(); err == nil {
				t.Error("Expected validation error")
			}
		})
	}
}

func TestMergeCommandLineFlags(t *testing.T) {
	config := DefaultConfig()
	config.MergeCommandLineFlags(map[string]interface{}{
		"base-url":            "https://flags.example.com",
		"output":              "/flag/output",
		"batch-size":          75,
		"requests-per-minute": 90,
		"log-level":           "error",
	})

	if config.Jira.BaseURL != "https://flags.example.com" {
		t.Errorf("Expected base URL from flags, got %s", config.Jira.BaseURL)
	}
	if config.Output.BaseDirectory != "/flag/output" {
		t.Errorf("Expected output dir from flags, got %s", config.Output.BaseDirectory)
	}
	if config.Fetch.BatchSize != 75 {
		t.Errorf("Expected batch size 75, got %d", config.Fetch.BatchSize)
	}
	if config.RateLimit.RequestsPerMinute != 90 {
		t.Errorf("Expected 90 requests per minute, got %d", config.RateLimit.RequestsPerMinute)
	}
	if config.Logging.Level != "error" {
		t.Errorf("Expected error log level, got %s", config.Logging.Level)
	}
}

func TestSaveAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "saved", "config.yaml")

	original := DefaultConfig()
	original.Fetch.BatchSize = 33
	if err := original.Save(path); err != nil {
		t.Fatalf("Failed to save config: %v", err)
	}

	reloaded := DefaultConfig()
	if err := reloaded.LoadFromFile(path); err != nil {
		t.Fatalf("Failed to reload config: %v", err)
	}
	if reloaded.Fetch.BatchSize != 33 {
		t.Errorf("Expected batch size 33 after reload, got %d", reloaded.Fetch.BatchSize)
	}
}

func TestLoadPrecedence(t *testing.T) {
	// File sets one value, env overrides another, flags win over both
	content := "fetch:\n  batch_size: 10\nrate_limit:\n  requests_per_minute: 10\n"
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	os.Setenv("JIRAHARVEST_REQUESTS_PER_MINUTE", "20")
	defer os.Unsetenv("JIRAHARVEST_REQUESTS_PER_MINUTE")

	cfg, err := Load(path, map[string]interface{}{"batch-size": 99})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Fetch.BatchSize != 99 {
		t.Errorf("Expected flag to override file batch size, got %d", cfg.Fetch.BatchSize)
	}
	if cfg.RateLimit.RequestsPerMinute != 20 {
		t.Errorf("Expected env to override file rate limit, got %d", cfg.RateLimit.RequestsPerMinute)
	}
}
