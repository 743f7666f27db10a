// Package config loads the shopgrep configuration from YAML files with
// environment variable expansion.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the shopgrep configuration.
type Config struct {
	Database  DatabaseConfig  `yaml:"database"`
	Storage   StorageConfig   `yaml:"storage"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Chat      ChatConfig      `yaml:"chat"`
	Profile   ProfileConfig   `yaml:"profile"`
	Index     IndexConfig     `yaml:"index"`
	Retrieve  RetrieveConfig  `yaml:"retrieve"`
	Refine    RefineConfig    `yaml:"refine"`
	Ops       OpsConfig       `yaml:"ops"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	Addrs            []string `yaml:"addrs"`
	Username         string   `yaml:"username"`
	Password         string   `yaml:"password"`
	DB               int      `yaml:"db"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// StorageConfig holds key namespace settings.
type StorageConfig struct {
	KeyPrefix string `yaml:"key_prefix"`
	Tenant    string `yaml:"tenant"`
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	APIKey     string `yaml:"api_key"`
	BaseURL    string `yaml:"base_url"`
	Model      string `yaml:"model"`
	Dimensions int    `yaml:"dimensions"`
	TimeoutSec int    `yaml:"timeout_sec"`
}

// ChatConfig holds chat-completion provider settings used for query
// parsing and precision filtering.
type ChatConfig struct {
	APIKey     string `yaml:"api_key"`
	BaseURL    string `yaml:"base_url"`
	Model      string `yaml:"model"`
	TimeoutSec int    `yaml:"timeout_sec"`
}

// ProfileConfig holds schema profiling settings.
type ProfileConfig struct {
	CardinalityThreshold int `yaml:"cardinality_threshold"`
}

// IndexConfig holds embedding-indexer and HNSW settings.
type IndexConfig struct {
	BatchSize       int `yaml:"batch_size"`
	Concurrency     int `yaml:"concurrency"`
	MaxRetries      int `yaml:"max_retries"`
	RetryBackoffMS  int `yaml:"retry_backoff_ms"`
	HNSWM           int `yaml:"hnsw_m"`
	HNSWEFConstruct int `yaml:"hnsw_ef_construction"`
}

// RetrieveConfig holds hybrid retrieval settings.
type RetrieveConfig struct {
	CandidateLimit int     `yaml:"candidate_limit"`
	SQLWeight      float64 `yaml:"sql_weight"`
	SemanticWeight float64 `yaml:"semantic_weight"`
	Prefilter      bool    `yaml:"prefilter"`
	TimeoutSec     int     `yaml:"timeout_sec"`
}

// RefineConfig holds precision-filter settings.
type RefineConfig struct {
	Window     int `yaml:"window"`
	MaxResults int `yaml:"max_results"`
	TimeoutSec int `yaml:"timeout_sec"`
}

// OpsConfig holds the operational HTTP listener settings (metrics, health).
type OpsConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}
	if c.Storage.KeyPrefix == "" {
		c.Storage.KeyPrefix = "shopgrep:"
	}
	if c.Storage.Tenant == "" {
		c.Storage.Tenant = "default"
	}
	if c.Embedding.Model == "" {
		c.Embedding.Model = "text-embedding-3-small"
	}
	if c.Embedding.Dimensions <= 0 {
		c.Embedding.Dimensions = 1536
	}
	if c.Embedding.TimeoutSec <= 0 {
		c.Embedding.TimeoutSec = 30
	}
	if c.Chat.Model == "" {
		c.Chat.Model = "gpt-4o-mini"
	}
	if c.Chat.TimeoutSec <= 0 {
		c.Chat.TimeoutSec = 30
	}
	if c.Profile.CardinalityThreshold <= 0 {
		c.Profile.CardinalityThreshold = 40
	}
	if c.Index.BatchSize <= 0 {
		c.Index.BatchSize = 100
	}
	if c.Index.Concurrency <= 0 {
		c.Index.Concurrency = 4
	}
	if c.Index.MaxRetries <= 0 {
		c.Index.MaxRetries = 3
	}
	if c.Index.RetryBackoffMS <= 0 {
		c.Index.RetryBackoffMS = 500
	}
	if c.Index.HNSWM <= 0 {
		c.Index.HNSWM = 32
	}
	if c.Index.HNSWEFConstruct <= 0 {
		c.Index.HNSWEFConstruct = 400
	}
	if c.Retrieve.CandidateLimit <= 0 {
		c.Retrieve.CandidateLimit = 20
	}
	if c.Retrieve.SQLWeight <= 0 {
		c.Retrieve.SQLWeight = 0.7
	}
	if c.Retrieve.SemanticWeight <= 0 {
		c.Retrieve.SemanticWeight = 0.3
	}
	if c.Retrieve.TimeoutSec <= 0 {
		c.Retrieve.TimeoutSec = 10
	}
	if c.Refine.Window <= 0 {
		c.Refine.Window = 5
	}
	if c.Refine.MaxResults <= 0 {
		c.Refine.MaxResults = 3
	}
	if c.Refine.TimeoutSec <= 0 {
		c.Refine.TimeoutSec = 20
	}
	if c.Ops.Port <= 0 {
		c.Ops.Port = 9090
	}
	if c.Ops.ReadTimeoutSec <= 0 {
		c.Ops.ReadTimeoutSec = 10
	}
	if c.Ops.WriteTimeoutSec <= 0 {
		c.Ops.WriteTimeoutSec = 10
	}
	if c.Ops.ShutdownSec <= 0 {
		c.Ops.ShutdownSec = 10
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if len(c.Database.Addrs) == 0 {
		return fmt.Errorf("database.addrs is required")
	}
	if c.Ops.Port > 65535 {
		return fmt.Errorf("ops.port must be at most 65535, got %d", c.Ops.Port)
	}
	if c.Retrieve.SQLWeight+c.Retrieve.SemanticWeight > 1.0+1e-9 {
		return fmt.Errorf(
			"retrieve.sql_weight + retrieve.semantic_weight must not exceed 1.0, got %g",
			c.Retrieve.SQLWeight+c.Retrieve.SemanticWeight,
		)
	}
	if c.Refine.MaxResults > c.Refine.Window {
		return fmt.Errorf(
			"refine.max_results (%d) must not exceed refine.window (%d)",
			c.Refine.MaxResults, c.Refine.Window,
		)
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
