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

// Config holds the semsearch service configuration.
type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Database  DatabaseConfig  `yaml:"database"`
	Auth      AuthConfig      `yaml:"auth"`
	Logging   LoggingConfig   `yaml:"logging"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Image     ImageConfig     `yaml:"image"`
	Fetch     FetchConfig     `yaml:"fetch"`
	Storage   StorageConfig   `yaml:"storage"`
	Search    SearchConfig    `yaml:"search"`
	Ingest    IngestConfig    `yaml:"ingest"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int   `yaml:"port"`
	ReadTimeoutSec  int   `yaml:"read_timeout_sec"`
	WriteTimeoutSec int   `yaml:"write_timeout_sec"`
	ShutdownSec     int   `yaml:"shutdown_timeout_sec"`
	MaxBodyBytes    int64 `yaml:"max_body_bytes"`
}

// DatabaseConfig holds Redis connection settings.
type DatabaseConfig struct {
	Addrs            []string `yaml:"addrs"`
	Password         string   `yaml:"password"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// EmbeddingConfig holds the text embedding provider settings.
// An empty BaseURL disables semantic text encoding.
type EmbeddingConfig struct {
	Provider    string `yaml:"provider"`
	BaseURL     string `yaml:"base_url"`
	APIKey      string `yaml:"api_key"`
	Model       string `yaml:"model"`
	Dimensions  int    `yaml:"dimensions"`
	Instruction string `yaml:"instruction"`
	CacheTTLSec int    `yaml:"cache_ttl_sec"` // 0 = no expiry
	NoCache     bool   `yaml:"no_cache"`
}

// Enabled reports whether a text embedding provider is configured.
func (e EmbeddingConfig) Enabled() bool { return e.BaseURL != "" }

// ImageConfig holds the image feature extraction service settings.
// An empty BackboneURL disables image encoding.
type ImageConfig struct {
	BackboneURL string `yaml:"backbone_url"`
	Model       string `yaml:"model"`
	Dimensions  int    `yaml:"dimensions"`
	TimeoutSec  int    `yaml:"timeout_sec"`
}

// Enabled reports whether an image backbone is configured.
func (i ImageConfig) Enabled() bool { return i.BackboneURL != "" }

// FetchConfig limits image downloads.
type FetchConfig struct {
	TimeoutSec int   `yaml:"timeout_sec"`
	MaxBytes   int64 `yaml:"max_bytes"`
}

// StorageConfig holds storage locations.
type StorageConfig struct {
	KeyPrefix     string `yaml:"key_prefix"`
	TextPath      string `yaml:"text_path"`
	ImageDir      string `yaml:"image_dir"`
	ImageInMemory bool   `yaml:"image_in_memory"`
}

// SearchConfig holds scoring defaults.
type SearchConfig struct {
	TextThreshold float64    `yaml:"text_threshold"`
	Post          PostConfig `yaml:"post"`
}

// PostConfig holds the composite post score settings.
// Both weights zero selects the 0.5/0.5 default.
type PostConfig struct {
	MessageWeight float64  `yaml:"message_weight"`
	ImageWeight   float64  `yaml:"image_weight"`
	Threshold     *float64 `yaml:"threshold"`
}

// IngestConfig sizes the ingestion worker pool.
type IngestConfig struct {
	PoolSize     int `yaml:"pool_size"`
	MaxBatchSize int `yaml:"max_batch_size"`
	MaxJobs      int `yaml:"max_jobs"`
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
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 60
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.HTTP.MaxBodyBytes <= 0 {
		c.HTTP.MaxBodyBytes = 32 << 20
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}
	if c.Embedding.Provider == "" {
		c.Embedding.Provider = "openai"
	}
	if c.Embedding.Model == "" {
		c.Embedding.Model = "paraphrase-multilingual-MiniLM-L12-v2"
	}
	if c.Image.Model == "" {
		c.Image.Model = "resnet18"
	}
	if c.Image.Dimensions <= 0 {
		c.Image.Dimensions = 512
	}
	if c.Image.TimeoutSec <= 0 {
		c.Image.TimeoutSec = 30
	}
	if c.Fetch.TimeoutSec <= 0 {
		c.Fetch.TimeoutSec = 15
	}
	if c.Fetch.MaxBytes <= 0 {
		c.Fetch.MaxBytes = 10 << 20
	}
	if c.Storage.KeyPrefix == "" {
		c.Storage.KeyPrefix = "semsearch:"
	}
	if c.Storage.TextPath == "" {
		c.Storage.TextPath = filepath.Join("data", "texts.json")
	}
	if c.Storage.ImageDir == "" {
		c.Storage.ImageDir = filepath.Join("data", "images")
	}
	if c.Search.Post.MessageWeight == 0 && c.Search.Post.ImageWeight == 0 {
		c.Search.Post.MessageWeight = 0.5
		c.Search.Post.ImageWeight = 0.5
	}
	if c.Search.Post.Threshold == nil {
		threshold := 0.65
		c.Search.Post.Threshold = &threshold
	}
	if c.Ingest.PoolSize <= 0 {
		c.Ingest.PoolSize = 4
	}
	if c.Ingest.MaxBatchSize <= 0 {
		c.Ingest.MaxBatchSize = 1000
	}
	if c.Ingest.MaxJobs <= 0 {
		c.Ingest.MaxJobs = 1000
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if len(c.Database.Addrs) == 0 {
		return fmt.Errorf("database.addrs is required")
	}
	if c.Embedding.Dimensions < 0 {
		return fmt.Errorf("embedding.dimensions must not be negative, got %d", c.Embedding.Dimensions)
	}
	if c.Embedding.CacheTTLSec < 0 {
		return fmt.Errorf("embedding.cache_ttl_sec must not be negative, got %d", c.Embedding.CacheTTLSec)
	}
	if c.Search.Post.MessageWeight < 0 || c.Search.Post.ImageWeight < 0 {
		return fmt.Errorf("search.post weights must not be negative, got %v/%v",
			c.Search.Post.MessageWeight, c.Search.Post.ImageWeight)
	}
	if c.Search.TextThreshold < 0 || c.Search.TextThreshold >= 1 {
		return fmt.Errorf("search.text_threshold must be in [0, 1), got %v", c.Search.TextThreshold)
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
