// Package config provides configuration loading and structs for the pageindex server.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug     bool            `yaml:"debug"`
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Indexer   IndexerConfig   `yaml:"indexer"`
	Search    SearchConfig    `yaml:"search"`
	Watch     WatchConfig     `yaml:"watch"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// StorageConfig selects the primary page store and the vector store.
type StorageConfig struct {
	// PrimaryKind is "sqlite" (pages table) or "files" (markdown pages under PagesDir).
	PrimaryKind  string `yaml:"primary_kind"`
	DatabasePath string `yaml:"database_path"`
	PagesDir     string `yaml:"pages_dir"`
	// VectorKind is "memory" (snapshot file at VectorPath) or "sqlite" (durable table at VectorPath).
	VectorKind string `yaml:"vector_kind"`
	VectorPath string `yaml:"vector_path"`
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	// Provider is "gemini", "onnx" or "mock".
	Provider   string `yaml:"provider"`
	Model      string `yaml:"model"`
	ModelPath  string `yaml:"model_path"`
	APIKey     string `yaml:"-"`
	Dimensions int    `yaml:"dimensions"`
	MaxTokens  int    `yaml:"max_tokens"`
	CacheSize  int    `yaml:"cache_size"`
	// RequestsPerSecond and Burst pace calls to remote providers.
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
	// BreakerTimeout is how long the circuit stays open after tripping.
	BreakerTimeout time.Duration `yaml:"breaker_timeout"`
}

// IndexerConfig holds batch indexer settings.
type IndexerConfig struct {
	Workers       int           `yaml:"workers"`
	ProgressEvery int           `yaml:"progress_every"`
	MaxRetries    int           `yaml:"max_retries"`
	RetryBackoff  time.Duration `yaml:"retry_backoff"`
	SkipUnchanged bool          `yaml:"skip_unchanged"`
}

// SearchConfig holds search settings.
type SearchConfig struct {
	DefaultTopK int           `yaml:"default_top_k"`
	MaxTopK     int           `yaml:"max_top_k"`
	Timeout     time.Duration `yaml:"timeout"`
}

// WatchConfig holds page directory watch settings. Only used with the "files" primary store.
type WatchConfig struct {
	Enabled    bool          `yaml:"enabled"`
	Extensions []string      `yaml:"extensions"`
	Recursive  *bool         `yaml:"recursive"`
	Debounce   time.Duration `yaml:"debounce"`
}

// RecursiveOrDefault returns whether to watch recursively; defaults to true when unset.
func (w *WatchConfig) RecursiveOrDefault() bool {
	if w.Recursive != nil {
		return *w.Recursive
	}
	return true
}

// TelemetryConfig holds OpenTelemetry exporter settings.
type TelemetryConfig struct {
	Enabled     bool    `yaml:"enabled"`
	Endpoint    string  `yaml:"endpoint"`
	ServiceName string  `yaml:"service_name"`
	SampleRatio float64 `yaml:"sample_ratio"`
}

// Load reads and parses the config file at path, loads a sibling .env file when present,
// applies environment overrides, expands paths, and applies defaults.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	configDir := filepath.Dir(path)
	if err := loadDotEnv(filepath.Join(configDir, ".env")); err != nil {
		return nil, err
	}
	ApplyEnv(&cfg)
	ApplyDefaults(&cfg)

	cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath, configDir)
	cfg.Storage.PagesDir = expandPath(cfg.Storage.PagesDir, configDir)
	cfg.Storage.VectorPath = expandPath(cfg.Storage.VectorPath, configDir)
	cfg.Embedding.ModelPath = expandPath(cfg.Embedding.ModelPath, configDir)

	return &cfg, nil
}

// Default returns a config built only from defaults and the environment.
func Default() *Config {
	var cfg Config
	ApplyEnv(&cfg)
	ApplyDefaults(&cfg)
	return &cfg
}

// Save writes the config to path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// loadDotEnv loads KEY=VALUE pairs from path into the process environment.
// Variables already set in the environment win. A missing file is not an error.
func loadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overrides cfg with PAGEINDEX_* variables and reads GEMINI_API_KEY.
func ApplyEnv(cfg *Config) {
	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		cfg.Embedding.APIKey = v
	}
	if v := os.Getenv("PAGEINDEX_EMBEDDING_PROVIDER"); v != "" {
		cfg.Embedding.Provider = v
	}
	if v := os.Getenv("PAGEINDEX_DATABASE_PATH"); v != "" {
		cfg.Storage.DatabasePath = v
	}
	if v := os.Getenv("PAGEINDEX_VECTOR_PATH"); v != "" {
		cfg.Storage.VectorPath = v
	}
	if v := os.Getenv("PAGEINDEX_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("PAGEINDEX_DEBUG"); v != "" {
		if debug, err := strconv.ParseBool(v); err == nil {
			cfg.Debug = debug
		}
	}
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory. Empty paths stay empty.
func expandPath(path string, configDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
