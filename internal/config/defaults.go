package config

import "time"

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Storage.PrimaryKind == "" {
		cfg.Storage.PrimaryKind = "sqlite"
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = "/usr/local/var/pageindex/data/db/pages.db"
	}
	if cfg.Storage.PagesDir == "" {
		cfg.Storage.PagesDir = "/usr/local/var/pageindex/data/pages"
	}
	if cfg.Storage.VectorKind == "" {
		cfg.Storage.VectorKind = "memory"
	}
	if cfg.Storage.VectorPath == "" {
		if cfg.Storage.VectorKind == "sqlite" {
			cfg.Storage.VectorPath = "/usr/local/var/pageindex/data/db/vectors.db"
		} else {
			cfg.Storage.VectorPath = "/usr/local/var/pageindex/data/vectors.snapshot"
		}
	}
	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = "gemini"
	}
	if cfg.Embedding.Model == "" {
		cfg.Embedding.Model = "text-embedding-004"
	}
	if cfg.Embedding.ModelPath == "" {
		cfg.Embedding.ModelPath = "/usr/local/var/pageindex/data/models/all-MiniLM-L6-v2.onnx"
	}
	if cfg.Embedding.Dimensions == 0 {
		cfg.Embedding.Dimensions = defaultDimensions(cfg.Embedding.Provider)
	}
	if cfg.Embedding.MaxTokens == 0 {
		cfg.Embedding.MaxTokens = 256
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 1000
	}
	if cfg.Embedding.RequestsPerSecond == 0 {
		cfg.Embedding.RequestsPerSecond = 10
	}
	if cfg.Embedding.Burst == 0 {
		cfg.Embedding.Burst = 5
	}
	if cfg.Embedding.BreakerTimeout == 0 {
		cfg.Embedding.BreakerTimeout = 60 * time.Second
	}
	if cfg.Indexer.Workers == 0 {
		cfg.Indexer.Workers = 4
	}
	if cfg.Indexer.ProgressEvery == 0 {
		cfg.Indexer.ProgressEvery = 10
	}
	if cfg.Indexer.MaxRetries == 0 {
		cfg.Indexer.MaxRetries = 3
	}
	if cfg.Indexer.RetryBackoff == 0 {
		cfg.Indexer.RetryBackoff = 250 * time.Millisecond
	}
	if cfg.Search.DefaultTopK == 0 {
		cfg.Search.DefaultTopK = 5
	}
	if cfg.Search.MaxTopK == 0 {
		cfg.Search.MaxTopK = 50
	}
	if cfg.Search.Timeout == 0 {
		cfg.Search.Timeout = 10 * time.Second
	}
	if cfg.Watch.Extensions == nil {
		cfg.Watch.Extensions = []string{".md", ".markdown", ".txt"}
	}
	if cfg.Watch.Debounce == 0 {
		cfg.Watch.Debounce = 400 * time.Millisecond
	}
	// Recursive defaults to true when unset (nil).
	if cfg.Watch.Enabled && cfg.Watch.Recursive == nil {
		t := true
		cfg.Watch.Recursive = &t
	}
	if cfg.Telemetry.Endpoint == "" {
		cfg.Telemetry.Endpoint = "localhost:4317"
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = "pageindex"
	}
	if cfg.Telemetry.SampleRatio == 0 {
		cfg.Telemetry.SampleRatio = 0.1
	}
}

// defaultDimensions is the output size of each provider's default model: text-embedding-004
// for gemini, all-MiniLM-L6-v2 for onnx.
func defaultDimensions(provider string) int {
	switch provider {
	case "onnx", "mock":
		return 384
	}
	return 768
}
