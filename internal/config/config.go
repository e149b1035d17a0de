// Package config provides configuration loading and structs for the regclause server.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug     bool             `yaml:"debug"`
	Server    ServerConfig     `yaml:"server"`
	Documents []DocumentConfig `yaml:"documents"`
	Storage   StorageConfig    `yaml:"storage"`
	Embedding EmbeddingConfig  `yaml:"embedding"`
	Search    SearchConfig     `yaml:"search"`
	Watch     WatchConfig      `yaml:"watch"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string   `yaml:"host"`
	Port         int      `yaml:"port"`
	AllowOrigins []string `yaml:"allow_origins"`
}

// DocumentConfig names one source document. Key is the short identifier reported by
// /health and used for the <KEY>_PATH environment override; Label becomes Clause.Source.
type DocumentConfig struct {
	Key   string `yaml:"key"`
	Label string `yaml:"label"`
	Path  string `yaml:"path"`
}

// Storage backends for the clause index cache.
const (
	BackendJSON   = "json"
	BackendSQLite = "sqlite"
)

// StorageConfig holds cache locations.
type StorageConfig struct {
	Backend        string `yaml:"backend"`
	IndexPath      string `yaml:"index_path"`
	EmbeddingsPath string `yaml:"embeddings_path"`
}

// Embedding providers.
const (
	ProviderONNX   = "onnx"
	ProviderOpenAI = "openai"
	ProviderHash   = "hash"
)

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	Provider   string `yaml:"provider"`
	ModelPath  string `yaml:"model_path"`
	Model      string `yaml:"model"`
	BaseURL    string `yaml:"base_url"`
	APIKey     string `yaml:"api_key"`
	Dimensions int    `yaml:"dimensions"`
	MaxTokens  int    `yaml:"max_tokens"`
	CacheSize  int    `yaml:"cache_size"`
	BatchSize  int    `yaml:"batch_size"`
	// TextBudget caps the clause text (in characters) sent to the provider.
	TextBudget int `yaml:"text_budget"`
}

// SearchConfig holds query defaults.
type SearchConfig struct {
	DefaultTopK        int     `yaml:"default_top_k"`
	MaxTopK            int     `yaml:"max_top_k"`
	DefaultAlpha       float64 `yaml:"default_alpha"`
	SemanticCandidates int     `yaml:"semantic_candidates"`
	PreviewLimit       int     `yaml:"preview_limit"`
	MaxPreviewLimit    int     `yaml:"max_preview_limit"`
}

// WatchConfig controls the source document watcher.
type WatchConfig struct {
	Enabled    bool `yaml:"enabled"`
	DebounceMs int  `yaml:"debounce_ms"`
}

// Load reads and parses the config file at path, applies defaults and environment
// overrides, and expands paths. Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)
	ApplyEnv(&cfg, os.Getenv)
	expandPaths(&cfg, filepath.Dir(path))
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the configuration used when no config file exists: defaults plus
// environment overrides, with "./" paths relative to the working directory.
func Default() (*Config, error) {
	var cfg Config
	ApplyDefaults(&cfg)
	ApplyEnv(&cfg, os.Getenv)
	dir, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("working directory: %w", err)
	}
	expandPaths(&cfg, dir)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Save writes the config to path, creating its directory.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// Validate rejects configurations the server cannot run with.
func (c *Config) Validate() error {
	seen := make(map[string]bool, len(c.Documents))
	for i, d := range c.Documents {
		if d.Key == "" || d.Label == "" || d.Path == "" {
			return fmt.Errorf("documents[%d]: key, label and path are required", i)
		}
		if seen[d.Key] {
			return fmt.Errorf("documents[%d]: duplicate key %q", i, d.Key)
		}
		if d.Key == "status" || d.Key == "count" || d.Key == "embeddings_ready" {
			return fmt.Errorf("documents[%d]: key %q collides with a health field", i, d.Key)
		}
		seen[d.Key] = true
	}
	switch c.Storage.Backend {
	case BackendJSON, BackendSQLite:
	default:
		return fmt.Errorf("unknown storage backend %q (supported: json, sqlite)", c.Storage.Backend)
	}
	switch c.Embedding.Provider {
	case ProviderONNX, ProviderOpenAI, ProviderHash:
	default:
		return fmt.Errorf("unknown embedding provider %q (supported: onnx, openai, hash)", c.Embedding.Provider)
	}
	if c.Search.DefaultAlpha < 0 || c.Search.DefaultAlpha > 1 {
		return fmt.Errorf("search.default_alpha must be between 0 and 1, got %v", c.Search.DefaultAlpha)
	}
	return nil
}

// DocumentPaths returns the configured document paths in order.
func (c *Config) DocumentPaths() []string {
	paths := make([]string, len(c.Documents))
	for i, d := range c.Documents {
		paths[i] = d.Path
	}
	return paths
}

func expandPaths(cfg *Config, configDir string) {
	cfg.Storage.IndexPath = expandPath(cfg.Storage.IndexPath, configDir)
	cfg.Storage.EmbeddingsPath = expandPath(cfg.Storage.EmbeddingsPath, configDir)
	if cfg.Embedding.ModelPath != "" {
		cfg.Embedding.ModelPath = expandPath(cfg.Embedding.ModelPath, configDir)
	}
	for i := range cfg.Documents {
		cfg.Documents[i].Path = expandPath(cfg.Documents[i].Path, configDir)
	}
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
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
