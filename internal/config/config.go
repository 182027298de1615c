// Package config loads and validates recall configuration from YAML
// files and RECALL_* environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	recallerrors "github.com/agentdesk/recall/internal/errors"
)

// ConfigFileName is the per-directory config file name.
const ConfigFileName = ".recall.yaml"

// Config represents the complete recall configuration.
type Config struct {
	Version    int              `yaml:"version" json:"version"`
	Corpus     CorpusConfig     `yaml:"corpus" json:"corpus"`
	Index      IndexConfig      `yaml:"index" json:"index"`
	Embeddings EmbeddingsConfig `yaml:"embeddings" json:"embeddings"`
	Query      QueryConfig      `yaml:"query" json:"query"`
	Logging    LoggingConfig    `yaml:"logging" json:"logging"`
}

// CorpusConfig configures where action logs are read from.
type CorpusConfig struct {
	// Dir is the recordings directory containing action_log_*.json
	// files. The persisted index lives in the same directory,
	// alongside the logs it was built from.
	Dir string `yaml:"dir" json:"dir"`
}

// IndexConfig configures the similarity index.
type IndexConfig struct {
	// M is the maximum number of graph neighbors per node.
	M int `yaml:"m" json:"m"`
	// EfSearch is the search-time accuracy/speed knob.
	EfSearch int `yaml:"ef_search" json:"ef_search"`
}

// EmbeddingsConfig configures the embedding provider.
type EmbeddingsConfig struct {
	// Provider selects the embedder: "ollama" or "static".
	Provider string `yaml:"provider" json:"provider"`
	// Model is the embedding model name.
	Model string `yaml:"model" json:"model"`
	// OllamaHost is the Ollama API endpoint.
	OllamaHost string `yaml:"ollama_host" json:"ollama_host"`
	// CacheSize is the number of query embeddings kept in the LRU
	// cache. 0 uses the default.
	CacheSize int `yaml:"cache_size" json:"cache_size"`
}

// QueryConfig configures retrieval defaults.
type QueryConfig struct {
	// K is the default number of neighbors returned.
	K int `yaml:"k" json:"k"`
	// MinSimilarity is the default accept threshold (0-1).
	MinSimilarity float64 `yaml:"min_similarity" json:"min_similarity"`
}

// LoggingConfig configures the slog output.
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	File  string `yaml:"file" json:"file"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Version: 1,
		Corpus: CorpusConfig{
			Dir: "recordings",
		},
		Index: IndexConfig{
			M:        16,
			EfSearch: 20,
		},
		Embeddings: EmbeddingsConfig{
			Provider:   "static",
			Model:      "all-minilm",
			OllamaHost: "http://localhost:11434",
		},
		Query: QueryConfig{
			K:             1,
			MinSimilarity: 0.5,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from the given path, falling back to
// ./.recall.yaml and then ~/.config/recall/config.yaml when path is
// empty. A missing file yields the defaults, not an error.
// Environment variables are applied last and win.
func Load(path string) (*Config, error) {
	cfg := Default()

	resolved := path
	if resolved == "" {
		resolved = firstExisting(ConfigFileName, userConfigPath())
	}

	if resolved != "" {
		data, err := os.ReadFile(resolved)
		if err != nil {
			if path == "" && os.IsNotExist(err) {
				// Fall through to defaults
			} else {
				return nil, recallerrors.Wrap(recallerrors.ErrCodeConfigNotFound, err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, recallerrors.New(recallerrors.ErrCodeConfigInvalid,
				fmt.Sprintf("parse %s: %v", resolved, err), err)
		}
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	if c.Corpus.Dir == "" {
		return recallerrors.Newf(recallerrors.ErrCodeConfigInvalid, "corpus.dir must not be empty")
	}
	if c.Index.M <= 0 {
		return recallerrors.Newf(recallerrors.ErrCodeConfigInvalid, "index.m must be positive, got %d", c.Index.M)
	}
	if c.Index.EfSearch <= 0 {
		return recallerrors.Newf(recallerrors.ErrCodeConfigInvalid, "index.ef_search must be positive, got %d", c.Index.EfSearch)
	}
	switch c.Embeddings.Provider {
	case "ollama", "static":
	default:
		return recallerrors.Newf(recallerrors.ErrCodeConfigInvalid,
			"embeddings.provider must be one of ollama, static; got %q", c.Embeddings.Provider)
	}
	if c.Query.K <= 0 {
		return recallerrors.Newf(recallerrors.ErrCodeConfigInvalid, "query.k must be positive, got %d", c.Query.K)
	}
	if c.Query.MinSimilarity < 0 || c.Query.MinSimilarity > 1 {
		return recallerrors.Newf(recallerrors.ErrCodeConfigInvalid,
			"query.min_similarity must be in [0,1], got %v", c.Query.MinSimilarity)
	}
	return nil
}

// Save writes the configuration to the given path as YAML.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return recallerrors.Wrap(recallerrors.ErrCodeInternal, err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return recallerrors.Wrap(recallerrors.ErrCodeIndexIO, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return recallerrors.Wrap(recallerrors.ErrCodeIndexIO, err)
	}
	return nil
}

// applyEnv overlays RECALL_* environment variables onto the config.
func applyEnv(cfg *Config) {
	if v := os.Getenv("RECALL_CORPUS_DIR"); v != "" {
		cfg.Corpus.Dir = v
	}
	if v := os.Getenv("RECALL_EMBEDDER"); v != "" {
		cfg.Embeddings.Provider = strings.ToLower(v)
	}
	if v := os.Getenv("RECALL_EMBED_MODEL"); v != "" {
		cfg.Embeddings.Model = v
	}
	if v := os.Getenv("RECALL_OLLAMA_HOST"); v != "" {
		cfg.Embeddings.OllamaHost = v
	}
	if v := os.Getenv("RECALL_MIN_SIMILARITY"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Query.MinSimilarity = f
		}
	}
	if v := os.Getenv("RECALL_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// userConfigPath returns ~/.config/recall/config.yaml, or empty when
// the home directory cannot be determined.
func userConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "recall", "config.yaml")
}

// firstExisting returns the first path that exists, or empty string.
func firstExisting(paths ...string) string {
	for _, p := range paths {
		if p == "" {
			continue
		}
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}
