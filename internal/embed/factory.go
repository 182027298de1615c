package embed

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
)

// ProviderType represents an embedding provider.
type ProviderType string

const (
	// ProviderOllama uses the Ollama API for embeddings.
	ProviderOllama ProviderType = "ollama"

	// ProviderStatic uses hash-based embeddings (no external services).
	ProviderStatic ProviderType = "static"
)

// Options configures embedder construction.
type Options struct {
	Provider  ProviderType
	Model     string
	Host      string
	CacheSize int
}

// NewEmbedder creates an embedder for the given options.
// The RECALL_EMBEDDER environment variable overrides the provider:
//   - "ollama": use the Ollama HTTP API
//   - "static": use hash-based embeddings
//
// Explicitly selecting ollama fails hard when the server is down;
// the default path falls back to static with a warning so that
// retrieval degrades instead of aborting the caller.
// Query embedding caching is enabled unless RECALL_EMBED_CACHE=false.
func NewEmbedder(ctx context.Context, opts Options) (Embedder, error) {
	provider := opts.Provider
	explicit := false

	if env := os.Getenv("RECALL_EMBEDDER"); env != "" {
		provider = ProviderType(strings.ToLower(env))
		explicit = true
	}

	var embedder Embedder
	var err error

	switch provider {
	case ProviderOllama:
		embedder, err = newOllama(ctx, opts)
		if err != nil && !explicit {
			slog.Warn("ollama unavailable, falling back to static embeddings",
				slog.String("error", err.Error()))
			embedder, err = NewStaticEmbedder(), nil
		}

	case ProviderStatic:
		embedder = NewStaticEmbedder()

	default:
		err = fmt.Errorf("unknown embedding provider %q", provider)
	}

	if err != nil {
		return nil, err
	}

	if !isCacheDisabled() {
		embedder = NewCachedEmbedder(embedder, opts.CacheSize)
	}

	return embedder, nil
}

// newOllama builds an Ollama embedder from options plus env overrides.
func newOllama(ctx context.Context, opts Options) (Embedder, error) {
	cfg := DefaultOllamaConfig()
	if opts.Host != "" {
		cfg.Host = opts.Host
	}
	if opts.Model != "" {
		cfg.Model = opts.Model
	}
	if host := os.Getenv("RECALL_OLLAMA_HOST"); host != "" {
		cfg.Host = host
	}
	if model := os.Getenv("RECALL_EMBED_MODEL"); model != "" {
		cfg.Model = model
	}
	return NewOllamaEmbedder(ctx, cfg)
}

// isCacheDisabled checks if embedding cache is disabled via environment.
func isCacheDisabled() bool {
	v := strings.ToLower(os.Getenv("RECALL_EMBED_CACHE"))
	return v == "false" || v == "0" || v == "off" || v == "disabled"
}
