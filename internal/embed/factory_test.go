package embed

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEmbedder_Static(t *testing.T) {
	e, err := NewEmbedder(context.Background(), Options{Provider: ProviderStatic})
	require.NoError(t, err)
	defer func() { _ = e.Close() }()

	// Cache wrapper is applied by default
	_, ok := e.(*CachedEmbedder)
	assert.True(t, ok)
	assert.Equal(t, "static", e.ModelName())
}

func TestNewEmbedder_CacheDisabledByEnv(t *testing.T) {
	t.Setenv("RECALL_EMBED_CACHE", "false")

	e, err := NewEmbedder(context.Background(), Options{Provider: ProviderStatic})
	require.NoError(t, err)
	defer func() { _ = e.Close() }()

	_, ok := e.(*StaticEmbedder)
	assert.True(t, ok)
}

func TestNewEmbedder_EnvOverridesProvider(t *testing.T) {
	t.Setenv("RECALL_EMBEDDER", "static")

	e, err := NewEmbedder(context.Background(), Options{Provider: ProviderOllama})
	require.NoError(t, err)
	defer func() { _ = e.Close() }()

	assert.Equal(t, "static", e.ModelName())
}

func TestNewEmbedder_UnknownProviderFails(t *testing.T) {
	_, err := NewEmbedder(context.Background(), Options{Provider: "word2vec"})
	assert.Error(t, err)
}
