package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	recallerrors "github.com/agentdesk/recall/internal/errors"
)

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "recordings", cfg.Corpus.Dir)
	assert.Equal(t, "static", cfg.Embeddings.Provider)
	assert.Equal(t, 20, cfg.Index.EfSearch)
	assert.Equal(t, 0.5, cfg.Query.MinSimilarity)
}

func TestLoad_MissingFileYieldsDefaults(t *testing.T) {
	// Given: a cwd without .recall.yaml
	orig, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(orig) })

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default().Corpus.Dir, cfg.Corpus.Dir)
}

func TestLoad_YAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ConfigFileName)
	content := []byte(`
version: 1
corpus:
  dir: /data/recordings
embeddings:
  provider: ollama
  model: nomic-embed-text
query:
  k: 3
  min_similarity: 0.65
`)
	require.NoError(t, os.WriteFile(path, content, 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/data/recordings", cfg.Corpus.Dir)
	assert.Equal(t, "ollama", cfg.Embeddings.Provider)
	assert.Equal(t, "nomic-embed-text", cfg.Embeddings.Model)
	assert.Equal(t, 3, cfg.Query.K)
	assert.Equal(t, 0.65, cfg.Query.MinSimilarity)
	// Untouched fields keep defaults
	assert.Equal(t, 16, cfg.Index.M)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ConfigFileName)
	require.NoError(t, os.WriteFile(path, []byte("corpus:\n  dir: from-file\n"), 0o644))

	t.Setenv("RECALL_CORPUS_DIR", "from-env")
	t.Setenv("RECALL_MIN_SIMILARITY", "0.8")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.Corpus.Dir)
	assert.Equal(t, 0.8, cfg.Query.MinSimilarity)
}

func TestLoad_ExplicitMissingPathFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, &recallerrors.RecallError{Code: recallerrors.ErrCodeConfigNotFound}))
}

func TestLoad_MalformedYAMLFails(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ConfigFileName)
	require.NoError(t, os.WriteFile(path, []byte("corpus: [unclosed"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Equal(t, recallerrors.ErrCodeConfigInvalid, recallerrors.CodeOf(err))
}

func TestValidate_RejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty corpus dir", func(c *Config) { c.Corpus.Dir = "" }},
		{"zero m", func(c *Config) { c.Index.M = 0 }},
		{"zero ef_search", func(c *Config) { c.Index.EfSearch = 0 }},
		{"unknown provider", func(c *Config) { c.Embeddings.Provider = "bert-as-a-service" }},
		{"zero k", func(c *Config) { c.Query.K = 0 }},
		{"similarity above one", func(c *Config) { c.Query.MinSimilarity = 1.5 }},
		{"negative similarity", func(c *Config) { c.Query.MinSimilarity = -0.1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Equal(t, recallerrors.ErrCodeConfigInvalid, recallerrors.CodeOf(err))
		})
	}
}

func TestSaveAndReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sub", ConfigFileName)

	cfg := Default()
	cfg.Corpus.Dir = "/var/recall/recordings"
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg.Corpus.Dir, loaded.Corpus.Dir)
}
