package embed

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStaticEmbedder_Deterministic(t *testing.T) {
	// Given: a static embedder
	e := NewStaticEmbedder()
	defer func() { _ = e.Close() }()

	// When: I embed the same text twice
	a, err := e.Embed(context.Background(), "open the downloads folder")
	require.NoError(t, err)
	b, err := e.Embed(context.Background(), "open the downloads folder")
	require.NoError(t, err)

	// Then: the vectors are identical
	assert.Equal(t, a, b)
}

func TestStaticEmbedder_Dimensions(t *testing.T) {
	e := NewStaticEmbedder()
	defer func() { _ = e.Close() }()

	vec, err := e.Embed(context.Background(), "find files")
	require.NoError(t, err)

	assert.Len(t, vec, StaticDimensions)
	assert.Equal(t, StaticDimensions, e.Dimensions())
}

func TestStaticEmbedder_UnitNorm(t *testing.T) {
	e := NewStaticEmbedder()
	defer func() { _ = e.Close() }()

	vec, err := e.Embed(context.Background(), "take a screenshot of the desktop")
	require.NoError(t, err)

	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	assert.InDelta(t, 1.0, math.Sqrt(sum), 1e-5)
}

func TestStaticEmbedder_SimilarTextsAreCloser(t *testing.T) {
	e := NewStaticEmbedder()
	defer func() { _ = e.Close() }()

	ctx := context.Background()
	base, err := e.Embed(ctx, "find all pdf files in documents")
	require.NoError(t, err)
	near, err := e.Embed(ctx, "find pdf files in the documents folder")
	require.NoError(t, err)
	far, err := e.Embed(ctx, "play some jazz music")
	require.NoError(t, err)

	assert.Greater(t, dot(base, near), dot(base, far))
}

func TestStaticEmbedder_EmptyTextYieldsZeroVector(t *testing.T) {
	e := NewStaticEmbedder()
	defer func() { _ = e.Close() }()

	vec, err := e.Embed(context.Background(), "   ")
	require.NoError(t, err)

	for _, v := range vec {
		assert.Zero(t, v)
	}
}

func TestStaticEmbedder_EmbedBatch(t *testing.T) {
	e := NewStaticEmbedder()
	defer func() { _ = e.Close() }()

	texts := []string{"open terminal", "close terminal", "open terminal"}
	vecs, err := e.EmbedBatch(context.Background(), texts)
	require.NoError(t, err)

	require.Len(t, vecs, 3)
	assert.Equal(t, vecs[0], vecs[2])
	assert.NotEqual(t, vecs[0], vecs[1])
}

func TestStaticEmbedder_ClosedErrors(t *testing.T) {
	e := NewStaticEmbedder()
	require.NoError(t, e.Close())

	_, err := e.Embed(context.Background(), "anything")
	assert.Error(t, err)
	assert.False(t, e.Available(context.Background()))
}

func TestTokenize_LowercasesAndSplits(t *testing.T) {
	tokens := tokenize("Open THE Downloads-folder 42")
	assert.Equal(t, []string{"open", "the", "downloads", "folder", "42"}, tokens)
}

func TestFilterStopWords(t *testing.T) {
	filtered := filterStopWords([]string{"open", "the", "downloads", "folder"})
	assert.Equal(t, []string{"open", "downloads", "folder"}, filtered)
}

func TestExtractNgrams(t *testing.T) {
	assert.Equal(t, []string{"abc", "bcd"}, extractNgrams("abcd", 3))
	assert.Empty(t, extractNgrams("ab", 3))
}

// dot computes the inner product of two equal-length vectors.
func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}
