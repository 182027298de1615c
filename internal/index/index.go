// Package index provides the approximate-nearest-neighbor structure
// over embedded request vectors.
//
// The metric is angular distance: the Euclidean distance between
// unit-normalized vectors, d = sqrt(2*(1-cos)). Under exactly this
// metric, cosine similarity is recovered as 1 - d^2/2; substituting a
// different metric requires re-deriving that conversion.
package index

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"sort"
	"sync"

	"github.com/coder/hnsw"

	recallerrors "github.com/agentdesk/recall/internal/errors"
)

// Item pairs a row id with its embedding vector.
type Item struct {
	ID     int64
	Vector []float32
}

// Result is one nearest neighbor with its angular distance.
type Result struct {
	ID       int64
	Distance float64
}

// Options configures the HNSW graph parameters.
type Options struct {
	// M is the maximum number of neighbors per graph node.
	M int
	// EfSearch is the search-time accuracy/speed knob.
	EfSearch int
}

// DefaultOptions returns the default graph parameters.
func DefaultOptions() Options {
	return Options{M: 16, EfSearch: 20}
}

// Index is a staged-build ANN index. Vectors added with Insert become
// searchable only after the next Rebuild; Build performs the one-shot
// bulk construction. Rebuild is O(current size) and callers must treat
// it as expensive.
type Index struct {
	mu   sync.RWMutex
	dim  int
	opts Options

	graph *hnsw.Graph[int64]

	// vectors and order are the source of truth for rebuilds: every
	// staged or built vector, keyed by id, in insertion order.
	vectors map[int64][]float32
	order   []int64

	built       bool
	stagedDirty bool
}

// New creates an empty index with the given fixed dimension.
// The dimension is fixed for the lifetime of the index; mixing
// dimensions is a hard error.
func New(dim int, opts Options) *Index {
	if opts.M <= 0 {
		opts.M = DefaultOptions().M
	}
	if opts.EfSearch <= 0 {
		opts.EfSearch = DefaultOptions().EfSearch
	}
	return &Index{
		dim:     dim,
		opts:    opts,
		vectors: make(map[int64][]float32),
	}
}

// Dimensions returns the fixed vector dimension.
func (ix *Index) Dimensions() int {
	return ix.dim
}

// EfSearch returns the configured search parameter.
func (ix *Index) EfSearch() int {
	return ix.opts.EfSearch
}

// Len returns the number of vectors held, staged or searchable.
func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.order)
}

// Build performs the one-shot bulk construction. Calling it on an
// index that already holds vectors is an error; discard the index and
// start fresh instead.
func (ix *Index) Build(items []Item) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if ix.built || len(ix.order) > 0 {
		return recallerrors.Newf(recallerrors.ErrCodeIndexFailed,
			"index already built; full rebuild requires a fresh index")
	}

	for _, item := range items {
		if err := ix.stageLocked(item.ID, item.Vector); err != nil {
			return err
		}
	}

	ix.materializeLocked()
	return nil
}

// Insert stages a single vector for inclusion. The vector does not
// become searchable until the next Rebuild.
func (ix *Index) Insert(id int64, vector []float32) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	return ix.stageLocked(id, vector)
}

// Rebuild materializes all staged and previously built vectors into a
// fresh searchable graph. Required after every Insert before the new
// item can be found.
func (ix *Index) Rebuild() error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.materializeLocked()
	return nil
}

// stageLocked validates and records a vector without touching the graph.
func (ix *Index) stageLocked(id int64, vector []float32) error {
	if len(vector) != ix.dim {
		return recallerrors.Newf(recallerrors.ErrCodeDimensionMismatch,
			"vector dimension %d does not match index dimension %d", len(vector), ix.dim)
	}
	if id < 0 {
		return recallerrors.Newf(recallerrors.ErrCodeInvalidInput, "negative id %d", id)
	}
	if _, exists := ix.vectors[id]; exists {
		return recallerrors.Newf(recallerrors.ErrCodeInvalidInput, "duplicate id %d", id)
	}

	vec := make([]float32, len(vector))
	copy(vec, vector)
	normalizeInPlace(vec)

	ix.vectors[id] = vec
	ix.order = append(ix.order, id)
	ix.stagedDirty = true
	return nil
}

// materializeLocked builds a fresh graph from all held vectors.
func (ix *Index) materializeLocked() {
	graph := newGraph(ix.opts)
	for _, id := range ix.order {
		graph.Add(hnsw.MakeNode(id, ix.vectors[id]))
	}
	ix.graph = graph
	ix.built = true
	ix.stagedDirty = false
}

// newGraph constructs an hnsw graph with the angular metric.
// Vectors are normalized on ingest, so Euclidean distance between
// them is exactly the angular distance sqrt(2*(1-cos)).
func newGraph(opts Options) *hnsw.Graph[int64] {
	graph := hnsw.NewGraph[int64]()
	graph.Distance = hnsw.EuclideanDistance
	graph.M = opts.M
	graph.EfSearch = opts.EfSearch
	graph.Ml = 0.25
	return graph
}

// Search returns up to k nearest neighbors by angular distance,
// ascending, ties broken by ascending id. Staged-but-not-rebuilt
// vectors are not visible. An empty index yields an empty slice,
// never an error.
func (ix *Index) Search(query []float32, k int) ([]Result, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	if len(query) != ix.dim {
		return nil, recallerrors.Newf(recallerrors.ErrCodeDimensionMismatch,
			"query dimension %d does not match index dimension %d", len(query), ix.dim)
	}
	if k <= 0 {
		return nil, recallerrors.Newf(recallerrors.ErrCodeInvalidInput, "k must be positive, got %d", k)
	}

	if ix.graph == nil || ix.graph.Len() == 0 {
		return []Result{}, nil
	}

	q := make([]float32, len(query))
	copy(q, query)
	normalizeInPlace(q)

	nodes := ix.graph.Search(q, k)

	results := make([]Result, 0, len(nodes))
	for _, node := range nodes {
		vec, ok := ix.vectors[node.Key]
		if !ok {
			continue
		}
		results = append(results, Result{
			ID:       node.Key,
			Distance: angularDistance(q, vec),
		})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Distance != results[j].Distance {
			return results[i].Distance < results[j].Distance
		}
		return results[i].ID < results[j].ID
	})

	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

// Export writes the native graph structure to w, materializing any
// staged vectors first.
func (ix *Index) Export(w io.Writer) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if ix.graph == nil || ix.stagedDirty {
		ix.materializeLocked()
	}

	if err := ix.graph.Export(w); err != nil {
		return recallerrors.Wrap(recallerrors.ErrCodeIndexIO, err)
	}
	return nil
}

// Import reads a graph previously written by Export and hydrates the
// index with exactly the given ids. Every id must resolve to a vector
// in the imported graph; a missing id means the envelope and the graph
// artifact are out of sync.
func (ix *Index) Import(r io.Reader, ids []int64) error {
	graph := newGraph(ix.opts)

	// coder/hnsw Import requires an io.ByteReader
	if err := graph.Import(bufio.NewReader(r)); err != nil {
		return recallerrors.Wrap(recallerrors.ErrCodeIndexIO, err)
	}

	vectors := make(map[int64][]float32, len(ids))
	order := make([]int64, 0, len(ids))
	for _, id := range ids {
		vec, ok := graph.Lookup(id)
		if !ok {
			return recallerrors.Newf(recallerrors.ErrCodeEnvelopeCorrupt,
				"metadata id %d has no vector in index artifact", id)
		}
		if len(vec) != ix.dim {
			return recallerrors.Newf(recallerrors.ErrCodeDimensionMismatch,
				"stored vector dimension %d does not match index dimension %d", len(vec), ix.dim)
		}
		vectors[id] = vec
		order = append(order, id)
	}
	sort.Slice(order, func(i, j int) bool { return order[i] < order[j] })

	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.graph = graph
	ix.vectors = vectors
	ix.order = order
	ix.built = true
	ix.stagedDirty = false
	return nil
}

// CosineSimilarity converts an angular distance to cosine similarity.
// Exact under this package's metric; see the package comment.
func CosineSimilarity(distance float64) float64 {
	return 1.0 - (distance*distance)/2.0
}

// angularDistance computes the Euclidean distance between two
// unit-normalized vectors in float64 for stable ordering.
func angularDistance(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}

// normalizeInPlace normalizes a vector to unit length in place.
func normalizeInPlace(v []float32) {
	var sumSquares float64
	for _, val := range v {
		sumSquares += float64(val) * float64(val)
	}
	if sumSquares == 0 {
		return
	}
	invMagnitude := float32(1.0 / math.Sqrt(sumSquares))
	for i := range v {
		v[i] *= invMagnitude
	}
}

// String describes the index for diagnostics.
func (ix *Index) String() string {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return fmt.Sprintf("index(dim=%d, size=%d, built=%v)", ix.dim, len(ix.order), ix.built)
}
