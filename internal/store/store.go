// Package store is the retrieval façade over the embedder, the
// similarity index, and the id→metadata map. It owns corpus builds,
// incremental additions, queries, and persistence.
//
// Single-writer model: one store-level mutex serializes all mutation;
// queries take the read side. The store is not designed for multiple
// writer processes; Save refuses to run when another process holds
// the index lock.
package store

import (
	"context"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/agentdesk/recall/internal/corpus"
	"github.com/agentdesk/recall/internal/embed"
	recallerrors "github.com/agentdesk/recall/internal/errors"
	"github.com/agentdesk/recall/internal/index"
)

// Metadata is the payload kept for every indexed entry.
type Metadata struct {
	RequestText string    `json:"request_text"`
	Narrative   string    `json:"narrative"`
	Timestamp   time.Time `json:"timestamp"`
	LogFile     string    `json:"log_file"`
}

// Match is one retrieval result, ordered by descending similarity.
type Match struct {
	ID          int64
	RequestText string
	Narrative   string
	Similarity  float64
	LogFile     string
	Timestamp   time.Time
}

// Options configures the store.
type Options struct {
	// Dir is the recordings directory. Index artifacts are persisted
	// inside it, alongside the action logs they were built from.
	Dir string

	// Index holds the graph parameters.
	Index index.Options

	// EmbedWorkers bounds parallel embedding during corpus builds.
	// 0 means runtime.NumCPU().
	EmbedWorkers int
}

// Store combines the embedder, the similarity index, and the metadata
// map behind the public retrieval operations.
type Store struct {
	mu       sync.RWMutex
	embedder embed.Embedder
	opts     Options

	idx    *index.Index
	meta   map[int64]Metadata
	nextID int64
}

// New creates an empty store bound to the given embedder.
func New(embedder embed.Embedder, opts Options) *Store {
	if opts.EmbedWorkers <= 0 {
		opts.EmbedWorkers = runtime.NumCPU()
	}
	return &Store{
		embedder: embedder,
		opts:     opts,
		idx:      index.New(embedder.Dimensions(), opts.Index),
		meta:     make(map[int64]Metadata),
	}
}

// Count returns the number of retained entries.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.meta)
}

// ModelName returns the embedder's model identity.
func (s *Store) ModelName() string {
	return s.embedder.ModelName()
}

// Dimensions returns the embedding dimension.
func (s *Store) Dimensions() int {
	return s.embedder.Dimensions()
}

// BuildFromCorpus loads and deduplicates the action logs in dir,
// embeds every surviving record, and performs a full index build.
// Fresh ids are assigned in encounter order. Any prior in-memory
// state is fully replaced. Returns the number of indexed entries;
// an existing-but-empty corpus yields 0, not an error.
func (s *Store) BuildFromCorpus(ctx context.Context, dir string) (int, error) {
	records, err := corpus.Load(dir)
	if err != nil {
		return 0, err
	}

	vectors, err := s.embedAll(ctx, records)
	if err != nil {
		return 0, err
	}

	idx := index.New(s.embedder.Dimensions(), s.opts.Index)
	meta := make(map[int64]Metadata, len(records))
	items := make([]index.Item, len(records))

	for i, rec := range records {
		id := int64(i)
		items[i] = index.Item{ID: id, Vector: vectors[i]}
		meta[id] = Metadata{
			RequestText: rec.RequestText,
			Narrative:   rec.Narrative,
			Timestamp:   rec.Timestamp,
			LogFile:     rec.LogFile,
		}
	}

	if err := idx.Build(items); err != nil {
		return 0, err
	}

	s.mu.Lock()
	s.idx = idx
	s.meta = meta
	s.nextID = int64(len(records))
	s.mu.Unlock()

	slog.Info("index built from corpus",
		slog.String("dir", dir),
		slog.Int("entries", len(records)))

	return len(records), nil
}

// embedAll embeds every record's request text with bounded parallelism.
func (s *Store) embedAll(ctx context.Context, records []corpus.Record) ([][]float32, error) {
	vectors := make([][]float32, len(records))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.EmbedWorkers)

	for i, rec := range records {
		i, rec := i, rec
		g.Go(func() error {
			vec, err := s.embedder.Embed(gctx, rec.RequestText)
			if err != nil {
				return recallerrors.New(recallerrors.ErrCodeEmbeddingFailed,
					"embed request text", err).WithDetail("file", rec.LogFile)
			}
			vectors[i] = vec
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return vectors, nil
}

// Add assigns the next id, embeds the request text, inserts it into
// the index, and rebuilds before returning. The entry is searchable
// as soon as Add returns.
func (s *Store) Add(ctx context.Context, requestText, narrative, logFile string) (int64, error) {
	if requestText == "" {
		return 0, recallerrors.Newf(recallerrors.ErrCodeInvalidInput, "request text must not be empty")
	}
	if narrative == "" {
		return 0, recallerrors.Newf(recallerrors.ErrCodeInvalidInput, "narrative must not be empty")
	}

	vec, err := s.embedder.Embed(ctx, requestText)
	if err != nil {
		return 0, recallerrors.New(recallerrors.ErrCodeEmbeddingFailed, "embed request text", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	if err := s.idx.Insert(id, vec); err != nil {
		return 0, err
	}
	// Rebuild is O(n); the synchronous cost buys immediate visibility.
	if err := s.idx.Rebuild(); err != nil {
		return 0, err
	}

	s.nextID++
	s.meta[id] = Metadata{
		RequestText: requestText,
		Narrative:   narrative,
		Timestamp:   time.Now(),
		LogFile:     logFile,
	}

	slog.Debug("entry added",
		slog.Int64("id", id),
		slog.String("log_file", logFile))

	return id, nil
}

// Query embeds the request text, searches up to k neighbors, converts
// angular distance to cosine similarity, and returns matches at or
// above minSimilarity in descending similarity order. An empty store,
// or nothing clearing the threshold, yields an empty slice.
func (s *Store) Query(ctx context.Context, requestText string, k int, minSimilarity float64) ([]Match, error) {
	if requestText == "" {
		return nil, recallerrors.Newf(recallerrors.ErrCodeQueryEmpty, "query text must not be empty")
	}
	if k <= 0 {
		return nil, recallerrors.Newf(recallerrors.ErrCodeInvalidInput, "k must be positive, got %d", k)
	}

	s.mu.RLock()
	empty := len(s.meta) == 0
	s.mu.RUnlock()
	if empty {
		return []Match{}, nil
	}

	vec, err := s.embedder.Embed(ctx, requestText)
	if err != nil {
		return nil, recallerrors.New(recallerrors.ErrCodeEmbeddingFailed, "embed query text", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	results, err := s.idx.Search(vec, k)
	if err != nil {
		return nil, err
	}

	// Ascending distance is descending similarity: the conversion is
	// monotonic, so no re-sort is needed.
	matches := make([]Match, 0, len(results))
	for _, r := range results {
		similarity := index.CosineSimilarity(r.Distance)
		if similarity < minSimilarity {
			continue
		}

		meta, ok := s.meta[r.ID]
		if !ok {
			// Index and metadata are kept 1:1; a miss is a bug.
			slog.Error("index result without metadata", slog.Int64("id", r.ID))
			continue
		}

		matches = append(matches, Match{
			ID:          r.ID,
			RequestText: meta.RequestText,
			Narrative:   meta.Narrative,
			Similarity:  similarity,
			LogFile:     meta.LogFile,
			Timestamp:   meta.Timestamp,
		})
	}

	return matches, nil
}
