package store

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/gofrs/flock"

	recallerrors "github.com/agentdesk/recall/internal/errors"
	"github.com/agentdesk/recall/internal/index"
)

// Persisted artifact names inside the recordings directory. The
// envelope and the graph are written and read as a pair; neither is
// meaningful alone.
const (
	// IndexFileName is the native graph artifact.
	IndexFileName = "actions.hnsw"
	// EnvelopeFileName is the metadata envelope.
	EnvelopeFileName = "index_metadata.json"
	// lockFileName guards against concurrent writers.
	lockFileName = ".index.lock"
)

// envelope is the persisted metadata document.
type envelope struct {
	ModelName    string              `json:"model_name"`
	EmbeddingDim int                 `json:"embedding_dim"`
	EfSearch     int                 `json:"ef_search"`
	NextID       int64               `json:"next_id"`
	Metadata     map[string]Metadata `json:"metadata"`
}

// IndexPath returns the path of the graph artifact.
func (s *Store) IndexPath() string {
	return filepath.Join(s.opts.Dir, IndexFileName)
}

// EnvelopePath returns the path of the metadata envelope.
func (s *Store) EnvelopePath() string {
	return filepath.Join(s.opts.Dir, EnvelopeFileName)
}

// Save serializes the envelope and the graph artifact to the
// recordings directory, creating it if missing. Writes are atomic
// (temp file + rename). Refuses to run when another process holds
// the index lock.
func (s *Store) Save() error {
	if err := os.MkdirAll(s.opts.Dir, 0o755); err != nil {
		return recallerrors.Wrap(recallerrors.ErrCodeIndexIO, err)
	}

	lock := flock.New(filepath.Join(s.opts.Dir, lockFileName))
	locked, err := lock.TryLock()
	if err != nil {
		return recallerrors.Wrap(recallerrors.ErrCodeIndexIO, err)
	}
	if !locked {
		return recallerrors.Newf(recallerrors.ErrCodeIndexIO,
			"index is locked by another process: %s", lock.Path())
	}
	defer func() { _ = lock.Unlock() }()

	s.mu.RLock()
	env := envelope{
		ModelName:    s.embedder.ModelName(),
		EmbeddingDim: s.embedder.Dimensions(),
		EfSearch:     s.idx.EfSearch(),
		NextID:       s.nextID,
		Metadata:     make(map[string]Metadata, len(s.meta)),
	}
	for id, meta := range s.meta {
		env.Metadata[strconv.FormatInt(id, 10)] = meta
	}
	s.mu.RUnlock()

	if err := writeEnvelope(s.EnvelopePath(), env); err != nil {
		return err
	}
	if err := s.writeGraph(s.IndexPath()); err != nil {
		return err
	}

	slog.Debug("index persisted",
		slog.String("envelope", s.EnvelopePath()),
		slog.Int("entries", len(env.Metadata)))

	return nil
}

// writeEnvelope writes the envelope atomically.
func writeEnvelope(path string, env envelope) error {
	data, err := json.MarshalIndent(env, "", "  ")
	if err != nil {
		return recallerrors.Wrap(recallerrors.ErrCodeInternal, err)
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return recallerrors.Wrap(recallerrors.ErrCodeIndexIO, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return recallerrors.Wrap(recallerrors.ErrCodeIndexIO, err)
	}
	return nil
}

// writeGraph exports the native graph atomically.
func (s *Store) writeGraph(path string) error {
	tmpPath := path + ".tmp"
	file, err := os.Create(tmpPath)
	if err != nil {
		return recallerrors.Wrap(recallerrors.ErrCodeIndexIO, err)
	}

	if err := s.idx.Export(file); err != nil {
		_ = file.Close()
		_ = os.Remove(tmpPath)
		return err
	}
	if err := file.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return recallerrors.Wrap(recallerrors.ErrCodeIndexIO, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return recallerrors.Wrap(recallerrors.ErrCodeIndexIO, err)
	}
	return nil
}

// Load restores the store from the recordings directory. The envelope
// is read first: a stored embedding dimension that disagrees with the
// current embedder is a hard error; a differing model name is a
// warning (dimensions may coincidentally match, results are plausible
// but not guaranteed comparable). Everything loads into fresh state
// that is swapped in only on full success; a failed Load leaves the
// prior in-memory store untouched.
func (s *Store) Load() error {
	data, err := os.ReadFile(s.EnvelopePath())
	if err != nil {
		return recallerrors.Wrap(recallerrors.ErrCodeIndexIO, err)
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return recallerrors.New(recallerrors.ErrCodeEnvelopeCorrupt,
			fmt.Sprintf("parse %s: %v", s.EnvelopePath(), err), err)
	}

	if env.EmbeddingDim != s.embedder.Dimensions() {
		return recallerrors.Newf(recallerrors.ErrCodeDimensionMismatch,
			"embedding dimension mismatch: stored %d vs current %d",
			env.EmbeddingDim, s.embedder.Dimensions())
	}

	if env.ModelName != s.embedder.ModelName() {
		slog.Warn("persisted index uses a different embedding model",
			slog.String("stored", env.ModelName),
			slog.String("current", s.embedder.ModelName()))
	}

	meta := make(map[int64]Metadata, len(env.Metadata))
	ids := make([]int64, 0, len(env.Metadata))
	for key, m := range env.Metadata {
		id, err := strconv.ParseInt(key, 10, 64)
		if err != nil {
			return recallerrors.Newf(recallerrors.ErrCodeEnvelopeCorrupt,
				"invalid metadata id %q", key)
		}
		meta[id] = m
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	opts := s.opts.Index
	if env.EfSearch > 0 {
		opts.EfSearch = env.EfSearch
	}
	idx := index.New(s.embedder.Dimensions(), opts)

	file, err := os.Open(s.IndexPath())
	if err != nil {
		return recallerrors.Wrap(recallerrors.ErrCodeIndexIO, err)
	}
	defer func() { _ = file.Close() }()

	if err := idx.Import(file, ids); err != nil {
		return err
	}

	// Swap in only after every piece has loaded.
	s.mu.Lock()
	s.idx = idx
	s.meta = meta
	s.nextID = env.NextID
	s.mu.Unlock()

	slog.Info("index restored",
		slog.Int("entries", len(meta)),
		slog.String("model", env.ModelName))

	return nil
}

// Exists reports whether both persisted artifacts are present.
func (s *Store) Exists() bool {
	if _, err := os.Stat(s.EnvelopePath()); err != nil {
		return false
	}
	if _, err := os.Stat(s.IndexPath()); err != nil {
		return false
	}
	return true
}
