package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentdesk/recall/internal/embed"
	recallerrors "github.com/agentdesk/recall/internal/errors"
)

// newTestStore returns a store over a static embedder and a temp dir.
func newTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	dir := t.TempDir()
	s := New(embed.NewStaticEmbedder(), Options{Dir: dir})
	return s, dir
}

// writeLog writes an action log file into dir.
func writeLog(t *testing.T, dir, name, requestText, narrative, recordedAt string) {
	t.Helper()
	content := fmt.Sprintf(`{
  "request": {"content": {"text": %q}},
  "narrative": %q,
  "recorded_at": %q
}`, requestText, narrative, recordedAt)
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestBuildFromCorpus_MissingDirectoryFails(t *testing.T) {
	s, _ := newTestStore(t)

	_, err := s.BuildFromCorpus(context.Background(), filepath.Join(t.TempDir(), "absent"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, &recallerrors.RecallError{Code: recallerrors.ErrCodeCorpusNotFound}))
}

func TestBuildFromCorpus_EmptyDirectoryReturnsZero(t *testing.T) {
	// Scenario: empty corpus directory exists; build returns 0, no error
	s, dir := newTestStore(t)

	count, err := s.BuildFromCorpus(context.Background(), dir)
	require.NoError(t, err)
	assert.Zero(t, count)
	assert.Zero(t, s.Count())
}

func TestBuildFromCorpus_DedupKeepsLatest(t *testing.T) {
	// Scenario: two records for "find files"; the newer narrative wins
	s, dir := newTestStore(t)
	writeLog(t, dir, "action_log_001.json", "find files", "A", "2026-01-10T09:00:00Z")
	writeLog(t, dir, "action_log_002.json", "find files", "B", "2026-01-12T09:00:00Z")

	count, err := s.BuildFromCorpus(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	matches, err := s.Query(context.Background(), "find files", 1, 0)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "B", matches[0].Narrative)
	assert.Equal(t, "action_log_002.json", matches[0].LogFile)
}

func TestBuildFromCorpus_ReplacesPriorState(t *testing.T) {
	s, dir := newTestStore(t)
	writeLog(t, dir, "action_log_001.json", "first corpus", "n1", "2026-01-10T09:00:00Z")

	_, err := s.BuildFromCorpus(context.Background(), dir)
	require.NoError(t, err)

	// A second build from a different directory fully replaces state
	dir2 := t.TempDir()
	writeLog(t, dir2, "action_log_001.json", "second corpus", "n2", "2026-01-11T09:00:00Z")

	count, err := s.BuildFromCorpus(context.Background(), dir2)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	matches, err := s.Query(context.Background(), "first corpus", 5, 0)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "second corpus", matches[0].RequestText)
}

func TestQuery_EmptyStoreReturnsEmpty(t *testing.T) {
	s, _ := newTestStore(t)

	matches, err := s.Query(context.Background(), "anything at all", 3, 0)
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestQuery_EmptyTextFails(t *testing.T) {
	s, _ := newTestStore(t)

	_, err := s.Query(context.Background(), "", 1, 0)
	require.Error(t, err)
	assert.Equal(t, recallerrors.ErrCodeQueryEmpty, recallerrors.CodeOf(err))
}

func TestQuery_ThresholdMonotonicity(t *testing.T) {
	// For t1 < t2, results at t1 are a superset of results at t2
	s, dir := newTestStore(t)
	writeLog(t, dir, "action_log_001.json", "open the downloads folder", "n1", "2026-01-10T09:00:00Z")
	writeLog(t, dir, "action_log_002.json", "open downloads", "n2", "2026-01-10T10:00:00Z")
	writeLog(t, dir, "action_log_003.json", "play jazz music", "n3", "2026-01-10T11:00:00Z")

	_, err := s.BuildFromCorpus(context.Background(), dir)
	require.NoError(t, err)

	query := "open the downloads directory"
	loose, err := s.Query(context.Background(), query, 10, 0.0)
	require.NoError(t, err)
	tight, err := s.Query(context.Background(), query, 10, 0.3)
	require.NoError(t, err)

	require.GreaterOrEqual(t, len(loose), len(tight))

	inLoose := make(map[int64]bool)
	for _, m := range loose {
		inLoose[m.ID] = true
	}
	for _, m := range tight {
		assert.True(t, inLoose[m.ID], "id %d above the tighter threshold missing from the looser result", m.ID)
		assert.GreaterOrEqual(t, m.Similarity, 0.3)
	}
}

func TestQuery_OrderedByDescendingSimilarity(t *testing.T) {
	s, dir := newTestStore(t)
	writeLog(t, dir, "action_log_001.json", "resize browser window", "n1", "2026-01-10T09:00:00Z")
	writeLog(t, dir, "action_log_002.json", "resize the browser window please", "n2", "2026-01-10T10:00:00Z")
	writeLog(t, dir, "action_log_003.json", "delete old emails", "n3", "2026-01-10T11:00:00Z")

	_, err := s.BuildFromCorpus(context.Background(), dir)
	require.NoError(t, err)

	matches, err := s.Query(context.Background(), "resize browser window", 3, 0)
	require.NoError(t, err)
	require.NotEmpty(t, matches)

	for i := 1; i < len(matches); i++ {
		assert.GreaterOrEqual(t, matches[i-1].Similarity, matches[i].Similarity)
	}
	assert.Equal(t, "resize browser window", matches[0].RequestText)
}

func TestAdd_ImmediatelySearchable(t *testing.T) {
	// Incremental visibility: the new entry is the top result with
	// maximal self-similarity right after Add returns
	s, _ := newTestStore(t)

	id, err := s.Add(context.Background(), "archive last month's reports", "moved them to archive/", "action_log_100.json")
	require.NoError(t, err)
	assert.Equal(t, int64(0), id)

	matches, err := s.Query(context.Background(), "archive last month's reports", 1, 0)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, id, matches[0].ID)
	assert.InDelta(t, 1.0, matches[0].Similarity, 1e-5)
}

func TestAdd_AssignsStrictlyIncreasingIDs(t *testing.T) {
	s, _ := newTestStore(t)

	ctx := context.Background()
	a, err := s.Add(ctx, "task one", "n1", "l1")
	require.NoError(t, err)
	b, err := s.Add(ctx, "task two", "n2", "l2")
	require.NoError(t, err)
	c, err := s.Add(ctx, "task three", "n3", "l3")
	require.NoError(t, err)

	assert.Equal(t, []int64{0, 1, 2}, []int64{a, b, c})
	assert.Equal(t, 3, s.Count())
}

func TestAdd_RejectsEmptyFields(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	_, err := s.Add(ctx, "", "narrative", "l")
	require.Error(t, err)
	assert.Equal(t, recallerrors.ErrCodeInvalidInput, recallerrors.CodeOf(err))

	_, err = s.Add(ctx, "request", "", "l")
	require.Error(t, err)
	assert.Equal(t, recallerrors.ErrCodeInvalidInput, recallerrors.CodeOf(err))
}

func TestAdd_AfterBuildContinuesIDSequence(t *testing.T) {
	s, dir := newTestStore(t)
	writeLog(t, dir, "action_log_001.json", "existing task", "n", "2026-01-10T09:00:00Z")

	count, err := s.BuildFromCorpus(context.Background(), dir)
	require.NoError(t, err)
	require.Equal(t, 1, count)

	id, err := s.Add(context.Background(), "brand new task", "n2", "action_log_002.json")
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)
}

func TestQuery_KLimitsResults(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		_, err := s.Add(ctx, fmt.Sprintf("task number %d", i), "n", "l")
		require.NoError(t, err)
	}

	matches, err := s.Query(ctx, "task number 1", 2, 0)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(matches), 2)
}
