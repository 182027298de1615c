package watcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsActionLogEvent(t *testing.T) {
	tests := []struct {
		name string
		path string
		op   fsnotify.Op
		want bool
	}{
		{"new action log", "/r/action_log_20260110_120000.json", fsnotify.Create, true},
		{"rewritten action log", "/r/action_log_001.json", fsnotify.Write, true},
		{"deleted action log", "/r/action_log_001.json", fsnotify.Remove, false},
		{"metadata envelope", "/r/index_metadata.json", fsnotify.Create, false},
		{"graph artifact", "/r/actions.hnsw", fsnotify.Write, false},
		{"unrelated file", "/r/notes.txt", fsnotify.Create, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event := fsnotify.Event{Name: tt.path, Op: tt.op}
			assert.Equal(t, tt.want, isActionLogEvent(event))
		})
	}
}

func TestWatcher_EmitsBatchForNewActionLog(t *testing.T) {
	dir := t.TempDir()

	w, err := New(Options{DebounceWindow: 50 * time.Millisecond})
	require.NoError(t, err)
	defer func() { _ = w.Stop() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = w.Start(ctx, dir) }()

	// Give the watcher a moment to register the directory
	time.Sleep(100 * time.Millisecond)

	// When: the recorder writes a new action log and an unrelated file
	logPath := filepath.Join(dir, "action_log_001.json")
	require.NoError(t, os.WriteFile(logPath, []byte(`{}`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))

	// Then: a batch arrives containing only the action log
	select {
	case batch := <-w.Batches():
		require.Len(t, batch, 1)
		assert.Equal(t, logPath, batch[0])
	case <-time.After(3 * time.Second):
		t.Fatal("no batch received")
	}
}

func TestWatcher_CoalescesRapidWrites(t *testing.T) {
	dir := t.TempDir()

	w, err := New(Options{DebounceWindow: 100 * time.Millisecond})
	require.NoError(t, err)
	defer func() { _ = w.Stop() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = w.Start(ctx, dir) }()

	time.Sleep(100 * time.Millisecond)

	// When: the same log is written several times in a burst
	logPath := filepath.Join(dir, "action_log_002.json")
	for i := 0; i < 5; i++ {
		require.NoError(t, os.WriteFile(logPath, []byte(`{"n":`+string(rune('0'+i))+`}`), 0o644))
		time.Sleep(10 * time.Millisecond)
	}

	// Then: a single batch with one path arrives
	select {
	case batch := <-w.Batches():
		assert.Equal(t, []string{logPath}, batch)
	case <-time.After(3 * time.Second):
		t.Fatal("no batch received")
	}

	// And: no immediate second batch for the same burst
	select {
	case batch := <-w.Batches():
		t.Fatalf("unexpected extra batch: %v", batch)
	case <-time.After(300 * time.Millisecond):
	}
}

func TestWatcher_StopIsIdempotent(t *testing.T) {
	w, err := New(DefaultOptions())
	require.NoError(t, err)

	require.NoError(t, w.Stop())
	require.NoError(t, w.Stop())
}

func TestOptions_WithDefaults(t *testing.T) {
	opts := Options{}.WithDefaults()
	assert.Equal(t, 500*time.Millisecond, opts.DebounceWindow)
	assert.Equal(t, 64, opts.EventBufferSize)

	custom := Options{DebounceWindow: time.Second}.WithDefaults()
	assert.Equal(t, time.Second, custom.DebounceWindow)
	assert.Equal(t, 64, custom.EventBufferSize)
}
