// Package watcher observes a recordings directory and reports newly
// written action logs so they can be added to the retrieval index
// incrementally.
package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/agentdesk/recall/internal/corpus"
)

// Options configures the watcher behavior.
type Options struct {
	// DebounceWindow is how long to wait after the last event before
	// emitting a coalesced batch. The recorder writes logs in several
	// syscalls; debouncing avoids reading half-written files.
	// Default: 500ms
	DebounceWindow time.Duration

	// EventBufferSize is the size of the batch channel buffer.
	// Default: 64
	EventBufferSize int
}

// DefaultOptions returns the default watcher options.
func DefaultOptions() Options {
	return Options{
		DebounceWindow:  500 * time.Millisecond,
		EventBufferSize: 64,
	}
}

// WithDefaults returns options with defaults applied for zero values.
func (o Options) WithDefaults() Options {
	defaults := DefaultOptions()
	if o.DebounceWindow == 0 {
		o.DebounceWindow = defaults.DebounceWindow
	}
	if o.EventBufferSize == 0 {
		o.EventBufferSize = defaults.EventBufferSize
	}
	return o
}

// Watcher watches a single recordings directory (flat, not recursive)
// for new or rewritten action_log_*.json files.
type Watcher struct {
	fsw     *fsnotify.Watcher
	opts    Options
	batches chan []string
	errs    chan error
	stopCh  chan struct{}

	mu      sync.Mutex
	stopped bool
}

// New creates a watcher.
func New(opts Options) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}

	opts = opts.WithDefaults()
	return &Watcher{
		fsw:     fsw,
		opts:    opts,
		batches: make(chan []string, opts.EventBufferSize),
		errs:    make(chan error, 10),
		stopCh:  make(chan struct{}),
	}, nil
}

// Batches returns the channel of coalesced action-log path batches.
// Closed when the watcher stops.
func (w *Watcher) Batches() <-chan []string {
	return w.batches
}

// Errors returns the channel of non-fatal watcher errors.
func (w *Watcher) Errors() <-chan error {
	return w.errs
}

// Start watches dir until the context is cancelled or Stop is called.
// It blocks; run it in its own goroutine.
func (w *Watcher) Start(ctx context.Context, dir string) error {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("resolve watch path: %w", err)
	}
	if err := w.fsw.Add(absDir); err != nil {
		return fmt.Errorf("watch %s: %w", absDir, err)
	}

	slog.Info("watching recordings directory", slog.String("dir", absDir))

	pending := make(map[string]struct{})
	var timer *time.Timer
	var flushC <-chan time.Time

	defer w.closeChannels()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-w.stopCh:
			return nil

		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if !isActionLogEvent(event) {
				continue
			}
			pending[event.Name] = struct{}{}
			// Sliding window: each new event restarts the timer
			if timer == nil {
				timer = time.NewTimer(w.opts.DebounceWindow)
				flushC = timer.C
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(w.opts.DebounceWindow)
			}

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			select {
			case w.errs <- err:
			default:
				slog.Warn("watcher error dropped", slog.String("error", err.Error()))
			}

		case <-flushC:
			batch := make([]string, 0, len(pending))
			for path := range pending {
				batch = append(batch, path)
			}
			sort.Strings(batch)
			pending = make(map[string]struct{})
			timer = nil
			flushC = nil

			select {
			case w.batches <- batch:
			default:
				slog.Warn("watcher batch dropped, consumer too slow",
					slog.Int("size", len(batch)))
			}
		}
	}
}

// Stop stops the watcher and releases resources.
// Safe to call multiple times.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.stopped {
		return nil
	}
	w.stopped = true
	close(w.stopCh)
	return w.fsw.Close()
}

// closeChannels closes the output channels once the loop exits.
func (w *Watcher) closeChannels() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.stopped {
		w.stopped = true
		close(w.stopCh)
		_ = w.fsw.Close()
	}
	close(w.batches)
	close(w.errs)
}

// isActionLogEvent reports whether the event is a create or write of
// an action log file.
func isActionLogEvent(event fsnotify.Event) bool {
	if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
		return false
	}
	matched, err := filepath.Match(corpus.LogFilePattern, filepath.Base(event.Name))
	return err == nil && matched
}
