package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/agentdesk/recall/internal/corpus"
	"github.com/agentdesk/recall/internal/store"
	"github.com/agentdesk/recall/internal/watcher"
)

// newWatchCmd creates the watch command.
func newWatchCmd() *cobra.Command {
	var debounce time.Duration

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Watch the recordings directory and index new action logs",
		Long: `Watch observes the recordings directory and adds every newly
recorded action log to the index as it appears, persisting after each
batch. Runs until interrupted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			s, err := openStore(cmd.Context(), cfg, true)
			if err != nil {
				return err
			}

			w, err := watcher.New(watcher.Options{DebounceWindow: debounce})
			if err != nil {
				return err
			}
			defer func() { _ = w.Stop() }()

			go consumeBatches(cmd.Context(), s, w)

			fmt.Fprintf(cmd.OutOrStdout(), "Watching %s for new action logs (Ctrl+C to stop)\n", cfg.Corpus.Dir)

			err = w.Start(cmd.Context(), cfg.Corpus.Dir)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}

	cmd.Flags().DurationVar(&debounce, "debounce", 0, "Debounce window for file events (default 500ms)")

	return cmd
}

// consumeBatches indexes each batch of new action logs.
func consumeBatches(ctx context.Context, s *store.Store, w *watcher.Watcher) {
	for {
		select {
		case <-ctx.Done():
			return

		case err, ok := <-w.Errors():
			if !ok {
				return
			}
			slog.Warn("watcher error", slog.String("error", err.Error()))

		case batch, ok := <-w.Batches():
			if !ok {
				return
			}
			added := 0
			for _, path := range batch {
				rec, err := corpus.ParseFile(path)
				if err != nil {
					slog.Warn("skipping action log",
						slog.String("file", filepath.Base(path)),
						slog.String("reason", err.Error()))
					continue
				}

				if _, err := s.Add(ctx, rec.RequestText, rec.Narrative, rec.LogFile); err != nil {
					slog.Error("failed to index action log",
						slog.String("file", rec.LogFile),
						slog.String("error", err.Error()))
					continue
				}
				added++
			}

			if added > 0 {
				if err := s.Save(); err != nil {
					slog.Warn("index updated but not saved", slog.String("error", err.Error()))
				}
				slog.Info("indexed new action logs", slog.Int("added", added))
			}
		}
	}
}
