// Package cmd provides the CLI commands for recall.
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/agentdesk/recall/internal/config"
	"github.com/agentdesk/recall/internal/embed"
	"github.com/agentdesk/recall/internal/index"
	"github.com/agentdesk/recall/internal/logging"
	"github.com/agentdesk/recall/internal/store"
	"github.com/agentdesk/recall/pkg/version"
)

var (
	configPath string
	corpusDir  string
	debugMode  bool

	loggingCleanup func()
)

// NewRootCmd creates the root command for the recall CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "recall",
		Short: "Retrieval index over past task transcripts",
		Long: `Recall remembers how past desktop-agent tasks were solved and
retrieves the most similar past task for a new request, so its
narrative can be injected as in-context guidance.

It indexes the action logs written by the task recorder and answers
semantic queries against them.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	cmd.SetVersionTemplate("recall version {{.Version}}\n")

	cmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file (default: .recall.yaml)")
	cmd.PersistentFlags().StringVar(&corpusDir, "corpus", "", "Recordings directory (overrides config)")
	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging to ~/.recall/logs/")

	cmd.PersistentPreRunE = setupLogging
	cmd.PersistentPostRun = func(*cobra.Command, []string) {
		if loggingCleanup != nil {
			loggingCleanup()
		}
	}

	cmd.AddCommand(
		newInitCmd(),
		newBuildCmd(),
		newAddCmd(),
		newQueryCmd(),
		newStatsCmd(),
		newWatchCmd(),
		newVersionCmd(),
	)

	return cmd
}

// Execute runs the root command with signal-aware context.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return NewRootCmd().ExecuteContext(ctx)
}

// setupLogging installs the default slog logger per flags and config.
func setupLogging(cmd *cobra.Command, _ []string) error {
	cfg := logging.DefaultConfig()
	if debugMode {
		cfg = logging.DebugConfig()
	}
	// Commands print results on stdout; logs stay in the file unless
	// debugging.
	cfg.WriteToStderr = debugMode

	cleanup, err := logging.SetupDefault(cfg)
	if err != nil {
		return fmt.Errorf("setup logging: %w", err)
	}
	loggingCleanup = cleanup
	return nil
}

// loadConfig resolves configuration with flag overrides applied.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if corpusDir != "" {
		cfg.Corpus.Dir = corpusDir
	}
	return cfg, nil
}

// openStore builds the embedder and store for the given config.
// When restore is true and persisted artifacts exist, they are loaded.
func openStore(ctx context.Context, cfg *config.Config, restore bool) (*store.Store, error) {
	embedder, err := embed.NewEmbedder(ctx, embed.Options{
		Provider:  embed.ProviderType(cfg.Embeddings.Provider),
		Model:     cfg.Embeddings.Model,
		Host:      cfg.Embeddings.OllamaHost,
		CacheSize: cfg.Embeddings.CacheSize,
	})
	if err != nil {
		return nil, err
	}

	s := store.New(embedder, store.Options{
		Dir:   cfg.Corpus.Dir,
		Index: indexOptions(cfg),
	})

	if restore && s.Exists() {
		if err := s.Load(); err != nil {
			return nil, err
		}
	}

	return s, nil
}

// indexOptions maps config to graph parameters.
func indexOptions(cfg *config.Config) index.Options {
	return index.Options{
		M:        cfg.Index.M,
		EfSearch: cfg.Index.EfSearch,
	}
}
