package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// newBuildCmd creates the build command.
func newBuildCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "build",
		Short: "Build the retrieval index from all recorded action logs",
		Long: `Build scans the recordings directory, deduplicates repeated
requests (keeping the most recent narrative for each), embeds every
surviving request, builds the similarity index, and persists it.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			s, err := openStore(cmd.Context(), cfg, false)
			if err != nil {
				return err
			}

			count, err := s.BuildFromCorpus(cmd.Context(), cfg.Corpus.Dir)
			if err != nil {
				return err
			}

			if count == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No indexable action logs found")
				return nil
			}

			if err := s.Save(); err != nil {
				// Degrade gracefully: the in-memory build succeeded
				fmt.Fprintf(cmd.ErrOrStderr(), "Warning: index built but not saved: %v\n", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Indexed %d unique requests from %s\n", count, cfg.Corpus.Dir)
			return nil
		},
	}
}
