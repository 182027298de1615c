package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// newStatsCmd creates the stats command.
func newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show index statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			s, err := openStore(cmd.Context(), cfg, true)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Corpus directory: %s\n", cfg.Corpus.Dir)
			fmt.Fprintf(out, "Entries:          %d\n", s.Count())
			fmt.Fprintf(out, "Model:            %s\n", s.ModelName())
			fmt.Fprintf(out, "Dimensions:       %d\n", s.Dimensions())
			fmt.Fprintf(out, "Index artifact:   %s\n", s.IndexPath())
			fmt.Fprintf(out, "Envelope:         %s\n", s.EnvelopePath())
			if !s.Exists() {
				fmt.Fprintln(out, "Persisted index:  none (run 'recall build')")
			}
			return nil
		},
	}
}
