package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

// newQueryCmd creates the query command.
func newQueryCmd() *cobra.Command {
	var k int
	var minSimilarity float64
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "query <request-text>",
		Short: "Find past tasks similar to a request",
		Long: `Query embeds the request text, searches the index for the most
similar past requests, and prints their narratives ranked by
similarity. Results below the similarity threshold are dropped.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("k") {
				k = cfg.Query.K
			}
			if !cmd.Flags().Changed("min-similarity") {
				minSimilarity = cfg.Query.MinSimilarity
			}

			s, err := openStore(cmd.Context(), cfg, true)
			if err != nil {
				return err
			}

			matches, err := s.Query(cmd.Context(), args[0], k, minSimilarity)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()

			if jsonOutput {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(matches)
			}

			if len(matches) == 0 {
				fmt.Fprintln(out, "No similar past tasks found")
				return nil
			}

			for i, m := range matches {
				fmt.Fprintf(out, "%d. %q (similarity %.3f)\n", i+1, m.RequestText, m.Similarity)
				if m.LogFile != "" {
					fmt.Fprintf(out, "   source: %s\n", m.LogFile)
				}
				fmt.Fprintf(out, "   %s\n", m.Narrative)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&k, "k", "k", 1, "Number of results to return")
	cmd.Flags().Float64Var(&minSimilarity, "min-similarity", 0.5, "Minimum cosine similarity (0-1)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit results as JSON")

	return cmd
}
