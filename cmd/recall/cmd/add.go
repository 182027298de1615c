package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// newAddCmd creates the add command.
func newAddCmd() *cobra.Command {
	var narrative string
	var logFile string

	cmd := &cobra.Command{
		Use:   "add <request-text>",
		Short: "Add a single completed task to the index",
		Long: `Add appends one (request, narrative) entry to the index and
persists it. The entry is searchable immediately.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			s, err := openStore(cmd.Context(), cfg, true)
			if err != nil {
				return err
			}

			id, err := s.Add(cmd.Context(), args[0], narrative, logFile)
			if err != nil {
				return err
			}

			if err := s.Save(); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "Warning: entry added but index not saved: %v\n", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Added entry %d\n", id)
			return nil
		},
	}

	cmd.Flags().StringVarP(&narrative, "narrative", "n", "", "Narrative of how the task was solved (required)")
	cmd.Flags().StringVar(&logFile, "log-file", "", "Originating action log file name, for traceability")
	_ = cmd.MarkFlagRequired("narrative")

	return cmd
}
