package commands

import (
	"time"

	"github.com/spf13/cobra"
)

// NewHistoryCommand creates the history command.
func NewHistoryCommand() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent rule runs and CSV imports",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc, cleanup, err := NewStoreContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			executions, err := cc.Store.History(cmd.Context(), limit)
			if err != nil {
				return err
			}

			t := newTable(cmd.OutOrStdout(), "Started", "Kind", "Name", "Target", "Read", "Written", "Status", "Duration", "Error")
			for _, e := range executions {
				t.AppendRow([]any{
					e.StartedAt.Local().Format(time.DateTime),
					e.Kind, e.Name, e.Target,
					e.RowsRead, e.RowsWritten,
					e.Status, formatDuration(e.Duration), e.Error,
				})
			}
			t.Render()
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of entries to show (0 for all)")

	return cmd
}
