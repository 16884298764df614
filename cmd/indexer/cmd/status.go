package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Report the on-disk checkpoint cache's state",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			d, err := setup(ctx)
			if err != nil {
				return err
			}
			defer d.close(ctx)

			warning, err := d.cache.Load()
			if err != nil {
				return fmt.Errorf("load cache: %w", err)
			}
			if warning != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "warning: %s\n", warning)
			}

			stats := d.cache.Stats()
			fmt.Fprintf(cmd.OutOrStdout(),
				"entries=%d targeted=%d reindex_all=%t created_at=%s last_modified=%s\n",
				stats.EntryCount, stats.TotalTargeted, stats.ReindexAll,
				stats.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
				stats.LastModified.Format("2006-01-02T15:04:05Z07:00"))
			return nil
		},
	}
}
