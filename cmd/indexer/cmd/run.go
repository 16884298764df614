package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/researchgraph/hybridsearch/internal/pipeline"
)

func newRunCmd() *cobra.Command {
	var limit, workers int
	var reindexAll bool

	c := &cobra.Command{
		Use:   "run",
		Short: "Stream fetch, embed, index, and back-sync as a single pass, bypassing the checkpoint cache",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			d, err := setup(ctx)
			if err != nil {
				return err
			}
			defer d.close(ctx)

			result, err := d.newEngine().Run(ctx, pipeline.RunOptions{
				Limit: limit, ReindexAll: reindexAll, Workers: workers,
			})
			fmt.Fprintf(cmd.OutOrStdout(), "run: indexed=%d errors=%d synced=%d\n",
				result.Indexed, result.Errors, result.SyncedOK)
			return err
		},
	}

	c.Flags().IntVar(&limit, "limit", 0, "Maximum number of documents to process")
	c.Flags().BoolVar(&reindexAll, "reindex-all", false, "Clear cross-reference ids before indexing")
	c.Flags().IntVar(&workers, "workers", 0, "Worker goroutine count (default from NUM_WORKERS)")

	return c
}
