package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/researchgraph/hybridsearch/internal/pipeline"
)

func newPhase1Cmd() *cobra.Command {
	var limit, workers int
	var reindexAll bool

	c := &cobra.Command{
		Use:   "phase1",
		Short: "Fetch and embed documents into the on-disk checkpoint cache",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			d, err := setup(ctx)
			if err != nil {
				return err
			}
			defer d.close(ctx)

			result, err := d.newEngine().Phase1(ctx, pipeline.Phase1Options{
				Limit: limit, ReindexAll: reindexAll, Workers: workers,
			})
			if !quiet {
				fmt.Fprintf(cmd.OutOrStdout(), "phase1: processed=%d skipped=%d errors=%d\n",
					result.Processed, result.Skipped, result.Errors)
			}
			return err
		},
	}

	c.Flags().IntVar(&limit, "limit", 0, "Maximum number of documents to process")
	c.Flags().BoolVar(&reindexAll, "reindex-all", false, "Discard the existing checkpoint cache and start fresh")
	c.Flags().IntVar(&workers, "workers", 0, "Worker goroutine count (default from NUM_WORKERS)")
	c.Flags().BoolVar(&quiet, "quiet", false, "Suppress progress output")

	return c
}
