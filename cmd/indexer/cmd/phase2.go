package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/researchgraph/hybridsearch/internal/pipeline"
)

func newPhase2Cmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "phase2",
		Short: "Bulk-index the checkpoint cache into the search engine and back-sync cross-reference ids",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			d, err := setup(ctx)
			if err != nil {
				return err
			}
			defer d.close(ctx)

			result, err := d.newEngine().Phase2(ctx, pipeline.Phase2Options{})
			if !quiet {
				fmt.Fprintf(cmd.OutOrStdout(), "phase2: indexed=%d errors=%d synced=%d\n",
					result.Indexed, result.Errors, result.SyncedOK)
			}
			return err
		},
	}

	c.Flags().BoolVar(&quiet, "quiet", false, "Suppress progress output")

	return c
}
