package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/researchgraph/hybridsearch/internal/doccache"
	"github.com/researchgraph/hybridsearch/internal/pipeline"
)

func newReindexFullCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reindex-full",
		Short: "Delete and recreate the index, clear all state, and reindex everything",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			d, err := setup(ctx)
			if err != nil {
				return err
			}
			defer d.close(ctx)

			if err := d.sch.DeleteIndex(ctx); err != nil {
				return fmt.Errorf("delete index: %w", err)
			}
			if err := d.sch.CreateIndex(ctx); err != nil {
				return fmt.Errorf("create index: %w", err)
			}
			if err := d.store.ClearOpenSearchIDs(ctx); err != nil {
				return fmt.Errorf("clear cross-reference ids: %w", err)
			}
			if err := doccache.RemoveDir(d.cfg.Cache.Dir); err != nil {
				return fmt.Errorf("clear cache: %w", err)
			}

			eng := d.newEngine()

			p1, err := eng.Phase1(ctx, pipeline.Phase1Options{ReindexAll: true})
			fmt.Fprintf(cmd.OutOrStdout(), "phase1: processed=%d skipped=%d errors=%d\n",
				p1.Processed, p1.Skipped, p1.Errors)
			if err != nil {
				return err
			}

			p2, err := eng.Phase2(ctx, pipeline.Phase2Options{})
			fmt.Fprintf(cmd.OutOrStdout(), "phase2: indexed=%d errors=%d synced=%d\n",
				p2.Indexed, p2.Errors, p2.SyncedOK)
			return err
		},
	}
}
