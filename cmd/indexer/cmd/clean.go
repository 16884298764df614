package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/researchgraph/hybridsearch/internal/doccache"
)

func newCleanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clean",
		Short: "Remove the on-disk checkpoint cache directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			d, err := setup(ctx)
			if err != nil {
				return err
			}
			defer d.close(ctx)

			if err := doccache.RemoveDir(d.cfg.Cache.Dir); err != nil {
				return fmt.Errorf("remove cache dir: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %s\n", d.cfg.Cache.Dir)
			return nil
		},
	}
}
