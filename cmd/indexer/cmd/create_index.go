package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newCreateIndexCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "create-index",
		Short: "Create the search engine index if it does not already exist",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			d, err := setup(ctx)
			if err != nil {
				return err
			}
			defer d.close(ctx)

			if err := d.sch.CreateIndex(ctx); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "index %q ready\n", d.eng.IndexName())
			return nil
		},
	}
}
