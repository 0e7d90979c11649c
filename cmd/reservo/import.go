package main

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

func newImportCmd(base *zerolog.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "import",
		Short: "Sync every configured external calendar once",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, base)
			if err != nil {
				return err
			}
			defer a.close()

			if len(a.cfg.CalendarImport.Sources) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no calendar sources configured")
				return nil
			}

			im, err := newImporter(ctx, a)
			if err != nil {
				return err
			}
			results, err := im.SyncAll(ctx)
			for _, r := range results {
				fmt.Fprintf(cmd.OutOrStdout(), "%-20s business=%d upserted=%d removed=%d skipped_manual=%d skipped_booked=%d regenerated=%t\n",
					r.Source, r.BusinessID, r.Upserted, r.Removed, r.SkippedManual, r.SkippedBooked, r.Triggered)
			}
			return err
		},
	}
}
