package main

import (
	"encoding/json"
	"errors"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"reservo/internal/model"
	"reservo/internal/regen"
)

func newRegenerateCmd(base *zerolog.Logger) *cobra.Command {
	var (
		businessID  int64
		advanceDays int
		silent      bool
	)

	cmd := &cobra.Command{
		Use:   "regenerate",
		Short: "Rebuild the slots of a business and print the result",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if advanceDays < 0 {
				return errors.New("--advance-days must not be negative")
			}
			a, err := newApp(cmd.Context(), base)
			if err != nil {
				return err
			}
			defer a.close()

			res := a.trigger.Regenerate(cmd.Context(), businessID, model.ReasonManual, regen.Options{
				AdvanceDays: advanceDays,
				Silent:      silent,
			})

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(res); err != nil {
				return err
			}
			if !res.Success {
				return errors.New(res.ErrorCode + ": " + res.ErrorMessage)
			}
			return nil
		},
	}

	cmd.Flags().Int64VarP(&businessID, "business", "b", 0, "business id")
	cmd.Flags().IntVar(&advanceDays, "advance-days", 0, "horizon in days (0 uses the business policy)")
	cmd.Flags().BoolVar(&silent, "silent", false, "do not publish the regenerated event")
	_ = cmd.MarkFlagRequired("business")
	return cmd
}
