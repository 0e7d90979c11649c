package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"reservo/internal/calendar"
	"reservo/internal/model"
	"reservo/internal/slots"
)

func newResolveCmd(base *zerolog.Logger) *cobra.Command {
	var (
		businessID int64
		from, to   string
		asJSON     bool
		windows    bool
	)

	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Print the effective schedule of a business for a date range",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd.Context(), base)
			if err != nil {
				return err
			}
			defer a.close()

			if from == "" {
				from = a.calendar.Today(cmd.Context(), businessID)
			}
			if to == "" {
				to = from
			}
			days, err := a.calendar.Days(cmd.Context(), businessID, from, to)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(days)
			}
			for _, d := range days {
				fmt.Fprintln(out, formatDay(d))
				if !windows || !d.IsOpen {
					continue
				}
				stored, err := a.db.ListSlots(cmd.Context(), businessID, d.Date)
				if err != nil {
					return err
				}
				for _, w := range slots.Windows(stored) {
					fmt.Fprintf(out, "    bookable: %s-%s (%s)\n", w.Start, w.End, w.Label)
				}
			}
			return nil
		},
	}

	cmd.Flags().Int64VarP(&businessID, "business", "b", 0, "business id")
	cmd.Flags().StringVar(&from, "from", "", "first date, YYYY-MM-DD (defaults to today in the business zone)")
	cmd.Flags().StringVar(&to, "to", "", "last date, YYYY-MM-DD (defaults to --from)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	cmd.Flags().BoolVar(&windows, "windows", false, "list bookable windows from the stored slots")
	_ = cmd.MarkFlagRequired("business")
	return cmd
}

func formatDay(d calendar.DayView) string {
	var b strings.Builder
	b.WriteString(d.Date)
	if !d.IsOpen {
		b.WriteString("  closed")
	} else {
		shifts := make([]string, 0, len(d.Shifts))
		for _, sh := range d.Shifts {
			shifts = append(shifts, sh.Start+"-"+sh.End)
		}
		if len(shifts) == 0 {
			shifts = append(shifts, d.OpenTime+"-"+d.CloseTime)
		}
		b.WriteString("  " + strings.Join(shifts, ", "))
	}
	if d.IsException {
		b.WriteString("  [exception")
		if d.ExceptionReason != "" {
			b.WriteString(": " + d.ExceptionReason)
		}
		b.WriteString("]")
	}
	for _, abs := range d.Absences {
		b.WriteString("\n    absent: " + abs.EmployeeName)
		if abs.AllDay || abs.StartTime == nil || abs.EndTime == nil {
			b.WriteString(" (all day)")
		} else {
			b.WriteString(fmt.Sprintf(" (%s-%s)", *abs.StartTime, *abs.EndTime))
		}
		if abs.Reason != model.AbsenceOther {
			b.WriteString(" " + string(abs.Reason))
		}
	}
	return b.String()
}
