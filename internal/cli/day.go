package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/zapponejosh/teller/internal/calendar"
)

func dayCmd(opts *options) *cobra.Command {
	var days int

	c := &cobra.Command{
		Use:   "day [YYYY-MM-DD]",
		Short: "Compute the record for a date (default today)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if days < 1 {
				return fmt.Errorf("--days must be at least 1, got %d", days)
			}

			cfg, err := opts.config()
			if err != nil {
				return err
			}
			e, err := engine(cfg)
			if err != nil {
				return err
			}

			start := calendar.DateOf(time.Now())
			if len(args) == 1 {
				if start, err = calendar.ParseDateString(args[0]); err != nil {
					return err
				}
			}

			records, err := e.ComputeRange(cmd.Context(), start, start.AddDate(0, 0, days-1), cfg.BaseBranch())
			if err != nil {
				return err
			}

			var v any = records
			if len(records) == 1 {
				v = records[0]
			}
			return opts.render(cmd.OutOrStdout(), v, func(w io.Writer) {
				for i := range records {
					if i > 0 {
						fmt.Fprintln(w)
					}
					writeRecord(w, &records[i])
				}
			})
		},
	}

	c.Flags().IntVarP(&days, "days", "n", 1, "Number of consecutive days to compute")
	return c
}

// writeRecord prints one record as a short block of text.
func writeRecord(w io.Writer, r *calendar.DailyRecord) {
	leap := ""
	if r.LeapMonth {
		leap = " 閏"
	}
	fmt.Fprintf(w, "%s (%s)  %s%s\n", r.Date, r.Weekday, r.LunarLabel, leap)
	fmt.Fprintf(w, "  年 %s  月 %s  日 %s%s  八字年 %s  八字月 %s\n",
		r.YearPillar, r.MonthPillar, r.DayStem, r.DayBranch, r.BaziYearPillar, r.BaziMonthPillar)

	term := r.SolarTerm
	if r.SolarTermTransition != nil {
		term += " (" + *r.SolarTermTransition + ")"
	}
	fmt.Fprintf(w, "  節氣 %s\n", term)
	fmt.Fprintf(w, "  流月 %s %s  流日 %s  四化 %s  [%s %s]\n",
		r.FlowMonth, r.FlowMonthPalace, r.FlowDayPalace, r.FourTransformations, r.YearBranchSource, r.YearBranch)
}
