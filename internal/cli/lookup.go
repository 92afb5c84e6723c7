package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/zapponejosh/teller/internal/calendar"
)

func parseCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "parse LABEL",
		Short: "Extract the lunar month and day from a label such as 乙巳十一月十三",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := opts.config(); err != nil {
				return err
			}

			label := args[0]
			month, day, err := calendar.ParseLunarLabel(label)
			if err != nil {
				return err
			}

			result := struct {
				Label     string `json:"label"`
				Month     int    `json:"month"`
				Day       int    `json:"day"`
				LeapMonth bool   `json:"leap_month"`
			}{label, month, day, calendar.IsLeapLabel(label)}

			return opts.render(cmd.OutOrStdout(), result, func(w io.Writer) {
				fmt.Fprintf(w, "month %d day %d", month, day)
				if result.LeapMonth {
					fmt.Fprint(w, " (leap)")
				}
				fmt.Fprintln(w)
			})
		},
	}
}

func palaceCmd(opts *options) *cobra.Command {
	var (
		yearBranch string
		label      string
		month, day int
	)

	c := &cobra.Command{
		Use:   "palace",
		Short: "Compute the flow month and day palace",
		Long:  "Computes the flow palaces for a year branch and either a lunar label (--label) or a lunar month and day (--month, --day).",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := opts.config(); err != nil {
				return err
			}

			yb, err := calendar.ParseBranch(yearBranch)
			if err != nil {
				return err
			}

			if label != "" {
				if month, day, err = calendar.ParseLunarLabel(label); err != nil {
					return err
				}
			} else if month == 0 || day == 0 {
				return errors.New("either --label or both --month and --day are required")
			}

			monthPalace, dayPalace, err := calendar.FlowPalaces(yb, month, day)
			if err != nil {
				return err
			}

			result := struct {
				YearBranch      calendar.Branch `json:"year_branch"`
				LunarMonth      int             `json:"lunar_month"`
				LunarDay        int             `json:"lunar_day"`
				FlowMonthPalace calendar.Branch `json:"flow_month_palace"`
				FlowDayPalace   calendar.Branch `json:"flow_day_palace"`
			}{yb, month, day, monthPalace, dayPalace}

			return opts.render(cmd.OutOrStdout(), result, func(w io.Writer) {
				fmt.Fprintf(w, "流月 %s  流日 %s\n", monthPalace, dayPalace)
			})
		},
	}

	c.Flags().StringVarP(&yearBranch, "year-branch", "y", "", "Year branch, e.g. 巳 (required)")
	c.Flags().StringVarP(&label, "label", "l", "", "Lunar date label, e.g. 乙巳十二月初二")
	c.Flags().IntVarP(&month, "month", "m", 0, "Lunar month 1..12")
	c.Flags().IntVar(&day, "day", 0, "Lunar day 1..30")
	_ = c.MarkFlagRequired("year-branch")
	return c
}
