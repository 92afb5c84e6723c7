package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/zapponejosh/teller/internal/calendar"
	"github.com/zapponejosh/teller/internal/database"
)

func generateCmd(opts *options) *cobra.Command {
	var start, end string

	c := &cobra.Command{
		Use:   "generate",
		Short: "Compute records for a date range and store them",
		Long:  "Computes every date from --start to --end inclusive and upserts the records. The batch is stored in one transaction.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			from, to, err := parseRange(start, end)
			if err != nil {
				return err
			}

			cfg, err := opts.config()
			if err != nil {
				return err
			}
			e, err := engine(cfg)
			if err != nil {
				return err
			}

			records, err := e.ComputeRange(cmd.Context(), from, to, cfg.BaseBranch())
			if err != nil {
				return err
			}

			db, err := openDB(cmd.Context(), cfg, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer db.Close()

			if err := db.UpsertDailyRecords(cmd.Context(), records); err != nil {
				return err
			}
			stats, err := db.GetRecordStats(cmd.Context())
			if err != nil {
				return err
			}

			result := struct {
				Start     string                `json:"start"`
				End       string                `json:"end"`
				Generated int                   `json:"generated"`
				Stats     *database.RecordStats `json:"stats"`
			}{start, end, len(records), stats}

			return opts.render(cmd.OutOrStdout(), result, func(w io.Writer) {
				fmt.Fprintf(w, "generated %d records (%s..%s) into %s\n", len(records), start, end, cfg.DatabasePath)
				fmt.Fprintf(w, "database holds %d days (%s..%s), %d journal entries\n",
					stats.TotalDays, stats.EarliestDate, stats.LatestDate, stats.JournalEntries)
			})
		},
	}

	c.Flags().StringVar(&start, "start", "", "First date, YYYY-MM-DD (required)")
	c.Flags().StringVar(&end, "end", "", "Last date, YYYY-MM-DD (required)")
	_ = c.MarkFlagRequired("start")
	_ = c.MarkFlagRequired("end")
	return c
}

func historyCmd(opts *options) *cobra.Command {
	var start, end string

	c := &cobra.Command{
		Use:   "history",
		Short: "List stored records with their journal entries",
		RunE: func(cmd *cobra.Command, _ []string) error {
			from, to, err := parseRange(start, end)
			if err != nil {
				return err
			}

			cfg, err := opts.config()
			if err != nil {
				return err
			}
			db, err := openDB(cmd.Context(), cfg, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer db.Close()

			history, err := db.GetHistory(cmd.Context(), calendar.FormatDate(from), calendar.FormatDate(to))
			if err != nil {
				return err
			}

			return opts.render(cmd.OutOrStdout(), history, func(w io.Writer) {
				for _, h := range history {
					line := fmt.Sprintf("%s %s 流日 %s 四化 %s", h.Record.Date, h.Record.LunarDate, h.Record.FlowDayPalace, h.Record.FourTransformations)
					if h.Journal != nil {
						line += fmt.Sprintf("  | %s 工作%d 健康%d 財運%d 精力%d",
							h.Journal.Score, h.Journal.Work, h.Journal.Health, h.Journal.Wealth, h.Journal.Energy)
					}
					fmt.Fprintln(w, line)
				}
			})
		},
	}

	c.Flags().StringVar(&start, "start", "", "First date, YYYY-MM-DD (required)")
	c.Flags().StringVar(&end, "end", "", "Last date, YYYY-MM-DD (required)")
	_ = c.MarkFlagRequired("start")
	_ = c.MarkFlagRequired("end")
	return c
}

// parseRange validates an inclusive date range given on the command line.
func parseRange(start, end string) (time.Time, time.Time, error) {
	from, err := calendar.ParseDateString(start)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("--start: %w", err)
	}
	to, err := calendar.ParseDateString(end)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("--end: %w", err)
	}
	if from.After(to) {
		return time.Time{}, time.Time{}, fmt.Errorf("--start %s is after --end %s", start, end)
	}
	return from, to, nil
}
