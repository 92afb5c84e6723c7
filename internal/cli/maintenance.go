package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/zapponejosh/teller/internal/calendar"
	"github.com/zapponejosh/teller/internal/database"
	"github.com/zapponejosh/teller/internal/logger"
)

// importCmd loads journal entries from a JSON array. Fields an entry omits
// take their defaults. The import runs in one transaction and is idempotent.
func importCmd(opts *options) *cobra.Command {
	var verbose bool

	c := &cobra.Command{
		Use:   "import FILE",
		Short: "Import journal entries from a JSON file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			startTime := time.Now()

			cfg, err := opts.config()
			if err != nil {
				return err
			}
			level := "warn"
			if verbose {
				level = "debug"
			}
			log := logger.New(cmd.ErrOrStderr(), level, cfg.LogFormat)

			entries, err := readJournalFile(args[0])
			if err != nil {
				return err
			}
			log.Debug("parsed journal file", slog.String("path", args[0]), slog.Int("entries", len(entries)))

			db, err := openDB(ctx, cfg, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer db.Close()

			if err := db.ImportJournalEntries(ctx, entries); err != nil {
				return fmt.Errorf("import %s: %w", args[0], err)
			}
			log.Debug("import complete", slog.Duration("duration", time.Since(startTime)))

			result := struct {
				File     string `json:"file"`
				Imported int    `json:"imported"`
			}{args[0], len(entries)}
			return opts.render(cmd.OutOrStdout(), result, func(w io.Writer) {
				fmt.Fprintf(w, "imported %d journal entries from %s\n", len(entries), args[0])
			})
		},
	}

	c.Flags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	return c
}

// readJournalFile decodes a JSON array of journal entries onto defaults.
func readJournalFile(path string) ([]database.JournalEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read journal file: %w", err)
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse journal file: %w", err)
	}

	entries := make([]database.JournalEntry, 0, len(raw))
	for i, r := range raw {
		e := database.NewJournalEntry("")
		if err := json.Unmarshal(r, e); err != nil {
			return nil, fmt.Errorf("parse journal entry %d: %w", i, err)
		}
		entries = append(entries, *e)
	}
	return entries, nil
}

// coverageCmd reports which dates in a range have no stored record.
func coverageCmd(opts *options) *cobra.Command {
	var start, end string

	c := &cobra.Command{
		Use:   "coverage",
		Short: "Report dates with no stored record",
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

			missing, err := db.MissingDates(cmd.Context(), from, to)
			if err != nil {
				return err
			}

			total := calendar.DaysBetween(from, to) + 1
			result := struct {
				Start   string   `json:"start"`
				End     string   `json:"end"`
				Days    int      `json:"days"`
				Stored  int      `json:"stored"`
				Missing []string `json:"missing"`
			}{start, end, total, total - len(missing), missing}

			return opts.render(cmd.OutOrStdout(), result, func(w io.Writer) {
				fmt.Fprintf(w, "%d of %d days stored (%.1f%%)\n",
					result.Stored, total, float64(result.Stored)/float64(total)*100)
				for _, gap := range collapseDates(missing) {
					fmt.Fprintf(w, "  missing %s\n", gap)
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

// collapseDates joins runs of consecutive sorted dates into "first..last".
func collapseDates(dates []string) []string {
	var gaps []string
	for i := 0; i < len(dates); {
		j := i
		for j+1 < len(dates) && nextDate(dates[j]) == dates[j+1] {
			j++
		}
		if i == j {
			gaps = append(gaps, dates[i])
		} else {
			gaps = append(gaps, dates[i]+".."+dates[j])
		}
		i = j + 1
	}
	return gaps
}

func nextDate(date string) string {
	d, err := calendar.ParseDateString(date)
	if err != nil {
		return ""
	}
	return calendar.FormatDate(d.AddDate(0, 0, 1))
}
