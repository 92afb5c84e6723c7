// Package cli implements the teller command line.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/zapponejosh/teller/internal/calendar"
	"github.com/zapponejosh/teller/internal/config"
	"github.com/zapponejosh/teller/internal/database"
	"github.com/zapponejosh/teller/internal/logger"
)

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// options holds the persistent flags shared by every subcommand.
type options struct {
	dbPath     string
	base       string
	source     string
	tablesPath string
	format     string
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:          "teller",
		Short:        "BaZi and Zi Wei flow palace calendar",
		Long:         "Computes lunar dates, GanZhi pillars, solar terms, flow palaces and four transformations for Gregorian dates.",
		SilenceUsage: true,
	}

	pf := cmd.PersistentFlags()
	pf.StringVarP(&opts.dbPath, "db", "d", "", "Database path (default: $DATABASE_PATH or ./data/teller.db)")
	pf.StringVarP(&opts.base, "base", "b", "", "Natal palace branch (default: $BASE_PALACE or 戌)")
	pf.StringVarP(&opts.source, "source", "s", "", "Year branch source: natal, bazi or lunar")
	pf.StringVar(&opts.tablesPath, "tables", "", "YAML file overriding the built-in lookup tables")
	pf.StringVarP(&opts.format, "format", "f", "text", "Output format: json or text")

	cmd.AddCommand(
		dayCmd(opts),
		generateCmd(opts),
		historyCmd(opts),
		parseCmd(opts),
		palaceCmd(opts),
		importCmd(opts),
		coverageCmd(opts),
	)
	return cmd
}

// config loads the environment configuration and applies flag overrides.
func (o *options) config() (*config.Config, error) {
	if o.format != "json" && o.format != "text" {
		return nil, fmt.Errorf("--format must be json or text, got %q", o.format)
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if o.dbPath != "" {
		cfg.DatabasePath = o.dbPath
	}
	if o.base != "" {
		cfg.BasePalace = o.base
	}
	if o.source != "" {
		cfg.YearBranchSource = o.source
	}
	if o.tablesPath != "" {
		cfg.TablesPath = o.tablesPath
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid flags: %w", err)
	}
	return cfg, nil
}

// engine builds the calendar engine for cfg.
func engine(cfg *config.Config) (*calendar.Engine, error) {
	tables, err := cfg.Tables()
	if err != nil {
		return nil, err
	}
	return calendar.NewEngine(calendar.NewLibraryResolver(), tables, cfg.Source()), nil
}

// openDB opens and migrates the database. Log output goes to stderr.
func openDB(ctx context.Context, cfg *config.Config, stderr io.Writer) (*database.DB, error) {
	log := logger.New(stderr, "warn", cfg.LogFormat)

	db, err := database.Open(cfg.Database(), log)
	if err != nil {
		return nil, err
	}
	if _, err := db.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// render writes v as indented JSON or calls text.
func (o *options) render(w io.Writer, v any, text func(io.Writer)) error {
	if o.format == "json" {
		enc := json.NewEncoder(w)
		enc.SetEscapeHTML(false)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	text(w)
	return nil
}
