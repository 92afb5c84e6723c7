// Package database stores generated daily records and journal entries in SQLite.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// DB wraps sql.DB with the record and journal queries.
type DB struct {
	*sql.DB
	logger *slog.Logger
}

// Config describes how to reach the SQLite file.
type Config struct {
	Path            string        // file path, or ":memory:"
	BusyTimeout     time.Duration // how long a writer waits on a locked database
	ConnMaxLifetime time.Duration
}

// DefaultConfig returns the settings used by the server and the CLI.
func DefaultConfig(path string) Config {
	return Config{
		Path:            path,
		BusyTimeout:     5 * time.Second,
		ConnMaxLifetime: time.Hour,
	}
}

// InMemory reports whether Path names a private in-memory database.
func (c Config) InMemory() bool {
	return c.Path == ":memory:" || strings.HasPrefix(c.Path, "file::memory:")
}

// DSN is the go-sqlite3 data source name for c. Foreign keys are enforced
// and file databases run in WAL mode.
func (c Config) DSN() string {
	q := url.Values{}
	q.Set("_foreign_keys", "on")
	if c.BusyTimeout > 0 {
		q.Set("_busy_timeout", strconv.FormatInt(c.BusyTimeout.Milliseconds(), 10))
	}
	if !c.InMemory() {
		q.Set("_journal_mode", "WAL")
	}
	return c.Path + "?" + q.Encode()
}

// Open connects to the database described by cfg, creating its directory
// if needed. The pool holds one connection: SQLite has a single writer, and
// an in-memory database exists only on the connection that created it.
func Open(cfg Config, logger *slog.Logger) (*DB, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if !cfg.InMemory() {
		if dir := filepath.Dir(cfg.Path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create database directory: %w", err)
			}
		}
	}

	sqlDB, err := sql.Open("sqlite3", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	if !cfg.InMemory() {
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	logger.Info("database connected",
		slog.String("path", cfg.Path),
		slog.Bool("in_memory", cfg.InMemory()),
		slog.Duration("busy_timeout", cfg.BusyTimeout),
	)
	return &DB{DB: sqlDB, logger: logger}, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	db.logger.Info("closing database connection")
	return db.DB.Close()
}

// HealthReport describes the schema of a reachable database.
type HealthReport struct {
	SchemaVersion int `json:"schema_version"`
	LatestVersion int `json:"latest_version"`
}

// Health pings the database and checks that the schema is fully migrated and
// the record and journal tables exist. A reachable database with the wrong
// schema yields a report together with an ErrSchemaMismatch error.
func (db *DB) Health(ctx context.Context) (*HealthReport, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("database ping failed: %w", err)
	}

	version, err := schemaVersion(ctx, db)
	if err != nil {
		return nil, err
	}
	report := &HealthReport{SchemaVersion: version, LatestVersion: latestVersion()}
	if version != report.LatestVersion {
		return report, fmt.Errorf("%w: version %d, want %d", ErrSchemaMismatch, version, report.LatestVersion)
	}

	for _, table := range requiredTables {
		ok, err := tableExists(ctx, db, table)
		if err != nil {
			return nil, err
		}
		if !ok {
			return report, fmt.Errorf("%w: table %s is missing", ErrSchemaMismatch, table)
		}
	}
	return report, nil
}

// requiredTables must exist once every migration has run.
var requiredTables = []string{"daily_records", "journal_entries"}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func tableExists(ctx context.Context, q querier, name string) (bool, error) {
	var n int
	err := q.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?", name,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("look up table %s: %w", name, err)
	}
	return n > 0, nil
}

// schemaVersion is the highest applied migration, 0 for a fresh database.
func schemaVersion(ctx context.Context, q querier) (int, error) {
	ok, err := tableExists(ctx, q, "schema_migrations")
	if err != nil || !ok {
		return 0, err
	}
	var version sql.NullInt64
	if err := q.QueryRowContext(ctx, "SELECT MAX(version) FROM schema_migrations").Scan(&version); err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	return int(version.Int64), nil
}

// Migrate applies pending forward-only migrations in version order inside one
// transaction and returns how many were applied. A database carrying a
// version this build does not know is refused.
func (db *DB) Migrate(ctx context.Context) (int, error) {
	applied := 0
	err := db.WithTx(ctx, func(tx *Tx) error {
		_, err := tx.ExecContext(ctx, `
			CREATE TABLE IF NOT EXISTS schema_migrations (
				version INTEGER PRIMARY KEY,
				applied_at TEXT NOT NULL DEFAULT (datetime('now'))
			)
		`)
		if err != nil {
			return fmt.Errorf("create schema_migrations table: %w", err)
		}

		current, err := schemaVersion(ctx, tx)
		if err != nil {
			return err
		}
		if current > latestVersion() {
			return fmt.Errorf("%w: database is at version %d, this build knows %d",
				ErrSchemaMismatch, current, latestVersion())
		}

		for version := current + 1; version <= latestVersion(); version++ {
			if err := applyMigration(ctx, tx, version); err != nil {
				return err
			}
			db.logger.Info("applied migration", slog.Int("version", version))
			applied++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	db.logger.Info("migrations complete",
		slog.Int("applied", applied),
		slog.Int("schema_version", latestVersion()),
	)
	return applied, nil
}

func applyMigration(ctx context.Context, tx *Tx, version int) error {
	content, ok := migrationsSQL[version]
	if !ok {
		return fmt.Errorf("migration %d not found", version)
	}
	if _, err := tx.ExecContext(ctx, content); err != nil {
		return fmt.Errorf("execute migration %d: %w", version, err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
		return fmt.Errorf("record migration %d: %w", version, err)
	}
	return nil
}

func latestVersion() int {
	return len(migrationsSQL)
}

// Tx is a transaction accepted by the query helpers.
type Tx struct {
	*sql.Tx
}

// WithTx runs fn in a transaction, committing on nil and rolling back otherwise.
func (db *DB) WithTx(ctx context.Context, fn func(*Tx) error) error {
	sqlTx, err := db.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	tx := &Tx{sqlTx}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("rollback failed: %v (original error: %w)", rbErr, err)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
