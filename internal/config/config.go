// Package config handles application configuration from environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/zapponejosh/teller/internal/calendar"
	"github.com/zapponejosh/teller/internal/database"
)

// Config holds all application configuration.
// Fields are populated from environment variables.
type Config struct {
	// Server settings
	Port int    // HTTP port to listen on
	Env  string // development, staging, production

	// Database
	DatabasePath        string        // Path to SQLite file
	DatabaseBusyTimeout time.Duration // wait on a locked database before failing

	// Authentication
	APIKey string // API key for authenticated endpoints

	// Logging
	LogLevel  string // debug, info, warn, error
	LogFormat string // json, text

	// Calendar engine
	BasePalace       string // natal palace branch, e.g. 戌
	YearBranchSource string // natal, bazi, lunar
	TablesPath       string // optional YAML override of the built-in lookup tables
	MaxRangeDays     int    // largest range served or generated in one request
}

// Environment constants
const (
	EnvDevelopment = "development"
	EnvStaging     = "staging"
	EnvProduction  = "production"
)

// Defaults for the calendar settings.
const (
	DefaultBasePalace   = "戌"
	DefaultMaxRangeDays = 90
	DefaultBusyTimeout  = 5 * time.Second
)

// Load reads configuration from environment variables.
// In development, it first loads from .env file if present.
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not found)
	_ = godotenv.Load()

	cfg := &Config{}

	// Server settings
	cfg.Port = getEnvInt("PORT", 8080)
	cfg.Env = getEnv("ENV", EnvDevelopment)

	// Database
	cfg.DatabasePath = getEnv("DATABASE_PATH", "./data/teller.db")
	cfg.DatabaseBusyTimeout = getEnvDuration("DATABASE_BUSY_TIMEOUT", DefaultBusyTimeout)

	// Authentication
	cfg.APIKey = getEnv("API_KEY", "")

	// Logging
	cfg.LogLevel = getEnv("LOG_LEVEL", "info")
	cfg.LogFormat = getEnv("LOG_FORMAT", "text")

	// Calendar engine
	cfg.BasePalace = getEnv("BASE_PALACE", DefaultBasePalace)
	cfg.YearBranchSource = getEnv("YEAR_BRANCH_SOURCE", string(calendar.YearBranchNatal))
	cfg.TablesPath = getEnv("TABLES_PATH", "")
	cfg.MaxRangeDays = getEnvInt("MAX_RANGE_DAYS", DefaultMaxRangeDays)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration is present and valid.
func (c *Config) Validate() error {
	var errs []error

	if c.Port < 1 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("PORT must be between 1 and 65535, got %d", c.Port))
	}

	switch c.Env {
	case EnvDevelopment, EnvStaging, EnvProduction:
	default:
		errs = append(errs, fmt.Errorf("ENV must be one of: development, staging, production; got %q", c.Env))
	}

	if c.DatabasePath == "" {
		errs = append(errs, errors.New("DATABASE_PATH is required"))
	}

	if c.DatabaseBusyTimeout <= 0 {
		errs = append(errs, fmt.Errorf("DATABASE_BUSY_TIMEOUT must be a positive duration, got %s", c.DatabaseBusyTimeout))
	}

	// API key is required in production
	if c.Env == EnvProduction && c.APIKey == "" {
		errs = append(errs, errors.New("API_KEY is required in production"))
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("LOG_LEVEL must be one of: debug, info, warn, error; got %q", c.LogLevel))
	}

	switch c.LogFormat {
	case "json", "text":
	default:
		errs = append(errs, fmt.Errorf("LOG_FORMAT must be one of: json, text; got %q", c.LogFormat))
	}

	if _, err := calendar.ParseBranch(c.BasePalace); err != nil {
		errs = append(errs, fmt.Errorf("BASE_PALACE must be an earthly branch (子..亥); got %q", c.BasePalace))
	}

	if _, err := calendar.ParseYearBranchSource(c.YearBranchSource); err != nil {
		errs = append(errs, fmt.Errorf("YEAR_BRANCH_SOURCE must be one of: natal, bazi, lunar; got %q", c.YearBranchSource))
	}

	if c.MaxRangeDays < 1 {
		errs = append(errs, fmt.Errorf("MAX_RANGE_DAYS must be positive, got %d", c.MaxRangeDays))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Env == EnvDevelopment
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.Env == EnvProduction
}

// BaseBranch returns the configured natal palace. Call after Validate.
func (c *Config) BaseBranch() calendar.Branch {
	b, err := calendar.ParseBranch(c.BasePalace)
	if err != nil {
		b, _ = calendar.ParseBranch(DefaultBasePalace)
	}
	return b
}

// Source returns the configured year branch source. Call after Validate.
func (c *Config) Source() calendar.YearBranchSource {
	src, err := calendar.ParseYearBranchSource(c.YearBranchSource)
	if err != nil {
		return calendar.YearBranchNatal
	}
	return src
}

// Tables loads the lookup tables: the file at TablesPath if set, else the built-in set.
func (c *Config) Tables() (*calendar.Tables, error) {
	if c.TablesPath == "" {
		return calendar.DefaultTables()
	}
	return calendar.LoadTables(c.TablesPath)
}

// Database returns the connection settings for DatabasePath.
func (c *Config) Database() database.Config {
	dbCfg := database.DefaultConfig(c.DatabasePath)
	dbCfg.BusyTimeout = c.DatabaseBusyTimeout
	return dbCfg
}

// getEnv reads an environment variable with a default fallback.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt reads an environment variable as an integer with a default fallback.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration reads an environment variable such as "5s" with a default fallback.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
