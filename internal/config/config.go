// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/aristath/folio/internal/scheduler"
	"github.com/aristath/folio/internal/utils"
	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	DataDir        string // Base directory for the database (always absolute)
	Port           int
	LogLevel       string
	LogPretty      bool
	DevMode        bool
	BaseCurrency   string
	AllowedOrigins []string
	PolicyFile     string // YAML policy applied at startup when none is stored

	Schedule SchedulerConfig
	Sources  SourcesConfig
	Backup   BackupConfig
}

// SchedulerConfig holds background job timing
type SchedulerConfig struct {
	RefreshWindows      []string // "HH:MM" times for the price refresh
	EODTime             string   // "HH:MM" time for the daily snapshot
	Timezone            string
	MaintenanceSchedule string // cron spec with seconds
	CleanupSchedule     string // cron spec with seconds
	RetentionDays       int    // price and rate observations; 0 keeps everything
}

// SourcesConfig holds the upstream market-data endpoints
type SourcesConfig struct {
	ECBURL        string
	CoinGeckoBase string
	YahooBase     string
	QuoteCacheTTL time.Duration
	HTTPTimeout   time.Duration
}

// BackupConfig holds the optional S3 backup target
type BackupConfig struct {
	Bucket          string
	Endpoint        string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	Schedule        string // cron spec with seconds
	RetentionDays   int
}

// Enabled reports whether backups are configured
func (b BackupConfig) Enabled() bool {
	return b.Bucket != ""
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	absDataDir, err := filepath.Abs(getEnv("FOLIO_DATA_DIR", "./data"))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}
	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:        absDataDir,
		Port:           getEnvAsInt("GO_PORT", 8001),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		LogPretty:      getEnvAsBool("LOG_PRETTY", false),
		DevMode:        getEnvAsBool("DEV_MODE", false),
		BaseCurrency:   utils.NormalizeCurrency(getEnv("BASE_CURRENCY", "EUR")),
		AllowedOrigins: getEnvAsList("ALLOWED_ORIGINS", []string{"*"}),
		PolicyFile:     getEnv("POLICY_FILE", ""),
		Schedule: SchedulerConfig{
			RefreshWindows:      getEnvAsList("SCHED_WINDOWS", []string{"12:00", "20:00"}),
			EODTime:             getEnv("SCHED_EOD_TIME", "23:30"),
			Timezone:            getEnv("SCHED_TIMEZONE", "Europe/Amsterdam"),
			MaintenanceSchedule: getEnv("SCHED_MAINTENANCE", "0 0 4 * * *"),
			CleanupSchedule:     getEnv("SCHED_CLEANUP", "0 30 4 * * *"),
			RetentionDays:       getEnvAsInt("OBSERVATION_RETENTION_DAYS", 730),
		},
		Sources: SourcesConfig{
			ECBURL:        getEnv("ECB_FX_BASE", "https://www.ecb.europa.eu/stats/eurofxref/eurofxref-daily.xml"),
			CoinGeckoBase: getEnv("COINGECKO_BASE", "https://api.coingecko.com/api/v3"),
			YahooBase:     getEnv("YAHOO_CHART_BASE", "https://query1.finance.yahoo.com/v8/finance/chart"),
			QuoteCacheTTL: getEnvAsDuration("QUOTE_CACHE_TTL", 300*time.Second),
			HTTPTimeout:   getEnvAsDuration("HTTP_TIMEOUT", 15*time.Second),
		},
		Backup: BackupConfig{
			Bucket:          getEnv("BACKUP_S3_BUCKET", ""),
			Endpoint:        getEnv("BACKUP_S3_ENDPOINT", ""),
			Region:          getEnv("BACKUP_S3_REGION", "auto"),
			AccessKeyID:     getEnv("BACKUP_S3_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("BACKUP_S3_SECRET_ACCESS_KEY", ""),
			Schedule:        getEnv("BACKUP_SCHEDULE", "0 0 3 * * *"),
			RetentionDays:   getEnvAsInt("BACKUP_RETENTION_DAYS", 30),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the loaded values
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid GO_PORT %d: must be between 1 and 65535", c.Port)
	}

	if !isCurrencyCode(c.BaseCurrency) {
		return fmt.Errorf("invalid BASE_CURRENCY %q: expected a three-letter code", c.BaseCurrency)
	}

	if len(c.Schedule.RefreshWindows) == 0 {
		return fmt.Errorf("SCHED_WINDOWS must list at least one time")
	}
	for _, w := range c.Schedule.RefreshWindows {
		if _, _, err := scheduler.ParseTimeOfDay(w); err != nil {
			return fmt.Errorf("invalid SCHED_WINDOWS: %w", err)
		}
	}
	if _, _, err := scheduler.ParseTimeOfDay(c.Schedule.EODTime); err != nil {
		return fmt.Errorf("invalid SCHED_EOD_TIME: %w", err)
	}
	if _, err := c.Location(); err != nil {
		return err
	}

	if c.Schedule.RetentionDays < 0 {
		return fmt.Errorf("OBSERVATION_RETENTION_DAYS must not be negative")
	}

	if c.Sources.QuoteCacheTTL <= 0 {
		return fmt.Errorf("QUOTE_CACHE_TTL must be positive")
	}
	if c.Sources.HTTPTimeout <= 0 {
		return fmt.Errorf("HTTP_TIMEOUT must be positive")
	}

	if c.Backup.Enabled() && c.Backup.AccessKeyID != "" && c.Backup.SecretAccessKey == "" {
		return fmt.Errorf("BACKUP_S3_SECRET_ACCESS_KEY is required with BACKUP_S3_ACCESS_KEY_ID")
	}

	return nil
}

// Location returns the scheduler time zone
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Schedule.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid SCHED_TIMEZONE %q: %w", c.Schedule.Timezone, err)
	}
	return loc, nil
}

// DatabasePath returns the SQLite file location
func (c *Config) DatabasePath() string {
	return filepath.Join(c.DataDir, "folio.db")
}

func isCurrencyCode(s string) bool {
	if len(s) != 3 {
		return false
	}
	for _, r := range s {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

// getEnvAsDuration accepts Go durations ("90s") or plain seconds ("300")
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	items := utils.ParseCSV(value)
	if len(items) == 0 {
		return defaultValue
	}
	return items
}
