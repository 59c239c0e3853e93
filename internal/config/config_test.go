package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setDataDir(t *testing.T) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "data")
	t.Setenv("FOLIO_DATA_DIR", dir)
	return dir
}

func TestLoad_Defaults(t *testing.T) {
	dir := setDataDir(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, dir, cfg.DataDir)
	assert.DirExists(t, dir)
	assert.Equal(t, filepath.Join(dir, "folio.db"), cfg.DatabasePath())
	assert.Equal(t, 8001, cfg.Port)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.False(t, cfg.LogPretty)
	assert.False(t, cfg.DevMode)
	assert.Equal(t, "EUR", cfg.BaseCurrency)
	assert.Equal(t, []string{"*"}, cfg.AllowedOrigins)
	assert.Empty(t, cfg.PolicyFile)

	assert.Equal(t, []string{"12:00", "20:00"}, cfg.Schedule.RefreshWindows)
	assert.Equal(t, "23:30", cfg.Schedule.EODTime)
	assert.Equal(t, "Europe/Amsterdam", cfg.Schedule.Timezone)
	assert.Equal(t, 730, cfg.Schedule.RetentionDays)

	assert.Equal(t, 300*time.Second, cfg.Sources.QuoteCacheTTL)
	assert.Equal(t, 15*time.Second, cfg.Sources.HTTPTimeout)
	assert.Contains(t, cfg.Sources.ECBURL, "eurofxref-daily.xml")

	assert.False(t, cfg.Backup.Enabled())
	assert.Equal(t, "0 0 3 * * *", cfg.Backup.Schedule)
	assert.Equal(t, 30, cfg.Backup.RetentionDays)

	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, "Europe/Amsterdam", loc.String())
}

func TestLoad_Overrides(t *testing.T) {
	setDataDir(t)
	t.Setenv("GO_PORT", "9090")
	t.Setenv("BASE_CURRENCY", " usd ")
	t.Setenv("ALLOWED_ORIGINS", "http://localhost:3000, https://folio.example")
	t.Setenv("SCHED_WINDOWS", "09:30,17:45")
	t.Setenv("QUOTE_CACHE_TTL", "60")
	t.Setenv("HTTP_TIMEOUT", "5s")
	t.Setenv("BACKUP_S3_BUCKET", "folio")
	t.Setenv("LOG_PRETTY", "true")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, "USD", cfg.BaseCurrency)
	assert.Equal(t, []string{"http://localhost:3000", "https://folio.example"}, cfg.AllowedOrigins)
	assert.Equal(t, []string{"09:30", "17:45"}, cfg.Schedule.RefreshWindows)
	assert.Equal(t, time.Minute, cfg.Sources.QuoteCacheTTL)
	assert.Equal(t, 5*time.Second, cfg.Sources.HTTPTimeout)
	assert.True(t, cfg.Backup.Enabled())
	assert.True(t, cfg.LogPretty)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{name: "port out of range", key: "GO_PORT", value: "70000"},
		{name: "base currency length", key: "BASE_CURRENCY", value: "EURO"},
		{name: "base currency letters", key: "BASE_CURRENCY", value: "E1R"},
		{name: "malformed window", key: "SCHED_WINDOWS", value: "12:00,25:00"},
		{name: "malformed eod time", key: "SCHED_EOD_TIME", value: "late"},
		{name: "unknown timezone", key: "SCHED_TIMEZONE", value: "Mars/Olympus"},
		{name: "negative retention", key: "OBSERVATION_RETENTION_DAYS", value: "-1"},
		{name: "zero ttl", key: "QUOTE_CACHE_TTL", value: "0s"},
		{name: "negative timeout", key: "HTTP_TIMEOUT", value: "-1s"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setDataDir(t)
			t.Setenv(tt.key, tt.value)

			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestValidate_BackupCredentials(t *testing.T) {
	setDataDir(t)
	cfg, err := Load()
	require.NoError(t, err)

	cfg.Backup.Bucket = "folio"
	cfg.Backup.AccessKeyID = "key"
	assert.Error(t, cfg.Validate())

	cfg.Backup.SecretAccessKey = "secret"
	assert.NoError(t, cfg.Validate())
}
