package reliability

import (
	"context"
	"fmt"
	"time"

	"github.com/aristath/folio/internal/database"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/disk"
)

const (
	backupJobTimeout      = 15 * time.Minute
	maintenanceJobTimeout = 5 * time.Minute

	// criticalFreeBytes fails the maintenance run
	criticalFreeBytes = 500 * 1024 * 1024
	// lowFreeBytes only warns
	lowFreeBytes = 5 * 1024 * 1024 * 1024
)

// BackupJob uploads a backup and then rotates old ones
type BackupJob struct {
	service       *BackupService
	retentionDays int
	log           zerolog.Logger
}

// NewBackupJob creates the scheduled backup job
func NewBackupJob(service *BackupService, retentionDays int, log zerolog.Logger) *BackupJob {
	return &BackupJob{
		service:       service,
		retentionDays: retentionDays,
		log:           log.With().Str("job", "backup").Logger(),
	}
}

// Run executes one backup. A failed rotation is logged, not returned.
func (j *BackupJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), backupJobTimeout)
	defer cancel()

	if _, err := j.service.Backup(ctx); err != nil {
		return err
	}

	if _, err := j.service.Rotate(ctx, j.retentionDays); err != nil {
		j.log.Warn().Err(err).Msg("Backup rotation failed")
	}
	return nil
}

// Name returns the job name for scheduler
func (j *BackupJob) Name() string {
	return "backup"
}

// MaintenanceJob checks integrity, truncates the WAL and watches disk space
type MaintenanceJob struct {
	db      *database.DB
	dataDir string
	log     zerolog.Logger
}

// NewMaintenanceJob creates the daily database maintenance job
func NewMaintenanceJob(db *database.DB, dataDir string, log zerolog.Logger) *MaintenanceJob {
	return &MaintenanceJob{
		db:      db,
		dataDir: dataDir,
		log:     log.With().Str("job", "db_maintenance").Logger(),
	}
}

// Run executes the maintenance steps in order. An integrity failure or a
// nearly full disk aborts the run.
func (j *MaintenanceJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), maintenanceJobTimeout)
	defer cancel()

	start := time.Now()

	if err := j.db.HealthCheck(ctx); err != nil {
		j.log.Error().Err(err).Msg("Database integrity check failed")
		return fmt.Errorf("integrity check failed: %w", err)
	}

	if err := j.db.WALCheckpoint("TRUNCATE"); err != nil {
		// not fatal, autocheckpoint keeps running
		j.log.Warn().Err(err).Msg("WAL checkpoint failed")
	}

	if err := j.checkDiskSpace(ctx); err != nil {
		return err
	}

	stats, err := j.db.GetStats(ctx)
	if err != nil {
		j.log.Warn().Err(err).Msg("Failed to read database stats")
	} else {
		j.log.Info().
			Int64("size_bytes", stats.SizeBytes).
			Int64("wal_size_bytes", stats.WALSizeBytes).
			Int64("freelist_count", stats.FreelistCount).
			Dur("duration_ms", time.Since(start)).
			Msg("Database maintenance completed")
	}

	return nil
}

// Name returns the job name for scheduler
func (j *MaintenanceJob) Name() string {
	return "db_maintenance"
}

func (j *MaintenanceJob) checkDiskSpace(ctx context.Context) error {
	usage, err := disk.UsageWithContext(ctx, j.dataDir)
	if err != nil {
		j.log.Warn().Err(err).Str("path", j.dataDir).Msg("Failed to read disk usage")
		return nil
	}

	if usage.Free < criticalFreeBytes {
		j.log.Error().Uint64("free_bytes", usage.Free).Msg("Insufficient disk space")
		return fmt.Errorf("only %d bytes free on %s", usage.Free, j.dataDir)
	}
	if usage.Free < lowFreeBytes {
		j.log.Warn().
			Uint64("free_bytes", usage.Free).
			Float64("used_percent", usage.UsedPercent).
			Msg("Disk space running low")
	}
	return nil
}
