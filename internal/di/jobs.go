package di

import (
	"fmt"
	"time"

	"github.com/aristath/folio/internal/clientdata"
	"github.com/aristath/folio/internal/config"
	"github.com/aristath/folio/internal/modules/cleanup"
	"github.com/aristath/folio/internal/modules/marketdata"
	"github.com/aristath/folio/internal/modules/snapshots"
	"github.com/aristath/folio/internal/reliability"
	"github.com/aristath/folio/internal/scheduler"
	"github.com/rs/zerolog"
)

// RegisterJobs creates the background jobs and schedules them.
// The scheduler is created but not started.
func RegisterJobs(container *Container, cfg *config.Config, log zerolog.Logger) error {
	if container == nil || container.Refresher == nil {
		return fmt.Errorf("services are not initialized")
	}

	loc, err := cfg.Location()
	if err != nil {
		return err
	}
	sched := scheduler.New(loc, log)

	jobs := &JobInstances{
		PriceRefresh: marketdata.NewRefreshJob(container.Refresher, log),
		EODSnapshot:  snapshots.NewCaptureJob(container.Recorder, log),
		CacheCleanup: clientdata.NewCleanupJob(map[string]clientdata.Purger{
			"yahoo_quotes": container.QuoteCache,
		}, log),
		Maintenance: reliability.NewMaintenanceJob(container.DB, cfg.DataDir, log),
		Cleanup:     cleanup.NewObservationCleanupJob(
			container.MarketDataRepo,
			cfg.Schedule.RetentionDays,
			container.Clock,
			log,
		),
	}

	if err := sched.AddJobAtTimes(cfg.Schedule.RefreshWindows, jobs.PriceRefresh); err != nil {
		return fmt.Errorf("failed to schedule price refresh: %w", err)
	}
	if err := sched.AddJobAtTimes([]string{cfg.Schedule.EODTime}, jobs.EODSnapshot); err != nil {
		return fmt.Errorf("failed to schedule snapshot: %w", err)
	}
	if err := sched.AddJob(everySpec(clientdata.TTLCleanupInterval), jobs.CacheCleanup); err != nil {
		return fmt.Errorf("failed to schedule cache cleanup: %w", err)
	}
	if err := sched.AddJob(cfg.Schedule.MaintenanceSchedule, jobs.Maintenance); err != nil {
		return fmt.Errorf("failed to schedule maintenance: %w", err)
	}

	if err := sched.AddJob(cfg.Schedule.CleanupSchedule, jobs.Cleanup); err != nil {
		return fmt.Errorf("failed to schedule observation cleanup: %w", err)
	}

	if container.BackupService != nil {
		jobs.Backup = reliability.NewBackupJob(container.BackupService, cfg.Backup.RetentionDays, log)
		if err := sched.AddJob(cfg.Backup.Schedule, jobs.Backup); err != nil {
			return fmt.Errorf("failed to schedule backup: %w", err)
		}
	} else {
		log.Info().Msg("Backups disabled (BACKUP_S3_BUCKET not set)")
	}

	container.Scheduler = sched
	container.Jobs = jobs
	return nil
}

func everySpec(d time.Duration) string {
	return "@every " + d.String()
}
