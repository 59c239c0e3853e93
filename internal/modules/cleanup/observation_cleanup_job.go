// Package cleanup provides data retention jobs.
package cleanup

import (
	"context"
	"fmt"
	"time"

	"github.com/aristath/folio/internal/utils"
	"github.com/rs/zerolog"
)

const cleanupTimeout = 5 * time.Minute

// ObservationPruner deletes observations older than a cutoff
type ObservationPruner interface {
	PruneObservations(ctx context.Context, before time.Time) (int64, int64, error)
}

// ObservationCleanupJob drops price and rate observations past the
// retention window. Snapshots are never touched.
type ObservationCleanupJob struct {
	pruner        ObservationPruner
	retentionDays int
	clock         utils.Clock
	log           zerolog.Logger
}

// NewObservationCleanupJob creates a new cleanup job.
// retentionDays <= 0 disables pruning.
func NewObservationCleanupJob(pruner ObservationPruner, retentionDays int, clock utils.Clock, log zerolog.Logger) *ObservationCleanupJob {
	if clock == nil {
		clock = utils.SystemClock{}
	}
	return &ObservationCleanupJob{
		pruner:        pruner,
		retentionDays: retentionDays,
		clock:         clock,
		log:           log.With().Str("job", "observation_cleanup").Logger(),
	}
}

// Run executes the cleanup job
func (j *ObservationCleanupJob) Run() error {
	if j.retentionDays <= 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), cleanupTimeout)
	defer cancel()

	cutoff := j.clock.Now().AddDate(0, 0, -j.retentionDays)
	prices, rates, err := j.pruner.PruneObservations(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("failed to prune observations: %w", err)
	}

	if prices > 0 || rates > 0 {
		j.log.Info().
			Int64("prices", prices).
			Int64("rates", rates).
			Time("cutoff", cutoff).
			Msg("Observation cleanup completed")
	}
	return nil
}

// Name returns the job name
func (j *ObservationCleanupJob) Name() string {
	return "observation_cleanup"
}
