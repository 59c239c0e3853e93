package marketdata

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
)

const refreshJobTimeout = 10 * time.Minute

// RefreshJob runs the refresher on a schedule
type RefreshJob struct {
	refresher *Refresher
	log       zerolog.Logger
}

// NewRefreshJob creates a new price refresh job
func NewRefreshJob(refresher *Refresher, log zerolog.Logger) *RefreshJob {
	return &RefreshJob{
		refresher: refresher,
		log:       log.With().Str("job", "price_refresh").Logger(),
	}
}

// Run executes one refresh
func (j *RefreshJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), refreshJobTimeout)
	defer cancel()

	_, err := j.refresher.Refresh(ctx)
	if errors.Is(err, ErrRefreshInProgress) {
		j.log.Info().Msg("Refresh already running, skipping")
		return nil
	}
	return err
}

// Name returns the job name
func (j *RefreshJob) Name() string {
	return "price_refresh"
}
