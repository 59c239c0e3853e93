package snapshots

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// captureTimeout bounds one scheduled capture
const captureTimeout = 2 * time.Minute

// CaptureJob records the end-of-day snapshot
type CaptureJob struct {
	recorder *Recorder
	log      zerolog.Logger
}

// NewCaptureJob creates the scheduled snapshot job
func NewCaptureJob(recorder *Recorder, log zerolog.Logger) *CaptureJob {
	return &CaptureJob{
		recorder: recorder,
		log:      log.With().Str("job", "eod_snapshot").Logger(),
	}
}

// Run captures one snapshot
func (j *CaptureJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), captureTimeout)
	defer cancel()

	_, err := j.recorder.Capture(ctx)
	return err
}

// Name returns the job name
func (j *CaptureJob) Name() string {
	return "eod_snapshot"
}
