package clientdata

import (
	"github.com/rs/zerolog"
)

// Purger is anything that can drop its expired entries
type Purger interface {
	PurgeExpired() int
}

// CleanupJob removes expired entries from the registered caches.
// It is scheduled at TTLCleanupInterval.
type CleanupJob struct {
	caches map[string]Purger
	log    zerolog.Logger
}

// NewCleanupJob creates a new cache cleanup job.
func NewCleanupJob(caches map[string]Purger, log zerolog.Logger) *CleanupJob {
	return &CleanupJob{
		caches: caches,
		log:    log.With().Str("job", "cache_cleanup").Logger(),
	}
}

// Run sweeps every cache.
func (j *CleanupJob) Run() error {
	total := 0
	for name, cache := range j.caches {
		if cache == nil {
			continue
		}
		if n := cache.PurgeExpired(); n > 0 {
			j.log.Debug().
				Str("cache", name).
				Int("deleted", n).
				Msg("Cleaned up expired cache entries")
			total += n
		}
	}

	if total > 0 {
		j.log.Info().Int("total_deleted", total).Msg("Cache cleanup completed")
	}

	return nil
}

// Name returns the job name for scheduling and logging.
func (j *CleanupJob) Name() string {
	return "cache_cleanup"
}
