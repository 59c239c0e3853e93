// Package reliability keeps the database healthy and backed up off-host.
package reliability

import (
	"context"
	"crypto/sha256"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/aristath/folio/internal/database"
	"github.com/aristath/folio/internal/utils"
	"github.com/rs/zerolog"
)

const (
	// BackupPrefix is the key prefix every backup is stored under
	BackupPrefix = "folio-backups/"

	backupTimeFormat = "2006-01-02-150405"

	// minBackupsToKeep survive rotation regardless of age
	minBackupsToKeep = 3
)

// BackupResult describes one uploaded backup
type BackupResult struct {
	Key       string        `json:"key"`
	Checksum  string        `json:"checksum"`
	SizeBytes int64         `json:"size_bytes"`
	Duration  time.Duration `json:"duration"`
}

// BackupInfo describes a backup found in the store
type BackupInfo struct {
	Key       string    `json:"key"`
	Timestamp time.Time `json:"timestamp"`
	SizeBytes int64     `json:"size_bytes"`
}

// BackupService uploads consistent database copies to an ObjectStore
type BackupService struct {
	db    *database.DB
	store ObjectStore
	clock utils.Clock
	log   zerolog.Logger
}

// NewBackupService creates a new backup service
func NewBackupService(db *database.DB, store ObjectStore, clock utils.Clock, log zerolog.Logger) *BackupService {
	if clock == nil {
		clock = utils.SystemClock{}
	}
	return &BackupService{
		db:    db,
		store: store,
		clock: clock,
		log:   log.With().Str("service", "backup").Logger(),
	}
}

// BackupKey returns the object key for a backup taken at t
func BackupKey(t time.Time) string {
	return BackupPrefix + "folio-" + t.UTC().Format(backupTimeFormat) + ".db"
}

// Backup writes the database to a temp file with VACUUM INTO and uploads it
func (s *BackupService) Backup(ctx context.Context) (*BackupResult, error) {
	start := time.Now()
	key := BackupKey(s.clock.Now())

	stagingDir, err := os.MkdirTemp("", "folio-backup-")
	if err != nil {
		return nil, fmt.Errorf("failed to create staging directory: %w", err)
	}
	defer os.RemoveAll(stagingDir)

	copyPath := filepath.Join(stagingDir, "folio.db")
	if err := s.db.VacuumInto(ctx, copyPath); err != nil {
		return nil, fmt.Errorf("failed to copy database: %w", err)
	}

	checksum, size, err := fileChecksum(copyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to checksum backup: %w", err)
	}

	f, err := os.Open(copyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open backup: %w", err)
	}
	defer f.Close()

	if err := s.store.Upload(ctx, key, f, map[string]string{"checksum": checksum}); err != nil {
		return nil, fmt.Errorf("failed to upload backup: %w", err)
	}

	result := &BackupResult{
		Key:       key,
		Checksum:  checksum,
		SizeBytes: size,
		Duration:  time.Since(start),
	}

	s.log.Info().
		Str("key", key).
		Int64("size_bytes", size).
		Dur("duration_ms", result.Duration).
		Msg("Backup uploaded")

	return result, nil
}

// ListBackups returns stored backups, newest first.
// Keys that do not parse as backups are ignored.
func (s *BackupService) ListBackups(ctx context.Context) ([]BackupInfo, error) {
	objects, err := s.store.List(ctx, BackupPrefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list backups: %w", err)
	}

	backups := make([]BackupInfo, 0, len(objects))
	for _, obj := range objects {
		ts, ok := parseBackupKey(obj.Key)
		if !ok {
			s.log.Debug().Str("key", obj.Key).Msg("Skipping unrecognized object")
			continue
		}
		backups = append(backups, BackupInfo{Key: obj.Key, Timestamp: ts, SizeBytes: obj.SizeBytes})
	}

	sort.Slice(backups, func(i, j int) bool {
		return backups[i].Timestamp.After(backups[j].Timestamp)
	})
	return backups, nil
}

// Rotate deletes backups older than retentionDays, always keeping the
// newest few. retentionDays <= 0 keeps everything.
func (s *BackupService) Rotate(ctx context.Context, retentionDays int) (int, error) {
	if retentionDays <= 0 {
		return 0, nil
	}

	backups, err := s.ListBackups(ctx)
	if err != nil {
		return 0, err
	}
	if len(backups) <= minBackupsToKeep {
		return 0, nil
	}

	cutoff := s.clock.Now().AddDate(0, 0, -retentionDays)
	deleted := 0
	for _, b := range backups[minBackupsToKeep:] {
		if !b.Timestamp.Before(cutoff) {
			continue
		}
		if err := s.store.Delete(ctx, b.Key); err != nil {
			s.log.Error().Err(err).Str("key", b.Key).Msg("Failed to delete old backup")
			continue
		}
		deleted++
	}

	if deleted > 0 {
		s.log.Info().
			Int("deleted", deleted).
			Int("remaining", len(backups)-deleted).
			Msg("Backup rotation completed")
	}
	return deleted, nil
}

func parseBackupKey(key string) (time.Time, bool) {
	name := strings.TrimPrefix(key, BackupPrefix)
	if name == key || !strings.HasPrefix(name, "folio-") || !strings.HasSuffix(name, ".db") {
		return time.Time{}, false
	}
	name = strings.TrimSuffix(strings.TrimPrefix(name, "folio-"), ".db")

	ts, err := time.Parse(backupTimeFormat, name)
	if err != nil {
		return time.Time{}, false
	}
	return ts, true
}

func fileChecksum(path string) (string, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, err
	}
	defer f.Close()

	h := sha256.New()
	n, err := io.Copy(h, f)
	if err != nil {
		return "", 0, err
	}
	return fmt.Sprintf("sha256:%x", h.Sum(nil)), n, nil
}
