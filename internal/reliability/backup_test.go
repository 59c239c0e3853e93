package reliability

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	testhelpers "github.com/aristath/folio/internal/testing"
	"github.com/aristath/folio/internal/utils"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

type memoryStore struct {
	mu        sync.Mutex
	objects   map[string][]byte
	metadata  map[string]map[string]string
	uploadErr error
	deleteErr error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		objects:  make(map[string][]byte),
		metadata: make(map[string]map[string]string),
	}
}

func (m *memoryStore) Upload(_ context.Context, key string, body io.Reader, metadata map[string]string) error {
	if m.uploadErr != nil {
		return m.uploadErr
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = data
	m.metadata[key] = metadata
	return nil
}

func (m *memoryStore) List(_ context.Context, prefix string) ([]ObjectInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []ObjectInfo
	for key, data := range m.objects {
		if strings.HasPrefix(key, prefix) {
			out = append(out, ObjectInfo{Key: key, SizeBytes: int64(len(data))})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (m *memoryStore) Delete(_ context.Context, key string) error {
	if m.deleteErr != nil {
		return m.deleteErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

func (m *memoryStore) keys() []string {
	objs, _ := m.List(context.Background(), "")
	keys := make([]string, 0, len(objs))
	for _, o := range objs {
		keys = append(keys, o.Key)
	}
	return keys
}

func testLogger() zerolog.Logger {
	return zerolog.New(nil).Level(zerolog.Disabled)
}

func TestBackupKey(t *testing.T) {
	ts := time.Date(2024, 3, 15, 23, 30, 5, 0, time.UTC)
	assert.Equal(t, "folio-backups/folio-2024-03-15-233005.db", BackupKey(ts))

	parsed, ok := parseBackupKey(BackupKey(ts))
	require.True(t, ok)
	assert.True(t, parsed.Equal(ts))

	for _, key := range []string{
		"folio-backups/other.db",
		"folio-backups/folio-yesterday.db",
		"folio-2024-03-15-233005.db",
		"folio-backups/folio-2024-03-15-233005.tar.gz",
	} {
		_, ok := parseBackupKey(key)
		assert.False(t, ok, key)
	}
}

func TestBackupService_Backup(t *testing.T) {
	db := testhelpers.NewTestDB(t)
	accID := testhelpers.InsertAccount(t, db.Conn(), "Broker", "EUR")
	instID := testhelpers.InsertInstrument(t, db.Conn(), "AAPL", "Stock", "USD")
	testhelpers.InsertPosition(t, db.Conn(), accID, instID, 10, 40, 400)

	store := newMemoryStore()
	clock := utils.NewManualClock(time.Date(2024, 3, 15, 3, 0, 0, 0, time.UTC))
	svc := NewBackupService(db, store, clock, testLogger())

	result, err := svc.Backup(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "folio-backups/folio-2024-03-15-030000.db", result.Key)
	assert.True(t, strings.HasPrefix(result.Checksum, "sha256:"))

	data, ok := store.objects[result.Key]
	require.True(t, ok)
	assert.Equal(t, result.SizeBytes, int64(len(data)))
	assert.True(t, bytes.HasPrefix(data, []byte("SQLite format 3\x00")))
	assert.Equal(t, result.Checksum, store.metadata[result.Key]["checksum"])

	// the uploaded copy is a usable database with the same rows
	path := filepath.Join(t.TempDir(), "restored.db")
	require.NoError(t, os.WriteFile(path, data, 0o600))
	restored, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	defer restored.Close()
	assert.Equal(t, 1, testhelpers.CountRows(t, restored, "positions"))
}

func TestBackupService_BackupUploadError(t *testing.T) {
	db := testhelpers.NewTestDB(t)
	store := newMemoryStore()
	store.uploadErr = errors.New("bucket unavailable")

	svc := NewBackupService(db, store, nil, testLogger())
	_, err := svc.Backup(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bucket unavailable")
}

func TestBackupService_ListAndRotate(t *testing.T) {
	store := newMemoryStore()
	now := time.Date(2024, 3, 31, 3, 0, 0, 0, time.UTC)
	for _, daysAgo := range []int{0, 1, 2, 40, 50, 60} {
		store.objects[BackupKey(now.AddDate(0, 0, -daysAgo))] = []byte("x")
	}
	store.objects["folio-backups/notes.txt"] = []byte("keep")

	svc := NewBackupService(nil, store, utils.NewManualClock(now), testLogger())

	backups, err := svc.ListBackups(context.Background())
	require.NoError(t, err)
	require.Len(t, backups, 6)
	assert.True(t, backups[0].Timestamp.Equal(now))
	assert.True(t, backups[5].Timestamp.Equal(now.AddDate(0, 0, -60)))

	deleted, err := svc.Rotate(context.Background(), 30)
	require.NoError(t, err)
	assert.Equal(t, 3, deleted)
	assert.Equal(t, []string{
		BackupKey(now.AddDate(0, 0, -2)),
		BackupKey(now.AddDate(0, 0, -1)),
		BackupKey(now),
		"folio-backups/notes.txt",
	}, store.keys())
}

func TestBackupService_RotateKeepsMinimum(t *testing.T) {
	store := newMemoryStore()
	now := time.Date(2024, 3, 31, 3, 0, 0, 0, time.UTC)
	for _, daysAgo := range []int{100, 200, 300} {
		store.objects[BackupKey(now.AddDate(0, 0, -daysAgo))] = []byte("x")
	}

	svc := NewBackupService(nil, store, utils.NewManualClock(now), testLogger())

	deleted, err := svc.Rotate(context.Background(), 30)
	require.NoError(t, err)
	assert.Equal(t, 0, deleted)
	assert.Len(t, store.keys(), 3)

	deleted, err = svc.Rotate(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, 0, deleted)
}

func TestBackupJob(t *testing.T) {
	db := testhelpers.NewTestDB(t)
	store := newMemoryStore()
	store.deleteErr = errors.New("denied")

	now := time.Date(2024, 3, 31, 3, 0, 0, 0, time.UTC)
	for _, daysAgo := range []int{40, 50, 60, 70} {
		store.objects[BackupKey(now.AddDate(0, 0, -daysAgo))] = []byte("x")
	}

	svc := NewBackupService(db, store, utils.NewManualClock(now), testLogger())
	job := NewBackupJob(svc, 30, testLogger())

	assert.Equal(t, "backup", job.Name())
	// a failed rotation does not fail the job
	require.NoError(t, job.Run())
	assert.Contains(t, store.keys(), BackupKey(now))
}
