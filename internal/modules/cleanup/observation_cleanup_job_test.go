package cleanup

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aristath/folio/internal/modules/marketdata"
	testhelpers "github.com/aristath/folio/internal/testing"
	"github.com/aristath/folio/internal/utils"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPruner struct {
	before time.Time
	calls  int
	err    error
}

func (p *recordingPruner) PruneObservations(_ context.Context, before time.Time) (int64, int64, error) {
	p.calls++
	p.before = before
	return 0, 0, p.err
}

func TestObservationCleanupJob_Cutoff(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	pruner := &recordingPruner{}
	job := NewObservationCleanupJob(pruner, 30, utils.NewManualClock(now), zerolog.New(nil).Level(zerolog.Disabled))

	require.NoError(t, job.Run())
	assert.Equal(t, 1, pruner.calls)
	assert.True(t, pruner.before.Equal(now.AddDate(0, 0, -30)))
	assert.Equal(t, "observation_cleanup", job.Name())
}

func TestObservationCleanupJob_Disabled(t *testing.T) {
	pruner := &recordingPruner{}
	job := NewObservationCleanupJob(pruner, 0, nil, zerolog.New(nil).Level(zerolog.Disabled))

	require.NoError(t, job.Run())
	assert.Zero(t, pruner.calls)
}

func TestObservationCleanupJob_Error(t *testing.T) {
	pruner := &recordingPruner{err: errors.New("locked")}
	job := NewObservationCleanupJob(pruner, 30, nil, zerolog.New(nil).Level(zerolog.Disabled))

	assert.Error(t, job.Run())
}

func TestObservationCleanupJob_Repository(t *testing.T) {
	db := testhelpers.NewTestDB(t)
	conn := db.Conn()
	log := zerolog.New(nil).Level(zerolog.Disabled)

	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	instID := testhelpers.InsertInstrument(t, conn, "AAA", "Equity", "EUR")
	testhelpers.InsertPrice(t, conn, instID, 10, now.AddDate(0, 0, -90))
	testhelpers.InsertPrice(t, conn, instID, 11, now.AddDate(0, 0, -1))

	job := NewObservationCleanupJob(marketdata.NewRepository(conn, log), 30, utils.NewManualClock(now), log)
	require.NoError(t, job.Run())

	assert.Equal(t, 1, testhelpers.CountRows(t, conn, "prices"))
}
