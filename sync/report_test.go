// ABOUTME: Tests for sync run report aggregation and history conversion
// ABOUTME: Round-trips a report through the sync_runs table
package sync

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harperreed/crmbridge/db"
	"github.com/harperreed/crmbridge/models"
)

func sampleReport() *Report {
	started := time.Date(2026, 10, 15, 8, 0, 0, 0, time.UTC)
	contacts := &CollectionReport{Entity: models.EntityContact, Collection: "clients", Attempted: 3, Succeeded: 2}
	contacts.fail(1, errors.New("constraint violated"))
	contacts.fail(0, errors.New("second error is not recorded"))

	projects := &CollectionReport{
		Entity: models.EntityProject, Collection: "projects", Attempted: 4, Succeeded: 2, Skipped: 2,
		Warnings: []IntegrityWarning{{Entity: models.EntityProject, EntityID: "p1", DroppedField: "client_id", ReferencedID: "c9"}},
	}

	return &Report{
		RunID:         NewRunID(started),
		Direction:     models.DirectionPush,
		Source:        "primary",
		Target:        "partner",
		StartedAt:     started,
		FinishedAt:    started.Add(3 * time.Second),
		Duration:      3 * time.Second,
		Partial:       true,
		PartialReason: "deadline exceeded during project: context deadline exceeded",
		Collections:   []*CollectionReport{contacts, projects},
	}
}

func TestReportTotalsAndLookups(t *testing.T) {
	r := sampleReport()

	assert.Equal(t, Totals{Attempted: 7, Succeeded: 4, Failed: 1, Skipped: 2, Warnings: 1}, r.Totals())
	assert.Equal(t, "constraint violated", r.Collection(models.EntityContact).FirstError)
	assert.Nil(t, r.Collection(models.EntityTask))
	assert.Len(t, r.Warnings(), 1)
	assert.False(t, r.OK())
	assert.Contains(t, r.Summary(), "partial")
}

func TestReportPersistsToRunHistory(t *testing.T) {
	database, err := db.OpenDatabase(filepath.Join(t.TempDir(), "crm.db"))
	require.NoError(t, err)
	defer func() { _ = database.Close() }()

	r := sampleReport()
	run, err := r.SyncRun()
	require.NoError(t, err)
	require.NoError(t, db.RecordSyncRun(database, run))

	runs, err := db.ListSyncRuns(database, 5)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, r.RunID, runs[0].ID)
	assert.Equal(t, 1, runs[0].Warnings)
	assert.True(t, runs[0].Partial)

	decoded, err := DecodeReport(runs[0].Report)
	require.NoError(t, err)
	assert.Equal(t, r.Totals(), decoded.Totals())
	assert.Equal(t, "constraint violated", decoded.Collection(models.EntityContact).FirstError)
	assert.Nil(t, decoded.Collection(models.EntityContact).Err, "live errors are not serialized")
}

func TestNewRunIDIsSortable(t *testing.T) {
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	a := NewRunID(t0)
	b := NewRunID(t0.Add(time.Second))
	assert.Len(t, a, 26)
	assert.Less(t, a, b)
}

func TestRecordReportUpdatesSyncState(t *testing.T) {
	database, err := db.OpenDatabase(filepath.Join(t.TempDir(), "crm.db"))
	require.NoError(t, err)
	defer func() { _ = database.Close() }()

	clean := &Report{RunID: NewRunID(time.Now()), Direction: models.DirectionPull, Target: "primary", StartedAt: time.Now()}
	require.NoError(t, RecordReport(database, clean))

	state, err := db.GetSyncState(database, "pull")
	require.NoError(t, err)
	require.NotNil(t, state)
	assert.Equal(t, "idle", state.Status)
	assert.Equal(t, clean.RunID, *state.LastRunID)

	failed := sampleReport()
	require.NoError(t, RecordReport(database, failed))
	state, err = db.GetSyncState(database, "push")
	require.NoError(t, err)
	assert.Equal(t, "error", state.Status)
	require.NotNil(t, state.ErrorMessage)
	assert.Contains(t, *state.ErrorMessage, "partial")

	dry := &Report{RunID: NewRunID(time.Now()), Direction: models.DirectionPull, DryRun: true, StartedAt: time.Now()}
	require.NoError(t, RecordReport(database, dry))
	state, err = db.GetSyncState(database, "pull")
	require.NoError(t, err)
	assert.Equal(t, clean.RunID, *state.LastRunID, "dry runs do not move sync state")

	runs, err := db.ListSyncRuns(database, 10)
	require.NoError(t, err)
	assert.Len(t, runs, 3)
}
