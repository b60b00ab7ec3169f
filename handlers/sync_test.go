// ABOUTME: Tests for sync MCP tool handlers
// ABOUTME: Runs push, pull, and dry runs through the queue against in-memory stores
package handlers

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harperreed/crmbridge/connector"
	"github.com/harperreed/crmbridge/db"
	"github.com/harperreed/crmbridge/models"
	"github.com/harperreed/crmbridge/sync"
)

type harness struct {
	db       *sql.DB
	primary  *connector.MemoryConnector
	partner  *connector.MemoryConnector
	handlers *SyncHandlers
}

func setupHandlers(t *testing.T) *harness {
	t.Helper()
	database, err := db.OpenDatabase(filepath.Join(t.TempDir(), "crm.db"))
	require.NoError(t, err)

	primary := connector.NewMemoryConnector("primary", models.SidePrimary)
	partner := connector.NewMemoryConnector("partner", models.SidePartner)
	engine := sync.NewEngine(primary, partner, nil, nil)

	q := sync.NewQueue(engine, time.Minute, nil)
	q.OnComplete = func(r *sync.Report) { _ = sync.RecordReport(database, r) }
	t.Cleanup(func() {
		q.Close()
		_ = database.Close()
	})

	return &harness{
		db:       database,
		primary:  primary,
		partner:  partner,
		handlers: NewSyncHandlers(database, &sync.Dispatcher{Queue: q, Primary: primary}, engine),
	}
}

func TestSyncRunPush(t *testing.T) {
	h := setupHandlers(t)
	h.primary.Seed("contacts", &models.Contact{ID: "c1", FirstName: "Ada", LastName: "Lovelace"})
	h.primary.Seed("cases", &models.Case{ID: "k1", Title: "Housing", ContactID: models.StringPtr("c404")})

	_, out, err := h.handlers.SyncRun(context.Background(), nil, SyncRunInput{Direction: "push"})
	require.NoError(t, err)

	assert.Equal(t, "push", out.Direction)
	assert.Equal(t, "partner", out.Target)
	assert.False(t, out.DryRun)
	require.Len(t, out.Collections, 5)
	assert.Equal(t, "clients", out.Collections[0].Collection)
	assert.Equal(t, 1, out.Collections[0].Succeeded)

	var caseOut CollectionOutput
	for _, c := range out.Collections {
		if c.Collection == "cases" {
			caseOut = c
		}
	}
	require.Len(t, caseOut.Warnings, 1)
	assert.Contains(t, caseOut.Warnings[0], "c404")

	assert.Equal(t, 1, h.partner.Len("clients"))
	assert.Equal(t, 1, h.partner.Len("cases"))
}

func TestSyncRunRejectsUnknownDirection(t *testing.T) {
	h := setupHandlers(t)
	_, _, err := h.handlers.SyncRun(context.Background(), nil, SyncRunInput{Direction: "both"})
	assert.ErrorIs(t, err, models.ErrUnknownDirection)
}

func TestSyncRunDryRunIsRecordedButWritesNothing(t *testing.T) {
	h := setupHandlers(t)
	h.partner.Seed("clients", &models.Client{ID: "c1", Name: "Grace Hopper"})

	_, out, err := h.handlers.SyncRun(context.Background(), nil, SyncRunInput{Direction: "pull", DryRun: true})
	require.NoError(t, err)
	assert.True(t, out.DryRun)
	assert.Equal(t, 1, out.Collections[0].Succeeded)
	assert.Equal(t, 0, h.primary.Len("contacts"))

	_, status, err := h.handlers.SyncStatus(context.Background(), nil, SyncStatusInput{})
	require.NoError(t, err)
	require.Len(t, status.Runs, 1)
	assert.Equal(t, out.RunID, status.Runs[0].RunID)
	assert.Empty(t, status.Directions, "dry runs leave sync state alone")
}

func TestSyncStatusAfterRuns(t *testing.T) {
	h := setupHandlers(t)
	h.partner.Seed("clients", &models.Client{ID: "c1", Name: "Grace Hopper"})

	_, pull, err := h.handlers.SyncRun(context.Background(), nil, SyncRunInput{Direction: "pull"})
	require.NoError(t, err)
	_, _, err = h.handlers.SyncRun(context.Background(), nil, SyncRunInput{Direction: "push"})
	require.NoError(t, err)

	_, status, err := h.handlers.SyncStatus(context.Background(), nil, SyncStatusInput{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, status.Runs, 1)
	require.Len(t, status.Directions, 2)

	for _, d := range status.Directions {
		assert.Equal(t, "idle", d.Status)
		assert.NotNil(t, d.LastSyncTime)
		if d.Direction == "pull" {
			assert.Equal(t, pull.RunID, *d.LastRunID)
		}
	}
}
