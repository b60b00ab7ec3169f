// ABOUTME: Tests for the HTTP trigger server
// ABOUTME: Drives the chi router with httptest against an in-memory sync queue
package web

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
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

type fixture struct {
	db      *sql.DB
	primary *connector.MemoryConnector
	partner *connector.MemoryConnector
	queue   *sync.Queue
	server  *Server
}

func newFixture(t *testing.T) *fixture {
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

	return &fixture{
		db:      database,
		primary: primary,
		partner: partner,
		queue:   q,
		server:  NewServer(database, &sync.Dispatcher{Queue: q, Primary: primary}, time.Minute, nil),
	}
}

func (f *fixture) do(method, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	f := newFixture(t)
	rec := f.do(http.MethodGet, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestTriggerPushWaitsForReport(t *testing.T) {
	f := newFixture(t)
	f.primary.Seed("contacts", &models.Contact{ID: "c1", FirstName: "Ada"})
	f.primary.Seed("projects", &models.Project{ID: "p1", Name: "Gala", ContactID: models.StringPtr("c1")})

	rec := f.do(http.MethodPost, "/sync/push")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp triggerResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "finished", resp.Status)
	require.NotNil(t, resp.Totals)
	assert.Equal(t, 2, resp.Totals.Succeeded)
	assert.NotEmpty(t, resp.HandleID)

	project := f.partner.Get("projects", "p1").(*models.PartnerProject)
	require.NotNil(t, project.ClientID)
}

func TestTriggerRejectsUnknownDirection(t *testing.T) {
	f := newFixture(t)
	rec := f.do(http.MethodPost, "/sync/sideways")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "unknown sync direction")
}

func TestTriggerWithoutWaitIsAccepted(t *testing.T) {
	f := newFixture(t)
	rec := f.do(http.MethodPost, "/sync/pull?wait=false")
	assert.Equal(t, http.StatusAccepted, rec.Code)

	var resp triggerResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "queued", resp.Status)

	rec = f.do(http.MethodPost, "/sync/pull?wait=maybe")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRunsAndStatusReflectHistory(t *testing.T) {
	f := newFixture(t)
	f.partner.Seed("clients", &models.Client{ID: "c1", Name: "Ada Lovelace"})

	require.Equal(t, http.StatusOK, f.do(http.MethodPost, "/sync/pull").Code)

	rec := f.do(http.MethodGet, "/sync/runs?limit=5")
	require.Equal(t, http.StatusOK, rec.Code)
	var runs []runView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &runs))
	require.Len(t, runs, 1)
	assert.Equal(t, "pull", runs[0].Direction)
	assert.Equal(t, "primary", runs[0].Target)
	assert.Equal(t, 1, runs[0].Succeeded)

	rec = f.do(http.MethodGet, "/sync/status")
	require.Equal(t, http.StatusOK, rec.Code)
	var states []stateView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &states))
	require.Len(t, states, 1)
	assert.Equal(t, "idle", states[0].Status)
	require.NotNil(t, states[0].LastRunID)
	assert.Equal(t, runs[0].ID, *states[0].LastRunID)

	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodGet, "/sync/runs?limit=-1").Code)
}

func TestTriggerAfterQueueClosed(t *testing.T) {
	f := newFixture(t)
	f.queue.Close()

	rec := f.do(http.MethodPost, "/sync/pull")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
