// ABOUTME: Tests for primary store record upserts, reads, and existence checks
// ABOUTME: Uses a temporary SQLite database per test
package db

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harperreed/crmbridge/models"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	database, err := OpenDatabase(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("OpenDatabase failed: %v", err)
	}
	return database
}

func TestUpsertRecordIsKeyedOnID(t *testing.T) {
	db := setupTestDB(t)
	defer func() { _ = db.Close() }()
	ctx := context.Background()

	first := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	contact := &models.Contact{ID: "c1", FirstName: "Ada", Organization: "Analytical", Status: "active", UpdatedAt: first}
	require.NoError(t, UpsertRecord(ctx, db, contact))

	// Same id, changed fields, no organization on the incoming row
	second := first.Add(time.Hour)
	require.NoError(t, UpsertRecord(ctx, db, &models.Contact{ID: "c1", FirstName: "Ada", LastName: "Lovelace", Status: "active", UpdatedAt: second}))

	count, err := CountRecords(ctx, db, models.EntityContact)
	require.NoError(t, err)
	assert.Equal(t, 1, count, "upsert on the same id must not create a second row")

	rec, err := GetRecord(ctx, db, models.EntityContact, "c1")
	require.NoError(t, err)
	got := rec.(*models.Contact)
	assert.Equal(t, "Lovelace", got.LastName)
	assert.Equal(t, "Analytical", got.Organization, "organization absent on the incoming row is preserved")
	assert.True(t, got.CreatedAt.Equal(first), "created_at is kept from the first insert")
	assert.True(t, got.UpdatedAt.Equal(second))
}

func TestUpsertAndFetchNullableFields(t *testing.T) {
	db := setupTestDB(t)
	defer func() { _ = db.Close() }()
	ctx := context.Background()

	now := time.Date(2026, 10, 15, 0, 0, 0, 0, time.UTC)
	due := now.Add(72 * time.Hour)

	require.NoError(t, UpsertRecord(ctx, db, &models.Task{ID: "t1", Description: "Call donor", ProjectID: models.StringPtr("p1"), Status: "todo", DueDate: &due, UpdatedAt: now}))
	require.NoError(t, UpsertRecord(ctx, db, &models.Task{ID: "t2", Description: "Send receipt", Status: "done", UpdatedAt: now}))

	records, err := FetchRecords(ctx, db, models.EntityTask)
	require.NoError(t, err)
	require.Len(t, records, 2)

	t1 := records[0].(*models.Task)
	require.NotNil(t, t1.ProjectID)
	assert.Equal(t, "p1", *t1.ProjectID)
	require.NotNil(t, t1.DueDate)
	assert.True(t, t1.DueDate.Equal(due))

	t2 := records[1].(*models.Task)
	assert.Nil(t, t2.ProjectID)
	assert.Nil(t, t2.DueDate)
}

func TestUpsertRecordConstraintViolation(t *testing.T) {
	db := setupTestDB(t)
	defer func() { _ = db.Close() }()

	err := UpsertRecord(context.Background(), db, &models.Task{ID: "t1", Description: "x", Status: "exploded", UpdatedAt: time.Now()})
	assert.Error(t, err, "status outside the task vocabulary violates the CHECK constraint")
}

func TestActivityRoundTrip(t *testing.T) {
	db := setupTestDB(t)
	defer func() { _ = db.Close() }()
	ctx := context.Background()

	date := time.Date(2026, 9, 1, 15, 0, 0, 0, time.UTC)
	require.NoError(t, UpsertRecord(ctx, db, &models.Activity{
		ID: "a1", Type: "call", Title: "Thank-you call", ContactID: models.StringPtr("c1"), CaseID: models.StringPtr("k1"),
		Date: &date, Status: "completed", UpdatedAt: date,
	}))

	rec, err := GetRecord(ctx, db, models.EntityActivity, "a1")
	require.NoError(t, err)
	a := rec.(*models.Activity)
	assert.Nil(t, a.ProjectID)
	require.NotNil(t, a.ContactID)
	assert.Equal(t, "c1", *a.ContactID)
	require.NotNil(t, a.CaseID)
	assert.Equal(t, "k1", *a.CaseID)
}

func TestGetRecordMissing(t *testing.T) {
	db := setupTestDB(t)
	defer func() { _ = db.Close() }()

	rec, err := GetRecord(context.Background(), db, models.EntityProject, "nope")
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestExistingIDsChunks(t *testing.T) {
	db := setupTestDB(t)
	defer func() { _ = db.Close() }()
	ctx := context.Background()

	now := time.Now().UTC()
	var ids []string
	for i := 0; i < existsChunk+25; i++ {
		id := fmt.Sprintf("c%04d", i)
		ids = append(ids, id)
		if i%2 == 0 {
			require.NoError(t, UpsertRecord(ctx, db, &models.Contact{ID: id, Status: "active", UpdatedAt: now}))
		}
	}
	ids = append(ids, "missing")

	found, err := ExistingIDs(ctx, db, models.EntityContact, ids)
	require.NoError(t, err)

	assert.True(t, found["c0000"])
	assert.False(t, found["c0001"])
	assert.True(t, found[fmt.Sprintf("c%04d", existsChunk+24)])
	assert.False(t, found["missing"])
	assert.Len(t, found, (existsChunk+25+1)/2)
}

func TestUnknownEntity(t *testing.T) {
	db := setupTestDB(t)
	defer func() { _ = db.Close() }()

	_, err := FetchRecords(context.Background(), db, models.EntityType("donation"))
	assert.ErrorIs(t, err, ErrUnknownEntity)
}
