// ABOUTME: Tests for schema mapping between the CRM and partner schemas
// ABOUTME: Covers the display name fallback chain, status tables, dates, and mapping errors
package mapping

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harperreed/crmbridge/models"
)

var runClock = time.Date(2026, 10, 15, 9, 30, 0, 0, time.UTC)

func TestDisplayNameFallbackChain(t *testing.T) {
	tests := []struct {
		name     string
		first    string
		last     string
		org      string
		expected string
	}{
		{"first and last", "Ada", "Lovelace", "Analytical", "Ada Lovelace"},
		{"first only", "Ada", "", "", "Ada"},
		{"last only", "", "Lovelace", "", "Lovelace"},
		{"whitespace trimmed", "  Ada ", " Lovelace ", "", "Ada Lovelace"},
		{"organization fallback", "", "", "Food Bank of Springfield", "Food Bank of Springfield"},
		{"blank names use organization", "  ", "\t", "Shelter Co", "Shelter Co"},
		{"all empty", "", "", "", "Unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, DisplayName(tt.first, tt.last, tt.org))
		})
	}
}

func TestSplitName(t *testing.T) {
	tests := []struct {
		input string
		first string
		last  string
	}{
		{"Ada Lovelace", "Ada", "Lovelace"},
		{"Mary Ann Evans", "Mary", "Ann Evans"},
		{"Cher", "Cher", ""},
		{"Unknown", "", ""},
		{"", "", ""},
	}

	for _, tt := range tests {
		first, last := SplitName(tt.input)
		if first != tt.first || last != tt.last {
			t.Errorf("SplitName(%q) = (%q, %q), want (%q, %q)", tt.input, first, last, tt.first, tt.last)
		}
	}
}

func TestMapContactToPartner(t *testing.T) {
	m := New(runClock)
	source := &models.Contact{
		ID:           "c1",
		Organization: "Springfield Food Bank",
		Email:        " donor@example.org ",
		Status:       models.ContactStatusLead,
		UpdatedAt:    time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
	}

	out, err := m.Map(models.DirectionPush, models.EntityContact, source)
	require.NoError(t, err)

	client, ok := out.(*models.Client)
	require.True(t, ok, "push of a contact should produce a partner client")
	assert.Equal(t, "c1", client.ID)
	assert.Equal(t, "Springfield Food Bank", client.Name)
	assert.Equal(t, "donor@example.org", client.Email)
	assert.Equal(t, "prospect", client.Status)
	assert.Equal(t, runClock, client.UpdatedAt, "updated_at must be the run clock, not the source timestamp")
}

func TestMapContactWithNoNameIsUnknown(t *testing.T) {
	m := New(runClock)
	out, err := m.Map(models.DirectionPush, models.EntityContact, &models.Contact{ID: "c1"})
	require.NoError(t, err)
	assert.Equal(t, "Unknown", out.(*models.Client).Name)
}

func TestMapClientToPrimary(t *testing.T) {
	m := New(runClock)
	out, err := m.Map(models.DirectionPull, models.EntityContact, &models.Client{
		ID:     "c9",
		Name:   "Grace Hopper",
		Status: "archived",
	})
	require.NoError(t, err)

	contact := out.(*models.Contact)
	assert.Equal(t, "Grace", contact.FirstName)
	assert.Equal(t, "Hopper", contact.LastName)
	assert.Equal(t, models.ContactStatusInactive, contact.Status)
	assert.Equal(t, runClock, contact.UpdatedAt)
}

func TestMapProjectCoercesDatesAndReferences(t *testing.T) {
	m := New(runClock)
	zero := time.Time{}
	start := time.Date(2026, 1, 2, 0, 0, 0, 0, time.FixedZone("EST", -5*3600))
	blank := "  "

	out, err := m.Map(models.DirectionPush, models.EntityProject, &models.Project{
		ID:        "p1",
		ContactID: &blank,
		StartDate: &start,
		EndDate:   &zero,
	})
	require.NoError(t, err)

	project := out.(*models.PartnerProject)
	assert.Nil(t, project.ClientID, "blank reference should become null")
	assert.Nil(t, project.EndsOn, "zero date should become null")
	require.NotNil(t, project.StartsOn)
	assert.True(t, project.StartsOn.Equal(start))
	assert.Equal(t, time.UTC, project.StartsOn.Location())
	assert.Equal(t, UntitledName, project.Title)
	assert.Equal(t, "draft", project.State, "empty status should default to the partner's first state")
}

func TestMapDoesNotAliasSourceReferences(t *testing.T) {
	m := New(runClock)
	source := &models.Task{ID: "t1", ProjectID: models.StringPtr("p1")}

	out, err := m.Map(models.DirectionPush, models.EntityTask, source)
	require.NoError(t, err)

	task := out.(*models.PartnerTask)
	task.ForeignKeys()[0].Clear()
	require.NotNil(t, source.ProjectID, "clearing a mapped reference must not mutate the source row")
	assert.Equal(t, "p1", *source.ProjectID)
}

func TestMapActivityRoundTripStatuses(t *testing.T) {
	m := New(runClock)
	out, err := m.Map(models.DirectionPush, models.EntityActivity, &models.Activity{
		ID:        "a1",
		Status:    models.ActivityStatusCompleted,
		ContactID: models.StringPtr("c1"),
	})
	require.NoError(t, err)
	partner := out.(*models.PartnerActivity)
	assert.Equal(t, "done", partner.State)
	assert.Equal(t, DefaultActivityKind, partner.Kind)

	back, err := m.Map(models.DirectionPull, models.EntityActivity, partner)
	require.NoError(t, err)
	activity := back.(*models.Activity)
	assert.Equal(t, models.ActivityStatusCompleted, activity.Status)
	require.NotNil(t, activity.ContactID)
	assert.Equal(t, "c1", *activity.ContactID)
}

func TestUnknownStatusPassesThroughLowercased(t *testing.T) {
	m := New(runClock)
	out, err := m.Map(models.DirectionPush, models.EntityCase, &models.Case{ID: "k1", Status: "Escalated"})
	require.NoError(t, err)
	assert.Equal(t, "escalated", out.(*models.PartnerCase).State)
}

func TestMapMissingID(t *testing.T) {
	m := New(runClock)
	_, err := m.Map(models.DirectionPush, models.EntityContact, &models.Contact{ID: "   ", FirstName: "Ada"})
	require.Error(t, err)

	var mapErr *MappingError
	require.True(t, errors.As(err, &mapErr))
	assert.Equal(t, "missing id", mapErr.Reason)
	assert.Equal(t, models.EntityContact, mapErr.Entity)
}

func TestMapWrongRowType(t *testing.T) {
	m := New(runClock)
	_, err := m.Map(models.DirectionPush, models.EntityProject, &models.Contact{ID: "c1"})

	var mapErr *MappingError
	require.True(t, errors.As(err, &mapErr))
	assert.Equal(t, "unexpected row type", mapErr.Reason)

	// A partner row on the push side is the wrong schema.
	_, err = m.Map(models.DirectionPush, models.EntityContact, &models.Client{ID: "c1"})
	require.True(t, errors.As(err, &mapErr))
}

func TestMapUnknownDirection(t *testing.T) {
	m := New(runClock)
	_, err := m.Map(models.Direction("both"), models.EntityContact, &models.Contact{ID: "c1"})
	assert.ErrorIs(t, err, models.ErrUnknownDirection)
}
