// ABOUTME: Schema mapper translating rows between the CRM schema and the partner schema
// ABOUTME: Pure functions only: renames fields, coerces types, fills defaults, stamps updated_at
package mapping

import (
	"fmt"
	"strings"
	"time"

	"github.com/harperreed/crmbridge/models"
)

// UnknownName is the display name used when a contact has no name or organization.
const UnknownName = "Unknown"

// UntitledName fills titles that are empty on the source side.
const UntitledName = "Untitled"

// DefaultActivityKind fills activity types that are empty on the source side.
const DefaultActivityKind = "note"

// MappingError reports a source row that cannot be translated.
// Rows failing with a MappingError are counted failed and never retried.
type MappingError struct {
	Entity models.EntityType
	ID     string
	Reason string
}

func (e *MappingError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("cannot map %s: %s", e.Entity, e.Reason)
	}
	return fmt.Sprintf("cannot map %s %s: %s", e.Entity, e.ID, e.Reason)
}

// Mapper translates rows for one sync run. Now is the run's wall clock and is
// stamped as updated_at on every target row.
type Mapper struct {
	Now time.Time
}

// New creates a mapper stamping rows with now.
func New(now time.Time) *Mapper {
	return &Mapper{Now: now.UTC()}
}

// Map translates a source row of the given entity into the target schema for direction.
func (m *Mapper) Map(direction models.Direction, entity models.EntityType, row models.Record) (models.Record, error) {
	if err := direction.Validate(); err != nil {
		return nil, err
	}
	if row == nil {
		return nil, &MappingError{Entity: entity, Reason: "nil row"}
	}
	if row.Entity() != entity {
		return nil, &MappingError{Entity: entity, ID: row.RecordID(), Reason: "unexpected row type"}
	}
	if strings.TrimSpace(row.RecordID()) == "" {
		return nil, &MappingError{Entity: entity, Reason: "missing id"}
	}

	if direction == models.DirectionPush {
		return m.toPartner(row)
	}
	return m.toPrimary(row)
}

func (m *Mapper) toPartner(row models.Record) (models.Record, error) {
	switch r := row.(type) {
	case *models.Contact:
		return &models.Client{
			ID:        strings.TrimSpace(r.ID),
			Name:      DisplayName(r.FirstName, r.LastName, r.Organization),
			Email:     strings.TrimSpace(r.Email),
			Phone:     strings.TrimSpace(r.Phone),
			Location:  strings.TrimSpace(r.Location),
			Status:    translateStatus(contactStatuses, r.Status, true),
			UpdatedAt: m.Now,
		}, nil
	case *models.Project:
		return &models.PartnerProject{
			ID:        strings.TrimSpace(r.ID),
			Title:     orDefault(r.Name, UntitledName),
			Summary:   r.Description,
			ClientID:  cleanRef(r.ContactID),
			State:     translateStatus(projectStatuses, r.Status, true),
			StartsOn:  cleanTime(r.StartDate),
			EndsOn:    cleanTime(r.EndDate),
			UpdatedAt: m.Now,
		}, nil
	case *models.Case:
		return &models.PartnerCase{
			ID:        strings.TrimSpace(r.ID),
			Subject:   orDefault(r.Title, UntitledName),
			ClientID:  cleanRef(r.ContactID),
			State:     translateStatus(caseStatuses, r.Status, true),
			UpdatedAt: m.Now,
		}, nil
	case *models.Task:
		return &models.PartnerTask{
			ID:        strings.TrimSpace(r.ID),
			Summary:   orDefault(r.Description, UntitledName),
			ProjectID: cleanRef(r.ProjectID),
			OwnerID:   strings.TrimSpace(r.AssigneeID),
			State:     translateStatus(taskStatuses, r.Status, true),
			DueOn:     cleanTime(r.DueDate),
			UpdatedAt: m.Now,
		}, nil
	case *models.Activity:
		return &models.PartnerActivity{
			ID:         strings.TrimSpace(r.ID),
			Kind:       orDefault(r.Type, DefaultActivityKind),
			Title:      orDefault(r.Title, UntitledName),
			ProjectID:  cleanRef(r.ProjectID),
			ClientID:   cleanRef(r.ContactID),
			CaseID:     cleanRef(r.CaseID),
			OccurredOn: cleanTime(r.Date),
			State:      translateStatus(activityStatuses, r.Status, true),
			UpdatedAt:  m.Now,
		}, nil
	}
	return nil, &MappingError{Entity: row.Entity(), ID: row.RecordID(), Reason: "unexpected row type"}
}

func (m *Mapper) toPrimary(row models.Record) (models.Record, error) {
	switch r := row.(type) {
	case *models.Client:
		first, last := SplitName(r.Name)
		return &models.Contact{
			ID:        strings.TrimSpace(r.ID),
			FirstName: first,
			LastName:  last,
			Email:     strings.TrimSpace(r.Email),
			Phone:     strings.TrimSpace(r.Phone),
			Location:  strings.TrimSpace(r.Location),
			Status:    translateStatus(contactStatuses, r.Status, false),
			UpdatedAt: m.Now,
		}, nil
	case *models.PartnerProject:
		return &models.Project{
			ID:          strings.TrimSpace(r.ID),
			Name:        orDefault(r.Title, UntitledName),
			Description: r.Summary,
			ContactID:   cleanRef(r.ClientID),
			Status:      translateStatus(projectStatuses, r.State, false),
			StartDate:   cleanTime(r.StartsOn),
			EndDate:     cleanTime(r.EndsOn),
			UpdatedAt:   m.Now,
		}, nil
	case *models.PartnerCase:
		return &models.Case{
			ID:        strings.TrimSpace(r.ID),
			Title:     orDefault(r.Subject, UntitledName),
			ContactID: cleanRef(r.ClientID),
			Status:    translateStatus(caseStatuses, r.State, false),
			UpdatedAt: m.Now,
		}, nil
	case *models.PartnerTask:
		return &models.Task{
			ID:          strings.TrimSpace(r.ID),
			Description: orDefault(r.Summary, UntitledName),
			ProjectID:   cleanRef(r.ProjectID),
			AssigneeID:  strings.TrimSpace(r.OwnerID),
			Status:      translateStatus(taskStatuses, r.State, false),
			DueDate:     cleanTime(r.DueOn),
			UpdatedAt:   m.Now,
		}, nil
	case *models.PartnerActivity:
		return &models.Activity{
			ID:        strings.TrimSpace(r.ID),
			Type:      orDefault(r.Kind, DefaultActivityKind),
			Title:     orDefault(r.Title, UntitledName),
			ProjectID: cleanRef(r.ProjectID),
			ContactID: cleanRef(r.ClientID),
			CaseID:    cleanRef(r.CaseID),
			Date:      cleanTime(r.OccurredOn),
			Status:    translateStatus(activityStatuses, r.State, false),
			UpdatedAt: m.Now,
		}, nil
	}
	return nil, &MappingError{Entity: row.Entity(), ID: row.RecordID(), Reason: "unexpected row type"}
}

// DisplayName joins first and last name with a single space, falling back to
// the organization and then to "Unknown". The result is never empty.
func DisplayName(first, last, organization string) string {
	parts := make([]string, 0, 2)
	if f := strings.TrimSpace(first); f != "" {
		parts = append(parts, f)
	}
	if l := strings.TrimSpace(last); l != "" {
		parts = append(parts, l)
	}
	if len(parts) > 0 {
		return strings.Join(parts, " ")
	}
	if org := strings.TrimSpace(organization); org != "" {
		return org
	}
	return UnknownName
}

// SplitName splits a partner display name on its first space.
// The "Unknown" placeholder maps back to an empty name.
func SplitName(name string) (first, last string) {
	name = strings.TrimSpace(name)
	if name == "" || name == UnknownName {
		return "", ""
	}
	first, last, _ = strings.Cut(name, " ")
	return first, strings.TrimSpace(last)
}

func orDefault(s, def string) string {
	if t := strings.TrimSpace(s); t != "" {
		return t
	}
	return def
}

// cleanRef copies a reference, turning blank ids into null.
func cleanRef(ref *string) *string {
	if ref == nil {
		return nil
	}
	return models.StringPtr(strings.TrimSpace(*ref))
}

// cleanTime copies an optional time, turning zero values into null.
func cleanTime(t *time.Time) *time.Time {
	if t == nil || t.IsZero() {
		return nil
	}
	u := t.UTC()
	return &u
}
