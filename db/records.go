// ABOUTME: Record operations for synced entities in the primary CRM store
// ABOUTME: Handles id-keyed upserts, full collection reads, and batched existence checks
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/harperreed/crmbridge/models"
)

// ErrUnknownEntity is returned for an entity type with no table.
var ErrUnknownEntity = errors.New("unknown entity type")

// existsChunk bounds the number of ids bound into a single IN clause.
const existsChunk = 500

// Execer is satisfied by *sql.DB and *sql.Tx.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// TableFor returns the table holding the entity's rows.
func TableFor(entity models.EntityType) (string, error) {
	switch entity {
	case models.EntityContact, models.EntityProject, models.EntityCase, models.EntityTask, models.EntityActivity:
		return entity.Collection(models.SidePrimary), nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnknownEntity, entity)
}

// UpsertRecord inserts or updates a primary-schema record keyed on its id.
// Contacts keep their created_at and organization when the incoming row has none.
func UpsertRecord(ctx context.Context, q Execer, rec models.Record) error {
	var err error
	switch r := rec.(type) {
	case *models.Contact:
		createdAt := r.CreatedAt
		if createdAt.IsZero() {
			createdAt = r.UpdatedAt
		}
		_, err = q.ExecContext(ctx, `
			INSERT INTO contacts (id, first_name, last_name, organization, email, phone, location, status, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				first_name = excluded.first_name,
				last_name = excluded.last_name,
				organization = COALESCE(NULLIF(excluded.organization, ''), contacts.organization),
				email = excluded.email,
				phone = excluded.phone,
				location = excluded.location,
				status = excluded.status,
				updated_at = excluded.updated_at
		`, r.ID, r.FirstName, r.LastName, r.Organization, r.Email, r.Phone, r.Location, r.Status, createdAt, r.UpdatedAt)

	case *models.Project:
		_, err = q.ExecContext(ctx, `
			INSERT INTO projects (id, name, description, contact_id, status, start_date, end_date, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				name = excluded.name,
				description = excluded.description,
				contact_id = excluded.contact_id,
				status = excluded.status,
				start_date = excluded.start_date,
				end_date = excluded.end_date,
				updated_at = excluded.updated_at
		`, r.ID, r.Name, r.Description, r.ContactID, r.Status, r.StartDate, r.EndDate, r.UpdatedAt)

	case *models.Case:
		_, err = q.ExecContext(ctx, `
			INSERT INTO cases (id, title, contact_id, status, updated_at)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				title = excluded.title,
				contact_id = excluded.contact_id,
				status = excluded.status,
				updated_at = excluded.updated_at
		`, r.ID, r.Title, r.ContactID, r.Status, r.UpdatedAt)

	case *models.Task:
		_, err = q.ExecContext(ctx, `
			INSERT INTO tasks (id, description, project_id, assignee_id, status, due_date, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				description = excluded.description,
				project_id = excluded.project_id,
				assignee_id = excluded.assignee_id,
				status = excluded.status,
				due_date = excluded.due_date,
				updated_at = excluded.updated_at
		`, r.ID, r.Description, r.ProjectID, r.AssigneeID, r.Status, r.DueDate, r.UpdatedAt)

	case *models.Activity:
		_, err = q.ExecContext(ctx, `
			INSERT INTO activities (id, type, title, project_id, contact_id, case_id, date, status, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				type = excluded.type,
				title = excluded.title,
				project_id = excluded.project_id,
				contact_id = excluded.contact_id,
				case_id = excluded.case_id,
				date = excluded.date,
				status = excluded.status,
				updated_at = excluded.updated_at
		`, r.ID, r.Type, r.Title, r.ProjectID, r.ContactID, r.CaseID, r.Date, r.Status, r.UpdatedAt)

	default:
		return fmt.Errorf("%w: %T", ErrUnknownEntity, rec)
	}

	if err != nil {
		return fmt.Errorf("failed to upsert %s %s: %w", rec.Entity(), rec.RecordID(), err)
	}
	return nil
}

// FetchRecords returns every row of the entity ordered by id.
func FetchRecords(ctx context.Context, db *sql.DB, entity models.EntityType) ([]models.Record, error) {
	table, err := TableFor(entity)
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, fmt.Sprintf("SELECT %s FROM %s ORDER BY id", columnsFor(entity), table))
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", table, err)
	}
	defer func() { _ = rows.Close() }()

	var records []models.Record
	for rows.Next() {
		rec, err := scanRecord(entity, rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", table, err)
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating %s: %w", table, err)
	}

	return records, nil
}

// GetRecord returns one row by id, or nil if it does not exist.
func GetRecord(ctx context.Context, db *sql.DB, entity models.EntityType, id string) (models.Record, error) {
	table, err := TableFor(entity)
	if err != nil {
		return nil, err
	}

	row := db.QueryRowContext(ctx, fmt.Sprintf("SELECT %s FROM %s WHERE id = ?", columnsFor(entity), table), id)
	rec, err := scanRecord(entity, row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s %s: %w", entity, id, err)
	}
	return rec, nil
}

// ExistingIDs reports which of ids are present in the entity's table.
// Lookups are chunked to stay under SQLite's bound-variable limit.
func ExistingIDs(ctx context.Context, db *sql.DB, entity models.EntityType, ids []string) (map[string]bool, error) {
	table, err := TableFor(entity)
	if err != nil {
		return nil, err
	}

	found := make(map[string]bool, len(ids))
	for start := 0; start < len(ids); start += existsChunk {
		end := min(start+existsChunk, len(ids))
		chunk := ids[start:end]

		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(chunk)), ",")
		args := make([]any, len(chunk))
		for i, id := range chunk {
			args[i] = id
		}

		rows, err := db.QueryContext(ctx, fmt.Sprintf("SELECT id FROM %s WHERE id IN (%s)", table, placeholders), args...)
		if err != nil {
			return nil, fmt.Errorf("failed to check %s ids: %w", table, err)
		}
		for rows.Next() {
			var id string
			if err := rows.Scan(&id); err != nil {
				_ = rows.Close()
				return nil, fmt.Errorf("failed to scan %s id: %w", table, err)
			}
			found[id] = true
		}
		err = rows.Err()
		_ = rows.Close()
		if err != nil {
			return nil, fmt.Errorf("error iterating %s ids: %w", table, err)
		}
	}

	return found, nil
}

// CountRecords returns the number of rows for the entity.
func CountRecords(ctx context.Context, db *sql.DB, entity models.EntityType) (int, error) {
	table, err := TableFor(entity)
	if err != nil {
		return 0, err
	}
	var count int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", table, err)
	}
	return count, nil
}

func columnsFor(entity models.EntityType) string {
	switch entity {
	case models.EntityContact:
		return "id, first_name, last_name, organization, email, phone, location, status, created_at, updated_at"
	case models.EntityProject:
		return "id, name, description, contact_id, status, start_date, end_date, updated_at"
	case models.EntityCase:
		return "id, title, contact_id, status, updated_at"
	case models.EntityTask:
		return "id, description, project_id, assignee_id, status, due_date, updated_at"
	case models.EntityActivity:
		return "id, type, title, project_id, contact_id, case_id, date, status, updated_at"
	}
	return ""
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(entity models.EntityType, s scanner) (models.Record, error) {
	switch entity {
	case models.EntityContact:
		c := &models.Contact{}
		err := s.Scan(&c.ID, &c.FirstName, &c.LastName, &c.Organization, &c.Email, &c.Phone, &c.Location, &c.Status, &c.CreatedAt, &c.UpdatedAt)
		return c, err

	case models.EntityProject:
		p := &models.Project{}
		var contactID sql.NullString
		var start, end sql.NullTime
		err := s.Scan(&p.ID, &p.Name, &p.Description, &contactID, &p.Status, &start, &end, &p.UpdatedAt)
		p.ContactID = nullString(contactID)
		p.StartDate = nullTime(start)
		p.EndDate = nullTime(end)
		return p, err

	case models.EntityCase:
		c := &models.Case{}
		var contactID sql.NullString
		err := s.Scan(&c.ID, &c.Title, &contactID, &c.Status, &c.UpdatedAt)
		c.ContactID = nullString(contactID)
		return c, err

	case models.EntityTask:
		t := &models.Task{}
		var projectID sql.NullString
		var due sql.NullTime
		err := s.Scan(&t.ID, &t.Description, &projectID, &t.AssigneeID, &t.Status, &due, &t.UpdatedAt)
		t.ProjectID = nullString(projectID)
		t.DueDate = nullTime(due)
		return t, err

	case models.EntityActivity:
		a := &models.Activity{}
		var projectID, contactID, caseID sql.NullString
		var date sql.NullTime
		err := s.Scan(&a.ID, &a.Type, &a.Title, &projectID, &contactID, &caseID, &date, &a.Status, &a.UpdatedAt)
		a.ProjectID = nullString(projectID)
		a.ContactID = nullString(contactID)
		a.CaseID = nullString(caseID)
		a.Date = nullTime(date)
		return a, err
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownEntity, entity)
}

func nullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	return &ns.String
}

func nullTime(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	return &nt.Time
}
