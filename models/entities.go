// ABOUTME: Primary CRM store entities synchronized with the partner platform
// ABOUTME: Defines Contact, Project, Case, Task, and Activity structs
package models

import "time"

type Contact struct {
	ID           string    `json:"id"`
	FirstName    string    `json:"first_name,omitempty"`
	LastName     string    `json:"last_name,omitempty"`
	Organization string    `json:"organization,omitempty"`
	Email        string    `json:"email,omitempty"`
	Phone        string    `json:"phone,omitempty"`
	Location     string    `json:"location,omitempty"`
	Status       string    `json:"status,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type Project struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	ContactID   *string    `json:"contact_id,omitempty"`
	Status      string     `json:"status,omitempty"`
	StartDate   *time.Time `json:"start_date,omitempty"`
	EndDate     *time.Time `json:"end_date,omitempty"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

type Case struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	ContactID *string   `json:"contact_id,omitempty"`
	Status    string    `json:"status,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Task struct {
	ID          string     `json:"id"`
	Description string     `json:"description"`
	ProjectID   *string    `json:"project_id,omitempty"`
	AssigneeID  string     `json:"assignee_id,omitempty"`
	Status      string     `json:"status,omitempty"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

type Activity struct {
	ID        string     `json:"id"`
	Type      string     `json:"type"`
	Title     string     `json:"title"`
	ProjectID *string    `json:"project_id,omitempty"`
	ContactID *string    `json:"contact_id,omitempty"`
	CaseID    *string    `json:"case_id,omitempty"`
	Date      *time.Time `json:"date,omitempty"`
	Status    string     `json:"status,omitempty"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// Contact status constants.
const (
	ContactStatusActive   = "active"
	ContactStatusInactive = "inactive"
	ContactStatusLead     = "lead"
)

// Project status constants.
const (
	ProjectStatusPlanning  = "planning"
	ProjectStatusActive    = "active"
	ProjectStatusOnHold    = "on_hold"
	ProjectStatusCompleted = "completed"
)

// Case status constants.
const (
	CaseStatusOpen       = "open"
	CaseStatusInProgress = "in_progress"
	CaseStatusResolved   = "resolved"
)

// Task status constants.
const (
	TaskStatusTodo       = "todo"
	TaskStatusInProgress = "in_progress"
	TaskStatusDone       = "done"
)

// Activity status constants.
const (
	ActivityStatusScheduled = "scheduled"
	ActivityStatusCompleted = "completed"
	ActivityStatusCancelled = "cancelled"
)

func (c *Contact) RecordID() string          { return c.ID }
func (c *Contact) Entity() EntityType        { return EntityContact }
func (c *Contact) ForeignKeys() []ForeignKey { return nil }

func (p *Project) RecordID() string   { return p.ID }
func (p *Project) Entity() EntityType { return EntityProject }
func (p *Project) ForeignKeys() []ForeignKey {
	return []ForeignKey{{Field: "contact_id", Target: EntityContact, Ref: &p.ContactID}}
}

func (c *Case) RecordID() string   { return c.ID }
func (c *Case) Entity() EntityType { return EntityCase }
func (c *Case) ForeignKeys() []ForeignKey {
	return []ForeignKey{{Field: "contact_id", Target: EntityContact, Ref: &c.ContactID}}
}

func (t *Task) RecordID() string   { return t.ID }
func (t *Task) Entity() EntityType { return EntityTask }
func (t *Task) ForeignKeys() []ForeignKey {
	return []ForeignKey{{Field: "project_id", Target: EntityProject, Ref: &t.ProjectID}}
}

func (a *Activity) RecordID() string   { return a.ID }
func (a *Activity) Entity() EntityType { return EntityActivity }
func (a *Activity) ForeignKeys() []ForeignKey {
	return []ForeignKey{
		{Field: "project_id", Target: EntityProject, Ref: &a.ProjectID},
		{Field: "contact_id", Target: EntityContact, Ref: &a.ContactID},
		{Field: "case_id", Target: EntityCase, Ref: &a.CaseID},
	}
}
