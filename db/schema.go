// ABOUTME: Database schema definitions for the primary CRM store
// ABOUTME: Handles SQLite table creation for synced entities and sync run history
package db

import (
	"database/sql"
)

// No cross-table FOREIGN KEY constraints: references are kept consistent by
// the sync guard, and rows may legitimately arrive before what they reference.
const schema = `
CREATE TABLE IF NOT EXISTS contacts (
	id TEXT PRIMARY KEY CHECK(length(id) > 0),
	first_name TEXT NOT NULL DEFAULT '',
	last_name TEXT NOT NULL DEFAULT '',
	organization TEXT NOT NULL DEFAULT '',
	email TEXT NOT NULL DEFAULT '',
	phone TEXT NOT NULL DEFAULT '',
	location TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL DEFAULT 'active',
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_contacts_email ON contacts(email);

CREATE TABLE IF NOT EXISTS projects (
	id TEXT PRIMARY KEY CHECK(length(id) > 0),
	name TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	contact_id TEXT,
	status TEXT NOT NULL DEFAULT 'planning',
	start_date DATETIME,
	end_date DATETIME,
	updated_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_projects_contact_id ON projects(contact_id);

CREATE TABLE IF NOT EXISTS cases (
	id TEXT PRIMARY KEY CHECK(length(id) > 0),
	title TEXT NOT NULL,
	contact_id TEXT,
	status TEXT NOT NULL DEFAULT 'open' CHECK(status IN ('open', 'in_progress', 'resolved')),
	updated_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_cases_contact_id ON cases(contact_id);

CREATE TABLE IF NOT EXISTS tasks (
	id TEXT PRIMARY KEY CHECK(length(id) > 0),
	description TEXT NOT NULL,
	project_id TEXT,
	assignee_id TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL DEFAULT 'todo' CHECK(status IN ('todo', 'in_progress', 'done')),
	due_date DATETIME,
	updated_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_tasks_project_id ON tasks(project_id);

CREATE TABLE IF NOT EXISTS activities (
	id TEXT PRIMARY KEY CHECK(length(id) > 0),
	type TEXT NOT NULL,
	title TEXT NOT NULL,
	project_id TEXT,
	contact_id TEXT,
	case_id TEXT,
	date DATETIME,
	status TEXT NOT NULL DEFAULT 'scheduled',
	updated_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_activities_project_id ON activities(project_id);
CREATE INDEX IF NOT EXISTS idx_activities_contact_id ON activities(contact_id);

CREATE TABLE IF NOT EXISTS sync_state (
	service TEXT PRIMARY KEY,
	last_sync_time DATETIME,
	last_run_id TEXT,
	status TEXT CHECK(status IN ('idle', 'syncing', 'error')),
	error_message TEXT,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS sync_runs (
	id TEXT PRIMARY KEY,
	direction TEXT NOT NULL CHECK(direction IN ('push', 'pull')),
	target TEXT NOT NULL,
	started_at DATETIME NOT NULL,
	finished_at DATETIME NOT NULL,
	partial INTEGER NOT NULL DEFAULT 0,
	partial_reason TEXT NOT NULL DEFAULT '',
	attempted INTEGER NOT NULL DEFAULT 0,
	succeeded INTEGER NOT NULL DEFAULT 0,
	failed INTEGER NOT NULL DEFAULT 0,
	skipped INTEGER NOT NULL DEFAULT 0,
	warnings INTEGER NOT NULL DEFAULT 0,
	report TEXT
);

CREATE INDEX IF NOT EXISTS idx_sync_runs_started_at ON sync_runs(started_at DESC);
`

func InitSchema(db *sql.DB) error {
	_, err := db.Exec(schema)
	return err
}
