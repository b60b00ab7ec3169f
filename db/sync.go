// ABOUTME: Database operations for sync_state and sync_runs tables
// ABOUTME: Persists per-direction sync status and the history of completed sync run reports
package db

import (
	"database/sql"
	"fmt"
	"time"
)

// SyncState represents the sync state for one direction of the bridge.
type SyncState struct {
	Service      string
	LastSyncTime *time.Time
	LastRunID    *string
	Status       string
	ErrorMessage *string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// SyncRun is the persisted summary of one completed sync run.
// Report holds the full JSON-encoded run report.
type SyncRun struct {
	ID            string
	Direction     string
	Target        string
	StartedAt     time.Time
	FinishedAt    time.Time
	Partial       bool
	PartialReason string
	Attempted     int
	Succeeded     int
	Failed        int
	Skipped       int
	Warnings      int
	Report        []byte
}

// GetSyncState retrieves the sync state for a service.
func GetSyncState(db *sql.DB, service string) (*SyncState, error) {
	var state SyncState
	var lastSyncTime sql.NullTime
	var lastRunID sql.NullString
	var errorMessage sql.NullString

	err := db.QueryRow(`
		SELECT service, last_sync_time, last_run_id, status, error_message, created_at, updated_at
		FROM sync_state
		WHERE service = ?
	`, service).Scan(
		&state.Service,
		&lastSyncTime,
		&lastRunID,
		&state.Status,
		&errorMessage,
		&state.CreatedAt,
		&state.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get sync state: %w", err)
	}

	if lastSyncTime.Valid {
		state.LastSyncTime = &lastSyncTime.Time
	}
	if lastRunID.Valid {
		state.LastRunID = &lastRunID.String
	}
	if errorMessage.Valid {
		state.ErrorMessage = &errorMessage.String
	}

	return &state, nil
}

// UpdateSyncStatus updates the sync status for a service.
func UpdateSyncStatus(db *sql.DB, service, status string, errorMsg *string) error {
	var errorMsgVal sql.NullString
	if errorMsg != nil {
		errorMsgVal = sql.NullString{String: *errorMsg, Valid: true}
	}

	_, err := db.Exec(`
		INSERT INTO sync_state (service, status, error_message, created_at, updated_at)
		VALUES (?, ?, ?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
		ON CONFLICT(service) DO UPDATE SET
			status = excluded.status,
			error_message = excluded.error_message,
			updated_at = CURRENT_TIMESTAMP
	`, service, status, errorMsgVal)

	if err != nil {
		return fmt.Errorf("failed to update sync status: %w", err)
	}

	return nil
}

// MarkSyncCompleted records the last run id and sync time for a service and returns it to idle.
func MarkSyncCompleted(db *sql.DB, service, runID string) error {
	_, err := db.Exec(`
		INSERT INTO sync_state (service, last_sync_time, last_run_id, status, created_at, updated_at)
		VALUES (?, CURRENT_TIMESTAMP, ?, 'idle', CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
		ON CONFLICT(service) DO UPDATE SET
			last_sync_time = CURRENT_TIMESTAMP,
			last_run_id = excluded.last_run_id,
			status = 'idle',
			error_message = NULL,
			updated_at = CURRENT_TIMESTAMP
	`, service, runID)

	if err != nil {
		return fmt.Errorf("failed to mark sync completed: %w", err)
	}

	return nil
}

// GetAllSyncStates retrieves the sync state for all services.
func GetAllSyncStates(db *sql.DB) ([]SyncState, error) {
	rows, err := db.Query(`
		SELECT service, last_sync_time, last_run_id, status, error_message, created_at, updated_at
		FROM sync_state
		ORDER BY service
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query sync states: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var states []SyncState
	for rows.Next() {
		var state SyncState
		var lastSyncTime sql.NullTime
		var lastRunID sql.NullString
		var errorMessage sql.NullString

		err := rows.Scan(
			&state.Service,
			&lastSyncTime,
			&lastRunID,
			&state.Status,
			&errorMessage,
			&state.CreatedAt,
			&state.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan sync state: %w", err)
		}

		if lastSyncTime.Valid {
			state.LastSyncTime = &lastSyncTime.Time
		}
		if lastRunID.Valid {
			state.LastRunID = &lastRunID.String
		}
		if errorMessage.Valid {
			state.ErrorMessage = &errorMessage.String
		}

		states = append(states, state)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sync states: %w", err)
	}

	return states, nil
}

// RecordSyncRun stores a completed run. Recording the same run id twice is a no-op.
func RecordSyncRun(db *sql.DB, run *SyncRun) error {
	_, err := db.Exec(`
		INSERT INTO sync_runs (id, direction, target, started_at, finished_at, partial, partial_reason,
			attempted, succeeded, failed, skipped, warnings, report)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, run.ID, run.Direction, run.Target, run.StartedAt, run.FinishedAt, run.Partial, run.PartialReason,
		run.Attempted, run.Succeeded, run.Failed, run.Skipped, run.Warnings, string(run.Report))

	if err != nil {
		return fmt.Errorf("failed to record sync run: %w", err)
	}

	return nil
}

// ListSyncRuns returns the most recent runs, newest first.
func ListSyncRuns(db *sql.DB, limit int) ([]SyncRun, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := db.Query(`
		SELECT id, direction, target, started_at, finished_at, partial, partial_reason,
			attempted, succeeded, failed, skipped, warnings, report
		FROM sync_runs
		ORDER BY started_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query sync runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var runs []SyncRun
	for rows.Next() {
		var run SyncRun
		var report sql.NullString
		if err := rows.Scan(&run.ID, &run.Direction, &run.Target, &run.StartedAt, &run.FinishedAt,
			&run.Partial, &run.PartialReason, &run.Attempted, &run.Succeeded, &run.Failed,
			&run.Skipped, &run.Warnings, &report); err != nil {
			return nil, fmt.Errorf("failed to scan sync run: %w", err)
		}
		if report.Valid {
			run.Report = []byte(report.String)
		}
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sync runs: %w", err)
	}

	return runs, nil
}
