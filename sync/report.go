// ABOUTME: Sync run report built by the engine during one run and returned to the caller
// ABOUTME: Per-collection counters, first errors, dropped-reference warnings, and conversion for run history
package sync

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/harperreed/crmbridge/db"
	"github.com/harperreed/crmbridge/models"
)

// Report is the outcome of one run. The engine is its only writer; once Run
// returns it must be treated as read-only, since coalesced handles share it.
type Report struct {
	RunID         string              `json:"run_id"`
	Direction     models.Direction    `json:"direction"`
	Source        string              `json:"source"`
	Target        string              `json:"target"`
	DryRun        bool                `json:"dry_run,omitempty"`
	StartedAt     time.Time           `json:"started_at"`
	FinishedAt    time.Time           `json:"finished_at"`
	Duration      time.Duration       `json:"duration"`
	Partial       bool                `json:"partial"`
	PartialReason string              `json:"partial_reason,omitempty"`
	Collections   []*CollectionReport `json:"collections"`
}

// CollectionReport holds the counters for one collection.
// Attempted always equals Succeeded + Failed + Skipped.
type CollectionReport struct {
	Entity     models.EntityType  `json:"entity"`
	Collection string             `json:"collection"`
	Attempted  int                `json:"attempted"`
	Succeeded  int                `json:"succeeded"`
	Failed     int                `json:"failed"`
	Skipped    int                `json:"skipped"`
	FirstError string             `json:"first_error,omitempty"`
	Warnings   []IntegrityWarning `json:"warnings,omitempty"`

	// Err is the first error seen in this collection.
	Err error `json:"-"`
	// Timeout is set when the run deadline cut this collection short.
	Timeout *RunTimeoutError `json:"-"`
}

// Totals sums the counters of every collection.
type Totals struct {
	Attempted int `json:"attempted"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`
	Warnings  int `json:"warnings"`
}

func (c *CollectionReport) recordError(err error) {
	if c.Err == nil && err != nil {
		c.Err = err
		c.FirstError = err.Error()
	}
}

func (c *CollectionReport) fail(n int, err error) {
	c.Failed += n
	c.recordError(err)
}

// Collection returns the report for an entity, or nil if the run never reached it.
func (r *Report) Collection(entity models.EntityType) *CollectionReport {
	for _, c := range r.Collections {
		if c.Entity == entity {
			return c
		}
	}
	return nil
}

// Totals sums all collections.
func (r *Report) Totals() Totals {
	var t Totals
	for _, c := range r.Collections {
		t.Attempted += c.Attempted
		t.Succeeded += c.Succeeded
		t.Failed += c.Failed
		t.Skipped += c.Skipped
		t.Warnings += len(c.Warnings)
	}
	return t
}

// Warnings returns every dropped-reference warning in processing order.
func (r *Report) Warnings() []IntegrityWarning {
	var out []IntegrityWarning
	for _, c := range r.Collections {
		out = append(out, c.Warnings...)
	}
	return out
}

// OK reports whether the run finished with no failures and was not cut short.
func (r *Report) OK() bool {
	t := r.Totals()
	return !r.Partial && t.Failed == 0
}

// Summary is a one-line description for logs.
func (r *Report) Summary() string {
	t := r.Totals()
	s := fmt.Sprintf("%s %s→%s: %d attempted, %d succeeded, %d failed, %d skipped, %d warnings",
		r.Direction, r.Source, r.Target, t.Attempted, t.Succeeded, t.Failed, t.Skipped, t.Warnings)
	if r.Partial {
		s += " (partial: " + r.PartialReason + ")"
	}
	return s
}

// JSON encodes the report.
func (r *Report) JSON() ([]byte, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("failed to encode report: %w", err)
	}
	return data, nil
}

// SyncRun converts the report into a run-history row.
func (r *Report) SyncRun() (*db.SyncRun, error) {
	data, err := r.JSON()
	if err != nil {
		return nil, err
	}
	t := r.Totals()
	return &db.SyncRun{
		ID:            r.RunID,
		Direction:     string(r.Direction),
		Target:        r.Target,
		StartedAt:     r.StartedAt,
		FinishedAt:    r.FinishedAt,
		Partial:       r.Partial,
		PartialReason: r.PartialReason,
		Attempted:     t.Attempted,
		Succeeded:     t.Succeeded,
		Failed:        t.Failed,
		Skipped:       t.Skipped,
		Warnings:      t.Warnings,
		Report:        data,
	}, nil
}

// DecodeReport parses a report stored in run history.
func DecodeReport(data []byte) (*Report, error) {
	var r Report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("failed to decode report: %w", err)
	}
	return &r, nil
}

// RecordReport stores a finished run in run history and updates the
// direction's sync state. Dry runs are kept in history but leave sync state alone.
func RecordReport(database *sql.DB, r *Report) error {
	run, err := r.SyncRun()
	if err != nil {
		return err
	}
	if err := db.RecordSyncRun(database, run); err != nil {
		return err
	}
	if r.DryRun {
		return nil
	}

	service := string(r.Direction)
	if r.OK() {
		return db.MarkSyncCompleted(database, service, r.RunID)
	}
	msg := r.Summary()
	return db.UpdateSyncStatus(database, service, "error", &msg)
}
