// ABOUTME: Sync MCP tool handlers
// ABOUTME: Implements sync_run and sync_status on top of the shared run queue and run history
package handlers

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/harperreed/crmbridge/db"
	"github.com/harperreed/crmbridge/models"
	"github.com/harperreed/crmbridge/sync"
)

// Submitter accepts run requests. *sync.Dispatcher satisfies it.
type Submitter interface {
	Submit(direction models.Direction) *sync.RunHandle
}

// Previewer performs dry runs. *sync.Engine satisfies it.
type Previewer interface {
	Preview(ctx context.Context, direction models.Direction) (*sync.Report, error)
}

type SyncHandlers struct {
	db      *sql.DB
	runs    Submitter
	preview Previewer
}

func NewSyncHandlers(database *sql.DB, runs Submitter, preview Previewer) *SyncHandlers {
	return &SyncHandlers{db: database, runs: runs, preview: preview}
}

type SyncRunInput struct {
	Direction string `json:"direction" jsonschema:"Sync direction: push (CRM to partner) or pull (partner to CRM)"`
	DryRun    bool   `json:"dry_run,omitempty" jsonschema:"Report what would change without writing to the target store"`
}

type CollectionOutput struct {
	Collection string   `json:"collection"`
	Attempted  int      `json:"attempted"`
	Succeeded  int      `json:"succeeded"`
	Failed     int      `json:"failed"`
	Skipped    int      `json:"skipped"`
	FirstError string   `json:"first_error,omitempty"`
	Warnings   []string `json:"warnings,omitempty"`
}

type SyncRunOutput struct {
	RunID         string             `json:"run_id"`
	Direction     string             `json:"direction"`
	Source        string             `json:"source"`
	Target        string             `json:"target"`
	DryRun        bool               `json:"dry_run"`
	Partial       bool               `json:"partial"`
	PartialReason string             `json:"partial_reason,omitempty"`
	Duration      string             `json:"duration"`
	Summary       string             `json:"summary"`
	Collections   []CollectionOutput `json:"collections"`
}

func (h *SyncHandlers) SyncRun(ctx context.Context, request *mcp.CallToolRequest, input SyncRunInput) (*mcp.CallToolResult, SyncRunOutput, error) {
	direction, err := models.ParseDirection(input.Direction)
	if err != nil {
		return nil, SyncRunOutput{}, err
	}

	var report *sync.Report
	if input.DryRun {
		report, err = h.preview.Preview(ctx, direction)
		if err != nil {
			return nil, SyncRunOutput{}, fmt.Errorf("failed to preview sync: %w", err)
		}
		if err := sync.RecordReport(h.db, report); err != nil {
			return nil, SyncRunOutput{}, fmt.Errorf("failed to record dry run: %w", err)
		}
	} else {
		report, err = h.runs.Submit(direction).Wait(ctx)
		if err != nil {
			return nil, SyncRunOutput{}, fmt.Errorf("sync run did not complete: %w", err)
		}
	}

	return nil, reportToOutput(report), nil
}

func reportToOutput(r *sync.Report) SyncRunOutput {
	out := SyncRunOutput{
		RunID:         r.RunID,
		Direction:     string(r.Direction),
		Source:        r.Source,
		Target:        r.Target,
		DryRun:        r.DryRun,
		Partial:       r.Partial,
		PartialReason: r.PartialReason,
		Duration:      r.Duration.Round(time.Millisecond).String(),
		Summary:       r.Summary(),
		Collections:   make([]CollectionOutput, 0, len(r.Collections)),
	}
	for _, c := range r.Collections {
		co := CollectionOutput{
			Collection: c.Collection,
			Attempted:  c.Attempted,
			Succeeded:  c.Succeeded,
			Failed:     c.Failed,
			Skipped:    c.Skipped,
			FirstError: c.FirstError,
		}
		for _, w := range c.Warnings {
			co.Warnings = append(co.Warnings, w.String())
		}
		out.Collections = append(out.Collections, co)
	}
	return out
}

type SyncStatusInput struct {
	Limit int `json:"limit,omitempty" jsonschema:"Number of recent runs to include (default 10)"`
}

type DirectionStatus struct {
	Direction    string  `json:"direction"`
	Status       string  `json:"status"`
	LastSyncTime *string `json:"last_sync_time,omitempty"`
	LastRunID    *string `json:"last_run_id,omitempty"`
	Error        *string `json:"error,omitempty"`
}

type RunSummary struct {
	RunID     string `json:"run_id"`
	Direction string `json:"direction"`
	Target    string `json:"target"`
	StartedAt string `json:"started_at"`
	Partial   bool   `json:"partial"`
	Succeeded int    `json:"succeeded"`
	Failed    int    `json:"failed"`
	Skipped   int    `json:"skipped"`
	Warnings  int    `json:"warnings"`
}

type SyncStatusOutput struct {
	Directions []DirectionStatus `json:"directions"`
	Runs       []RunSummary      `json:"runs"`
}

func (h *SyncHandlers) SyncStatus(_ context.Context, request *mcp.CallToolRequest, input SyncStatusInput) (*mcp.CallToolResult, SyncStatusOutput, error) {
	limit := input.Limit
	if limit <= 0 {
		limit = 10
	}

	states, err := db.GetAllSyncStates(h.db)
	if err != nil {
		return nil, SyncStatusOutput{}, fmt.Errorf("failed to get sync states: %w", err)
	}
	runs, err := db.ListSyncRuns(h.db, limit)
	if err != nil {
		return nil, SyncStatusOutput{}, fmt.Errorf("failed to list sync runs: %w", err)
	}

	out := SyncStatusOutput{
		Directions: make([]DirectionStatus, 0, len(states)),
		Runs:       make([]RunSummary, 0, len(runs)),
	}
	for _, st := range states {
		ds := DirectionStatus{
			Direction: st.Service,
			Status:    st.Status,
			LastRunID: st.LastRunID,
			Error:     st.ErrorMessage,
		}
		if st.LastSyncTime != nil {
			ts := st.LastSyncTime.Format(time.RFC3339)
			ds.LastSyncTime = &ts
		}
		out.Directions = append(out.Directions, ds)
	}
	for _, run := range runs {
		out.Runs = append(out.Runs, RunSummary{
			RunID:     run.ID,
			Direction: run.Direction,
			Target:    run.Target,
			StartedAt: run.StartedAt.Format(time.RFC3339),
			Partial:   run.Partial,
			Succeeded: run.Succeeded,
			Failed:    run.Failed,
			Skipped:   run.Skipped,
			Warnings:  run.Warnings,
		})
	}

	return nil, out, nil
}
