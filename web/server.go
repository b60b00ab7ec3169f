// ABOUTME: HTTP trigger server for sync runs
// ABOUTME: Submits runs through the sync queue and serves run history and sync state as JSON
package web

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/harperreed/crmbridge/db"
	"github.com/harperreed/crmbridge/models"
	"github.com/harperreed/crmbridge/sync"
)

// Submitter accepts run requests. *sync.Dispatcher satisfies it.
type Submitter interface {
	Submit(direction models.Direction) *sync.RunHandle
}

type Server struct {
	db      *sql.DB
	runs    Submitter
	logger  *zap.Logger
	router  chi.Router
	maxWait time.Duration
}

// NewServer builds the router. maxWait bounds how long a waiting trigger blocks.
func NewServer(database *sql.DB, runs Submitter, maxWait time.Duration, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxWait <= 0 {
		maxWait = 5 * time.Minute
	}
	s := &Server{db: database, runs: runs, logger: logger, maxWait: maxWait}

	r := chi.NewRouter()
	r.Get("/healthz", s.handleHealth)
	r.Post("/sync/{direction}", s.handleTrigger)
	r.Get("/sync/runs", s.handleRuns)
	r.Get("/sync/status", s.handleStatus)
	s.router = r

	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves on port until ctx is done, then shuts down gracefully.
func (s *Server) Start(ctx context.Context, port int) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting sync trigger server", zap.String("addr", "http://localhost"+srv.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("failed to shut down server: %w", err)
		}
		return nil
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("ok")); err != nil {
		s.logger.Warn("write error", zap.Error(err))
	}
}

type triggerResponse struct {
	HandleID  string       `json:"handle_id"`
	Direction string       `json:"direction"`
	Status    string       `json:"status"`
	Report    *sync.Report `json:"report,omitempty"`
	Totals    *sync.Totals `json:"totals,omitempty"`
}

// handleTrigger submits a run. By default it waits for the report;
// ?wait=false returns 202 as soon as the run is queued.
func (s *Server) handleTrigger(w http.ResponseWriter, r *http.Request) {
	direction, err := models.ParseDirection(chi.URLParam(r, "direction"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	wait := true
	if v := r.URL.Query().Get("wait"); v != "" {
		wait, err = strconv.ParseBool(v)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid wait value %q", v))
			return
		}
	}

	h := s.runs.Submit(direction)
	resp := triggerResponse{HandleID: h.ID, Direction: string(direction), Status: "queued"}
	if !wait {
		s.writeJSON(w, http.StatusAccepted, resp)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.maxWait)
	defer cancel()

	report, err := h.Wait(ctx)
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		// The run keeps going; the caller can read it from /sync/runs later.
		s.writeJSON(w, http.StatusAccepted, resp)
		return
	case errors.Is(err, sync.ErrQueueClosed):
		s.writeError(w, http.StatusServiceUnavailable, err)
		return
	case err != nil:
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}

	totals := report.Totals()
	resp.Status = "finished"
	if report.Partial {
		resp.Status = "partial"
	}
	resp.Report = report
	resp.Totals = &totals
	s.writeJSON(w, http.StatusOK, resp)
}

type runView struct {
	ID            string    `json:"id"`
	Direction     string    `json:"direction"`
	Target        string    `json:"target"`
	StartedAt     time.Time `json:"started_at"`
	FinishedAt    time.Time `json:"finished_at"`
	Partial       bool      `json:"partial"`
	PartialReason string    `json:"partial_reason,omitempty"`
	Attempted     int       `json:"attempted"`
	Succeeded     int       `json:"succeeded"`
	Failed        int       `json:"failed"`
	Skipped       int       `json:"skipped"`
	Warnings      int       `json:"warnings"`
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			s.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid limit %q", v))
			return
		}
		limit = n
	}

	runs, err := db.ListSyncRuns(s.db, limit)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}

	views := make([]runView, 0, len(runs))
	for _, run := range runs {
		views = append(views, runView{
			ID:            run.ID,
			Direction:     run.Direction,
			Target:        run.Target,
			StartedAt:     run.StartedAt,
			FinishedAt:    run.FinishedAt,
			Partial:       run.Partial,
			PartialReason: run.PartialReason,
			Attempted:     run.Attempted,
			Succeeded:     run.Succeeded,
			Failed:        run.Failed,
			Skipped:       run.Skipped,
			Warnings:      run.Warnings,
		})
	}
	s.writeJSON(w, http.StatusOK, views)
}

type stateView struct {
	Direction    string     `json:"direction"`
	Status       string     `json:"status"`
	LastSyncTime *time.Time `json:"last_sync_time,omitempty"`
	LastRunID    *string    `json:"last_run_id,omitempty"`
	Error        *string    `json:"error,omitempty"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	states, err := db.GetAllSyncStates(s.db)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}

	views := make([]stateView, 0, len(states))
	for _, st := range states {
		views = append(views, stateView{
			Direction:    st.Service,
			Status:       st.Status,
			LastSyncTime: st.LastSyncTime,
			LastRunID:    st.LastRunID,
			Error:        st.ErrorMessage,
		})
	}
	s.writeJSON(w, http.StatusOK, views)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("failed to write response", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}
