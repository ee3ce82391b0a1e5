package http

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	apperrors "churnlens/internal/errors"
	"churnlens/internal/infrastructure"
	"churnlens/internal/services"
)

// AnalysisRunner runs one full analysis of the configured input file.
type AnalysisRunner interface {
	Run(ctx context.Context) (*services.RunReport, error)
}

// ReportReloader refreshes the report store after a run produces a new
// workbook.
type ReportReloader interface {
	Reload(ctx context.Context) error
}

// AnalysisHandler triggers analysis runs and exposes the progress websocket.
// Only one run executes at a time; a second trigger while one is in flight
// gets 409.
type AnalysisHandler struct {
	runner       AnalysisRunner
	store        ReportReloader
	hub          *ProgressHub
	logger       *slog.Logger
	errorHandler *apperrors.ErrorHandler

	mu      sync.Mutex
	running bool
	last    *runStatus
}

type runStatus struct {
	RunID       string    `json:"run_id"`
	Status      string    `json:"status"`
	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at,omitempty"`
	Error       string    `json:"error,omitempty"`
}

// NewAnalysisHandler creates the handler. The hub receives run lifecycle
// events in addition to the per-stage events the analyzer emits through it.
func NewAnalysisHandler(runner AnalysisRunner, store ReportReloader, hub *ProgressHub, logger *slog.Logger) *AnalysisHandler {
	if logger == nil {
		logger = infrastructure.GetLogger()
	}
	return &AnalysisHandler{
		runner:       runner,
		store:        store,
		hub:          hub,
		logger:       logger.With(slog.String("handler", "analysis")),
		errorHandler: apperrors.NewErrorHandler(logger),
	}
}

// Routes returns the analysis API router.
func (h *AnalysisHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/run", h.TriggerRun)
	r.Get("/status", h.GetStatus)
	r.Get("/ws", h.hub.ServeWS)

	return r
}

// TriggerRun starts an analysis run in the background and returns 202. The
// run continues after the request ends; clients follow progress over the
// websocket or poll /status.
func (h *AnalysisHandler) TriggerRun(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	if h.running {
		h.mu.Unlock()
		h.errorHandler.HandleError(w, r, apperrors.ErrAnalysisInProgress)
		return
	}
	h.running = true
	status := &runStatus{Status: "running", StartedAt: time.Now()}
	h.last = status
	h.mu.Unlock()

	go h.execute(status)

	render.Status(r, http.StatusAccepted)
	render.JSON(w, r, map[string]any{
		"status":     "started",
		"started_at": status.StartedAt,
	})
}

func (h *AnalysisHandler) execute(status *runStatus) {
	// Detached from the triggering request so the run survives client
	// disconnects.
	ctx := context.Background()

	h.hub.Broadcast(ProgressEvent{Type: EventRunStarted})

	report, err := h.runner.Run(ctx)

	h.mu.Lock()
	h.running = false
	status.CompletedAt = time.Now()
	if err != nil {
		status.Status = "failed"
		status.Error = err.Error()
	} else {
		status.Status = "completed"
		status.RunID = report.RunID
	}
	h.mu.Unlock()

	if err != nil {
		h.logger.Error("analysis run failed", slog.String("error", err.Error()))
		h.hub.Broadcast(ProgressEvent{Type: EventRunFailed, Error: err.Error()})
		return
	}

	if err := h.store.Reload(ctx); err != nil {
		h.logger.Error("report reload after run failed",
			slog.String("run_id", report.RunID),
			slog.String("error", err.Error()))
	}

	h.hub.Broadcast(ProgressEvent{
		Type:  EventRunCompleted,
		RunID: report.RunID,
		Detail: map[string]any{
			"duration_seconds": report.Duration.Seconds(),
			"transactions":     report.Diagnostics.Transactions,
			"dropped_rows":     report.Diagnostics.Dropped(),
			"workbook_path":    report.WorkbookPath,
		},
	})
}

// GetStatus reports the state of the latest run, if any.
func (h *AnalysisHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	if h.last == nil {
		h.mu.Unlock()
		render.JSON(w, r, map[string]any{"status": "idle"})
		return
	}
	last := *h.last
	h.mu.Unlock()

	render.JSON(w, r, last)
}
