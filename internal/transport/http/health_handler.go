package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
)

// HealthHandler reports process liveness and whether a report is loaded.
type HealthHandler struct {
	store   ReportReader
	version string
	started time.Time
}

// NewHealthHandler creates the health handler.
func NewHealthHandler(store ReportReader, version string) *HealthHandler {
	return &HealthHandler{
		store:   store,
		version: version,
		started: time.Now(),
	}
}

// Routes returns the health router.
func (h *HealthHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.GetHealth)
	return r
}

// GetHealth returns basic health status. report_loaded is false until the
// first successful workbook load, which is not an error condition.
func (h *HealthHandler) GetHealth(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string]any{
		"status":         "ok",
		"version":        h.version,
		"uptime_seconds": int(time.Since(h.started).Seconds()),
		"report_loaded":  h.store.Loaded(),
		"timestamp":      time.Now().UTC().Format(time.RFC3339),
	})
}
