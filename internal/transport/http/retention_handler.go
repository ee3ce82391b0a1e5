package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	apperrors "churnlens/internal/errors"
	"churnlens/internal/infrastructure"
	"churnlens/internal/retention"
)

// ReportReader is the slice of the report store the retention API needs.
type ReportReader interface {
	Loaded() bool
	Cohorts(ctx context.Context) ([]string, error)
	Curve(ctx context.Context, cohort string) ([]retention.RetentionPoint, error)
	Summaries(ctx context.Context) ([]retention.CohortSummary, error)
	Trend(ctx context.Context) ([]retention.TrendPoint, error)
	Segment(ctx context.Context, segType retention.SegmentType, cohort string) ([]retention.SegmentRetentionPoint, error)
}

// RetentionHandler serves the read-only retention tables from the latest
// exported workbook.
type RetentionHandler struct {
	store        ReportReader
	logger       *slog.Logger
	errorHandler *apperrors.ErrorHandler
}

// NewRetentionHandler creates a handler backed by the given report store.
func NewRetentionHandler(store ReportReader, logger *slog.Logger) *RetentionHandler {
	if logger == nil {
		logger = infrastructure.GetLogger()
	}
	return &RetentionHandler{
		store:        store,
		logger:       logger.With(slog.String("handler", "retention")),
		errorHandler: apperrors.NewErrorHandler(logger),
	}
}

// Routes returns the retention API router.
func (h *RetentionHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Use(render.SetContentType(render.ContentTypeJSON))

	r.Get("/cohorts", h.GetCohorts)
	r.Get("/curve", h.GetCurve)
	r.Get("/summary", h.GetSummary)
	r.Get("/trend", h.GetTrend)
	r.Get("/segments/{type}", h.GetSegment)

	return r
}

// GetCohorts returns the list of cohort keys available in the report.
func (h *RetentionHandler) GetCohorts(w http.ResponseWriter, r *http.Request) {
	cohorts, err := h.store.Cohorts(r.Context())
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	render.JSON(w, r, map[string]any{
		"cohorts": cohorts,
		"count":   len(cohorts),
	})
}

// GetCurve returns the retention curve. The optional cohort query parameter
// filters to one cohort; absent or "all" returns every cohort.
func (h *RetentionHandler) GetCurve(w http.ResponseWriter, r *http.Request) {
	cohort := r.URL.Query().Get("cohort")

	points, err := h.store.Curve(r.Context(), cohort)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	render.JSON(w, r, map[string]any{
		"cohort": cohortLabel(cohort),
		"points": points,
		"count":  len(points),
	})
}

// GetSummary returns the per-cohort checkpoint summary table.
func (h *RetentionHandler) GetSummary(w http.ResponseWriter, r *http.Request) {
	summaries, err := h.store.Summaries(r.Context())
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	render.JSON(w, r, map[string]any{
		"cohorts": summaries,
		"count":   len(summaries),
	})
}

// GetTrend returns the cross-cohort mean retention per relative month.
func (h *RetentionHandler) GetTrend(w http.ResponseWriter, r *http.Request) {
	trend, err := h.store.Trend(r.Context())
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	render.JSON(w, r, map[string]any{
		"trend": trend,
		"count": len(trend),
	})
}

// GetSegment returns segmented retention for one segment type.
func (h *RetentionHandler) GetSegment(w http.ResponseWriter, r *http.Request) {
	segType := retention.SegmentType(chi.URLParam(r, "type"))
	if !validSegmentType(segType) {
		h.errorHandler.HandleError(w, r,
			apperrors.NewAppValidationError("unknown segment type: "+string(segType)))
		return
	}

	cohort := r.URL.Query().Get("cohort")
	points, err := h.store.Segment(r.Context(), segType, cohort)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	render.JSON(w, r, map[string]any{
		"segment_type": segType,
		"cohort":       cohortLabel(cohort),
		"points":       points,
		"count":        len(points),
	})
}

func validSegmentType(segType retention.SegmentType) bool {
	for _, st := range retention.SegmentTypes {
		if st == segType {
			return true
		}
	}
	return false
}

func cohortLabel(cohort string) string {
	if cohort == "" {
		return "all"
	}
	return cohort
}
