package services

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"github.com/xuri/excelize/v2"

	apperrors "churnlens/internal/errors"
	"churnlens/internal/exporter"
	"churnlens/internal/infrastructure"
	"churnlens/internal/retention"
)

// ReportStore serves retention tables from an exported workbook. The
// dashboard consumes only exported reports, never the live pipeline, so a
// store can be pointed at any previously produced workbook.
type ReportStore struct {
	path   string
	logger *slog.Logger

	mu        sync.RWMutex
	retention []retention.RetentionPoint
	summaries []retention.CohortSummary
	trend     []retention.TrendPoint
	segments  map[retention.SegmentType][]retention.SegmentRetentionPoint
	loaded    bool
}

// NewReportStore creates a store for the workbook at path. Call Reload to
// read it.
func NewReportStore(path string, logger *slog.Logger) *ReportStore {
	if logger == nil {
		logger = infrastructure.GetLogger()
	}
	return &ReportStore{
		path:   path,
		logger: logger.With(slog.String("component", "report_store")),
	}
}

// Reload reads the workbook from disk, replacing all cached tables. It is
// called at startup and after every analysis run.
func (s *ReportStore) Reload(ctx context.Context) error {
	f, err := excelize.OpenFile(s.path)
	if err != nil {
		return apperrors.NewStorageError(fmt.Sprintf("cannot open report workbook %s", s.path), err)
	}
	defer f.Close()

	curve, err := s.readRetention(f, exporter.SheetCohortRetention)
	if err != nil {
		return err
	}

	summaries, err := s.readSummaries(f)
	if err != nil {
		return err
	}

	trend, err := s.readTrend(f)
	if err != nil {
		return err
	}

	segments := make(map[retention.SegmentType][]retention.SegmentRetentionPoint)
	for _, segType := range retention.SegmentTypes {
		points, err := s.readSegmentRetention(f, segType)
		if err != nil {
			return err
		}
		if len(points) > 0 {
			segments[segType] = points
		}
	}

	s.mu.Lock()
	s.retention = curve
	s.summaries = summaries
	s.trend = trend
	s.segments = segments
	s.loaded = true
	s.mu.Unlock()

	s.logger.InfoContext(ctx, "report workbook loaded",
		slog.String("path", s.path),
		slog.Int("retention_points", len(curve)),
		slog.Int("cohorts", len(summaries)),
		slog.Int("segment_types", len(segments)))

	return nil
}

// Loaded reports whether a workbook has been read successfully.
func (s *ReportStore) Loaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loaded
}

// Cohorts returns the cohort keys present in the retention table, in the
// workbook's (chronological) order.
func (s *ReportStore) Cohorts(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.loaded {
		return nil, apperrors.NewNotFoundError("report workbook")
	}

	var cohorts []string
	seen := make(map[string]bool)
	for _, p := range s.retention {
		if !seen[p.Cohort] {
			seen[p.Cohort] = true
			cohorts = append(cohorts, p.Cohort)
		}
	}
	return cohorts, nil
}

// Curve returns the retention curve, optionally filtered to one cohort.
// An unknown cohort yields a not-found error.
func (s *ReportStore) Curve(ctx context.Context, cohort string) ([]retention.RetentionPoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.loaded {
		return nil, apperrors.NewNotFoundError("report workbook")
	}
	if cohort == "" || cohort == "all" {
		return s.retention, nil
	}

	var points []retention.RetentionPoint
	for _, p := range s.retention {
		if p.Cohort == cohort {
			points = append(points, p)
		}
	}
	if len(points) == 0 {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("cohort %s", cohort))
	}
	return points, nil
}

// Summaries returns the per-cohort checkpoint summaries.
func (s *ReportStore) Summaries(ctx context.Context) ([]retention.CohortSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.loaded {
		return nil, apperrors.NewNotFoundError("report workbook")
	}
	return s.summaries, nil
}

// Trend returns the cross-cohort mean retention per offset.
func (s *ReportStore) Trend(ctx context.Context) ([]retention.TrendPoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.loaded {
		return nil, apperrors.NewNotFoundError("report workbook")
	}
	return s.trend, nil
}

// Segment returns segmented retention for one segment type, optionally
// filtered to a cohort.
func (s *ReportStore) Segment(ctx context.Context, segType retention.SegmentType, cohort string) ([]retention.SegmentRetentionPoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.loaded {
		return nil, apperrors.NewNotFoundError("report workbook")
	}

	points, ok := s.segments[segType]
	if !ok {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("segment type %s", segType))
	}
	if cohort == "" || cohort == "all" {
		return points, nil
	}

	var filtered []retention.SegmentRetentionPoint
	for _, p := range points {
		if p.Cohort == cohort {
			filtered = append(filtered, p)
		}
	}
	return filtered, nil
}

func (s *ReportStore) readRetention(f *excelize.File, sheet string) ([]retention.RetentionPoint, error) {
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, apperrors.NewParsingError(fmt.Sprintf("cannot read sheet %s", sheet), err)
	}

	var points []retention.RetentionPoint
	for i, row := range rows {
		if i == 0 || len(row) < 5 {
			continue
		}
		points = append(points, retention.RetentionPoint{
			Cohort:           row[0],
			RelativeMonth:    atoi(row[1]),
			InitialCustomers: atoi(row[2]),
			ActiveCustomers:  atoi(row[3]),
			Rate:             atof(row[4]),
		})
	}
	return points, nil
}

func (s *ReportStore) readSummaries(f *excelize.File) ([]retention.CohortSummary, error) {
	rows, err := f.GetRows(exporter.SheetCohortSummary)
	if err != nil {
		return nil, apperrors.NewParsingError("cannot read cohort summary sheet", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	// Checkpoint columns are named retention_<n>m between initial_size and
	// follow_up_months.
	header := rows[0]
	checkpointCols := make(map[int]int)
	for i, name := range header {
		if cp, ok := parseCheckpointHeader(name); ok {
			checkpointCols[i] = cp
		}
	}

	var summaries []retention.CohortSummary
	for i, row := range rows {
		if i == 0 || len(row) < 2 {
			continue
		}
		summary := retention.CohortSummary{
			Cohort:      row[0],
			InitialSize: atoi(row[1]),
			Retention:   make(map[int]float64, len(checkpointCols)),
		}
		for col, cp := range checkpointCols {
			if col < len(row) && strings.TrimSpace(row[col]) != "" {
				summary.Retention[cp] = atof(row[col])
			}
		}
		if len(row) > 0 {
			summary.FollowUpMonths = atoi(row[len(row)-1])
		}
		summaries = append(summaries, summary)
	}
	return summaries, nil
}

func (s *ReportStore) readTrend(f *excelize.File) ([]retention.TrendPoint, error) {
	rows, err := f.GetRows(exporter.SheetGlobalAverages)
	if err != nil {
		return nil, apperrors.NewParsingError("cannot read global averages sheet", err)
	}

	var trend []retention.TrendPoint
	for i, row := range rows {
		if i == 0 || len(row) < 5 {
			continue
		}
		trend = append(trend, retention.TrendPoint{
			RelativeMonth:    atoi(row[0]),
			MeanRate:         atof(row[1]),
			InitialCustomers: atoi(row[2]),
			ActiveCustomers:  atoi(row[3]),
			Cohorts:          atoi(row[4]),
		})
	}
	return trend, nil
}

func (s *ReportStore) readSegmentRetention(f *excelize.File, segType retention.SegmentType) ([]retention.SegmentRetentionPoint, error) {
	sheet := exporter.SegmentRetentionSheet(segType)
	// Segment sheets are optional; small datasets may not produce them. Only
	// a sheet that exists but cannot be read is a failure.
	idx, err := f.GetSheetIndex(sheet)
	if err != nil {
		return nil, apperrors.NewParsingError(fmt.Sprintf("cannot locate sheet %s", sheet), err)
	}
	if idx < 0 {
		return nil, nil
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, apperrors.NewParsingError(fmt.Sprintf("cannot read sheet %s", sheet), err)
	}

	var points []retention.SegmentRetentionPoint
	for i, row := range rows {
		if i == 0 || len(row) < 6 {
			continue
		}
		points = append(points, retention.SegmentRetentionPoint{
			SegmentType:  segType,
			SegmentValue: row[0],
			RetentionPoint: retention.RetentionPoint{
				Cohort:           row[1],
				RelativeMonth:    atoi(row[2]),
				InitialCustomers: atoi(row[3]),
				ActiveCustomers:  atoi(row[4]),
				Rate:             atof(row[5]),
			},
		})
	}
	return points, nil
}

func parseCheckpointHeader(name string) (int, bool) {
	if !strings.HasPrefix(name, "retention_") || !strings.HasSuffix(name, "m") {
		return 0, false
	}
	cp, err := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(name, "retention_"), "m"))
	if err != nil {
		return 0, false
	}
	return cp, true
}

func atoi(s string) int {
	v, _ := strconv.Atoi(strings.TrimSpace(s))
	return v
}

func atof(s string) float64 {
	v, _ := strconv.ParseFloat(strings.TrimSpace(s), 64)
	return v
}
