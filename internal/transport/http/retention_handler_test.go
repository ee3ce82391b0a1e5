package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "churnlens/internal/errors"
	"churnlens/internal/retention"
)

// stubStore is an in-memory ReportReader for handler tests.
type stubStore struct {
	loaded    bool
	cohorts   []string
	curve     []retention.RetentionPoint
	summaries []retention.CohortSummary
	trend     []retention.TrendPoint
	segments  map[retention.SegmentType][]retention.SegmentRetentionPoint
}

func (s *stubStore) Loaded() bool { return s.loaded }

func (s *stubStore) Cohorts(context.Context) ([]string, error) {
	if !s.loaded {
		return nil, apperrors.NewNotFoundError("report workbook")
	}
	return s.cohorts, nil
}

func (s *stubStore) Curve(_ context.Context, cohort string) ([]retention.RetentionPoint, error) {
	if !s.loaded {
		return nil, apperrors.NewNotFoundError("report workbook")
	}
	if cohort == "" || cohort == "all" {
		return s.curve, nil
	}
	var points []retention.RetentionPoint
	for _, p := range s.curve {
		if p.Cohort == cohort {
			points = append(points, p)
		}
	}
	if len(points) == 0 {
		return nil, apperrors.NewNotFoundError("cohort " + cohort)
	}
	return points, nil
}

func (s *stubStore) Summaries(context.Context) ([]retention.CohortSummary, error) {
	return s.summaries, nil
}

func (s *stubStore) Trend(context.Context) ([]retention.TrendPoint, error) {
	return s.trend, nil
}

func (s *stubStore) Segment(_ context.Context, segType retention.SegmentType, _ string) ([]retention.SegmentRetentionPoint, error) {
	points, ok := s.segments[segType]
	if !ok {
		return nil, apperrors.NewNotFoundError("segment type " + string(segType))
	}
	return points, nil
}

func loadedStore() *stubStore {
	return &stubStore{
		loaded:  true,
		cohorts: []string{"01/2023", "02/2023"},
		curve: []retention.RetentionPoint{
			{Cohort: "01/2023", RelativeMonth: 0, InitialCustomers: 50, ActiveCustomers: 50, Rate: 100},
			{Cohort: "01/2023", RelativeMonth: 1, InitialCustomers: 50, ActiveCustomers: 30, Rate: 60},
			{Cohort: "02/2023", RelativeMonth: 0, InitialCustomers: 40, ActiveCustomers: 40, Rate: 100},
		},
		trend: []retention.TrendPoint{
			{RelativeMonth: 0, MeanRate: 100, Cohorts: 2},
		},
		segments: map[retention.SegmentType][]retention.SegmentRetentionPoint{
			retention.SegmentSource: {{
				SegmentType:  retention.SegmentSource,
				SegmentValue: "google",
				RetentionPoint: retention.RetentionPoint{
					Cohort: "01/2023", RelativeMonth: 0, InitialCustomers: 30, ActiveCustomers: 30, Rate: 100,
				},
			}},
		},
	}
}

func doRequest(t *testing.T, handler *RetentionHandler, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	handler.Routes().ServeHTTP(rec, req)
	return rec
}

func TestGetCohorts(t *testing.T) {
	handler := NewRetentionHandler(loadedStore(), nil)

	rec := doRequest(t, handler, "/cohorts")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Cohorts []string `json:"cohorts"`
		Count   int      `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, []string{"01/2023", "02/2023"}, body.Cohorts)
	assert.Equal(t, 2, body.Count)
}

func TestGetCurve_FilteredByCohort(t *testing.T) {
	handler := NewRetentionHandler(loadedStore(), nil)

	rec := doRequest(t, handler, "/curve?cohort=01/2023")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Cohort string                     `json:"cohort"`
		Points []retention.RetentionPoint `json:"points"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "01/2023", body.Cohort)
	require.Len(t, body.Points, 2)
	assert.Equal(t, 100.0, body.Points[0].Rate)
}

func TestGetCurve_UnknownCohort(t *testing.T) {
	handler := NewRetentionHandler(loadedStore(), nil)

	rec := doRequest(t, handler, "/curve?cohort=12/1999")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.NotEmpty(t, body["error_code"])
}

func TestGetCurve_NoReportLoaded(t *testing.T) {
	handler := NewRetentionHandler(&stubStore{}, nil)

	rec := doRequest(t, handler, "/curve")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetTrend(t *testing.T) {
	handler := NewRetentionHandler(loadedStore(), nil)

	rec := doRequest(t, handler, "/trend")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Trend []retention.TrendPoint `json:"trend"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Trend, 1)
	assert.Equal(t, 100.0, body.Trend[0].MeanRate)
}

func TestGetSegment(t *testing.T) {
	handler := NewRetentionHandler(loadedStore(), nil)

	rec := doRequest(t, handler, "/segments/source")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		SegmentType string                            `json:"segment_type"`
		Points      []retention.SegmentRetentionPoint `json:"points"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "source", body.SegmentType)
	require.Len(t, body.Points, 1)
	assert.Equal(t, "google", body.Points[0].SegmentValue)
}

func TestGetSegment_InvalidType(t *testing.T) {
	handler := NewRetentionHandler(loadedStore(), nil)

	rec := doRequest(t, handler, "/segments/zodiac")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetSegment_AbsentFromReport(t *testing.T) {
	handler := NewRetentionHandler(loadedStore(), nil)

	rec := doRequest(t, handler, "/segments/medium")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
