package retention

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"churnlens/pkg/contracts/domain"
)

// cohortRows builds rows for a cohort with counts[i] distinct customers
// active at relative month i. Customer ids are stable across offsets so the
// same customers stay active.
func cohortRows(start time.Time, counts []int) []MonthlyRow {
	var rows []MonthlyRow
	for offset, count := range counts {
		for c := 0; c < count; c++ {
			rows = append(rows, MonthlyRow{
				CustomerID:        fmt.Sprintf("c%03d", c),
				SubscriptionID:    fmt.Sprintf("s%03d", c),
				JourneyID:         fmt.Sprintf("c%03d_1", c),
				Month:             start.AddDate(0, offset, 0),
				RelativeMonth:     offset,
				JourneyStartMonth: start,
			})
		}
	}
	return rows
}

func TestCohortRetention_OffsetZeroIsAlwaysHundred(t *testing.T) {
	rows := cohortRows(day(2023, time.January, 1), []int{37, 20, 11})

	points := CohortRetention(rows)
	require.NotEmpty(t, points)

	assert.Equal(t, 0, points[0].RelativeMonth)
	assert.Equal(t, 100.0, points[0].Rate)
	assert.Equal(t, 37, points[0].InitialCustomers)
}

func TestCohortRetention_RateComputation(t *testing.T) {
	rows := cohortRows(day(2023, time.January, 1), []int{100, 40})

	points := CohortRetention(rows)
	require.Len(t, points, 2)

	assert.Equal(t, "01/2023", points[0].Cohort)
	assert.Equal(t, 40, points[1].ActiveCustomers)
	assert.Equal(t, 40.0, points[1].Rate)
}

func TestCohortRetention_RoundsToTwoDecimals(t *testing.T) {
	rows := cohortRows(day(2023, time.January, 1), []int{3, 1})

	points := CohortRetention(rows)
	require.Len(t, points, 2)
	assert.Equal(t, 33.33, points[1].Rate)
}

func TestCohortRetention_ActiveNeverExceedsInitial(t *testing.T) {
	rows := cohortRows(day(2023, time.January, 1), []int{10, 8, 5, 5, 2})

	for _, p := range CohortRetention(rows) {
		assert.LessOrEqual(t, p.ActiveCustomers, p.InitialCustomers)
		assert.LessOrEqual(t, p.Rate, 100.0)
	}
}

func TestCohortRetention_CohortsOrderedChronologically(t *testing.T) {
	rows := append(
		cohortRows(day(2023, time.March, 1), []int{5}),
		cohortRows(day(2022, time.November, 1), []int{5})...,
	)

	points := CohortRetention(rows)
	require.Len(t, points, 2)
	assert.Equal(t, "11/2022", points[0].Cohort)
	assert.Equal(t, "03/2023", points[1].Cohort)
}

func TestCohortRetention_SkipsEmptyInitialPopulation(t *testing.T) {
	// A cohort with rows only at offset 1 has no initial population.
	rows := []MonthlyRow{{
		CustomerID:        "c1",
		JourneyID:         "c1_1",
		Month:             day(2023, time.February, 1),
		RelativeMonth:     1,
		JourneyStartMonth: day(2023, time.January, 1),
	}}

	assert.Empty(t, CohortRetention(rows))
}

func TestSegmenterValue(t *testing.T) {
	seg := Segmenter{DefaultProcessor: "CB", RevenueBands: []float64{5, 10, 15, 20}}

	row := MonthlyRow{
		Frequency: "Monthly",
		Revenue:   7.5,
		Acquisition: domain.Acquisition{
			Source:    "google",
			Medium:    "cpc",
			Processor: "",
		},
	}

	assert.Equal(t, "Monthly", seg.Value(row, SegmentFrequency))
	assert.Equal(t, "google", seg.Value(row, SegmentSource))
	assert.Equal(t, "cpc", seg.Value(row, SegmentMedium))
	assert.Equal(t, "CB", seg.Value(row, SegmentProcessor), "missing processor maps to default")
	assert.Equal(t, "5-10", seg.Value(row, SegmentRevenueBand))

	row.Acquisition.Processor = "stripe"
	assert.Equal(t, "stripe", seg.Value(row, SegmentProcessor))
}

func TestSegmenterRevenueBands(t *testing.T) {
	seg := Segmenter{RevenueBands: []float64{5, 10, 15, 20}}

	tests := []struct {
		revenue float64
		want    string
	}{
		{0, "0-5"},
		{4.99, "0-5"},
		{5, "5-10"},
		{12.5, "10-15"},
		{19.99, "15-20"},
		{20, ">20"},
		{250, ">20"},
		{-3, "0-5"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, seg.revenueBand(tt.revenue), "revenue %v", tt.revenue)
	}
}

func TestSegmentedRetention_MinCohortSize(t *testing.T) {
	seg := Segmenter{DefaultProcessor: "CB", RevenueBands: []float64{5, 10, 15, 20}}

	small := cohortRows(day(2023, time.January, 1), []int{4, 2})
	for i := range small {
		small[i].Frequency = "Monthly"
	}
	big := cohortRows(day(2023, time.February, 1), []int{15, 9})
	for i := range big {
		big[i].Frequency = "Annual"
		big[i].CustomerID = "x" + big[i].CustomerID
		big[i].JourneyID = "x" + big[i].JourneyID
	}

	segments := SegmentedRetention(append(small, big...), seg, 10)

	freq := segments[SegmentFrequency]
	require.NotEmpty(t, freq)
	for _, p := range freq {
		assert.Equal(t, "Annual", p.SegmentValue, "cohorts below the threshold are excluded")
		assert.GreaterOrEqual(t, p.InitialCustomers, 10)
	}
}

func TestSegmentedRetention_SkipsEmptySegmentValues(t *testing.T) {
	seg := Segmenter{DefaultProcessor: "CB", RevenueBands: []float64{5, 10, 15, 20}}

	rows := cohortRows(day(2023, time.January, 1), []int{3})
	// Source left empty on all rows; the source segment should not appear.
	segments := SegmentedRetention(rows, seg, 1)

	assert.NotContains(t, segments, SegmentSource)
	// Processor falls back to the default value instead of being skipped.
	require.Contains(t, segments, SegmentProcessor)
	assert.Equal(t, "CB", segments[SegmentProcessor][0].SegmentValue)
}
