package retention

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSummarizeCohorts(t *testing.T) {
	points := []RetentionPoint{
		{Cohort: "01/2023", RelativeMonth: 0, InitialCustomers: 50, ActiveCustomers: 50, Rate: 100},
		{Cohort: "01/2023", RelativeMonth: 1, InitialCustomers: 50, ActiveCustomers: 30, Rate: 60},
		{Cohort: "01/2023", RelativeMonth: 3, InitialCustomers: 50, ActiveCustomers: 20, Rate: 40},
		{Cohort: "01/2023", RelativeMonth: 4, InitialCustomers: 50, ActiveCustomers: 18, Rate: 36},
	}

	summaries := SummarizeCohorts(points, []int{1, 3, 6, 12})
	require.Len(t, summaries, 1)

	s := summaries[0]
	assert.Equal(t, "01/2023", s.Cohort)
	assert.Equal(t, 50, s.InitialSize)
	assert.Equal(t, 4, s.FollowUpMonths)
	assert.Equal(t, 60.0, s.Retention[1])
	assert.Equal(t, 40.0, s.Retention[3])

	// Checkpoints the cohort has not reached stay absent rather than zero.
	_, has6 := s.Retention[6]
	assert.False(t, has6)
}

func TestTrendSummary_MeansAcrossCohorts(t *testing.T) {
	points := []RetentionPoint{
		{Cohort: "01/2023", RelativeMonth: 1, InitialCustomers: 100, ActiveCustomers: 60, Rate: 60},
		{Cohort: "02/2023", RelativeMonth: 1, InitialCustomers: 80, ActiveCustomers: 40, Rate: 50},
	}

	trend := TrendSummary(points, 50)
	require.Len(t, trend, 1)

	assert.Equal(t, 1, trend[0].RelativeMonth)
	assert.Equal(t, 55.0, trend[0].MeanRate)
	assert.Equal(t, 180, trend[0].InitialCustomers)
	assert.Equal(t, 100, trend[0].ActiveCustomers)
	assert.Equal(t, 2, trend[0].Cohorts)
}

func TestTrendSummary_ExcludesSmallCohorts(t *testing.T) {
	points := []RetentionPoint{
		{Cohort: "01/2023", RelativeMonth: 1, InitialCustomers: 100, ActiveCustomers: 60, Rate: 60},
		{Cohort: "02/2023", RelativeMonth: 1, InitialCustomers: 12, ActiveCustomers: 12, Rate: 100},
	}

	trend := TrendSummary(points, 50)
	require.Len(t, trend, 1)
	assert.Equal(t, 60.0, trend[0].MeanRate)
	assert.Equal(t, 1, trend[0].Cohorts)
}

func TestSummarizeSegments_DropsSmallAndRanks(t *testing.T) {
	segments := map[SegmentType][]SegmentRetentionPoint{
		SegmentFrequency: {
			{SegmentValue: "Monthly", RetentionPoint: RetentionPoint{Cohort: "01/2023", RelativeMonth: 0, InitialCustomers: 40, Rate: 100}},
			{SegmentValue: "Monthly", RetentionPoint: RetentionPoint{Cohort: "01/2023", RelativeMonth: 6, InitialCustomers: 40, Rate: 30}},
			{SegmentValue: "Annual", RetentionPoint: RetentionPoint{Cohort: "01/2023", RelativeMonth: 0, InitialCustomers: 25, Rate: 100}},
			{SegmentValue: "Annual", RetentionPoint: RetentionPoint{Cohort: "01/2023", RelativeMonth: 6, InitialCustomers: 25, Rate: 70}},
			{SegmentValue: "Weekly", RetentionPoint: RetentionPoint{Cohort: "01/2023", RelativeMonth: 0, InitialCustomers: 3, Rate: 100}},
		},
	}

	summaries := SummarizeSegments(segments, []int{1, 6}, 10)
	require.Contains(t, summaries, SegmentFrequency)

	freq := summaries[SegmentFrequency]
	require.Len(t, freq, 2, "segment values below the population floor are dropped")

	// Ranked by the rate at the highest checkpoint, descending.
	assert.Equal(t, "Annual", freq[0].SegmentValue)
	assert.Equal(t, 70.0, freq[0].Retention[6])
	assert.Equal(t, "Monthly", freq[1].SegmentValue)
	assert.Equal(t, 25, freq[0].TotalInitialCustomers)
}

func TestCompareSegments_TopNPerType(t *testing.T) {
	summaries := map[SegmentType][]SegmentSummary{
		SegmentFrequency: {
			{SegmentType: SegmentFrequency, SegmentValue: "a"},
			{SegmentType: SegmentFrequency, SegmentValue: "b"},
			{SegmentType: SegmentFrequency, SegmentValue: "c"},
		},
		SegmentSource: {
			{SegmentType: SegmentSource, SegmentValue: "x"},
		},
	}

	comparison := CompareSegments(summaries, 2)
	require.Len(t, comparison, 3)
	assert.Equal(t, "a", comparison[0].SegmentValue)
	assert.Equal(t, "b", comparison[1].SegmentValue)
	assert.Equal(t, SegmentSource, comparison[2].SegmentType)
}
