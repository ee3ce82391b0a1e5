package retention

import (
	"fmt"
	"math"
	"sort"
	"time"

	"churnlens/pkg/contracts/domain"
)

// CohortRetention computes the retention curve of every journey-start-month
// cohort. The initial population is the distinct customers active at
// relative month 0; by construction the rate at offset 0 is exactly 100.
// Cohorts with an empty initial population are skipped.
func CohortRetention(rows []MonthlyRow) []RetentionPoint {
	byCohort := make(map[time.Time][]MonthlyRow)
	for _, row := range rows {
		byCohort[row.JourneyStartMonth] = append(byCohort[row.JourneyStartMonth], row)
	}

	months := make([]time.Time, 0, len(byCohort))
	for month := range byCohort {
		months = append(months, month)
	}
	sort.Slice(months, func(i, j int) bool { return months[i].Before(months[j]) })

	var points []RetentionPoint
	for _, month := range months {
		points = append(points, cohortCurve(domain.MonthLabel(month), byCohort[month])...)
	}
	return points
}

// cohortCurve computes one cohort's curve from its rows.
func cohortCurve(cohort string, rows []MonthlyRow) []RetentionPoint {
	customersByOffset := make(map[int]map[string]struct{})
	for _, row := range rows {
		if customersByOffset[row.RelativeMonth] == nil {
			customersByOffset[row.RelativeMonth] = make(map[string]struct{})
		}
		customersByOffset[row.RelativeMonth][row.CustomerID] = struct{}{}
	}

	initial := len(customersByOffset[0])
	if initial == 0 {
		return nil
	}

	offsets := make([]int, 0, len(customersByOffset))
	for offset := range customersByOffset {
		offsets = append(offsets, offset)
	}
	sort.Ints(offsets)

	points := make([]RetentionPoint, 0, len(offsets))
	for _, offset := range offsets {
		active := len(customersByOffset[offset])
		points = append(points, RetentionPoint{
			Cohort:           cohort,
			RelativeMonth:    offset,
			InitialCustomers: initial,
			ActiveCustomers:  active,
			Rate:             round2(float64(active) / float64(initial) * 100),
		})
	}
	return points
}

// Segmenter derives segment values from monthly rows.
type Segmenter struct {
	// DefaultProcessor substitutes an empty payment processor value.
	DefaultProcessor string
	// RevenueBands are the ascending upper bounds of the revenue buckets.
	RevenueBands []float64
}

// Value returns the segment value of a row for the given segment type.
// Empty values are returned as-is except for the processor segment, where
// an empty processor maps to the default category.
func (s Segmenter) Value(row MonthlyRow, segType SegmentType) string {
	switch segType {
	case SegmentFrequency:
		return row.Frequency
	case SegmentSource:
		return row.Acquisition.Source
	case SegmentMedium:
		return row.Acquisition.Medium
	case SegmentProcessor:
		if row.Acquisition.Processor == "" {
			return s.DefaultProcessor
		}
		return row.Acquisition.Processor
	case SegmentRevenueBand:
		return s.revenueBand(row.Revenue)
	default:
		return ""
	}
}

// revenueBand buckets a monthly revenue into the fixed bands; the last band
// is open-ended.
func (s Segmenter) revenueBand(revenue float64) string {
	if revenue < 0 {
		revenue = 0
	}
	low := 0.0
	for _, high := range s.RevenueBands {
		if revenue < high {
			return fmt.Sprintf("%g-%g", low, high)
		}
		low = high
	}
	return fmt.Sprintf(">%g", low)
}

// SegmentedRetention repeats the cohort retention computation independently
// per segment value of every supported segment type. Cohort/segment pairs
// whose initial population is below minCohortSize are excluded; rows with an
// empty segment value are skipped (except the processor default mapping).
func SegmentedRetention(rows []MonthlyRow, seg Segmenter, minCohortSize int) map[SegmentType][]SegmentRetentionPoint {
	results := make(map[SegmentType][]SegmentRetentionPoint, len(SegmentTypes))

	for _, segType := range SegmentTypes {
		grouped := make(map[string][]MonthlyRow)
		var values []string
		for _, row := range rows {
			value := seg.Value(row, segType)
			if value == "" {
				continue
			}
			if _, seen := grouped[value]; !seen {
				values = append(values, value)
			}
			grouped[value] = append(grouped[value], row)
		}
		sort.Strings(values)

		var points []SegmentRetentionPoint
		for _, value := range values {
			for _, p := range CohortRetention(grouped[value]) {
				if p.InitialCustomers < minCohortSize {
					continue
				}
				points = append(points, SegmentRetentionPoint{
					SegmentType:    segType,
					SegmentValue:   value,
					RetentionPoint: p,
				})
			}
		}
		if len(points) > 0 {
			results[segType] = points
		}
	}

	return results
}

// round2 rounds to two decimal places, the precision of all reported rates.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
