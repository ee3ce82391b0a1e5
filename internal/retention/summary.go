package retention

import (
	"sort"
)

// SummarizeCohorts condenses retention curves into one row per cohort with
// the rate at each checkpoint offset the cohort has reached, its initial
// size, and how many months of follow-up exist.
func SummarizeCohorts(points []RetentionPoint, checkpoints []int) []CohortSummary {
	byCohort := make(map[string][]RetentionPoint)
	var cohorts []string
	for _, p := range points {
		if _, seen := byCohort[p.Cohort]; !seen {
			cohorts = append(cohorts, p.Cohort)
		}
		byCohort[p.Cohort] = append(byCohort[p.Cohort], p)
	}

	summaries := make([]CohortSummary, 0, len(cohorts))
	for _, cohort := range cohorts {
		curve := byCohort[cohort]
		summary := CohortSummary{
			Cohort:    cohort,
			Retention: make(map[int]float64, len(checkpoints)),
		}
		rateByOffset := make(map[int]float64, len(curve))
		for _, p := range curve {
			rateByOffset[p.RelativeMonth] = p.Rate
			summary.InitialSize = p.InitialCustomers
			if p.RelativeMonth > summary.FollowUpMonths {
				summary.FollowUpMonths = p.RelativeMonth
			}
		}
		for _, cp := range checkpoints {
			if rate, ok := rateByOffset[cp]; ok {
				summary.Retention[cp] = rate
			}
		}
		summaries = append(summaries, summary)
	}

	return summaries
}

// TrendSummary averages retention per relative month across cohorts whose
// initial population reaches minCohortSize. Smaller cohorts stay out of the
// trend but remain in the raw retention table.
func TrendSummary(points []RetentionPoint, minCohortSize int) []TrendPoint {
	type acc struct {
		rateSum float64
		initial int
		active  int
		cohorts int
	}
	byOffset := make(map[int]*acc)

	for _, p := range points {
		if p.InitialCustomers < minCohortSize {
			continue
		}
		a := byOffset[p.RelativeMonth]
		if a == nil {
			a = &acc{}
			byOffset[p.RelativeMonth] = a
		}
		a.rateSum += p.Rate
		a.initial += p.InitialCustomers
		a.active += p.ActiveCustomers
		a.cohorts++
	}

	offsets := make([]int, 0, len(byOffset))
	for offset := range byOffset {
		offsets = append(offsets, offset)
	}
	sort.Ints(offsets)

	trend := make([]TrendPoint, 0, len(offsets))
	for _, offset := range offsets {
		a := byOffset[offset]
		trend = append(trend, TrendPoint{
			RelativeMonth:    offset,
			MeanRate:         round2(a.rateSum / float64(a.cohorts)),
			InitialCustomers: a.initial,
			ActiveCustomers:  a.active,
			Cohorts:          a.cohorts,
		})
	}
	return trend
}

// SummarizeSegments aggregates each segment value across its cohorts: total
// initial population and the mean rate at every checkpoint with data.
// Segment values whose total initial population is below minSegmentSize are
// dropped. Results per type are ordered by the rate at the highest
// checkpoint, descending, matching the comparison tables in reports.
func SummarizeSegments(segments map[SegmentType][]SegmentRetentionPoint, checkpoints []int, minSegmentSize int) map[SegmentType][]SegmentSummary {
	rankOffset := 0
	for _, cp := range checkpoints {
		if cp > rankOffset {
			rankOffset = cp
		}
	}

	result := make(map[SegmentType][]SegmentSummary, len(segments))
	for segType, points := range segments {
		byValue := make(map[string][]SegmentRetentionPoint)
		var values []string
		for _, p := range points {
			if _, seen := byValue[p.SegmentValue]; !seen {
				values = append(values, p.SegmentValue)
			}
			byValue[p.SegmentValue] = append(byValue[p.SegmentValue], p)
		}

		var summaries []SegmentSummary
		for _, value := range values {
			summary := summarizeSegmentValue(segType, value, byValue[value], checkpoints)
			if summary.TotalInitialCustomers < minSegmentSize {
				continue
			}
			summaries = append(summaries, summary)
		}

		sort.SliceStable(summaries, func(i, j int) bool {
			return summaries[i].Retention[rankOffset] > summaries[j].Retention[rankOffset]
		})
		if len(summaries) > 0 {
			result[segType] = summaries
		}
	}

	return result
}

func summarizeSegmentValue(segType SegmentType, value string, points []SegmentRetentionPoint, checkpoints []int) SegmentSummary {
	summary := SegmentSummary{
		SegmentType:  segType,
		SegmentValue: value,
		Retention:    make(map[int]float64, len(checkpoints)),
	}

	type acc struct {
		sum   float64
		count int
	}
	byOffset := make(map[int]*acc)
	for _, p := range points {
		if p.RelativeMonth == 0 {
			summary.TotalInitialCustomers += p.InitialCustomers
		}
		a := byOffset[p.RelativeMonth]
		if a == nil {
			a = &acc{}
			byOffset[p.RelativeMonth] = a
		}
		a.sum += p.Rate
		a.count++
	}

	for _, cp := range checkpoints {
		if a, ok := byOffset[cp]; ok && a.count > 0 {
			summary.Retention[cp] = round2(a.sum / float64(a.count))
		}
	}
	return summary
}

// CompareSegments flattens the per-type summaries into one cross-segment
// comparison table, keeping the top entries of each type.
func CompareSegments(summaries map[SegmentType][]SegmentSummary, topN int) []SegmentSummary {
	var comparison []SegmentSummary
	for _, segType := range SegmentTypes {
		entries := summaries[segType]
		if len(entries) > topN {
			entries = entries[:topN]
		}
		comparison = append(comparison, entries...)
	}
	return comparison
}
