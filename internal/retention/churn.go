package retention

import (
	"sort"
)

// churnAttributes are the attributes compared between early churners and
// retained customers.
var churnAttributes = []string{"frequency", "source", "medium", "campaign", "offer", "payment_origin", "processor"}

// ChurnCharacteristics contrasts journeys that ended within horizonMonths
// relative months against longer journeys. For each attribute it returns the
// percentage distribution of values among churned journeys next to the
// distribution among retained ones, ordered by churner share descending
// within each attribute.
func ChurnCharacteristics(rows []MonthlyRow, horizonMonths int) []ChurnComparisonRow {
	// Journey duration is the highest relative month observed for it.
	duration := make(map[string]int)
	for _, row := range rows {
		if row.RelativeMonth > duration[row.JourneyID] {
			duration[row.JourneyID] = row.RelativeMonth
		}
	}

	// One representative row per journey: its month-0 row.
	seen := make(map[string]bool)
	var churners, retained []MonthlyRow
	for _, row := range rows {
		if row.RelativeMonth != 0 || seen[row.JourneyID] {
			continue
		}
		seen[row.JourneyID] = true
		if duration[row.JourneyID] <= horizonMonths {
			churners = append(churners, row)
		} else {
			retained = append(retained, row)
		}
	}

	var comparison []ChurnComparisonRow
	for _, attr := range churnAttributes {
		churnDist := distribution(churners, attr)
		retainedDist := distribution(retained, attr)

		valueSet := make(map[string]bool)
		for v := range churnDist {
			valueSet[v] = true
		}
		for v := range retainedDist {
			valueSet[v] = true
		}

		attrRows := make([]ChurnComparisonRow, 0, len(valueSet))
		for value := range valueSet {
			attrRows = append(attrRows, ChurnComparisonRow{
				Attribute:     attr,
				Value:         value,
				ChurnerShare:  churnDist[value],
				RetainedShare: retainedDist[value],
			})
		}
		sort.SliceStable(attrRows, func(i, j int) bool {
			if attrRows[i].ChurnerShare != attrRows[j].ChurnerShare {
				return attrRows[i].ChurnerShare > attrRows[j].ChurnerShare
			}
			return attrRows[i].Value < attrRows[j].Value
		})
		comparison = append(comparison, attrRows...)
	}

	return comparison
}

// distribution returns the percentage share of each attribute value among
// the given journeys. Empty values are skipped.
func distribution(rows []MonthlyRow, attr string) map[string]float64 {
	counts := make(map[string]int)
	total := 0
	for _, row := range rows {
		value := attributeValue(row, attr)
		if value == "" {
			continue
		}
		counts[value]++
		total++
	}

	shares := make(map[string]float64, len(counts))
	for value, count := range counts {
		shares[value] = round2(float64(count) / float64(total) * 100)
	}
	return shares
}

func attributeValue(row MonthlyRow, attr string) string {
	switch attr {
	case "frequency":
		return row.Frequency
	case "source":
		return row.Acquisition.Source
	case "medium":
		return row.Acquisition.Medium
	case "campaign":
		return row.Acquisition.Campaign
	case "offer":
		return row.Acquisition.OfferName()
	case "payment_origin":
		return row.Acquisition.PaymentOrigin
	case "processor":
		return row.Acquisition.Processor
	default:
		return ""
	}
}
