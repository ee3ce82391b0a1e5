package retention

import (
	"sort"

	"churnlens/pkg/contracts/domain"
)

// ExpandJourneys emits one MonthlyRow per calendar month each transaction
// covers, from its start month through its due month inclusive. The relative
// month index counts calendar months since the journey's start month.
//
// A transaction whose due date precedes its start date expands to zero rows
// and is counted in ExpandStats.EmptyExpansions; it is a data quality signal,
// not an error.
func ExpandJourneys(journeys []Journey) ([]MonthlyRow, ExpandStats) {
	var rows []MonthlyRow
	var stats ExpandStats

	for _, journey := range journeys {
		for _, tx := range journey.Transactions {
			startMonth := domain.MonthOf(tx.StartDate)
			endMonth := domain.MonthOf(tx.DueDate)

			if endMonth.Before(startMonth) {
				stats.EmptyExpansions++
				continue
			}

			for month := startMonth; !month.After(endMonth); month = month.AddDate(0, 1, 0) {
				rows = append(rows, MonthlyRow{
					CustomerID:        tx.CustomerID,
					SubscriptionID:    tx.SubscriptionID,
					JourneyID:         journey.ID,
					Month:             month,
					RelativeMonth:     domain.MonthsBetween(journey.StartMonth, month),
					JourneyStartMonth: journey.StartMonth,
					Frequency:         tx.Frequency,
					Revenue:           tx.MonthlyRevenue(),
					Acquisition:       tx.Acquisition,
					RepairMethod:      tx.RepairMethod,
				})
				stats.RowsEmitted++
			}
		}
	}

	return rows, stats
}

// Deduplicate collapses rows sharing (customer, calendar month) into one,
// enforcing the single-active-row-per-customer-month invariant. The
// tie-break is deterministic: the row with the lowest subscription id wins;
// among equal subscription ids the first encountered is kept. Applying
// Deduplicate to already-deduplicated rows is a no-op.
func Deduplicate(rows []MonthlyRow) ([]MonthlyRow, int) {
	type key struct {
		customer string
		month    int64
	}

	kept := make(map[key]MonthlyRow, len(rows))
	collapsed := 0

	for _, row := range rows {
		k := key{customer: row.CustomerID, month: row.Month.Unix()}
		existing, dup := kept[k]
		if !dup {
			kept[k] = row
			continue
		}
		collapsed++
		if row.SubscriptionID < existing.SubscriptionID {
			kept[k] = row
		}
	}

	result := make([]MonthlyRow, 0, len(kept))
	for _, row := range kept {
		result = append(result, row)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].CustomerID != result[j].CustomerID {
			return result[i].CustomerID < result[j].CustomerID
		}
		return result[i].Month.Before(result[j].Month)
	})

	return result, collapsed
}
