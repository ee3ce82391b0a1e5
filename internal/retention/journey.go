package retention

import (
	"fmt"
	"sort"

	"churnlens/pkg/contracts/domain"
)

// SegmentJourneys splits each customer's ordered transactions into journeys.
// A transaction starts a new journey when the gap between its start date and
// the previous transaction's due date reaches the grace period for its
// frequency: monthlyGraceDays when the frequency contains "monthly", else
// defaultGraceDays. A customer's first transaction always starts a journey.
//
// Every transaction is assigned to exactly one journey, and a customer's
// journeys never overlap in time.
func SegmentJourneys(transactions []domain.Transaction, monthlyGraceDays, defaultGraceDays int) []Journey {
	byCustomer := make(map[string][]domain.Transaction)
	var customers []string
	for _, tx := range transactions {
		if _, seen := byCustomer[tx.CustomerID]; !seen {
			customers = append(customers, tx.CustomerID)
		}
		byCustomer[tx.CustomerID] = append(byCustomer[tx.CustomerID], tx)
	}
	sort.Strings(customers)

	var journeys []Journey
	for _, customerID := range customers {
		txs := byCustomer[customerID]
		sort.SliceStable(txs, func(i, j int) bool {
			return txs[i].StartDate.Before(txs[j].StartDate)
		})

		var current *Journey
		seq := 0
		var prevDue *domain.Transaction

		for _, tx := range txs {
			grace := defaultGraceDays
			if tx.IsMonthly() {
				grace = monthlyGraceDays
			}

			newJourney := prevDue == nil
			if prevDue != nil {
				gapDays := int(tx.StartDate.Sub(prevDue.DueDate).Hours() / 24)
				newJourney = gapDays >= grace
			}

			if newJourney {
				if current != nil {
					journeys = append(journeys, *current)
				}
				seq++
				current = &Journey{
					CustomerID: customerID,
					ID:         fmt.Sprintf("%s_%d", customerID, seq),
					Seq:        seq,
					// Transactions are sorted, so the first start is the
					// earliest of the journey.
					StartMonth: domain.MonthOf(tx.StartDate),
				}
			}
			current.Transactions = append(current.Transactions, tx)
			txCopy := tx
			prevDue = &txCopy
		}
		if current != nil {
			journeys = append(journeys, *current)
		}
	}

	return journeys
}
