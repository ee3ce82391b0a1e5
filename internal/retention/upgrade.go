package retention

import (
	"sort"
	"time"

	"churnlens/pkg/contracts/domain"
)

// RevenueUpgrade records a subscription whose revenue exceeds the revenue of
// the same customer's immediately preceding subscription. Both sides carry
// their full attributes so the report can contrast what changed with the
// upgrade.
type RevenueUpgrade struct {
	CustomerID string      `json:"customer_id"`
	Date       time.Time   `json:"date"`
	Previous   UpgradeSide `json:"previous"`
	New        UpgradeSide `json:"new"`
}

// UpgradeSide describes one subscription in an upgrade pair.
type UpgradeSide struct {
	SubscriptionID string             `json:"subscription_id"`
	Offer          string             `json:"offer"`
	Frequency      string             `json:"frequency"`
	Revenue        float64            `json:"revenue"`
	Acquisition    domain.Acquisition `json:"acquisition"`
}

// FindRevenueUpgrades walks each customer's subscriptions in start date order
// and reports every consecutive pair where the later revenue is strictly
// higher. Input order does not matter; the comparison never crosses customer
// boundaries.
func FindRevenueUpgrades(transactions []domain.Transaction) []RevenueUpgrade {
	sorted := make([]domain.Transaction, len(transactions))
	copy(sorted, transactions)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].CustomerID != sorted[j].CustomerID {
			return sorted[i].CustomerID < sorted[j].CustomerID
		}
		if !sorted[i].StartDate.Equal(sorted[j].StartDate) {
			return sorted[i].StartDate.Before(sorted[j].StartDate)
		}
		return sorted[i].SubscriptionID < sorted[j].SubscriptionID
	})

	var upgrades []RevenueUpgrade
	for i := 1; i < len(sorted); i++ {
		prev, cur := sorted[i-1], sorted[i]
		if cur.CustomerID != prev.CustomerID || cur.Revenue <= prev.Revenue {
			continue
		}
		upgrades = append(upgrades, RevenueUpgrade{
			CustomerID: cur.CustomerID,
			Date:       cur.StartDate,
			Previous:   upgradeSide(prev),
			New:        upgradeSide(cur),
		})
	}
	return upgrades
}

func upgradeSide(t domain.Transaction) UpgradeSide {
	return UpgradeSide{
		SubscriptionID: t.SubscriptionID,
		Offer:          t.Acquisition.OfferName(),
		Frequency:      t.Frequency,
		Revenue:        t.Revenue,
		Acquisition:    t.Acquisition,
	}
}
