package retention

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"churnlens/pkg/contracts/domain"
)

func upgradeTx(customer, sub string, start time.Time, revenue float64, acq domain.Acquisition) domain.Transaction {
	return domain.Transaction{
		CustomerID:     customer,
		SubscriptionID: sub,
		StartDate:      start,
		DueDate:        start.AddDate(0, 1, 0),
		Frequency:      "Monthly",
		Revenue:        revenue,
		Acquisition:    acq,
	}
}

func TestFindRevenueUpgrades_DetectsIncrease(t *testing.T) {
	txs := []domain.Transaction{
		upgradeTx("c1", "s1", day(2023, time.January, 5), 9.99,
			domain.Acquisition{Discount: "WELCOME10", Processor: "stripe"}),
		upgradeTx("c1", "s2", day(2023, time.June, 5), 19.99,
			domain.Acquisition{Campaign: "premium_launch", Processor: "stripe"}),
	}

	upgrades := FindRevenueUpgrades(txs)
	require.Len(t, upgrades, 1)

	u := upgrades[0]
	assert.Equal(t, "c1", u.CustomerID)
	assert.Equal(t, day(2023, time.June, 5), u.Date)
	assert.Equal(t, "s1", u.Previous.SubscriptionID)
	assert.Equal(t, "WELCOME10", u.Previous.Offer)
	assert.Equal(t, 9.99, u.Previous.Revenue)
	assert.Equal(t, "s2", u.New.SubscriptionID)
	assert.Equal(t, "premium_launch", u.New.Offer)
	assert.Equal(t, 19.99, u.New.Revenue)
}

func TestFindRevenueUpgrades_IgnoresDecreaseAndEqual(t *testing.T) {
	txs := []domain.Transaction{
		upgradeTx("c1", "s1", day(2023, time.January, 5), 19.99, domain.Acquisition{}),
		upgradeTx("c1", "s2", day(2023, time.March, 5), 9.99, domain.Acquisition{}),
		upgradeTx("c1", "s3", day(2023, time.May, 5), 9.99, domain.Acquisition{}),
	}

	assert.Empty(t, FindRevenueUpgrades(txs))
}

func TestFindRevenueUpgrades_NeverCrossesCustomers(t *testing.T) {
	// c2's first subscription costs more than c1's last; that is not an
	// upgrade.
	txs := []domain.Transaction{
		upgradeTx("c1", "s1", day(2023, time.January, 5), 5, domain.Acquisition{}),
		upgradeTx("c2", "s2", day(2023, time.February, 5), 50, domain.Acquisition{}),
	}

	assert.Empty(t, FindRevenueUpgrades(txs))
}

func TestFindRevenueUpgrades_SortsInput(t *testing.T) {
	txs := []domain.Transaction{
		upgradeTx("c1", "s2", day(2023, time.June, 5), 19.99, domain.Acquisition{}),
		upgradeTx("c1", "s1", day(2023, time.January, 5), 9.99, domain.Acquisition{}),
	}

	upgrades := FindRevenueUpgrades(txs)
	require.Len(t, upgrades, 1)
	assert.Equal(t, "s1", upgrades[0].Previous.SubscriptionID)
	assert.Equal(t, "s2", upgrades[0].New.SubscriptionID)
}

func TestFindRevenueUpgrades_ConsecutiveOnly(t *testing.T) {
	// 10 -> 5 -> 8: only the 5 -> 8 step is an upgrade, even though 8 is
	// below the first subscription's revenue.
	txs := []domain.Transaction{
		upgradeTx("c1", "s1", day(2023, time.January, 5), 10, domain.Acquisition{}),
		upgradeTx("c1", "s2", day(2023, time.March, 5), 5, domain.Acquisition{}),
		upgradeTx("c1", "s3", day(2023, time.May, 5), 8, domain.Acquisition{}),
	}

	upgrades := FindRevenueUpgrades(txs)
	require.Len(t, upgrades, 1)
	assert.Equal(t, "s2", upgrades[0].Previous.SubscriptionID)
	assert.Equal(t, "s3", upgrades[0].New.SubscriptionID)
}
