package domain

import (
	"strings"
	"time"
)

// Transaction represents a single subscription transaction after loading
// and cleanup. Immutable input to the retention pipeline.
type Transaction struct {
	CustomerID     string       `json:"customer_id" validate:"required"`
	SubscriptionID string       `json:"subscription_id" validate:"required"`
	StartDate      time.Time    `json:"start_date" validate:"required"`
	DueDate        time.Time    `json:"due_date" validate:"required"`
	Frequency      string       `json:"frequency"`
	Revenue        float64      `json:"revenue"`
	Acquisition    Acquisition  `json:"acquisition"`
	RepairMethod   RepairMethod `json:"repair_method"`
}

// Acquisition holds the acquisition attributes copied from the source row.
type Acquisition struct {
	Source        string `json:"source,omitempty"`
	Medium        string `json:"medium,omitempty"`
	Campaign      string `json:"campaign,omitempty"`
	PaymentOrigin string `json:"payment_origin,omitempty"`
	Processor     string `json:"processor,omitempty"`
	Discount      string `json:"discount,omitempty"`
}

// StandardOffer is the offer label for subscriptions sold without a campaign
// or discount code.
const StandardOffer = "standard"

// OfferName derives the commercial offer label: the campaign when present,
// otherwise the discount code, otherwise the standard offer.
func (a Acquisition) OfferName() string {
	if a.Campaign != "" {
		return a.Campaign
	}
	if a.Discount != "" {
		return a.Discount
	}
	return StandardOffer
}

// RepairMethod records how a transaction's dates were obtained, for audit
// reporting. Original means both dates parsed from the primary date columns.
type RepairMethod string

const (
	RepairOriginal      RepairMethod = "original"
	RepairReconstructed RepairMethod = "reconstructed"
	RepairImputed       RepairMethod = "imputed_30d"
)

// IsMonthly reports whether the frequency indicates a monthly billing
// cadence. Matching is case-insensitive substring search so values such as
// "Monthly", "monthly_v2" or "PREMIUM MONTHLY" all qualify.
func (t Transaction) IsMonthly() bool {
	return strings.Contains(strings.ToLower(t.Frequency), "monthly")
}

// IsAnnual reports whether the frequency indicates an annual billing cadence.
func (t Transaction) IsAnnual() bool {
	return strings.Contains(strings.ToLower(t.Frequency), "annual")
}

// MonthlyRevenue normalizes the transaction revenue to a per-active-month
// amount: monthly subscriptions contribute the full revenue each month,
// annual subscriptions one twelfth, any other cadence contributes zero.
func (t Transaction) MonthlyRevenue() float64 {
	switch {
	case t.IsAnnual():
		return t.Revenue / 12
	case t.IsMonthly():
		return t.Revenue
	default:
		return 0
	}
}

// MonthOf truncates a date to the first day of its calendar month in UTC.
func MonthOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// MonthsBetween returns the number of calendar months from a to b, ignoring
// the day component. Negative when b precedes a.
func MonthsBetween(a, b time.Time) int {
	return (b.Year()-a.Year())*12 + int(b.Month()) - int(a.Month())
}

// MonthLabel formats a month as MM/YYYY, the cohort key format used across
// reports and the dashboard.
func MonthLabel(t time.Time) string {
	return t.Format("01/2006")
}
