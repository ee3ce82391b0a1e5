// Package retention implements the cohort retention computation: journey
// segmentation, monthly expansion, per-cohort retention curves, segmented
// variants, and the summary tables exported to reports.
package retention

import (
	"time"

	"churnlens/pkg/contracts/domain"
)

// Journey is one continuous span of subscription activity for a customer,
// possibly covering several subscription records. Journeys for one customer
// are contiguous, non-overlapping, and ordered by start date.
type Journey struct {
	CustomerID   string               `json:"customer_id"`
	ID           string               `json:"id"`
	Seq          int                  `json:"seq"`
	StartMonth   time.Time            `json:"start_month"`
	Transactions []domain.Transaction `json:"transactions"`
}

// MonthlyRow is one month of activity for one customer. After deduplication
// there is at most one row per (customer, calendar month).
type MonthlyRow struct {
	CustomerID        string              `json:"customer_id"`
	SubscriptionID    string              `json:"subscription_id"`
	JourneyID         string              `json:"journey_id"`
	Month             time.Time           `json:"month"`
	RelativeMonth     int                 `json:"relative_month"`
	JourneyStartMonth time.Time           `json:"journey_start_month"`
	Frequency         string              `json:"frequency"`
	Revenue           float64             `json:"revenue"`
	Acquisition       domain.Acquisition  `json:"acquisition"`
	RepairMethod      domain.RepairMethod `json:"repair_method"`
}

// Cohort returns the MM/YYYY cohort key of the row's journey start month.
func (r MonthlyRow) Cohort() string {
	return domain.MonthLabel(r.JourneyStartMonth)
}

// ExpandStats reports what happened during monthly expansion.
type ExpandStats struct {
	RowsEmitted         int `json:"rows_emitted"`
	EmptyExpansions     int `json:"empty_expansions"`
	DuplicatesCollapsed int `json:"duplicates_collapsed"`
}

// RetentionPoint is one point of a cohort retention curve.
type RetentionPoint struct {
	Cohort           string  `json:"cohort"`
	RelativeMonth    int     `json:"relative_month"`
	InitialCustomers int     `json:"initial_customers"`
	ActiveCustomers  int     `json:"active_customers"`
	Rate             float64 `json:"rate"`
}

// SegmentType identifies the categorical attribute a segmented analysis
// partitions on.
type SegmentType string

const (
	SegmentFrequency   SegmentType = "frequency"
	SegmentSource      SegmentType = "source"
	SegmentMedium      SegmentType = "medium"
	SegmentProcessor   SegmentType = "processor"
	SegmentRevenueBand SegmentType = "revenue_band"
)

// SegmentTypes lists the supported segment analyses in report order.
var SegmentTypes = []SegmentType{
	SegmentFrequency,
	SegmentSource,
	SegmentMedium,
	SegmentProcessor,
	SegmentRevenueBand,
}

// SegmentRetentionPoint is a retention point within one segment value.
type SegmentRetentionPoint struct {
	SegmentType  SegmentType `json:"segment_type"`
	SegmentValue string      `json:"segment_value"`
	RetentionPoint
}

// CohortSummary condenses one cohort's curve down to the checkpoint offsets.
// Retention holds only the checkpoints the cohort has reached.
type CohortSummary struct {
	Cohort         string          `json:"cohort"`
	InitialSize    int             `json:"initial_size"`
	Retention      map[int]float64 `json:"retention"`
	FollowUpMonths int             `json:"follow_up_months"`
}

// TrendPoint is the mean retention across significant cohorts at one offset.
type TrendPoint struct {
	RelativeMonth    int     `json:"relative_month"`
	MeanRate         float64 `json:"mean_rate"`
	InitialCustomers int     `json:"initial_customers"`
	ActiveCustomers  int     `json:"active_customers"`
	Cohorts          int     `json:"cohorts"`
}

// SegmentSummary aggregates one segment value across its cohorts.
type SegmentSummary struct {
	SegmentType           SegmentType     `json:"segment_type"`
	SegmentValue          string          `json:"segment_value"`
	TotalInitialCustomers int             `json:"total_initial_customers"`
	Retention             map[int]float64 `json:"retention"`
}

// ChurnComparisonRow contrasts the share of early churners carrying an
// attribute value with the share of retained customers carrying it.
type ChurnComparisonRow struct {
	Attribute     string  `json:"attribute"`
	Value         string  `json:"value"`
	ChurnerShare  float64 `json:"churner_share"`
	RetainedShare float64 `json:"retained_share"`
}

// Result bundles every table one analysis run produces.
type Result struct {
	Monthly          []MonthlyRow                            `json:"monthly"`
	ExpandStats      ExpandStats                             `json:"expand_stats"`
	Retention        []RetentionPoint                        `json:"retention"`
	CohortSummaries  []CohortSummary                         `json:"cohort_summaries"`
	Trend            []TrendPoint                            `json:"trend"`
	Segments         map[SegmentType][]SegmentRetentionPoint `json:"segments"`
	SegmentSummaries map[SegmentType][]SegmentSummary        `json:"segment_summaries"`
	Comparison       []SegmentSummary                        `json:"comparison"`
	Churn            []ChurnComparisonRow                    `json:"churn"`
	Upgrades         []RevenueUpgrade                        `json:"upgrades"`
}
