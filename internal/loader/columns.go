package loader

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"churnlens/internal/config"
	apperrors "churnlens/internal/errors"
	"churnlens/pkg/contracts/domain"
)

// columnSet holds the resolved positions of every mapped column. Optional
// columns resolve to -1.
type columnSet struct {
	customerID     int
	subscriptionID int
	frequency      int
	revenue        int
	source         int
	medium         int
	campaign       int
	paymentOrigin  int
	processor      int
	discount       int
	startDate      dateColumns
	dueDate        dateColumns
}

// dateColumns locates a date that may come from a combined column, from
// year/month/day components, or both (components as fallback).
type dateColumns struct {
	combined int
	year     int
	month    int
	day      int
}

// resolveColumns maps schema column names onto header positions. Missing
// required columns abort the run.
func resolveColumns(header []string, schema config.Schema) (*columnSet, error) {
	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.TrimSpace(name)] = i
	}

	lookup := func(name string) int {
		if name == "" {
			return -1
		}
		if i, ok := index[name]; ok {
			return i
		}
		return -1
	}

	cols := &columnSet{
		customerID:     lookup(schema.CustomerID),
		subscriptionID: lookup(schema.SubscriptionID),
		frequency:      lookup(schema.Frequency),
		revenue:        lookup(schema.Revenue),
		source:         lookup(schema.Source),
		medium:         lookup(schema.Medium),
		campaign:       lookup(schema.Campaign),
		paymentOrigin:  lookup(schema.PaymentOrigin),
		processor:      lookup(schema.Processor),
		discount:       lookup(schema.Discount),
		startDate: dateColumns{
			combined: lookup(schema.StartDate),
			year:     lookup(schema.StartDateParts.Year),
			month:    lookup(schema.StartDateParts.Month),
			day:      lookup(schema.StartDateParts.Day),
		},
		dueDate: dateColumns{
			combined: lookup(schema.DueDate),
			year:     lookup(schema.DueDateParts.Year),
			month:    lookup(schema.DueDateParts.Month),
			day:      lookup(schema.DueDateParts.Day),
		},
	}

	var missing []string
	if cols.customerID < 0 {
		missing = append(missing, schema.CustomerID)
	}
	if cols.subscriptionID < 0 {
		missing = append(missing, schema.SubscriptionID)
	}
	if cols.frequency < 0 {
		missing = append(missing, schema.Frequency)
	}
	if cols.revenue < 0 {
		missing = append(missing, schema.Revenue)
	}
	if !cols.startDate.usable() {
		missing = append(missing, schema.StartDate)
	}
	if !cols.dueDate.usable() {
		missing = append(missing, schema.DueDate)
	}
	if len(missing) > 0 {
		return nil, apperrors.NewConfigError(
			fmt.Sprintf("required columns absent from input: %s", strings.Join(missing, ", ")), nil)
	}

	return cols, nil
}

// value returns the trimmed cell at idx, or "" when the column is absent or
// the record is short.
func (c *columnSet) value(record []string, idx int) string {
	if idx < 0 || idx >= len(record) {
		return ""
	}
	return record[idx]
}

// usable reports whether at least one resolution path exists for the date.
func (d dateColumns) usable() bool {
	return d.combined >= 0 || (d.year >= 0 && d.month >= 0 && d.day >= 0)
}

// parse resolves a date from the record. The combined column is tried first;
// when it is absent or unparseable the year/month/day components are used as
// the fallback reconstruction path.
func (d dateColumns) parse(record []string) (time.Time, domain.RepairMethod, bool) {
	if d.combined >= 0 && d.combined < len(record) {
		if t, err := parseDate(strings.TrimSpace(record[d.combined])); err == nil {
			return t, domain.RepairOriginal, true
		}
	}

	if d.year >= 0 && d.month >= 0 && d.day >= 0 {
		if t, ok := reconstructDate(record, d.year, d.month, d.day); ok {
			method := domain.RepairReconstructed
			if d.combined < 0 {
				// Components are the primary source here, not a repair.
				method = domain.RepairOriginal
			}
			return t, method, true
		}
	}

	return time.Time{}, domain.RepairOriginal, false
}

// parseDate attempts to parse date strings in multiple formats
func parseDate(dateStr string) (time.Time, error) {
	if dateStr == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}

	dateFormats := []string{
		"2006-01-02",
		"2006-01-02 15:04:05",
		"2006/01/02",
		"02/01/2006",
		"01/02/2006",
		time.RFC3339,
	}

	for _, format := range dateFormats {
		if date, err := time.Parse(format, dateStr); err == nil {
			return date.UTC(), nil
		}
	}

	return time.Time{}, fmt.Errorf("unable to parse date: %s", dateStr)
}

// reconstructDate builds a date from year/month/day component cells.
// Components exported from spreadsheets often carry float formatting
// ("2023.0"), so values are truncated to integers.
func reconstructDate(record []string, yearIdx, monthIdx, dayIdx int) (time.Time, bool) {
	year, ok1 := parseComponent(record, yearIdx)
	month, ok2 := parseComponent(record, monthIdx)
	day, ok3 := parseComponent(record, dayIdx)
	if !ok1 || !ok2 || !ok3 {
		return time.Time{}, false
	}
	if year < 1900 || year > 2200 || month < 1 || month > 12 || day < 1 || day > 31 {
		return time.Time{}, false
	}

	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	// Reject normalized overflow such as February 30.
	if int(t.Month()) != month || t.Day() != day {
		return time.Time{}, false
	}
	return t, true
}

func parseComponent(record []string, idx int) (int, bool) {
	if idx < 0 || idx >= len(record) {
		return 0, false
	}
	s := strings.TrimSpace(record[idx])
	if s == "" {
		return 0, false
	}
	if v, err := strconv.Atoi(s); err == nil {
		return v, true
	}
	if f, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", "."), 64); err == nil {
		return int(f), true
	}
	return 0, false
}

// parseRevenue parses a decimal revenue value, accepting comma decimal
// separators from European exports. Unparseable values count as zero.
func parseRevenue(s string) float64 {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", "."))
	if s == "" {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}

// worseRepair returns the more severe of two repair methods.
func worseRepair(a, b domain.RepairMethod) domain.RepairMethod {
	rank := map[domain.RepairMethod]int{
		domain.RepairOriginal:      0,
		domain.RepairReconstructed: 1,
		domain.RepairImputed:       2,
	}
	if rank[b] > rank[a] {
		return b
	}
	return a
}
