package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// Schema maps the logical fields the pipeline needs onto the column names of
// the source file. Dates may come either from a combined column or from
// separate year/month/day component columns; when both are configured the
// combined column is tried first and the components serve as the fallback
// reconstruction path.
type Schema struct {
	CustomerID     string `yaml:"customer_id" envconfig:"CUSTOMER_ID" validate:"required"`
	SubscriptionID string `yaml:"subscription_id" envconfig:"SUBSCRIPTION_ID" validate:"required"`

	StartDate      string       `yaml:"start_date" envconfig:"START_DATE"`
	StartDateParts DatePartCols `yaml:"start_date_parts" envconfig:"START_DATE_PARTS"`
	DueDate        string       `yaml:"due_date" envconfig:"DUE_DATE"`
	DueDateParts   DatePartCols `yaml:"due_date_parts" envconfig:"DUE_DATE_PARTS"`

	Frequency string `yaml:"frequency" envconfig:"FREQUENCY" validate:"required"`
	Revenue   string `yaml:"revenue" envconfig:"REVENUE" validate:"required"`

	Source        string `yaml:"source" envconfig:"SOURCE"`
	Medium        string `yaml:"medium" envconfig:"MEDIUM"`
	Campaign      string `yaml:"campaign" envconfig:"CAMPAIGN"`
	PaymentOrigin string `yaml:"payment_origin" envconfig:"PAYMENT_ORIGIN"`
	Processor     string `yaml:"processor" envconfig:"PROCESSOR"`
	Discount      string `yaml:"discount" envconfig:"DISCOUNT"`
}

// DatePartCols names the year/month/day component columns of a date.
type DatePartCols struct {
	Year  string `yaml:"year" envconfig:"YEAR"`
	Month string `yaml:"month" envconfig:"MONTH"`
	Day   string `yaml:"day" envconfig:"DAY"`
}

// Configured reports whether all three component columns are set.
func (d DatePartCols) Configured() bool {
	return d.Year != "" && d.Month != "" && d.Day != ""
}

// applyDefaults installs the column names of the historical export format.
func (s *Schema) applyDefaults() {
	if s.CustomerID == "" {
		s.CustomerID = "customer_id"
	}
	if s.SubscriptionID == "" {
		s.SubscriptionID = "subscription_id"
	}
	if s.StartDate == "" {
		s.StartDate = "order_date"
	}
	if !s.StartDateParts.Configured() {
		s.StartDateParts = DatePartCols{
			Year:  "order_date (Année)",
			Month: "order_date (Mois)",
			Day:   "order_date (Jour du mois)",
		}
	}
	if s.DueDate == "" {
		s.DueDate = "ECHEANCE_date"
	}
	if !s.DueDateParts.Configured() {
		s.DueDateParts = DatePartCols{
			Year:  "ECHEANCE_annee",
			Month: "ECHEANCE_mois",
			Day:   "ECHEANCE_jour",
		}
	}
	if s.Frequency == "" {
		s.Frequency = "frequence"
	}
	if s.Revenue == "" {
		s.Revenue = "consolidated_revenues_ht_euro"
	}
	if s.Source == "" {
		s.Source = "tm_source"
	}
	if s.Medium == "" {
		s.Medium = "tm_medium"
	}
	if s.Campaign == "" {
		s.Campaign = "tm_campaign"
	}
	if s.PaymentOrigin == "" {
		s.PaymentOrigin = "payment_origin"
	}
	if s.Processor == "" {
		s.Processor = "psp"
	}
	if s.Discount == "" {
		s.Discount = "discount"
	}
}

// Validate ensures the schema names enough columns to locate every required
// logical field. A date is resolvable when either its combined column or all
// three component columns are configured.
func (s *Schema) Validate() error {
	validate := validator.New()
	if err := validate.Struct(s); err != nil {
		return err
	}

	if s.StartDate == "" && !s.StartDateParts.Configured() {
		return fmt.Errorf("schema: start date needs a combined column or year/month/day components")
	}
	if s.DueDate == "" && !s.DueDateParts.Configured() {
		return fmt.Errorf("schema: due date needs a combined column or year/month/day components")
	}

	return nil
}

// RequiredColumns lists the source columns that must exist in the input
// header for a run to proceed. Date component columns are only required when
// no combined column is configured for that date.
func (s *Schema) RequiredColumns() []string {
	cols := []string{s.CustomerID, s.SubscriptionID, s.Frequency, s.Revenue}
	if s.StartDate != "" {
		cols = append(cols, s.StartDate)
	} else {
		cols = append(cols, s.StartDateParts.Year, s.StartDateParts.Month, s.StartDateParts.Day)
	}
	if s.DueDate != "" {
		cols = append(cols, s.DueDate)
	} else {
		cols = append(cols, s.DueDateParts.Year, s.DueDateParts.Month, s.DueDateParts.Day)
	}
	return cols
}
