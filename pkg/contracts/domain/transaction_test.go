package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIsMonthly(t *testing.T) {
	tests := []struct {
		frequency string
		want      bool
	}{
		{"Monthly", true},
		{"monthly_v2", true},
		{"PREMIUM MONTHLY", true},
		{"Annual", false},
		{"", false},
	}
	for _, tt := range tests {
		tx := Transaction{Frequency: tt.frequency}
		assert.Equal(t, tt.want, tx.IsMonthly(), tt.frequency)
	}
}

func TestMonthlyRevenue(t *testing.T) {
	tests := []struct {
		name      string
		frequency string
		revenue   float64
		want      float64
	}{
		{"monthly full amount", "Monthly", 9.99, 9.99},
		{"annual twelfth", "Annual", 120, 10},
		{"annual beats monthly substring", "annual-monthly", 120, 10},
		{"unknown cadence zero", "One-shot", 50, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx := Transaction{Frequency: tt.frequency, Revenue: tt.revenue}
			assert.InDelta(t, tt.want, tx.MonthlyRevenue(), 1e-9)
		})
	}
}

func TestMonthOf(t *testing.T) {
	in := time.Date(2023, 7, 19, 14, 30, 0, 0, time.FixedZone("CET", 3600))
	assert.Equal(t, time.Date(2023, 7, 1, 0, 0, 0, 0, time.UTC), MonthOf(in))
}

func TestMonthsBetween(t *testing.T) {
	jan := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, 0, MonthsBetween(jan, jan))
	assert.Equal(t, 2, MonthsBetween(jan, time.Date(2023, 3, 31, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, 13, MonthsBetween(jan, time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, -1, MonthsBetween(jan, time.Date(2022, 12, 1, 0, 0, 0, 0, time.UTC)))
}

func TestMonthLabel(t *testing.T) {
	assert.Equal(t, "03/2023", MonthLabel(time.Date(2023, 3, 1, 0, 0, 0, 0, time.UTC)))
}

func TestOfferName(t *testing.T) {
	assert.Equal(t, "summer_sale", Acquisition{Campaign: "summer_sale", Discount: "PROMO5"}.OfferName())
	assert.Equal(t, "PROMO5", Acquisition{Discount: "PROMO5"}.OfferName())
	assert.Equal(t, StandardOffer, Acquisition{}.OfferName())
}
