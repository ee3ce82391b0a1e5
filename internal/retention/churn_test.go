package retention

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"churnlens/pkg/contracts/domain"
)

// journeyRows builds the monthly rows of one journey lasting months offsets.
func journeyRows(journeyID string, months int, acq domain.Acquisition, freq string) []MonthlyRow {
	start := day(2023, time.January, 1)
	rows := make([]MonthlyRow, 0, months+1)
	for offset := 0; offset <= months; offset++ {
		rows = append(rows, MonthlyRow{
			CustomerID:        journeyID,
			JourneyID:         journeyID + "_1",
			Month:             start.AddDate(0, offset, 0),
			RelativeMonth:     offset,
			JourneyStartMonth: start,
			Frequency:         freq,
			Acquisition:       acq,
		})
	}
	return rows
}

func TestChurnCharacteristics_SplitsByHorizon(t *testing.T) {
	var rows []MonthlyRow
	// Two early churners (2 months or less), both from "facebook".
	rows = append(rows, journeyRows("c1", 1, domain.Acquisition{Source: "facebook"}, "Monthly")...)
	rows = append(rows, journeyRows("c2", 2, domain.Acquisition{Source: "facebook"}, "Monthly")...)
	// Two retained customers from "google".
	rows = append(rows, journeyRows("c3", 8, domain.Acquisition{Source: "google"}, "Monthly")...)
	rows = append(rows, journeyRows("c4", 12, domain.Acquisition{Source: "google"}, "Annual")...)

	comparison := ChurnCharacteristics(rows, 2)
	require.NotEmpty(t, comparison)

	var facebook, google *ChurnComparisonRow
	for i := range comparison {
		row := &comparison[i]
		if row.Attribute != "source" {
			continue
		}
		switch row.Value {
		case "facebook":
			facebook = row
		case "google":
			google = row
		}
	}

	require.NotNil(t, facebook)
	require.NotNil(t, google)
	assert.Equal(t, 100.0, facebook.ChurnerShare)
	assert.Equal(t, 0.0, facebook.RetainedShare)
	assert.Equal(t, 0.0, google.ChurnerShare)
	assert.Equal(t, 100.0, google.RetainedShare)
}

func TestChurnCharacteristics_OrderedByChurnerShare(t *testing.T) {
	var rows []MonthlyRow
	rows = append(rows, journeyRows("c1", 0, domain.Acquisition{Source: "a"}, "Monthly")...)
	rows = append(rows, journeyRows("c2", 0, domain.Acquisition{Source: "a"}, "Monthly")...)
	rows = append(rows, journeyRows("c3", 0, domain.Acquisition{Source: "b"}, "Monthly")...)

	comparison := ChurnCharacteristics(rows, 2)

	var sources []ChurnComparisonRow
	for _, row := range comparison {
		if row.Attribute == "source" {
			sources = append(sources, row)
		}
	}
	require.Len(t, sources, 2)
	assert.Equal(t, "a", sources[0].Value)
	assert.Greater(t, sources[0].ChurnerShare, sources[1].ChurnerShare)
}

func TestChurnCharacteristics_SkipsEmptyValues(t *testing.T) {
	rows := journeyRows("c1", 0, domain.Acquisition{}, "")

	comparison := ChurnCharacteristics(rows, 2)
	// Empty attribute values produce no rows; only the derived offer label
	// remains for a journey with no attributes at all.
	require.NotEmpty(t, comparison)
	for _, row := range comparison {
		assert.Equal(t, "offer", row.Attribute)
		assert.Equal(t, domain.StandardOffer, row.Value)
	}
}

func TestChurnCharacteristics_ComparesCampaignAndOffer(t *testing.T) {
	var rows []MonthlyRow
	rows = append(rows, journeyRows("c1", 1, domain.Acquisition{Campaign: "promo_q1"}, "Monthly")...)
	rows = append(rows, journeyRows("c2", 8, domain.Acquisition{Discount: "WELCOME10"}, "Monthly")...)

	comparison := ChurnCharacteristics(rows, 2)

	byAttr := make(map[string]map[string]ChurnComparisonRow)
	for _, row := range comparison {
		if byAttr[row.Attribute] == nil {
			byAttr[row.Attribute] = make(map[string]ChurnComparisonRow)
		}
		byAttr[row.Attribute][row.Value] = row
	}

	require.Contains(t, byAttr, "campaign")
	assert.Equal(t, 100.0, byAttr["campaign"]["promo_q1"].ChurnerShare)
	assert.Equal(t, 0.0, byAttr["campaign"]["promo_q1"].RetainedShare)

	// The offer falls back to the discount code when no campaign is set.
	require.Contains(t, byAttr, "offer")
	assert.Equal(t, 100.0, byAttr["offer"]["promo_q1"].ChurnerShare)
	assert.Equal(t, 100.0, byAttr["offer"]["WELCOME10"].RetainedShare)
	assert.Equal(t, 0.0, byAttr["offer"]["WELCOME10"].ChurnerShare)
}

func TestDistribution_SumsToHundred(t *testing.T) {
	rows := []MonthlyRow{
		{Frequency: "Monthly"},
		{Frequency: "Monthly"},
		{Frequency: "Annual"},
	}

	shares := distribution(rows, "frequency")
	assert.InDelta(t, 66.67, shares["Monthly"], 0.01)
	assert.InDelta(t, 33.33, shares["Annual"], 0.01)
}
