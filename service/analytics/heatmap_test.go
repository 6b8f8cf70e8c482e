package analytics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestColor(t *testing.T) {
	tests := []struct {
		name          string
		value         float64
		wantKind      StyleKind
		wantIntensity float64
		wantOpacity   float64
		wantStrongFG  bool
	}{
		{"zero", 0, StyleNeutral, 0, 0.3, false},
		{"small profit", 80, StyleProfit, 0.1, 0.17, false},
		{"half profit", 400, StyleProfit, 0.5, 0.45, false},
		{"full profit", 800, StyleProfit, 1, 0.8, true},
		{"clamped profit", 5000, StyleProfit, 1, 0.8, true},
		{"half loss", -250, StyleLoss, 0.5, 0.45, false},
		{"strong loss", -400, StyleLoss, 0.8, 0.66, true},
		{"clamped loss", -10000, StyleLoss, 1, 0.8, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Color(tt.value)
			assert.Equal(t, tt.wantKind, got.Kind)
			assert.InDelta(t, tt.wantIntensity, got.Intensity, 1e-9)
			assert.InDelta(t, tt.wantOpacity, got.Opacity, 1e-9)
			assert.NotEmpty(t, got.Background)
			if tt.wantStrongFG {
				assert.NotEqual(t, "hsl(var(--foreground))", got.Foreground)
			} else if tt.wantKind != StyleNeutral {
				assert.Equal(t, "hsl(var(--foreground))", got.Foreground)
			}
		})
	}
}

func TestColor_BackgroundCarriesOpacity(t *testing.T) {
	assert.Equal(t, "hsl(142 76% 36% / 0.80)", Color(800).Background)
	assert.Equal(t, "hsl(0 84% 60% / 0.45)", Color(-250).Background)
}

func TestMonthGrid(t *testing.T) {
	series := []DailyPoint{
		{Date: "2024-01-01", NetFiat: 120},
		{Date: "2024-01-15", NetFiat: -40},
	}

	view := MonthGrid(series, 2024, time.January)

	// Jan 1 2024 was a Monday.
	assert.Equal(t, 1, view.LeadingBlanks)
	assert.Equal(t, "January", view.Name)
	assert.Equal(t, 2024, view.Year)
	assert.Equal(t, 1, view.Month)
	require.Len(t, view.Cells, 1+31)

	assert.True(t, view.Cells[0].Blank)
	assert.Nil(t, view.Cells[0].Style)

	first := view.Cells[1]
	assert.Equal(t, "2024-01-01", first.Date)
	assert.Equal(t, 1, first.Day)
	assert.Equal(t, 120.0, first.Value)
	require.NotNil(t, first.Style)
	assert.Equal(t, StyleProfit, first.Style.Kind)

	mid := view.Cells[15]
	assert.Equal(t, "2024-01-15", mid.Date)
	assert.Equal(t, StyleLoss, mid.Style.Kind)

	empty := view.Cells[2]
	assert.Equal(t, 0.0, empty.Value)
	assert.Equal(t, StyleNeutral, empty.Style.Kind)
}

func TestMonthGrid_LeapFebruary(t *testing.T) {
	view := MonthGrid(nil, 2024, time.February)

	// Feb 1 2024 was a Thursday.
	assert.Equal(t, 4, view.LeadingBlanks)
	assert.Len(t, view.Cells, 4+29)
	assert.Equal(t, "2024-02-29", view.Cells[len(view.Cells)-1].Date)
}

func TestMonthGrid_SundayStart(t *testing.T) {
	// Sep 1 2024 was a Sunday.
	view := MonthGrid(nil, 2024, time.September)
	assert.Equal(t, 0, view.LeadingBlanks)
	assert.False(t, view.Cells[0].Blank)
}

func TestTrailingMonths(t *testing.T) {
	today := time.Date(2024, 2, 10, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, []YearMonth{
		{2023, time.December},
		{2024, time.January},
		{2024, time.February},
	}, TrailingMonths(today, 3))

	assert.Nil(t, TrailingMonths(today, 0))
}

func TestTrailingMonths_EndOfMonth(t *testing.T) {
	// AddDate from the 31st would skip February; anchoring at the 1st must not.
	today := time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, []YearMonth{
		{2024, time.February},
		{2024, time.March},
	}, TrailingMonths(today, 2))
}

func TestCalendar(t *testing.T) {
	today := time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)
	series := BuildDailySeries(DailyDelta{"2024-02-14": 3}, Converter{rate: oneRate}, 90, today)

	views := Calendar(series, today, 3)

	require.Len(t, views, 3)
	assert.Equal(t, "January", views[0].Name)
	assert.Equal(t, "March", views[2].Name)

	feb := views[1]
	var found bool
	for _, c := range feb.Cells {
		if c.Date == "2024-02-14" {
			found = true
			assert.Equal(t, StyleProfit, c.Style.Kind)
		}
	}
	assert.True(t, found)
}

func TestSummarize(t *testing.T) {
	s := Summarize([]DailyPoint{{NetFiat: 10}, {NetFiat: -4}, {NetFiat: 0}, {NetFiat: 2}})

	assert.Equal(t, 8.0, s.TotalPnL)
	assert.Equal(t, 2, s.ProfitableDays)
	assert.Equal(t, 4, s.TotalDays)
	assert.Equal(t, 50.0, s.ProfitablePercent)

	assert.Equal(t, Summary{}, Summarize(nil))
}
