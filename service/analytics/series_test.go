package analytics

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func unitConverter(t *testing.T, rate int64) Converter {
	t.Helper()
	conv, err := NewConverter(decimal.NewFromInt(rate), 0)
	require.NoError(t, err)
	return conv
}

func TestBuildDailySeries(t *testing.T) {
	today := time.Date(2024, 1, 3, 15, 4, 5, 0, time.UTC)
	daily := DailyDelta{"2024-01-01": 40, "2024-01-03": 5, "2023-12-01": 999}

	series := BuildDailySeries(daily, unitConverter(t, 2), 3, today)

	assert.Equal(t, []DailyPoint{
		{Date: "2024-01-01", NetFiat: 80},
		{Date: "2024-01-02", NetFiat: 0},
		{Date: "2024-01-03", NetFiat: 10},
	}, series)
}

func TestBuildDailySeries_Length(t *testing.T) {
	today := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	conv := unitConverter(t, 1)

	for _, window := range []int{1, 7, 30, 90, 366} {
		series := BuildDailySeries(nil, conv, window, today)
		require.Len(t, series, window)
		assert.Equal(t, "2024-03-01", series[len(series)-1].Date)
	}

	assert.Empty(t, BuildDailySeries(nil, conv, 0, today))
	assert.Empty(t, BuildDailySeries(nil, conv, -3, today))
}

func TestBuildDailySeries_CrossesLeapDay(t *testing.T) {
	today := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	series := BuildDailySeries(nil, unitConverter(t, 1), 3, today)

	assert.Equal(t, "2024-02-28", series[0].Date)
	assert.Equal(t, "2024-02-29", series[1].Date)
	assert.Equal(t, "2024-03-01", series[2].Date)
}

func TestBuildDailySeries_NormalizesTodayToUTC(t *testing.T) {
	// 20:00 on Jan 3 at UTC-8 is Jan 4 in UTC.
	today := time.Date(2024, 1, 3, 20, 0, 0, 0, time.FixedZone("PST", -8*3600))

	series := BuildDailySeries(nil, unitConverter(t, 1), 1, today)

	require.Len(t, series, 1)
	assert.Equal(t, "2024-01-04", series[0].Date)
}
