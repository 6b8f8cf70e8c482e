package analytics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTimeframe(t *testing.T) {
	tests := []struct {
		in      string
		want    Timeframe
		wantErr bool
	}{
		{"", Timeframe30D, false},
		{"7D", Timeframe7D, false},
		{"7d", Timeframe7D, false},
		{" 90d ", Timeframe90D, false},
		{"all", TimeframeAll, false},
		{"1Y", "", true},
		{"30", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseTimeframe(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSelectWindow(t *testing.T) {
	series := BuildDailySeries(nil, Converter{rate: oneRate}, DefaultSeriesWindow, time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC))

	assert.Len(t, SelectWindow(series, Timeframe7D), 7)
	assert.Len(t, SelectWindow(series, Timeframe30D), 30)
	assert.Len(t, SelectWindow(series, Timeframe90D), 90)
	assert.Len(t, SelectWindow(series, TimeframeAll), 90)

	week := SelectWindow(series, Timeframe7D)
	assert.Equal(t, "2024-06-24", week[0].Date)
	assert.Equal(t, "2024-06-30", week[6].Date)
}

func TestSelectLast(t *testing.T) {
	series := []DailyPoint{{Date: "a"}, {Date: "b"}, {Date: "c"}}

	assert.Equal(t, series, SelectLast(series, 5))
	assert.Equal(t, series, SelectLast(series, 3))
	assert.Equal(t, []DailyPoint{{Date: "c"}}, SelectLast(series, 1))
	assert.Empty(t, SelectLast(series, 0))
}

func TestValueDomain(t *testing.T) {
	tests := []struct {
		name   string
		points []DailyPoint
		want   Domain
	}{
		{
			name:   "empty",
			points: nil,
			want:   Domain{Min: -1, Max: 1},
		},
		{
			name:   "flat zero",
			points: []DailyPoint{{NetFiat: 0}, {NetFiat: 0}},
			want:   Domain{Min: -1, Max: 1},
		},
		{
			name:   "flat nonzero",
			points: []DailyPoint{{NetFiat: 5}},
			want:   Domain{Min: 4, Max: 6},
		},
		{
			name:   "wide range",
			points: []DailyPoint{{NetFiat: -100}, {NetFiat: 300}, {NetFiat: 0}},
			want:   Domain{Min: -140, Max: 340},
		},
		{
			name:   "narrow range uses floor",
			points: []DailyPoint{{NetFiat: 1}, {NetFiat: 3}},
			want:   Domain{Min: 0, Max: 4},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ValueDomain(tt.points)
			assert.InDelta(t, tt.want.Min, got.Min, 1e-9)
			assert.InDelta(t, tt.want.Max, got.Max, 1e-9)
		})
	}
}
