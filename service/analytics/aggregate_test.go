package analytics

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAggregate(t *testing.T) {
	tests := []struct {
		name      string
		deltas    []int64
		threshold int64
		want      TradeStats
	}{
		{
			name:      "no deltas",
			deltas:    nil,
			threshold: 1,
			want:      TradeStats{},
		},
		{
			name:      "all dust",
			deltas:    []int64{1, -1, 0},
			threshold: 1,
			want:      TradeStats{NoiseCount: 3},
		},
		{
			name:      "mixed trades",
			deltas:    []int64{50, -10, 5},
			threshold: 1,
			want: TradeStats{
				TradeCount:  3,
				WinCount:    2,
				BestNative:  50,
				WorstNative: -10,
				NetNative:   45,
			},
		},
		{
			name:      "dust excluded from counters",
			deltas:    []int64{-5000, 20_000_000, -30_000_000, 10_000_000},
			threshold: DefaultDustThreshold,
			want: TradeStats{
				TradeCount:  2,
				WinCount:    1,
				BestNative:  20_000_000,
				WorstNative: -30_000_000,
				NetNative:   -10_000_000,
				NoiseCount:  2,
			},
		},
		{
			name:      "only losses",
			deltas:    []int64{-100, -300},
			threshold: 10,
			want: TradeStats{
				TradeCount:  2,
				BestNative:  -100,
				WorstNative: -300,
				NetNative:   -400,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Aggregate(tt.deltas, tt.threshold))
		})
	}
}

func TestTradeStats_WinRate(t *testing.T) {
	assert.Equal(t, 0.0, TradeStats{}.WinRate())
	assert.InDelta(t, 66.666, TradeStats{TradeCount: 3, WinCount: 2}.WinRate(), 0.001)
	assert.Equal(t, 100.0, TradeStats{TradeCount: 4, WinCount: 4}.WinRate())
}
