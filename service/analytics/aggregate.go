package analytics

// DefaultDustThreshold is 0.01 SOL in lamports. Deltas at or below this
// magnitude are fees, rent and dust rather than trades.
const DefaultDustThreshold int64 = 10_000_000

// Aggregate classifies each delta as a trade when |delta| > threshold and
// accumulates count, wins, extremes and the net sum over trades. Everything
// else is counted as noise.
//
// With no qualifying deltas every trade field is zero.
func Aggregate(deltas []int64, threshold int64) TradeStats {
	var stats TradeStats

	for _, d := range deltas {
		if abs64(d) <= threshold {
			stats.NoiseCount++
			continue
		}

		if stats.TradeCount == 0 {
			stats.BestNative = d
			stats.WorstNative = d
		} else {
			stats.BestNative = max(stats.BestNative, d)
			stats.WorstNative = min(stats.WorstNative, d)
		}

		stats.TradeCount++
		if d > 0 {
			stats.WinCount++
		}
		stats.NetNative += d
	}

	return stats
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
