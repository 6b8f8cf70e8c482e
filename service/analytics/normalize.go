package analytics

import "time"

// DayLayout is the calendar day key format used throughout the pipeline.
const DayLayout = "2006-01-02"

// DayKey returns the UTC calendar day of a Unix timestamp.
// Day boundaries are always UTC so that results do not depend on the host time zone.
func DayKey(ts int64) string {
	return time.Unix(ts, 0).UTC().Format(DayLayout)
}

// Normalized holds the outputs of Normalize.
type Normalized struct {
	Daily DailyDelta
	// Deltas are the wallet's non-zero per-transaction deltas in input order.
	// They feed the trade classifier, which works per event rather than per day.
	Deltas []int64
}

// Normalize buckets the wallet's balance changes into UTC days.
// Transactions that do not touch the wallet, or whose net effect on it is zero, are skipped.
func Normalize(txs []RawTransaction, wallet string) Normalized {
	out := Normalized{
		Daily:  make(DailyDelta),
		Deltas: make([]int64, 0, len(txs)),
	}

	for _, tx := range txs {
		delta, ok := walletDelta(tx, wallet)
		if !ok || delta == 0 {
			continue
		}
		out.Daily[DayKey(tx.Timestamp)] += delta
		out.Deltas = append(out.Deltas, delta)
	}

	return out
}

// walletDelta sums the entries for wallet in tx. Sources normally report one entry per account.
func walletDelta(tx RawTransaction, wallet string) (int64, bool) {
	var (
		sum   int64
		found bool
	)
	for _, c := range tx.Changes {
		if c.Account != wallet {
			continue
		}
		sum += c.Delta
		found = true
	}
	return sum, found
}
