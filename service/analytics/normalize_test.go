package analytics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testWallet = "9WzDXwBbmkg8ZTbNMqUxvQRAyrZzDsGYdLVL9zYtAWWM"

func ts(t *testing.T, s string) int64 {
	t.Helper()
	parsed, err := time.Parse(time.RFC3339, s)
	require.NoError(t, err)
	return parsed.Unix()
}

func walletTx(sig string, at int64, delta int64) RawTransaction {
	return RawTransaction{
		Signature: sig,
		Timestamp: at,
		Changes: []BalanceChange{
			{Account: "Counterparty1111111111111111111111111111111", Delta: -delta},
			{Account: testWallet, Delta: delta},
		},
	}
}

func TestDayKey_UsesUTC(t *testing.T) {
	// 23:30 at UTC-5 on Jan 1 is already Jan 2 in UTC.
	local := time.Date(2024, 1, 1, 23, 30, 0, 0, time.FixedZone("EST", -5*3600))
	assert.Equal(t, "2024-01-02", DayKey(local.Unix()))
	assert.Equal(t, "1970-01-01", DayKey(0))
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name       string
		txs        []RawTransaction
		wantDaily  DailyDelta
		wantDeltas []int64
	}{
		{
			name:       "no transactions",
			txs:        nil,
			wantDaily:  DailyDelta{},
			wantDeltas: []int64{},
		},
		{
			name: "same day deltas are summed",
			txs: []RawTransaction{
				walletTx("a", ts(t, "2024-01-01T01:00:00Z"), 50),
				walletTx("b", ts(t, "2024-01-01T22:00:00Z"), -10),
				walletTx("c", ts(t, "2024-01-03T12:00:00Z"), 5),
			},
			wantDaily:  DailyDelta{"2024-01-01": 40, "2024-01-03": 5},
			wantDeltas: []int64{50, -10, 5},
		},
		{
			name: "transactions without the wallet are skipped",
			txs: []RawTransaction{
				{
					Signature: "other",
					Timestamp: ts(t, "2024-01-01T00:00:00Z"),
					Changes:   []BalanceChange{{Account: "Someone", Delta: 100}},
				},
				walletTx("mine", ts(t, "2024-01-01T00:00:00Z"), 7),
			},
			wantDaily:  DailyDelta{"2024-01-01": 7},
			wantDeltas: []int64{7},
		},
		{
			name: "zero deltas are skipped",
			txs: []RawTransaction{
				walletTx("zero", ts(t, "2024-02-01T00:00:00Z"), 0),
			},
			wantDaily:  DailyDelta{},
			wantDeltas: []int64{},
		},
		{
			name: "offsetting same-day deltas leave a zero bucket",
			txs: []RawTransaction{
				walletTx("in", ts(t, "2024-02-01T00:00:00Z"), 30),
				walletTx("out", ts(t, "2024-02-01T05:00:00Z"), -30),
			},
			wantDaily:  DailyDelta{"2024-02-01": 0},
			wantDeltas: []int64{30, -30},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Normalize(tt.txs, testWallet)
			assert.Equal(t, tt.wantDaily, got.Daily)
			assert.Equal(t, tt.wantDeltas, got.Deltas)
		})
	}
}

func TestNormalize_MultipleEntriesForWallet(t *testing.T) {
	tx := RawTransaction{
		Signature: "multi",
		Timestamp: ts(t, "2024-03-10T10:00:00Z"),
		Changes: []BalanceChange{
			{Account: testWallet, Delta: 100},
			{Account: testWallet, Delta: -25},
		},
	}

	got := Normalize([]RawTransaction{tx}, testWallet)
	assert.Equal(t, DailyDelta{"2024-03-10": 75}, got.Daily)
	assert.Equal(t, []int64{75}, got.Deltas)
}
