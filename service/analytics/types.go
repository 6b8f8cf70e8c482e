package analytics

import "time"

// BalanceChange is a signed native-unit change to one account within a transaction.
type BalanceChange struct {
	Account string `json:"account"`
	Delta   int64  `json:"delta"`
}

// RawTransaction is a transaction as reported by a history source.
// Timestamp is seconds since the Unix epoch.
type RawTransaction struct {
	Signature string          `json:"signature"`
	Timestamp int64           `json:"timestamp"`
	Changes   []BalanceChange `json:"changes"`
}

// DailyDelta maps a UTC calendar day (YYYY-MM-DD) to the wallet's net native change on that day.
type DailyDelta map[string]int64

// Snapshot is the current native balance and holdings of a wallet.
type Snapshot struct {
	NativeBalance uint64 `json:"native_balance"` // smallest unit (lamports)
	TokenAccounts int    `json:"token_accounts"`
	NFTCount      int    `json:"nft_count"`
}

// TradeStats is the result of classifying and aggregating per-event deltas.
// All values are in native units.
type TradeStats struct {
	TradeCount  int   `json:"trade_count"`
	WinCount    int   `json:"win_count"`
	BestNative  int64 `json:"best_native"`
	WorstNative int64 `json:"worst_native"`
	NetNative   int64 `json:"net_native"`
	// NoiseCount is the number of deltas at or below the dust threshold.
	NoiseCount int `json:"noise_count"`
}

// WinRate returns the percentage of trades with a positive delta, or 0 with no trades.
func (s TradeStats) WinRate() float64 {
	if s.TradeCount == 0 {
		return 0
	}
	return float64(s.WinCount) / float64(s.TradeCount) * 100
}

// WalletMetrics is the summary record for one analysis.
type WalletMetrics struct {
	TotalPnL           float64 `json:"total_pnl"`
	TotalPnLPercentage float64 `json:"total_pnl_percentage"`
	WinRate            float64 `json:"win_rate"`
	TotalTrades        int     `json:"total_trades"`
	WinningTrades      int     `json:"winning_trades"`
	AvgTrade           float64 `json:"avg_trade"`
	BestTrade          float64 `json:"best_trade"`
	WorstTrade         float64 `json:"worst_trade"`
	CurrentValue       float64 `json:"current_value"`
	NativeBalance      float64 `json:"native_balance"`
	TokenAccounts      int     `json:"token_accounts"`
	NFTCount           int     `json:"nft_count"`

	// Synthetic is set when the metrics come from a SyntheticProvider
	// rather than from the wallet's own data. Label names the provider.
	Synthetic bool   `json:"synthetic"`
	Label     string `json:"label,omitempty"`
}

// DailyPoint is one day of the daily P&L series in fiat.
type DailyPoint struct {
	Date    string  `json:"date"`
	NetFiat float64 `json:"net_fiat"`
}

// Report is the complete output of one analysis.
type Report struct {
	Wallet      string        `json:"wallet"`
	Metrics     WalletMetrics `json:"metrics"`
	Series      []DailyPoint  `json:"series"`
	Rate        string        `json:"rate,omitempty"`
	GeneratedAt time.Time     `json:"generated_at"`
}
