package analytics

import (
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"github.com/shopspring/decimal"
)

// SyntheticProvider produces a labeled stand-in report when real data is
// unavailable or when a demo is explicitly requested. Its output is never
// mixed into a genuine analysis.
type SyntheticProvider interface {
	Label() string
	Generate(wallet string, window int, today time.Time) Report
}

// NewSyntheticProvider returns the provider registered under kind.
func NewSyntheticProvider(kind string, seed uint64) (SyntheticProvider, error) {
	switch kind {
	case "demo", "":
		return DemoProvider{}, nil
	case "empty":
		return EmptyProvider{}, nil
	case "random":
		return RandomProvider{Seed: seed}, nil
	default:
		return nil, fmt.Errorf("unknown synthetic provider %q: must be demo, empty or random", kind)
	}
}

// DemoProvider returns a fixed showcase dataset.
type DemoProvider struct{}

func (DemoProvider) Label() string { return "demo" }

func (p DemoProvider) Generate(wallet string, window int, today time.Time) Report {
	m := WalletMetrics{
		TotalPnL:           12435.67,
		TotalPnLPercentage: 24.5,
		WinRate:            68.2,
		TotalTrades:        247,
		WinningTrades:      168,
		AvgTrade:           50.34,
		BestTrade:          2840.12,
		WorstTrade:         -1250.45,
		CurrentValue:       63285.43,
		NativeBalance:      15.7,
		TokenAccounts:      23,
		NFTCount:           7,
	}
	// Fixed seed so the demo chart looks the same on every request.
	r := rand.New(rand.NewPCG(1, 2))
	return labeled(p.Label(), wallet, m, randomSeries(r, window, today), today)
}

// EmptyProvider returns an all-zero dataset, e.g. for a wallet with no activity.
type EmptyProvider struct{}

func (EmptyProvider) Label() string { return "empty" }

func (p EmptyProvider) Generate(wallet string, window int, today time.Time) Report {
	series := BuildDailySeries(nil, Converter{rate: oneRate}, window, today)
	return labeled(p.Label(), wallet, WalletMetrics{}, series, today)
}

// RandomProvider generates plausible random metrics. Each call builds its own
// generator from Seed, so equal seeds give equal reports.
type RandomProvider struct {
	Seed uint64
}

func (RandomProvider) Label() string { return "random" }

func (p RandomProvider) Generate(wallet string, window int, today time.Time) Report {
	r := rand.New(rand.NewPCG(p.Seed, p.Seed^0x9e3779b97f4a7c15))

	tokenAccounts := r.IntN(40)
	balance := round2(1 + r.Float64()*500)
	current := round2(balance * 100)
	trades := max(10, tokenAccounts*5+r.IntN(100))
	winRate := round2(45 + r.Float64()*35)
	pnl := round2(current * (0.1 + r.Float64()*0.4))
	avg := round2(current / float64(trades))

	m := WalletMetrics{
		TotalPnL:           pnl,
		TotalPnLPercentage: round2(pnl / (current - pnl) * 100),
		WinRate:            winRate,
		TotalTrades:        trades,
		WinningTrades:      int(math.Round(float64(trades) * winRate / 100)),
		AvgTrade:           avg,
		BestTrade:          round2(avg * (5 + r.Float64()*10)),
		WorstTrade:         round2(-avg * (2 + r.Float64()*5)),
		CurrentValue:       current,
		NativeBalance:      balance,
		TokenAccounts:      tokenAccounts,
		NFTCount:           tokenAccounts * 3 / 10,
	}
	return labeled(p.Label(), wallet, m, randomSeries(r, window, today), today)
}

var oneRate = decimal.NewFromInt(1)

func randomSeries(r *rand.Rand, window int, today time.Time) []DailyPoint {
	series := BuildDailySeries(nil, Converter{rate: oneRate}, window, today)
	for i := range series {
		series[i].NetFiat = round2((r.Float64() - 0.4) * 1000)
	}
	return series
}

func labeled(label, wallet string, m WalletMetrics, series []DailyPoint, today time.Time) Report {
	m.Synthetic = true
	m.Label = label
	return Report{
		Wallet:      wallet,
		Metrics:     m,
		Series:      series,
		GeneratedAt: today.UTC(),
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
