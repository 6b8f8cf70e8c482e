package analytics

import (
	"fmt"
	"math"
	"math/big"

	"github.com/shopspring/decimal"
)

// SolDecimals is the number of decimal places between lamports and SOL.
const SolDecimals int32 = 9

// Converter scales native-unit quantities to fiat using a single rate.
// The zero value is not usable; construct with NewConverter.
type Converter struct {
	rate     decimal.Decimal
	decimals int32
}

// NewConverter returns a Converter for rate fiat per whole native token.
// decimals is the number of smallest units per whole token as a power of ten.
// A rate that is not strictly positive is rejected with ErrPriceUnavailable.
func NewConverter(rate decimal.Decimal, decimals int32) (Converter, error) {
	if !rate.IsPositive() {
		return Converter{}, PriceError("native", fmt.Errorf("rate %s is not positive", rate))
	}
	return Converter{rate: rate, decimals: decimals}, nil
}

// Rate returns the fiat rate.
func (c Converter) Rate() decimal.Decimal {
	return c.rate
}

// Fiat converts a signed native-unit amount.
func (c Converter) Fiat(native int64) decimal.Decimal {
	return decimal.New(native, -c.decimals).Mul(c.rate)
}

// FiatUnsigned converts a balance that may exceed the int64 range.
func (c Converter) FiatUnsigned(native uint64) decimal.Decimal {
	return c.Native(native).Mul(c.rate)
}

// Native converts a smallest-unit balance to whole tokens.
func (c Converter) Native(native uint64) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(native), -c.decimals)
}

// PercentReturn computes net / (current - net) * 100.
// A zero denominator yields 0 rather than an infinite or NaN value.
func PercentReturn(net, current decimal.Decimal) float64 {
	pct, err := percentReturn(net, current)
	if err != nil {
		return 0
	}
	return pct
}

func percentReturn(net, current decimal.Decimal) (float64, error) {
	base := current.Sub(net)
	if base.IsZero() {
		return 0, ErrComputationDegenerate
	}
	return toFloat(net.Div(base).Mul(decimal.NewFromInt(100)))
}

// BuildMetrics turns a snapshot and trade stats into fiat-denominated metrics.
func BuildMetrics(snap Snapshot, stats TradeStats, conv Converter) WalletMetrics {
	net := conv.Fiat(stats.NetNative)
	current := conv.FiatUnsigned(snap.NativeBalance)

	m := WalletMetrics{
		TotalPnL:           floatOrZero(net),
		TotalPnLPercentage: PercentReturn(net, current),
		WinRate:            stats.WinRate(),
		TotalTrades:        stats.TradeCount,
		WinningTrades:      stats.WinCount,
		CurrentValue:       floatOrZero(current),
		NativeBalance:      floatOrZero(conv.Native(snap.NativeBalance)),
		TokenAccounts:      snap.TokenAccounts,
		NFTCount:           snap.NFTCount,
	}

	if stats.TradeCount > 0 {
		m.AvgTrade = floatOrZero(net.Div(decimal.NewFromInt(int64(stats.TradeCount))))
		m.BestTrade = floatOrZero(conv.Fiat(stats.BestNative))
		m.WorstTrade = floatOrZero(conv.Fiat(stats.WorstNative))
	}

	return m
}

func toFloat(d decimal.Decimal) (float64, error) {
	f, _ := d.Float64()
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, ErrComputationDegenerate
	}
	return f, nil
}

func floatOrZero(d decimal.Decimal) float64 {
	f, err := toFloat(d)
	if err != nil {
		return 0
	}
	return f
}
