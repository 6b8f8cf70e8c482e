package analytics

import (
	"fmt"
	"math"
	"strings"
)

// Timeframe is a chart window tag.
type Timeframe string

const (
	Timeframe7D  Timeframe = "7D"
	Timeframe30D Timeframe = "30D"
	Timeframe90D Timeframe = "90D"
	TimeframeAll Timeframe = "ALL"

	// DefaultTimeframe is what the chart shows when no timeframe is requested.
	DefaultTimeframe = Timeframe30D
)

// Timeframes lists the supported tags in display order.
var Timeframes = []Timeframe{Timeframe7D, Timeframe30D, Timeframe90D, TimeframeAll}

// ParseTimeframe parses a tag case-insensitively. An empty string yields DefaultTimeframe.
func ParseTimeframe(s string) (Timeframe, error) {
	if s == "" {
		return DefaultTimeframe, nil
	}
	tf := Timeframe(strings.ToUpper(strings.TrimSpace(s)))
	for _, known := range Timeframes {
		if tf == known {
			return tf, nil
		}
	}
	return "", fmt.Errorf("unknown timeframe %q: must be one of 7D, 30D, 90D, ALL", s)
}

// Days returns the trailing window length, or 0 for the full history.
func (tf Timeframe) Days() int {
	switch tf {
	case Timeframe7D:
		return 7
	case Timeframe30D:
		return 30
	case Timeframe90D:
		return 90
	default:
		return 0
	}
}

// SelectWindow returns the trailing points covered by tf.
func SelectWindow(series []DailyPoint, tf Timeframe) []DailyPoint {
	days := tf.Days()
	if days == 0 {
		return series
	}
	return SelectLast(series, days)
}

// SelectLast returns the last k points, or the whole series when k >= len(series).
// The result shares the backing array with series.
func SelectLast(series []DailyPoint, k int) []DailyPoint {
	if k >= len(series) {
		return series
	}
	if k <= 0 {
		return series[len(series):]
	}
	return series[len(series)-k:]
}

// Domain is a padded [Min, Max] value range for axis scaling.
type Domain struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// ValueDomain pads the series range by 10% on each side, with a floor of 1
// so that a flat series still has a non-zero height. An empty series is treated as flat at 0.
func ValueDomain(points []DailyPoint) Domain {
	if len(points) == 0 {
		return Domain{Min: -1, Max: 1}
	}

	lo, hi := points[0].NetFiat, points[0].NetFiat
	for _, p := range points[1:] {
		lo = math.Min(lo, p.NetFiat)
		hi = math.Max(hi, p.NetFiat)
	}

	pad := math.Max(0.1*(hi-lo), 1)
	return Domain{Min: lo - pad, Max: hi + pad}
}
