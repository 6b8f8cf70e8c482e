package analytics

import (
	"fmt"
	"math"
	"time"
)

// Fixed color scale bounds in fiat. They are constants so one outlier day
// cannot wash out the rest of the calendar.
const (
	ProfitScaleMax = 800.0
	LossScaleMax   = -500.0
)

// StyleKind classifies a calendar cell.
type StyleKind string

const (
	StyleProfit  StyleKind = "profit"
	StyleLoss    StyleKind = "loss"
	StyleNeutral StyleKind = "neutral"
)

// ColorStyle is the presentation hint for one calendar cell.
type ColorStyle struct {
	Kind       StyleKind `json:"kind"`
	Intensity  float64   `json:"intensity"`
	Opacity    float64   `json:"opacity"`
	Background string    `json:"background"`
	Foreground string    `json:"foreground"`
}

// Color maps a daily value onto the fixed profit/loss scale.
func Color(v float64) ColorStyle {
	switch {
	case v > 0:
		t := math.Min(v/ProfitScaleMax, 1)
		return shaded(StyleProfit, t, "hsl(142 76%% 36%% / %.2f)", "hsl(var(--profit-foreground))")
	case v < 0:
		t := math.Min(math.Abs(v)/math.Abs(LossScaleMax), 1)
		return shaded(StyleLoss, t, "hsl(0 84%% 60%% / %.2f)", "hsl(var(--loss-foreground))")
	default:
		return ColorStyle{
			Kind:       StyleNeutral,
			Opacity:    0.3,
			Background: "hsl(var(--muted) / 0.3)",
			Foreground: "hsl(var(--muted-foreground))",
		}
	}
}

func shaded(kind StyleKind, t float64, background, strong string) ColorStyle {
	opacity := 0.1 + t*0.7
	fg := "hsl(var(--foreground))"
	if t > 0.5 {
		fg = strong
	}
	return ColorStyle{
		Kind:       kind,
		Intensity:  t,
		Opacity:    opacity,
		Background: fmt.Sprintf(background, opacity),
		Foreground: fg,
	}
}

// Cell is one slot of a month grid. Leading blank cells pad the first week.
type Cell struct {
	Blank bool        `json:"blank,omitempty"`
	Date  string      `json:"date,omitempty"`
	Day   int         `json:"day,omitempty"`
	Value float64     `json:"value"`
	Style *ColorStyle `json:"style,omitempty"`
}

// MonthView is a single month of the calendar heatmap.
type MonthView struct {
	Year  int    `json:"year"`
	Month int    `json:"month"`
	Name  string `json:"name"`
	// LeadingBlanks is the weekday of the 1st, Sunday = 0.
	LeadingBlanks int    `json:"leading_blanks"`
	Cells         []Cell `json:"cells"`
}

// MonthGrid lays out the given month with Sunday-first weeks.
// Dates missing from series get a value of 0.
func MonthGrid(series []DailyPoint, year int, month time.Month) MonthView {
	values := make(map[string]float64, len(series))
	for _, p := range series {
		values[p.Date] = p.NetFiat
	}

	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	daysInMonth := first.AddDate(0, 1, -1).Day()
	blanks := int(first.Weekday())

	cells := make([]Cell, 0, blanks+daysInMonth)
	for range blanks {
		cells = append(cells, Cell{Blank: true})
	}
	for d := 1; d <= daysInMonth; d++ {
		key := time.Date(year, month, d, 0, 0, 0, 0, time.UTC).Format(DayLayout)
		v := values[key]
		style := Color(v)
		cells = append(cells, Cell{
			Date:  key,
			Day:   d,
			Value: v,
			Style: &style,
		})
	}

	return MonthView{
		Year:          first.Year(),
		Month:         int(first.Month()),
		Name:          first.Month().String(),
		LeadingBlanks: blanks,
		Cells:         cells,
	}
}

// YearMonth identifies a calendar month.
type YearMonth struct {
	Year  int
	Month time.Month
}

// TrailingMonths returns the n months ending with the month of today, oldest first.
func TrailingMonths(today time.Time, n int) []YearMonth {
	if n <= 0 {
		return nil
	}
	y, m, _ := today.UTC().Date()
	anchor := time.Date(y, m, 1, 0, 0, 0, 0, time.UTC)

	months := make([]YearMonth, 0, n)
	for i := n - 1; i >= 0; i-- {
		t := anchor.AddDate(0, -i, 0)
		months = append(months, YearMonth{Year: t.Year(), Month: t.Month()})
	}
	return months
}

// Calendar renders the n trailing months ending at today.
func Calendar(series []DailyPoint, today time.Time, n int) []MonthView {
	months := TrailingMonths(today, n)
	views := make([]MonthView, 0, len(months))
	for _, ym := range months {
		views = append(views, MonthGrid(series, ym.Year, ym.Month))
	}
	return views
}

// Summary aggregates a series for the calendar header.
type Summary struct {
	TotalPnL          float64 `json:"total_pnl"`
	ProfitableDays    int     `json:"profitable_days"`
	TotalDays         int     `json:"total_days"`
	ProfitablePercent float64 `json:"profitable_percent"`
}

// Summarize totals the series and counts days with a positive value.
func Summarize(series []DailyPoint) Summary {
	s := Summary{TotalDays: len(series)}
	for _, p := range series {
		s.TotalPnL += p.NetFiat
		if p.NetFiat > 0 {
			s.ProfitableDays++
		}
	}
	if s.TotalDays > 0 {
		s.ProfitablePercent = float64(s.ProfitableDays) / float64(s.TotalDays) * 100
	}
	return s
}
