package analytics

import "time"

// DefaultSeriesWindow is the length in days of the canonical series.
const DefaultSeriesWindow = 90

// BuildDailySeries returns exactly window points, one per UTC day from
// today-(window-1) through today, oldest first. Days with no delta are 0.
func BuildDailySeries(daily DailyDelta, conv Converter, window int, today time.Time) []DailyPoint {
	if window <= 0 {
		return []DailyPoint{}
	}

	end := startOfDay(today)
	start := end.AddDate(0, 0, -(window - 1))

	series := make([]DailyPoint, 0, window)
	for day := start; !day.After(end); day = day.AddDate(0, 0, 1) {
		key := day.Format(DayLayout)
		series = append(series, DailyPoint{
			Date:    key,
			NetFiat: floatOrZero(conv.Fiat(daily[key])),
		})
	}

	return series
}

// startOfDay truncates t to midnight UTC.
func startOfDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
