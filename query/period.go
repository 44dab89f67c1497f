package query

import (
	"fmt"
	"time"

	"github.com/tomtom215/mallardmetrics/mmerr"
)

// Range is a normalized, inclusive UTC date range plus the granularity
// timeseries queries should bucket by.
type Range struct {
	Start       time.Time
	End         time.Time
	Granularity string // "hour" or "day"
}

// NormalizePeriod implements spec §4.8's period-normalization rules.
// Explicit start/end dates override period when both are supplied.
func NormalizePeriod(period, startDate, endDate string) (Range, error) {
	now := time.Now().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	if startDate != "" && endDate != "" {
		start, err := time.Parse("2006-01-02", startDate)
		if err != nil {
			return Range{}, mmerr.New(mmerr.ClientInvalid, fmt.Sprintf("invalid start_date: %q", startDate))
		}
		end, err := time.Parse("2006-01-02", endDate)
		if err != nil {
			return Range{}, mmerr.New(mmerr.ClientInvalid, fmt.Sprintf("invalid end_date: %q", endDate))
		}
		return Range{Start: start, End: end.Add(24*time.Hour - time.Nanosecond), Granularity: granularityFor(start, end)}, nil
	}

	switch period {
	case "", "day", "today":
		return Range{Start: today, End: today.Add(24*time.Hour - time.Nanosecond), Granularity: "hour"}, nil
	case "7d":
		start := today.AddDate(0, 0, -6)
		return Range{Start: start, End: today.Add(24*time.Hour - time.Nanosecond), Granularity: "day"}, nil
	case "30d":
		start := today.AddDate(0, 0, -29)
		return Range{Start: start, End: today.Add(24*time.Hour - time.Nanosecond), Granularity: "day"}, nil
	case "90d":
		start := today.AddDate(0, 0, -89)
		return Range{Start: start, End: today.Add(24*time.Hour - time.Nanosecond), Granularity: "day"}, nil
	default:
		return Range{}, mmerr.New(mmerr.ClientInvalid, fmt.Sprintf("invalid period: %q", period))
	}
}

func granularityFor(start, end time.Time) string {
	if end.Sub(start) <= 24*time.Hour {
		return "hour"
	}
	return "day"
}
