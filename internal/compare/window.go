// Package compare implements the intraday pattern comparison engine: window
// extraction, shape normalization, cosine-similarity ranking, and the
// composed FindSimilarPatterns operation.
package compare

import (
	"fmt"
	"time"

	"dejavu/internal/domain"
)

// ---------------------------------------------------------------------------
// Time-of-day windows
// ---------------------------------------------------------------------------

// TimeOfDay is an intraday clock time with minute precision.
type TimeOfDay struct {
	Hour   int
	Minute int
}

// ParseTimeOfDay parses an "HH:MM" string.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	var h, m int
	if _, err := fmt.Sscanf(s, "%d:%d", &h, &m); err != nil {
		return TimeOfDay{}, fmt.Errorf("expected HH:MM, got %q", s)
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return TimeOfDay{}, fmt.Errorf("time of day %q out of range", s)
	}
	return TimeOfDay{Hour: h, Minute: m}, nil
}

// Minutes returns the minutes elapsed since midnight.
func (t TimeOfDay) Minutes() int {
	return t.Hour*60 + t.Minute
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// minuteOfDay maps a timestamp to its intraday minute in its own location.
func minuteOfDay(ts time.Time) int {
	return ts.Hour()*60 + ts.Minute()
}

// ExtractWindow returns the subsequence of bars whose intraday clock time
// satisfies start <= t <= end (inclusive bounds), preserving order. An empty
// result is not an error at this layer.
func ExtractWindow(bars []domain.Bar, start, end TimeOfDay) []domain.Bar {
	lo, hi := start.Minutes(), end.Minutes()

	var out []domain.Bar
	for _, b := range bars {
		if m := minuteOfDay(b.Timestamp); m >= lo && m <= hi {
			out = append(out, b)
		}
	}
	return out
}

// GroupByDay partitions bars into trading days keyed by the calendar date of
// each bar's timestamp. Days appear in first-seen order and each day's bars
// keep their original order.
func GroupByDay(bars []domain.Bar) []domain.TradingDay {
	index := make(map[string]int)
	var days []domain.TradingDay

	for _, b := range bars {
		key := domain.DateOf(b.Timestamp)
		i, ok := index[key]
		if !ok {
			i = len(days)
			index[key] = i
			ts := b.Timestamp
			days = append(days, domain.TradingDay{
				Date: time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, ts.Location()),
			})
		}
		days[i].Bars = append(days[i].Bars, b)
	}
	return days
}
