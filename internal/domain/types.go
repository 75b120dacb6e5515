// Package domain defines the core data types shared across the comparison
// pipeline: OHLC bars, trading days, normalized patterns, and ranked results.
package domain

import "time"

// Bar is a single OHLC price observation for one intraday interval.
// Volume is carried through from the data source but never enters the
// comparison algorithm.
type Bar struct {
	Symbol    string    `json:"-"`
	Timestamp time.Time `json:"date"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    int64     `json:"volume,omitempty"`
}

// TradingDay is one calendar date together with its ordered intraday bars.
// It is derived by grouping a bar table by date, never stored on its own.
type TradingDay struct {
	Date time.Time
	Bars []Bar
}

// Pattern is the normalized, flattened vector representing one day's price
// shape inside a time-of-day window. Two patterns are comparable only when
// they have equal length.
type Pattern []float64

// SimilarityResult is one ranked historical match. WindowBars holds the bars
// of the matched window, FullDayBars the complete session for context. Both
// are independent copies; mutating them cannot affect any cached dataset.
type SimilarityResult struct {
	Date            string  `json:"date"` // ISO-8601 calendar date, YYYY-MM-DD
	SimilarityScore float64 `json:"similarity_score"`
	WindowBars      []Bar   `json:"window_pattern_data"`
	FullDayBars     []Bar   `json:"full_day_data"`
}

// DateOf returns t's calendar date as a YYYY-MM-DD string in t's location.
// It is the grouping and comparison key used throughout the pipeline.
func DateOf(t time.Time) string {
	return t.Format("2006-01-02")
}

// CloneBars returns an independent copy of the given bar slice.
func CloneBars(bars []Bar) []Bar {
	if bars == nil {
		return nil
	}
	out := make([]Bar, len(bars))
	copy(out, bars)
	return out
}
