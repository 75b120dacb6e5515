package live

import (
	"context"
	"time"

	"dejavu/internal/domain"
)

// Compile-time interface check.
var _ Source = (*ReplaySource)(nil)

// HistoricalLoader is the slice of the historical store that ReplaySource
// needs: the full intraday record for a symbol.
type HistoricalLoader interface {
	Load(ctx context.Context, symbol string) ([]domain.Bar, error)
}

// ReplaySource serves "live" bars out of the historical record, so a past
// date can play the role of the query day without any network access. Useful
// for offline runs and tests.
type ReplaySource struct {
	hist HistoricalLoader
}

// NewReplaySource creates a ReplaySource reading from the given loader.
func NewReplaySource(hist HistoricalLoader) *ReplaySource {
	return &ReplaySource{hist: hist}
}

// FetchDay returns the stored bars whose timestamp falls on day's calendar
// date. A date with no stored bars yields an empty slice, mirroring a live
// feed with no session data.
func (s *ReplaySource) FetchDay(ctx context.Context, symbol string, day time.Time) ([]domain.Bar, error) {
	bars, err := s.hist.Load(ctx, symbol)
	if err != nil {
		return nil, err
	}

	date := domain.DateOf(day)
	var out []domain.Bar
	for _, b := range bars {
		if domain.DateOf(b.Timestamp) == date {
			out = append(out, b)
		}
	}
	return out, nil
}
