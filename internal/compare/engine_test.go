package compare

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"dejavu/internal/domain"
	"dejavu/internal/histstore"
)

// fakeLive returns canned bars and records whether it was called.
type fakeLive struct {
	bars   []domain.Bar
	err    error
	called bool
}

func (f *fakeLive) FetchDay(_ context.Context, _ string, _ time.Time) ([]domain.Bar, error) {
	f.called = true
	return f.bars, f.err
}

// windowBarsFor builds the three-bar 09:15-09:45 session segment used across
// these tests, at the given price scale and date.
func windowBarsFor(date string, scale float64) []domain.Bar {
	specs := []struct {
		clock      string
		o, h, l, c float64
	}{
		{"09:15", 100, 101, 99, 100.5},
		{"09:30", 100.5, 102, 100, 101.5},
		{"09:45", 101.5, 103, 101, 102.5},
	}

	var bars []domain.Bar
	for _, s := range specs {
		ts, _ := time.Parse("2006-01-02 15:04", date+" "+s.clock)
		bars = append(bars, domain.Bar{
			Timestamp: ts,
			Open:      s.o * scale,
			High:      s.h * scale,
			Low:       s.l * scale,
			Close:     s.c * scale,
		})
	}
	return bars
}

// writeHistory writes a CSV backing file with two trading days whose
// 09:15-09:45 windows are identical bar-for-bar, plus a trailing 10:00 bar
// that differs between the days.
func writeHistory(t *testing.T, dir string) {
	t.Helper()

	content := "date,open,high,low,close\n"
	for i, date := range []string{"2024-01-02", "2024-01-03"} {
		for _, b := range windowBarsFor(date, 1) {
			content += fmt.Sprintf("%s,%v,%v,%v,%v\n", b.Timestamp.Format("2006-01-02 15:04:05"), b.Open, b.High, b.Low, b.Close)
		}
		tail := 104.0 + float64(i) // differs per day, outside the window
		content += fmt.Sprintf("%s 10:00:00,%v,%v,%v,%v\n", date, tail, tail+1, tail-1, tail)
	}

	if err := os.WriteFile(filepath.Join(dir, "XYZ.csv"), []byte(content), 0o644); err != nil {
		t.Fatalf("writing history fixture: %v", err)
	}
}

func newTestEngine(t *testing.T, src *fakeLive) *Engine {
	t.Helper()
	dir := t.TempDir()
	writeHistory(t, dir)
	return NewEngine(histstore.NewStore(dir, nil), src, nil)
}

func baseRequest() Request {
	return Request{
		Symbol:      "XYZ",
		WindowStart: "09:15",
		WindowEnd:   "09:45",
		Threshold:   0.90,
		Limit:       5,
		QueryDate:   time.Date(2024, 6, 14, 0, 0, 0, 0, time.UTC),
	}
}

func TestFindSimilarPatternsIdenticalDays(t *testing.T) {
	// Live bars match both historical days bar-for-bar in shape, at twice
	// the price level — normalization must make the level irrelevant.
	src := &fakeLive{bars: windowBarsFor("2024-06-14", 2)}
	eng := newTestEngine(t, src)

	results, err := eng.FindSimilarPatterns(context.Background(), baseRequest())
	if err != nil {
		t.Fatalf("FindSimilarPatterns: %v", err)
	}

	if len(results) != 2 {
		t.Fatalf("got %d results, want both identical days", len(results))
	}
	for _, r := range results {
		if math.Abs(r.SimilarityScore-1.0) > 1e-12 {
			t.Errorf("day %s scored %v, want 1.0", r.Date, r.SimilarityScore)
		}
		if len(r.WindowBars) != 3 {
			t.Errorf("day %s window has %d bars, want 3", r.Date, len(r.WindowBars))
		}
		if len(r.FullDayBars) != 4 {
			t.Errorf("day %s full session has %d bars, want 4 (context beyond window)", r.Date, len(r.FullDayBars))
		}
	}
	if results[0].Date != "2024-01-02" || results[1].Date != "2024-01-03" {
		t.Errorf("tied results out of stable date order: %s, %s", results[0].Date, results[1].Date)
	}
}

func TestFindSimilarPatternsScoresRespectThresholdAndLimit(t *testing.T) {
	src := &fakeLive{bars: windowBarsFor("2024-06-14", 1)}
	eng := newTestEngine(t, src)

	req := baseRequest()
	req.Limit = 1
	results, err := eng.FindSimilarPatterns(context.Background(), req)
	if err != nil {
		t.Fatalf("FindSimilarPatterns: %v", err)
	}
	if len(results) > 1 {
		t.Errorf("got %d results, want at most limit 1", len(results))
	}
	for _, r := range results {
		if r.SimilarityScore < req.Threshold {
			t.Errorf("score %v below threshold %v", r.SimilarityScore, req.Threshold)
		}
	}
}

func TestFindSimilarPatternsExcludesQueryDate(t *testing.T) {
	// Query day is one of the stored historical days.
	src := &fakeLive{bars: windowBarsFor("2024-01-02", 1)}
	eng := newTestEngine(t, src)

	req := baseRequest()
	req.QueryDate = time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	results, err := eng.FindSimilarPatterns(context.Background(), req)
	if err != nil {
		t.Fatalf("FindSimilarPatterns: %v", err)
	}

	if len(results) != 1 || results[0].Date != "2024-01-03" {
		t.Errorf("results = %+v, want only the other day", results)
	}
}

func TestFindSimilarPatternsInvalidThresholdBeforeDataAccess(t *testing.T) {
	src := &fakeLive{}
	// Store over an empty directory: any data access for any symbol would
	// end in a not-found error, which must not surface here.
	eng := NewEngine(histstore.NewStore(t.TempDir(), nil), src, nil)

	req := baseRequest()
	req.Symbol = "NOSUCH"
	req.Threshold = 1.1

	_, err := eng.FindSimilarPatterns(context.Background(), req)
	var ipe *InvalidParameterError
	if !errors.As(err, &ipe) {
		t.Fatalf("error = %v (%T), want *InvalidParameterError", err, err)
	}
	if ipe.Param != "threshold" {
		t.Errorf("Param = %q, want threshold", ipe.Param)
	}
	var nfe *histstore.NotFoundError
	if errors.As(err, &nfe) {
		t.Error("validation must reject the call before any file access")
	}
	if src.called {
		t.Error("live source must not be called for an invalid request")
	}
}

func TestFindSimilarPatternsInvalidWindow(t *testing.T) {
	eng := newTestEngine(t, &fakeLive{})

	req := baseRequest()
	req.WindowStart, req.WindowEnd = "10:00", "09:00"

	_, err := eng.FindSimilarPatterns(context.Background(), req)
	var ipe *InvalidParameterError
	if !errors.As(err, &ipe) {
		t.Fatalf("error = %v (%T), want *InvalidParameterError", err, err)
	}
}

func TestFindSimilarPatternsInvalidLimit(t *testing.T) {
	eng := newTestEngine(t, &fakeLive{})

	req := baseRequest()
	req.Limit = 0

	_, err := eng.FindSimilarPatterns(context.Background(), req)
	var ipe *InvalidParameterError
	if !errors.As(err, &ipe) {
		t.Fatalf("error = %v (%T), want *InvalidParameterError", err, err)
	}
	if ipe.Param != "limit" {
		t.Errorf("Param = %q, want limit", ipe.Param)
	}
}

func TestFindSimilarPatternsUnknownSymbol(t *testing.T) {
	eng := newTestEngine(t, &fakeLive{bars: windowBarsFor("2024-06-14", 1)})

	req := baseRequest()
	req.Symbol = "UNKNOWN"

	_, err := eng.FindSimilarPatterns(context.Background(), req)
	var nfe *histstore.NotFoundError
	if !errors.As(err, &nfe) {
		t.Fatalf("error = %v (%T), want *histstore.NotFoundError", err, err)
	}
}

func TestFindSimilarPatternsLiveUnavailable(t *testing.T) {
	eng := newTestEngine(t, &fakeLive{bars: nil})

	_, err := eng.FindSimilarPatterns(context.Background(), baseRequest())
	var lde *LiveDataUnavailableError
	if !errors.As(err, &lde) {
		t.Fatalf("error = %v (%T), want *LiveDataUnavailableError", err, err)
	}
	if lde.Symbol != "XYZ" || lde.Date != "2024-06-14" {
		t.Errorf("error detail = %+v", lde)
	}
}

func TestFindSimilarPatternsEmptyQueryWindow(t *testing.T) {
	// Live data exists but entirely outside the requested window.
	src := &fakeLive{bars: []domain.Bar{
		{Timestamp: time.Date(2024, 6, 14, 14, 0, 0, 0, time.UTC), Open: 1, High: 1, Low: 1, Close: 1},
	}}
	eng := newTestEngine(t, src)

	_, err := eng.FindSimilarPatterns(context.Background(), baseRequest())
	var ewe *EmptyWindowError
	if !errors.As(err, &ewe) {
		t.Fatalf("error = %v (%T), want *EmptyWindowError", err, err)
	}
}

func TestFindSimilarPatternsNoMatchesIsSuccess(t *testing.T) {
	// A live shape orthogonal-ish to history with threshold 1.0 filters
	// everything out; that is an empty success, not an error.
	bars := windowBarsFor("2024-06-14", 1)
	bars[1].Close = bars[1].Low // distort the shape
	src := &fakeLive{bars: bars}
	eng := newTestEngine(t, src)

	req := baseRequest()
	req.Threshold = 1.0
	results, err := eng.FindSimilarPatterns(context.Background(), req)
	if err != nil {
		t.Fatalf("FindSimilarPatterns: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("got %d results, want none at threshold 1.0", len(results))
	}
}

func TestFindSimilarPatternsIdempotent(t *testing.T) {
	src := &fakeLive{bars: windowBarsFor("2024-06-14", 1)}
	eng := newTestEngine(t, src)

	first, err := eng.FindSimilarPatterns(context.Background(), baseRequest())
	if err != nil {
		t.Fatalf("first call: %v", err)
	}
	second, err := eng.FindSimilarPatterns(context.Background(), baseRequest())
	if err != nil {
		t.Fatalf("second call: %v", err)
	}

	if !reflect.DeepEqual(first, second) {
		t.Error("identical calls over an unchanged dataset returned different results")
	}
}
