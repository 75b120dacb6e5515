package compare

import (
	"context"
	"log/slog"
	"time"

	"dejavu/internal/domain"
	"dejavu/internal/live"
)

// HistoricalSource loads the full, cleaned intraday record for a symbol.
// Implemented by histstore.Store.
type HistoricalSource interface {
	Load(ctx context.Context, symbol string) ([]domain.Bar, error)
}

// Request holds the parameters of one comparison call.
type Request struct {
	Symbol      string
	WindowStart string // "HH:MM", inclusive
	WindowEnd   string // "HH:MM", inclusive
	Threshold   float64
	Limit       int
	QueryDate   time.Time
}

// Engine composes the comparison pipeline: load history, fetch the query
// day, window both, normalize, rank. It is synchronous and CPU-bound apart
// from the live fetch; cancellation is the caller's job around the whole
// call, and no step is retried because every failure is deterministic for a
// given dataset.
type Engine struct {
	hist HistoricalSource
	live live.Source
	log  *slog.Logger
}

// NewEngine creates an Engine wired with the given historical and live
// sources.
func NewEngine(hist HistoricalSource, src live.Source, log *slog.Logger) *Engine {
	if log == nil {
		log = slog.Default()
	}
	return &Engine{
		hist: hist,
		live: src,
		log:  log.With("component", "compare"),
	}
}

// FindSimilarPatterns ranks historical trading days by how closely their
// price action inside the requested time-of-day window resembles the query
// day's. An empty result list is a successful answer: nothing was similar
// enough.
//
// Error taxonomy: *InvalidParameterError before any data access,
// *histstore.NotFoundError (surfaced verbatim) when the symbol has no
// history, *LiveDataUnavailableError when the query day has no bars, and
// *EmptyWindowError when the window selects nothing from the query day.
func (e *Engine) FindSimilarPatterns(ctx context.Context, req Request) ([]domain.SimilarityResult, error) {
	start, end, err := validate(req)
	if err != nil {
		return nil, err
	}

	// 1. Full historical record (cached, returned as our own copy).
	historical, err := e.hist.Load(ctx, req.Symbol)
	if err != nil {
		return nil, err
	}

	// 2. Query day bars. The live call is the only I/O-bound step and runs
	// outside any cache lock.
	todayBars, err := e.live.FetchDay(ctx, req.Symbol, req.QueryDate)
	if err != nil {
		return nil, err
	}
	if len(todayBars) == 0 {
		return nil, &LiveDataUnavailableError{Symbol: req.Symbol, Date: domain.DateOf(req.QueryDate)}
	}

	// 3-4. Query window and pattern.
	queryWindow := ExtractWindow(todayBars, start, end)
	if len(queryWindow) == 0 {
		return nil, &EmptyWindowError{Symbol: req.Symbol, Start: start, End: end}
	}
	queryPattern := Normalize(queryWindow)
	if len(queryPattern) == 0 {
		return nil, &EmptyWindowError{Symbol: req.Symbol, Start: start, End: end}
	}

	// 5. Historical candidates: window per day, paired with the full session
	// from the unwindowed table. Days whose window is empty simply produce a
	// zero-length pattern and are skipped by the ranker.
	fullDays := make(map[string][]domain.Bar)
	for _, day := range GroupByDay(historical) {
		fullDays[domain.DateOf(day.Date)] = day.Bars
	}

	var candidates []Candidate
	for _, day := range GroupByDay(ExtractWindow(historical, start, end)) {
		candidates = append(candidates, Candidate{
			Date:        day.Date,
			Pattern:     Normalize(day.Bars),
			WindowBars:  day.Bars,
			FullDayBars: fullDays[domain.DateOf(day.Date)],
		})
	}

	// 6. Rank and truncate.
	results := Rank(queryPattern, req.QueryDate, candidates, req.Threshold, req.Limit)

	e.log.Debug("comparison complete",
		"symbol", req.Symbol,
		"window", start.String()+"-"+end.String(),
		"candidates", len(candidates),
		"results", len(results),
	)
	return results, nil
}

// validate checks request preconditions and parses the window bounds. It
// runs before any data access so malformed requests can never trigger a
// load.
func validate(req Request) (start, end TimeOfDay, err error) {
	start, perr := ParseTimeOfDay(req.WindowStart)
	if perr != nil {
		return start, end, &InvalidParameterError{Param: "windowStart", Reason: perr.Error()}
	}
	end, perr = ParseTimeOfDay(req.WindowEnd)
	if perr != nil {
		return start, end, &InvalidParameterError{Param: "windowEnd", Reason: perr.Error()}
	}
	if end.Minutes() <= start.Minutes() {
		return start, end, &InvalidParameterError{
			Param:  "windowEnd",
			Reason: "window end " + end.String() + " must be after window start " + start.String(),
		}
	}
	if req.Threshold < 0 || req.Threshold > 1 {
		return start, end, &InvalidParameterError{Param: "threshold", Reason: "must be within [0, 1]"}
	}
	if req.Limit < 1 {
		return start, end, &InvalidParameterError{Param: "limit", Reason: "must be at least 1"}
	}
	return start, end, nil
}
