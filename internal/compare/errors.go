package compare

import "fmt"

// The comparison pipeline fails only on deterministic conditions: bad input
// or missing data. None of these errors is worth retrying with unchanged
// inputs, so the engine never retries internally.

// InvalidParameterError reports a malformed request parameter. It is raised
// before any data access.
type InvalidParameterError struct {
	Param  string
	Reason string
}

func (e *InvalidParameterError) Error() string {
	return fmt.Sprintf("invalid parameter %s: %s", e.Param, e.Reason)
}

// LiveDataUnavailableError indicates the live source returned no bars for the
// query date.
type LiveDataUnavailableError struct {
	Symbol string
	Date   string
}

func (e *LiveDataUnavailableError) Error() string {
	return fmt.Sprintf("no live data available for %s on %s", e.Symbol, e.Date)
}

// EmptyWindowError indicates the requested time-of-day window selected no
// bars from the query day. Historical days with empty windows are skipped
// silently instead; only an empty query window fails the call.
type EmptyWindowError struct {
	Symbol string
	Start  TimeOfDay
	End    TimeOfDay
}

func (e *EmptyWindowError) Error() string {
	return fmt.Sprintf("window %s-%s selected no bars for %s", e.Start, e.End, e.Symbol)
}
