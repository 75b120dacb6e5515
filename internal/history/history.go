// Package history records comparison runs for later inspection. It sits
// outside the comparison engine: the engine never touches a database, and
// callers record results after a successful call.
package history

import (
	"context"
	"time"
)

// Entry is one recorded comparison run.
type Entry struct {
	ID          string
	Symbol      string
	WindowStart string
	WindowEnd   string
	Threshold   float64
	Limit       int
	QueryDate   string // YYYY-MM-DD
	ResultCount int
	TopScore    float64
	CreatedAt   time.Time
}

// Recorder persists and lists comparison runs.
type Recorder interface {
	// Record stores one run. Missing ID and CreatedAt fields are filled in.
	Record(ctx context.Context, e *Entry) error

	// List returns the most recent runs, newest first, up to limit. An empty
	// symbol matches every run.
	List(ctx context.Context, symbol string, limit int) ([]Entry, error)
}
