// Package live supplies the current trading day's intraday bars. The
// comparison engine depends only on the Source contract; transports live
// behind it.
package live

import (
	"context"
	"time"

	"dejavu/internal/domain"
)

// Source returns fine-grained intraday bars for one symbol on one calendar
// date. An empty result means no data is available for that day; the caller
// decides whether that is an error.
type Source interface {
	// FetchDay returns the ordered intraday bars covering the given date.
	FetchDay(ctx context.Context, symbol string, day time.Time) ([]domain.Bar, error)
}
