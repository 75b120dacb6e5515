package live

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"

	"dejavu/internal/domain"
)

// Compile-time interface check.
var _ Source = (*AlpacaSource)(nil)

// barInterval is the intraday granularity fetched for the query day. It must
// match the granularity of the stored historical record, or window patterns
// will never be length-comparable.
const barInterval = 5 // minutes

// AlpacaSource fetches intraday bars from the Alpaca market-data API.
type AlpacaSource struct {
	client *marketdata.Client
	feed   string
	log    *slog.Logger
}

// NewAlpacaSource creates an AlpacaSource with the given credentials.
// dataURL and feed may be empty to use the API defaults.
func NewAlpacaSource(apiKey, apiSecret, dataURL, feed string) *AlpacaSource {
	opts := marketdata.ClientOpts{
		APIKey:    apiKey,
		APISecret: apiSecret,
	}
	if dataURL != "" {
		opts.BaseURL = dataURL
	}
	if feed == "" {
		feed = "sip"
	}

	return &AlpacaSource{
		client: marketdata.NewClient(opts),
		feed:   feed,
		log:    slog.Default().With("source", "alpaca"),
	}
}

// FetchDay returns the symbol's 5-minute bars for the calendar date of day,
// in day's own time zone.
func (s *AlpacaSource) FetchDay(ctx context.Context, symbol string, day time.Time) ([]domain.Bar, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	symbol = strings.ToUpper(symbol)
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	end := start.AddDate(0, 0, 1)

	alpacaBars, err := s.client.GetBars(symbol, marketdata.GetBarsRequest{
		TimeFrame: marketdata.NewTimeFrame(barInterval, marketdata.Min),
		Start:     start,
		End:       end,
		Feed:      marketdata.Feed(s.feed),
	})
	if err != nil {
		return nil, fmt.Errorf("GetBars %s: %w", symbol, err)
	}

	bars := make([]domain.Bar, 0, len(alpacaBars))
	for _, ab := range alpacaBars {
		bars = append(bars, domain.Bar{
			Symbol:    symbol,
			Timestamp: ab.Timestamp,
			Open:      ab.Open,
			High:      ab.High,
			Low:       ab.Low,
			Close:     ab.Close,
			Volume:    int64(ab.Volume),
		})
	}

	s.log.Debug("fetched live bars", "symbol", symbol, "date", domain.DateOf(day), "bars", len(bars))
	return bars, nil
}
