// Package ingest populates the on-disk historical dataset: backfilling
// 5-minute bars from the Alpaca market-data API and converting existing CSV
// exports into the Parquet layout read by histstore.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"

	"dejavu/internal/domain"
	"dejavu/internal/histstore"
	"dejavu/internal/util"
)

// barInterval matches the live-source granularity so stored and live windows
// stay length-comparable.
const barInterval = 5 // minutes

// Backfiller fetches historical intraday bars from Alpaca and writes them to
// the Parquet dataset directory.
type Backfiller struct {
	client *marketdata.Client
	dir    string
	feed   string
	rate   *util.RateLimiter
	log    *slog.Logger
}

// NewBackfiller creates a Backfiller writing to dir, rate-limited to
// ratePerMin API calls per minute.
func NewBackfiller(apiKey, apiSecret, dataURL, feed, dir string, ratePerMin int) *Backfiller {
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
	if ratePerMin <= 0 {
		ratePerMin = 200
	}

	return &Backfiller{
		client: marketdata.NewClient(opts),
		dir:    dir,
		feed:   feed,
		rate:   util.NewRateLimiter(ratePerMin),
		log:    slog.Default().With("component", "ingest"),
	}
}

// Run backfills one symbol's 5-minute bars over [start, end], one calendar
// month per API call. Unlike the comparison engine, fetches here are retried:
// transient API failures are expected on long backfills. The progress
// callback, when non-nil, is invoked once per fetched month.
func (b *Backfiller) Run(ctx context.Context, symbol string, start, end time.Time, progress func(monthStart time.Time, bars int)) error {
	symbol = strings.ToUpper(symbol)
	runStart := time.Now()

	var total int
	for cur := time.Date(start.Year(), start.Month(), 1, 0, 0, 0, 0, time.UTC); !cur.After(end); cur = cur.AddDate(0, 1, 0) {
		chunkStart := cur
		if chunkStart.Before(start) {
			chunkStart = start
		}
		chunkEnd := cur.AddDate(0, 1, 0)
		if chunkEnd.After(end) {
			chunkEnd = end
		}

		if err := b.rate.Wait(ctx); err != nil {
			return err
		}

		var bars []domain.Bar
		err := util.Retry(ctx, 3, time.Second, func() error {
			var ferr error
			bars, ferr = b.fetchBars(symbol, chunkStart, chunkEnd)
			return ferr
		})
		if err != nil {
			return fmt.Errorf("backfilling %s for %s: %w", symbol, cur.Format("2006-01"), err)
		}

		if err := histstore.WriteBars(b.dir, symbol, bars); err != nil {
			return err
		}
		total += len(bars)

		if progress != nil {
			progress(cur, len(bars))
		}
	}

	b.log.Info("backfill complete",
		"symbol", symbol,
		"bars", total,
		"elapsed", time.Since(runStart).Round(time.Second),
	)
	return nil
}

// fetchBars fetches one chunk of 5-minute bars.
func (b *Backfiller) fetchBars(symbol string, start, end time.Time) ([]domain.Bar, error) {
	alpacaBars, err := b.client.GetBars(symbol, marketdata.GetBarsRequest{
		TimeFrame: marketdata.NewTimeFrame(barInterval, marketdata.Min),
		Start:     start,
		End:       end,
		Feed:      marketdata.Feed(b.feed),
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
	return bars, nil
}

// ConvertCSV reads an intraday CSV export and writes it as
// <dir>/<SYMBOL>.parquet. When symbol is empty it is derived from the CSV
// file name. Returns the symbol used and the number of bars written.
func ConvertCSV(csvPath, dir, symbol string) (string, int, error) {
	if symbol == "" {
		base := filepath.Base(csvPath)
		symbol = strings.TrimSuffix(base, filepath.Ext(base))
	}
	symbol = strings.ToUpper(symbol)

	f, err := os.Open(csvPath)
	if err != nil {
		return "", 0, err
	}
	defer f.Close()

	bars, err := histstore.ParseCSV(f, symbol)
	if err != nil {
		return "", 0, fmt.Errorf("parsing %s: %w", csvPath, err)
	}
	if err := histstore.WriteBars(dir, symbol, bars); err != nil {
		return "", 0, err
	}
	return symbol, len(bars), nil
}
