package histstore

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"dejavu/internal/domain"
)

// timestampLayouts are tried in order when parsing the date column. Exported
// historical files vary between plain and RFC3339-style stamps.
var timestampLayouts = []string{
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
}

// readCSVBars reads one symbol's CSV file into domain bars.
func readCSVBars(path, symbol string) ([]domain.Bar, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return ParseCSV(f, symbol)
}

// ParseCSV parses intraday bars from CSV data. The header row must contain
// date, open, high, low, and close columns (case-insensitive); a volume
// column is picked up when present and every other column is ignored.
// Rows need not be sorted or deduplicated — the Store cleans the table after
// parsing.
func ParseCSV(r io.Reader, symbol string) ([]domain.Bar, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("reading CSV header: %w", err)
	}

	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, required := range []string{"date", "open", "high", "low", "close"} {
		if _, ok := cols[required]; !ok {
			return nil, fmt.Errorf("CSV is missing required column %q", required)
		}
	}
	volIdx, hasVol := cols["volume"]

	var bars []domain.Bar
	for line := 2; ; line++ {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading CSV line %d: %w", line, err)
		}

		ts, err := parseTimestamp(record[cols["date"]])
		if err != nil {
			return nil, fmt.Errorf("CSV line %d: %w", line, err)
		}

		bar := domain.Bar{Symbol: symbol, Timestamp: ts}
		for _, c := range []struct {
			name string
			dst  *float64
		}{
			{"open", &bar.Open},
			{"high", &bar.High},
			{"low", &bar.Low},
			{"close", &bar.Close},
		} {
			v, err := strconv.ParseFloat(strings.TrimSpace(record[cols[c.name]]), 64)
			if err != nil {
				return nil, fmt.Errorf("CSV line %d: parsing %s: %w", line, c.name, err)
			}
			*c.dst = v
		}

		if hasVol && volIdx < len(record) {
			// Volume is optional context; a malformed value is left at zero.
			if v, err := strconv.ParseFloat(strings.TrimSpace(record[volIdx]), 64); err == nil {
				bar.Volume = int64(v)
			}
		}

		bars = append(bars, bar)
	}
	return bars, nil
}

func parseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable timestamp %q", s)
}
