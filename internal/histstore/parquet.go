package histstore

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/parquet-go/parquet-go"

	"dejavu/internal/domain"
)

// BarRecord is the Parquet schema for intraday bar data.
type BarRecord struct {
	Timestamp int64   `parquet:"timestamp,timestamp(millisecond)"` // Unix ms
	Open      float64 `parquet:"open"`
	High      float64 `parquet:"high"`
	Low       float64 `parquet:"low"`
	Close     float64 `parquet:"close"`
	Volume    int64   `parquet:"volume"`
}

// readParquetBars reads one symbol's Parquet file into domain bars.
func readParquetBars(path, symbol string) ([]domain.Bar, error) {
	records, err := parquet.ReadFile[BarRecord](path)
	if err != nil {
		return nil, fmt.Errorf("reading parquet %s: %w", path, err)
	}

	bars := make([]domain.Bar, 0, len(records))
	for _, r := range records {
		bars = append(bars, domain.Bar{
			Symbol:    symbol,
			Timestamp: time.UnixMilli(r.Timestamp).UTC(),
			Open:      r.Open,
			High:      r.High,
			Low:       r.Low,
			Close:     r.Close,
			Volume:    r.Volume,
		})
	}
	return bars, nil
}

// WriteBars merges bars into <dir>/<SYMBOL>.parquet, deduplicating by
// timestamp with new records winning over existing ones. Used by the ingest
// path; the Store itself only reads.
func WriteBars(dir, symbol string, bars []domain.Bar) error {
	if len(bars) == 0 {
		return nil
	}

	symbol = strings.ToUpper(symbol)
	path := filepath.Join(dir, symbol+".parquet")

	existing, _ := parquet.ReadFile[BarRecord](path)

	seen := make(map[int64]BarRecord, len(existing)+len(bars))
	for _, r := range existing {
		seen[r.Timestamp] = r
	}
	for _, b := range bars {
		ts := b.Timestamp.UnixMilli()
		seen[ts] = BarRecord{
			Timestamp: ts,
			Open:      b.Open,
			High:      b.High,
			Low:       b.Low,
			Close:     b.Close,
			Volume:    b.Volume,
		}
	}

	merged := make([]BarRecord, 0, len(seen))
	for _, r := range seen {
		merged = append(merged, r)
	}
	sort.Slice(merged, func(i, j int) bool {
		return merged[i].Timestamp < merged[j].Timestamp
	})

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	if err := parquet.WriteFile(path, merged); err != nil {
		return fmt.Errorf("writing parquet %s: %w", path, err)
	}
	return nil
}
