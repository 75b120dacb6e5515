// Package histstore loads and caches the full per-symbol historical intraday
// record. Loaded tables are sorted ascending by timestamp with duplicate
// timestamps dropped, cached in memory under the upper-cased symbol, and
// handed out as independent copies so callers can never corrupt the cache.
package histstore

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"dejavu/internal/domain"
)

// NotFoundError indicates that no backing file exists for a symbol.
type NotFoundError struct {
	Symbol string
	Dir    string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no historical data found for symbol %s in %s", e.Symbol, e.Dir)
}

// Store is the historical dataset store. The zero value is not usable; create
// one with NewStore.
type Store struct {
	dir string
	log *slog.Logger

	mu      sync.Mutex // guards entries map only, never held during file I/O
	entries map[string]*entry
}

// entry is the cache slot for one symbol. Its own mutex serializes loading
// and reading for that symbol without blocking other symbols.
type entry struct {
	mu     sync.Mutex
	loaded bool
	bars   []domain.Bar
}

// NewStore creates a Store reading per-symbol files from dir. Expected layout
// is <dir>/<SYMBOL>.parquet with <dir>/<SYMBOL>.csv as a fallback.
func NewStore(dir string, log *slog.Logger) *Store {
	if log == nil {
		log = slog.Default()
	}
	return &Store{
		dir:     dir,
		log:     log.With("component", "histstore"),
		entries: make(map[string]*entry),
	}
}

// Load returns the full historical bar table for the symbol, loading and
// caching it on first use. Symbols are case-insensitive. The returned slice
// is an independent copy; mutating it does not affect the cache. Returns
// *NotFoundError when no backing file exists.
func (s *Store) Load(ctx context.Context, symbol string) ([]domain.Bar, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	key := strings.ToUpper(strings.TrimSpace(symbol))

	s.mu.Lock()
	e, ok := s.entries[key]
	if !ok {
		e = &entry{}
		s.entries[key] = e
	}
	s.mu.Unlock()

	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.loaded {
		bars, err := s.loadFromDisk(key)
		if err != nil {
			// Drop the placeholder so a later call can retry once the
			// backing file appears.
			s.mu.Lock()
			if s.entries[key] == e {
				delete(s.entries, key)
			}
			s.mu.Unlock()
			return nil, err
		}
		e.bars = bars
		e.loaded = true
		s.log.Debug("loaded historical dataset", "symbol", key, "bars", len(bars))
	}

	return domain.CloneBars(e.bars), nil
}

// ClearCache drops every cached table. Copies already handed out by Load are
// unaffected.
func (s *Store) ClearCache() {
	s.mu.Lock()
	s.entries = make(map[string]*entry)
	s.mu.Unlock()
}

// loadFromDisk resolves the backing file for a symbol, parses it, and
// returns a clean table: ascending timestamps, duplicates dropped keeping the
// first occurrence.
func (s *Store) loadFromDisk(symbol string) ([]domain.Bar, error) {
	var (
		bars []domain.Bar
		err  error
	)

	switch {
	case fileExists(s.parquetPath(symbol)):
		bars, err = readParquetBars(s.parquetPath(symbol), symbol)
	case fileExists(s.csvPath(symbol)):
		bars, err = readCSVBars(s.csvPath(symbol), symbol)
	default:
		return nil, &NotFoundError{Symbol: symbol, Dir: s.dir}
	}
	if err != nil {
		return nil, fmt.Errorf("loading historical data for %s: %w", symbol, err)
	}

	sort.SliceStable(bars, func(i, j int) bool {
		return bars[i].Timestamp.Before(bars[j].Timestamp)
	})
	return dedupeBars(bars), nil
}

// dedupeBars removes bars with duplicate timestamps from a sorted table,
// keeping the first occurrence.
func dedupeBars(bars []domain.Bar) []domain.Bar {
	out := bars[:0]
	for i, b := range bars {
		if i > 0 && b.Timestamp.Equal(bars[i-1].Timestamp) {
			continue
		}
		out = append(out, b)
	}
	return out
}

func (s *Store) parquetPath(symbol string) string {
	return filepath.Join(s.dir, symbol+".parquet")
}

func (s *Store) csvPath(symbol string) string {
	return filepath.Join(s.dir, symbol+".csv")
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// ListSymbols returns the distinct upper-cased symbols that have a backing
// file in dir, sorted alphabetically.
func ListSymbols(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	seen := make(map[string]bool)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := filepath.Ext(e.Name())
		if ext != ".parquet" && ext != ".csv" {
			continue
		}
		seen[strings.ToUpper(strings.TrimSuffix(e.Name(), ext))] = true
	}

	symbols := make([]string, 0, len(seen))
	for sym := range seen {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)
	return symbols, nil
}
