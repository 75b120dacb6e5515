package history

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.
)

// Compile-time interface check.
var _ Recorder = (*SQLiteRecorder)(nil)

// SQLiteRecorder implements Recorder backed by a SQLite database.
type SQLiteRecorder struct {
	db *sql.DB
	mu sync.Mutex
}

// NewSQLiteRecorder opens (or creates) the SQLite database at dbPath and runs
// migrations.
func NewSQLiteRecorder(dbPath string) (*SQLiteRecorder, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL mode so listing runs does not block recording.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	r := &SQLiteRecorder{db: db}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return r, nil
}

func (r *SQLiteRecorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS comparison_runs (
			id           TEXT PRIMARY KEY,
			symbol       TEXT NOT NULL,
			window_start TEXT NOT NULL,
			window_end   TEXT NOT NULL,
			threshold    REAL NOT NULL,
			result_limit INTEGER NOT NULL,
			query_date   TEXT NOT NULL,
			result_count INTEGER NOT NULL,
			top_score    REAL NOT NULL,
			created_at   INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_symbol ON comparison_runs(symbol)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_created ON comparison_runs(created_at)`,
	}

	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

// Close closes the underlying database connection.
func (r *SQLiteRecorder) Close() error {
	return r.db.Close()
}

// Record inserts one comparison run.
func (r *SQLiteRecorder) Record(ctx context.Context, e *Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx, `INSERT INTO comparison_runs
		(id, symbol, window_start, window_end, threshold, result_limit,
		 query_date, result_count, top_score, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID,
		strings.ToUpper(e.Symbol),
		e.WindowStart,
		e.WindowEnd,
		e.Threshold,
		e.Limit,
		e.QueryDate,
		e.ResultCount,
		e.TopScore,
		e.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("insert comparison run: %w", err)
	}
	return nil
}

// List returns the most recent runs, newest first.
func (r *SQLiteRecorder) List(ctx context.Context, symbol string, limit int) ([]Entry, error) {
	query := `SELECT id, symbol, window_start, window_end, threshold, result_limit,
		query_date, result_count, top_score, created_at
		FROM comparison_runs`
	args := []any{}
	if symbol != "" {
		query += ` WHERE symbol = ?`
		args = append(args, strings.ToUpper(symbol))
	}
	query += ` ORDER BY created_at DESC, id LIMIT ?`
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list comparison runs: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var createdAt int64
		if err := rows.Scan(&e.ID, &e.Symbol, &e.WindowStart, &e.WindowEnd,
			&e.Threshold, &e.Limit, &e.QueryDate, &e.ResultCount, &e.TopScore, &createdAt); err != nil {
			return nil, fmt.Errorf("scan comparison run: %w", err)
		}
		e.CreatedAt = time.Unix(createdAt, 0).UTC()
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
