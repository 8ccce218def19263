package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.
)

// Compile-time interface check.
var _ RunStore = (*SQLiteStore)(nil)

// migrations are applied in order on open. Each statement is idempotent.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS runs (
		id             INTEGER PRIMARY KEY AUTOINCREMENT,
		started_at     INTEGER NOT NULL,
		provider       TEXT    NOT NULL,
		series_id      TEXT    NOT NULL,
		benchmark      TEXT    NOT NULL,
		benchmark_cagr REAL    NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS results (
		run_id        INTEGER NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		symbol        TEXT    NOT NULL,
		weeks         INTEGER NOT NULL,
		cagr          REAL    NOT NULL,
		sharpe        REAL    NOT NULL,
		alpha         REAL    NOT NULL,
		buy_hold_cagr REAL    NOT NULL,
		max_drawdown  REAL    NOT NULL,
		PRIMARY KEY (run_id, symbol)
	)`,
	`CREATE TABLE IF NOT EXISTS skips (
		run_id INTEGER NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		symbol TEXT    NOT NULL,
		kind   TEXT    NOT NULL,
		reason TEXT    NOT NULL
	)`,
}

// SQLiteStore implements RunStore backed by a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath, applies the
// schema, and returns a ready-to-use SQLiteStore.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	// One writer at a time; SQLite serializes anyway.
	db.SetMaxOpenConns(1)

	for i, stmt := range migrations {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("migration %d: %w", i, err)
		}
	}
	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// SaveRun inserts the run and all of its rows in a single transaction.
func (s *SQLiteStore) SaveRun(ctx context.Context, run *RunRecord) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback() //nolint:errcheck

	res, err := tx.ExecContext(ctx,
		`INSERT INTO runs (started_at, provider, series_id, benchmark, benchmark_cagr) VALUES (?, ?, ?, ?, ?)`,
		run.StartedAt.UnixMilli(), run.Provider, run.SeriesID, run.Benchmark, run.BenchmarkCAGR)
	if err != nil {
		return 0, fmt.Errorf("inserting run: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}

	for _, r := range run.Results {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO results (run_id, symbol, weeks, cagr, sharpe, alpha, buy_hold_cagr, max_drawdown) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			id, r.Symbol, r.Weeks, r.CAGR, r.Sharpe, r.Alpha, r.BuyHoldCAGR, r.MaxDrawdown)
		if err != nil {
			return 0, fmt.Errorf("inserting result %s: %w", r.Symbol, err)
		}
	}
	for _, sk := range run.Skips {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO skips (run_id, symbol, kind, reason) VALUES (?, ?, ?, ?)`,
			id, sk.Symbol, sk.Kind, sk.Reason)
		if err != nil {
			return 0, fmt.Errorf("inserting skip %s: %w", sk.Symbol, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	run.ID = id
	return id, nil
}

// ListRuns returns the most recent runs, newest first, with their results
// and skips.
func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, started_at, provider, series_id, benchmark, benchmark_cagr FROM runs ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	var runs []RunRecord
	for rows.Next() {
		var r RunRecord
		var startedMs int64
		if err := rows.Scan(&r.ID, &startedMs, &r.Provider, &r.SeriesID, &r.Benchmark, &r.BenchmarkCAGR); err != nil {
			rows.Close()
			return nil, err
		}
		r.StartedAt = time.UnixMilli(startedMs).UTC()
		runs = append(runs, r)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range runs {
		if runs[i].Results, err = s.listResults(ctx, runs[i].ID); err != nil {
			return nil, err
		}
		if runs[i].Skips, err = s.listSkips(ctx, runs[i].ID); err != nil {
			return nil, err
		}
	}
	return runs, nil
}

func (s *SQLiteStore) listResults(ctx context.Context, runID int64) ([]ResultRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT symbol, weeks, cagr, sharpe, alpha, buy_hold_cagr, max_drawdown FROM results WHERE run_id = ? ORDER BY symbol`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ResultRecord
	for rows.Next() {
		var r ResultRecord
		if err := rows.Scan(&r.Symbol, &r.Weeks, &r.CAGR, &r.Sharpe, &r.Alpha, &r.BuyHoldCAGR, &r.MaxDrawdown); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) listSkips(ctx context.Context, runID int64) ([]SkipRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT symbol, kind, reason FROM skips WHERE run_id = ? ORDER BY rowid`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SkipRecord
	for rows.Next() {
		var sk SkipRecord
		if err := rows.Scan(&sk.Symbol, &sk.Kind, &sk.Reason); err != nil {
			return nil, err
		}
		out = append(out, sk)
	}
	return out, rows.Err()
}
