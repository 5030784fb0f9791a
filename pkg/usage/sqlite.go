package usage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS usage_log (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	ts         TEXT NOT NULL,
	service    TEXT NOT NULL,
	model      TEXT NOT NULL,
	operation  TEXT NOT NULL,
	tokens_in  INTEGER NOT NULL DEFAULT 0,
	tokens_out INTEGER NOT NULL DEFAULT 0,
	characters INTEGER NOT NULL DEFAULT 0,
	cost       REAL NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_usage_ts ON usage_log (ts);
CREATE INDEX IF NOT EXISTS idx_usage_service ON usage_log (service);
`

// SQLite journals entries to a local database file. The pure-Go driver
// keeps the binary free of cgo.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens (and migrates) the journal at path. Use ":memory:"
// for an ephemeral journal.
func OpenSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("usage: open %s: %w", path, err)
	}
	// The driver is file-backed; a single writer avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("usage: migrate: %w", err)
	}
	return &SQLite{db: db}, nil
}

// Record implements Recorder.
func (s *SQLite) Record(ctx context.Context, e Entry) error {
	ts := e.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO usage_log (ts, service, model, operation, tokens_in, tokens_out, characters, cost)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		ts.UTC().Format(time.RFC3339Nano),
		e.Service, e.Model, e.Operation,
		e.TokensIn, e.TokensOut, e.Characters, e.Cost)
	if err != nil {
		return fmt.Errorf("usage: record: %w", err)
	}
	return nil
}

// Totals implements Recorder.
func (s *SQLite) Totals(ctx context.Context, since time.Time) ([]Total, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT service, COUNT(*), COALESCE(SUM(cost), 0)
		 FROM usage_log WHERE ts >= ?
		 GROUP BY service ORDER BY service`,
		since.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return nil, fmt.Errorf("usage: totals: %w", err)
	}
	defer rows.Close()

	var totals []Total
	for rows.Next() {
		var t Total
		if err := rows.Scan(&t.Service, &t.Calls, &t.Cost); err != nil {
			return nil, fmt.Errorf("usage: totals scan: %w", err)
		}
		totals = append(totals, t)
	}
	return totals, rows.Err()
}

// Recent implements Recorder.
func (s *SQLite) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT ts, service, model, operation, tokens_in, tokens_out, characters, cost
		 FROM usage_log ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("usage: recent: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var ts string
		if err := rows.Scan(&ts, &e.Service, &e.Model, &e.Operation,
			&e.TokensIn, &e.TokensOut, &e.Characters, &e.Cost); err != nil {
			return nil, fmt.Errorf("usage: recent scan: %w", err)
		}
		e.Timestamp, _ = time.Parse(time.RFC3339Nano, ts)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Close implements Recorder.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// Verify SQLite implements Recorder at compile time.
var _ Recorder = (*SQLite)(nil)
