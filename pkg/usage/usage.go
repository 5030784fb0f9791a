// Package usage journals billed provider calls to SQLite so spend can
// be audited independently of the in-memory budget ledger.
package usage

import (
	"context"
	"time"
)

// Entry is one billed call.
type Entry struct {
	Timestamp  time.Time `json:"timestamp"`
	Service    string    `json:"service"`
	Model      string    `json:"model"`
	Operation  string    `json:"operation"`
	TokensIn   int       `json:"tokens_in"`
	TokensOut  int       `json:"tokens_out"`
	Characters int       `json:"characters"`
	Cost       float64   `json:"cost"`
}

// Total aggregates spend for one service.
type Total struct {
	Service string  `json:"service"`
	Calls   int     `json:"calls"`
	Cost    float64 `json:"cost"`
}

// Recorder journals entries. Implementations must be safe for
// concurrent use.
type Recorder interface {
	// Record appends one entry.
	Record(ctx context.Context, e Entry) error

	// Totals aggregates per-service spend since the given time.
	Totals(ctx context.Context, since time.Time) ([]Total, error)

	// Recent returns the newest entries, newest first.
	Recent(ctx context.Context, limit int) ([]Entry, error)

	// Close releases the underlying store.
	Close() error
}

// Noop discards every entry. Used when journaling is disabled.
type Noop struct{}

// Record implements Recorder.
func (Noop) Record(ctx context.Context, e Entry) error { return nil }

// Totals implements Recorder.
func (Noop) Totals(ctx context.Context, since time.Time) ([]Total, error) { return nil, nil }

// Recent implements Recorder.
func (Noop) Recent(ctx context.Context, limit int) ([]Entry, error) { return nil, nil }

// Close implements Recorder.
func (Noop) Close() error { return nil }

// Verify Noop implements Recorder at compile time.
var _ Recorder = Noop{}
