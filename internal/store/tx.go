package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned by Tx lookups when no row matches.
var ErrNotFound = errors.New("not found")

// Tx is a ledger transaction. It is only valid inside the Update or View
// callback that produced it.
type Tx struct {
	tx  *sql.Tx
	ctx context.Context
}

func (t *Tx) exec(query string, args ...any) (sql.Result, error) {
	return t.tx.ExecContext(t.ctx, query, args...)
}

func (t *Tx) query(query string, args ...any) (*sql.Rows, error) {
	return t.tx.QueryContext(t.ctx, query, args...)
}

func (t *Tx) queryRow(query string, args ...any) *sql.Row {
	return t.tx.QueryRowContext(t.ctx, query, args...)
}

// NextCounter increments the named counter and returns its new value. The
// first call for a name returns 1.
func (t *Tx) NextCounter(name string) (uint64, error) {
	_, err := t.exec(`
		INSERT INTO counters (name, value) VALUES (?, 1)
		ON CONFLICT(name) DO UPDATE SET value = value + 1
	`, name)
	if err != nil {
		return 0, fmt.Errorf("bump counter %s: %w", name, err)
	}

	var value int64
	if err := t.queryRow(`SELECT value FROM counters WHERE name = ?`, name).Scan(&value); err != nil {
		return 0, fmt.Errorf("read counter %s: %w", name, err)
	}
	return uint64(value), nil
}

// Counter returns the current value of the named counter, 0 if unset.
func (t *Tx) Counter(name string) (uint64, error) {
	var value int64
	err := t.queryRow(`SELECT value FROM counters WHERE name = ?`, name).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read counter %s: %w", name, err)
	}
	return uint64(value), nil
}

func toNanos(t time.Time) int64 {
	return t.UnixNano()
}

func fromNanos(n int64) time.Time {
	return time.Unix(0, n).UTC()
}
