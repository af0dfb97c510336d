package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotFound is returned when a lookup matches no row.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when a guarded update matched no row because
	// the row was not in the expected state (for example, an already
	// inactive draft).
	ErrConflict = errors.New("state conflict")

	// ErrAlreadyTerminal is returned when a ledger or trace row has already
	// left PENDING.
	ErrAlreadyTerminal = errors.New("row already terminal")
)

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// reader holds the read-side query methods shared by Store and Tx.
type reader struct {
	q       queryer
	dialect Dialect
}

func (r reader) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return r.q.ExecContext(ctx, r.dialect.Rebind(query), args...)
}

func (r reader) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return r.q.QueryContext(ctx, r.dialect.Rebind(query), args...)
}

func (r reader) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return r.q.QueryRowContext(ctx, r.dialect.Rebind(query), args...)
}

// timeLayout is fixed width so stored timestamps order lexicographically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t, nil
}

func parseNullTime(ns sql.NullString) (*time.Time, error) {
	if !ns.Valid || ns.String == "" {
		return nil, nil
	}
	t, err := parseTime(ns.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// requireOne converts a guarded UPDATE result into ErrConflict when no row
// matched.
func requireOne(res sql.Result, what string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: rows affected: %w", what, err)
	}
	if n != 1 {
		return fmt.Errorf("%s: %w", what, ErrConflict)
	}
	return nil
}

// notFound maps sql.ErrNoRows onto ErrNotFound with context.
func notFound(err error, what, id string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s %q: %w", what, id, ErrNotFound)
	}
	return fmt.Errorf("%s %q: %w", what, id, err)
}

// countableTables lists the tables CountRows accepts. Table names cannot be
// bound as parameters, so only known names are ever interpolated.
var countableTables = map[string]bool{
	"users":               true,
	"documents":           true,
	"baselines":           true,
	"draft_timelines":     true,
	"committed_timelines": true,
	"timeline_stages":     true,
	"timeline_milestones": true,
	"progress_events":     true,
	"journey_assessments": true,
	"analytics_snapshots": true,
	"idempotency_keys":    true,
	"decision_traces":     true,
	"trace_steps":         true,
	"evidence_bundles":    true,
}

// BusinessTables are the tables holding domain state. Ledger and trace
// tables are excluded.
var BusinessTables = []string{
	"users",
	"documents",
	"baselines",
	"draft_timelines",
	"committed_timelines",
	"timeline_stages",
	"timeline_milestones",
	"progress_events",
	"journey_assessments",
	"analytics_snapshots",
}

// CountRows returns the row count of each named table.
func (r reader) CountRows(ctx context.Context, tables ...string) (map[string]int, error) {
	counts := make(map[string]int, len(tables))
	for _, table := range tables {
		if !countableTables[table] {
			return nil, fmt.Errorf("count rows: unknown table %q", table)
		}
		var n int
		if err := r.queryRow(ctx, "SELECT COUNT(*) FROM "+table).Scan(&n); err != nil {
			return nil, fmt.Errorf("count rows %s: %w", table, err)
		}
		counts[table] = n
	}
	return counts, nil
}
