package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/phdtrack/internal/domain"
)

const ledgerColumns = `orchestrator_name, request_id, attempt, status, input_hash, trace_id,
	result_hash, result_payload, error_code, error_message, created_at, completed_at`

func scanLedger(row interface{ Scan(...any) error }) (LedgerEntry, error) {
	var (
		e                   LedgerEntry
		status              string
		resultHash, payload sql.NullString
		errCode, errMsg     sql.NullString
		created             string
		completed           sql.NullString
	)
	err := row.Scan(&e.OrchestratorName, &e.RequestID, &e.Attempt, &status, &e.InputHash, &e.TraceID,
		&resultHash, &payload, &errCode, &errMsg, &created, &completed)
	if err != nil {
		return LedgerEntry{}, err
	}
	e.Status = domain.ExecutionStatus(status)
	e.ResultHash = resultHash.String
	if payload.Valid {
		e.ResultPayload = []byte(payload.String)
	}
	e.ErrorCode = errCode.String
	e.ErrorMessage = errMsg.String
	if e.CreatedAt, err = parseTime(created); err != nil {
		return LedgerEntry{}, err
	}
	if e.CompletedAt, err = parseNullTime(completed); err != nil {
		return LedgerEntry{}, err
	}
	return e, nil
}

// LatestLedgerEntry returns the highest attempt recorded for
// (orchestrator, request), or nil when the request has never been seen.
func (r reader) LatestLedgerEntry(ctx context.Context, orchestrator, requestID string) (*LedgerEntry, error) {
	e, err := scanLedger(r.queryRow(ctx, `
		SELECT `+ledgerColumns+` FROM idempotency_keys
		WHERE orchestrator_name = ? AND request_id = ?
		ORDER BY attempt DESC
		LIMIT 1
	`, orchestrator, requestID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest ledger entry: %w", err)
	}
	return &e, nil
}

// LedgerEntries lists every attempt for (orchestrator, request) in order.
func (r reader) LedgerEntries(ctx context.Context, orchestrator, requestID string) ([]LedgerEntry, error) {
	return r.listLedger(ctx, `
		SELECT `+ledgerColumns+` FROM idempotency_keys
		WHERE orchestrator_name = ? AND request_id = ?
		ORDER BY attempt ASC
	`, orchestrator, requestID)
}

// StaleLedgerEntries lists PENDING rows created before the cutoff. A
// PENDING row that outlives any plausible execution is a liveness bug: the
// process died between claim and finish.
func (r reader) StaleLedgerEntries(ctx context.Context, cutoff time.Time) ([]LedgerEntry, error) {
	return r.listLedger(ctx, `
		SELECT `+ledgerColumns+` FROM idempotency_keys
		WHERE status = 'PENDING' AND created_at < ?
		ORDER BY created_at ASC, orchestrator_name ASC, request_id ASC
	`, formatTime(cutoff))
}

func (r reader) listLedger(ctx context.Context, query string, args ...any) ([]LedgerEntry, error) {
	rows, err := r.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list ledger: %w", err)
	}
	defer rows.Close()

	var out []LedgerEntry
	for rows.Next() {
		e, err := scanLedger(rows)
		if err != nil {
			return nil, fmt.Errorf("list ledger: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// InsertLedgerPending claims an attempt. Uses ON CONFLICT DO NOTHING so
// that losing a race on either the attempt key or the one-live-attempt
// index is reported as inserted=false instead of an error.
func (t *Tx) InsertLedgerPending(ctx context.Context, e LedgerEntry) (inserted bool, err error) {
	res, err := t.exec(ctx, `
		INSERT INTO idempotency_keys
		(orchestrator_name, request_id, attempt, status, input_hash, trace_id, created_at)
		VALUES (?, ?, ?, 'PENDING', ?, ?, ?)
		ON CONFLICT DO NOTHING
	`, e.OrchestratorName, e.RequestID, e.Attempt, e.InputHash, e.TraceID, formatTime(e.CreatedAt))
	if err != nil {
		return false, fmt.Errorf("insert ledger pending: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert ledger pending: rows affected: %w", err)
	}
	return n == 1, nil
}

// CompleteLedger moves a PENDING attempt to COMPLETED with its cached
// result. Returns ErrAlreadyTerminal if the attempt is no longer PENDING.
func (t *Tx) CompleteLedger(ctx context.Context, orchestrator, requestID string, attempt int,
	resultHash string, payload []byte, at time.Time) error {
	res, err := t.exec(ctx, `
		UPDATE idempotency_keys
		SET status = 'COMPLETED', result_hash = ?, result_payload = ?, completed_at = ?
		WHERE orchestrator_name = ? AND request_id = ? AND attempt = ? AND status = 'PENDING'
	`, resultHash, string(payload), formatTime(at), orchestrator, requestID, attempt)
	if err != nil {
		return fmt.Errorf("complete ledger: %w", err)
	}
	return terminalTransition(res, "complete ledger")
}

// FailLedger moves a PENDING attempt to FAILED.
func (t *Tx) FailLedger(ctx context.Context, orchestrator, requestID string, attempt int,
	code, message string, at time.Time) error {
	res, err := t.exec(ctx, `
		UPDATE idempotency_keys
		SET status = 'FAILED', error_code = ?, error_message = ?, completed_at = ?
		WHERE orchestrator_name = ? AND request_id = ? AND attempt = ? AND status = 'PENDING'
	`, code, message, formatTime(at), orchestrator, requestID, attempt)
	if err != nil {
		return fmt.Errorf("fail ledger: %w", err)
	}
	return terminalTransition(res, "fail ledger")
}

func terminalTransition(res sql.Result, what string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: rows affected: %w", what, err)
	}
	if n != 1 {
		return fmt.Errorf("%s: %w", what, ErrAlreadyTerminal)
	}
	return nil
}
