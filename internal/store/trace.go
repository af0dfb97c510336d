package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/phdtrack/internal/domain"
)

const traceColumns = `id, orchestrator_name, request_id, attempt, status, input_hash,
	output_hash, error_code, error_message, started_at, completed_at, duration_ms`

func scanTrace(row interface{ Scan(...any) error }) (TraceRecord, error) {
	var (
		tr              TraceRecord
		status          string
		outHash         sql.NullString
		errCode, errMsg sql.NullString
		started         string
		completed       sql.NullString
		duration        sql.NullInt64
	)
	err := row.Scan(&tr.ID, &tr.OrchestratorName, &tr.RequestID, &tr.Attempt, &status, &tr.InputHash,
		&outHash, &errCode, &errMsg, &started, &completed, &duration)
	if err != nil {
		return TraceRecord{}, err
	}
	tr.Status = domain.ExecutionStatus(status)
	tr.OutputHash = outHash.String
	tr.ErrorCode = errCode.String
	tr.ErrorMessage = errMsg.String
	if tr.StartedAt, err = parseTime(started); err != nil {
		return TraceRecord{}, err
	}
	if tr.CompletedAt, err = parseNullTime(completed); err != nil {
		return TraceRecord{}, err
	}
	if duration.Valid {
		d := duration.Int64
		tr.DurationMS = &d
	}
	return tr, nil
}

// InsertTracePending opens a decision trace in PENDING state.
func (t *Tx) InsertTracePending(ctx context.Context, tr TraceRecord) error {
	_, err := t.exec(ctx, `
		INSERT INTO decision_traces
		(id, orchestrator_name, request_id, attempt, status, input_hash, started_at)
		VALUES (?, ?, ?, ?, 'PENDING', ?, ?)
	`, tr.ID, tr.OrchestratorName, tr.RequestID, tr.Attempt, tr.InputHash, formatTime(tr.StartedAt))
	if err != nil {
		return fmt.Errorf("insert trace %s: %w", tr.ID, err)
	}
	return nil
}

// FinishTrace writes the terminal fields of a PENDING trace. Returns
// ErrAlreadyTerminal when the trace has already been finished.
func (t *Tx) FinishTrace(ctx context.Context, f TraceFinish) error {
	if !f.Status.IsTerminal() {
		return fmt.Errorf("finish trace %s: status %q is not terminal", f.ID, f.Status)
	}
	res, err := t.exec(ctx, `
		UPDATE decision_traces
		SET status = ?, output_hash = ?, error_code = ?, error_message = ?, completed_at = ?, duration_ms = ?
		WHERE id = ? AND status = 'PENDING'
	`, string(f.Status), nullString(f.OutputHash), nullString(f.ErrorCode), nullString(f.ErrorMessage),
		formatTime(f.CompletedAt), f.DurationMS, f.ID)
	if err != nil {
		return fmt.Errorf("finish trace %s: %w", f.ID, err)
	}
	return terminalTransition(res, "finish trace "+f.ID)
}

// InsertTraceSteps appends steps to a trace.
func (t *Tx) InsertTraceSteps(ctx context.Context, traceID string, steps []StepRecord) error {
	for _, s := range steps {
		_, err := t.exec(ctx, `
			INSERT INTO trace_steps
			(trace_id, step_number, action, status, started_at, completed_at, duration_ms, error_message)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, traceID, s.StepNumber, s.Action, string(s.Status), formatTime(s.StartedAt),
			formatTime(s.CompletedAt), s.DurationMS, s.ErrorMessage)
		if err != nil {
			return fmt.Errorf("insert step %d of trace %s: %w", s.StepNumber, traceID, err)
		}
	}
	return nil
}

// InsertEvidence appends evidence rows. Each row must reference a step
// already inserted in the same transaction.
func (t *Tx) InsertEvidence(ctx context.Context, items []EvidenceRecord) error {
	for _, e := range items {
		_, err := t.exec(ctx, `
			INSERT INTO evidence_bundles
			(id, trace_id, step_number, seq, kind, source, confidence, payload, payload_hash, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, e.ID, e.TraceID, e.StepNumber, e.Seq, e.Kind, e.Source, e.Confidence,
			e.Payload, e.PayloadHash, formatTime(e.CreatedAt))
		if err != nil {
			return fmt.Errorf("insert evidence %s: %w", e.ID, err)
		}
	}
	return nil
}

// GetTrace loads a trace with its steps and evidence.
func (r reader) GetTrace(ctx context.Context, id string) (*TraceRecord, error) {
	tr, err := scanTrace(r.queryRow(ctx, `SELECT `+traceColumns+` FROM decision_traces WHERE id = ?`, id))
	if err != nil {
		return nil, notFound(err, "trace", id)
	}
	if err := r.loadTraceChildren(ctx, &tr); err != nil {
		return nil, err
	}
	return &tr, nil
}

// TracesByRequest returns every attempt's trace for a request, oldest
// attempt first, with steps and evidence loaded.
func (r reader) TracesByRequest(ctx context.Context, orchestrator, requestID string) ([]TraceRecord, error) {
	traces, err := r.listTraces(ctx, `
		SELECT `+traceColumns+` FROM decision_traces
		WHERE orchestrator_name = ? AND request_id = ?
		ORDER BY attempt ASC
	`, orchestrator, requestID)
	if err != nil {
		return nil, err
	}
	for i := range traces {
		if err := r.loadTraceChildren(ctx, &traces[i]); err != nil {
			return nil, err
		}
	}
	return traces, nil
}

// ListTraces returns trace headers matching the filter, newest first.
// Steps and evidence are not loaded.
func (r reader) ListTraces(ctx context.Context, f TraceFilter) ([]TraceRecord, error) {
	query := `SELECT ` + traceColumns + ` FROM decision_traces WHERE 1 = 1`
	var args []any
	if f.OrchestratorName != "" {
		query += ` AND orchestrator_name = ?`
		args = append(args, f.OrchestratorName)
	}
	if f.RequestID != "" {
		query += ` AND request_id = ?`
		args = append(args, f.RequestID)
	}
	if f.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(f.Status))
	}
	query += ` ORDER BY started_at DESC, id DESC`
	if f.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, f.Limit)
	}
	return r.listTraces(ctx, query, args...)
}

func (r reader) listTraces(ctx context.Context, query string, args ...any) ([]TraceRecord, error) {
	rows, err := r.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list traces: %w", err)
	}
	defer rows.Close()

	var out []TraceRecord
	for rows.Next() {
		tr, err := scanTrace(rows)
		if err != nil {
			return nil, fmt.Errorf("list traces: %w", err)
		}
		out = append(out, tr)
	}
	return out, rows.Err()
}

func (r reader) loadTraceChildren(ctx context.Context, tr *TraceRecord) error {
	steps, err := r.stepsByTrace(ctx, tr.ID)
	if err != nil {
		return err
	}
	evidence, err := r.evidenceByTrace(ctx, tr.ID)
	if err != nil {
		return err
	}
	tr.Steps = steps
	tr.Evidence = evidence
	return nil
}

func (r reader) stepsByTrace(ctx context.Context, traceID string) ([]StepRecord, error) {
	rows, err := r.query(ctx, `
		SELECT step_number, action, status, started_at, completed_at, duration_ms, error_message
		FROM trace_steps WHERE trace_id = ?
		ORDER BY step_number ASC
	`, traceID)
	if err != nil {
		return nil, fmt.Errorf("steps of trace %s: %w", traceID, err)
	}
	defer rows.Close()

	steps := []StepRecord{}
	for rows.Next() {
		var (
			s                  StepRecord
			status             string
			started, completed string
		)
		if err := rows.Scan(&s.StepNumber, &s.Action, &status, &started, &completed, &s.DurationMS, &s.ErrorMessage); err != nil {
			return nil, fmt.Errorf("steps of trace %s: %w", traceID, err)
		}
		s.Status = domain.ExecutionStatus(status)
		if s.StartedAt, err = parseTime(started); err != nil {
			return nil, err
		}
		if s.CompletedAt, err = parseTime(completed); err != nil {
			return nil, err
		}
		steps = append(steps, s)
	}
	return steps, rows.Err()
}

func (r reader) evidenceByTrace(ctx context.Context, traceID string) ([]EvidenceRecord, error) {
	rows, err := r.query(ctx, `
		SELECT id, trace_id, step_number, seq, kind, source, confidence, payload, payload_hash, created_at
		FROM evidence_bundles WHERE trace_id = ?
		ORDER BY step_number ASC, seq ASC
	`, traceID)
	if err != nil {
		return nil, fmt.Errorf("evidence of trace %s: %w", traceID, err)
	}
	defer rows.Close()

	var out []EvidenceRecord
	for rows.Next() {
		var (
			e       EvidenceRecord
			created string
		)
		if err := rows.Scan(&e.ID, &e.TraceID, &e.StepNumber, &e.Seq, &e.Kind, &e.Source, &e.Confidence,
			&e.Payload, &e.PayloadHash, &created); err != nil {
			return nil, fmt.Errorf("evidence of trace %s: %w", traceID, err)
		}
		if e.CreatedAt, err = parseTime(created); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
