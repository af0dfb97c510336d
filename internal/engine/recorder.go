package engine

import (
	"strconv"
	"sync"
	"time"

	"github.com/roach88/phdtrack/internal/domain"
	"github.com/roach88/phdtrack/internal/store"
)

// Recorder accumulates the steps and evidence of one decision trace in
// memory. The engine persists them in the same transaction that settles
// the ledger row, so a trace is never half-written.
//
// INVARIANTS:
//   - Step numbers are 1..n with no gaps
//   - At most one step is open at a time
//   - Evidence attaches to the open step only
//   - After Finish, every mutation fails with TRACE_FINALIZED
type Recorder struct {
	mu       sync.Mutex
	traceID  string
	clock    Clock
	ids      IDGenerator
	steps    []store.StepRecord
	evidence []store.EvidenceRecord
	open     *store.StepRecord
	seq      int
	finished bool
}

// NewRecorder creates a recorder for the given trace.
func NewRecorder(traceID string, clock Clock, ids IDGenerator) *Recorder {
	return &Recorder{traceID: traceID, clock: clock, ids: ids}
}

// Begin opens the next step and returns its number.
func (r *Recorder) Begin(action string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.finished {
		return 0, TraceFinalized(r.traceID)
	}
	if r.open != nil {
		return 0, StepOrderViolation("step begun while another step is open", map[string]string{
			"trace_id":    r.traceID,
			"open_step":   strconv.Itoa(r.open.StepNumber),
			"open_action": r.open.Action,
			"action":      action,
		})
	}
	if action == "" {
		return 0, StepOrderViolation("step action is required", map[string]string{"trace_id": r.traceID})
	}

	r.open = &store.StepRecord{
		StepNumber: len(r.steps) + 1,
		Action:     action,
		StartedAt:  r.clock.Now(),
	}
	r.seq = 0
	return r.open.StepNumber, nil
}

// End closes the open step. A nil cause marks it COMPLETED; otherwise it
// is FAILED with the cause's message.
func (r *Recorder) End(stepNumber int, cause error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.finished {
		return TraceFinalized(r.traceID)
	}
	if r.open == nil || r.open.StepNumber != stepNumber {
		details := map[string]string{
			"trace_id": r.traceID,
			"step":     strconv.Itoa(stepNumber),
		}
		if r.open != nil {
			details["open_step"] = strconv.Itoa(r.open.StepNumber)
		}
		return StepOrderViolation("ending a step that is not open", details)
	}

	s := *r.open
	s.CompletedAt = r.clock.Now()
	s.DurationMS = elapsedMS(s.StartedAt, s.CompletedAt)
	s.Status = domain.StatusCompleted
	if cause != nil {
		s.Status = domain.StatusFailed
		s.ErrorMessage = cause.Error()
	}
	r.steps = append(r.steps, s)
	r.open = nil
	return nil
}

// Attach adds evidence to the open step.
func (r *Recorder) Attach(e Evidence) error {
	payload, hash, err := encodeEvidence(e)
	if err != nil {
		return NewContractError(ErrCodeInvalidEvidence, err.Error(), map[string]string{"trace_id": r.traceID})
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.finished {
		return TraceFinalized(r.traceID)
	}
	if r.open == nil {
		return StepOrderViolation("evidence attached outside a step", map[string]string{
			"trace_id": r.traceID,
			"kind":     string(e.Payload.EvidenceKind()),
		})
	}

	r.seq++
	r.evidence = append(r.evidence, store.EvidenceRecord{
		ID:          r.ids.Generate(),
		TraceID:     r.traceID,
		StepNumber:  r.open.StepNumber,
		Seq:         r.seq,
		Kind:        string(e.Payload.EvidenceKind()),
		Source:      e.Source,
		Confidence:  e.Confidence,
		Payload:     string(payload),
		PayloadHash: hash,
		CreatedAt:   r.clock.Now(),
	})
	return nil
}

// Finish seals the recorder and returns what it holds. A step still open
// is closed as FAILED with the given cause, or with an interrupted marker
// when cause is nil.
func (r *Recorder) Finish(cause error) ([]store.StepRecord, []store.EvidenceRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.finished {
		return nil, nil, TraceFinalized(r.traceID)
	}
	if r.open != nil {
		s := *r.open
		s.CompletedAt = r.clock.Now()
		s.DurationMS = elapsedMS(s.StartedAt, s.CompletedAt)
		s.Status = domain.StatusFailed
		s.ErrorMessage = "step interrupted"
		if cause != nil {
			s.ErrorMessage = cause.Error()
		}
		r.steps = append(r.steps, s)
		r.open = nil
	}
	r.finished = true
	return append([]store.StepRecord(nil), r.steps...), append([]store.EvidenceRecord(nil), r.evidence...), nil
}

// Steps returns a copy of the closed steps so far.
func (r *Recorder) Steps() []store.StepRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]store.StepRecord(nil), r.steps...)
}

// Evidence returns a copy of the evidence recorded so far.
func (r *Recorder) Evidence() []store.EvidenceRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]store.EvidenceRecord(nil), r.evidence...)
}

// elapsedMS is the wall time between two instants in milliseconds, never
// negative.
func elapsedMS(from, to time.Time) int64 {
	if d := to.Sub(from).Milliseconds(); d > 0 {
		return d
	}
	return 0
}
