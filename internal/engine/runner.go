package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/roach88/phdtrack/internal/canon"
	"github.com/roach88/phdtrack/internal/domain"
	"github.com/roach88/phdtrack/internal/store"
)

// Pipeline is one orchestrator: a named sequence of traced steps over a
// typed input.
//
// Run executes inside the business transaction; it must do all writes via
// run.Tx() and wrap every unit of work in run.Step.
type Pipeline[In, Out any] interface {
	Name() string
	Run(ctx context.Context, run *Run, in In) (Out, error)
}

// Outcome is the result of Execute.
type Outcome[Out any] struct {
	Value Out

	// Payload is the canonical JSON of Value. Byte-identical across a fresh
	// execution and every cached replay of it.
	Payload    []byte
	OutputHash string
	TraceID    string
	Attempt    int

	// Cached is true when the result came from the ledger and the pipeline
	// did not run.
	Cached bool
}

// Runner executes pipelines against a store. It holds no per-request
// state and is safe for concurrent use.
type Runner struct {
	store  *store.Store
	clock  Clock
	ids    IDGenerator
	logger *slog.Logger
	tracer trace.Tracer
}

// Option configures a Runner.
type Option func(*Runner)

// WithClock sets the wall clock. Default: SystemClock.
func WithClock(c Clock) Option {
	return func(r *Runner) {
		r.clock = c
	}
}

// WithIDGenerator sets the id source. Default: UUIDv7Generator.
func WithIDGenerator(g IDGenerator) Option {
	return func(r *Runner) {
		r.ids = g
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(r *Runner) {
		r.logger = l
	}
}

// WithTracerProvider sets the otel tracer provider. Default: the global
// provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(r *Runner) {
		r.tracer = tp.Tracer(TracerName)
	}
}

// NewRunner creates a Runner over s.
func NewRunner(s *store.Store, opts ...Option) *Runner {
	r := &Runner{
		store:  s,
		clock:  SystemClock{},
		ids:    UUIDv7Generator{},
		logger: slog.Default(),
		tracer: defaultTracer(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Store returns the underlying store.
func (r *Runner) Store() *store.Store { return r.store }

// Clock returns the runner's clock.
func (r *Runner) Clock() Clock { return r.clock }

// IDs returns the runner's id generator.
func (r *Runner) IDs() IDGenerator { return r.ids }

// Logger returns the runner's logger.
func (r *Runner) Logger() *slog.Logger { return r.logger }

// claim is the outcome of the claim transaction.
type claim struct {
	attempt   int
	traceID   string
	startedAt time.Time

	// cached is set when a COMPLETED attempt already exists.
	cached *store.LedgerEntry
}

// Execute runs p for requestID exactly once.
//
// Flow:
//  1. Validate the request id and orchestrator name; hash the input
//  2. Claim: in one transaction, consult the ledger and insert a PENDING
//     attempt plus a PENDING trace (or return the cached result)
//  3. Run the pipeline in a second transaction that also completes the
//     ledger row and persists the trace
//  4. On failure, roll back and record the FAILED attempt in a third
//     transaction
//
// The claim commits before the pipeline runs so a concurrent duplicate
// observes PENDING and gets CONCURRENT_EXECUTION instead of running twice.
// No step holds more than one connection at a time.
func Execute[In, Out any](ctx context.Context, r *Runner, p Pipeline[In, Out], requestID string, in In) (*Outcome[Out], error) {
	name := p.Name()
	if err := ValidateOrchestratorName(name); err != nil {
		return nil, err
	}
	if err := ValidateRequestID(requestID); err != nil {
		err.(*Error).Operation = name
		return nil, err
	}

	ctx, span := r.tracer.Start(ctx, SpanExecute, trace.WithAttributes(
		AttrOrchestrator.String(name),
		AttrRequestID.String(requestID),
	))
	defer span.End()

	out, err := execute(ctx, r, p, name, requestID, in)
	if err != nil {
		recordSpanError(span, err)
		return nil, err
	}
	span.SetAttributes(
		AttrCached.Bool(out.Cached),
		AttrAttempt.Int(out.Attempt),
		AttrTraceID.String(out.TraceID),
	)
	return out, nil
}

func execute[In, Out any](ctx context.Context, r *Runner, p Pipeline[In, Out], name, requestID string, in In) (*Outcome[Out], error) {
	log := r.logger.With("orchestrator", name, "request_id", requestID)

	inputHash, err := canon.InputHash(name, in)
	if err != nil {
		return nil, &Error{
			Kind:      KindInvariant,
			Code:      ErrCodeInvalidRequest,
			Operation: name,
			Invariant: "RequestValidation",
			Message:   "input cannot be canonicalized",
			Err:       err,
		}
	}

	c, err := r.claim(ctx, name, requestID, inputHash)
	if err != nil {
		log.Debug("claim rejected", "error", err)
		return nil, err
	}
	if c.cached != nil {
		var value Out
		if err := json.Unmarshal(c.cached.ResultPayload, &value); err != nil {
			return nil, StoreFailure(name, fmt.Errorf("decode cached result: %w", err))
		}
		log.Debug("returning cached result", "trace_id", c.cached.TraceID, "attempt", c.cached.Attempt)
		return &Outcome[Out]{
			Value:      value,
			Payload:    c.cached.ResultPayload,
			OutputHash: c.cached.ResultHash,
			TraceID:    c.cached.TraceID,
			Attempt:    c.cached.Attempt,
			Cached:     true,
		}, nil
	}

	log = log.With("trace_id", c.traceID, "attempt", c.attempt)
	rec := NewRecorder(c.traceID, r.clock, r.ids)

	out, runErr := runBusiness(ctx, r, p, name, requestID, in, c, rec)
	if runErr == nil {
		log.Info("orchestrator completed", "output_hash", out.OutputHash)
		return out, nil
	}

	typed := classify(name, runErr)
	typed.TraceID = c.traceID
	if err := r.recordFailure(ctx, name, requestID, c, rec, typed); err != nil {
		log.Error("failed to record failed attempt", "error", err)
		return nil, errors.Join(typed, err)
	}
	log.Warn("orchestrator failed", "code", typed.Code, "error", typed.Message)
	return nil, typed
}

// claim runs the claim transaction. Lock contention that outlasts the busy
// timeout means another caller holds the write lock, so it is reported as
// CONCURRENT_EXECUTION.
func (r *Runner) claim(ctx context.Context, name, requestID, inputHash string) (*claim, error) {
	tx, err := r.store.Begin(ctx)
	if err != nil {
		return nil, claimFailure(name, requestID, err)
	}
	defer tx.Rollback()

	latest, err := tx.LatestLedgerEntry(ctx, name, requestID)
	if err != nil {
		return nil, claimFailure(name, requestID, err)
	}

	attempt := 1
	if latest != nil {
		if latest.InputHash != inputHash {
			return nil, HashMismatch(name, requestID, latest.InputHash, inputHash)
		}
		switch latest.Status {
		case domain.StatusCompleted:
			return &claim{cached: latest}, nil
		case domain.StatusPending:
			return nil, ConcurrentExecution(name, requestID)
		}
		attempt = latest.Attempt + 1
	}

	c := &claim{
		attempt:   attempt,
		traceID:   r.ids.Generate(),
		startedAt: r.clock.Now(),
	}
	inserted, err := tx.InsertLedgerPending(ctx, store.LedgerEntry{
		OrchestratorName: name,
		RequestID:        requestID,
		Attempt:          attempt,
		InputHash:        inputHash,
		TraceID:          c.traceID,
		CreatedAt:        c.startedAt,
	})
	if err != nil {
		return nil, claimFailure(name, requestID, err)
	}
	if !inserted {
		return nil, ConcurrentExecution(name, requestID)
	}
	err = tx.InsertTracePending(ctx, store.TraceRecord{
		ID:               c.traceID,
		OrchestratorName: name,
		RequestID:        requestID,
		Attempt:          attempt,
		InputHash:        inputHash,
		StartedAt:        c.startedAt,
	})
	if err != nil {
		return nil, claimFailure(name, requestID, err)
	}
	if err := tx.Commit(); err != nil {
		return nil, claimFailure(name, requestID, err)
	}
	return c, nil
}

func claimFailure(name, requestID string, err error) *Error {
	if store.IsBusy(err) {
		e := ConcurrentExecution(name, requestID)
		e.Err = err
		return e
	}
	return StoreFailure(name+".claim", err)
}

// runBusiness runs the pipeline and settles the ledger in one transaction.
func runBusiness[In, Out any](ctx context.Context, r *Runner, p Pipeline[In, Out], name, requestID string, in In, c *claim, rec *Recorder) (*Outcome[Out], error) {
	tx, err := r.store.Begin(ctx)
	if err != nil {
		return nil, StoreFailure(name, err)
	}
	defer tx.Rollback()

	run := &Run{
		runner:       r,
		orchestrator: name,
		requestID:    requestID,
		attempt:      c.attempt,
		traceID:      c.traceID,
		tx:           tx,
		rec:          rec,
	}
	value, err := p.Run(ctx, run, in)
	if err != nil {
		return nil, err
	}

	payload, err := canon.MarshalCanonical(value)
	if err != nil {
		return nil, NewContractError(ErrCodeInvalidOutput, "output cannot be canonicalized",
			map[string]string{"error": err.Error()})
	}
	outputHash := canon.OutputHash(payload)

	steps, evidence, err := rec.Finish(nil)
	if err != nil {
		return nil, err
	}
	completedAt := r.clock.Now()

	if err := tx.CompleteLedger(ctx, name, requestID, c.attempt, outputHash, payload, completedAt); err != nil {
		return nil, StoreFailure(name+".complete", err)
	}
	if err := tx.InsertTraceSteps(ctx, c.traceID, steps); err != nil {
		return nil, StoreFailure(name+".complete", err)
	}
	if err := tx.InsertEvidence(ctx, evidence); err != nil {
		return nil, StoreFailure(name+".complete", err)
	}
	err = tx.FinishTrace(ctx, store.TraceFinish{
		ID:          c.traceID,
		Status:      domain.StatusCompleted,
		OutputHash:  outputHash,
		CompletedAt: completedAt,
		DurationMS:  elapsedMS(c.startedAt, completedAt),
	})
	if err != nil {
		return nil, StoreFailure(name+".complete", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, StoreFailure(name+".complete", err)
	}

	// Decode the canonical payload so a fresh result and a cached replay
	// carry identical values.
	var decoded Out
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return nil, StoreFailure(name, fmt.Errorf("decode result: %w", err))
	}
	return &Outcome[Out]{
		Value:      decoded,
		Payload:    payload,
		OutputHash: outputHash,
		TraceID:    c.traceID,
		Attempt:    c.attempt,
	}, nil
}

// recordFailure persists a failed attempt after the business transaction
// rolled back: the steps run so far, the FAILED ledger row and the FAILED
// trace. It runs on a context detached from cancellation so an aborted
// caller still leaves a settled ledger row behind.
func (r *Runner) recordFailure(ctx context.Context, name, requestID string, c *claim, rec *Recorder, cause *Error) error {
	ctx = context.WithoutCancel(ctx)

	steps, evidence, err := rec.Finish(cause)
	if err != nil {
		// The pipeline finished the recorder before failing on persistence.
		steps, evidence = rec.Steps(), rec.Evidence()
	}
	completedAt := r.clock.Now()

	return r.store.InTx(ctx, func(tx *store.Tx) error {
		if err := tx.InsertTraceSteps(ctx, c.traceID, steps); err != nil {
			return err
		}
		if err := tx.InsertEvidence(ctx, evidence); err != nil {
			return err
		}
		if err := tx.FailLedger(ctx, name, requestID, c.attempt, string(cause.Code), cause.Message, completedAt); err != nil {
			return err
		}
		return tx.FinishTrace(ctx, store.TraceFinish{
			ID:           c.traceID,
			Status:       domain.StatusFailed,
			ErrorCode:    string(cause.Code),
			ErrorMessage: cause.Error(),
			CompletedAt:  completedAt,
			DurationMS:   elapsedMS(c.startedAt, completedAt),
		})
	})
}

// classify returns err as an *Error, wrapping untyped errors as
// collaborator failures with operation context.
func classify(name string, err error) *Error {
	if e, ok := AsError(err); ok {
		if e.Operation == "" {
			e.Operation = name
		}
		return e
	}
	return CollaboratorFailure(name, err)
}
