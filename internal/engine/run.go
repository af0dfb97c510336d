package engine

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/roach88/phdtrack/internal/store"
)

// Run is the per-attempt context handed to Pipeline.Run.
type Run struct {
	runner       *Runner
	orchestrator string
	requestID    string
	attempt      int
	traceID      string
	tx           *store.Tx
	rec          *Recorder
}

// Tx returns the business transaction. All reads and writes of the
// pipeline go through it.
func (r *Run) Tx() *store.Tx { return r.tx }

// Orchestrator returns the pipeline name.
func (r *Run) Orchestrator() string { return r.orchestrator }

// RequestID returns the caller's request id.
func (r *Run) RequestID() string { return r.requestID }

// TraceID returns the decision trace id of this attempt.
func (r *Run) TraceID() string { return r.traceID }

// Attempt returns the 1-based attempt number.
func (r *Run) Attempt() int { return r.attempt }

// Now reads the runner's clock.
func (r *Run) Now() time.Time { return r.runner.clock.Now() }

// NewID generates an entity id.
func (r *Run) NewID() string { return r.runner.ids.Generate() }

// Logger returns a logger tagged with the attempt's identity.
func (r *Run) Logger() *slog.Logger {
	return r.runner.logger.With(
		"orchestrator", r.orchestrator,
		"request_id", r.requestID,
		"trace_id", r.traceID,
		"attempt", r.attempt,
	)
}

// Step runs fn as the next traced step.
//
// The step is numbered, timed and recorded as COMPLETED or FAILED. A typed
// error without an operation is stamped with "<orchestrator>.<action>";
// an untyped error is wrapped as a collaborator failure of that operation.
// Steps must not nest: calling Step from inside fn fails with
// STEP_ORDER_VIOLATION.
func (r *Run) Step(ctx context.Context, action string, fn func(ctx context.Context) error) error {
	n, err := r.rec.Begin(action)
	if err != nil {
		return err
	}

	ctx, span := r.runner.tracer.Start(ctx, spanStepPrefix+action, trace.WithAttributes(
		AttrOrchestrator.String(r.orchestrator),
		AttrStep.Int(n),
	))
	defer span.End()

	err = fn(ctx)
	if err != nil {
		op := r.orchestrator + "." + action
		if e, ok := AsError(err); !ok {
			err = CollaboratorFailure(op, err)
		} else if e.Operation == "" {
			e.Operation = op
		}
		recordSpanError(span, err)
		r.Logger().Debug("step failed", "step", n, "action", action, "error", err)
	}
	if endErr := r.rec.End(n, err); endErr != nil {
		return endErr
	}
	return err
}

// Evidence attaches an evidence item to the open step.
func (r *Run) Evidence(e Evidence) error {
	return r.rec.Attach(e)
}
