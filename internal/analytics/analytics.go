// Package analytics implements the analytics orchestrator: a read-only
// aggregation over a committed timeline that appends one immutable
// snapshot per run.
//
// Run reaches the store only through a Source wrapper that declares each
// access to a guard.Guard before making it. Touching a kind outside the
// policy fails the run with READ_ONLY_VIOLATION before the access happens,
// and a final sweep re-checks the whole attempt.
package analytics

import (
	"context"

	"github.com/roach88/phdtrack/internal/catalog"
	"github.com/roach88/phdtrack/internal/domain"
	"github.com/roach88/phdtrack/internal/engine"
	"github.com/roach88/phdtrack/internal/guard"
	"github.com/roach88/phdtrack/internal/invariant"
	"github.com/roach88/phdtrack/internal/store"
)

// Name is the orchestrator name recorded in the ledger and traces.
const Name = "analytics_orchestrator"

// Input selects the committed timeline to aggregate.
type Input struct {
	UserID              string `json:"user_id"`
	CommittedTimelineID string `json:"committed_timeline_id"`
}

// Output is the appended snapshot.
type Output struct {
	Snapshot domain.AnalyticsSnapshot `json:"snapshot"`
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithPolicy replaces the access policy. Defaults to guard.AnalyticsPolicy.
func WithPolicy(p guard.Policy) Option {
	return func(o *Orchestrator) { o.policy = p }
}

// Orchestrator is the Analytics pipeline.
type Orchestrator struct {
	runner  *engine.Runner
	catalog *catalog.Catalog
	policy  guard.Policy
}

// New returns an Analytics orchestrator.
func New(r *engine.Runner, cat *catalog.Catalog, opts ...Option) *Orchestrator {
	o := &Orchestrator{runner: r, catalog: cat, policy: guard.AnalyticsPolicy()}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Name implements engine.Pipeline.
func (o *Orchestrator) Name() string { return Name }

// Execute runs the pipeline under the request id.
func (o *Orchestrator) Execute(ctx context.Context, requestID string, in Input) (*engine.Outcome[Output], error) {
	return engine.Execute[Input, Output](ctx, o.runner, o, requestID, in)
}

// Run implements engine.Pipeline.
func (o *Orchestrator) Run(ctx context.Context, run *engine.Run, in Input) (Output, error) {
	g := guard.New(o.policy)
	src := track(g, run.Tx())

	err := run.Step(ctx, "validate_input", func(ctx context.Context) error {
		return invariant.ValidInput(o.catalog, catalog.DefAnalyticsInput, in)
	})
	if err != nil {
		return Output{}, err
	}

	var timeline domain.CommittedTimeline
	err = run.Step(ctx, "validate_committed_timeline", func(ctx context.Context) error {
		_, err := invariant.UserExists(ctx, src, in.UserID)
		if err != nil {
			return err
		}
		timeline, err = invariant.CommittedTimelineOwned(ctx, src, in.UserID, in.CommittedTimelineID)
		if err != nil {
			return err
		}
		return run.Evidence(invariant.Evidence(invariant.AnalyticsWithoutCommittedTimelineRule,
			invariant.Subjects("committed_timeline_id", timeline.ID, "user_id", in.UserID)))
	})
	if err != nil {
		return Output{}, err
	}

	var agg Inputs
	err = run.Step(ctx, "load_timeline_structure", func(ctx context.Context) error {
		stages, err := src.StagesByCommitted(ctx, timeline.ID)
		if err != nil {
			return storeErr(err)
		}
		milestones, err := src.MilestonesByCommitted(ctx, timeline.ID)
		if err != nil {
			return storeErr(err)
		}
		agg.Stages, agg.Milestones = stages, milestones
		return nil
	})
	if err != nil {
		return Output{}, err
	}

	err = run.Step(ctx, "load_progress_events", func(ctx context.Context) error {
		events, err := src.ProgressEventsByCommitted(ctx, timeline.ID)
		if err != nil {
			return storeErr(err)
		}
		agg.Events = events
		return nil
	})
	if err != nil {
		return Output{}, err
	}

	err = run.Step(ctx, "load_latest_assessment", func(ctx context.Context) error {
		a, err := src.LatestAssessment(ctx, in.UserID)
		switch {
		case err == nil:
			agg.Assessment = &a
		case store.IsNotFound(err):
		default:
			return storeErr(err)
		}
		return nil
	})
	if err != nil {
		return Output{}, err
	}

	var out Output
	err = run.Step(ctx, "aggregate_metrics", func(ctx context.Context) error {
		agg.Today = run.Now().UTC().Format(domain.DateLayout)
		out.Snapshot = domain.AnalyticsSnapshot{
			UserID:              in.UserID,
			CommittedTimelineID: timeline.ID,
			TimelineVersion:     timeline.VersionNumber,
			Summary:             Summarize(agg),
		}
		return nil
	})
	if err != nil {
		return Output{}, err
	}

	err = run.Step(ctx, "persist_snapshot", func(ctx context.Context) error {
		out.Snapshot.ID = run.NewID()
		out.Snapshot.CreatedAt = run.Now()
		if err := src.InsertAnalyticsSnapshot(ctx, out.Snapshot); err != nil {
			return storeErr(err)
		}
		sum := out.Snapshot.Summary
		return run.Evidence(engine.Evidence{
			Source:     Name,
			Confidence: 100,
			Payload: engine.AnalyticsAggregate{
				SnapshotID:          out.Snapshot.ID,
				CommittedTimelineID: timeline.ID,
				TimelineVersion:     timeline.VersionNumber,
				TotalMilestones:     sum.TotalMilestones,
				CompletedMilestones: sum.CompletedMilestones,
				CompletionPercent:   sum.CompletionPercent,
				OverdueMilestones:   sum.OverdueMilestones,
			},
		})
	})
	if err != nil {
		return Output{}, err
	}

	err = run.Step(ctx, "verify_read_only_contract", func(ctx context.Context) error {
		ev, sweepErr := g.Sweep()
		if err := run.Evidence(ev); err != nil {
			return err
		}
		return sweepErr
	})
	if err != nil {
		return Output{}, err
	}
	return out, nil
}

// storeErr passes typed errors through and wraps raw store errors.
func storeErr(err error) error {
	if _, ok := engine.AsError(err); ok {
		return err
	}
	return engine.StoreFailure("", err)
}
