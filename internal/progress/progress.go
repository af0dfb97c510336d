// Package progress implements the orchestrator that appends progress
// events to milestones of committed timelines.
package progress

import (
	"context"
	"strings"
	"time"

	"github.com/roach88/phdtrack/internal/catalog"
	"github.com/roach88/phdtrack/internal/domain"
	"github.com/roach88/phdtrack/internal/engine"
	"github.com/roach88/phdtrack/internal/invariant"
)

// Name is the orchestrator name recorded in the ledger and traces.
const Name = "progress_orchestrator"

// Event types. Only EventMilestoneCompleted changes milestone state.
const (
	EventMilestoneCompleted = "milestone_completed"
	EventMilestoneProgress  = "milestone_progress"
	EventAchievement        = "achievement"
	EventSetback            = "setback"
	EventNote               = "note"
)

// DefaultImpact is recorded when the input names no impact level.
const DefaultImpact = "medium"

// Input logs one event against a committed milestone.
type Input struct {
	UserID      string `json:"user_id"`
	MilestoneID string `json:"milestone_id"`
	EventType   string `json:"event_type"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	EventDate   string `json:"event_date"`
	ImpactLevel string `json:"impact_level,omitempty"`
}

// Output is the stored event and the milestone's state after it.
type Output struct {
	Event               domain.ProgressEvent `json:"event"`
	CommittedTimelineID string               `json:"committed_timeline_id"`
	MilestoneCompleted  bool                 `json:"milestone_completed"`
	CompletedAt         *time.Time           `json:"completed_at,omitempty"`
	NewlyCompleted      bool                 `json:"newly_completed"`
}

// Orchestrator is the Progress pipeline.
type Orchestrator struct {
	runner  *engine.Runner
	catalog *catalog.Catalog
}

// New returns a Progress orchestrator.
func New(r *engine.Runner, cat *catalog.Catalog) *Orchestrator {
	return &Orchestrator{runner: r, catalog: cat}
}

// Name implements engine.Pipeline.
func (o *Orchestrator) Name() string { return Name }

// Execute runs the pipeline under the request id.
func (o *Orchestrator) Execute(ctx context.Context, requestID string, in Input) (*engine.Outcome[Output], error) {
	return engine.Execute[Input, Output](ctx, o.runner, o, requestID, in)
}

// Run implements engine.Pipeline.
func (o *Orchestrator) Run(ctx context.Context, run *engine.Run, in Input) (Output, error) {
	tx := run.Tx()

	err := run.Step(ctx, "validate_input", func(ctx context.Context) error {
		return invariant.ValidInput(o.catalog, catalog.DefProgressInput, in)
	})
	if err != nil {
		return Output{}, err
	}

	var path invariant.MilestonePath
	err = run.Step(ctx, "validate_milestone", func(ctx context.Context) error {
		p, err := invariant.MilestoneCommitted(ctx, tx, in.UserID, in.MilestoneID)
		if err != nil {
			return err
		}
		path = p
		return run.Evidence(invariant.Evidence(invariant.ProgressEventWithoutMilestoneRule,
			invariant.Subjects(
				"milestone_id", p.Milestone.ID,
				"stage_id", p.Stage.ID,
				"committed_timeline_id", p.Timeline.ID,
				"user_id", in.UserID,
			)))
	})
	if err != nil {
		return Output{}, err
	}

	out := Output{
		CommittedTimelineID: path.Timeline.ID,
		MilestoneCompleted:  path.Milestone.IsCompleted,
		CompletedAt:         path.Milestone.CompletedAt,
	}
	err = run.Step(ctx, "append_progress_event", func(ctx context.Context) error {
		impact := in.ImpactLevel
		if impact == "" {
			impact = DefaultImpact
		}
		out.Event = domain.ProgressEvent{
			ID:          run.NewID(),
			UserID:      in.UserID,
			MilestoneID: path.Milestone.ID,
			EventType:   in.EventType,
			Title:       strings.TrimSpace(in.Title),
			Description: in.Description,
			EventDate:   in.EventDate,
			ImpactLevel: impact,
			CreatedAt:   run.Now(),
		}
		if err := tx.InsertProgressEvent(ctx, out.Event); err != nil {
			return engine.StoreFailure("", err)
		}
		return nil
	})
	if err != nil {
		return Output{}, err
	}

	err = run.Step(ctx, "mark_milestone_completed", func(ctx context.Context) error {
		if in.EventType == EventMilestoneCompleted {
			at := out.Event.CreatedAt
			changed, err := tx.MarkMilestoneCompleted(ctx, path.Milestone.ID, at)
			if err != nil {
				return engine.StoreFailure("", err)
			}
			if changed {
				out.MilestoneCompleted = true
				out.CompletedAt = &at
				out.NewlyCompleted = true
			}
		}
		return run.Evidence(engine.Evidence{
			Source:     Name,
			Confidence: 100,
			Payload: engine.ProgressSnapshot{
				EventID:            out.Event.ID,
				MilestoneID:        path.Milestone.ID,
				EventType:          in.EventType,
				MilestoneCompleted: out.MilestoneCompleted,
				NewlyCompleted:     out.NewlyCompleted,
			},
		})
	})
	if err != nil {
		return Output{}, err
	}
	return out, nil
}
