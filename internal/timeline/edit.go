package timeline

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/roach88/phdtrack/internal/catalog"
	"github.com/roach88/phdtrack/internal/domain"
	"github.com/roach88/phdtrack/internal/engine"
	"github.com/roach88/phdtrack/internal/invariant"
	"github.com/roach88/phdtrack/internal/store"
)

// Edit operations accepted by the Editor.
const (
	OpAddStage        = "add_stage"
	OpRenameStage     = "rename_stage"
	OpAddMilestone    = "add_milestone"
	OpRemoveMilestone = "remove_milestone"
)

// EditOperation is one change to an active draft.
type EditOperation struct {
	Op             string `json:"op" yaml:"op"`
	StageID        string `json:"stage_id,omitempty" yaml:"stage_id,omitempty"`
	MilestoneID    string `json:"milestone_id,omitempty" yaml:"milestone_id,omitempty"`
	Title          string `json:"title,omitempty" yaml:"title,omitempty"`
	Description    string `json:"description,omitempty" yaml:"description,omitempty"`
	StageType      string `json:"stage_type,omitempty" yaml:"stage_type,omitempty"`
	DurationMonths int    `json:"duration_months,omitempty" yaml:"duration_months,omitempty"`
	TargetDate     string `json:"target_date,omitempty" yaml:"target_date,omitempty"`
	IsCritical     bool   `json:"is_critical,omitempty" yaml:"is_critical,omitempty"`
}

// EditInput applies operations, in order, to one draft.
type EditInput struct {
	UserID          string          `json:"user_id"`
	DraftTimelineID string          `json:"draft_timeline_id"`
	Operations      []EditOperation `json:"operations"`
}

// EditOutput is the draft after every operation was applied.
type EditOutput struct {
	Draft   domain.DraftTimeline `json:"draft"`
	Stages  []StageView          `json:"stages"`
	Applied int                  `json:"applied"`
}

// Editor is the Timeline.edit pipeline. Edits apply to active drafts
// only; the whole batch fails if any operation fails.
type Editor struct {
	runner  *engine.Runner
	catalog *catalog.Catalog
}

// Name implements engine.Pipeline.
func (e *Editor) Name() string { return EditName }

// Execute runs the pipeline under the request id.
func (e *Editor) Execute(ctx context.Context, requestID string, in EditInput) (*engine.Outcome[EditOutput], error) {
	return engine.Execute[EditInput, EditOutput](ctx, e.runner, e, requestID, in)
}

// Run implements engine.Pipeline.
func (e *Editor) Run(ctx context.Context, run *engine.Run, in EditInput) (EditOutput, error) {
	tx := run.Tx()

	err := run.Step(ctx, "validate_input", func(ctx context.Context) error {
		if err := invariant.ValidInput(e.catalog, catalog.DefEditInput, in); err != nil {
			return err
		}
		for i, op := range in.Operations {
			if err := requireFields(i, op); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return EditOutput{}, err
	}

	var draft domain.DraftTimeline
	err = run.Step(ctx, "validate_draft", func(ctx context.Context) error {
		d, err := invariant.DraftEditable(ctx, tx, in.UserID, in.DraftTimelineID)
		if err != nil {
			return err
		}
		draft = d
		return run.Evidence(invariant.Evidence(invariant.TimelineImmutableRule,
			invariant.Subjects("draft_timeline_id", d.ID, "user_id", in.UserID, "is_active", "true")))
	})
	if err != nil {
		return EditOutput{}, err
	}

	err = run.Step(ctx, "apply_operations", func(ctx context.Context) error {
		for i, op := range in.Operations {
			if err := e.apply(ctx, run, tx, draft.ID, i, op); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return EditOutput{}, err
	}

	var out EditOutput
	err = run.Step(ctx, "touch_draft", func(ctx context.Context) error {
		now := run.Now()
		if err := tx.TouchDraft(ctx, draft.ID, now); err != nil {
			if errors.Is(err, store.ErrConflict) {
				return invariant.TimelineImmutable(draft.ID)
			}
			return engine.StoreFailure("", err)
		}
		draft.UpdatedAt = now
		stages, err := loadDraftViews(ctx, tx, draft.ID)
		if err != nil {
			return err
		}
		out = EditOutput{Draft: draft, Stages: stages, Applied: len(in.Operations)}
		return nil
	})
	if err != nil {
		return EditOutput{}, err
	}
	return out, nil
}

func (e *Editor) apply(ctx context.Context, run *engine.Run, tx *store.Tx, draftID string, index int, op EditOperation) error {
	switch op.Op {
	case OpAddStage:
		st, err := invariant.KnownStageType(e.catalog, op.StageType, index)
		if err != nil {
			return err
		}
		existing, err := tx.StagesByDraft(ctx, draftID)
		if err != nil {
			return engine.StoreFailure("", err)
		}
		months := op.DurationMonths
		if months <= 0 {
			months = e.catalog.DefaultDuration(st)
		}
		err = tx.InsertStage(ctx, domain.Stage{
			ID:              run.NewID(),
			DraftTimelineID: draftID,
			Title:           strings.TrimSpace(op.Title),
			Description:     op.Description,
			StageType:       st,
			Order:           len(existing) + 1,
			DurationMonths:  months,
		})
		if err != nil {
			return engine.StoreFailure("", err)
		}

	case OpRenameStage:
		err := tx.RenameDraftStage(ctx, op.StageID, draftID, strings.TrimSpace(op.Title))
		if errors.Is(err, store.ErrConflict) {
			return invariant.StageNotInDraft(op.StageID, draftID)
		}
		if err != nil {
			return engine.StoreFailure("", err)
		}

	case OpAddMilestone:
		stage, err := tx.GetStage(ctx, op.StageID)
		if store.IsNotFound(err) || (err == nil && stage.DraftTimelineID != draftID) {
			return invariant.StageNotInDraft(op.StageID, draftID)
		}
		if err != nil {
			return engine.StoreFailure("", err)
		}
		existing, err := tx.MilestonesByStage(ctx, stage.ID)
		if err != nil {
			return engine.StoreFailure("", err)
		}
		err = tx.InsertMilestone(ctx, domain.Milestone{
			ID:          run.NewID(),
			StageID:     stage.ID,
			Title:       strings.TrimSpace(op.Title),
			Description: op.Description,
			Order:       len(existing) + 1,
			TargetDate:  op.TargetDate,
			IsCritical:  op.IsCritical,
		})
		if err != nil {
			return engine.StoreFailure("", err)
		}

	case OpRemoveMilestone:
		err := tx.DeleteDraftMilestone(ctx, op.MilestoneID, draftID)
		if errors.Is(err, store.ErrConflict) {
			return invariant.MilestoneNotInDraft(op.MilestoneID, draftID)
		}
		if err != nil {
			return engine.StoreFailure("", err)
		}
	}
	return nil
}

// requireFields checks the per-operation fields the input schema leaves
// optional.
func requireFields(index int, op EditOperation) error {
	var missing string
	switch op.Op {
	case OpAddStage:
		switch {
		case strings.TrimSpace(op.Title) == "":
			missing = "title"
		case op.StageType == "":
			missing = "stage_type"
		}
	case OpRenameStage:
		switch {
		case op.StageID == "":
			missing = "stage_id"
		case strings.TrimSpace(op.Title) == "":
			missing = "title"
		}
	case OpAddMilestone:
		switch {
		case op.StageID == "":
			missing = "stage_id"
		case strings.TrimSpace(op.Title) == "":
			missing = "title"
		}
	case OpRemoveMilestone:
		if op.MilestoneID == "" {
			missing = "milestone_id"
		}
	}
	if missing == "" {
		return nil
	}
	return engine.InvalidRequest(op.Op+" requires "+missing, map[string]string{
		"operation_index": strconv.Itoa(index),
		"op":              op.Op,
		"field":           missing,
	})
}
