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

// CommitInput freezes a draft into a committed timeline.
type CommitInput struct {
	UserID          string `json:"user_id"`
	DraftTimelineID string `json:"draft_timeline_id"`
	Title           string `json:"title,omitempty"`
}

// CommitOutput is the committed timeline and its copied structure.
type CommitOutput struct {
	Timeline domain.CommittedTimeline `json:"committed_timeline"`
	Stages   []StageView              `json:"stages"`
}

// Committer is the Timeline.commit pipeline.
//
// A draft is committed at most once. Re-committing fails with
// DRAFT_ALREADY_COMMITTED naming the existing timeline; only a replay of
// the same request id returns the earlier result.
type Committer struct {
	runner  *engine.Runner
	catalog *catalog.Catalog
}

// Name implements engine.Pipeline.
func (c *Committer) Name() string { return CommitName }

// Execute runs the pipeline under the request id.
func (c *Committer) Execute(ctx context.Context, requestID string, in CommitInput) (*engine.Outcome[CommitOutput], error) {
	return engine.Execute[CommitInput, CommitOutput](ctx, c.runner, c, requestID, in)
}

// Run implements engine.Pipeline.
func (c *Committer) Run(ctx context.Context, run *engine.Run, in CommitInput) (CommitOutput, error) {
	tx := run.Tx()

	err := run.Step(ctx, "validate_input", func(ctx context.Context) error {
		return invariant.ValidInput(c.catalog, catalog.DefCommitInput, in)
	})
	if err != nil {
		return CommitOutput{}, err
	}

	var draft domain.DraftTimeline
	err = run.Step(ctx, "validate_draft_timeline_exists", func(ctx context.Context) error {
		d, err := invariant.DraftCommittable(ctx, tx, in.UserID, in.DraftTimelineID)
		if err != nil {
			return err
		}
		draft = d
		return run.Evidence(invariant.Evidence(invariant.CommittedTimelineWithoutDraftRule,
			invariant.Subjects("draft_timeline_id", d.ID, "user_id", in.UserID)))
	})
	if err != nil {
		return CommitOutput{}, err
	}

	var trees []invariant.StageTree
	err = run.Step(ctx, "validate_completeness", func(ctx context.Context) error {
		t, err := invariant.TimelineComplete(ctx, tx, draft.ID)
		if err != nil {
			return err
		}
		trees = t
		return run.Evidence(invariant.Evidence(invariant.TimelineIncompleteRule,
			invariant.Subjects("draft_timeline_id", draft.ID, "stage_count", strconv.Itoa(len(t)))))
	})
	if err != nil {
		return CommitOutput{}, err
	}

	var version int
	err = run.Step(ctx, "increment_version", func(ctx context.Context) error {
		v, err := tx.NextCommitVersion(ctx, draft.BaselineID)
		if err != nil {
			return engine.StoreFailure("", err)
		}
		version = v
		return nil
	})
	if err != nil {
		return CommitOutput{}, err
	}

	var out CommitOutput
	err = run.Step(ctx, "create_committed_timeline", func(ctx context.Context) error {
		title := strings.TrimSpace(in.Title)
		if title == "" {
			title = draft.Title
		}
		out.Timeline = domain.CommittedTimeline{
			ID:              run.NewID(),
			UserID:          in.UserID,
			BaselineID:      draft.BaselineID,
			DraftTimelineID: draft.ID,
			Title:           title,
			VersionNumber:   version,
			CommittedAt:     run.Now(),
		}
		err := tx.InsertCommittedTimeline(ctx, out.Timeline)
		switch {
		case errors.Is(err, store.ErrConflict):
			existing, lookupErr := tx.CommittedTimelineByDraft(ctx, draft.ID)
			if lookupErr != nil {
				return engine.StoreFailure("", errors.Join(err, lookupErr))
			}
			return invariant.DraftAlreadyCommitted(draft.ID, existing.ID, in.UserID)
		case err != nil:
			return engine.StoreFailure("", err)
		}
		return nil
	})
	if err != nil {
		return CommitOutput{}, err
	}

	err = run.Step(ctx, "copy_stages_and_milestones", func(ctx context.Context) error {
		out.Stages = make([]StageView, 0, len(trees))
		for _, t := range trees {
			s := t.Stage
			s.ID = run.NewID()
			s.DraftTimelineID = ""
			s.CommittedTimelineID = out.Timeline.ID
			if err := tx.InsertStage(ctx, s); err != nil {
				return engine.StoreFailure("", err)
			}
			v := StageView{Stage: s, Milestones: make([]domain.Milestone, 0, len(t.Milestones))}
			for _, m := range t.Milestones {
				m.ID = run.NewID()
				m.StageID = s.ID
				m.IsCompleted = false
				m.CompletedAt = nil
				if err := tx.InsertMilestone(ctx, m); err != nil {
					return engine.StoreFailure("", err)
				}
				v.Milestones = append(v.Milestones, m)
			}
			out.Stages = append(out.Stages, v)
		}
		return nil
	})
	if err != nil {
		return CommitOutput{}, err
	}

	err = run.Step(ctx, "freeze_draft", func(ctx context.Context) error {
		if err := tx.DeactivateDraft(ctx, draft.ID, run.Now()); err != nil {
			if errors.Is(err, store.ErrConflict) {
				return invariant.DraftInactive(invariant.CommittedTimelineWithoutDraftRule, draft.ID)
			}
			return engine.StoreFailure("", err)
		}
		return run.Evidence(engine.Evidence{
			Source:     CommitName,
			Confidence: 100,
			Payload: engine.CommitSnapshot{
				CommittedTimelineID: out.Timeline.ID,
				DraftTimelineID:     draft.ID,
				VersionNumber:       version,
				StageCount:          len(out.Stages),
				MilestoneCount:      countMilestones(out.Stages),
			},
		})
	})
	if err != nil {
		return CommitOutput{}, err
	}
	return out, nil
}
