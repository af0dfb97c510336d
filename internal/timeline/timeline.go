// Package timeline implements the timeline orchestrators: generating a
// draft from a baseline, editing an active draft, and committing a draft
// into an immutable, versioned timeline.
package timeline

import (
	"context"

	"github.com/roach88/phdtrack/internal/catalog"
	"github.com/roach88/phdtrack/internal/collab"
	"github.com/roach88/phdtrack/internal/domain"
	"github.com/roach88/phdtrack/internal/engine"
	"github.com/roach88/phdtrack/internal/invariant"
)

// Orchestrator names recorded in the ledger and traces.
const (
	GenerateName = "timeline_generate"
	CommitName   = "timeline_commit"
	EditName     = "timeline_edit"
)

// StageView is a stage with its milestones, as returned by every timeline
// orchestrator.
type StageView struct {
	domain.Stage
	Milestones []domain.Milestone `json:"milestones"`
}

// Service bundles the three timeline pipelines over one runner.
type Service struct {
	Generate *Generator
	Commit   *Committer
	Edit     *Editor
}

// NewService wires the timeline pipelines.
func NewService(r *engine.Runner, cat *catalog.Catalog, gen collab.ContentGenerator) *Service {
	return &Service{
		Generate: &Generator{runner: r, catalog: cat, generator: gen},
		Commit:   &Committer{runner: r, catalog: cat},
		Edit:     &Editor{runner: r, catalog: cat},
	}
}

// loadDraftViews reads the current structure of a draft.
func loadDraftViews(ctx context.Context, q invariant.Querier, draftID string) ([]StageView, error) {
	stages, err := q.StagesByDraft(ctx, draftID)
	if err != nil {
		return nil, engine.StoreFailure("", err)
	}
	out := make([]StageView, 0, len(stages))
	for _, s := range stages {
		ms, err := q.MilestonesByStage(ctx, s.ID)
		if err != nil {
			return nil, engine.StoreFailure("", err)
		}
		if ms == nil {
			ms = []domain.Milestone{}
		}
		out = append(out, StageView{Stage: s, Milestones: ms})
	}
	return out, nil
}

func countMilestones(vs []StageView) int {
	n := 0
	for _, v := range vs {
		n += len(v.Milestones)
	}
	return n
}
