package timeline

import (
	"context"
	"strings"

	"github.com/roach88/phdtrack/internal/catalog"
	"github.com/roach88/phdtrack/internal/collab"
	"github.com/roach88/phdtrack/internal/domain"
	"github.com/roach88/phdtrack/internal/engine"
	"github.com/roach88/phdtrack/internal/invariant"
	"github.com/roach88/phdtrack/internal/store"
)

// GenerateInput asks for a draft timeline for a baseline.
type GenerateInput struct {
	UserID     string `json:"user_id"`
	BaselineID string `json:"baseline_id"`
	Title      string `json:"title,omitempty"`
}

// GenerateOutput is the persisted draft.
type GenerateOutput struct {
	Draft     domain.DraftTimeline `json:"draft"`
	Stages    []StageView          `json:"stages"`
	Generator string               `json:"generator"`
}

// Generator is the Timeline.generate pipeline.
type Generator struct {
	runner    *engine.Runner
	catalog   *catalog.Catalog
	generator collab.ContentGenerator
}

// Name implements engine.Pipeline.
func (g *Generator) Name() string { return GenerateName }

// Execute runs the pipeline under the request id.
func (g *Generator) Execute(ctx context.Context, requestID string, in GenerateInput) (*engine.Outcome[GenerateOutput], error) {
	return engine.Execute[GenerateInput, GenerateOutput](ctx, g.runner, g, requestID, in)
}

// Run implements engine.Pipeline.
func (g *Generator) Run(ctx context.Context, run *engine.Run, in GenerateInput) (GenerateOutput, error) {
	tx := run.Tx()

	err := run.Step(ctx, "validate_input", func(ctx context.Context) error {
		return invariant.ValidInput(g.catalog, catalog.DefGenerateInput, in)
	})
	if err != nil {
		return GenerateOutput{}, err
	}

	var base domain.Baseline
	err = run.Step(ctx, "validate_baseline", func(ctx context.Context) error {
		b, err := invariant.BaselineOwned(ctx, tx, in.UserID, in.BaselineID)
		if err != nil {
			return err
		}
		base = b
		return run.Evidence(invariant.Evidence(invariant.UserOwnershipRule,
			invariant.Subjects("baseline_id", b.ID, "user_id", in.UserID)))
	})
	if err != nil {
		return GenerateOutput{}, err
	}

	var text string
	err = run.Step(ctx, "load_document_text", func(ctx context.Context) error {
		parts := []string{base.ProgramName, base.FieldOfStudy, base.RequirementsSummary}
		if base.DocumentID != "" {
			doc, err := tx.GetDocument(ctx, base.DocumentID)
			if err != nil && !store.IsNotFound(err) {
				return engine.StoreFailure("", err)
			}
			parts = append(parts, doc.ExtractedText)
		}
		text = strings.TrimSpace(strings.Join(parts, "\n"))
		return nil
	})
	if err != nil {
		return GenerateOutput{}, err
	}

	var proposals []collab.StageProposal
	err = run.Step(ctx, "propose_stages", func(ctx context.Context) error {
		p, err := g.generator.Propose(ctx, collab.Proposal{Baseline: base, DocumentText: text})
		if err != nil {
			return err
		}
		proposals = p

		types := make([]string, len(p))
		milestones := 0
		detected := ""
		for i, s := range p {
			types[i] = s.StageType
			milestones += len(s.Milestones)
			if detected == "" {
				detected = s.DetectedFrom
			}
		}
		return run.Evidence(engine.Evidence{
			Source:     "collab." + g.generator.Name(),
			Confidence: 100,
			Payload: engine.StageProposal{
				Generator:      g.generator.Name(),
				StageTypes:     types,
				StageCount:     len(p),
				MilestoneCount: milestones,
				DetectedFrom:   detected,
			},
		})
	})
	if err != nil {
		return GenerateOutput{}, err
	}

	resolved := make([]domain.StageType, len(proposals))
	err = run.Step(ctx, "validate_stage_types", func(ctx context.Context) error {
		for i, p := range proposals {
			st, err := invariant.KnownStageType(g.catalog, p.StageType, i)
			if err != nil {
				return err
			}
			resolved[i] = st
		}
		return nil
	})
	if err != nil {
		return GenerateOutput{}, err
	}

	var out GenerateOutput
	err = run.Step(ctx, "assemble_draft", func(ctx context.Context) error {
		now := run.Now()
		title := strings.TrimSpace(in.Title)
		if title == "" {
			title = base.ProgramName + " timeline"
		}
		out = GenerateOutput{
			Draft: domain.DraftTimeline{
				ID:         run.NewID(),
				UserID:     in.UserID,
				BaselineID: base.ID,
				Title:      title,
				IsActive:   true,
				CreatedAt:  now,
				UpdatedAt:  now,
			},
			Stages:    make([]StageView, 0, len(proposals)),
			Generator: g.generator.Name(),
		}
		for i, p := range proposals {
			months := p.DurationMonths
			if months <= 0 {
				months = g.catalog.DefaultDuration(resolved[i])
			}
			if months <= 0 {
				months = 1
			}
			v := StageView{
				Stage: domain.Stage{
					ID:              run.NewID(),
					DraftTimelineID: out.Draft.ID,
					Title:           p.Title,
					Description:     p.Description,
					StageType:       resolved[i],
					Order:           i + 1,
					DurationMonths:  months,
				},
				Milestones: make([]domain.Milestone, 0, len(p.Milestones)),
			}
			for j, m := range p.Milestones {
				v.Milestones = append(v.Milestones, domain.Milestone{
					ID:          run.NewID(),
					StageID:     v.ID,
					Title:       m.Title,
					Description: m.Description,
					Order:       j + 1,
					TargetDate:  m.TargetDate,
					IsCritical:  m.IsCritical,
				})
			}
			out.Stages = append(out.Stages, v)
		}
		return nil
	})
	if err != nil {
		return GenerateOutput{}, err
	}

	err = run.Step(ctx, "persist_draft", func(ctx context.Context) error {
		if err := tx.InsertDraftTimeline(ctx, out.Draft); err != nil {
			return engine.StoreFailure("", err)
		}
		for _, v := range out.Stages {
			if err := tx.InsertStage(ctx, v.Stage); err != nil {
				return engine.StoreFailure("", err)
			}
			for _, m := range v.Milestones {
				if err := tx.InsertMilestone(ctx, m); err != nil {
					return engine.StoreFailure("", err)
				}
			}
		}
		return nil
	})
	if err != nil {
		return GenerateOutput{}, err
	}
	return out, nil
}
