package collab

import (
	"context"
	"slices"

	"github.com/roach88/phdtrack/internal/domain"
)

// Proposal is what a content generator works from.
type Proposal struct {
	Baseline     domain.Baseline
	DocumentText string
}

// MilestoneProposal is one proposed milestone.
type MilestoneProposal struct {
	Title       string `json:"title" yaml:"title"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	TargetDate  string `json:"target_date,omitempty" yaml:"target_date,omitempty"`
	IsCritical  bool   `json:"is_critical,omitempty" yaml:"is_critical,omitempty"`
}

// StageProposal is one proposed stage.
//
// StageType is the generator's raw category. It is not trusted: the
// orchestrator resolves it against the catalog and rejects unknown values.
type StageProposal struct {
	Title          string              `json:"title" yaml:"title"`
	Description    string              `json:"description,omitempty" yaml:"description,omitempty"`
	StageType      string              `json:"stage_type" yaml:"stage_type"`
	DurationMonths int                 `json:"duration_months" yaml:"duration_months"`
	DetectedFrom   string              `json:"detected_from,omitempty" yaml:"detected_from,omitempty"`
	Milestones     []MilestoneProposal `json:"milestones" yaml:"milestones"`
}

// ContentGenerator proposes an ordered timeline for a baseline.
type ContentGenerator interface {
	Name() string
	Propose(ctx context.Context, p Proposal) ([]StageProposal, error)
}

// StaticGenerator returns a fixed proposal. Scenarios and tests use it to
// drive the orchestrators with known, possibly invalid, structures.
type StaticGenerator struct {
	Stages []StageProposal
	Err    error
}

// Name implements ContentGenerator.
func (g *StaticGenerator) Name() string { return "static" }

// Propose implements ContentGenerator.
func (g *StaticGenerator) Propose(ctx context.Context, _ Proposal) ([]StageProposal, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if g.Err != nil {
		return nil, g.Err
	}
	out := make([]StageProposal, len(g.Stages))
	for i, s := range g.Stages {
		s.Milestones = slices.Clone(s.Milestones)
		if s.DetectedFrom == "" {
			s.DetectedFrom = "static"
		}
		out[i] = s
	}
	return out, nil
}
