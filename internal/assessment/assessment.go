// Package assessment implements the journey-health assessment
// orchestrator. Scoring is deterministic: the same responses always yield
// the same scores, status and recommendations.
package assessment

import (
	"context"
	"strconv"

	"github.com/roach88/phdtrack/internal/catalog"
	"github.com/roach88/phdtrack/internal/domain"
	"github.com/roach88/phdtrack/internal/engine"
	"github.com/roach88/phdtrack/internal/invariant"
	"github.com/roach88/phdtrack/internal/store"
)

// Name is the orchestrator name recorded in the ledger and traces.
const Name = "assessment_orchestrator"

// Input is one questionnaire submission.
type Input struct {
	UserID       string                      `json:"user_id"`
	SubmissionID string                      `json:"submission_id"`
	Responses    []domain.AssessmentResponse `json:"responses"`
	Notes        string                      `json:"notes,omitempty"`
}

// Output is the persisted assessment.
type Output struct {
	Assessment domain.JourneyAssessment `json:"assessment"`
}

// Orchestrator is the Assessment pipeline.
type Orchestrator struct {
	runner  *engine.Runner
	catalog *catalog.Catalog
}

// New returns an Assessment orchestrator.
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
		return invariant.ValidInput(o.catalog, catalog.DefAssessmentInput, in)
	})
	if err != nil {
		return Output{}, err
	}

	err = run.Step(ctx, "validate_submission", func(ctx context.Context) error {
		if _, err := invariant.UserExists(ctx, tx, in.UserID); err != nil {
			return err
		}
		if err := invariant.AssessmentSubmission(in.UserID, in.Responses); err != nil {
			return err
		}
		existing, err := tx.AssessmentBySubmission(ctx, in.UserID, in.SubmissionID)
		switch {
		case err == nil:
			return invariant.AssessmentWithoutSubmission("submission "+in.SubmissionID+" was already scored",
				map[string]string{
					"user_id":                in.UserID,
					"submission_id":          in.SubmissionID,
					"existing_assessment_id": existing.ID,
				})
		case !store.IsNotFound(err):
			return engine.StoreFailure("", err)
		}
		return run.Evidence(invariant.Evidence(invariant.AssessmentWithoutSubmissionRule,
			invariant.Subjects(
				"user_id", in.UserID,
				"submission_id", in.SubmissionID,
				"responses_count", strconv.Itoa(len(in.Responses)),
			)))
	})
	if err != nil {
		return Output{}, err
	}

	a := domain.JourneyAssessment{
		UserID:       in.UserID,
		SubmissionID: in.SubmissionID,
		Responses:    in.Responses,
		Notes:        in.Notes,
	}

	err = run.Step(ctx, "compute_dimension_scores", func(ctx context.Context) error {
		a.DimensionScores = DimensionScores(in.Responses)
		return nil
	})
	if err != nil {
		return Output{}, err
	}

	err = run.Step(ctx, "compute_overall_score", func(ctx context.Context) error {
		a.OverallScore = OverallScore(a.DimensionScores)
		return nil
	})
	if err != nil {
		return Output{}, err
	}

	err = run.Step(ctx, "classify_health", func(ctx context.Context) error {
		a.HealthStatus = domain.ClassifyHealth(a.OverallScore)
		return nil
	})
	if err != nil {
		return Output{}, err
	}

	err = run.Step(ctx, "generate_recommendations", func(ctx context.Context) error {
		a.Recommendations = Recommendations(a.DimensionScores)
		return nil
	})
	if err != nil {
		return Output{}, err
	}

	err = run.Step(ctx, "persist_assessment", func(ctx context.Context) error {
		a.ID = run.NewID()
		a.CreatedAt = run.Now()
		if err := tx.InsertAssessment(ctx, a); err != nil {
			return engine.StoreFailure("", err)
		}
		scores := make(map[string]int, len(a.DimensionScores))
		for d, s := range a.DimensionScores {
			scores[string(d)] = s
		}
		return run.Evidence(engine.Evidence{
			Source:     Name,
			Confidence: 100,
			Payload: engine.AssessmentScores{
				AssessmentID:    a.ID,
				OverallScore:    a.OverallScore,
				HealthStatus:    string(a.HealthStatus),
				DimensionScores: scores,
			},
		})
	})
	if err != nil {
		return Output{}, err
	}
	return Output{Assessment: a}, nil
}
