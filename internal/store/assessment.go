package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/roach88/phdtrack/internal/domain"
)

// InsertAssessment stores a scored journey assessment.
func (t *Tx) InsertAssessment(ctx context.Context, a domain.JourneyAssessment) error {
	scores, err := json.Marshal(a.DimensionScores)
	if err != nil {
		return fmt.Errorf("insert assessment: %w", err)
	}
	responses, err := json.Marshal(a.Responses)
	if err != nil {
		return fmt.Errorf("insert assessment: %w", err)
	}
	recs := a.Recommendations
	if recs == nil {
		recs = []string{}
	}
	recsJSON, err := json.Marshal(recs)
	if err != nil {
		return fmt.Errorf("insert assessment: %w", err)
	}

	_, err = t.exec(ctx, `
		INSERT INTO journey_assessments
		(id, user_id, submission_id, overall_score, health_status, dimension_scores,
		 responses, recommendations, notes, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, a.ID, a.UserID, a.SubmissionID, a.OverallScore, string(a.HealthStatus), string(scores),
		string(responses), string(recsJSON), a.Notes, formatTime(a.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert assessment: %w", err)
	}
	return nil
}

const assessmentColumns = `id, user_id, submission_id, overall_score, health_status, dimension_scores,
	responses, recommendations, notes, created_at`

func scanAssessment(row interface{ Scan(...any) error }) (domain.JourneyAssessment, error) {
	var (
		a                       domain.JourneyAssessment
		status                  string
		scores, responses, recs string
		created                 string
	)
	err := row.Scan(&a.ID, &a.UserID, &a.SubmissionID, &a.OverallScore, &status, &scores,
		&responses, &recs, &a.Notes, &created)
	if err != nil {
		return domain.JourneyAssessment{}, err
	}
	a.HealthStatus = domain.HealthStatus(status)
	if err := json.Unmarshal([]byte(scores), &a.DimensionScores); err != nil {
		return domain.JourneyAssessment{}, fmt.Errorf("assessment %s scores: %w", a.ID, err)
	}
	if err := json.Unmarshal([]byte(responses), &a.Responses); err != nil {
		return domain.JourneyAssessment{}, fmt.Errorf("assessment %s responses: %w", a.ID, err)
	}
	if err := json.Unmarshal([]byte(recs), &a.Recommendations); err != nil {
		return domain.JourneyAssessment{}, fmt.Errorf("assessment %s recommendations: %w", a.ID, err)
	}
	if a.CreatedAt, err = parseTime(created); err != nil {
		return domain.JourneyAssessment{}, err
	}
	return a, nil
}

// LatestAssessment returns the user's most recent assessment, or
// ErrNotFound.
func (r reader) LatestAssessment(ctx context.Context, userID string) (domain.JourneyAssessment, error) {
	a, err := scanAssessment(r.queryRow(ctx, `
		SELECT `+assessmentColumns+`
		FROM journey_assessments
		WHERE user_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`, userID))
	if err != nil {
		return domain.JourneyAssessment{}, notFound(err, "assessment for user", userID)
	}
	return a, nil
}

// AssessmentBySubmission returns the assessment scored for a submission,
// or ErrNotFound.
func (r reader) AssessmentBySubmission(ctx context.Context, userID, submissionID string) (domain.JourneyAssessment, error) {
	a, err := scanAssessment(r.queryRow(ctx, `
		SELECT `+assessmentColumns+`
		FROM journey_assessments
		WHERE user_id = ? AND submission_id = ?
	`, userID, submissionID))
	if err != nil {
		return domain.JourneyAssessment{}, notFound(err, "assessment for submission", submissionID)
	}
	return a, nil
}
