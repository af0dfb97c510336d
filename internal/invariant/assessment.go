package invariant

import (
	"strings"

	"github.com/roach88/phdtrack/internal/domain"
)

// Assessment submission bounds.
const (
	MinAssessmentResponses = 5
	MinResponseValue       = 1
	MaxResponseValue       = 5
)

// AssessmentSubmission checks a questionnaire submission before it is
// scored. It needs no store access.
func AssessmentSubmission(userID string, responses []domain.AssessmentResponse) error {
	if len(responses) < MinAssessmentResponses {
		return AssessmentWithoutSubmission(
			"insufficient responses (got "+itoa(len(responses))+", need at least "+itoa(MinAssessmentResponses)+")",
			map[string]string{
				"user_id":          userID,
				"responses_count":  itoa(len(responses)),
				"minimum_required": itoa(MinAssessmentResponses),
			})
	}

	seen := make(map[string]int, len(responses))
	for i, r := range responses {
		idx := itoa(i)
		if strings.TrimSpace(r.QuestionID) == "" {
			return AssessmentWithoutSubmission("response "+idx+" has no question id",
				map[string]string{"user_id": userID, "response_index": idx})
		}
		if prev, dup := seen[r.QuestionID]; dup {
			return AssessmentWithoutSubmission("question "+r.QuestionID+" answered more than once",
				map[string]string{
					"user_id":        userID,
					"question_id":    r.QuestionID,
					"response_index": idx,
					"first_index":    itoa(prev),
				})
		}
		seen[r.QuestionID] = i

		if !domain.IsKnownDimension(r.Dimension) {
			return AssessmentWithoutSubmission("unknown dimension "+string(r.Dimension),
				map[string]string{
					"user_id":     userID,
					"question_id": r.QuestionID,
					"dimension":   string(r.Dimension),
				})
		}
		if r.ResponseValue < MinResponseValue || r.ResponseValue > MaxResponseValue {
			return AssessmentWithoutSubmission("response value out of range for question "+r.QuestionID,
				map[string]string{
					"user_id":        userID,
					"question_id":    r.QuestionID,
					"response_value": itoa(r.ResponseValue),
				})
		}
	}
	return nil
}
