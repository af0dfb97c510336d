package assessment

import (
	"sort"

	"github.com/roach88/phdtrack/internal/domain"
)

// RecommendationThreshold is the dimension score below which a
// recommendation is produced.
const RecommendationThreshold = 50

// weights are in tenths; a dimension missing here weighs 10.
var weights = map[domain.Dimension]int{
	domain.DimensionResearchProgress:       12,
	domain.DimensionMentalWellbeing:        13,
	domain.DimensionSupervisorRelationship: 11,
	domain.DimensionWorkLifeBalance:        10,
	domain.DimensionAcademicConfidence:     10,
	domain.DimensionTimeManagement:         9,
	domain.DimensionMotivation:             11,
	domain.DimensionSupportNetwork:         10,
}

var recommendationTitles = map[domain.Dimension]string{
	domain.DimensionResearchProgress:       "Improve research progress: break goals into smaller tasks and review the timeline with your supervisor",
	domain.DimensionMentalWellbeing:        "Prioritize mental well-being: establish self-care routines and contact university support services",
	domain.DimensionSupervisorRelationship: "Strengthen the supervisor relationship: schedule regular one-on-one meetings and state expectations clearly",
	domain.DimensionWorkLifeBalance:        "Improve work-life balance: set boundaries for work hours and schedule time off",
	domain.DimensionAcademicConfidence:     "Build academic confidence: record small wins and join a peer support group",
	domain.DimensionTimeManagement:         "Enhance time management: block focused time and review the schedule weekly",
	domain.DimensionMotivation:             "Boost motivation: set short-term goals and reconnect with the purpose of the research",
	domain.DimensionSupportNetwork:         "Strengthen the support network: connect with peers and mentors outside the lab",
}

// DimensionScores maps each answered dimension to the rounded mean of
// (v-1)*100/4 over its responses.
func DimensionScores(responses []domain.AssessmentResponse) map[domain.Dimension]int {
	sums := map[domain.Dimension]int{}
	counts := map[domain.Dimension]int{}
	for _, r := range responses {
		sums[r.Dimension] += r.ResponseValue - 1
		counts[r.Dimension]++
	}
	scores := make(map[domain.Dimension]int, len(sums))
	for d, s := range sums {
		n := counts[d]
		// round(100*s / 4n), half up
		scores[d] = (100*s + 2*n) / (4 * n)
	}
	return scores
}

// OverallScore is the weighted mean of the dimension scores, rounded half
// up. It is 0 for an empty map.
func OverallScore(scores map[domain.Dimension]int) int {
	total, weight := 0, 0
	for d, s := range scores {
		w, ok := weights[d]
		if !ok {
			w = 10
		}
		total += s * w
		weight += w
	}
	if weight == 0 {
		return 0
	}
	return (2*total + weight) / (2 * weight)
}

// Recommendations returns one entry per dimension scoring below
// RecommendationThreshold, critical dimensions first, then in reporting
// order.
func Recommendations(scores map[domain.Dimension]int) []string {
	type rec struct {
		priority int
		order    int
		text     string
	}
	var recs []rec
	for i, d := range domain.Dimensions {
		s, ok := scores[d]
		if !ok || s >= RecommendationThreshold {
			continue
		}
		priority, label := 1, "medium"
		if domain.ClassifyHealth(s) == domain.HealthCritical {
			priority, label = 0, "high"
		}
		recs = append(recs, rec{priority: priority, order: i, text: "[" + label + "] " + recommendationTitles[d]})
	}
	sort.SliceStable(recs, func(i, j int) bool {
		if recs[i].priority != recs[j].priority {
			return recs[i].priority < recs[j].priority
		}
		return recs[i].order < recs[j].order
	})
	out := make([]string, len(recs))
	for i, r := range recs {
		out[i] = r.text
	}
	return out
}
