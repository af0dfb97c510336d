package analytics

import (
	"github.com/roach88/phdtrack/internal/domain"
)

// Inputs is everything the aggregation reads.
type Inputs struct {
	Stages     []domain.Stage
	Milestones []domain.Milestone
	Events     []domain.ProgressEvent
	Assessment *domain.JourneyAssessment
	// Today is the clock date in domain.DateLayout. A milestone is overdue
	// when it is open and its target date is strictly before Today.
	Today string
}

// Summarize aggregates a committed timeline. It is a pure function of its
// inputs.
func Summarize(in Inputs) domain.AnalyticsSummary {
	s := domain.AnalyticsSummary{
		TotalStages:     len(in.Stages),
		TotalMilestones: len(in.Milestones),
		ProgressEvents:  len(in.Events),
		StageCompletion: make([]domain.StageSummary, 0, len(in.Stages)),
	}

	byStage := make(map[string][]domain.Milestone, len(in.Stages))
	for _, m := range in.Milestones {
		byStage[m.StageID] = append(byStage[m.StageID], m)
		switch {
		case m.IsCompleted:
			s.CompletedMilestones++
		default:
			if m.TargetDate != "" && m.TargetDate < in.Today {
				s.OverdueMilestones++
			}
			if m.IsCritical {
				s.CriticalOutstanding++
			}
		}
	}
	s.CompletionPercent = percent(s.CompletedMilestones, s.TotalMilestones)

	for _, st := range in.Stages {
		ms := byStage[st.ID]
		done := 0
		for _, m := range ms {
			if m.IsCompleted {
				done++
			}
		}
		s.StageCompletion = append(s.StageCompletion, domain.StageSummary{
			StageID:           st.ID,
			Title:             st.Title,
			StageType:         st.StageType,
			Milestones:        len(ms),
			Completed:         done,
			CompletionPercent: percent(done, len(ms)),
		})
	}

	for _, e := range in.Events {
		if e.EventDate > s.LastProgressEventAt {
			s.LastProgressEventAt = e.EventDate
		}
	}

	if in.Assessment != nil {
		score := in.Assessment.OverallScore
		s.LatestHealthScore = &score
		s.LatestHealthStatus = in.Assessment.HealthStatus
	}
	return s
}

func percent(n, total int) int {
	if total == 0 {
		return 0
	}
	return n * 100 / total
}
