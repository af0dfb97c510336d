package analytics

import (
	"context"

	"github.com/roach88/phdtrack/internal/domain"
	"github.com/roach88/phdtrack/internal/guard"
)

// Source is the store surface the pipeline needs. *store.Tx implements it.
type Source interface {
	GetUser(ctx context.Context, id string) (domain.User, error)
	GetCommittedTimeline(ctx context.Context, id string) (domain.CommittedTimeline, error)
	StagesByCommitted(ctx context.Context, committedID string) ([]domain.Stage, error)
	MilestonesByCommitted(ctx context.Context, committedID string) ([]domain.Milestone, error)
	ProgressEventsByCommitted(ctx context.Context, committedID string) ([]domain.ProgressEvent, error)
	LatestAssessment(ctx context.Context, userID string) (domain.JourneyAssessment, error)
	InsertAnalyticsSnapshot(ctx context.Context, s domain.AnalyticsSnapshot) error
}

// trackedSource is the only handle Run gets on the store. Each method
// declares the kind it touches to the guard before delegating, so the
// declared access always matches the real one.
type trackedSource struct {
	g   *guard.Guard
	src Source
}

func track(g *guard.Guard, src Source) *trackedSource {
	return &trackedSource{g: g, src: src}
}

func (t *trackedSource) GetUser(ctx context.Context, id string) (domain.User, error) {
	return guard.Load(t.g, domain.KindUser, func() (domain.User, error) {
		return t.src.GetUser(ctx, id)
	})
}

func (t *trackedSource) GetCommittedTimeline(ctx context.Context, id string) (domain.CommittedTimeline, error) {
	return guard.Load(t.g, domain.KindCommittedTimeline, func() (domain.CommittedTimeline, error) {
		return t.src.GetCommittedTimeline(ctx, id)
	})
}

func (t *trackedSource) StagesByCommitted(ctx context.Context, committedID string) ([]domain.Stage, error) {
	return guard.Load(t.g, domain.KindTimelineStage, func() ([]domain.Stage, error) {
		return t.src.StagesByCommitted(ctx, committedID)
	})
}

func (t *trackedSource) MilestonesByCommitted(ctx context.Context, committedID string) ([]domain.Milestone, error) {
	return guard.Load(t.g, domain.KindTimelineMilestone, func() ([]domain.Milestone, error) {
		return t.src.MilestonesByCommitted(ctx, committedID)
	})
}

func (t *trackedSource) ProgressEventsByCommitted(ctx context.Context, committedID string) ([]domain.ProgressEvent, error) {
	return guard.Load(t.g, domain.KindProgressEvent, func() ([]domain.ProgressEvent, error) {
		return t.src.ProgressEventsByCommitted(ctx, committedID)
	})
}

func (t *trackedSource) LatestAssessment(ctx context.Context, userID string) (domain.JourneyAssessment, error) {
	return guard.Load(t.g, domain.KindJourneyAssessment, func() (domain.JourneyAssessment, error) {
		return t.src.LatestAssessment(ctx, userID)
	})
}

func (t *trackedSource) InsertAnalyticsSnapshot(ctx context.Context, s domain.AnalyticsSnapshot) error {
	return guard.Store(t.g, domain.KindAnalyticsSnapshot, func() error {
		return t.src.InsertAnalyticsSnapshot(ctx, s)
	})
}

var _ Source = (*trackedSource)(nil)
