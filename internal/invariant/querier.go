package invariant

import (
	"context"

	"github.com/roach88/phdtrack/internal/domain"
)

// Querier is the read surface the checks need. *store.Tx and *store.Store
// both implement it.
type Querier interface {
	GetUser(ctx context.Context, id string) (domain.User, error)
	GetBaseline(ctx context.Context, id string) (domain.Baseline, error)
	BaselineByDocument(ctx context.Context, documentID string) (domain.Baseline, error)
	GetDraftTimeline(ctx context.Context, id string) (domain.DraftTimeline, error)
	CommittedTimelineByDraft(ctx context.Context, draftID string) (domain.CommittedTimeline, error)
	GetCommittedTimeline(ctx context.Context, id string) (domain.CommittedTimeline, error)
	GetStage(ctx context.Context, id string) (domain.Stage, error)
	StagesByDraft(ctx context.Context, draftID string) ([]domain.Stage, error)
	GetMilestone(ctx context.Context, id string) (domain.Milestone, error)
	MilestonesByStage(ctx context.Context, stageID string) ([]domain.Milestone, error)
}

// UserGetter is the single lookup UserExists needs.
type UserGetter interface {
	GetUser(ctx context.Context, id string) (domain.User, error)
}

// CommittedTimelineGetter is the single lookup CommittedTimelineOwned needs.
type CommittedTimelineGetter interface {
	GetCommittedTimeline(ctx context.Context, id string) (domain.CommittedTimeline, error)
}
