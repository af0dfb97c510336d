package invariant

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/roach88/phdtrack/internal/domain"
	"github.com/roach88/phdtrack/internal/engine"
	"github.com/roach88/phdtrack/internal/store"
)

// StageTree is a stage together with its milestones, in order.
type StageTree struct {
	Stage      domain.Stage
	Milestones []domain.Milestone
}

// MilestonePath is a committed milestone with the stage and timeline it
// resolves to.
type MilestonePath struct {
	Milestone domain.Milestone
	Stage     domain.Stage
	Timeline  domain.CommittedTimeline
}

// Evidence builds the invariant_check evidence recorded after a check
// passes.
func Evidence(rule string, subjects map[string]string) engine.Evidence {
	return engine.Evidence{
		Source:     "invariant." + rule,
		Confidence: 100,
		Payload: engine.InvariantCheck{
			Invariant: rule,
			Passed:    true,
			Subjects:  subjects,
		},
	}
}

// lookupFailed wraps an unexpected store error and passes typed errors
// through. The step stamps the operation.
func lookupFailed(err error) error {
	if _, ok := engine.AsError(err); ok {
		return err
	}
	return engine.StoreFailure("", err)
}

// UserExists loads the user or fails with USER_NOT_FOUND.
func UserExists(ctx context.Context, q UserGetter, userID string) (domain.User, error) {
	u, err := q.GetUser(ctx, userID)
	if err != nil {
		if store.IsNotFound(err) {
			return domain.User{}, UserNotFound(userID)
		}
		return domain.User{}, lookupFailed(err)
	}
	return u, nil
}

// BaselineOwned loads a baseline owned by userID.
func BaselineOwned(ctx context.Context, q Querier, userID, baselineID string) (domain.Baseline, error) {
	b, err := q.GetBaseline(ctx, baselineID)
	if err != nil {
		if store.IsNotFound(err) {
			return domain.Baseline{}, BaselineNotFound(baselineID, userID)
		}
		return domain.Baseline{}, lookupFailed(err)
	}
	if b.UserID != userID {
		return domain.Baseline{}, OwnershipViolation(UserOwnershipRule, "baseline", baselineID, b.UserID, userID)
	}
	return b, nil
}

// DocumentUnused fails with BASELINE_ALREADY_EXISTS when the document has
// already produced a baseline.
func DocumentUnused(ctx context.Context, q Querier, documentID string) error {
	b, err := q.BaselineByDocument(ctx, documentID)
	if err != nil {
		if store.IsNotFound(err) {
			return nil
		}
		return lookupFailed(err)
	}
	return BaselineAlreadyExists(documentID, b.ID)
}

// DraftCommittable checks, in order, that the draft exists, belongs to
// userID, has not been committed and is still active.
func DraftCommittable(ctx context.Context, q Querier, userID, draftID string) (domain.DraftTimeline, error) {
	if draftID == "" {
		return domain.DraftTimeline{}, CommittedTimelineWithoutDraft(draftID, userID)
	}
	d, err := q.GetDraftTimeline(ctx, draftID)
	if err != nil {
		if store.IsNotFound(err) {
			return domain.DraftTimeline{}, CommittedTimelineWithoutDraft(draftID, userID)
		}
		return domain.DraftTimeline{}, lookupFailed(err)
	}
	if d.UserID != userID {
		return domain.DraftTimeline{}, OwnershipViolation(CommittedTimelineWithoutDraftRule, "draft_timeline", draftID, d.UserID, userID)
	}

	existing, err := q.CommittedTimelineByDraft(ctx, draftID)
	switch {
	case err == nil:
		return domain.DraftTimeline{}, DraftAlreadyCommitted(draftID, existing.ID, userID)
	case !store.IsNotFound(err):
		return domain.DraftTimeline{}, lookupFailed(err)
	}

	if !d.IsActive {
		return domain.DraftTimeline{}, DraftInactive(CommittedTimelineWithoutDraftRule, draftID)
	}
	return d, nil
}

// DraftEditable loads an active draft owned by userID.
func DraftEditable(ctx context.Context, q Querier, userID, draftID string) (domain.DraftTimeline, error) {
	d, err := q.GetDraftTimeline(ctx, draftID)
	if err != nil {
		if store.IsNotFound(err) {
			e := CommittedTimelineWithoutDraft(draftID, userID)
			e.Invariant = TimelineImmutableRule
			e.Message = fmt.Sprintf("cannot edit timeline: draft timeline %s not found", draftID)
			return domain.DraftTimeline{}, e
		}
		return domain.DraftTimeline{}, lookupFailed(err)
	}
	if d.UserID != userID {
		return domain.DraftTimeline{}, OwnershipViolation(TimelineImmutableRule, "draft_timeline", draftID, d.UserID, userID)
	}
	if !d.IsActive {
		return domain.DraftTimeline{}, TimelineImmutable(draftID)
	}
	return d, nil
}

// TimelineComplete loads the draft's structure and checks it can be
// committed: at least one stage, every stage with at least one milestone,
// and no empty titles.
func TimelineComplete(ctx context.Context, q Querier, draftID string) ([]StageTree, error) {
	stages, err := q.StagesByDraft(ctx, draftID)
	if err != nil {
		return nil, lookupFailed(err)
	}
	if len(stages) == 0 {
		return nil, TimelineIncomplete(draftID, "has no stages", map[string]string{"stage_count": "0"})
	}

	trees := make([]StageTree, 0, len(stages))
	for _, s := range stages {
		if strings.TrimSpace(s.Title) == "" {
			return nil, TimelineIncomplete(draftID, "has a stage without a title",
				map[string]string{"stage_id": s.ID})
		}
		ms, err := q.MilestonesByStage(ctx, s.ID)
		if err != nil {
			return nil, lookupFailed(err)
		}
		if len(ms) == 0 {
			return nil, TimelineIncomplete(draftID, "has a stage without milestones",
				map[string]string{"stage_id": s.ID, "milestone_count": "0"})
		}
		for _, m := range ms {
			if strings.TrimSpace(m.Title) == "" {
				return nil, TimelineIncomplete(draftID, "has a milestone without a title",
					map[string]string{"stage_id": s.ID, "milestone_id": m.ID})
			}
		}
		trees = append(trees, StageTree{Stage: s, Milestones: ms})
	}
	return trees, nil
}

// MilestoneCommitted resolves a milestone through its stage to a committed
// timeline owned by userID.
func MilestoneCommitted(ctx context.Context, q Querier, userID, milestoneID string) (MilestonePath, error) {
	m, err := q.GetMilestone(ctx, milestoneID)
	if err != nil {
		if store.IsNotFound(err) {
			return MilestonePath{}, ProgressEventWithoutMilestone(engine.ErrCodeMilestoneNotFound,
				milestoneID, userID, "not found", map[string]string{"exists": "false"})
		}
		return MilestonePath{}, lookupFailed(err)
	}

	s, err := q.GetStage(ctx, m.StageID)
	if err != nil {
		if store.IsNotFound(err) {
			return MilestonePath{}, ProgressEventWithoutMilestone(engine.ErrCodeMilestoneNotFound,
				milestoneID, userID, "has no associated stage",
				map[string]string{"stage_id": m.StageID, "stage_exists": "false"})
		}
		return MilestonePath{}, lookupFailed(err)
	}
	if !s.IsCommitted() {
		return MilestonePath{}, ProgressEventWithoutMilestone(engine.ErrCodeMilestoneNotCommitted,
			milestoneID, userID, "is not in a committed timeline",
			map[string]string{"stage_id": s.ID, "draft_timeline_id": s.DraftTimelineID})
	}

	c, err := q.GetCommittedTimeline(ctx, s.CommittedTimelineID)
	if err != nil {
		if store.IsNotFound(err) {
			return MilestonePath{}, ProgressEventWithoutMilestone(engine.ErrCodeMilestoneNotCommitted,
				milestoneID, userID, "is not in a committed timeline",
				map[string]string{"stage_id": s.ID, "committed_timeline_id": s.CommittedTimelineID})
		}
		return MilestonePath{}, lookupFailed(err)
	}
	if c.UserID != userID {
		e := OwnershipViolation(ProgressEventWithoutMilestoneRule, "committed_timeline", c.ID, c.UserID, userID)
		e.Details["milestone_id"] = milestoneID
		return MilestonePath{}, e
	}
	return MilestonePath{Milestone: m, Stage: s, Timeline: c}, nil
}

// CommittedTimelineOwned loads a committed timeline owned by userID.
func CommittedTimelineOwned(ctx context.Context, q CommittedTimelineGetter, userID, committedID string) (domain.CommittedTimeline, error) {
	c, err := q.GetCommittedTimeline(ctx, committedID)
	if err != nil {
		if store.IsNotFound(err) {
			return domain.CommittedTimeline{}, AnalyticsWithoutCommittedTimeline(committedID, userID)
		}
		return domain.CommittedTimeline{}, lookupFailed(err)
	}
	if c.UserID != userID {
		return domain.CommittedTimeline{}, OwnershipViolation(AnalyticsWithoutCommittedTimelineRule,
			"committed_timeline", committedID, c.UserID, userID)
	}
	return c, nil
}

// Subjects is a small helper for evidence subject maps built from
// alternating key/value pairs. An odd trailing key is recorded with an
// empty value.
func Subjects(kv ...string) map[string]string {
	m := make(map[string]string, len(kv)/2+1)
	for i := 0; i < len(kv); i += 2 {
		v := ""
		if i+1 < len(kv) {
			v = kv[i+1]
		}
		m[kv[i]] = v
	}
	return m
}

func itoa(n int) string { return strconv.Itoa(n) }
