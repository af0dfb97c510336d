package analytics_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/phdtrack/internal/analytics"
	"github.com/roach88/phdtrack/internal/catalog"
	"github.com/roach88/phdtrack/internal/domain"
	"github.com/roach88/phdtrack/internal/engine"
	"github.com/roach88/phdtrack/internal/guard"
	"github.com/roach88/phdtrack/internal/store"
	"github.com/roach88/phdtrack/internal/testutil"
)

var afterTargets = time.Date(2027, 1, 10, 12, 0, 0, 0, time.UTC)

// seed writes u-1 with d-1 (stages [2,1]) committed as ct-1 version 3,
// one completed milestone, two progress events and one assessment.
func seed(t *testing.T) *store.Store {
	t.Helper()
	ctx := context.Background()
	s := testutil.OpenStore(t)
	testutil.SeedUser(t, s, "u-1")
	testutil.SeedUser(t, s, "u-2")
	testutil.SeedBaseline(t, s, "u-1", "b-1")
	d := testutil.SeedDraft(t, s, testutil.DraftSpec{ID: "d-1", UserID: "u-1", BaselineID: "b-1", Stages: []int{2, 1}})
	testutil.SeedCommit(t, s, d, "ct-1", 3)

	require.NoError(t, s.InTx(ctx, func(tx *store.Tx) error {
		if _, err := tx.MarkMilestoneCompleted(ctx, "ct-1-s1-m1", testutil.Epoch); err != nil {
			return err
		}
		for id, date := range map[string]string{"pe-1": "2026-02-01", "pe-2": "2026-04-20"} {
			err := tx.InsertProgressEvent(ctx, domain.ProgressEvent{
				ID:          id,
				UserID:      "u-1",
				MilestoneID: "ct-1-s1-m1",
				EventType:   "note",
				Title:       "Event",
				EventDate:   date,
				ImpactLevel: "low",
				CreatedAt:   testutil.Epoch,
			})
			if err != nil {
				return err
			}
		}
		return tx.InsertAssessment(ctx, domain.JourneyAssessment{
			ID:              "ja-1",
			UserID:          "u-1",
			SubmissionID:    "sub-1",
			OverallScore:    72,
			HealthStatus:    domain.HealthGood,
			DimensionScores: map[domain.Dimension]int{domain.DimensionMotivation: 72},
			Responses:       []domain.AssessmentResponse{{Dimension: domain.DimensionMotivation, QuestionID: "q1", ResponseValue: 4}},
			CreatedAt:       testutil.Epoch,
		})
	}))
	return s
}

func newOrchestrator(t *testing.T, s *store.Store, opts ...analytics.Option) *analytics.Orchestrator {
	t.Helper()
	cat, err := catalog.Default()
	require.NoError(t, err)
	r := engine.NewRunner(s,
		engine.WithClock(testutil.NewDeterministicClockAt(afterTargets, time.Millisecond)),
		engine.WithIDGenerator(engine.NewSequenceGenerator("id")),
	)
	return analytics.New(r, cat, opts...)
}

func TestSummarize(t *testing.T) {
	stages := []domain.Stage{
		{ID: "s1", Title: "One", StageType: domain.StageResearch},
		{ID: "s2", Title: "Two", StageType: domain.StageWriting},
		{ID: "s3", Title: "Empty", StageType: domain.StageDefense},
	}
	milestones := []domain.Milestone{
		{ID: "m1", StageID: "s1", IsCompleted: true, TargetDate: "2026-01-01"},
		{ID: "m2", StageID: "s1", TargetDate: "2026-05-31", IsCritical: true},
		{ID: "m3", StageID: "s2", TargetDate: "2026-06-01"},
		{ID: "m4", StageID: "s2"},
	}
	got := analytics.Summarize(analytics.Inputs{
		Stages:     stages,
		Milestones: milestones,
		Events:     []domain.ProgressEvent{{EventDate: "2026-03-01"}, {EventDate: "2026-02-01"}},
		Today:      "2026-06-01",
	})

	assert.Equal(t, 3, got.TotalStages)
	assert.Equal(t, 4, got.TotalMilestones)
	assert.Equal(t, 1, got.CompletedMilestones)
	assert.Equal(t, 25, got.CompletionPercent)
	assert.Equal(t, 1, got.OverdueMilestones, "target date equal to today is not overdue")
	assert.Equal(t, 1, got.CriticalOutstanding)
	assert.Equal(t, 2, got.ProgressEvents)
	assert.Equal(t, "2026-03-01", got.LastProgressEventAt)
	assert.Nil(t, got.LatestHealthScore)
	require.Len(t, got.StageCompletion, 3)
	assert.Equal(t, 50, got.StageCompletion[0].CompletionPercent)
	assert.Equal(t, 0, got.StageCompletion[2].Milestones)
	assert.Equal(t, 0, got.StageCompletion[2].CompletionPercent)
}

func TestAnalytics_Snapshot(t *testing.T) {
	s := seed(t)
	o := newOrchestrator(t, s)
	ctx := context.Background()
	before := testutil.BusinessCounts(t, s)

	out, err := o.Execute(ctx, "an-1", analytics.Input{UserID: "u-1", CommittedTimelineID: "ct-1"})
	require.NoError(t, err)

	snap := out.Value.Snapshot
	assert.Equal(t, 3, snap.TimelineVersion)
	sum := snap.Summary
	assert.Equal(t, 2, sum.TotalStages)
	assert.Equal(t, 3, sum.TotalMilestones)
	assert.Equal(t, 1, sum.CompletedMilestones)
	assert.Equal(t, 33, sum.CompletionPercent)
	assert.Equal(t, 2, sum.OverdueMilestones)
	assert.Equal(t, 2, sum.ProgressEvents)
	assert.Equal(t, "2026-04-20", sum.LastProgressEventAt)
	require.NotNil(t, sum.LatestHealthScore)
	assert.Equal(t, 72, *sum.LatestHealthScore)
	assert.Equal(t, domain.HealthGood, sum.LatestHealthStatus)

	after := testutil.BusinessCounts(t, s)
	assert.Equal(t, before["analytics_snapshots"]+1, after["analytics_snapshots"])
	delete(before, "analytics_snapshots")
	delete(after, "analytics_snapshots")
	assert.Equal(t, before, after, "analytics writes nothing but the snapshot")

	tr, err := s.GetTrace(ctx, out.TraceID)
	require.NoError(t, err)
	require.NoError(t, engine.ValidateTrace(tr))
	kinds := map[string]int{}
	for _, ev := range tr.Evidence {
		kinds[ev.Kind]++
	}
	assert.Equal(t, 1, kinds[string(engine.EvidenceAccessLog)])
	assert.Equal(t, 1, kinds[string(engine.EvidenceAnalyticsAggregate)])
	last := tr.Steps[len(tr.Steps)-1]
	assert.Equal(t, "verify_read_only_contract", last.Action)
}

func TestAnalytics_RerunAppendsSnapshot(t *testing.T) {
	s := seed(t)
	o := newOrchestrator(t, s)
	ctx := context.Background()
	in := analytics.Input{UserID: "u-1", CommittedTimelineID: "ct-1"}

	first, err := o.Execute(ctx, "an-1", in)
	require.NoError(t, err)
	replay, err := o.Execute(ctx, "an-1", in)
	require.NoError(t, err)
	assert.True(t, replay.Cached)

	second, err := o.Execute(ctx, "an-2", in)
	require.NoError(t, err)
	assert.NotEqual(t, first.Value.Snapshot.ID, second.Value.Snapshot.ID)

	snaps, err := s.SnapshotsByCommitted(ctx, "ct-1")
	require.NoError(t, err)
	require.Len(t, snaps, 2)
	assert.Equal(t, first.Value.Snapshot.ID, snaps[0].ID)
	assert.Equal(t, snaps[0].Summary, snaps[1].Summary)
}

func TestAnalytics_Rejections(t *testing.T) {
	tests := []struct {
		name string
		in   analytics.Input
		code engine.ErrorCode
	}{
		{"missing timeline", analytics.Input{UserID: "u-1", CommittedTimelineID: "ct-404"}, engine.ErrCodeAnalyticsWithoutCommitted},
		{"draft id is not a committed timeline", analytics.Input{UserID: "u-1", CommittedTimelineID: "d-1"}, engine.ErrCodeAnalyticsWithoutCommitted},
		{"foreign timeline", analytics.Input{UserID: "u-2", CommittedTimelineID: "ct-1"}, engine.ErrCodeOwnershipViolation},
		{"unknown user", analytics.Input{UserID: "ghost", CommittedTimelineID: "ct-1"}, engine.ErrCodeUserNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := seed(t)
			o := newOrchestrator(t, s)
			before := testutil.BusinessCounts(t, s)

			_, err := o.Execute(context.Background(), "an-1", tt.in)
			require.Error(t, err)
			assert.True(t, engine.HasCode(err, tt.code), "%v", err)
			assert.Equal(t, before, testutil.BusinessCounts(t, s))
		})
	}
}

func TestAnalytics_ReadOnlyViolation(t *testing.T) {
	readable := []domain.EntityKind{
		domain.KindUser,
		domain.KindCommittedTimeline,
		domain.KindTimelineStage,
		domain.KindTimelineMilestone,
		domain.KindProgressEvent,
		domain.KindJourneyAssessment,
	}
	tests := []struct {
		name   string
		policy guard.Policy
		op     string
		want   string
	}{
		{
			name:   "snapshot write not allowed",
			policy: guard.NewPolicy("analytics", readable, nil),
			op:     "analytics_orchestrator.persist_snapshot",
			want:   "write:analytics_snapshot",
		},
		{
			name:   "progress read not allowed",
			policy: guard.NewPolicy("analytics", readable[:4], []domain.EntityKind{domain.KindAnalyticsSnapshot}),
			op:     "analytics_orchestrator.load_progress_events",
			want:   "read:progress_event",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := seed(t)
			o := newOrchestrator(t, s, analytics.WithPolicy(tt.policy))
			before := testutil.BusinessCounts(t, s)

			_, err := o.Execute(context.Background(), "an-1", analytics.Input{UserID: "u-1", CommittedTimelineID: "ct-1"})
			require.Error(t, err)
			e, ok := engine.AsError(err)
			require.True(t, ok)
			assert.Equal(t, engine.ErrCodeReadOnlyViolation, e.Code)
			assert.Equal(t, engine.KindContract, e.Kind)
			assert.Equal(t, tt.op, e.Operation)
			assert.Equal(t, tt.want, e.Details["violations"])

			assert.Equal(t, before, testutil.BusinessCounts(t, s))
			assert.Zero(t, testutil.BusinessCounts(t, s)["analytics_snapshots"])
			assert.Equal(t, 1, testutil.TraceCounts(t, s)[domain.StatusFailed])
		})
	}
}
