package harness_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/phdtrack/internal/analytics"
	"github.com/roach88/phdtrack/internal/catalog"
	"github.com/roach88/phdtrack/internal/collab"
	"github.com/roach88/phdtrack/internal/domain"
	"github.com/roach88/phdtrack/internal/engine"
	"github.com/roach88/phdtrack/internal/harness"
	"github.com/roach88/phdtrack/internal/progress"
	"github.com/roach88/phdtrack/internal/store"
	"github.com/roach88/phdtrack/internal/testutil"
	"github.com/roach88/phdtrack/internal/timeline"
)

// TestStateLattice drives every disallowed transition of the
// baseline -> draft -> committed -> progress/analytics lattice. Each must
// fail with its code, leave every business table untouched and leave
// exactly one FAILED trace behind.
func TestStateLattice(t *testing.T) {
	type seedFunc func(t *testing.T, s *store.Store)

	withDraft := func(stages ...int) seedFunc {
		return func(t *testing.T, s *store.Store) {
			testutil.SeedDraft(t, s, testutil.DraftSpec{ID: "d-1", UserID: "u-1", BaselineID: "b-1", Stages: stages})
		}
	}
	withCommit := func(t *testing.T, s *store.Store) {
		d := testutil.SeedDraft(t, s, testutil.DraftSpec{ID: "d-1", UserID: "u-1", BaselineID: "b-1", Stages: []int{1}})
		testutil.SeedCommit(t, s, d, "ct-1", 1)
	}

	tests := []struct {
		name         string
		seed         seedFunc
		orchestrator string
		input        any
		code         engine.ErrorCode
	}{
		{
			name:         "commit without a draft",
			seed:         func(*testing.T, *store.Store) {},
			orchestrator: timeline.CommitName,
			input:        timeline.CommitInput{UserID: "u-1", DraftTimelineID: "d-404"},
			code:         engine.ErrCodeDraftNotFound,
		},
		{
			name:         "progress on a draft-only milestone",
			seed:         withDraft(1),
			orchestrator: progress.Name,
			input: progress.Input{
				UserID: "u-1", MilestoneID: "d-1-s1-m1", EventType: progress.EventMilestoneCompleted,
				Title: "Done", EventDate: "2026-02-01",
			},
			code: engine.ErrCodeMilestoneNotCommitted,
		},
		{
			name:         "double commit",
			seed:         withCommit,
			orchestrator: timeline.CommitName,
			input:        timeline.CommitInput{UserID: "u-1", DraftTimelineID: "d-1"},
			code:         engine.ErrCodeDraftAlreadyCommitted,
		},
		{
			name:         "analytics without a committed timeline",
			seed:         withDraft(1),
			orchestrator: analytics.Name,
			input:        analytics.Input{UserID: "u-1", CommittedTimelineID: "ct-404"},
			code:         engine.ErrCodeAnalyticsWithoutCommitted,
		},
		{
			name:         "commit with zero stages",
			seed:         withDraft(),
			orchestrator: timeline.CommitName,
			input:        timeline.CommitInput{UserID: "u-1", DraftTimelineID: "d-1"},
			code:         engine.ErrCodeTimelineIncomplete,
		},
		{
			name:         "commit with a stage lacking milestones",
			seed:         withDraft(2, 0),
			orchestrator: timeline.CommitName,
			input:        timeline.CommitInput{UserID: "u-1", DraftTimelineID: "d-1"},
			code:         engine.ErrCodeTimelineIncomplete,
		},
		{
			name:         "commit of another user's draft",
			seed:         withDraft(1),
			orchestrator: timeline.CommitName,
			input:        timeline.CommitInput{UserID: "u-2", DraftTimelineID: "d-1"},
			code:         engine.ErrCodeOwnershipViolation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := testutil.OpenStore(t)
			testutil.SeedUser(t, s, "u-1")
			testutil.SeedUser(t, s, "u-2")
			testutil.SeedBaseline(t, s, "u-1", "b-1")
			tt.seed(t, s)

			cat, err := catalog.Default()
			require.NoError(t, err)
			r := engine.NewRunner(s,
				engine.WithClock(testutil.NewDeterministicClock()),
				engine.WithIDGenerator(engine.NewSequenceGenerator("id")),
			)
			suite := harness.NewSuite(r, cat, collab.NewTemplateGenerator(cat), nil)

			before := testutil.BusinessCounts(t, s)
			tracesBefore := testutil.TraceCounts(t, s)

			_, err = suite.Invoke(context.Background(), tt.orchestrator, "lattice-1", tt.input)
			require.Error(t, err)
			e, ok := engine.AsError(err)
			require.True(t, ok, "%v", err)
			assert.Equal(t, tt.code, e.Code, e.Message)
			assert.Equal(t, engine.KindInvariant, e.Kind)
			assert.NotEmpty(t, e.Hint(), "violations carry a hint")

			assert.Equal(t, before, testutil.BusinessCounts(t, s))
			after := testutil.TraceCounts(t, s)
			assert.Equal(t, tracesBefore[domain.StatusFailed]+1, after[domain.StatusFailed])
			assert.Equal(t, tracesBefore[domain.StatusCompleted], after[domain.StatusCompleted])

			tr, err := s.GetTrace(context.Background(), e.TraceID)
			require.NoError(t, err)
			assert.Equal(t, string(tt.code), tr.ErrorCode)
			require.NoError(t, engine.ValidateTrace(tr))
		})
	}
}
