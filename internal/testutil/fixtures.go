package testutil

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/phdtrack/internal/domain"
	"github.com/roach88/phdtrack/internal/store"
)

// OpenStore opens a fresh SQLite store under t.TempDir() and closes it
// when the test ends.
func OpenStore(t testing.TB) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// OpenSharedStores opens n stores on one SQLite file, the way separate
// processes share a database. The first handle creates the schema before
// the others open.
func OpenSharedStores(t testing.TB, n int) []*store.Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "shared.db")
	stores := make([]*store.Store, n)
	for i := range stores {
		s, err := store.Open(path)
		require.NoError(t, err)
		t.Cleanup(func() { s.Close() })
		stores[i] = s
	}
	return stores
}

// SeedUser inserts a user directly.
func SeedUser(t testing.TB, s *store.Store, id string) domain.User {
	t.Helper()
	u := domain.User{ID: id, DisplayName: "User " + id, CreatedAt: Epoch}
	require.NoError(t, s.InTx(context.Background(), func(tx *store.Tx) error {
		return tx.InsertUser(context.Background(), u)
	}))
	return u
}

// SeedBaseline inserts a document-less baseline directly.
func SeedBaseline(t testing.TB, s *store.Store, userID, id string) domain.Baseline {
	t.Helper()
	b := domain.Baseline{
		ID:                  id,
		UserID:              userID,
		ProgramName:         "PhD in Computer Science",
		Institution:         "Test University",
		FieldOfStudy:        "Computer Science",
		StartDate:           "2026-01-01",
		TotalDurationMonths: 48,
		CreatedAt:           Epoch,
	}
	require.NoError(t, s.InTx(context.Background(), func(tx *store.Tx) error {
		return tx.InsertBaseline(context.Background(), b)
	}))
	return b
}

// DraftSpec describes a draft to seed. Stages[i] lists the milestone count
// of stage i; a zero entry seeds a stage without milestones.
type DraftSpec struct {
	ID         string
	UserID     string
	BaselineID string
	Stages     []int
}

// SeededDraft holds the ids written by SeedDraft.
type SeededDraft struct {
	Draft      domain.DraftTimeline
	StageIDs   []string
	Milestones map[string][]string
}

// SeedDraft inserts an active draft with stages and milestones. Stage ids
// are "<draft>-s<i>" and milestone ids "<draft>-s<i>-m<j>", 1-based.
func SeedDraft(t testing.TB, s *store.Store, spec DraftSpec) SeededDraft {
	t.Helper()
	ctx := context.Background()
	out := SeededDraft{
		Draft: domain.DraftTimeline{
			ID:         spec.ID,
			UserID:     spec.UserID,
			BaselineID: spec.BaselineID,
			Title:      "Draft " + spec.ID,
			IsActive:   true,
			CreatedAt:  Epoch,
			UpdatedAt:  Epoch,
		},
		Milestones: map[string][]string{},
	}
	require.NoError(t, s.InTx(ctx, func(tx *store.Tx) error {
		if err := tx.InsertDraftTimeline(ctx, out.Draft); err != nil {
			return err
		}
		for i, n := range spec.Stages {
			stageID := fmt.Sprintf("%s-s%d", spec.ID, i+1)
			err := tx.InsertStage(ctx, domain.Stage{
				ID:              stageID,
				DraftTimelineID: spec.ID,
				Title:           fmt.Sprintf("Stage %d", i+1),
				StageType:       domain.StageResearch,
				Order:           i + 1,
				DurationMonths:  6,
			})
			if err != nil {
				return err
			}
			out.StageIDs = append(out.StageIDs, stageID)
			for j := 1; j <= n; j++ {
				mID := fmt.Sprintf("%s-m%d", stageID, j)
				err := tx.InsertMilestone(ctx, domain.Milestone{
					ID:         mID,
					StageID:    stageID,
					Title:      fmt.Sprintf("Milestone %d.%d", i+1, j),
					Order:      j,
					TargetDate: "2026-12-31",
				})
				if err != nil {
					return err
				}
				out.Milestones[stageID] = append(out.Milestones[stageID], mID)
			}
		}
		return nil
	}))
	return out
}

// SeededCommit holds the ids written by SeedCommit.
type SeededCommit struct {
	Timeline   domain.CommittedTimeline
	StageIDs   []string
	Milestones map[string][]string
}

// SeedCommit copies a seeded draft into a committed timeline with the
// given id and version, then freezes the draft. Committed stage ids are
// "<id>-s<i>" and milestone ids "<id>-s<i>-m<j>".
func SeedCommit(t testing.TB, s *store.Store, draft SeededDraft, id string, version int) SeededCommit {
	t.Helper()
	ctx := context.Background()
	out := SeededCommit{
		Timeline: domain.CommittedTimeline{
			ID:              id,
			UserID:          draft.Draft.UserID,
			BaselineID:      draft.Draft.BaselineID,
			DraftTimelineID: draft.Draft.ID,
			Title:           draft.Draft.Title,
			VersionNumber:   version,
			CommittedAt:     Epoch,
		},
		Milestones: map[string][]string{},
	}
	require.NoError(t, s.InTx(ctx, func(tx *store.Tx) error {
		if err := tx.InsertCommittedTimeline(ctx, out.Timeline); err != nil {
			return err
		}
		for i, draftStage := range draft.StageIDs {
			stageID := fmt.Sprintf("%s-s%d", id, i+1)
			err := tx.InsertStage(ctx, domain.Stage{
				ID:                  stageID,
				CommittedTimelineID: id,
				Title:               fmt.Sprintf("Stage %d", i+1),
				StageType:           domain.StageResearch,
				Order:               i + 1,
				DurationMonths:      6,
			})
			if err != nil {
				return err
			}
			out.StageIDs = append(out.StageIDs, stageID)
			for j := range draft.Milestones[draftStage] {
				mID := fmt.Sprintf("%s-m%d", stageID, j+1)
				err := tx.InsertMilestone(ctx, domain.Milestone{
					ID:         mID,
					StageID:    stageID,
					Title:      fmt.Sprintf("Milestone %d.%d", i+1, j+1),
					Order:      j + 1,
					TargetDate: "2026-12-31",
				})
				if err != nil {
					return err
				}
				out.Milestones[stageID] = append(out.Milestones[stageID], mID)
			}
		}
		return tx.DeactivateDraft(ctx, draft.Draft.ID, Epoch)
	}))
	return out
}

// BusinessCounts returns the row count of every domain table.
func BusinessCounts(t testing.TB, s *store.Store) map[string]int {
	t.Helper()
	counts, err := s.CountRows(context.Background(), store.BusinessTables...)
	require.NoError(t, err)
	return counts
}

// TraceCounts returns the number of decision traces per status.
func TraceCounts(t testing.TB, s *store.Store) map[domain.ExecutionStatus]int {
	t.Helper()
	traces, err := s.ListTraces(context.Background(), store.TraceFilter{})
	require.NoError(t, err)
	counts := map[domain.ExecutionStatus]int{}
	for _, tr := range traces {
		counts[tr.Status]++
	}
	return counts
}
