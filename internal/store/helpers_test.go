package store

import (
	"context"
	"testing"
	"time"

	"github.com/roach88/phdtrack/internal/domain"
)

var testEpoch = time.Date(2026, 1, 15, 9, 0, 0, 0, time.UTC)

func testUser(id string) domain.User {
	return domain.User{ID: id, DisplayName: "Test " + id, CreatedAt: testEpoch}
}

// seedCommitted writes a user, baseline, draft and a committed timeline
// with one stage and one milestone on each side. Returns the committed
// timeline.
func seedCommitted(t *testing.T, s *Store) domain.CommittedTimeline {
	t.Helper()
	ctx := context.Background()

	committed := domain.CommittedTimeline{
		ID:              "ct-1",
		UserID:          "u-1",
		BaselineID:      "b-1",
		DraftTimelineID: "d-1",
		Title:           "Plan",
		VersionNumber:   1,
		CommittedAt:     testEpoch,
	}
	err := s.InTx(ctx, func(tx *Tx) error {
		if err := tx.InsertUser(ctx, testUser("u-1")); err != nil {
			return err
		}
		if err := tx.InsertBaseline(ctx, domain.Baseline{
			ID: "b-1", UserID: "u-1", ProgramName: "PhD", Institution: "Uni",
			FieldOfStudy: "CS", StartDate: "2026-01-01", TotalDurationMonths: 48, CreatedAt: testEpoch,
		}); err != nil {
			return err
		}
		if err := tx.InsertDraftTimeline(ctx, domain.DraftTimeline{
			ID: "d-1", UserID: "u-1", BaselineID: "b-1", Title: "Plan",
			IsActive: true, CreatedAt: testEpoch, UpdatedAt: testEpoch,
		}); err != nil {
			return err
		}
		if err := tx.InsertStage(ctx, domain.Stage{
			ID: "ds-1", DraftTimelineID: "d-1", Title: "Coursework",
			StageType: domain.StageCoursework, Order: 1, DurationMonths: 12,
		}); err != nil {
			return err
		}
		if err := tx.InsertMilestone(ctx, domain.Milestone{
			ID: "dm-1", StageID: "ds-1", Title: "Finish courses", Order: 1, TargetDate: "2027-01-01",
		}); err != nil {
			return err
		}
		if err := tx.InsertCommittedTimeline(ctx, committed); err != nil {
			return err
		}
		if err := tx.InsertStage(ctx, domain.Stage{
			ID: "cs-1", CommittedTimelineID: "ct-1", Title: "Coursework",
			StageType: domain.StageCoursework, Order: 1, DurationMonths: 12,
		}); err != nil {
			return err
		}
		if err := tx.InsertMilestone(ctx, domain.Milestone{
			ID: "cm-1", StageID: "cs-1", Title: "Finish courses", Order: 1,
			TargetDate: "2027-01-01", IsCritical: true,
		}); err != nil {
			return err
		}
		return tx.DeactivateDraft(ctx, "d-1", testEpoch)
	})
	if err != nil {
		t.Fatalf("seedCommitted: %v", err)
	}
	return committed
}
