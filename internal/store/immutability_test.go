package store

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/roach88/phdtrack/internal/domain"
)

func TestTriggers_RejectMutationOfCommittedState(t *testing.T) {
	s := seedStore(t)

	tests := []struct {
		name    string
		stmt    string
		wantErr string
	}{
		{"update baseline", `UPDATE baselines SET program_name = 'x' WHERE id = 'b-1'`, "baselines are immutable"},
		{"delete baseline", `DELETE FROM baselines WHERE id = 'b-1'`, "baselines are immutable"},
		{"update committed timeline", `UPDATE committed_timelines SET title = 'x' WHERE id = 'ct-1'`, "committed_timelines are immutable"},
		{"delete committed timeline", `DELETE FROM committed_timelines WHERE id = 'ct-1'`, "committed_timelines are immutable"},
		{"rename committed stage", `UPDATE timeline_stages SET title = 'x' WHERE id = 'cs-1'`, "committed stages are immutable"},
		{"delete committed stage", `DELETE FROM timeline_stages WHERE id = 'cs-1'`, "committed stages are immutable"},
		{"retitle committed milestone", `UPDATE timeline_milestones SET title = 'x' WHERE id = 'cm-1'`, "committed milestones are immutable except for completion"},
		{"delete committed milestone", `DELETE FROM timeline_milestones WHERE id = 'cm-1'`, "committed milestones are immutable"},
		{"reactivate draft", `UPDATE draft_timelines SET is_active = 1 WHERE id = 'd-1'`, "inactive drafts are frozen"},
		{"edit frozen draft", `UPDATE draft_timelines SET title = 'x' WHERE id = 'd-1'`, "inactive drafts are frozen"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.db.Exec(tt.stmt)
			if err == nil {
				t.Fatalf("%s succeeded, want trigger abort", tt.stmt)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %v, want %q", err, tt.wantErr)
			}
		})
	}
}

func TestTriggers_CommittedMilestoneMayComplete(t *testing.T) {
	s := seedStore(t)
	ctx := context.Background()

	var changed bool
	err := s.InTx(ctx, func(tx *Tx) error {
		var err error
		changed, err = tx.MarkMilestoneCompleted(ctx, "cm-1", testEpoch)
		return err
	})
	if err != nil {
		t.Fatalf("MarkMilestoneCompleted() failed: %v", err)
	}
	if !changed {
		t.Fatal("MarkMilestoneCompleted() = false on first completion")
	}

	m, err := s.GetMilestone(ctx, "cm-1")
	if err != nil {
		t.Fatalf("GetMilestone() failed: %v", err)
	}
	if !m.IsCompleted || m.CompletedAt == nil || !m.CompletedAt.Equal(testEpoch) {
		t.Errorf("milestone = %+v, want completed at %v", m, testEpoch)
	}

	// Second completion is a no-op, never an un-complete.
	err = s.InTx(ctx, func(tx *Tx) error {
		var err error
		changed, err = tx.MarkMilestoneCompleted(ctx, "cm-1", testEpoch.AddDate(0, 1, 0))
		return err
	})
	if err != nil {
		t.Fatalf("second MarkMilestoneCompleted() failed: %v", err)
	}
	if changed {
		t.Error("second MarkMilestoneCompleted() = true, want false")
	}

	if _, err := s.db.Exec(`UPDATE timeline_milestones SET is_completed = 0 WHERE id = 'cm-1'`); err == nil {
		t.Error("un-completing a committed milestone succeeded")
	}
}

func TestDeactivateDraft_OnlyOnce(t *testing.T) {
	s := seedStore(t)
	ctx := context.Background()

	err := s.InTx(ctx, func(tx *Tx) error {
		return tx.DeactivateDraft(ctx, "d-1", testEpoch)
	})
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("DeactivateDraft() on inactive draft error = %v, want ErrConflict", err)
	}
}

func TestInsertCommittedTimeline_OncePerDraft(t *testing.T) {
	s := seedStore(t)
	ctx := context.Background()

	err := s.InTx(ctx, func(tx *Tx) error {
		return tx.InsertCommittedTimeline(ctx, domain.CommittedTimeline{
			ID: "ct-2", UserID: "u-1", BaselineID: "b-1", DraftTimelineID: "d-1",
			Title: "Again", VersionNumber: 2, CommittedAt: testEpoch,
		})
	})
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("InsertCommittedTimeline() for committed draft error = %v, want ErrConflict", err)
	}

	existing, err := s.CommittedTimelineByDraft(ctx, "d-1")
	if err != nil {
		t.Fatalf("CommittedTimelineByDraft() failed: %v", err)
	}
	if existing.ID != "ct-1" {
		t.Errorf("committed timeline = %q, want ct-1", existing.ID)
	}
}

func TestTriggers_StageBelongsToExactlyOneTimeline(t *testing.T) {
	s := seedStore(t)

	_, err := s.db.Exec(`
		INSERT INTO timeline_stages (id, draft_timeline_id, committed_timeline_id, title, stage_type, stage_order, duration_months)
		VALUES ('bad', 'd-1', 'ct-1', 'Both', 'other', 9, 1)
	`)
	if err == nil {
		t.Error("stage with both parents was accepted")
	}

	_, err = s.db.Exec(`
		INSERT INTO timeline_stages (id, title, stage_type, stage_order, duration_months)
		VALUES ('orphan', 'Neither', 'other', 9, 1)
	`)
	if err == nil {
		t.Error("stage with no parent was accepted")
	}
}

func seedStore(t *testing.T) *Store {
	t.Helper()
	s := createTestStore(t)
	seedCommitted(t, s)
	return s
}
