package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/roach88/phdtrack/internal/domain"
)

// InsertDraftTimeline creates an active draft.
func (t *Tx) InsertDraftTimeline(ctx context.Context, d domain.DraftTimeline) error {
	_, err := t.exec(ctx, `
		INSERT INTO draft_timelines
		(id, user_id, baseline_id, title, description, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, d.ID, d.UserID, d.BaselineID, d.Title, d.Description, boolInt(d.IsActive),
		formatTime(d.CreatedAt), formatTime(d.UpdatedAt))
	if err != nil {
		return fmt.Errorf("insert draft timeline: %w", err)
	}
	return nil
}

// GetDraftTimeline loads a draft by id.
func (r reader) GetDraftTimeline(ctx context.Context, id string) (domain.DraftTimeline, error) {
	var (
		d                domain.DraftTimeline
		active           int
		created, updated string
	)
	err := r.queryRow(ctx, `
		SELECT id, user_id, baseline_id, title, description, is_active, created_at, updated_at
		FROM draft_timelines WHERE id = ?
	`, id).Scan(&d.ID, &d.UserID, &d.BaselineID, &d.Title, &d.Description, &active, &created, &updated)
	if err != nil {
		return domain.DraftTimeline{}, notFound(err, "draft timeline", id)
	}
	d.IsActive = active == 1
	if d.CreatedAt, err = parseTime(created); err != nil {
		return domain.DraftTimeline{}, err
	}
	if d.UpdatedAt, err = parseTime(updated); err != nil {
		return domain.DraftTimeline{}, err
	}
	return d, nil
}

// DeactivateDraft flips is_active from 1 to 0. Returns ErrConflict when the
// draft is already inactive, so a draft is frozen exactly once.
func (t *Tx) DeactivateDraft(ctx context.Context, id string, at time.Time) error {
	res, err := t.exec(ctx, `
		UPDATE draft_timelines SET is_active = 0, updated_at = ?
		WHERE id = ? AND is_active = 1
	`, formatTime(at), id)
	if err != nil {
		return fmt.Errorf("deactivate draft %s: %w", id, err)
	}
	return requireOne(res, "deactivate draft "+id)
}

// TouchDraft bumps updated_at on an active draft after an edit.
func (t *Tx) TouchDraft(ctx context.Context, id string, at time.Time) error {
	res, err := t.exec(ctx, `
		UPDATE draft_timelines SET updated_at = ? WHERE id = ? AND is_active = 1
	`, formatTime(at), id)
	if err != nil {
		return fmt.Errorf("touch draft %s: %w", id, err)
	}
	return requireOne(res, "touch draft "+id)
}

// InsertCommittedTimeline creates a committed timeline row. Returns
// ErrConflict when the draft already has a committed timeline, which can
// happen when a concurrent commit landed after the caller's checks ran.
func (t *Tx) InsertCommittedTimeline(ctx context.Context, c domain.CommittedTimeline) error {
	res, err := t.exec(ctx, `
		INSERT INTO committed_timelines
		(id, user_id, baseline_id, draft_timeline_id, title, version_number, committed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (draft_timeline_id) DO NOTHING
	`, c.ID, c.UserID, c.BaselineID, c.DraftTimelineID, c.Title, c.VersionNumber, formatTime(c.CommittedAt))
	if err != nil {
		return fmt.Errorf("insert committed timeline: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert committed timeline: rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("draft %s already committed: %w", c.DraftTimelineID, ErrConflict)
	}
	return nil
}

const committedColumns = `id, user_id, baseline_id, draft_timeline_id, title, version_number, committed_at`

func scanCommitted(row interface{ Scan(...any) error }) (domain.CommittedTimeline, error) {
	var (
		c         domain.CommittedTimeline
		committed string
	)
	err := row.Scan(&c.ID, &c.UserID, &c.BaselineID, &c.DraftTimelineID, &c.Title, &c.VersionNumber, &committed)
	if err != nil {
		return domain.CommittedTimeline{}, err
	}
	if c.CommittedAt, err = parseTime(committed); err != nil {
		return domain.CommittedTimeline{}, err
	}
	return c, nil
}

// GetCommittedTimeline loads a committed timeline by id.
func (r reader) GetCommittedTimeline(ctx context.Context, id string) (domain.CommittedTimeline, error) {
	c, err := scanCommitted(r.queryRow(ctx, `SELECT `+committedColumns+` FROM committed_timelines WHERE id = ?`, id))
	if err != nil {
		return domain.CommittedTimeline{}, notFound(err, "committed timeline", id)
	}
	return c, nil
}

// CommittedTimelineByDraft returns the timeline committed from a draft, or
// ErrNotFound if the draft was never committed.
func (r reader) CommittedTimelineByDraft(ctx context.Context, draftID string) (domain.CommittedTimeline, error) {
	c, err := scanCommitted(r.queryRow(ctx, `SELECT `+committedColumns+` FROM committed_timelines WHERE draft_timeline_id = ?`, draftID))
	if err != nil {
		return domain.CommittedTimeline{}, notFound(err, "committed timeline for draft", draftID)
	}
	return c, nil
}

// NextCommitVersion returns 1 + the highest version committed against the
// baseline.
func (r reader) NextCommitVersion(ctx context.Context, baselineID string) (int, error) {
	var maxVersion sql.NullInt64
	err := r.queryRow(ctx, `
		SELECT MAX(version_number) FROM committed_timelines WHERE baseline_id = ?
	`, baselineID).Scan(&maxVersion)
	if err != nil {
		return 0, fmt.Errorf("next commit version: %w", err)
	}
	return int(maxVersion.Int64) + 1, nil
}

// InsertStage stores a stage under a draft or a committed timeline.
func (t *Tx) InsertStage(ctx context.Context, s domain.Stage) error {
	_, err := t.exec(ctx, `
		INSERT INTO timeline_stages
		(id, draft_timeline_id, committed_timeline_id, title, description, stage_type, stage_order, duration_months)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, s.ID, nullString(s.DraftTimelineID), nullString(s.CommittedTimelineID), s.Title, s.Description,
		string(s.StageType), s.Order, s.DurationMonths)
	if err != nil {
		return fmt.Errorf("insert stage: %w", err)
	}
	return nil
}

// RenameDraftStage changes the title of a stage that belongs to a draft.
func (t *Tx) RenameDraftStage(ctx context.Context, stageID, draftID, title string) error {
	res, err := t.exec(ctx, `
		UPDATE timeline_stages SET title = ? WHERE id = ? AND draft_timeline_id = ?
	`, title, stageID, draftID)
	if err != nil {
		return fmt.Errorf("rename stage %s: %w", stageID, err)
	}
	return requireOne(res, "rename stage "+stageID)
}

const stageColumns = `id, draft_timeline_id, committed_timeline_id, title, description, stage_type, stage_order, duration_months`

func scanStage(row interface{ Scan(...any) error }) (domain.Stage, error) {
	var (
		s                 domain.Stage
		draftID, commitID sql.NullString
		stageType         string
	)
	err := row.Scan(&s.ID, &draftID, &commitID, &s.Title, &s.Description, &stageType, &s.Order, &s.DurationMonths)
	if err != nil {
		return domain.Stage{}, err
	}
	s.DraftTimelineID = draftID.String
	s.CommittedTimelineID = commitID.String
	s.StageType = domain.StageType(stageType)
	return s, nil
}

// GetStage loads a stage by id.
func (r reader) GetStage(ctx context.Context, id string) (domain.Stage, error) {
	s, err := scanStage(r.queryRow(ctx, `SELECT `+stageColumns+` FROM timeline_stages WHERE id = ?`, id))
	if err != nil {
		return domain.Stage{}, notFound(err, "stage", id)
	}
	return s, nil
}

// StagesByDraft lists a draft's stages in order.
func (r reader) StagesByDraft(ctx context.Context, draftID string) ([]domain.Stage, error) {
	return r.listStages(ctx, `WHERE draft_timeline_id = ?`, draftID)
}

// StagesByCommitted lists a committed timeline's stages in order.
func (r reader) StagesByCommitted(ctx context.Context, committedID string) ([]domain.Stage, error) {
	return r.listStages(ctx, `WHERE committed_timeline_id = ?`, committedID)
}

func (r reader) listStages(ctx context.Context, where string, arg string) ([]domain.Stage, error) {
	rows, err := r.query(ctx, `SELECT `+stageColumns+` FROM timeline_stages `+where+` ORDER BY stage_order ASC, id ASC`, arg)
	if err != nil {
		return nil, fmt.Errorf("list stages: %w", err)
	}
	defer rows.Close()

	var out []domain.Stage
	for rows.Next() {
		s, err := scanStage(rows)
		if err != nil {
			return nil, fmt.Errorf("list stages: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// InsertMilestone stores a milestone under a stage.
func (t *Tx) InsertMilestone(ctx context.Context, m domain.Milestone) error {
	var completedAt sql.NullString
	if m.CompletedAt != nil {
		completedAt = sql.NullString{String: formatTime(*m.CompletedAt), Valid: true}
	}
	_, err := t.exec(ctx, `
		INSERT INTO timeline_milestones
		(id, stage_id, title, description, milestone_order, target_date, is_critical, is_completed, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, m.ID, m.StageID, m.Title, m.Description, m.Order, m.TargetDate,
		boolInt(m.IsCritical), boolInt(m.IsCompleted), completedAt)
	if err != nil {
		return fmt.Errorf("insert milestone: %w", err)
	}
	return nil
}

// DeleteDraftMilestone removes a milestone from a draft stage. Committed
// milestones are protected by a trigger as well as by the join here.
func (t *Tx) DeleteDraftMilestone(ctx context.Context, milestoneID, draftID string) error {
	res, err := t.exec(ctx, `
		DELETE FROM timeline_milestones
		WHERE id = ? AND stage_id IN (SELECT id FROM timeline_stages WHERE draft_timeline_id = ?)
	`, milestoneID, draftID)
	if err != nil {
		return fmt.Errorf("delete milestone %s: %w", milestoneID, err)
	}
	return requireOne(res, "delete milestone "+milestoneID)
}

// MarkMilestoneCompleted sets the completion flag. Returns false when the
// milestone was already completed; the original completed_at is kept.
func (t *Tx) MarkMilestoneCompleted(ctx context.Context, id string, at time.Time) (bool, error) {
	res, err := t.exec(ctx, `
		UPDATE timeline_milestones SET is_completed = 1, completed_at = ?
		WHERE id = ? AND is_completed = 0
	`, formatTime(at), id)
	if err != nil {
		return false, fmt.Errorf("complete milestone %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("complete milestone %s: %w", id, err)
	}
	return n == 1, nil
}

const milestoneColumns = `m.id, m.stage_id, m.title, m.description, m.milestone_order, m.target_date,
	m.is_critical, m.is_completed, m.completed_at`

func scanMilestone(row interface{ Scan(...any) error }) (domain.Milestone, error) {
	var (
		m                   domain.Milestone
		critical, completed int
		completedAt         sql.NullString
	)
	err := row.Scan(&m.ID, &m.StageID, &m.Title, &m.Description, &m.Order, &m.TargetDate,
		&critical, &completed, &completedAt)
	if err != nil {
		return domain.Milestone{}, err
	}
	m.IsCritical = critical == 1
	m.IsCompleted = completed == 1
	if m.CompletedAt, err = parseNullTime(completedAt); err != nil {
		return domain.Milestone{}, err
	}
	return m, nil
}

// GetMilestone loads a milestone by id.
func (r reader) GetMilestone(ctx context.Context, id string) (domain.Milestone, error) {
	m, err := scanMilestone(r.queryRow(ctx, `SELECT `+milestoneColumns+` FROM timeline_milestones m WHERE m.id = ?`, id))
	if err != nil {
		return domain.Milestone{}, notFound(err, "milestone", id)
	}
	return m, nil
}

// MilestonesByStage lists a stage's milestones in order.
func (r reader) MilestonesByStage(ctx context.Context, stageID string) ([]domain.Milestone, error) {
	return r.listMilestones(ctx, `
		SELECT `+milestoneColumns+` FROM timeline_milestones m
		WHERE m.stage_id = ?
		ORDER BY m.milestone_order ASC, m.id ASC
	`, stageID)
}

// MilestonesByCommitted lists every milestone of a committed timeline,
// ordered by stage then milestone.
func (r reader) MilestonesByCommitted(ctx context.Context, committedID string) ([]domain.Milestone, error) {
	return r.listMilestones(ctx, `
		SELECT `+milestoneColumns+` FROM timeline_milestones m
		JOIN timeline_stages s ON s.id = m.stage_id
		WHERE s.committed_timeline_id = ?
		ORDER BY s.stage_order ASC, m.milestone_order ASC, m.id ASC
	`, committedID)
}

func (r reader) listMilestones(ctx context.Context, query string, arg string) ([]domain.Milestone, error) {
	rows, err := r.query(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("list milestones: %w", err)
	}
	defer rows.Close()

	var out []domain.Milestone
	for rows.Next() {
		m, err := scanMilestone(rows)
		if err != nil {
			return nil, fmt.Errorf("list milestones: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
