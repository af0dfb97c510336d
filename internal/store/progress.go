package store

import (
	"context"
	"fmt"

	"github.com/roach88/phdtrack/internal/domain"
)

// InsertProgressEvent appends a progress event. There is no update or
// delete counterpart.
func (t *Tx) InsertProgressEvent(ctx context.Context, e domain.ProgressEvent) error {
	_, err := t.exec(ctx, `
		INSERT INTO progress_events
		(id, user_id, milestone_id, event_type, title, description, event_date, impact_level, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, e.ID, e.UserID, e.MilestoneID, e.EventType, e.Title, e.Description, e.EventDate, e.ImpactLevel, formatTime(e.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert progress event: %w", err)
	}
	return nil
}

// ProgressEventsByCommitted lists every progress event recorded against a
// committed timeline's milestones, oldest first.
func (r reader) ProgressEventsByCommitted(ctx context.Context, committedID string) ([]domain.ProgressEvent, error) {
	rows, err := r.query(ctx, `
		SELECT e.id, e.user_id, e.milestone_id, e.event_type, e.title, e.description,
		       e.event_date, e.impact_level, e.created_at
		FROM progress_events e
		JOIN timeline_milestones m ON m.id = e.milestone_id
		JOIN timeline_stages s ON s.id = m.stage_id
		WHERE s.committed_timeline_id = ?
		ORDER BY e.created_at ASC, e.id ASC
	`, committedID)
	if err != nil {
		return nil, fmt.Errorf("progress events: %w", err)
	}
	defer rows.Close()

	var out []domain.ProgressEvent
	for rows.Next() {
		var (
			e       domain.ProgressEvent
			created string
		)
		if err := rows.Scan(&e.ID, &e.UserID, &e.MilestoneID, &e.EventType, &e.Title, &e.Description,
			&e.EventDate, &e.ImpactLevel, &created); err != nil {
			return nil, fmt.Errorf("progress events: %w", err)
		}
		if e.CreatedAt, err = parseTime(created); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
