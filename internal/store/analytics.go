package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/roach88/phdtrack/internal/domain"
)

// InsertAnalyticsSnapshot appends a snapshot. Snapshots are never updated;
// re-running analytics always produces a new row.
func (t *Tx) InsertAnalyticsSnapshot(ctx context.Context, s domain.AnalyticsSnapshot) error {
	summary, err := json.Marshal(s.Summary)
	if err != nil {
		return fmt.Errorf("insert analytics snapshot: %w", err)
	}
	_, err = t.exec(ctx, `
		INSERT INTO analytics_snapshots
		(id, user_id, committed_timeline_id, timeline_version, summary, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, s.ID, s.UserID, s.CommittedTimelineID, s.TimelineVersion, string(summary), formatTime(s.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert analytics snapshot: %w", err)
	}
	return nil
}

// SnapshotsByCommitted lists a timeline's snapshots, oldest first.
func (r reader) SnapshotsByCommitted(ctx context.Context, committedID string) ([]domain.AnalyticsSnapshot, error) {
	rows, err := r.query(ctx, `
		SELECT id, user_id, committed_timeline_id, timeline_version, summary, created_at
		FROM analytics_snapshots
		WHERE committed_timeline_id = ?
		ORDER BY created_at ASC, id ASC
	`, committedID)
	if err != nil {
		return nil, fmt.Errorf("snapshots: %w", err)
	}
	defer rows.Close()

	var out []domain.AnalyticsSnapshot
	for rows.Next() {
		var (
			s                domain.AnalyticsSnapshot
			summary, created string
		)
		if err := rows.Scan(&s.ID, &s.UserID, &s.CommittedTimelineID, &s.TimelineVersion, &summary, &created); err != nil {
			return nil, fmt.Errorf("snapshots: %w", err)
		}
		if err := json.Unmarshal([]byte(summary), &s.Summary); err != nil {
			return nil, fmt.Errorf("snapshot %s summary: %w", s.ID, err)
		}
		if s.CreatedAt, err = parseTime(created); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
