package domain

import "time"

// DateLayout is the calendar-date format used for start dates, event dates
// and milestone target dates.
const DateLayout = "2006-01-02"

// User owns every other entity.
type User struct {
	ID          string    `json:"id"`
	DisplayName string    `json:"display_name"`
	Email       string    `json:"email,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Document is a program document uploaded by a user and processed by the
// document collaborator. Documents are deduplicated per user by content hash.
type Document struct {
	ID            string            `json:"id"`
	UserID        string            `json:"user_id"`
	Filename      string            `json:"filename"`
	MimeType      string            `json:"mime_type"`
	ContentHash   string            `json:"content_hash"`
	ExtractedText string            `json:"extracted_text"`
	Metadata      map[string]string `json:"metadata,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
}

// Baseline is the extracted program profile. Created once per document and
// immutable after creation.
type Baseline struct {
	ID                  string    `json:"id"`
	UserID              string    `json:"user_id"`
	DocumentID          string    `json:"document_id,omitempty"`
	ProgramName         string    `json:"program_name"`
	Institution         string    `json:"institution"`
	FieldOfStudy        string    `json:"field_of_study"`
	StartDate           string    `json:"start_date"`
	ExpectedEndDate     string    `json:"expected_end_date,omitempty"`
	TotalDurationMonths int       `json:"total_duration_months"`
	RequirementsSummary string    `json:"requirements_summary,omitempty"`
	CreatedAt           time.Time `json:"created_at"`
}

// DraftTimeline is an editable proposal. IsActive flips to false exactly
// once, when the draft is committed.
type DraftTimeline struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	BaselineID  string    `json:"baseline_id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// CommittedTimeline is an immutable, versioned snapshot of a draft.
type CommittedTimeline struct {
	ID              string    `json:"id"`
	UserID          string    `json:"user_id"`
	BaselineID      string    `json:"baseline_id"`
	DraftTimelineID string    `json:"draft_timeline_id"`
	Title           string    `json:"title"`
	VersionNumber   int       `json:"version_number"`
	CommittedAt     time.Time `json:"committed_at"`
}

// Stage belongs to exactly one timeline: a draft XOR a committed timeline.
type Stage struct {
	ID                  string    `json:"id"`
	DraftTimelineID     string    `json:"draft_timeline_id,omitempty"`
	CommittedTimelineID string    `json:"committed_timeline_id,omitempty"`
	Title               string    `json:"title"`
	Description         string    `json:"description,omitempty"`
	StageType           StageType `json:"stage_type"`
	Order               int       `json:"stage_order"`
	DurationMonths      int       `json:"duration_months"`
}

// TimelineID returns whichever timeline the stage belongs to.
func (s Stage) TimelineID() string {
	if s.CommittedTimelineID != "" {
		return s.CommittedTimelineID
	}
	return s.DraftTimelineID
}

// IsCommitted reports whether the stage hangs off a committed timeline.
func (s Stage) IsCommitted() bool {
	return s.CommittedTimelineID != ""
}

// Milestone belongs to exactly one stage.
type Milestone struct {
	ID          string     `json:"id"`
	StageID     string     `json:"stage_id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Order       int        `json:"milestone_order"`
	TargetDate  string     `json:"target_date,omitempty"`
	IsCritical  bool       `json:"is_critical"`
	IsCompleted bool       `json:"is_completed"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// ProgressEvent is an append-only log entry against a committed milestone.
type ProgressEvent struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	MilestoneID string    `json:"milestone_id"`
	EventType   string    `json:"event_type"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	EventDate   string    `json:"event_date"`
	ImpactLevel string    `json:"impact_level"`
	CreatedAt   time.Time `json:"created_at"`
}

// AssessmentResponse is one answered questionnaire item. ResponseValue is a
// Likert value from 1 to 5.
type AssessmentResponse struct {
	Dimension     Dimension `json:"dimension"`
	QuestionID    string    `json:"question_id"`
	ResponseValue int       `json:"response_value"`
}

// JourneyAssessment is the scored result of one questionnaire submission.
type JourneyAssessment struct {
	ID              string               `json:"id"`
	UserID          string               `json:"user_id"`
	SubmissionID    string               `json:"submission_id"`
	OverallScore    int                  `json:"overall_score"`
	HealthStatus    HealthStatus         `json:"health_status"`
	DimensionScores map[Dimension]int    `json:"dimension_scores"`
	Responses       []AssessmentResponse `json:"responses"`
	Recommendations []string             `json:"recommendations,omitempty"`
	Notes           string               `json:"notes,omitempty"`
	CreatedAt       time.Time            `json:"created_at"`
}

// AnalyticsSnapshot is an immutable aggregation record. Re-running analytics
// appends a new snapshot; TimelineVersion records the committed version it
// was computed against.
type AnalyticsSnapshot struct {
	ID                  string           `json:"id"`
	UserID              string           `json:"user_id"`
	CommittedTimelineID string           `json:"committed_timeline_id"`
	TimelineVersion     int              `json:"timeline_version"`
	Summary             AnalyticsSummary `json:"summary"`
	CreatedAt           time.Time        `json:"created_at"`
}

// AnalyticsSummary is the aggregate stored on a snapshot.
type AnalyticsSummary struct {
	TotalStages         int            `json:"total_stages"`
	TotalMilestones     int            `json:"total_milestones"`
	CompletedMilestones int            `json:"completed_milestones"`
	CompletionPercent   int            `json:"completion_percent"`
	OverdueMilestones   int            `json:"overdue_milestones"`
	CriticalOutstanding int            `json:"critical_outstanding"`
	ProgressEvents      int            `json:"progress_events"`
	LatestHealthScore   *int           `json:"latest_health_score,omitempty"`
	LatestHealthStatus  HealthStatus   `json:"latest_health_status,omitempty"`
	StageCompletion     []StageSummary `json:"stage_completion"`
	LastProgressEventAt string         `json:"last_progress_event_at,omitempty"`
}

// StageSummary is per-stage completion inside an AnalyticsSummary.
type StageSummary struct {
	StageID           string    `json:"stage_id"`
	Title             string    `json:"title"`
	StageType         StageType `json:"stage_type"`
	Milestones        int       `json:"milestones"`
	Completed         int       `json:"completed"`
	CompletionPercent int       `json:"completion_percent"`
}
