package engine

import (
	"fmt"

	"github.com/roach88/phdtrack/internal/canon"
)

// EvidenceKind tags the payload carried by an Evidence item.
type EvidenceKind string

const (
	EvidenceBaselineSnapshot   EvidenceKind = "baseline_snapshot"
	EvidenceStageProposal      EvidenceKind = "stage_proposal"
	EvidenceDocumentExtraction EvidenceKind = "document_extraction"
	EvidenceInvariantCheck     EvidenceKind = "invariant_check"
	EvidenceCommitSnapshot     EvidenceKind = "commit_snapshot"
	EvidenceProgressSnapshot   EvidenceKind = "progress_snapshot"
	EvidenceAnalyticsAggregate EvidenceKind = "analytics_aggregate"
	EvidenceAccessLog          EvidenceKind = "access_log"
	EvidenceAssessmentScores   EvidenceKind = "assessment_scores"
)

// EvidencePayload is implemented by every typed evidence payload. The set
// is closed: each kind has exactly one payload struct below.
type EvidencePayload interface {
	EvidenceKind() EvidenceKind
}

// Evidence is one item attached to a trace step.
type Evidence struct {
	// Source names what produced the evidence: a collaborator, a check or
	// a step.
	Source string

	// Confidence is an integer percentage, 0 to 100. Deterministic
	// computations report 100.
	Confidence int

	Payload EvidencePayload
}

// BaselineSnapshot records the baseline an orchestrator created.
type BaselineSnapshot struct {
	BaselineID          string `json:"baseline_id"`
	UserID              string `json:"user_id"`
	DocumentID          string `json:"document_id,omitempty"`
	ProgramName         string `json:"program_name"`
	TotalDurationMonths int    `json:"total_duration_months"`
}

// StageProposal records what the content generator proposed.
type StageProposal struct {
	Generator      string   `json:"generator"`
	StageTypes     []string `json:"stage_types"`
	StageCount     int      `json:"stage_count"`
	MilestoneCount int      `json:"milestone_count"`
	DetectedFrom   string   `json:"detected_from"`
}

// DocumentExtraction records a document-processor result. Only digests
// are kept; the extracted text lives on the document row.
type DocumentExtraction struct {
	Processor   string            `json:"processor"`
	MimeType    string            `json:"mime_type"`
	ContentHash string            `json:"content_hash"`
	TextHash    string            `json:"text_hash"`
	Characters  int               `json:"characters"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// InvariantCheck records a passed invariant check and the ids it covered.
type InvariantCheck struct {
	Invariant string            `json:"invariant"`
	Passed    bool              `json:"passed"`
	Subjects  map[string]string `json:"subjects,omitempty"`
}

// CommitSnapshot records a draft-to-committed transition.
type CommitSnapshot struct {
	CommittedTimelineID string `json:"committed_timeline_id"`
	DraftTimelineID     string `json:"draft_timeline_id"`
	VersionNumber       int    `json:"version_number"`
	StageCount          int    `json:"stage_count"`
	MilestoneCount      int    `json:"milestone_count"`
}

// ProgressSnapshot records an appended progress event.
type ProgressSnapshot struct {
	EventID            string `json:"event_id"`
	MilestoneID        string `json:"milestone_id"`
	EventType          string `json:"event_type"`
	MilestoneCompleted bool   `json:"milestone_completed"`
	NewlyCompleted     bool   `json:"newly_completed"`
}

// AnalyticsAggregate records the headline numbers of a snapshot.
type AnalyticsAggregate struct {
	SnapshotID          string `json:"snapshot_id,omitempty"`
	CommittedTimelineID string `json:"committed_timeline_id"`
	TimelineVersion     int    `json:"timeline_version"`
	TotalMilestones     int    `json:"total_milestones"`
	CompletedMilestones int    `json:"completed_milestones"`
	CompletionPercent   int    `json:"completion_percent"`
	OverdueMilestones   int    `json:"overdue_milestones"`
}

// AccessLog records the entity kinds a guarded pipeline touched.
type AccessLog struct {
	Reads      []string `json:"reads"`
	Writes     []string `json:"writes"`
	Violations []string `json:"violations"`
}

// AssessmentScores records computed journey-health scores.
type AssessmentScores struct {
	AssessmentID    string         `json:"assessment_id,omitempty"`
	OverallScore    int            `json:"overall_score"`
	HealthStatus    string         `json:"health_status"`
	DimensionScores map[string]int `json:"dimension_scores"`
}

func (BaselineSnapshot) EvidenceKind() EvidenceKind   { return EvidenceBaselineSnapshot }
func (StageProposal) EvidenceKind() EvidenceKind      { return EvidenceStageProposal }
func (DocumentExtraction) EvidenceKind() EvidenceKind { return EvidenceDocumentExtraction }
func (InvariantCheck) EvidenceKind() EvidenceKind     { return EvidenceInvariantCheck }
func (CommitSnapshot) EvidenceKind() EvidenceKind     { return EvidenceCommitSnapshot }
func (ProgressSnapshot) EvidenceKind() EvidenceKind   { return EvidenceProgressSnapshot }
func (AnalyticsAggregate) EvidenceKind() EvidenceKind { return EvidenceAnalyticsAggregate }
func (AccessLog) EvidenceKind() EvidenceKind          { return EvidenceAccessLog }
func (AssessmentScores) EvidenceKind() EvidenceKind   { return EvidenceAssessmentScores }

// encodeEvidence canonicalizes the payload and computes its hash.
func encodeEvidence(e Evidence) (payload []byte, hash string, err error) {
	if e.Payload == nil {
		return nil, "", fmt.Errorf("evidence from %q has no payload", e.Source)
	}
	if e.Source == "" {
		return nil, "", fmt.Errorf("%s evidence has no source", e.Payload.EvidenceKind())
	}
	if e.Confidence < 0 || e.Confidence > 100 {
		return nil, "", fmt.Errorf("%s evidence confidence %d outside 0..100", e.Payload.EvidenceKind(), e.Confidence)
	}
	payload, err = canon.MarshalCanonical(e.Payload)
	if err != nil {
		return nil, "", fmt.Errorf("canonicalize %s evidence: %w", e.Payload.EvidenceKind(), err)
	}
	return payload, canon.HashBytes(canon.DomainEvidence, payload), nil
}
