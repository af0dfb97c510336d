package domain

// StageType categorizes a timeline stage. The closed set of valid values is
// declared by the versioned catalog in internal/catalog; the constants below
// name the members the built-in generator emits.
type StageType string

const (
	StageCoursework       StageType = "coursework"
	StageLiteratureReview StageType = "literature_review"
	StageResearch         StageType = "research"
	StageMethodology      StageType = "methodology"
	StageDataCollection   StageType = "data_collection"
	StageAnalysis         StageType = "analysis"
	StageWriting          StageType = "writing"
	StagePublication      StageType = "publication"
	StageSubmission       StageType = "submission"
	StageDefense          StageType = "defense"
	StageOther            StageType = "other"
)

// Dimension is a journey-assessment dimension.
type Dimension string

const (
	DimensionResearchProgress       Dimension = "research_progress"
	DimensionWorkLifeBalance        Dimension = "work_life_balance"
	DimensionSupervisorRelationship Dimension = "supervisor_relationship"
	DimensionMentalWellbeing        Dimension = "mental_wellbeing"
	DimensionAcademicConfidence     Dimension = "academic_confidence"
	DimensionTimeManagement         Dimension = "time_management"
	DimensionMotivation             Dimension = "motivation"
	DimensionSupportNetwork         Dimension = "support_network"
)

// Dimensions lists every assessment dimension in reporting order.
var Dimensions = []Dimension{
	DimensionResearchProgress,
	DimensionWorkLifeBalance,
	DimensionSupervisorRelationship,
	DimensionMentalWellbeing,
	DimensionAcademicConfidence,
	DimensionTimeManagement,
	DimensionMotivation,
	DimensionSupportNetwork,
}

// IsKnownDimension reports whether d is a declared dimension.
func IsKnownDimension(d Dimension) bool {
	for _, known := range Dimensions {
		if d == known {
			return true
		}
	}
	return false
}

// HealthStatus classifies a journey-health score.
type HealthStatus string

const (
	HealthExcellent  HealthStatus = "excellent"
	HealthGood       HealthStatus = "good"
	HealthFair       HealthStatus = "fair"
	HealthConcerning HealthStatus = "concerning"
	HealthCritical   HealthStatus = "critical"
)

// ClassifyHealth maps a 0-100 score onto a HealthStatus.
func ClassifyHealth(score int) HealthStatus {
	switch {
	case score >= 80:
		return HealthExcellent
	case score >= 65:
		return HealthGood
	case score >= 50:
		return HealthFair
	case score >= 35:
		return HealthConcerning
	default:
		return HealthCritical
	}
}

// EntityKind names a persisted table-level entity. The analytics read-only
// guard checks every access against allow-lists of these kinds.
type EntityKind string

const (
	KindUser              EntityKind = "user"
	KindDocument          EntityKind = "document"
	KindBaseline          EntityKind = "baseline"
	KindDraftTimeline     EntityKind = "draft_timeline"
	KindCommittedTimeline EntityKind = "committed_timeline"
	KindTimelineStage     EntityKind = "timeline_stage"
	KindTimelineMilestone EntityKind = "timeline_milestone"
	KindProgressEvent     EntityKind = "progress_event"
	KindJourneyAssessment EntityKind = "journey_assessment"
	KindAnalyticsSnapshot EntityKind = "analytics_snapshot"
	KindDecisionTrace     EntityKind = "decision_trace"
	KindEvidenceBundle    EntityKind = "evidence_bundle"
	KindIdempotencyKey    EntityKind = "idempotency_key"
)

// Execution status shared by idempotency keys and decision traces.
type ExecutionStatus string

const (
	StatusPending   ExecutionStatus = "PENDING"
	StatusCompleted ExecutionStatus = "COMPLETED"
	StatusFailed    ExecutionStatus = "FAILED"
)

// IsTerminal reports whether the status can no longer change.
func (s ExecutionStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}
