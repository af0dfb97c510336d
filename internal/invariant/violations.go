package invariant

import (
	"fmt"
	"strconv"

	"github.com/roach88/phdtrack/internal/engine"
)

// Rule names carried in engine.Error.Invariant.
const (
	CommittedTimelineWithoutDraftRule     = "CommittedTimelineWithoutDraft"
	TimelineIncompleteRule                = "TimelineIncomplete"
	TimelineImmutableRule                 = "TimelineImmutable"
	ProgressEventWithoutMilestoneRule     = "ProgressEventWithoutMilestone"
	AnalyticsWithoutCommittedTimelineRule = "AnalyticsWithoutCommittedTimeline"
	AssessmentWithoutSubmissionRule       = "AssessmentWithoutSubmission"
	BaselinePerDocumentRule               = "BaselinePerDocument"
	UserOwnershipRule                     = "UserOwnership"
	UserExistsRule                        = "UserExists"
)

// UserNotFound reports an unknown user id.
func UserNotFound(userID string) *engine.Error {
	return engine.NewInvariantError(engine.ErrCodeUserNotFound, UserExistsRule,
		fmt.Sprintf("user %s not found", userID),
		map[string]string{
			"user_id": userID,
			"hint":    "Create the user before running orchestrators on their behalf",
		})
}

// OwnershipViolation reports an entity that belongs to a different user.
// rule names the check that tripped over it.
func OwnershipViolation(rule, entity, entityID, ownerID, userID string) *engine.Error {
	return engine.NewInvariantError(engine.ErrCodeOwnershipViolation, rule,
		fmt.Sprintf("%s %s does not belong to user %s", entity, entityID, userID),
		map[string]string{
			entity + "_id":       entityID,
			"user_id":            userID,
			"owner_user_id":      ownerID,
			"ownership_mismatch": "true",
			"hint":               "Users can only act on entities they own",
		})
}

// BaselineNotFound reports an unknown baseline id.
func BaselineNotFound(baselineID, userID string) *engine.Error {
	return engine.NewInvariantError(engine.ErrCodeBaselineNotFound, UserOwnershipRule,
		fmt.Sprintf("baseline %s not found", baselineID),
		map[string]string{
			"baseline_id": baselineID,
			"user_id":     userID,
			"hint":        "Create a baseline from a program document first",
		})
}

// BaselineAlreadyExists reports a document that already produced a
// baseline.
func BaselineAlreadyExists(documentID, baselineID string) *engine.Error {
	return engine.NewInvariantError(engine.ErrCodeBaselineAlreadyExists, BaselinePerDocumentRule,
		fmt.Sprintf("document %s already has baseline %s", documentID, baselineID),
		map[string]string{
			"document_id":          documentID,
			"existing_baseline_id": baselineID,
			"hint":                 "Baselines are immutable; reuse the existing baseline",
		})
}

// CommittedTimelineWithoutDraft reports a commit naming a draft that does
// not exist.
func CommittedTimelineWithoutDraft(draftID, userID string) *engine.Error {
	details := map[string]string{
		"user_id":           userID,
		"draft_timeline_id": draftID,
		"exists":            "false",
		"hint":              "Generate a draft timeline and commit that draft",
	}
	msg := fmt.Sprintf("cannot commit timeline: draft timeline %s not found", draftID)
	if draftID == "" {
		msg = "cannot commit timeline: no draft_timeline_id provided"
	}
	return engine.NewInvariantError(engine.ErrCodeDraftNotFound, CommittedTimelineWithoutDraftRule, msg, details)
}

// DraftAlreadyCommitted reports a second commit of the same draft.
func DraftAlreadyCommitted(draftID, committedID, userID string) *engine.Error {
	return engine.NewInvariantError(engine.ErrCodeDraftAlreadyCommitted, CommittedTimelineWithoutDraftRule,
		fmt.Sprintf("cannot commit timeline: draft timeline %s already committed as %s", draftID, committedID),
		map[string]string{
			"user_id":               userID,
			"draft_timeline_id":     draftID,
			"existing_committed_id": committedID,
			"already_committed":     "true",
			"hint":                  "A draft is committed once; generate a new draft to commit again",
		})
}

// DraftInactive reports a draft that was frozen by an earlier commit.
func DraftInactive(rule, draftID string) *engine.Error {
	return engine.NewInvariantError(engine.ErrCodeDraftInactive, rule,
		fmt.Sprintf("draft timeline %s is no longer active", draftID),
		map[string]string{
			"draft_timeline_id": draftID,
			"is_active":         "false",
			"hint":              "Committed drafts are frozen; generate a new draft",
		})
}

// TimelineImmutable reports an edit of a frozen draft.
func TimelineImmutable(draftID string) *engine.Error {
	return DraftInactive(TimelineImmutableRule, draftID)
}

// TimelineIncomplete reports a draft that cannot be committed because of
// its structure. details must name the offending ids.
func TimelineIncomplete(draftID, reason string, details map[string]string) *engine.Error {
	d := map[string]string{
		"draft_timeline_id": draftID,
		"reason":            reason,
		"hint":              "Every timeline needs at least one stage and every stage at least one milestone",
	}
	for k, v := range details {
		d[k] = v
	}
	return engine.NewInvariantError(engine.ErrCodeTimelineIncomplete, TimelineIncompleteRule,
		fmt.Sprintf("cannot commit timeline: draft timeline %s %s", draftID, reason), d)
}

// ProgressEventWithoutMilestone reports progress logged against a
// milestone that is missing or not part of a committed timeline.
func ProgressEventWithoutMilestone(code engine.ErrorCode, milestoneID, userID, reason string, extra map[string]string) *engine.Error {
	d := map[string]string{
		"milestone_id": milestoneID,
		"user_id":      userID,
		"hint":         "Progress can only be tracked on committed timelines",
	}
	for k, v := range extra {
		d[k] = v
	}
	return engine.NewInvariantError(code, ProgressEventWithoutMilestoneRule,
		fmt.Sprintf("cannot create progress event: milestone %s %s", milestoneID, reason), d)
}

// AnalyticsWithoutCommittedTimeline reports analytics requested for a
// committed timeline that does not exist.
func AnalyticsWithoutCommittedTimeline(committedID, userID string) *engine.Error {
	return engine.NewInvariantError(engine.ErrCodeAnalyticsWithoutCommitted, AnalyticsWithoutCommittedTimelineRule,
		fmt.Sprintf("cannot run analytics: committed timeline %s not found", committedID),
		map[string]string{
			"committed_timeline_id": committedID,
			"user_id":               userID,
			"hint":                  "Commit a timeline before running analytics",
		})
}

// AssessmentWithoutSubmission reports a malformed questionnaire submission.
func AssessmentWithoutSubmission(message string, details map[string]string) *engine.Error {
	d := map[string]string{
		"hint": "Submit at least " + strconv.Itoa(MinAssessmentResponses) +
			" answers, each between " + strconv.Itoa(MinResponseValue) + " and " + strconv.Itoa(MaxResponseValue),
	}
	for k, v := range details {
		d[k] = v
	}
	return engine.NewInvariantError(engine.ErrCodeAssessmentInvalid, AssessmentWithoutSubmissionRule,
		"cannot create assessment: "+message, d)
}

// StageNotInDraft reports a draft edit naming a stage the draft does not
// contain.
func StageNotInDraft(stageID, draftID string) *engine.Error {
	return engine.NewInvariantError(engine.ErrCodeStageNotFound, TimelineImmutableRule,
		fmt.Sprintf("stage %s is not part of draft timeline %s", stageID, draftID),
		map[string]string{
			"stage_id":          stageID,
			"draft_timeline_id": draftID,
			"hint":              "Edits may only touch stages of the active draft",
		})
}

// MilestoneNotInDraft reports a draft edit naming a milestone the draft
// does not contain.
func MilestoneNotInDraft(milestoneID, draftID string) *engine.Error {
	return engine.NewInvariantError(engine.ErrCodeMilestoneNotFound, TimelineImmutableRule,
		fmt.Sprintf("milestone %s is not part of draft timeline %s", milestoneID, draftID),
		map[string]string{
			"milestone_id":      milestoneID,
			"draft_timeline_id": draftID,
			"hint":              "Edits may only touch milestones of the active draft",
		})
}
