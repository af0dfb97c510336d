// Package invariant implements the cross-entity state rules that every
// orchestrator checks before it writes.
//
// Each check is a plain function over a Querier, which *store.Tx
// satisfies. Checks are called inside a traced step of the business
// transaction, so the rows they read are the rows the following write
// builds on. A failed check returns an *engine.Error of kind invariant
// whose Details carry the offending ids and a "hint".
//
// The rules:
//
//	CommittedTimelineWithoutDraft      a commit names an existing, owned, active draft
//	                                   that has not been committed before
//	TimelineIncomplete                 a committed timeline has at least one stage and
//	                                   every stage has at least one milestone
//	TimelineImmutable                  only active drafts are edited
//	ProgressEventWithoutMilestone      progress is logged against a milestone of an
//	                                   owned committed timeline
//	AnalyticsWithoutCommittedTimeline  analytics run against an owned committed timeline
//	AssessmentWithoutSubmission        an assessment is an explicit, well-formed
//	                                   questionnaire submission
//	BaselinePerDocument                a document yields at most one baseline
//	UserOwnership                      users only touch their own entities
package invariant
