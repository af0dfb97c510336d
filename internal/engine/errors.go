package engine

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrorKind is the top-level error category. Callers branch on Kind to
// decide between fixing input, retrying, or reporting a bug.
type ErrorKind string

const (
	// KindInvariant is a domain rule violation. Not retryable without
	// changing the request.
	KindInvariant ErrorKind = "invariant"

	// KindIdempotency is a ledger conflict: hash mismatch or a concurrent
	// attempt still in flight.
	KindIdempotency ErrorKind = "idempotency"

	// KindContract is a broken engine or pipeline contract: read-only
	// violations, step ordering, unknown enumeration values.
	KindContract ErrorKind = "contract"

	// KindCollaborator wraps failures of external collaborators and the
	// store.
	KindCollaborator ErrorKind = "collaborator"
)

// ErrorCode identifies a specific failure.
type ErrorCode string

const (
	ErrCodeInvalidRequest     ErrorCode = "INVALID_REQUEST"
	ErrCodeUserNotFound       ErrorCode = "USER_NOT_FOUND"
	ErrCodeOwnershipViolation ErrorCode = "OWNERSHIP_VIOLATION"

	ErrCodeBaselineNotFound      ErrorCode = "BASELINE_NOT_FOUND"
	ErrCodeBaselineAlreadyExists ErrorCode = "BASELINE_ALREADY_EXISTS"

	ErrCodeDraftNotFound         ErrorCode = "DRAFT_NOT_FOUND"
	ErrCodeDraftAlreadyCommitted ErrorCode = "DRAFT_ALREADY_COMMITTED"
	ErrCodeDraftInactive         ErrorCode = "DRAFT_INACTIVE"
	ErrCodeTimelineIncomplete    ErrorCode = "TIMELINE_INCOMPLETE"
	ErrCodeStageNotFound         ErrorCode = "STAGE_NOT_FOUND"

	ErrCodeMilestoneNotFound     ErrorCode = "MILESTONE_NOT_FOUND"
	ErrCodeMilestoneNotCommitted ErrorCode = "MILESTONE_NOT_COMMITTED"

	ErrCodeAnalyticsWithoutCommitted ErrorCode = "ANALYTICS_WITHOUT_COMMITTED_TIMELINE"
	ErrCodeAssessmentInvalid         ErrorCode = "ASSESSMENT_INVALID"

	ErrCodeHashMismatch        ErrorCode = "HASH_MISMATCH"
	ErrCodeConcurrentExecution ErrorCode = "CONCURRENT_EXECUTION"

	ErrCodeReadOnlyViolation  ErrorCode = "READ_ONLY_VIOLATION"
	ErrCodeUnknownStageType   ErrorCode = "UNKNOWN_STAGE_TYPE"
	ErrCodeStepOrderViolation ErrorCode = "STEP_ORDER_VIOLATION"
	ErrCodeTraceFinalized     ErrorCode = "TRACE_FINALIZED"
	ErrCodeTraceIncomplete    ErrorCode = "TRACE_INCOMPLETE"
	ErrCodeInvalidOutput      ErrorCode = "INVALID_OUTPUT"
	ErrCodeInvalidEvidence    ErrorCode = "INVALID_EVIDENCE"

	ErrCodeCollaboratorFailure ErrorCode = "COLLABORATOR_FAILURE"
	ErrCodeStoreFailure        ErrorCode = "STORE_FAILURE"
)

// Error is the typed error returned by every orchestrator.
//
// Details carries the offending ids and, for invariant violations, a
// "hint" entry with a human-readable remedy.
type Error struct {
	Kind ErrorKind
	Code ErrorCode

	// Operation is "<orchestrator>.<step action>" where known.
	Operation string

	// Invariant names the violated rule, e.g. "CommittedTimelineWithoutDraft".
	Invariant string

	Message string
	Details map[string]string

	// Retryable is true when repeating the identical request may succeed.
	Retryable bool

	// TraceID is the decision trace of the failed attempt, when one was
	// opened.
	TraceID string

	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Code))
	b.WriteString(": ")
	b.WriteString(e.Message)
	if e.Operation != "" {
		fmt.Fprintf(&b, " (op=%s)", e.Operation)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap returns the wrapped cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Hint returns the human-readable remedy, if any.
func (e *Error) Hint() string {
	return e.Details["hint"]
}

// DetailKeys returns the detail keys in sorted order.
func (e *Error) DetailKeys() []string {
	keys := make([]string, 0, len(e.Details))
	for k := range e.Details {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// AsError extracts an *Error from err's chain.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// IsKind returns true if err is an *Error of the given kind.
// Uses errors.As to handle wrapped errors.
func IsKind(err error, kind ErrorKind) bool {
	e, ok := AsError(err)
	return ok && e.Kind == kind
}

// HasCode returns true if err is an *Error with the given code.
func HasCode(err error, code ErrorCode) bool {
	e, ok := AsError(err)
	return ok && e.Code == code
}

// IsRetryable returns true if err is a retryable *Error.
func IsRetryable(err error) bool {
	e, ok := AsError(err)
	return ok && e.Retryable
}

// NewInvariantError creates an invariant violation.
func NewInvariantError(code ErrorCode, invariant, message string, details map[string]string) *Error {
	return &Error{
		Kind:      KindInvariant,
		Code:      code,
		Invariant: invariant,
		Message:   message,
		Details:   details,
	}
}

// NewContractError creates a contract violation.
func NewContractError(code ErrorCode, message string, details map[string]string) *Error {
	return &Error{
		Kind:    KindContract,
		Code:    code,
		Message: message,
		Details: details,
	}
}

// InvalidRequest reports a malformed request or input.
func InvalidRequest(message string, details map[string]string) *Error {
	return NewInvariantError(ErrCodeInvalidRequest, "RequestValidation", message, details)
}

// HashMismatch reports a request id reused with different input.
func HashMismatch(orchestrator, requestID, stored, got string) *Error {
	return &Error{
		Kind:      KindIdempotency,
		Code:      ErrCodeHashMismatch,
		Operation: orchestrator,
		Message:   "request id was already used with a different input",
		Details: map[string]string{
			"request_id":          requestID,
			"stored_input_hash":   stored,
			"received_input_hash": got,
			"hint":                "Use a new request id for a different input",
		},
	}
}

// ConcurrentExecution reports an attempt still in flight for the request.
func ConcurrentExecution(orchestrator, requestID string) *Error {
	return &Error{
		Kind:      KindIdempotency,
		Code:      ErrCodeConcurrentExecution,
		Operation: orchestrator,
		Message:   "another attempt for this request is in progress",
		Details: map[string]string{
			"request_id": requestID,
			"hint":       "Retry the identical request once the running attempt finishes",
		},
		Retryable: true,
	}
}

// StepOrderViolation reports a step begun or ended out of sequence.
func StepOrderViolation(message string, details map[string]string) *Error {
	return NewContractError(ErrCodeStepOrderViolation, message, details)
}

// TraceFinalized reports a mutation of a finished trace.
func TraceFinalized(traceID string) *Error {
	return NewContractError(ErrCodeTraceFinalized, "decision trace is already finalized",
		map[string]string{"trace_id": traceID})
}

// CollaboratorFailure wraps an error from an external collaborator.
func CollaboratorFailure(operation string, err error) *Error {
	return &Error{
		Kind:      KindCollaborator,
		Code:      ErrCodeCollaboratorFailure,
		Operation: operation,
		Message:   "collaborator failed",
		Err:       err,
	}
}

// StoreFailure wraps an unexpected store error.
func StoreFailure(operation string, err error) *Error {
	return &Error{
		Kind:      KindCollaborator,
		Code:      ErrCodeStoreFailure,
		Operation: operation,
		Message:   "store operation failed",
		Err:       err,
	}
}
