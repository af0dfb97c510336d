package engine

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/roach88/phdtrack/internal/domain"
	"github.com/roach88/phdtrack/internal/store"
)

const (
	// MaxRequestIDLength bounds caller-supplied request ids.
	MaxRequestIDLength = 255

	// MaxOrchestratorNameLength bounds orchestrator names.
	MaxOrchestratorNameLength = 100
)

var orchestratorNamePattern = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// ValidateRequestID checks a caller-supplied request id.
func ValidateRequestID(requestID string) error {
	if strings.TrimSpace(requestID) == "" {
		return InvalidRequest("request id is required", map[string]string{
			"hint": "Pass a unique request id for every logical operation",
		})
	}
	if len(requestID) > MaxRequestIDLength {
		return InvalidRequest(
			fmt.Sprintf("request id exceeds %d characters", MaxRequestIDLength),
			map[string]string{"length": strconv.Itoa(len(requestID))},
		)
	}
	return nil
}

// ValidateOrchestratorName checks a pipeline name before it keys the ledger.
func ValidateOrchestratorName(name string) error {
	if !orchestratorNamePattern.MatchString(name) {
		return InvalidRequest("orchestrator name must match [A-Za-z0-9_]+", map[string]string{"orchestrator": name})
	}
	if len(name) > MaxOrchestratorNameLength {
		return InvalidRequest(
			fmt.Sprintf("orchestrator name exceeds %d characters", MaxOrchestratorNameLength),
			map[string]string{"orchestrator": name},
		)
	}
	return nil
}

// ValidateTrace checks a loaded trace for completeness. Every problem
// found is listed in the returned error's details under "problem_<n>".
func ValidateTrace(tr *store.TraceRecord) error {
	if tr == nil {
		return NewContractError(ErrCodeTraceIncomplete, "trace is nil", nil)
	}

	var problems []string
	add := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if tr.InputHash == "" {
		add("input hash missing")
	}
	for i, s := range tr.Steps {
		if s.StepNumber != i+1 {
			add("step %d has number %d", i+1, s.StepNumber)
		}
		if s.Action == "" {
			add("step %d has no action", s.StepNumber)
		}
		if !s.Status.IsTerminal() {
			add("step %d has status %q", s.StepNumber, s.Status)
		}
		if s.Status == domain.StatusFailed && s.ErrorMessage == "" {
			add("failed step %d has no error message", s.StepNumber)
		}
	}
	for _, e := range tr.Evidence {
		if e.StepNumber < 1 || e.StepNumber > len(tr.Steps) {
			add("evidence %s references missing step %d", e.ID, e.StepNumber)
		}
		if e.PayloadHash == "" {
			add("evidence %s has no payload hash", e.ID)
		}
	}

	switch tr.Status {
	case domain.StatusCompleted:
		if tr.OutputHash == "" {
			add("completed trace has no output hash")
		}
		if len(tr.Steps) == 0 {
			add("completed trace has no steps")
		}
		for _, s := range tr.Steps {
			if s.Status != domain.StatusCompleted {
				add("completed trace contains %s step %d", s.Status, s.StepNumber)
			}
		}
	case domain.StatusFailed:
		if tr.ErrorMessage == "" {
			add("failed trace has no error message")
		}
	case domain.StatusPending:
	default:
		add("unknown trace status %q", tr.Status)
	}
	if tr.Status.IsTerminal() {
		if tr.CompletedAt == nil {
			add("terminal trace has no completed_at")
		}
		if tr.DurationMS == nil {
			add("terminal trace has no duration")
		}
	}

	if len(problems) == 0 {
		return nil
	}
	details := map[string]string{"trace_id": tr.ID}
	for i, p := range problems {
		details[fmt.Sprintf("problem_%d", i+1)] = p
	}
	return NewContractError(ErrCodeTraceIncomplete,
		fmt.Sprintf("trace has %d completeness problem(s)", len(problems)), details)
}
