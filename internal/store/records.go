package store

import (
	"time"

	"github.com/roach88/phdtrack/internal/domain"
)

// LedgerEntry is one attempt row of the idempotency ledger.
type LedgerEntry struct {
	OrchestratorName string
	RequestID        string
	Attempt          int
	Status           domain.ExecutionStatus
	InputHash        string
	TraceID          string
	ResultHash       string
	ResultPayload    []byte
	ErrorCode        string
	ErrorMessage     string
	CreatedAt        time.Time
	CompletedAt      *time.Time
}

// TraceRecord is a decision trace with its steps and evidence.
type TraceRecord struct {
	ID               string                 `json:"id"`
	OrchestratorName string                 `json:"orchestrator_name"`
	RequestID        string                 `json:"request_id"`
	Attempt          int                    `json:"attempt"`
	Status           domain.ExecutionStatus `json:"status"`
	InputHash        string                 `json:"input_hash"`
	OutputHash       string                 `json:"output_hash,omitempty"`
	ErrorCode        string                 `json:"error_code,omitempty"`
	ErrorMessage     string                 `json:"error_message,omitempty"`
	StartedAt        time.Time              `json:"started_at"`
	CompletedAt      *time.Time             `json:"completed_at,omitempty"`
	DurationMS       *int64                 `json:"duration_ms,omitempty"`
	Steps            []StepRecord           `json:"steps"`
	Evidence         []EvidenceRecord       `json:"evidence,omitempty"`
}

// StepRecord is one executed pipeline step.
type StepRecord struct {
	StepNumber   int                    `json:"step_number"`
	Action       string                 `json:"action"`
	Status       domain.ExecutionStatus `json:"status"`
	StartedAt    time.Time              `json:"started_at"`
	CompletedAt  time.Time              `json:"completed_at"`
	DurationMS   int64                  `json:"duration_ms"`
	ErrorMessage string                 `json:"error_message,omitempty"`
}

// EvidenceRecord is one evidence item attached to a step. Payload holds
// canonical JSON; PayloadHash is its domain-separated digest.
type EvidenceRecord struct {
	ID          string    `json:"id"`
	TraceID     string    `json:"trace_id"`
	StepNumber  int       `json:"step_number"`
	Seq         int       `json:"seq"`
	Kind        string    `json:"kind"`
	Source      string    `json:"source"`
	Confidence  int       `json:"confidence"`
	Payload     string    `json:"payload"`
	PayloadHash string    `json:"payload_hash"`
	CreatedAt   time.Time `json:"created_at"`
}

// TraceFinish carries the terminal fields of a decision trace.
type TraceFinish struct {
	ID           string
	Status       domain.ExecutionStatus
	OutputHash   string
	ErrorCode    string
	ErrorMessage string
	CompletedAt  time.Time
	DurationMS   int64
}

// TraceFilter narrows ListTraces. Zero values match everything.
type TraceFilter struct {
	OrchestratorName string
	RequestID        string
	Status           domain.ExecutionStatus
	Limit            int
}
