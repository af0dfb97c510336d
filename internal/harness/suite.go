package harness

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/roach88/phdtrack/internal/analytics"
	"github.com/roach88/phdtrack/internal/assessment"
	"github.com/roach88/phdtrack/internal/baseline"
	"github.com/roach88/phdtrack/internal/catalog"
	"github.com/roach88/phdtrack/internal/collab"
	"github.com/roach88/phdtrack/internal/engine"
	"github.com/roach88/phdtrack/internal/progress"
	"github.com/roach88/phdtrack/internal/timeline"
)

// Suite holds every orchestrator wired to one runner.
type Suite struct {
	Baseline   *baseline.Orchestrator
	Timeline   *timeline.Service
	Progress   *progress.Orchestrator
	Assessment *assessment.Orchestrator
	Analytics  *analytics.Orchestrator
}

// NewSuite wires the orchestrators. processor may be nil.
func NewSuite(r *engine.Runner, cat *catalog.Catalog, gen collab.ContentGenerator, processor collab.DocumentProcessor) *Suite {
	return &Suite{
		Baseline:   baseline.New(r, cat, processor),
		Timeline:   timeline.NewService(r, cat, gen),
		Progress:   progress.New(r, cat),
		Assessment: assessment.New(r, cat),
		Analytics:  analytics.New(r, cat),
	}
}

// Orchestrators lists the names Invoke accepts.
var Orchestrators = []string{
	baseline.Name,
	timeline.GenerateName,
	timeline.CommitName,
	timeline.EditName,
	progress.Name,
	assessment.Name,
	analytics.Name,
}

// KnownOrchestrator reports whether name is in Orchestrators.
func KnownOrchestrator(name string) bool {
	for _, n := range Orchestrators {
		if n == name {
			return true
		}
	}
	return false
}

// Invocation is the untyped result of Invoke.
type Invocation struct {
	Payload    []byte
	OutputHash string
	TraceID    string
	Attempt    int
	Cached     bool
}

// Invoke decodes input into the named orchestrator's input type and
// executes it. Unknown input fields are rejected.
func (s *Suite) Invoke(ctx context.Context, orchestrator, requestID string, input any) (*Invocation, error) {
	switch orchestrator {
	case baseline.Name:
		return invoke(ctx, s.Baseline.Execute, requestID, input)
	case timeline.GenerateName:
		return invoke(ctx, s.Timeline.Generate.Execute, requestID, input)
	case timeline.CommitName:
		return invoke(ctx, s.Timeline.Commit.Execute, requestID, input)
	case timeline.EditName:
		return invoke(ctx, s.Timeline.Edit.Execute, requestID, input)
	case progress.Name:
		return invoke(ctx, s.Progress.Execute, requestID, input)
	case assessment.Name:
		return invoke(ctx, s.Assessment.Execute, requestID, input)
	case analytics.Name:
		return invoke(ctx, s.Analytics.Execute, requestID, input)
	default:
		return nil, fmt.Errorf("unknown orchestrator %q", orchestrator)
	}
}

func invoke[In, Out any](ctx context.Context,
	exec func(context.Context, string, In) (*engine.Outcome[Out], error),
	requestID string, input any) (*Invocation, error) {
	in, err := DecodeInput[In](input)
	if err != nil {
		return nil, err
	}
	out, err := exec(ctx, requestID, in)
	if err != nil {
		return nil, err
	}
	return &Invocation{
		Payload:    out.Payload,
		OutputHash: out.OutputHash,
		TraceID:    out.TraceID,
		Attempt:    out.Attempt,
		Cached:     out.Cached,
	}, nil
}

// DecodeInput converts a generic value (decoded YAML or JSON) into In.
func DecodeInput[In any](input any) (In, error) {
	var in In
	raw, err := json.Marshal(input)
	if err != nil {
		return in, engine.InvalidRequest("input is not JSON-encodable: "+err.Error(), nil)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&in); err != nil {
		return in, engine.InvalidRequest("input does not match the orchestrator: "+err.Error(), nil)
	}
	return in, nil
}
