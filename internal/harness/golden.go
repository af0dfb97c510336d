package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/phdtrack/internal/canon"
	"github.com/roach88/phdtrack/internal/domain"
)

// Snapshot is the golden form of a Result. Ids, hashes and trace ids are
// left out so snapshots survive id-format changes.
type Snapshot struct {
	Scenario string         `json:"scenario"`
	Steps    []StepSnapshot `json:"steps"`
	Counts   map[string]int `json:"counts,omitempty"`
}

// StepSnapshot is the golden form of a StepResult.
type StepSnapshot struct {
	Name         string                 `json:"name"`
	Orchestrator string                 `json:"orchestrator"`
	RequestID    string                 `json:"request_id"`
	Status       domain.ExecutionStatus `json:"status"`
	ErrorCode    string                 `json:"error_code,omitempty"`
	Cached       bool                   `json:"cached"`
	Attempt      int                    `json:"attempt,omitempty"`
	Actions      []string               `json:"actions,omitempty"`
}

// Snapshot returns the golden form of r.
func (r *Result) Snapshot() Snapshot {
	s := Snapshot{Scenario: r.Scenario, Steps: make([]StepSnapshot, len(r.Steps)), Counts: r.Counts}
	for i, st := range r.Steps {
		s.Steps[i] = StepSnapshot{
			Name:         st.Name,
			Orchestrator: st.Orchestrator,
			RequestID:    st.RequestID,
			Status:       st.Status,
			ErrorCode:    st.ErrorCode,
			Cached:       st.Cached,
			Attempt:      st.Attempt,
			Actions:      st.Actions,
		}
	}
	return s
}

// RunWithGolden runs the scenario and compares its canonical snapshot with
// testdata/golden/<scenario name>.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, s *Scenario) (*Result, error) {
	t.Helper()

	res, err := Run(t.Context(), s)
	if err != nil {
		return nil, err
	}
	b, err := canon.MarshalCanonical(res.Snapshot())
	if err != nil {
		return nil, err
	}
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, s.Name, b)
	return res, nil
}
