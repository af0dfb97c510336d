package harness

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/phdtrack/internal/catalog"
	"github.com/roach88/phdtrack/internal/collab"
	"github.com/roach88/phdtrack/internal/domain"
	"github.com/roach88/phdtrack/internal/engine"
	"github.com/roach88/phdtrack/internal/store"
	"github.com/roach88/phdtrack/internal/testutil"
)

// Result is the outcome of one scenario.
type Result struct {
	Scenario string         `json:"scenario"`
	Pass     bool           `json:"pass"`
	Steps    []StepResult   `json:"steps"`
	Counts   map[string]int `json:"counts,omitempty"`
	Errors   []string       `json:"errors,omitempty"`
}

// StepResult records what one step did.
type StepResult struct {
	Name         string                 `json:"name"`
	Orchestrator string                 `json:"orchestrator"`
	RequestID    string                 `json:"request_id"`
	Status       domain.ExecutionStatus `json:"status"`
	ErrorCode    string                 `json:"error_code,omitempty"`
	Cached       bool                   `json:"cached"`
	Attempt      int                    `json:"attempt,omitempty"`
	TraceID      string                 `json:"trace_id,omitempty"`
	OutputHash   string                 `json:"output_hash,omitempty"`

	// Actions are the trace's step actions in execution order. Empty when
	// the request was rejected before a trace was opened.
	Actions []string `json:"actions,omitempty"`
}

func (r *Result) addError(format string, args ...any) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
	r.Pass = false
}

// Run executes a scenario against a fresh store.
func Run(ctx context.Context, s *Scenario) (*Result, error) {
	dir, err := os.MkdirTemp("", "phdtrack-scenario-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create scenario dir: %w", err)
	}
	defer os.RemoveAll(dir)

	st, err := store.Open(filepath.Join(dir, "scenario.db"))
	if err != nil {
		return nil, fmt.Errorf("failed to open scenario store: %w", err)
	}
	defer st.Close()

	cat, err := catalog.Default()
	if err != nil {
		return nil, err
	}
	clock := testutil.NewDeterministicClock()
	runner := engine.NewRunner(st,
		engine.WithClock(clock),
		engine.WithIDGenerator(engine.NewSequenceGenerator("id")),
		engine.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	suite := NewSuite(runner, cat, collab.NewTemplateGenerator(cat), collab.NewMimeRouter())

	h := &harness{store: st, suite: suite, outputs: map[string]any{}}
	if err := h.setup(ctx, s.Setup, clock); err != nil {
		return nil, err
	}

	res := &Result{Scenario: s.Name, Pass: true, Steps: make([]StepResult, 0, len(s.Steps))}
	for _, step := range s.Steps {
		sr, err := h.step(ctx, step, res)
		if err != nil {
			return nil, fmt.Errorf("step %s: %w", step.Name, err)
		}
		res.Steps = append(res.Steps, sr)
	}

	if len(s.Assertions) > 0 {
		tables := make([]string, 0, len(s.Assertions))
		for t := range s.Assertions {
			tables = append(tables, t)
		}
		sort.Strings(tables)
		counts, err := st.CountRows(ctx, tables...)
		if err != nil {
			return nil, err
		}
		res.Counts = counts
		for _, t := range tables {
			if counts[t] != s.Assertions[t] {
				res.addError("assertions.%s: expected %d rows, got %d", t, s.Assertions[t], counts[t])
			}
		}
	}
	return res, nil
}

type harness struct {
	store   *store.Store
	suite   *Suite
	outputs map[string]any
}

func (h *harness) setup(ctx context.Context, setup Setup, clock engine.Clock) error {
	if len(setup.Users) == 0 {
		return nil
	}
	return h.store.InTx(ctx, func(tx *store.Tx) error {
		for _, u := range setup.Users {
			name := u.DisplayName
			if name == "" {
				name = "User " + u.ID
			}
			err := tx.InsertUser(ctx, domain.User{ID: u.ID, DisplayName: name, Email: u.Email, CreatedAt: clock.Now()})
			if err != nil {
				return fmt.Errorf("setup user %s: %w", u.ID, err)
			}
		}
		return nil
	})
}

// step runs one step. Orchestrator failures are step outcomes, not errors;
// only harness faults (bad references, unreadable traces) are returned.
func (h *harness) step(ctx context.Context, step Step, res *Result) (StepResult, error) {
	sr := StepResult{Name: step.Name, Orchestrator: step.Orchestrator, RequestID: step.RequestID}

	input, err := resolve(step.Input, h.outputs)
	if err != nil {
		return sr, err
	}

	inv, runErr := h.suite.Invoke(ctx, step.Orchestrator, step.RequestID, input)
	if runErr != nil {
		e, ok := engine.AsError(runErr)
		if !ok {
			return sr, runErr
		}
		sr.Status = domain.StatusFailed
		sr.ErrorCode = string(e.Code)
		sr.TraceID = e.TraceID
		h.outputs[step.Name] = map[string]any{"error": map[string]any{
			"code":    string(e.Code),
			"message": e.Message,
			"details": detailsAny(e.Details),
		}}
	} else {
		sr.Status = domain.StatusCompleted
		sr.Cached = inv.Cached
		sr.Attempt = inv.Attempt
		sr.TraceID = inv.TraceID
		sr.OutputHash = inv.OutputHash
		var out any
		if err := json.Unmarshal(inv.Payload, &out); err != nil {
			return sr, fmt.Errorf("decode output: %w", err)
		}
		h.outputs[step.Name] = out
	}

	if sr.TraceID != "" {
		tr, err := h.store.GetTrace(ctx, sr.TraceID)
		if err != nil {
			return sr, fmt.Errorf("load trace: %w", err)
		}
		sr.Attempt = tr.Attempt
		for _, s := range tr.Steps {
			sr.Actions = append(sr.Actions, s.Action)
		}
	}

	switch {
	case step.Expect.OK && runErr != nil:
		res.addError("%s: expected ok, got %s", step.Name, runErr)
	case step.Expect.ErrorCode != "" && sr.ErrorCode != step.Expect.ErrorCode:
		got := sr.ErrorCode
		if got == "" {
			got = "ok"
		}
		res.addError("%s: expected error %s, got %s", step.Name, step.Expect.ErrorCode, got)
	case step.Expect.OK && step.Expect.Cached != sr.Cached:
		res.addError("%s: expected cached=%t, got %t", step.Name, step.Expect.Cached, sr.Cached)
	}
	return sr, nil
}

func detailsAny(d map[string]string) map[string]any {
	out := make(map[string]any, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}

// RunFile loads and runs one scenario file.
func RunFile(ctx context.Context, path string) (*Result, error) {
	s, err := LoadScenario(path)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	res, err := Run(ctx, s)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return res, nil
}

// RunAll runs scenario files concurrently, at most parallel at a time
// (unlimited when parallel <= 0). Results are in path order. The first
// harness fault cancels the remaining files.
func RunAll(ctx context.Context, paths []string, parallel int) ([]*Result, error) {
	results := make([]*Result, len(paths))
	g, ctx := errgroup.WithContext(ctx)
	if parallel > 0 {
		g.SetLimit(parallel)
	}
	for i, p := range paths {
		g.Go(func() error {
			res, err := RunFile(ctx, p)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
