package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// orchestratorResult is the output of every orchestrator command.
type orchestratorResult struct {
	Orchestrator string          `json:"orchestrator"`
	RequestID    string          `json:"request_id"`
	TraceID      string          `json:"trace_id"`
	Attempt      int             `json:"attempt"`
	Cached       bool            `json:"cached"`
	OutputHash   string          `json:"output_hash"`
	Result       json.RawMessage `json:"result"`
}

func (r orchestratorResult) Text() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s: completed (attempt %d", r.Orchestrator, r.RequestID, r.Attempt)
	if r.Cached {
		b.WriteString(", cached")
	}
	fmt.Fprintf(&b, ")\ntrace: %s\n", r.TraceID)
	var pretty any
	if err := json.Unmarshal(r.Result, &pretty); err == nil {
		if out, err := json.MarshalIndent(pretty, "", "  "); err == nil {
			b.Write(out)
			return b.String()
		}
	}
	b.Write(r.Result)
	return b.String()
}

// execute runs one orchestrator and reports the outcome.
func (o *RootOptions) execute(cmd *cobra.Command, orchestrator, requestID string, input any) error {
	f := o.formatter(cmd)
	ctx := cmd.Context()

	e, err := o.open(cmd)
	if err != nil {
		return f.Fail(err)
	}
	defer e.close(ctx)

	inv, err := e.suite.Invoke(ctx, orchestrator, requestID, input)
	if err != nil {
		return f.Fail(err)
	}
	f.VerboseLog("%s %s: trace %s", orchestrator, requestID, inv.TraceID)
	return f.SuccessWithTrace(orchestratorResult{
		Orchestrator: orchestrator,
		RequestID:    requestID,
		TraceID:      inv.TraceID,
		Attempt:      inv.Attempt,
		Cached:       inv.Cached,
		OutputHash:   inv.OutputHash,
		Result:       json.RawMessage(inv.Payload),
	}, inv.TraceID)
}

// readYAML decodes a YAML (or JSON) file into a generic value.
func readYAML(path string) (any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to read "+path, err)
	}
	var v any
	if err := yaml.Unmarshal(data, &v); err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to parse "+path, err)
	}
	return v, nil
}
