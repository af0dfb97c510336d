package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/phdtrack/internal/harness"
)

// NewScenarioCommand creates the scenario command group.
func NewScenarioCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scenario",
		Short: "Run YAML scenarios against a scratch database",
	}
	cmd.AddCommand(newScenarioRunCommand(rootOpts))
	return cmd
}

type scenarioReport struct {
	Pass    bool              `json:"pass"`
	Results []*harness.Result `json:"results"`
}

func (r scenarioReport) Text() string {
	var b strings.Builder
	passed := 0
	for _, res := range r.Results {
		status := "FAIL"
		if res.Pass {
			status = "PASS"
			passed++
		}
		fmt.Fprintf(&b, "%s %s\n", status, res.Scenario)
		for _, st := range res.Steps {
			line := fmt.Sprintf("  %-20s %-24s %s", st.Name, st.Orchestrator, st.Status)
			if st.Cached {
				line += " (cached)"
			}
			if st.ErrorCode != "" {
				line += " [" + st.ErrorCode + "]"
			}
			b.WriteString(strings.TrimRight(line, " ") + "\n")
		}
		for _, msg := range res.Errors {
			fmt.Fprintf(&b, "  error: %s\n", msg)
		}
	}
	fmt.Fprintf(&b, "%d/%d scenarios passed", passed, len(r.Results))
	return b.String()
}

func newScenarioRunCommand(rootOpts *RootOptions) *cobra.Command {
	var parallel int
	cmd := &cobra.Command{
		Use:   "run <scenario.yaml>...",
		Short: "Run scenarios and check their expectations",
		Long: `Run one or more scenario files. Each scenario gets its own scratch
database, a deterministic clock and sequential ids, so results are
reproducible. The command exits 1 if any scenario fails.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f := rootOpts.formatter(cmd)
			if parallel < 1 {
				return f.Fail(NewExitError(ExitCommandError, "parallel must be at least 1"))
			}
			results, err := harness.RunAll(cmd.Context(), args, parallel)
			if err != nil {
				return f.Fail(WrapExitError(ExitCommandError, "failed to run scenarios", err))
			}
			report := scenarioReport{Pass: true, Results: results}
			for _, res := range results {
				if !res.Pass {
					report.Pass = false
				}
			}
			if err := f.Success(report); err != nil {
				return err
			}
			if !report.Pass {
				return NewExitError(ExitFailure, "scenarios failed")
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&parallel, "parallel", 1, "number of scenarios to run at once")
	return cmd
}
