package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/phdtrack/internal/domain"
	"github.com/roach88/phdtrack/internal/engine"
	"github.com/roach88/phdtrack/internal/store"
	"github.com/roach88/phdtrack/internal/traceexport"
)

// NewTraceCommand creates the trace command group.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Inspect, verify and export decision traces",
	}
	cmd.AddCommand(newTraceShowCommand(rootOpts))
	cmd.AddCommand(newTraceListCommand(rootOpts))
	cmd.AddCommand(newTraceVerifyCommand(rootOpts))
	cmd.AddCommand(newTraceExportCommand(rootOpts))
	return cmd
}

// traceView renders one trace with its steps and evidence.
type traceView struct {
	*store.TraceRecord
}

func (v traceView) Text() string {
	var b strings.Builder
	tr := v.TraceRecord
	fmt.Fprintf(&b, "Trace %s\n", tr.ID)
	fmt.Fprintf(&b, "  orchestrator: %s\n", tr.OrchestratorName)
	fmt.Fprintf(&b, "  request:      %s (attempt %d)\n", tr.RequestID, tr.Attempt)
	fmt.Fprintf(&b, "  status:       %s\n", tr.Status)
	if tr.ErrorCode != "" {
		fmt.Fprintf(&b, "  error:        [%s] %s\n", tr.ErrorCode, tr.ErrorMessage)
	}
	fmt.Fprintf(&b, "  input hash:   %s\n", tr.InputHash)
	if tr.OutputHash != "" {
		fmt.Fprintf(&b, "  output hash:  %s\n", tr.OutputHash)
	}
	b.WriteString("Steps:\n")
	for _, s := range tr.Steps {
		fmt.Fprintf(&b, "  %2d. %-32s %s (%dms)", s.StepNumber, s.Action, s.Status, s.DurationMS)
		if s.ErrorMessage != "" {
			fmt.Fprintf(&b, " %s", s.ErrorMessage)
		}
		b.WriteString("\n")
	}
	if len(tr.Evidence) > 0 {
		b.WriteString("Evidence:\n")
		for _, ev := range tr.Evidence {
			fmt.Fprintf(&b, "  step %d #%d %s from %s (confidence %d)\n",
				ev.StepNumber, ev.Seq, ev.Kind, ev.Source, ev.Confidence)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func newTraceShowCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show <trace-id>",
		Short: "Show a trace with its steps and evidence",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f := rootOpts.formatter(cmd)
			e, err := rootOpts.open(cmd)
			if err != nil {
				return f.Fail(err)
			}
			defer e.close(cmd.Context())

			tr, err := loadTrace(cmd, e, args[0])
			if err != nil {
				return f.Fail(err)
			}
			return f.Success(traceView{tr})
		},
	}
}

func loadTrace(cmd *cobra.Command, e *env, id string) (*store.TraceRecord, error) {
	tr, err := e.store.GetTrace(cmd.Context(), id)
	if err != nil {
		if store.IsNotFound(err) {
			return nil, NewExitError(ExitFailure, "trace "+id+" not found")
		}
		return nil, engine.StoreFailure("trace.get", err)
	}
	return tr, nil
}

type traceListOptions struct {
	Orchestrator string
	RequestID    string
	Status       string
	Limit        int
}

func (o traceListOptions) filter() (store.TraceFilter, error) {
	f := store.TraceFilter{
		OrchestratorName: o.Orchestrator,
		RequestID:        o.RequestID,
		Status:           domain.ExecutionStatus(strings.ToUpper(o.Status)),
		Limit:            o.Limit,
	}
	switch f.Status {
	case "", domain.StatusPending, domain.StatusCompleted, domain.StatusFailed:
	default:
		return f, NewExitError(ExitCommandError,
			fmt.Sprintf("invalid status %q: must be PENDING, COMPLETED or FAILED", o.Status))
	}
	if f.Limit < 0 {
		return f, NewExitError(ExitCommandError, "limit must not be negative")
	}
	return f, nil
}

func (o *traceListOptions) register(cmd *cobra.Command, defaultLimit int) {
	cmd.Flags().StringVar(&o.Orchestrator, "orchestrator", "", "filter by orchestrator name")
	cmd.Flags().StringVar(&o.RequestID, "request", "", "filter by request id")
	cmd.Flags().StringVar(&o.Status, "status", "", "filter by status (PENDING, COMPLETED, FAILED)")
	cmd.Flags().IntVar(&o.Limit, "limit", defaultLimit, "maximum number of traces, 0 for all")
}

type traceSummary struct {
	ID           string                 `json:"id"`
	Orchestrator string                 `json:"orchestrator"`
	RequestID    string                 `json:"request_id"`
	Attempt      int                    `json:"attempt"`
	Status       domain.ExecutionStatus `json:"status"`
	ErrorCode    string                 `json:"error_code,omitempty"`
	StartedAt    string                 `json:"started_at"`
}

type traceList struct {
	Traces []traceSummary `json:"traces"`
}

func (l traceList) Text() string {
	if len(l.Traces) == 0 {
		return "no traces"
	}
	var b strings.Builder
	for _, t := range l.Traces {
		fmt.Fprintf(&b, "%s  %-24s %-20s #%d %-9s %s", t.StartedAt, t.Orchestrator, t.RequestID, t.Attempt, t.Status, t.ID)
		if t.ErrorCode != "" {
			fmt.Fprintf(&b, " [%s]", t.ErrorCode)
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func newTraceListCommand(rootOpts *RootOptions) *cobra.Command {
	var opts traceListOptions
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List trace headers, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := rootOpts.formatter(cmd)
			filter, err := opts.filter()
			if err != nil {
				return f.Fail(err)
			}
			e, err := rootOpts.open(cmd)
			if err != nil {
				return f.Fail(err)
			}
			defer e.close(cmd.Context())

			traces, err := e.store.ListTraces(cmd.Context(), filter)
			if err != nil {
				return f.Fail(engine.StoreFailure("trace.list", err))
			}
			out := traceList{Traces: make([]traceSummary, 0, len(traces))}
			for _, tr := range traces {
				out.Traces = append(out.Traces, traceSummary{
					ID:           tr.ID,
					Orchestrator: tr.OrchestratorName,
					RequestID:    tr.RequestID,
					Attempt:      tr.Attempt,
					Status:       tr.Status,
					ErrorCode:    tr.ErrorCode,
					StartedAt:    tr.StartedAt.UTC().Format("2006-01-02T15:04:05.000Z"),
				})
			}
			return f.Success(out)
		},
	}
	opts.register(cmd, 20)
	return cmd
}

type verifyResult struct {
	TraceID string `json:"trace_id"`
	Steps   int    `json:"steps"`
	Valid   bool   `json:"valid"`
}

func (r verifyResult) Text() string {
	return fmt.Sprintf("trace %s is complete (%d steps)", r.TraceID, r.Steps)
}

func newTraceVerifyCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "verify <trace-id>",
		Short: "Check a trace for completeness",
		Long: `Check that a trace is complete: numbered steps, terminal statuses,
hashes present and every evidence payload matching its digest.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f := rootOpts.formatter(cmd)
			e, err := rootOpts.open(cmd)
			if err != nil {
				return f.Fail(err)
			}
			defer e.close(cmd.Context())

			tr, err := loadTrace(cmd, e, args[0])
			if err != nil {
				return f.Fail(err)
			}
			if err := engine.ValidateTrace(tr); err != nil {
				return f.Fail(err)
			}
			return f.Success(verifyResult{TraceID: tr.ID, Steps: len(tr.Steps), Valid: true})
		},
	}
}

type exportResult struct {
	traceexport.Result
}

func (r exportResult) Text() string {
	return fmt.Sprintf("exported %d traces to %s", r.Exported, r.Destination)
}

func newTraceExportCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		opts traceListOptions
		to   string
		name string
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export traces to NDJSON or an S3-compatible bucket",
		Long: `Export traces with their steps and evidence.

Destinations:
  ndjson  one canonical JSON line per trace in export.dir
  minio   one object per trace under traces/<orchestrator>/<request>/<attempt>.json
  noop    count matching traces without writing them`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := rootOpts.formatter(cmd)
			ctx := cmd.Context()
			filter, err := opts.filter()
			if err != nil {
				return f.Fail(err)
			}
			e, err := rootOpts.open(cmd)
			if err != nil {
				return f.Fail(err)
			}
			defer e.close(ctx)

			headers, err := e.store.ListTraces(ctx, filter)
			if err != nil {
				return f.Fail(engine.StoreFailure("trace.export", err))
			}
			traces := make([]store.TraceRecord, 0, len(headers))
			for _, h := range headers {
				tr, err := e.store.GetTrace(ctx, h.ID)
				if err != nil {
					return f.Fail(engine.StoreFailure("trace.export", err))
				}
				traces = append(traces, *tr)
			}

			exp, err := e.exporter(cmd, to, name)
			if err != nil {
				return f.Fail(err)
			}
			res, err := exp.Export(ctx, traces)
			if err != nil {
				return f.Fail(WrapExitError(ExitFailure,
					fmt.Sprintf("export to %s stopped after %d traces", res.Destination, res.Exported), err))
			}
			e.logger.Info("traces exported", "destination", res.Destination, "count", res.Exported)
			return f.Success(exportResult{res})
		},
	}
	opts.register(cmd, 0)
	cmd.Flags().StringVar(&to, "to", "ndjson", "destination: ndjson, minio or noop")
	cmd.Flags().StringVar(&name, "name", "", "NDJSON file name, defaults to traces-<timestamp>.ndjson")
	return cmd
}

// exporter builds the destination named by to. Files it opens are closed
// with the env.
func (e *env) exporter(cmd *cobra.Command, to, name string) (traceexport.Exporter, error) {
	switch to {
	case "noop":
		return traceexport.NoopExporter{}, nil
	case "ndjson":
		if name == "" {
			name = "traces-" + e.runner.Clock().Now().UTC().Format("20060102T150405Z") + ".ndjson"
		}
		exp, file, err := traceexport.CreateNDJSONFile(e.cfg.Export.Dir, name)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to create export file", err)
		}
		e.closers = append(e.closers, func(context.Context) error { return file.Close() })
		return exp, nil
	case "minio":
		mc := e.cfg.MinIOConfig()
		client, err := traceexport.NewMinIOClient(mc)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "invalid MinIO configuration", err)
		}
		exp, err := traceexport.NewMinIOExporter(cmd.Context(), client, mc.Bucket, mc.Region)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to prepare bucket", err)
		}
		return exp, nil
	default:
		return nil, NewExitError(ExitCommandError,
			fmt.Sprintf("invalid destination %q: must be ndjson, minio or noop", to))
	}
}
