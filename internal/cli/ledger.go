package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/phdtrack/internal/engine"
)

// NewLedgerCommand creates the ledger command group.
func NewLedgerCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ledger",
		Short: "Inspect the idempotency ledger",
	}
	cmd.AddCommand(newLedgerStaleCommand(rootOpts))
	return cmd
}

type staleEntry struct {
	Orchestrator string `json:"orchestrator"`
	RequestID    string `json:"request_id"`
	Attempt      int    `json:"attempt"`
	TraceID      string `json:"trace_id,omitempty"`
	CreatedAt    string `json:"created_at"`
	AgeSeconds   int64  `json:"age_seconds"`
}

type staleReport struct {
	OlderThan string       `json:"older_than"`
	Entries   []staleEntry `json:"entries"`
}

func (r staleReport) Text() string {
	if len(r.Entries) == 0 {
		return "no pending requests older than " + r.OlderThan
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%d pending requests older than %s:\n", len(r.Entries), r.OlderThan)
	for _, e := range r.Entries {
		fmt.Fprintf(&b, "  %-24s %-20s #%d  age %s\n", e.Orchestrator, e.RequestID, e.Attempt,
			time.Duration(e.AgeSeconds)*time.Second)
	}
	return strings.TrimRight(b.String(), "\n")
}

func newLedgerStaleCommand(rootOpts *RootOptions) *cobra.Command {
	var olderThan time.Duration
	cmd := &cobra.Command{
		Use:   "stale",
		Short: "List PENDING requests that never finished",
		Long: `List PENDING ledger entries older than a cutoff. A pending entry
blocks retries of its request with CONCURRENT_EXECUTION until it is
resolved, so stale entries usually mean a crashed process.

The cutoff defaults to ledger.stale_after.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := rootOpts.formatter(cmd)
			ctx := cmd.Context()
			e, err := rootOpts.open(cmd)
			if err != nil {
				return f.Fail(err)
			}
			defer e.close(ctx)

			d := e.cfg.Ledger.StaleAfter
			if cmd.Flags().Changed("older-than") {
				d = olderThan
			}
			if d <= 0 {
				return f.Fail(NewExitError(ExitCommandError, "older-than must be positive"))
			}

			now := e.runner.Clock().Now()
			entries, err := e.store.StaleLedgerEntries(ctx, now.Add(-d))
			if err != nil {
				return f.Fail(engine.StoreFailure("ledger.stale", err))
			}
			report := staleReport{OlderThan: d.String(), Entries: make([]staleEntry, 0, len(entries))}
			for _, le := range entries {
				report.Entries = append(report.Entries, staleEntry{
					Orchestrator: le.OrchestratorName,
					RequestID:    le.RequestID,
					Attempt:      le.Attempt,
					TraceID:      le.TraceID,
					CreatedAt:    le.CreatedAt.UTC().Format(time.RFC3339),
					AgeSeconds:   int64(now.Sub(le.CreatedAt) / time.Second),
				})
			}
			if len(report.Entries) > 0 {
				e.logger.Warn("stale pending requests", "count", len(report.Entries), "older_than", d)
			}
			return f.Success(report)
		},
	}
	cmd.Flags().DurationVar(&olderThan, "older-than", 0, "age cutoff, defaults to ledger.stale_after")
	return cmd
}
