package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/phdtrack/internal/engine"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	ConfigFile string
	DB         string
	Driver     string

	// runnerOptions are appended to the runner's options. Tests use it to
	// pin the clock and id generator.
	runnerOptions []engine.Option
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for phdctl.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "phdctl",
		Short: "phdctl - PhD timeline orchestration",
		Long: `phdctl drives the PhD timeline orchestrators: baselines, draft and
committed timelines, progress events, journey-health assessments and
read-only analytics. Every mutating command is idempotent per
--request-id and leaves a decision trace behind.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				f := &OutputFormatter{Format: "text", Writer: cmd.OutOrStdout(), ErrWriter: cmd.ErrOrStderr()}
				return f.Fail(NewExitError(ExitCommandError,
					fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats)))
			}
			return nil
		},
	}

	// Global flags
	pf := cmd.PersistentFlags()
	pf.BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	pf.StringVar(&opts.Format, "format", "text", "output format (json|text)")
	pf.StringVar(&opts.ConfigFile, "config", "", "path to a YAML config file")
	pf.StringVar(&opts.DB, "db", "", "path to the SQLite database (overrides database.path)")
	pf.StringVar(&opts.Driver, "driver", "", "database driver: sqlite or postgres (overrides database.driver)")

	cmd.AddCommand(NewUserCommand(opts))
	cmd.AddCommand(NewBaselineCommand(opts))
	cmd.AddCommand(NewTimelineCommand(opts))
	cmd.AddCommand(NewProgressCommand(opts))
	cmd.AddCommand(NewAssessCommand(opts))
	cmd.AddCommand(NewAnalyticsCommand(opts))
	cmd.AddCommand(NewTraceCommand(opts))
	cmd.AddCommand(NewLedgerCommand(opts))
	cmd.AddCommand(NewScenarioCommand(opts))

	return cmd
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}

func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Verbose,
	}
}

// addRequestIDFlag registers the --request-id flag every mutating command
// requires.
func addRequestIDFlag(cmd *cobra.Command, target *string) {
	cmd.Flags().StringVar(target, "request-id", "", "idempotency key of this request (required)")
	_ = cmd.MarkFlagRequired("request-id")
}
