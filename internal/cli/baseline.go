package cli

import (
	"encoding/base64"
	"mime"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/roach88/phdtrack/internal/baseline"
)

// NewBaselineCommand creates the baseline command group.
func NewBaselineCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "baseline",
		Short: "Record program baselines",
	}
	cmd.AddCommand(newBaselineCreateCommand(rootOpts))
	return cmd
}

type baselineCreateOptions struct {
	*RootOptions
	RequestID string
	Document  string
	Input     baseline.Input
}

func newBaselineCreateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &baselineCreateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a baseline, optionally from a requirements document",
		Long: `Create a program baseline for a user.

With --document the file is attached and its extracted text is stored
alongside the baseline. Uploading the same document twice reuses the
existing baseline.

Example:
  phdctl baseline create --request-id b-1 --user u-1 \
    --program "PhD Computer Science" --institution "MIT" \
    --field "Machine Learning" --start-date 2026-09-01 --months 48`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBaselineCreate(opts, cmd)
		},
	}

	addRequestIDFlag(cmd, &opts.RequestID)
	f := cmd.Flags()
	f.StringVar(&opts.Input.UserID, "user", "", "owning user id (required)")
	_ = cmd.MarkFlagRequired("user")
	f.StringVar(&opts.Input.ProgramName, "program", "", "program name")
	f.StringVar(&opts.Input.Institution, "institution", "", "institution")
	f.StringVar(&opts.Input.FieldOfStudy, "field", "", "field of study")
	f.StringVar(&opts.Input.StartDate, "start-date", "", "program start date (YYYY-MM-DD)")
	f.StringVar(&opts.Input.ExpectedEndDate, "end-date", "", "expected end date (YYYY-MM-DD)")
	f.IntVar(&opts.Input.TotalDurationMonths, "months", 0, "total program duration in months")
	f.StringVar(&opts.Input.RequirementsSummary, "requirements", "", "free-text requirements summary")
	f.StringVar(&opts.Document, "document", "", "requirements document to attach")

	return cmd
}

func runBaselineCreate(opts *baselineCreateOptions, cmd *cobra.Command) error {
	in := opts.Input
	if opts.Document != "" {
		doc, err := readDocument(opts.Document)
		if err != nil {
			return opts.formatter(cmd).Fail(err)
		}
		in.Document = doc
	}
	return opts.execute(cmd, baseline.Name, opts.RequestID, in)
}

// readDocument loads a file as a baseline document. The mime type comes
// from the file extension and falls back to text/plain.
func readDocument(path string) (*baseline.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to read document", err)
	}
	mimeType := "text/plain"
	if t := mime.TypeByExtension(filepath.Ext(path)); t != "" {
		if mt, _, err := mime.ParseMediaType(t); err == nil {
			mimeType = mt
		}
	}
	return &baseline.Document{
		Filename:      filepath.Base(path),
		MimeType:      mimeType,
		ContentBase64: base64.StdEncoding.EncodeToString(data),
	}, nil
}
