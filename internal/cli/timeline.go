package cli

import (
	"github.com/spf13/cobra"

	"github.com/roach88/phdtrack/internal/harness"
	"github.com/roach88/phdtrack/internal/timeline"
)

// NewTimelineCommand creates the timeline command group.
func NewTimelineCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "timeline",
		Short: "Generate, edit and commit timelines",
		Long: `Generate a draft timeline from a baseline, edit the draft, and
commit it as an immutable versioned timeline.`,
	}
	cmd.AddCommand(newTimelineGenerateCommand(rootOpts))
	cmd.AddCommand(newTimelineEditCommand(rootOpts))
	cmd.AddCommand(newTimelineCommitCommand(rootOpts))
	return cmd
}

func newTimelineGenerateCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		requestID string
		in        timeline.GenerateInput
	)
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a draft timeline from a baseline",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.execute(cmd, timeline.GenerateName, requestID, in)
		},
	}
	addRequestIDFlag(cmd, &requestID)
	cmd.Flags().StringVar(&in.UserID, "user", "", "owning user id (required)")
	_ = cmd.MarkFlagRequired("user")
	cmd.Flags().StringVar(&in.BaselineID, "baseline", "", "baseline id (required)")
	_ = cmd.MarkFlagRequired("baseline")
	cmd.Flags().StringVar(&in.Title, "title", "", "draft title")
	return cmd
}

func newTimelineCommitCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		requestID string
		in        timeline.CommitInput
	)
	cmd := &cobra.Command{
		Use:   "commit",
		Short: "Commit a draft as a new timeline version",
		Long: `Commit a draft timeline. The draft is frozen and every stage and
milestone is copied into a new committed version. A draft can be
committed once.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.execute(cmd, timeline.CommitName, requestID, in)
		},
	}
	addRequestIDFlag(cmd, &requestID)
	cmd.Flags().StringVar(&in.UserID, "user", "", "owning user id (required)")
	_ = cmd.MarkFlagRequired("user")
	cmd.Flags().StringVar(&in.DraftTimelineID, "draft", "", "draft timeline id (required)")
	_ = cmd.MarkFlagRequired("draft")
	cmd.Flags().StringVar(&in.Title, "title", "", "committed title, defaults to the draft title")
	return cmd
}

func newTimelineEditCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		requestID string
		opsFile   string
		in        timeline.EditInput
	)
	cmd := &cobra.Command{
		Use:   "edit",
		Short: "Apply edit operations to a draft",
		Long: `Apply a list of edit operations to a draft timeline. Either every
operation applies or none does.

The operations file is YAML or JSON:

  - op: rename_stage
    stage_id: s-1
    title: Literature review
  - op: add_milestone
    stage_id: s-1
    title: Survey draft
    target_date: 2027-02-01`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := readYAML(opsFile)
			if err != nil {
				return rootOpts.formatter(cmd).Fail(err)
			}
			ops, err := harness.DecodeInput[[]timeline.EditOperation](raw)
			if err != nil {
				return rootOpts.formatter(cmd).Fail(err)
			}
			in.Operations = ops
			return rootOpts.execute(cmd, timeline.EditName, requestID, in)
		},
	}
	addRequestIDFlag(cmd, &requestID)
	cmd.Flags().StringVar(&in.UserID, "user", "", "owning user id (required)")
	_ = cmd.MarkFlagRequired("user")
	cmd.Flags().StringVar(&in.DraftTimelineID, "draft", "", "draft timeline id (required)")
	_ = cmd.MarkFlagRequired("draft")
	cmd.Flags().StringVar(&opsFile, "ops", "", "operations file (required)")
	_ = cmd.MarkFlagRequired("ops")
	return cmd
}
