package cli

import (
	"github.com/spf13/cobra"

	"github.com/roach88/phdtrack/internal/analytics"
	"github.com/roach88/phdtrack/internal/assessment"
	"github.com/roach88/phdtrack/internal/domain"
	"github.com/roach88/phdtrack/internal/harness"
	"github.com/roach88/phdtrack/internal/progress"
)

// NewProgressCommand creates the progress command group.
func NewProgressCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "progress",
		Short: "Log progress against committed milestones",
	}
	cmd.AddCommand(newProgressLogCommand(rootOpts))
	return cmd
}

func newProgressLogCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		requestID string
		in        progress.Input
	)
	cmd := &cobra.Command{
		Use:   "log",
		Short: "Append a progress event to a committed milestone",
		Long: `Append a progress event. An event of type milestone_completed also
marks the milestone completed; completing it again only appends.

Event types: milestone_completed, milestone_progress, achievement,
setback, note.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.execute(cmd, progress.Name, requestID, in)
		},
	}
	addRequestIDFlag(cmd, &requestID)
	f := cmd.Flags()
	f.StringVar(&in.UserID, "user", "", "owning user id (required)")
	_ = cmd.MarkFlagRequired("user")
	f.StringVar(&in.MilestoneID, "milestone", "", "committed milestone id (required)")
	_ = cmd.MarkFlagRequired("milestone")
	f.StringVar(&in.EventType, "type", progress.EventMilestoneProgress, "event type")
	f.StringVar(&in.Title, "title", "", "event title (required)")
	_ = cmd.MarkFlagRequired("title")
	f.StringVar(&in.Description, "description", "", "event description")
	f.StringVar(&in.EventDate, "date", "", "event date (YYYY-MM-DD, required)")
	_ = cmd.MarkFlagRequired("date")
	f.StringVar(&in.ImpactLevel, "impact", "", "impact level: low, medium or high")
	return cmd
}

// NewAssessCommand creates the assess command group.
func NewAssessCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "assess",
		Short: "Score journey-health questionnaires",
	}
	cmd.AddCommand(newAssessSubmitCommand(rootOpts))
	return cmd
}

func newAssessSubmitCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		requestID     string
		responsesFile string
		in            assessment.Input
	)
	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Submit questionnaire responses for scoring",
		Long: `Score a questionnaire submission. The responses file is YAML or JSON:

  - dimension: research_progress
    question_id: rp-1
    response_value: 4
  - dimension: motivation
    question_id: mo-1
    response_value: 2`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := readYAML(responsesFile)
			if err != nil {
				return rootOpts.formatter(cmd).Fail(err)
			}
			responses, err := harness.DecodeInput[[]domain.AssessmentResponse](raw)
			if err != nil {
				return rootOpts.formatter(cmd).Fail(err)
			}
			in.Responses = responses
			return rootOpts.execute(cmd, assessment.Name, requestID, in)
		},
	}
	addRequestIDFlag(cmd, &requestID)
	f := cmd.Flags()
	f.StringVar(&in.UserID, "user", "", "owning user id (required)")
	_ = cmd.MarkFlagRequired("user")
	f.StringVar(&in.SubmissionID, "submission", "", "questionnaire submission id (required)")
	_ = cmd.MarkFlagRequired("submission")
	f.StringVar(&responsesFile, "responses", "", "responses file (required)")
	_ = cmd.MarkFlagRequired("responses")
	f.StringVar(&in.Notes, "notes", "", "free-text notes")
	return cmd
}

// NewAnalyticsCommand creates the analytics command group.
func NewAnalyticsCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analytics",
		Short: "Aggregate committed timelines",
	}

	var (
		requestID string
		in        analytics.Input
	)
	run := &cobra.Command{
		Use:   "run",
		Short: "Append an analytics snapshot for a committed timeline",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.execute(cmd, analytics.Name, requestID, in)
		},
	}
	addRequestIDFlag(run, &requestID)
	run.Flags().StringVar(&in.UserID, "user", "", "owning user id (required)")
	_ = run.MarkFlagRequired("user")
	run.Flags().StringVar(&in.CommittedTimelineID, "timeline", "", "committed timeline id (required)")
	_ = run.MarkFlagRequired("timeline")

	cmd.AddCommand(run)
	return cmd
}
