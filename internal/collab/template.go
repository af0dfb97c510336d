package collab

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/roach88/phdtrack/internal/domain"
)

// DurationSource supplies default stage lengths. *catalog.Catalog
// implements it.
type DurationSource interface {
	DefaultDuration(st domain.StageType) int
}

type stageTemplate struct {
	stageType  domain.StageType
	title      string
	keywords   *regexp.Regexp
	milestones []MilestoneProposal
}

// templates lists the recognized stages in program order.
var templates = []stageTemplate{
	{
		stageType: domain.StageCoursework,
		title:     "Coursework",
		keywords:  regexp.MustCompile(`(?i)\b(coursework|courses?|curriculum|credits?|taught modules?)\b`),
		milestones: []MilestoneProposal{
			{Title: "Complete Required Courses", Description: "Finish all mandatory coursework modules and assessments", IsCritical: true},
			{Title: "Pass Comprehensive Exams", Description: "Complete comprehensive or qualifying examinations", IsCritical: true},
		},
	},
	{
		stageType: domain.StageLiteratureReview,
		title:     "Literature Review",
		keywords:  regexp.MustCompile(`(?i)\b(literature review|lit review|related work|prior work|state of the art|theoretical framework)\b`),
		milestones: []MilestoneProposal{
			{Title: "Draft Literature Review", Description: "Survey and synthesize the prior work in the field"},
			{Title: "Identify Research Gaps", Description: "Write up the open questions the thesis addresses"},
		},
	},
	{
		stageType: domain.StageMethodology,
		title:     "Methodology",
		keywords:  regexp.MustCompile(`(?i)\b(methodology|methods|research design|experimental design|study design)\b`),
		milestones: []MilestoneProposal{
			{Title: "Finalize Research Design", Description: "Agree the research design with the supervisor", IsCritical: true},
			{Title: "Obtain Ethics Approval", Description: "Submit and clear the ethics review"},
		},
	},
	{
		stageType: domain.StageResearch,
		title:     "Research",
		keywords:  regexp.MustCompile(`(?i)\b(research phase|original research|research project|prototype|pilot study)\b`),
		milestones: []MilestoneProposal{
			{Title: "Complete Pilot Study", Description: "Run a small-scale study to validate the approach"},
			{Title: "Present Research Progress", Description: "Present interim results to the committee"},
		},
	},
	{
		stageType: domain.StageDataCollection,
		title:     "Data Collection",
		keywords:  regexp.MustCompile(`(?i)\b(data collection|collect(ing)? data|field ?work|interviews?|experiments?|sampling)\b`),
		milestones: []MilestoneProposal{
			{Title: "Collect Primary Data", Description: "Complete the planned data collection", IsCritical: true},
			{Title: "Validate Dataset", Description: "Clean the dataset and check it for completeness"},
		},
	},
	{
		stageType: domain.StageAnalysis,
		title:     "Analysis",
		keywords:  regexp.MustCompile(`(?i)\b(analysis|analy[sz]ing|statistical|evaluation|findings)\b`),
		milestones: []MilestoneProposal{
			{Title: "Complete Data Analysis", Description: "Run the planned analyses", IsCritical: true},
			{Title: "Interpret Findings", Description: "Relate the results to the research questions"},
		},
	},
	{
		stageType: domain.StageWriting,
		title:     "Dissertation Writing",
		keywords:  regexp.MustCompile(`(?i)\b(writing|dissertation|thesis|manuscript|write[- ]up)\b`),
		milestones: []MilestoneProposal{
			{Title: "Complete Dissertation Draft", Description: "Write a full draft of every chapter", IsCritical: true},
			{Title: "Revise With Committee Feedback", Description: "Address the committee's comments on the draft"},
		},
	},
	{
		stageType: domain.StagePublication,
		title:     "Publication",
		keywords:  regexp.MustCompile(`(?i)\b(publications?|publish(ing)?|journal|conference paper|peer review)\b`),
		milestones: []MilestoneProposal{
			{Title: "Submit First Paper", Description: "Submit a paper to a peer-reviewed venue"},
			{Title: "Present at Conference", Description: "Present the work at an academic conference"},
		},
	},
	{
		stageType: domain.StageSubmission,
		title:     "Submission",
		keywords:  regexp.MustCompile(`(?i)\b(submission|submit(ting)? the (thesis|dissertation)|final deadline)\b`),
		milestones: []MilestoneProposal{
			{Title: "Complete Formatting Review", Description: "Pass the graduate school's formatting check"},
			{Title: "Submit Dissertation", Description: "Submit the final dissertation", IsCritical: true},
		},
	},
	{
		stageType: domain.StageDefense,
		title:     "Defense",
		keywords:  regexp.MustCompile(`(?i)\b(defen[cs]e|viva|oral exam(ination)?)\b`),
		milestones: []MilestoneProposal{
			{Title: "Schedule Defense", Description: "Agree a defense date with the committee"},
			{Title: "Pass Dissertation Defense", Description: "Defend the dissertation", IsCritical: true},
		},
	},
}

// defaultSequence is proposed when the document names too few stages.
var defaultSequence = []domain.StageType{
	domain.StageLiteratureReview,
	domain.StageMethodology,
	domain.StageResearch,
	domain.StageAnalysis,
	domain.StageWriting,
	domain.StageDefense,
}

// minDetectedStages is the fewest keyword-detected stages the generator
// trusts over the default sequence.
const minDetectedStages = 3

// TemplateGenerator proposes stages by keyword detection over the program
// document, with two templated milestones per stage. Stage lengths start
// from the catalog defaults and are scaled to the baseline's duration;
// milestone target dates are spread evenly across each stage.
type TemplateGenerator struct {
	Durations DurationSource
}

// NewTemplateGenerator returns a generator using the given durations.
func NewTemplateGenerator(d DurationSource) *TemplateGenerator {
	return &TemplateGenerator{Durations: d}
}

// Name implements ContentGenerator.
func (g *TemplateGenerator) Name() string { return "template" }

// Propose implements ContentGenerator.
func (g *TemplateGenerator) Propose(ctx context.Context, p Proposal) ([]StageProposal, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start, err := time.Parse(domain.DateLayout, p.Baseline.StartDate)
	if err != nil {
		return nil, fmt.Errorf("template generator: baseline start date: %w", err)
	}

	picked, source := detectStages(p.DocumentText)
	months := g.scaleDurations(picked, p.Baseline.TotalDurationMonths)

	out := make([]StageProposal, 0, len(picked))
	offset := 0
	for i, tpl := range picked {
		stage := StageProposal{
			Title:          tpl.title,
			StageType:      string(tpl.stageType),
			DurationMonths: months[i],
			DetectedFrom:   source,
		}
		n := len(tpl.milestones)
		for j, m := range tpl.milestones {
			due := offset + months[i]*(j+1)/n
			m.TargetDate = start.AddDate(0, due, 0).Format(domain.DateLayout)
			stage.Milestones = append(stage.Milestones, m)
		}
		out = append(out, stage)
		offset += months[i]
	}
	return out, nil
}

func detectStages(text string) ([]stageTemplate, string) {
	var found []stageTemplate
	for _, tpl := range templates {
		if tpl.keywords.MatchString(text) {
			found = append(found, tpl)
		}
	}
	if len(found) >= minDetectedStages {
		return found, "keywords"
	}

	byType := make(map[domain.StageType]stageTemplate, len(templates))
	for _, tpl := range templates {
		byType[tpl.stageType] = tpl
	}
	seq := make([]stageTemplate, 0, len(defaultSequence))
	for _, st := range defaultSequence {
		seq = append(seq, byType[st])
	}
	return seq, "default_sequence"
}

// scaleDurations stretches the default lengths to total months. Every
// stage gets at least one month; the last stage absorbs rounding.
func (g *TemplateGenerator) scaleDurations(stages []stageTemplate, total int) []int {
	defaults := make([]int, len(stages))
	sum := 0
	for i, s := range stages {
		d := 0
		if g.Durations != nil {
			d = g.Durations.DefaultDuration(s.stageType)
		}
		if d <= 0 {
			d = 1
		}
		defaults[i] = d
		sum += d
	}
	if total <= 0 {
		return defaults
	}

	out := make([]int, len(stages))
	used := 0
	for i, d := range defaults {
		m := d * total / sum
		if m < 1 {
			m = 1
		}
		out[i] = m
		used += m
	}
	if last := len(out) - 1; last >= 0 && used < total {
		out[last] += total - used
	}
	return out
}
