package collab_test

import (
	"context"
	"errors"
	"testing"

	"cloud.google.com/go/documentai/apiv1/documentaipb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/phdtrack/internal/catalog"
	"github.com/roach88/phdtrack/internal/collab"
	"github.com/roach88/phdtrack/internal/domain"
)

func baseline(months int) domain.Baseline {
	return domain.Baseline{
		ID:                  "b-1",
		UserID:              "u-1",
		ProgramName:         "PhD in Biology",
		StartDate:           "2026-01-01",
		TotalDurationMonths: months,
	}
}

func TestTemplateGenerator_DefaultSequence(t *testing.T) {
	cat, err := catalog.Default()
	require.NoError(t, err)
	g := collab.NewTemplateGenerator(cat)

	stages, err := g.Propose(context.Background(), collab.Proposal{Baseline: baseline(48)})
	require.NoError(t, err)

	var types []string
	total := 0
	for _, s := range stages {
		types = append(types, s.StageType)
		total += s.DurationMonths
		assert.Equal(t, "default_sequence", s.DetectedFrom)
		assert.Len(t, s.Milestones, 2)
		assert.GreaterOrEqual(t, s.DurationMonths, 1)
	}
	assert.Equal(t, []string{"literature_review", "methodology", "research", "analysis", "writing", "defense"}, types)
	assert.Equal(t, 48, total, "durations are scaled to the program length")

	for _, s := range stages {
		_, err := cat.StageType(s.StageType)
		assert.NoError(t, err, "generated stage types are in the catalog")
	}
}

func TestTemplateGenerator_KeywordDetection(t *testing.T) {
	cat, err := catalog.Default()
	require.NoError(t, err)
	g := collab.NewTemplateGenerator(cat)

	text := `Year one is taught coursework. Students then complete a literature review,
collect data through interviews, and write the dissertation before the viva.`
	stages, err := g.Propose(context.Background(), collab.Proposal{Baseline: baseline(36), DocumentText: text})
	require.NoError(t, err)

	var types []string
	for _, s := range stages {
		types = append(types, s.StageType)
		assert.Equal(t, "keywords", s.DetectedFrom)
	}
	assert.Equal(t, []string{"coursework", "literature_review", "data_collection", "writing", "defense"}, types)

	// Milestone dates are monotonic across the whole plan.
	prev := ""
	for _, s := range stages {
		for _, m := range s.Milestones {
			assert.GreaterOrEqual(t, m.TargetDate, prev)
			prev = m.TargetDate
		}
	}
	assert.LessOrEqual(t, prev, "2029-01-01")
}

func TestTemplateGenerator_BadStartDate(t *testing.T) {
	g := collab.NewTemplateGenerator(nil)
	b := baseline(12)
	b.StartDate = "January"

	_, err := g.Propose(context.Background(), collab.Proposal{Baseline: b})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "start date")
}

func TestStaticGenerator(t *testing.T) {
	g := &collab.StaticGenerator{Stages: []collab.StageProposal{
		{Title: "Research", StageType: "RESEARCH", Milestones: []collab.MilestoneProposal{{Title: "Pilot"}}},
	}}

	got, err := g.Propose(context.Background(), collab.Proposal{})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "RESEARCH", got[0].StageType, "static proposals are passed through untouched")
	assert.Equal(t, "static", got[0].DetectedFrom)

	got[0].Milestones[0].Title = "mutated"
	again, err := g.Propose(context.Background(), collab.Proposal{})
	require.NoError(t, err)
	assert.Equal(t, "Pilot", again[0].Milestones[0].Title)

	boom := errors.New("generator down")
	_, err = (&collab.StaticGenerator{Err: boom}).Propose(context.Background(), collab.Proposal{})
	assert.ErrorIs(t, err, boom)
}

func TestPlainTextProcessor(t *testing.T) {
	doc := collab.RawDocument{
		Filename: "handbook.md",
		MimeType: "text/markdown",
		Content: []byte("# Program Handbook\r\n" +
			"Program: PhD in Biology\r\n" +
			"Institution: Test University\r\n" +
			"- Duration: 48 months\r\n" +
			"Program: duplicate ignored\r\n" +
			"Students complete coursework first.\r\n"),
	}

	ex, err := collab.PlainTextProcessor{}.Process(context.Background(), doc)
	require.NoError(t, err)
	assert.Equal(t, "plain_text", ex.Processor)
	assert.Equal(t, 100, ex.Confidence)
	assert.NotContains(t, ex.Text, "\r")
	assert.Equal(t, map[string]string{
		"program":     "PhD in Biology",
		"institution": "Test University",
		"duration":    "48 months",
	}, ex.Metadata)
}

func TestPlainTextProcessor_InvalidUTF8(t *testing.T) {
	_, err := collab.PlainTextProcessor{}.Process(context.Background(), collab.RawDocument{
		Filename: "bad.txt",
		Content:  []byte{0xff, 0xfe, 0xfd},
	})
	assert.ErrorIs(t, err, collab.ErrUnreadableDocument)
}

func TestMimeRouter(t *testing.T) {
	r := collab.NewMimeRouter()

	assert.True(t, r.Supports("text/plain; charset=utf-8"))
	assert.True(t, r.Supports("TEXT/MARKDOWN"))
	assert.False(t, r.Supports("application/pdf"))

	_, err := r.Process(context.Background(), collab.RawDocument{Filename: "a.pdf", MimeType: "application/pdf", Content: []byte("%PDF")})
	assert.ErrorIs(t, err, collab.ErrUnsupportedMimeType)

	ex, err := r.Process(context.Background(), collab.RawDocument{Filename: "a.txt", MimeType: "text/plain", Content: []byte("hello")})
	require.NoError(t, err)
	assert.Equal(t, "hello", ex.Text)
}

func TestDocumentAIProcessor(t *testing.T) {
	cfg := collab.DocumentAIConfig{Project: "proj", Location: "eu", Processor: "abc"}
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "projects/proj/locations/eu/processors/abc", cfg.ProcessorName())

	var seen *documentaipb.ProcessRequest
	p := collab.NewDocumentAIProcessorFunc(cfg, func(_ context.Context, req *documentaipb.ProcessRequest) (*documentaipb.ProcessResponse, error) {
		seen = req
		return &documentaipb.ProcessResponse{Document: &documentaipb.Document{
			Text: "  Extracted handbook text  ",
			Pages: []*documentaipb.Document_Page{
				{Layout: &documentaipb.Document_Page_Layout{Confidence: 0.9}},
				{Layout: &documentaipb.Document_Page_Layout{Confidence: 0.8}},
			},
		}}, nil
	})

	r := collab.NewMimeRouter()
	r.Handle(p, "application/pdf")

	ex, err := r.Process(context.Background(), collab.RawDocument{Filename: "h.pdf", MimeType: "application/pdf", Content: []byte("%PDF-1.7")})
	require.NoError(t, err)
	assert.Equal(t, "documentai", ex.Processor)
	assert.Equal(t, "Extracted handbook text", ex.Text)
	assert.Equal(t, 85, ex.Confidence)
	assert.Equal(t, "2", ex.Metadata["pages"])

	require.NotNil(t, seen)
	assert.Equal(t, "projects/proj/locations/eu/processors/abc", seen.GetName())
	assert.Equal(t, "application/pdf", seen.GetRawDocument().GetMimeType())
	assert.Equal(t, []byte("%PDF-1.7"), seen.GetRawDocument().GetContent())
}

func TestDocumentAIProcessor_Errors(t *testing.T) {
	assert.Error(t, collab.DocumentAIConfig{Location: "us"}.Validate())

	boom := errors.New("quota exceeded")
	p := collab.NewDocumentAIProcessorFunc(collab.DocumentAIConfig{Project: "p", Location: "us", Processor: "x"},
		func(context.Context, *documentaipb.ProcessRequest) (*documentaipb.ProcessResponse, error) {
			return nil, boom
		})

	_, err := p.Process(context.Background(), collab.RawDocument{Filename: "h.pdf", Content: []byte("x")})
	assert.ErrorIs(t, err, boom)

	_, err = p.Process(context.Background(), collab.RawDocument{Filename: "empty.pdf"})
	assert.ErrorIs(t, err, collab.ErrUnreadableDocument)
	assert.NoError(t, p.Close())
}
