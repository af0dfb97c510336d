// Package baseline implements the orchestrator that turns a program
// description, and optionally an uploaded program document, into an
// immutable Baseline.
package baseline

import (
	"context"
	"encoding/base64"
	"strings"

	"github.com/roach88/phdtrack/internal/canon"
	"github.com/roach88/phdtrack/internal/catalog"
	"github.com/roach88/phdtrack/internal/collab"
	"github.com/roach88/phdtrack/internal/domain"
	"github.com/roach88/phdtrack/internal/engine"
	"github.com/roach88/phdtrack/internal/invariant"
	"github.com/roach88/phdtrack/internal/store"
)

// Name is the orchestrator name recorded in the ledger and traces.
const Name = "baseline_orchestrator"

// Document is an uploaded program document, base64 encoded.
type Document struct {
	Filename      string `json:"filename"`
	MimeType      string `json:"mime_type"`
	ContentBase64 string `json:"content_base64"`
}

// Input creates a baseline.
type Input struct {
	UserID              string    `json:"user_id"`
	ProgramName         string    `json:"program_name"`
	Institution         string    `json:"institution"`
	FieldOfStudy        string    `json:"field_of_study"`
	StartDate           string    `json:"start_date"`
	ExpectedEndDate     string    `json:"expected_end_date,omitempty"`
	TotalDurationMonths int       `json:"total_duration_months"`
	RequirementsSummary string    `json:"requirements_summary,omitempty"`
	Document            *Document `json:"document,omitempty"`
}

// Output is the created baseline.
type Output struct {
	Baseline   domain.Baseline `json:"baseline"`
	DocumentID string          `json:"document_id,omitempty"`
	TextHash   string          `json:"text_hash,omitempty"`
	Characters int             `json:"characters,omitempty"`
}

// Orchestrator is the Baseline pipeline.
type Orchestrator struct {
	runner    *engine.Runner
	catalog   *catalog.Catalog
	processor collab.DocumentProcessor
}

// New returns a Baseline orchestrator. processor may be nil, in which case
// inputs carrying a document are rejected.
func New(r *engine.Runner, cat *catalog.Catalog, processor collab.DocumentProcessor) *Orchestrator {
	return &Orchestrator{runner: r, catalog: cat, processor: processor}
}

// Name implements engine.Pipeline.
func (o *Orchestrator) Name() string { return Name }

// Execute runs the pipeline under the request id.
func (o *Orchestrator) Execute(ctx context.Context, requestID string, in Input) (*engine.Outcome[Output], error) {
	return engine.Execute[Input, Output](ctx, o.runner, o, requestID, in)
}

// Run implements engine.Pipeline.
func (o *Orchestrator) Run(ctx context.Context, run *engine.Run, in Input) (Output, error) {
	tx := run.Tx()
	var content []byte

	err := run.Step(ctx, "validate_input", func(ctx context.Context) error {
		if err := invariant.ValidInput(o.catalog, catalog.DefBaselineInput, in); err != nil {
			return err
		}
		if in.ExpectedEndDate != "" && in.ExpectedEndDate < in.StartDate {
			return engine.InvalidRequest("expected_end_date is before start_date", map[string]string{
				"start_date":        in.StartDate,
				"expected_end_date": in.ExpectedEndDate,
			})
		}
		if in.Document == nil {
			return nil
		}
		if o.processor == nil {
			return engine.InvalidRequest("no document processor is configured", map[string]string{
				"filename": in.Document.Filename,
				"hint":     "Create the baseline without a document or configure a processor",
			})
		}
		raw, err := base64.StdEncoding.DecodeString(in.Document.ContentBase64)
		if err != nil {
			return engine.InvalidRequest("document content is not valid base64", map[string]string{
				"filename": in.Document.Filename,
				"reason":   err.Error(),
			})
		}
		content = raw
		return nil
	})
	if err != nil {
		return Output{}, err
	}

	err = run.Step(ctx, "validate_user", func(ctx context.Context) error {
		if _, err := invariant.UserExists(ctx, tx, in.UserID); err != nil {
			return err
		}
		return run.Evidence(invariant.Evidence(invariant.UserExistsRule, invariant.Subjects("user_id", in.UserID)))
	})
	if err != nil {
		return Output{}, err
	}

	var (
		doc      *domain.Document
		existing bool
		textHash string
	)
	if in.Document != nil {
		err = run.Step(ctx, "process_document", func(ctx context.Context) error {
			contentHash := canon.HashBytes(canon.DomainDocument, content)
			prior, err := tx.DocumentByHash(ctx, in.UserID, contentHash)
			switch {
			case err == nil:
				doc, existing = &prior, true
			case store.IsNotFound(err):
				ex, err := o.processor.Process(ctx, collab.RawDocument{
					Filename: in.Document.Filename,
					MimeType: in.Document.MimeType,
					Content:  content,
				})
				if err != nil {
					return err
				}
				doc = &domain.Document{
					ID:            run.NewID(),
					UserID:        in.UserID,
					Filename:      in.Document.Filename,
					MimeType:      collab.MediaType(in.Document.MimeType),
					ContentHash:   contentHash,
					ExtractedText: ex.Text,
					Metadata:      ex.Metadata,
					CreatedAt:     run.Now(),
				}
				textHash = canon.HashBytes(canon.DomainDocument, []byte(ex.Text))
				return run.Evidence(engine.Evidence{
					Source:     "collab." + ex.Processor,
					Confidence: ex.Confidence,
					Payload: engine.DocumentExtraction{
						Processor:   ex.Processor,
						MimeType:    doc.MimeType,
						ContentHash: contentHash,
						TextHash:    textHash,
						Characters:  len([]rune(ex.Text)),
						Metadata:    ex.Metadata,
					},
				})
			default:
				return engine.StoreFailure("", err)
			}
			textHash = canon.HashBytes(canon.DomainDocument, []byte(doc.ExtractedText))
			return nil
		})
		if err != nil {
			return Output{}, err
		}

		err = run.Step(ctx, "check_existing_baseline", func(ctx context.Context) error {
			if existing {
				if err := invariant.DocumentUnused(ctx, tx, doc.ID); err != nil {
					return err
				}
			}
			return run.Evidence(invariant.Evidence(invariant.BaselinePerDocumentRule,
				invariant.Subjects("document_id", doc.ID)))
		})
		if err != nil {
			return Output{}, err
		}
	}

	out := Output{
		Baseline: domain.Baseline{
			ID:                  run.NewID(),
			UserID:              in.UserID,
			ProgramName:         strings.TrimSpace(in.ProgramName),
			Institution:         strings.TrimSpace(in.Institution),
			FieldOfStudy:        strings.TrimSpace(in.FieldOfStudy),
			StartDate:           in.StartDate,
			ExpectedEndDate:     in.ExpectedEndDate,
			TotalDurationMonths: in.TotalDurationMonths,
			RequirementsSummary: in.RequirementsSummary,
			CreatedAt:           run.Now(),
		},
		TextHash: textHash,
	}
	if doc != nil {
		out.Baseline.DocumentID = doc.ID
		out.DocumentID = doc.ID
		out.Characters = len([]rune(doc.ExtractedText))
	}

	err = run.Step(ctx, "persist_baseline", func(ctx context.Context) error {
		if doc != nil && !existing {
			if err := tx.InsertDocument(ctx, *doc); err != nil {
				return engine.StoreFailure("", err)
			}
		}
		if err := tx.InsertBaseline(ctx, out.Baseline); err != nil {
			return engine.StoreFailure("", err)
		}
		return run.Evidence(engine.Evidence{
			Source:     Name,
			Confidence: 100,
			Payload: engine.BaselineSnapshot{
				BaselineID:          out.Baseline.ID,
				UserID:              out.Baseline.UserID,
				DocumentID:          out.Baseline.DocumentID,
				ProgramName:         out.Baseline.ProgramName,
				TotalDurationMonths: out.Baseline.TotalDurationMonths,
			},
		})
	})
	if err != nil {
		return Output{}, err
	}
	return out, nil
}
