package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/roach88/phdtrack/internal/domain"
)

// InsertDocument stores a processed document. Documents are unique per
// (user_id, content_hash).
func (t *Tx) InsertDocument(ctx context.Context, d domain.Document) error {
	meta := d.Metadata
	if meta == nil {
		meta = map[string]string{}
	}
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("insert document: marshal metadata: %w", err)
	}
	_, err = t.exec(ctx, `
		INSERT INTO documents
		(id, user_id, filename, mime_type, content_hash, extracted_text, metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, d.ID, d.UserID, d.Filename, d.MimeType, d.ContentHash, d.ExtractedText, string(metaJSON), formatTime(d.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

const documentColumns = `id, user_id, filename, mime_type, content_hash, extracted_text, metadata, created_at`

func scanDocument(row interface{ Scan(...any) error }) (domain.Document, error) {
	var (
		d        domain.Document
		metaJSON string
		created  string
	)
	if err := row.Scan(&d.ID, &d.UserID, &d.Filename, &d.MimeType, &d.ContentHash, &d.ExtractedText, &metaJSON, &created); err != nil {
		return domain.Document{}, err
	}
	if err := json.Unmarshal([]byte(metaJSON), &d.Metadata); err != nil {
		return domain.Document{}, fmt.Errorf("document %s metadata: %w", d.ID, err)
	}
	t, err := parseTime(created)
	if err != nil {
		return domain.Document{}, err
	}
	d.CreatedAt = t
	return d, nil
}

// GetDocument loads a document by id.
func (r reader) GetDocument(ctx context.Context, id string) (domain.Document, error) {
	d, err := scanDocument(r.queryRow(ctx, `SELECT `+documentColumns+` FROM documents WHERE id = ?`, id))
	if err != nil {
		return domain.Document{}, notFound(err, "document", id)
	}
	return d, nil
}

// DocumentByHash finds a user's document by content hash.
func (r reader) DocumentByHash(ctx context.Context, userID, contentHash string) (domain.Document, error) {
	d, err := scanDocument(r.queryRow(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE user_id = ? AND content_hash = ?`,
		userID, contentHash))
	if err != nil {
		return domain.Document{}, notFound(err, "document with hash", contentHash)
	}
	return d, nil
}

// InsertBaseline stores a baseline. An empty DocumentID is stored as NULL.
func (t *Tx) InsertBaseline(ctx context.Context, b domain.Baseline) error {
	_, err := t.exec(ctx, `
		INSERT INTO baselines
		(id, user_id, document_id, program_name, institution, field_of_study,
		 start_date, expected_end_date, total_duration_months, requirements_summary, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, b.ID, b.UserID, nullString(b.DocumentID), b.ProgramName, b.Institution, b.FieldOfStudy,
		b.StartDate, b.ExpectedEndDate, b.TotalDurationMonths, b.RequirementsSummary, formatTime(b.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert baseline: %w", err)
	}
	return nil
}

const baselineColumns = `id, user_id, document_id, program_name, institution, field_of_study,
	start_date, expected_end_date, total_duration_months, requirements_summary, created_at`

func scanBaseline(row interface{ Scan(...any) error }) (domain.Baseline, error) {
	var (
		b       domain.Baseline
		docID   sql.NullString
		created string
	)
	err := row.Scan(&b.ID, &b.UserID, &docID, &b.ProgramName, &b.Institution, &b.FieldOfStudy,
		&b.StartDate, &b.ExpectedEndDate, &b.TotalDurationMonths, &b.RequirementsSummary, &created)
	if err != nil {
		return domain.Baseline{}, err
	}
	b.DocumentID = docID.String
	if b.CreatedAt, err = parseTime(created); err != nil {
		return domain.Baseline{}, err
	}
	return b, nil
}

// GetBaseline loads a baseline by id.
func (r reader) GetBaseline(ctx context.Context, id string) (domain.Baseline, error) {
	b, err := scanBaseline(r.queryRow(ctx, `SELECT `+baselineColumns+` FROM baselines WHERE id = ?`, id))
	if err != nil {
		return domain.Baseline{}, notFound(err, "baseline", id)
	}
	return b, nil
}

// BaselineByDocument returns the baseline created from a document, or
// ErrNotFound.
func (r reader) BaselineByDocument(ctx context.Context, documentID string) (domain.Baseline, error) {
	b, err := scanBaseline(r.queryRow(ctx, `SELECT `+baselineColumns+` FROM baselines WHERE document_id = ?`, documentID))
	if err != nil {
		return domain.Baseline{}, notFound(err, "baseline for document", documentID)
	}
	return b, nil
}

// BaselinesByUser lists a user's baselines, oldest first.
func (r reader) BaselinesByUser(ctx context.Context, userID string) ([]domain.Baseline, error) {
	rows, err := r.query(ctx, `SELECT `+baselineColumns+` FROM baselines WHERE user_id = ? ORDER BY created_at ASC, id ASC`, userID)
	if err != nil {
		return nil, fmt.Errorf("baselines by user: %w", err)
	}
	defer rows.Close()

	var out []domain.Baseline
	for rows.Next() {
		b, err := scanBaseline(rows)
		if err != nil {
			return nil, fmt.Errorf("baselines by user: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// IsNotFound reports whether err wraps ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
