package collab

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"mime"
	"regexp"
	"strings"
	"unicode/utf8"
)

// ErrUnsupportedMimeType is returned when no processor handles a document.
var ErrUnsupportedMimeType = errors.New("unsupported mime type")

// ErrUnreadableDocument is returned for content a processor cannot decode.
var ErrUnreadableDocument = errors.New("unreadable document")

// RawDocument is an uploaded program document.
type RawDocument struct {
	Filename string
	MimeType string
	Content  []byte
}

// Extraction is a document processor's result.
type Extraction struct {
	Processor string
	Text      string
	Metadata  map[string]string

	// Confidence is an integer percentage.
	Confidence int
}

// DocumentProcessor extracts text and metadata from a document.
type DocumentProcessor interface {
	Process(ctx context.Context, doc RawDocument) (Extraction, error)
}

// MediaType returns the lowercased media type of a MIME string without
// parameters. "text/plain; charset=utf-8" becomes "text/plain".
func MediaType(s string) string {
	mt, _, err := mime.ParseMediaType(s)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(s))
	}
	return mt
}

// metadataLine matches "Key: value" lines with a short label.
var metadataLine = regexp.MustCompile(`^([A-Za-z][A-Za-z ]{0,39}):\s+(\S.*)$`)

// maxMetadataKeys bounds how many metadata lines are kept.
const maxMetadataKeys = 20

// PlainTextProcessor handles text and markdown documents.
type PlainTextProcessor struct{}

// Process implements DocumentProcessor.
func (PlainTextProcessor) Process(ctx context.Context, doc RawDocument) (Extraction, error) {
	if err := ctx.Err(); err != nil {
		return Extraction{}, err
	}
	if !utf8.Valid(doc.Content) {
		return Extraction{}, fmt.Errorf("%s: %w: content is not valid UTF-8", doc.Filename, ErrUnreadableDocument)
	}

	text := strings.ReplaceAll(string(doc.Content), "\r\n", "\n")
	text = strings.TrimSpace(text)

	meta := map[string]string{}
	sc := bufio.NewScanner(strings.NewReader(text))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() && len(meta) < maxMetadataKeys {
		line := strings.TrimSpace(strings.TrimLeft(sc.Text(), "#*- "))
		m := metadataLine.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		key := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(m[1])), " ", "_")
		if _, dup := meta[key]; !dup {
			meta[key] = strings.TrimSpace(m[2])
		}
	}
	if err := sc.Err(); err != nil {
		return Extraction{}, fmt.Errorf("%s: scan: %w", doc.Filename, err)
	}

	return Extraction{
		Processor:  "plain_text",
		Text:       text,
		Metadata:   meta,
		Confidence: 100,
	}, nil
}

// MimeRouter dispatches documents to processors by media type.
type MimeRouter struct {
	routes map[string]DocumentProcessor
}

// NewMimeRouter returns a router with text/plain and text/markdown bound to
// PlainTextProcessor.
func NewMimeRouter() *MimeRouter {
	r := &MimeRouter{routes: map[string]DocumentProcessor{}}
	r.Handle(PlainTextProcessor{}, "text/plain", "text/markdown", "text/x-markdown")
	return r
}

// Handle binds p to the given media types, replacing earlier bindings.
func (r *MimeRouter) Handle(p DocumentProcessor, mimeTypes ...string) {
	for _, mt := range mimeTypes {
		r.routes[MediaType(mt)] = p
	}
}

// Supports reports whether a processor is bound for the MIME type.
func (r *MimeRouter) Supports(mimeType string) bool {
	_, ok := r.routes[MediaType(mimeType)]
	return ok
}

// Process implements DocumentProcessor.
func (r *MimeRouter) Process(ctx context.Context, doc RawDocument) (Extraction, error) {
	p, ok := r.routes[MediaType(doc.MimeType)]
	if !ok {
		return Extraction{}, fmt.Errorf("%s: %w: %q", doc.Filename, ErrUnsupportedMimeType, doc.MimeType)
	}
	return p.Process(ctx, doc)
}
