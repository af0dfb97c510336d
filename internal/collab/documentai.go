package collab

import (
	"context"
	"fmt"
	"strings"
	"time"

	documentai "cloud.google.com/go/documentai/apiv1"
	"cloud.google.com/go/documentai/apiv1/documentaipb"
	"google.golang.org/api/option"
)

// DocumentAIConfig names a Document AI processor.
type DocumentAIConfig struct {
	Project   string
	Location  string
	Processor string
	Version   string

	// Timeout bounds one ProcessDocument call. Zero means 3 minutes.
	Timeout time.Duration
}

// Validate checks that the processor is fully named.
func (c DocumentAIConfig) Validate() error {
	if strings.TrimSpace(c.Project) == "" {
		return fmt.Errorf("documentai: project is required")
	}
	if strings.TrimSpace(c.Location) == "" {
		return fmt.Errorf("documentai: location is required")
	}
	if strings.TrimSpace(c.Processor) == "" {
		return fmt.Errorf("documentai: processor is required")
	}
	return nil
}

// ProcessorName returns the fully qualified processor resource name.
func (c DocumentAIConfig) ProcessorName() string {
	base := fmt.Sprintf("projects/%s/locations/%s/processors/%s",
		strings.TrimSpace(c.Project), strings.TrimSpace(c.Location), strings.TrimSpace(c.Processor))
	if v := strings.TrimSpace(c.Version); v != "" {
		return base + "/processorVersions/" + v
	}
	return base
}

// ProcessFunc performs one online processing call.
type ProcessFunc func(ctx context.Context, req *documentaipb.ProcessRequest) (*documentaipb.ProcessResponse, error)

// DocumentAIProcessor sends documents to a Google Document AI processor.
type DocumentAIProcessor struct {
	cfg     DocumentAIConfig
	process ProcessFunc
	close   func() error
}

// NewDocumentAIProcessor dials the regional Document AI endpoint.
// Credentials come from the environment, as for every Google client.
func NewDocumentAIProcessor(ctx context.Context, cfg DocumentAIConfig, opts ...option.ClientOption) (*DocumentAIProcessor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	endpoint := fmt.Sprintf("%s-documentai.googleapis.com:443", strings.TrimSpace(cfg.Location))
	opts = append([]option.ClientOption{option.WithEndpoint(endpoint)}, opts...)

	client, err := documentai.NewDocumentProcessorClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("documentai client: %w", err)
	}
	p := NewDocumentAIProcessorFunc(cfg, func(ctx context.Context, req *documentaipb.ProcessRequest) (*documentaipb.ProcessResponse, error) {
		return client.ProcessDocument(ctx, req)
	})
	p.close = client.Close
	return p, nil
}

// NewDocumentAIProcessorFunc builds a processor around an arbitrary call,
// typically a fake in tests.
func NewDocumentAIProcessorFunc(cfg DocumentAIConfig, fn ProcessFunc) *DocumentAIProcessor {
	return &DocumentAIProcessor{cfg: cfg, process: fn}
}

// Close releases the underlying client.
func (p *DocumentAIProcessor) Close() error {
	if p == nil || p.close == nil {
		return nil
	}
	return p.close()
}

// Process implements DocumentProcessor.
func (p *DocumentAIProcessor) Process(ctx context.Context, doc RawDocument) (Extraction, error) {
	timeout := p.cfg.Timeout
	if timeout <= 0 {
		timeout = 3 * time.Minute
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if len(doc.Content) == 0 {
		return Extraction{}, fmt.Errorf("%s: %w: empty content", doc.Filename, ErrUnreadableDocument)
	}
	mimeType := MediaType(doc.MimeType)
	if mimeType == "" {
		mimeType = "application/pdf"
	}

	name := p.cfg.ProcessorName()
	resp, err := p.process(ctx, &documentaipb.ProcessRequest{
		Name: name,
		Source: &documentaipb.ProcessRequest_RawDocument{
			RawDocument: &documentaipb.RawDocument{
				Content:  doc.Content,
				MimeType: mimeType,
			},
		},
	})
	if err != nil {
		return Extraction{}, fmt.Errorf("documentai ProcessDocument: %w", err)
	}

	out := Extraction{
		Processor:  "documentai",
		Metadata:   map[string]string{"processor": name, "pages": "0"},
		Confidence: 0,
	}
	if resp == nil || resp.GetDocument() == nil {
		return out, nil
	}
	d := resp.GetDocument()
	out.Text = strings.TrimSpace(d.GetText())
	out.Metadata["pages"] = fmt.Sprint(len(d.GetPages()))
	out.Confidence = pageConfidence(d)
	return out, nil
}

// pageConfidence averages the layout confidence of every page as an
// integer percentage.
func pageConfidence(d *documentaipb.Document) int {
	var (
		sum float32
		n   int
	)
	for _, pg := range d.GetPages() {
		if l := pg.GetLayout(); l != nil {
			sum += l.GetConfidence()
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return int(sum/float32(n)*100 + 0.5)
}
