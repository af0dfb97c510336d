package traceexport

import (
	"context"
	"fmt"

	"github.com/roach88/phdtrack/internal/canon"
	"github.com/roach88/phdtrack/internal/store"
)

// Exporter writes a batch of traces to a destination.
type Exporter interface {
	Export(ctx context.Context, traces []store.TraceRecord) (Result, error)
}

// Result reports what an export wrote.
type Result struct {
	Destination string   `json:"destination"`
	Exported    int      `json:"exported"`
	Objects     []string `json:"objects,omitempty"`
}

// NoopExporter discards every trace.
type NoopExporter struct{}

// Export implements Exporter.
func (NoopExporter) Export(ctx context.Context, traces []store.TraceRecord) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	return Result{Destination: "noop"}, nil
}

func encode(tr store.TraceRecord) ([]byte, error) {
	b, err := canon.MarshalCanonical(tr)
	if err != nil {
		return nil, fmt.Errorf("encode trace %s: %w", tr.ID, err)
	}
	return b, nil
}
