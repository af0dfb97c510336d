package traceexport

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/roach88/phdtrack/internal/store"
)

// NDJSONExporter writes one canonical JSON line per trace.
type NDJSONExporter struct {
	w    io.Writer
	name string
}

// NewNDJSONExporter writes to w. name is reported as the destination.
func NewNDJSONExporter(w io.Writer, name string) *NDJSONExporter {
	return &NDJSONExporter{w: w, name: name}
}

// CreateNDJSONFile creates <dir>/<name> and returns an exporter writing to
// it together with the file, which the caller closes.
func CreateNDJSONFile(dir, name string) (*NDJSONExporter, *os.File, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("create export dir: %w", err)
	}
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("create export file: %w", err)
	}
	return NewNDJSONExporter(f, path), f, nil
}

// Export implements Exporter.
func (e *NDJSONExporter) Export(ctx context.Context, traces []store.TraceRecord) (Result, error) {
	res := Result{Destination: e.name}
	bw := bufio.NewWriter(e.w)
	for _, tr := range traces {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		b, err := encode(tr)
		if err != nil {
			return res, err
		}
		if _, err := bw.Write(b); err != nil {
			return res, fmt.Errorf("write trace %s: %w", tr.ID, err)
		}
		if err := bw.WriteByte('\n'); err != nil {
			return res, fmt.Errorf("write trace %s: %w", tr.ID, err)
		}
		res.Exported++
	}
	if err := bw.Flush(); err != nil {
		return res, fmt.Errorf("flush export: %w", err)
	}
	return res, nil
}
