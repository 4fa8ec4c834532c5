package output

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"

	"github.com/inodb/vibe-vcf/internal/vcf"
)

// JSONLWriter writes one JSON object per feature per line. Missing values
// are encoded as null.
type JSONLWriter struct {
	w   *bufio.Writer
	enc *json.Encoder
}

// NewJSONLWriter creates a new JSON-lines writer.
func NewJSONLWriter(w io.Writer) *JSONLWriter {
	bw := bufio.NewWriter(w)
	return &JSONLWriter{w: bw, enc: json.NewEncoder(bw)}
}

// WriteHeader is a no-op; JSON lines carry their own field names.
func (jw *JSONLWriter) WriteHeader() error { return nil }

// Write writes a single feature.
func (jw *JSONLWriter) Write(f *vcf.Feature) error {
	return jw.enc.Encode(f)
}

// Flush flushes any buffered data to the underlying writer.
func (jw *JSONLWriter) Flush() error {
	return jw.w.Flush()
}

// New returns the writer for format, "tab" or "jsonl".
func New(format string, w io.Writer) (Writer, error) {
	switch format {
	case "", "tab":
		return NewTabWriter(w), nil
	case "jsonl", "json":
		return NewJSONLWriter(w), nil
	default:
		return nil, fmt.Errorf("unknown output format %q", format)
	}
}
