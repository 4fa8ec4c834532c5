// Package output provides feature output formatters.
package output

import (
	"bufio"
	"io"
	"strconv"
	"strings"

	"github.com/inodb/vibe-vcf/internal/vcf"
)

// missing is printed for absent values.
const missing = "-"

// Writer is implemented by every feature formatter.
type Writer interface {
	WriteHeader() error
	Write(f *vcf.Feature) error
	Flush() error
}

// TabWriter writes features in tab-delimited format.
type TabWriter struct {
	w       *bufio.Writer
	columns []string
}

// NewTabWriter creates a new tab-delimited writer.
func NewTabWriter(w io.Writer) *TabWriter {
	return &TabWriter{
		w: bufio.NewWriter(w),
		columns: []string{
			"#ID",
			"SeqID",
			"Start",
			"End",
			"Type",
			"Ref",
			"Alt",
			"Score",
			"Filter",
			"Info",
			"Format",
			"Samples",
			"Description",
		},
	}
}

// WriteHeader writes the header line.
func (tw *TabWriter) WriteHeader() error {
	_, err := tw.w.WriteString(strings.Join(tw.columns, "\t") + "\n")
	return err
}

// Write writes a single feature. Missing values print as "-" and sample
// columns are joined with "|".
func (tw *TabWriter) Write(f *vcf.Feature) error {
	samples := make([]string, len(f.Other))
	for i, v := range f.Other {
		samples[i] = v.Or(missing)
	}
	sampleCol := strings.Join(samples, "|")
	if sampleCol == "" {
		sampleCol = missing
	}

	values := []string{
		f.ID,
		f.SeqID,
		strconv.FormatInt(f.Start, 10),
		strconv.FormatInt(f.End, 10),
		string(f.Type),
		f.Ref.Or(missing),
		f.Alt.Or(missing),
		f.Score.Or(missing),
		f.Filter.Or(missing),
		f.Info.Or(missing),
		f.Format.Or(missing),
		sampleCol,
		f.Description,
	}

	_, err := tw.w.WriteString(strings.Join(values, "\t") + "\n")
	return err
}

// Flush flushes any buffered data to the underlying writer.
func (tw *TabWriter) Flush() error {
	return tw.w.Flush()
}
