package report

import (
	"io"

	"github.com/use-agent/bughunter/models"
)

// Report is one scanned URL as rendered by a Writer: either a result, with
// an optional analysis, or the error that ended the scan.
type Report struct {
	URL      string              `json:"url"`
	Result   *models.ScanResult  `json:"result,omitempty"`
	Analysis *models.Analysis    `json:"aiAnalysis,omitempty"`
	Error    *models.ErrorDetail `json:"error,omitempty"`
}

// Failed reports whether the scan ended in an error.
func (r Report) Failed() bool { return r.Result == nil }

// Writer renders reports to its destination.
type Writer interface {
	// Write outputs all reports and returns the number of bytes written.
	Write(reports []Report) (int, error)
}

// baseWriter provides common functionality for report writers.
type baseWriter struct {
	output io.Writer
}

func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}

// NewWriter returns the writer for format ("json" or "markdown"/"md").
// Unknown formats return nil.
func NewWriter(format string, output io.Writer) Writer {
	switch format {
	case "json":
		return NewJSONWriter(output, WithPrettyPrint())
	case "markdown", "md":
		return NewMarkdownWriter(output)
	default:
		return nil
	}
}
