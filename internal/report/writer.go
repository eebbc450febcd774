package report

import (
	"io"
	"strings"

	"github.com/nao1215/sitecheck/internal/locale"
	"github.com/nao1215/sitecheck/internal/model"
)

// Writer defines the interface for report output.
type Writer interface {
	// Write outputs the report to the configured destination.
	// Returns the number of bytes written and any error encountered.
	Write(report *model.Report) (int, error)
}

// MultiWriter writes to multiple Writers simultaneously.
// This is useful for outputting to both terminal and file.
type MultiWriter struct {
	writers []Writer
}

// NewMultiWriter creates a Writer that writes to all provided Writers.
func NewMultiWriter(writers ...Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

// Write outputs the report to all configured Writers.
// Returns the total bytes written across all writers.
// Stops on first error encountered.
func (m *MultiWriter) Write(report *model.Report) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.Write(report)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// baseWriter provides common functionality for report writers.
type baseWriter struct {
	output  io.Writer
	printer *locale.Printer
}

// newBaseWriter creates a baseWriter with the given output destination.
func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output, printer: locale.New(locale.DefaultLocale)}
}

// summaryOf returns the report summary, computing it when missing.
func summaryOf(report *model.Report) *model.Summary {
	if report.Summary == nil {
		report.Summary = model.NewSummary(report)
	}
	return report.Summary
}

// verdictLine returns the localized one-line outcome of a run.
func (b baseWriter) verdictLine(report *model.Report, summary *model.Summary) string {
	if summary.Verdict == model.VerdictPassed {
		return b.printer.Sprintf(locale.MsgRunPassed, summary.CheckedPages)
	}
	failed := summary.FailedPages
	if failed == 0 && len(report.RunViolations) > 0 {
		failed = summary.TotalPages
	}
	return b.printer.Sprintf(locale.MsgRunFailed, summary.TotalViolations, failed)
}

// statusLabel returns a display label for a page status.
func (b baseWriter) statusLabel(status model.PageStatus) string {
	return b.printer.Title(strings.ReplaceAll(string(status), "_", " "))
}

// truncateString truncates a string to maxLen characters with ellipsis.
func truncateString(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}
