package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/nao1215/sitecheck/internal/locale"
	"github.com/nao1215/sitecheck/internal/model"
)

// SimpleWriter outputs human-readable text reports for terminal display,
// using plain ASCII section formatting.
type SimpleWriter struct {
	baseWriter

	// showEmpty controls whether sections with no violations are shown.
	showEmpty bool

	// verbose enables additional detail in the output.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithShowEmpty configures the writer to show empty sections.
func WithShowEmpty(show bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.showEmpty = show
	}
}

// WithVerbose enables verbose output with per-page and per-kind details.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// WithPrinter sets the language of the verdict line.
func WithPrinter(printer *locale.Printer) SimpleWriterOption {
	return func(w *SimpleWriter) {
		if printer != nil {
			w.printer = printer
		}
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{
		baseWriter: newBaseWriter(output),
		showEmpty:  false,
		verbose:    false,
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Write outputs the report in human-readable format.
func (w *SimpleWriter) Write(report *model.Report) (int, error) {
	summary := summaryOf(report)

	var sb strings.Builder
	w.writeHeader(&sb, report, summary)
	w.writeSummary(&sb, summary)
	w.writePages(&sb, report)
	w.writeViolations(&sb, summary)
	w.writeFooter(&sb, report, summary)

	return w.output.Write([]byte(sb.String()))
}

// section writes a section title between rules.
func section(sb *strings.Builder, title string) {
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString(title)
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")
}

// writeHeader writes the report header with run information.
func (w *SimpleWriter) writeHeader(sb *strings.Builder, report *model.Report, summary *model.Summary) {
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("                         SITECHECK REPORT\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n\n")

	fmt.Fprintf(sb, "Site:        %s\n", report.Site)
	fmt.Fprintf(sb, "Output Dir:  %s\n", report.OutputDir)
	if report.Engine != "" {
		fmt.Fprintf(sb, "Engine:      %s\n", report.Engine)
	}
	fmt.Fprintf(sb, "Started:     %s\n", report.DateStarted.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(sb, "Duration:    %s\n", report.Duration.Round(time.Millisecond))

	switch {
	case report.Cancelled:
		sb.WriteString("Status:      CANCELLED (partial results)\n")
	case report.Error != "":
		fmt.Fprintf(sb, "Status:      ERROR - %s\n", report.Error)
	case summary.Verdict == model.VerdictPassed:
		sb.WriteString("Status:      PASSED\n")
	default:
		sb.WriteString("Status:      FAILED\n")
	}

	sb.WriteString("\n")
}

// writeSummary writes page and violation counts.
func (w *SimpleWriter) writeSummary(sb *strings.Builder, summary *model.Summary) {
	section(sb, "SUMMARY")

	fmt.Fprintf(sb, "  Pages:    %d (%d module pages)\n", summary.TotalPages, summary.ModulePages)
	fmt.Fprintf(sb, "  Checked:  %d\n", summary.CheckedPages)
	fmt.Fprintf(sb, "  Passed:   %d\n", summary.PassedPages)
	fmt.Fprintf(sb, "  Failed:   %d\n", summary.FailedPages)
	sb.WriteString("\n")

	for _, kind := range model.Kinds {
		count := summary.Count(kind)
		if count == 0 && !w.showEmpty {
			continue
		}
		fmt.Fprintf(sb, "  %-22s %d\n", kind.String()+":", count)
	}
	fmt.Fprintf(sb, "  %-22s %d violations\n", "TOTAL:", summary.TotalViolations)
	sb.WriteString("\n")
}

// writePages lists every checked page with its status.
func (w *SimpleWriter) writePages(sb *strings.Builder, report *model.Report) {
	if len(report.Pages) == 0 && !w.showEmpty {
		return
	}

	section(sb, "PAGES")

	if len(report.Pages) == 0 {
		sb.WriteString("  No pages checked\n\n")
		return
	}

	for _, page := range report.Pages {
		indicator := "ok"
		if page.Failed() {
			indicator = "!!"
		}
		fmt.Fprintf(sb, "  [%s] %s", indicator, page.Name)
		if page.Module {
			sb.WriteString(" (module)")
		}
		if page.Status != model.PageStatusPassed {
			fmt.Fprintf(sb, " - %s", w.statusLabel(page.Status))
		}
		sb.WriteString("\n")

		if w.verbose {
			fmt.Fprintf(sb, "       %d images, %d resources, %s\n",
				len(page.Images), len(page.Resources), page.Duration.Round(time.Millisecond))
		}
		if page.Error != "" {
			fmt.Fprintf(sb, "       Error: %s\n", page.Error)
		}
	}
	sb.WriteString("\n")
}

// writeViolations writes all violations grouped by kind.
func (w *SimpleWriter) writeViolations(sb *strings.Builder, summary *model.Summary) {
	if !summary.HasViolations() && !w.showEmpty {
		return
	}

	section(sb, "VIOLATIONS")

	for _, kind := range model.Kinds {
		violations := summary.ViolationsByKind(kind)
		if len(violations) == 0 && !w.showEmpty {
			continue
		}
		w.writeViolationsForKind(sb, kind, violations)
	}
}

// writeViolationsForKind writes the violations of one kind.
func (w *SimpleWriter) writeViolationsForKind(sb *strings.Builder, kind model.Kind, violations []model.Violation) {
	info := kind.Info()
	fmt.Fprintf(sb, "[x] %s (%s)\n", info.Title, kind)

	if len(violations) == 0 {
		sb.WriteString("  No violations\n\n")
		return
	}

	for _, v := range violations {
		fmt.Fprintf(sb, "  * %s\n", v.Message)
		if v.URL != "" {
			fmt.Fprintf(sb, "    URL: %s\n", v.URL)
		}
	}
	if w.verbose {
		fmt.Fprintf(sb, "    Impact: %s\n", info.Impact)
		fmt.Fprintf(sb, "    Recommendation: %s\n", info.Recommendation)
	}
	sb.WriteString("\n")
}

// writeFooter writes the localized verdict and the report footer.
func (w *SimpleWriter) writeFooter(sb *strings.Builder, report *model.Report, summary *model.Summary) {
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString(w.verdictLine(report, summary))
	sb.WriteString("\n")
	sb.WriteString("Report generated by sitecheck\n")
	sb.WriteString("https://github.com/nao1215/sitecheck\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
}
