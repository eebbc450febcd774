package report

import (
	"io"
	"strconv"
	"time"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"
	"github.com/nao1215/sitecheck/internal/locale"
	"github.com/nao1215/sitecheck/internal/model"
)

// MarkdownWriter outputs reports in Markdown format, suitable for CI job
// summaries and pull request comments.
type MarkdownWriter struct {
	baseWriter
}

// MarkdownWriterOption configures a MarkdownWriter.
type MarkdownWriterOption func(*MarkdownWriter)

// WithMarkdownPrinter sets the language of the verdict line.
func WithMarkdownPrinter(printer *locale.Printer) MarkdownWriterOption {
	return func(w *MarkdownWriter) {
		if printer != nil {
			w.printer = printer
		}
	}
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer, opts ...MarkdownWriterOption) *MarkdownWriter {
	w := &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write outputs the full report in Markdown format.
func (w *MarkdownWriter) Write(report *model.Report) (int, error) {
	summary := summaryOf(report)
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, report, summary)
	w.writeSummary(md, report, summary)
	w.writePages(md, report)
	w.writeViolations(md, summary)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// writeHeader writes the report header with run information.
func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, report *model.Report, summary *model.Summary) {
	md.H1("Sitecheck Report")
	md.PlainText("")

	engine := report.Engine
	if engine == "" {
		engine = "-"
	}
	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Site", "`" + report.Site + "`"},
			{"Output Dir", "`" + report.OutputDir + "`"},
			{"Engine", engine},
			{"Started", report.DateStarted.Format("2006-01-02 15:04:05 MST")},
			{"Duration", report.Duration.Round(time.Millisecond).String()},
			{"Status", w.getStatusText(report, summary)},
		},
	})
	md.PlainText("")
}

// getStatusText returns the status text based on report state.
func (w *MarkdownWriter) getStatusText(report *model.Report, summary *model.Summary) string {
	switch {
	case report.Cancelled:
		return "⚠️ Cancelled (partial results)"
	case report.Error != "":
		return "❌ Error - " + report.Error
	case summary.Verdict == model.VerdictPassed:
		return "✅ Passed"
	default:
		return "❌ Failed"
	}
}

// writeSummary writes the violation counts section.
func (w *MarkdownWriter) writeSummary(md *markdown.Markdown, report *model.Report, summary *model.Summary) {
	md.H2("Summary")
	md.PlainText("")

	rows := [][]string{
		{"Pages", strconv.Itoa(summary.TotalPages)},
		{"Module pages", strconv.Itoa(summary.ModulePages)},
		{"Checked", strconv.Itoa(summary.CheckedPages)},
		{"Failed", strconv.Itoa(summary.FailedPages)},
	}
	for _, kind := range model.Kinds {
		rows = append(rows, []string{"`" + kind.String() + "`", strconv.Itoa(summary.Count(kind))})
	}
	rows = append(rows, []string{"**Total violations**", "**" + strconv.Itoa(summary.TotalViolations) + "**"})

	md.Table(markdown.TableSet{
		Header: []string{"Metric", "Count"},
		Rows:   rows,
	})
	md.PlainText("")

	if summary.HasViolations() {
		w.writePieChart(md, summary)
	}

	w.writeAlert(md, report, summary)
}

// writePieChart writes a mermaid pie chart of violations per kind.
func (w *MarkdownWriter) writePieChart(md *markdown.Markdown, summary *model.Summary) {
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Violations by Kind"),
		piechart.WithShowData(true),
	)

	for _, kind := range model.Kinds {
		if count := summary.Count(kind); count > 0 {
			chart.LabelAndIntValue(kind.String(), uint64(count))
		}
	}

	md.PlainText("")
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

// writeAlert writes an alert carrying the localized verdict.
func (w *MarkdownWriter) writeAlert(md *markdown.Markdown, report *model.Report, summary *model.Summary) {
	verdict := w.verdictLine(report, summary)
	switch {
	case report.Error != "":
		md.Cautionf("%s: %s", verdict, report.Error)
	case report.Cancelled:
		md.Warningf("%s (cancelled)", verdict)
	case summary.Count(model.KindLoadTimeout) > 0 || summary.Count(model.KindCatalog) > 0:
		md.Importantf("%s", verdict)
	case summary.HasViolations():
		md.Cautionf("%s", verdict)
	default:
		md.Tip(verdict)
	}
	md.PlainText("")
}

// writePages writes the per-page outcome table.
func (w *MarkdownWriter) writePages(md *markdown.Markdown, report *model.Report) {
	md.H2("Pages")
	md.PlainText("")

	if len(report.Pages) == 0 {
		md.PlainText("No pages checked.")
		md.PlainText("")
		return
	}

	rows := make([][]string, len(report.Pages))
	for i, p := range report.Pages {
		module := ""
		if p.Module {
			module = "yes"
		}
		rows[i] = []string{
			"`" + p.Name + "`",
			module,
			w.statusLabel(p.Status),
			strconv.Itoa(len(p.Images)),
			strconv.Itoa(len(p.Violations)),
		}
	}

	md.Table(markdown.TableSet{
		Header: []string{"Page", "Module", "Status", "Images", "Violations"},
		Rows:   rows,
	})
	md.PlainText("")
}

// writeViolations writes all violations grouped by kind.
func (w *MarkdownWriter) writeViolations(md *markdown.Markdown, summary *model.Summary) {
	md.H2("Violations")
	md.PlainText("")

	if !summary.HasViolations() {
		md.PlainText("No violations detected.")
		md.PlainText("")
		return
	}

	for _, kind := range model.Kinds {
		violations := summary.ViolationsByKind(kind)
		if len(violations) == 0 {
			continue
		}

		info := kind.Info()
		md.H3(info.Title)
		md.PlainText("")
		w.writeViolationsTable(md, violations)
		md.Details(info.Title, info.Impact+"\n\n"+info.Recommendation)
		md.PlainText("")
	}
}

// writeViolationsTable writes a table of violations of one kind.
func (w *MarkdownWriter) writeViolationsTable(md *markdown.Markdown, violations []model.Violation) {
	rows := make([][]string, len(violations))
	for i, v := range violations {
		page := v.Page
		if page == "" {
			page = "-"
		}
		element := "-"
		if v.Ordinal > 0 {
			element = "#" + strconv.Itoa(v.Ordinal)
		}
		if v.Resource != "" {
			element = truncateString(v.Resource, 40)
		}
		observed := v.Observed
		if observed == "" {
			observed = "-"
		}

		rows[i] = []string{
			page,
			element,
			truncateString(observed, 40),
			truncateString(v.Message, 80),
		}
	}

	md.Table(markdown.TableSet{
		Header: []string{"Page", "Element", "Observed", "Message"},
		Rows:   rows,
	})
	md.PlainText("")
}

// writeFooter writes the report footer.
func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by [sitecheck](https://github.com/nao1215/sitecheck)*")
}
