// Package report renders run reports.
//
// This package contains writers for different output formats:
//   - SimpleWriter: human-readable text output for terminal display
//   - JSONWriter: structured JSON output for tool integration
//   - MarkdownWriter: Markdown output for CI job summaries and pull requests
//
// Writers implement the Writer interface, allowing them to be used
// interchangeably and composed for multi-format output.
package report
