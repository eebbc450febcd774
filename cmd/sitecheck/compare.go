package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/nao1215/markdown"
	"github.com/spf13/cobra"

	"github.com/nao1215/sitecheck/internal/config"
	"github.com/nao1215/sitecheck/internal/database"
	"github.com/nao1215/sitecheck/internal/model"
	"github.com/nao1215/sitecheck/internal/pipeline"
)

// Directions of the violation count between two runs.
const (
	directionWorsened  = "worsened"
	directionImproved  = "improved"
	directionUnchanged = "unchanged"
)

// NewCompareCmd creates the compare command.
// This command compares runs stored in the history database.
func NewCompareCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compare [site]",
		Short: "Compare check results with previous runs",
		Long: `Compare displays differences between the latest and a previous run of
'sitecheck check' against the same site (base URL).

It shows:
- New violations that appeared since the previous run
- Resolved violations that are no longer present
- The change in violations per kind

Two runs over an unchanged site report no new and no resolved violations.
The site defaults to the default base URL.

Examples:
  # Compare the latest two runs
  sitecheck compare http://127.0.0.1:4173

  # List run history for a site
  sitecheck compare --list http://127.0.0.1:4173

  # Compare with a specific run by ID
  sitecheck compare --with-run-id 5

  # Compare with the first run since a date
  sitecheck compare --since 2026-01-01

  # Show the history of one page
  sitecheck compare --page module-03.html

  # List all checked sites
  sitecheck compare --list-sites`,
		Args: cobra.MaximumNArgs(1),
		RunE: runCompareCmd,
	}

	// History listing flags
	cmd.Flags().BoolP("list", "l", false,
		"List run history for the site")
	cmd.Flags().BoolP("list-sites", "L", false,
		"List all sites in the database")
	cmd.Flags().StringP("page", "p", "",
		"Show the history of a single page (e.g. module-03.html)")

	// Comparison target flags
	cmd.Flags().Int64P("with-run-id", "i", 0,
		"Compare with a specific run by ID (use --list to see available IDs)")
	cmd.Flags().StringP("since", "s", "",
		"Compare with the first run after this date (format: YYYY-MM-DD)")

	// Output format flags
	cmd.Flags().BoolP("json", "j", false,
		"Output comparison result in JSON format")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output comparison result in Markdown format")

	cmd.Flags().String("db-dir", config.XDGDataDir(),
		"Directory of the history database")

	return cmd
}

// compareOptions holds the parsed flags of the compare command.
type compareOptions struct {
	site      string
	list      bool
	listSites bool
	page      string
	withRunID int64
	since     string
	json      bool
	markdown  bool
	dbDir     string
}

// parseCompareOptions reads and validates the compare flags.
func parseCompareOptions(cmd *cobra.Command, args []string) (*compareOptions, error) {
	flags := cmd.Flags()
	opts := &compareOptions{}

	var err error
	if opts.list, err = flags.GetBool("list"); err != nil {
		return nil, err
	}
	if opts.listSites, err = flags.GetBool("list-sites"); err != nil {
		return nil, err
	}
	if opts.page, err = flags.GetString("page"); err != nil {
		return nil, err
	}
	if opts.withRunID, err = flags.GetInt64("with-run-id"); err != nil {
		return nil, err
	}
	if opts.since, err = flags.GetString("since"); err != nil {
		return nil, err
	}
	if opts.json, err = flags.GetBool("json"); err != nil {
		return nil, err
	}
	if opts.markdown, err = flags.GetBool("markdown"); err != nil {
		return nil, err
	}
	if opts.dbDir, err = flags.GetString("db-dir"); err != nil {
		return nil, err
	}

	if opts.json && opts.markdown {
		return nil, config.ErrConflictingReportFormats
	}
	if opts.withRunID != 0 && opts.since != "" {
		return nil, errors.New("--with-run-id and --since cannot be used together")
	}

	// Sites are stored in the normalized form the check command uses.
	raw := config.DefaultBaseURL
	if len(args) > 0 {
		raw = args[0]
	}
	base, err := pipeline.ParseBaseURL(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid site: %w", err)
	}
	opts.site = base.String()

	return opts, nil
}

// runCompareCmd executes the compare command.
func runCompareCmd(cmd *cobra.Command, args []string) error {
	// Validate arguments before opening the database.
	opts, err := parseCompareOptions(cmd, args)
	if err != nil {
		return err
	}

	db, err := database.Open(opts.dbDir, database.DefaultOptions())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	out := cmd.OutOrStdout()

	switch {
	case opts.listSites:
		return listSites(ctx, out, db)
	case opts.page != "":
		return listPageHistory(ctx, out, db, opts.site, opts.page)
	case opts.list:
		return listRunHistory(ctx, out, db, opts.site)
	}

	comparison, err := compareRuns(ctx, db, opts)
	if err != nil {
		return err
	}

	switch {
	case opts.json:
		return outputComparisonJSON(out, comparison)
	case opts.markdown:
		return outputComparisonMarkdown(out, comparison)
	default:
		return outputComparisonText(out, comparison)
	}
}

// listSites lists every site that has runs in the database.
func listSites(ctx context.Context, out io.Writer, db *database.HistoryDB) error {
	sites, err := db.ListSites(ctx)
	if err != nil {
		return fmt.Errorf("failed to list sites: %w", err)
	}

	if len(sites) == 0 {
		fmt.Fprintln(out, "No checked sites found in the database.")
		fmt.Fprintln(out, "\nUse 'sitecheck check' to check a site.")
		return nil
	}

	fmt.Fprintf(out, "Checked sites (%d):\n\n", len(sites))
	for _, site := range sites {
		fmt.Fprintf(out, "  • %s\n", site)
	}
	fmt.Fprintln(out, "\nUse 'sitecheck compare --list <site>' to see the run history of a site.")
	return nil
}

// listRunHistory lists every run of a site.
func listRunHistory(ctx context.Context, out io.Writer, db *database.HistoryDB, site string) error {
	runs, err := db.GetRunHistoryWithMetadata(ctx, site)
	if err != nil {
		return fmt.Errorf("failed to get run history: %w", err)
	}

	if len(runs) == 0 {
		fmt.Fprintf(out, "No run history found for %s\n", site)
		return nil
	}

	fmt.Fprintf(out, "Run history for %s (%d runs):\n\n", site, len(runs))
	fmt.Fprintf(out, "  %-6s  %-20s  %-7s  %s\n", "ID", "Date", "Verdict", "Violations")
	fmt.Fprintln(out, "  "+strings.Repeat("-", 60))
	for _, run := range runs {
		fmt.Fprintf(out, "  %-6d  %-20s  %-7s  %s\n",
			run.ID,
			run.Timestamp.Local().Format("2006-01-02 15:04:05"),
			verdictText(run.Passed),
			formatCounts(run.Counts),
		)
	}

	fmt.Fprintln(out, "\nUse 'sitecheck compare <site>' to compare the latest two runs.")
	fmt.Fprintln(out, "Use 'sitecheck compare --with-run-id <id> <site>' to compare with a specific run.")
	return nil
}

// listPageHistory lists the results of one page across runs.
func listPageHistory(ctx context.Context, out io.Writer, db *database.HistoryDB, site, page string) error {
	records, err := db.GetPageHistory(ctx, site, page)
	if err != nil {
		return fmt.Errorf("failed to get page history: %w", err)
	}

	if len(records) == 0 {
		fmt.Fprintf(out, "No history found for %s on %s\n", page, site)
		return nil
	}

	fmt.Fprintf(out, "History of %s on %s (%d runs):\n\n", page, site, len(records))
	fmt.Fprintf(out, "  %-6s  %-20s  %-10s  %-10s  %s\n", "Run", "Date", "Status", "Violations", "Duration")
	fmt.Fprintln(out, "  "+strings.Repeat("-", 66))
	for _, r := range records {
		fmt.Fprintf(out, "  %-6d  %-20s  %-10s  %-10d  %s\n",
			r.RunID,
			r.Timestamp.Local().Format("2006-01-02 15:04:05"),
			r.Status,
			r.Violations,
			r.Duration.Round(time.Millisecond),
		)
	}
	return nil
}

// formatCounts formats violation counts per kind, e.g. "style:2 image_load:1".
func formatCounts(counts map[string]int) string {
	if counts == nil {
		return "N/A"
	}

	var parts []string
	for _, kind := range model.Kinds {
		if n := counts[string(kind)]; n > 0 {
			parts = append(parts, kind.String()+":"+strconv.Itoa(n))
		}
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, " ")
}

func verdictText(passed bool) string {
	if passed {
		return "passed"
	}
	return "failed"
}

// compareRuns selects the runs to compare and diffs them.
func compareRuns(ctx context.Context, db *database.HistoryDB, opts *compareOptions) (*ComparisonResult, error) {
	runs, err := db.GetRunHistory(ctx, opts.site)
	if err != nil {
		return nil, fmt.Errorf("failed to get run history: %w", err)
	}

	if len(runs) == 0 {
		return nil, fmt.Errorf("no run history found for %s", opts.site)
	}
	if len(runs) < 2 && opts.withRunID == 0 && opts.since == "" {
		return nil, fmt.Errorf("at least 2 runs are required for comparison (found %d)", len(runs))
	}

	// Runs are ordered newest first; the latest is always the current one.
	current := runs[0]
	var previous *model.Report

	switch {
	case opts.withRunID > 0:
		previous, err = db.GetRunByID(ctx, opts.withRunID)
		if err != nil {
			return nil, fmt.Errorf("failed to get run with ID %d: %w", opts.withRunID, err)
		}
		if previous == nil {
			return nil, fmt.Errorf("run with ID %d not found", opts.withRunID)
		}
		if previous.Site != opts.site {
			return nil, fmt.Errorf("run ID %d belongs to %s, not %s", opts.withRunID, previous.Site, opts.site)
		}

	case opts.since != "":
		since, err := time.ParseInLocation("2006-01-02", opts.since, time.Local)
		if err != nil {
			return nil, fmt.Errorf("invalid date format (use YYYY-MM-DD): %w", err)
		}
		// Walk from the oldest run to find the first one at or after the date.
		for i := len(runs) - 1; i >= 0; i-- {
			if !runs[i].DateStarted.Before(since) {
				previous = runs[i]
				break
			}
		}
		if previous == nil {
			return nil, fmt.Errorf("no runs found since %s", opts.since)
		}
		if previous == current {
			return nil, fmt.Errorf("only one run found since %s; at least 2 runs are required for comparison", opts.since)
		}

	default:
		previous = runs[1]
	}

	return compareReports(previous, current), nil
}

// ComparisonResult holds the result of comparing two runs.
type ComparisonResult struct {
	// Site is the base URL both runs checked.
	Site string `json:"site"`

	// PreviousRun summarizes the older run.
	PreviousRun RunSummary `json:"previous_run"`

	// CurrentRun summarizes the newer run.
	CurrentRun RunSummary `json:"current_run"`

	// NewViolations are present in the current run only.
	NewViolations []model.Violation `json:"new_violations,omitempty"`

	// ResolvedViolations are present in the previous run only.
	ResolvedViolations []model.Violation `json:"resolved_violations,omitempty"`

	// UnchangedCount is the number of violations present in both runs.
	UnchangedCount int `json:"unchanged_count"`

	// Change describes the change in violations per kind.
	Change Change `json:"change"`
}

// RunSummary contains the run metadata shown in a comparison.
type RunSummary struct {
	DateStarted     time.Time          `json:"date_started"`
	Passed          bool               `json:"passed"`
	TotalViolations int                `json:"total_violations"`
	Counts          map[model.Kind]int `json:"counts"`
}

// Change describes how the violations changed between two runs.
type Change struct {
	// Direction is "improved", "worsened" or "unchanged".
	Direction string `json:"direction"`

	// Deltas is the change of the violation count per kind.
	Deltas map[model.Kind]int `json:"deltas"`
}

// summarizeRun extracts the comparison metadata of a run.
func summarizeRun(r *model.Report) RunSummary {
	summary := r.Summary
	if summary == nil {
		summary = model.NewSummary(r)
	}
	return RunSummary{
		DateStarted:     r.DateStarted,
		Passed:          r.Passed(),
		TotalViolations: summary.TotalViolations,
		Counts:          summary.Counts,
	}
}

// compareReports diffs two runs by violation identity.
func compareReports(previous, current *model.Report) *ComparisonResult {
	result := &ComparisonResult{
		Site:        current.Site,
		PreviousRun: summarizeRun(previous),
		CurrentRun:  summarizeRun(current),
	}

	previousKeys := make(map[string]bool)
	for _, v := range previous.Violations() {
		previousKeys[v.Key()] = true
	}
	currentKeys := make(map[string]bool)
	for _, v := range current.Violations() {
		currentKeys[v.Key()] = true
	}

	// Iterate the slices, not the maps, so output follows report order.
	for _, v := range current.Violations() {
		if !previousKeys[v.Key()] {
			result.NewViolations = append(result.NewViolations, v)
		}
	}
	for _, v := range previous.Violations() {
		if currentKeys[v.Key()] {
			result.UnchangedCount++
		} else {
			result.ResolvedViolations = append(result.ResolvedViolations, v)
		}
	}

	result.Change = calculateChange(result.PreviousRun, result.CurrentRun)
	return result
}

// calculateChange computes per-kind deltas and the overall direction.
func calculateChange(previous, current RunSummary) Change {
	change := Change{Deltas: make(map[model.Kind]int, len(model.Kinds))}
	for _, kind := range model.Kinds {
		change.Deltas[kind] = current.Counts[kind] - previous.Counts[kind]
	}

	switch {
	case current.TotalViolations < previous.TotalViolations:
		change.Direction = directionImproved
	case current.TotalViolations > previous.TotalViolations:
		change.Direction = directionWorsened
	default:
		change.Direction = directionUnchanged
	}
	return change
}

// outputComparisonJSON outputs the comparison result in JSON format.
func outputComparisonJSON(out io.Writer, result *ComparisonResult) error {
	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(result)
}

// outputComparisonMarkdown outputs the comparison result in Markdown format.
func outputComparisonMarkdown(out io.Writer, result *ComparisonResult) error {
	md := markdown.NewMarkdown(out)

	md.H1f("Run Comparison: %s", result.Site)
	md.H2("Summary")
	md.PlainTextf("**Status:** %s", formatDirection(result.Change.Direction))

	rows := [][]string{{
		"Date",
		result.PreviousRun.DateStarted.Local().Format("2006-01-02 15:04"),
		result.CurrentRun.DateStarted.Local().Format("2006-01-02 15:04"),
		"-",
	}}
	for _, kind := range model.Kinds {
		rows = append(rows, []string{
			kind.Info().Title,
			strconv.Itoa(result.PreviousRun.Counts[kind]),
			strconv.Itoa(result.CurrentRun.Counts[kind]),
			formatDelta(result.Change.Deltas[kind]),
		})
	}
	rows = append(rows, []string{
		"**Total**",
		"**" + strconv.Itoa(result.PreviousRun.TotalViolations) + "**",
		"**" + strconv.Itoa(result.CurrentRun.TotalViolations) + "**",
		"**" + formatDelta(result.CurrentRun.TotalViolations-result.PreviousRun.TotalViolations) + "**",
	})
	md.Table(markdown.TableSet{
		Header: []string{"Metric", "Previous", "Current", "Change"},
		Rows:   rows,
	})

	if len(result.NewViolations) > 0 {
		md.H2f("New Violations (%d)", len(result.NewViolations))
		items := make([]string, 0, len(result.NewViolations))
		for _, v := range result.NewViolations {
			items = append(items, fmt.Sprintf("**[%s]** %s", v.Kind, v.Message))
		}
		md.BulletList(items...)
	}

	if len(result.ResolvedViolations) > 0 {
		md.H2f("Resolved Violations (%d)", len(result.ResolvedViolations))
		items := make([]string, 0, len(result.ResolvedViolations))
		for _, v := range result.ResolvedViolations {
			items = append(items, fmt.Sprintf("~~**[%s]** %s~~", v.Kind, v.Message))
		}
		md.BulletList(items...)
	}

	if result.UnchangedCount > 0 {
		md.HorizontalRule()
		md.PlainTextf("*%d violations unchanged*", result.UnchangedCount)
	}

	return md.Build()
}

// outputComparisonText outputs the comparison result in human-readable text format.
func outputComparisonText(out io.Writer, result *ComparisonResult) error {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Run Comparison: %s\n", result.Site)
	sb.WriteString(strings.Repeat("=", 60) + "\n")
	fmt.Fprintf(&sb, "\nStatus: %s\n", formatDirection(result.Change.Direction))
	fmt.Fprintf(&sb, "\nPrevious run: %s (%s)\n",
		result.PreviousRun.DateStarted.Local().Format("2006-01-02 15:04:05"), verdictText(result.PreviousRun.Passed))
	fmt.Fprintf(&sb, "Current run:  %s (%s)\n",
		result.CurrentRun.DateStarted.Local().Format("2006-01-02 15:04:05"), verdictText(result.CurrentRun.Passed))

	sb.WriteString("\nViolations:\n")
	fmt.Fprintf(&sb, "  %-22s  %-8s  %-8s  %s\n", "Kind", "Previous", "Current", "Change")
	sb.WriteString("  " + strings.Repeat("-", 52) + "\n")
	for _, kind := range model.Kinds {
		fmt.Fprintf(&sb, "  %-22s  %-8d  %-8d  %s\n", kind,
			result.PreviousRun.Counts[kind], result.CurrentRun.Counts[kind],
			formatDelta(result.Change.Deltas[kind]))
	}
	sb.WriteString("  " + strings.Repeat("-", 52) + "\n")
	fmt.Fprintf(&sb, "  %-22s  %-8d  %-8d  %s\n", "total",
		result.PreviousRun.TotalViolations, result.CurrentRun.TotalViolations,
		formatDelta(result.CurrentRun.TotalViolations-result.PreviousRun.TotalViolations))

	if len(result.NewViolations) > 0 {
		fmt.Fprintf(&sb, "\nNew Violations (%d):\n", len(result.NewViolations))
		for _, v := range result.NewViolations {
			fmt.Fprintf(&sb, "  [+] [%s] %s\n", v.Kind, v.Message)
		}
	}

	if len(result.ResolvedViolations) > 0 {
		fmt.Fprintf(&sb, "\nResolved Violations (%d):\n", len(result.ResolvedViolations))
		for _, v := range result.ResolvedViolations {
			fmt.Fprintf(&sb, "  [-] [%s] %s\n", v.Kind, v.Message)
		}
	}

	if result.UnchangedCount > 0 {
		fmt.Fprintf(&sb, "\nUnchanged: %d violations\n", result.UnchangedCount)
	}

	_, err := io.WriteString(out, sb.String())
	return err
}

// formatDirection formats the change direction for display.
func formatDirection(direction string) string {
	switch direction {
	case directionImproved:
		return "IMPROVED (fewer violations)"
	case directionWorsened:
		return "WORSENED (more violations)"
	default:
		return "UNCHANGED"
	}
}

// formatDelta formats a numeric delta with sign for display.
func formatDelta(delta int) string {
	if delta > 0 {
		return "+" + strconv.Itoa(delta)
	}
	return strconv.Itoa(delta)
}
