package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/nao1215/sitecheck/internal/browser"
	"github.com/nao1215/sitecheck/internal/catalog"
	"github.com/nao1215/sitecheck/internal/check"
	"github.com/nao1215/sitecheck/internal/fetch"
	"github.com/nao1215/sitecheck/internal/locale"
	"github.com/nao1215/sitecheck/internal/model"
)

// Runner defaults.
const (
	DefaultBaseURL = "http://127.0.0.1:4173"
	DefaultTimeout = 60 * time.Second
)

// ErrInvalidBaseURL is returned by NewRunner for a base URL that is not an
// absolute http(s) URL.
var ErrInvalidBaseURL = errors.New("base URL must be an absolute http or https URL")

// PageOverride adjusts how a single page is loaded.
type PageOverride struct {
	// Headers are sent with every request of the page.
	Headers map[string]string

	// Timeout replaces the ready timeout when positive.
	Timeout time.Duration
}

// Runner validates every page of a catalog, one page at a time.
type Runner struct {
	catalog   *catalog.Catalog
	engine    browser.Engine
	baseURL   *url.URL
	printer   *locale.Printer
	resources *check.ResourceChecker
	styles    *check.StyleAuditor
	policy    browser.ReadyPolicy
	overrides map[string]PageOverride
	logger    *slog.Logger

	// continueOnError lets the style audit run after a failed resource
	// check of the same page.
	continueOnError bool
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithBaseURL sets the origin pages are loaded from.
func WithBaseURL(base *url.URL) RunnerOption {
	return func(r *Runner) {
		if base != nil {
			r.baseURL = base
		}
	}
}

// WithPrinter sets the message printer.
func WithPrinter(printer *locale.Printer) RunnerOption {
	return func(r *Runner) {
		if printer != nil {
			r.printer = printer
		}
	}
}

// WithResourceChecker sets the resource checker.
func WithResourceChecker(c *check.ResourceChecker) RunnerOption {
	return func(r *Runner) {
		r.resources = c
	}
}

// WithStyleAuditor sets the style auditor.
func WithStyleAuditor(a *check.StyleAuditor) RunnerOption {
	return func(r *Runner) {
		r.styles = a
	}
}

// WithReadyPolicy sets the ready condition of every page load.
func WithReadyPolicy(policy browser.ReadyPolicy) RunnerOption {
	return func(r *Runner) {
		if policy.WaitUntil != "" {
			r.policy.WaitUntil = policy.WaitUntil
		}
		if policy.Timeout > 0 {
			r.policy.Timeout = policy.Timeout
		}
	}
}

// WithPageOverrides sets per-page headers and timeouts, keyed by page name.
func WithPageOverrides(overrides map[string]PageOverride) RunnerOption {
	return func(r *Runner) {
		r.overrides = overrides
	}
}

// WithRunnerLogger sets the logger of the runner and its pipelines.
func WithRunnerLogger(logger *slog.Logger) RunnerOption {
	return func(r *Runner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithStopOnStepError stops a page at its first failing step.
func WithStopOnStepError() RunnerOption {
	return func(r *Runner) {
		r.continueOnError = false
	}
}

// NewRunner creates a Runner over cat driving engine.
func NewRunner(cat *catalog.Catalog, engine browser.Engine, opts ...RunnerOption) (*Runner, error) {
	base, err := ParseBaseURL(DefaultBaseURL)
	if err != nil {
		return nil, err
	}

	r := &Runner{
		catalog: cat,
		engine:  engine,
		baseURL: base,
		policy: browser.ReadyPolicy{
			WaitUntil: browser.WaitNetworkIdle,
			Timeout:   DefaultTimeout,
		},
		logger:          slog.Default(),
		continueOnError: true,
	}
	for _, opt := range opts {
		opt(r)
	}

	if r.printer == nil {
		r.printer = locale.New(locale.DefaultLocale)
	}
	if r.resources == nil {
		r.resources = check.NewResourceChecker(fetch.New(fetch.WithLogger(r.logger)), r.printer, check.WithLogger(r.logger))
	}
	if r.styles == nil {
		r.styles = check.NewStyleAuditor(r.printer, check.WithLogger(r.logger), check.WithModulePredicate(cat.IsModulePage))
	}
	return r, nil
}

// ParseBaseURL parses an absolute http(s) origin URL. A trailing slash is
// kept off the path so page names can be joined.
func ParseBaseURL(raw string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidBaseURL, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidBaseURL, raw)
	}
	u.Path = strings.TrimSuffix(u.Path, "/")
	u.RawQuery = ""
	u.Fragment = ""
	return u, nil
}

// PageURL returns the URL a page is served at.
func (r *Runner) PageURL(name string) string {
	return r.baseURL.JoinPath(name).String()
}

// Run lists the catalog and checks every page in order.
//
// A catalog error aborts the run before any page is loaded and is returned
// together with the report. Cancellation stops the run between pages and
// returns the partial report with ctx's error. Violations never produce an
// error; inspect Report.Passed.
func (r *Runner) Run(ctx context.Context) (*model.Report, error) {
	report := model.NewReport(r.baseURL.String(), r.catalog.Dir())
	report.Engine = r.engine.Name()
	report.Locale = r.printer.Tag().String()

	pages, err := r.catalog.Pages()
	if err != nil {
		r.logger.ErrorContext(ctx, "failed to list pages", "dir", r.catalog.Dir(), "error", err)
		report.Error = err.Error()
		report.AddRunViolation(model.Violation{
			Kind:     model.KindCatalog,
			Observed: err.Error(),
			Message:  err.Error(),
		})
		report.Finish()
		return report, err
	}

	modules := r.catalog.ModulePages(pages)
	report.Catalog = pages
	report.ModulePages = modules
	if len(modules) == 0 {
		r.logger.WarnContext(ctx, "no module pages", "dir", r.catalog.Dir())
		report.AddRunViolation(model.Violation{
			Kind:     model.KindCatalog,
			Observed: model.ErrNoModulePages.Error(),
			Message:  r.printer.Sprintf(locale.MsgNoModulePages, r.catalog.Dir()),
		})
	}

	r.logger.InfoContext(ctx, "checking site",
		"site", report.Site,
		"pages", len(pages),
		"module_pages", len(modules),
		"engine", report.Engine,
	)

	for _, name := range pages {
		if ctx.Err() != nil {
			break
		}
		report.AddPage(r.checkPage(ctx, name, slices.Contains(modules, name)))
	}

	if err := ctx.Err(); err != nil {
		report.Cancelled = true
		report.Finish()
		return report, err
	}

	report.Finish()
	r.logger.InfoContext(ctx, "site checked",
		"site", report.Site,
		"violations", report.Summary.TotalViolations,
		"verdict", report.Summary.Verdict,
	)
	return report, nil
}

// checkPage runs the pipeline of one page in a fresh session.
func (r *Runner) checkPage(ctx context.Context, name string, module bool) *model.PageResult {
	start := time.Now()
	result := model.NewPageResult(name, r.PageURL(name), module)
	defer func() {
		result.Duration = time.Since(start)
		result.Finish()
	}()

	override := r.overrides[name]
	policy := r.policy
	if override.Timeout > 0 {
		policy.Timeout = override.Timeout
	}

	session, err := r.engine.NewSession(ctx, browser.SessionOptions{Headers: override.Headers})
	if err != nil {
		r.logger.ErrorContext(ctx, "failed to open session", "page", name, "error", err)
		result.Error = fmt.Sprintf("failed to open session: %v", err)
		return result
	}
	defer func() {
		if err := session.Close(); err != nil {
			r.logger.Warn("failed to close session", "page", name, "error", err)
		}
	}()

	p := New(WithLogger(r.logger), WithContinueOnError(r.continueOnError))
	p.AddSteps(
		NewLoadStep(r.printer, WithLoadLogger(r.logger)),
		NewResourceStep(r.resources),
	)
	if module {
		p.AddStep(NewStyleStep(r.styles))
	}

	run := &PageRun{Page: result, Session: session, Policy: policy, Headers: override.Headers}
	if err := p.Execute(ctx, run); err != nil && !errors.Is(err, ErrHaltPage) && ctx.Err() == nil {
		r.logger.DebugContext(ctx, "page pipeline stopped", "page", name, "error", err)
	}

	r.logger.InfoContext(ctx, "page checked",
		"page", name,
		"violations", len(result.Violations),
	)
	return result
}
