package model

import "time"

// PageStatus is the outcome of validating a single page.
type PageStatus string

const (
	// PageStatusPending is the status before any check ran.
	PageStatusPending PageStatus = "pending"

	// PageStatusPassed means every check ran and none failed.
	PageStatusPassed PageStatus = "passed"

	// PageStatusFailed means at least one violation or step error was recorded.
	PageStatusFailed PageStatus = "failed"

	// PageStatusNotLoaded means the page never became ready, so its checks
	// were skipped.
	PageStatusNotLoaded PageStatus = "not_loaded"
)

// PageResult holds everything observed and asserted for one page.
type PageResult struct {
	// Name is the catalog name of the page (e.g. "module-01.html").
	Name string `json:"name"`

	// URL is the address the page was loaded from.
	URL string `json:"url"`

	// Module is true when the page matches the module naming convention.
	Module bool `json:"module"`

	// Status is the page outcome; see Finish.
	Status PageStatus `json:"status"`

	// Images are the browser observations of every img element.
	Images []ImageRecord `json:"images,omitempty"`

	// Resources are the independent fetch results, one per distinct src.
	Resources []ResourceCheckResult `json:"resources,omitempty"`

	// Styles are the computed backgrounds of module images.
	Styles []StyleObservation `json:"styles,omitempty"`

	// Violations are the failed assertions of this page in check order.
	Violations []Violation `json:"violations,omitempty"`

	// PerformedSteps lists the pipeline steps that ran for this page.
	PerformedSteps []string `json:"performed_steps,omitempty"`

	// Error is set when a step failed for a reason other than a violation,
	// for instance when the browser could not evaluate a query.
	Error string `json:"error,omitempty"`

	// Duration is the wall time spent on the page.
	Duration time.Duration `json:"duration"`
}

// NewPageResult creates an empty result for a page.
func NewPageResult(name, url string, module bool) *PageResult {
	return &PageResult{
		Name:   name,
		URL:    url,
		Module: module,
		Status: PageStatusPending,
	}
}

// AddViolation records a violation on the page.
func (p *PageResult) AddViolation(v Violation) {
	if v.Page == "" {
		v.Page = p.Name
	}
	p.Violations = append(p.Violations, v)
}

// AddViolations records several violations in order.
func (p *PageResult) AddViolations(vs []Violation) {
	for _, v := range vs {
		p.AddViolation(v)
	}
}

// HasViolation reports whether a violation of the given kind was recorded.
func (p *PageResult) HasViolation(kind Kind) bool {
	for _, v := range p.Violations {
		if v.Kind == kind {
			return true
		}
	}
	return false
}

// Failed reports whether the page failed any check.
func (p *PageResult) Failed() bool {
	return len(p.Violations) > 0 || p.Error != ""
}

// Finish sets the final status from the recorded violations.
func (p *PageResult) Finish() {
	switch {
	case p.HasViolation(KindLoadTimeout):
		p.Status = PageStatusNotLoaded
	case p.Failed():
		p.Status = PageStatusFailed
	default:
		p.Status = PageStatusPassed
	}
}

// Report is the result of one validation run.
type Report struct {
	// Site is the base URL the pages were loaded from.
	Site string `json:"site"`

	// OutputDir is the build output directory that was cataloged.
	OutputDir string `json:"output_dir"`

	// Engine is the name of the browser engine used.
	Engine string `json:"engine,omitempty"`

	// Locale is the language of the violation messages.
	Locale string `json:"locale,omitempty"`

	// DateStarted is when the run began.
	DateStarted time.Time `json:"date_started"`

	// Duration is the wall time of the run.
	Duration time.Duration `json:"duration"`

	// Catalog is the ordered list of pages found in the output directory.
	Catalog []string `json:"catalog,omitempty"`

	// ModulePages is the module subset of Catalog.
	ModulePages []string `json:"module_pages,omitempty"`

	// Pages holds one result per cataloged page that was visited.
	Pages []*PageResult `json:"pages,omitempty"`

	// RunViolations are violations not attributable to a single page.
	RunViolations []Violation `json:"run_violations,omitempty"`

	// Error is the message of a fatal error that aborted the run.
	Error string `json:"error,omitempty"`

	// Cancelled is true when the run was interrupted before visiting every page.
	Cancelled bool `json:"cancelled"`

	// Summary is computed by Finish.
	Summary *Summary `json:"summary,omitempty"`
}

// NewReport creates an empty report for a site and output directory.
func NewReport(site, outputDir string) *Report {
	return &Report{
		Site:        site,
		OutputDir:   outputDir,
		DateStarted: time.Now(),
		Pages:       make([]*PageResult, 0),
	}
}

// AddPage appends a finished page result.
func (r *Report) AddPage(p *PageResult) {
	r.Pages = append(r.Pages, p)
}

// AddRunViolation records a violation that belongs to the run as a whole.
func (r *Report) AddRunViolation(v Violation) {
	r.RunViolations = append(r.RunViolations, v)
}

// Violations returns every violation of the run: run-level ones first,
// then page violations in catalog order.
func (r *Report) Violations() []Violation {
	all := make([]Violation, 0, len(r.RunViolations))
	all = append(all, r.RunViolations...)
	for _, p := range r.Pages {
		all = append(all, p.Violations...)
	}
	return all
}

// Page returns the result for the named page, or nil.
func (r *Report) Page(name string) *PageResult {
	for _, p := range r.Pages {
		if p.Name == name {
			return p
		}
	}
	return nil
}

// Finish records the run duration and computes the summary.
func (r *Report) Finish() {
	if !r.DateStarted.IsZero() {
		r.Duration = time.Since(r.DateStarted)
	}
	r.Summary = NewSummary(r)
}

// Passed reports whether the run succeeded: the catalog and its module
// subset are non-empty, nothing fatal happened and no violation or step
// error was recorded.
func (r *Report) Passed() bool {
	if r.Error != "" || r.Cancelled {
		return false
	}
	if len(r.Catalog) == 0 || len(r.ModulePages) == 0 {
		return false
	}
	if len(r.RunViolations) > 0 {
		return false
	}
	for _, p := range r.Pages {
		if p.Failed() {
			return false
		}
	}
	return true
}
